package orderbook

import (
	"container/heap"
	"time"

	"github.com/gammazero/deque"
)

// OrderBook holds the resting orders for one instrument.
//
// Each side is a price -> FIFO queue map plus a heap of live prices
// (max-heap for bids, min-heap for asks). Within a level, queue order
// is acceptance order. A book at rest is never crossed: any order that
// would cross is matched before insertion.
type OrderBook struct {
	instrumentID string

	bids map[float64]*deque.Deque[*BookOrder]
	asks map[float64]*deque.Deque[*BookOrder]

	bidHeap *PriceHeap
	askHeap *PriceHeap

	ordersByID map[string]*BookOrder
}

func NewOrderBook(instrumentID string) *OrderBook {
	return &OrderBook{
		instrumentID: instrumentID,
		bids:         make(map[float64]*deque.Deque[*BookOrder]),
		asks:         make(map[float64]*deque.Deque[*BookOrder]),
		bidHeap:      NewPriceHeap(func(i, j float64) bool { return i > j }), // max-heap
		askHeap:      NewPriceHeap(func(i, j float64) bool { return i < j }), // min-heap
		ordersByID:   make(map[string]*BookOrder),
	}
}

func (b *OrderBook) InstrumentID() string {
	return b.instrumentID
}

func (b *OrderBook) sideBook(side Side) (map[float64]*deque.Deque[*BookOrder], *PriceHeap) {
	if side == BUY {
		return b.bids, b.bidHeap
	}
	return b.asks, b.askHeap
}

// Insert rests an order at the back of its price level.
func (b *OrderBook) Insert(order *BookOrder) {
	book, prices := b.sideBook(order.Side)
	if book[order.Price] == nil {
		book[order.Price] = &deque.Deque[*BookOrder]{}
		heap.Push(prices, order.Price)
	}
	book[order.Price].PushBack(order)
	b.ordersByID[order.OrderID] = order
}

// bestPrice returns the best live price on a side, lazily dropping heap
// entries whose level has emptied.
func (b *OrderBook) bestPrice(side Side) (float64, bool) {
	book, prices := b.sideBook(side)
	for {
		price, ok := prices.Peek()
		if !ok {
			return 0, false
		}
		q := book[price]
		if q == nil || q.Len() == 0 {
			heap.Pop(prices)
			delete(book, price)
			continue
		}
		return price, true
	}
}

// BestBid returns the highest resting buy price.
func (b *OrderBook) BestBid() (float64, bool) {
	return b.bestPrice(BUY)
}

// BestAsk returns the lowest resting sell price.
func (b *OrderBook) BestAsk() (float64, bool) {
	return b.bestPrice(SELL)
}

// Spread returns ask - bid; ok is false unless both sides are present.
func (b *OrderBook) Spread() (float64, bool) {
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return ask - bid, true
}

// Remove takes an order out of the book by id.
func (b *OrderBook) Remove(orderID string) (*BookOrder, bool) {
	order, ok := b.ordersByID[orderID]
	if !ok {
		return nil, false
	}
	book, _ := b.sideBook(order.Side)
	q := book[order.Price]
	if q != nil {
		if i := q.Index(func(o *BookOrder) bool { return o.OrderID == orderID }); i >= 0 {
			q.Remove(i)
		}
	}
	delete(b.ordersByID, orderID)
	return order, true
}

// AvailableQty sums the opposite-side depth an aggressor at the given
// price could reach: asks at or below for a buy, bids at or above for a
// sell. Used for the FOK feasibility pre-check.
func (b *OrderBook) AvailableQty(aggressor Side, price float64) int64 {
	book, _ := b.sideBook(aggressor.Opposite())
	crosses := func(level float64) bool { return level <= price }
	if aggressor == SELL {
		crosses = func(level float64) bool { return level >= price }
	}

	var total int64
	for level, q := range book {
		if !crosses(level) {
			continue
		}
		for i := 0; i < q.Len(); i++ {
			total += q.At(i).Qty
		}
	}
	return total
}

// Reduce shrinks a resting order in place, removing it once filled.
// Keeps the order's queue position; used when applying trade events
// during replay.
func (b *OrderBook) Reduce(orderID string, qty int64) bool {
	order, ok := b.ordersByID[orderID]
	if !ok {
		return false
	}
	order.Fill(qty)
	if order.IsFilled() {
		book, _ := b.sideBook(order.Side)
		if q := book[order.Price]; q != nil {
			if i := q.Index(func(o *BookOrder) bool { return o.OrderID == orderID }); i >= 0 {
				q.Remove(i)
			}
		}
		delete(b.ordersByID, orderID)
	}
	return true
}

// IsEmpty reports whether no orders rest on either side.
func (b *OrderBook) IsEmpty() bool {
	return len(b.ordersByID) == 0
}

// OrderCount returns the number of resting orders.
func (b *OrderBook) OrderCount() int {
	return len(b.ordersByID)
}

// Orders exports every resting order in deterministic order: bids best
// first, then asks best first, FIFO within a level. Used by persistent
// backends to serialize book state.
func (b *OrderBook) Orders() []BookOrder {
	out := make([]BookOrder, 0, len(b.ordersByID))
	for _, side := range []Side{BUY, SELL} {
		book, prices := b.sideBook(side)
		for _, price := range prices.Sorted() {
			q := book[price]
			if q == nil {
				continue
			}
			for i := 0; i < q.Len(); i++ {
				out = append(out, *q.At(i))
			}
		}
	}
	return out
}

// Restore rebuilds a book from a serialized order list.
func Restore(instrumentID string, orders []BookOrder) *OrderBook {
	b := NewOrderBook(instrumentID)
	for i := range orders {
		o := orders[i]
		b.Insert(&o)
	}
	return b
}

// PriceLevel aggregates one price for market-data snapshots.
type PriceLevel struct {
	Price      float64 `json:"price"`
	Qty        int64   `json:"qty"`
	OrderCount int     `json:"order_count"`
}

// Snapshot is a depth-limited market-data view of a book.
type Snapshot struct {
	InstrumentID string       `json:"instrument_id"`
	Bids         []PriceLevel `json:"bids"`
	Asks         []PriceLevel `json:"asks"`
	Sequence     uint64       `json:"sequence"`
	Timestamp    time.Time    `json:"timestamp"`
}

// Snapshot builds a market-data snapshot with at most depth levels per
// side, best prices first.
func (b *OrderBook) Snapshot(depth int) *Snapshot {
	levels := func(side Side) []PriceLevel {
		book, prices := b.sideBook(side)
		var out []PriceLevel
		for _, price := range prices.Sorted() {
			if depth > 0 && len(out) >= depth {
				break
			}
			q := book[price]
			if q == nil || q.Len() == 0 {
				continue
			}
			level := PriceLevel{Price: price, OrderCount: q.Len()}
			for i := 0; i < q.Len(); i++ {
				level.Qty += q.At(i).Qty
			}
			out = append(out, level)
		}
		return out
	}

	return &Snapshot{
		InstrumentID: b.instrumentID,
		Bids:         levels(BUY),
		Asks:         levels(SELL),
		Timestamp:    time.Now().UTC(),
	}
}
