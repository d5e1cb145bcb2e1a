package orderbook

import (
	"container/heap"
)

// Match runs the incoming order against the book under price-time
// priority and returns the trades plus residual state. Trade sequence
// numbers are left unset; the store assigns them when it appends the
// events, so that sequencing stays gapless across instruments.
//
// The walk goes best price first; within a level strictly in acceptance
// order. A resting order matches whenever its price does not
// disadvantage the aggressor, and every trade prints at the resting
// order's price.
func (b *OrderBook) Match(order *BookOrder) (*MatchResult, error) {
	if order.Price <= 0 || order.Qty <= 0 {
		return nil, ErrInvalidOrder
	}
	switch order.Qualifier {
	case LIMIT, IOC, FOK:
	default:
		return nil, ErrUnsupportedQualifier
	}

	// FOK feasibility is decided before the book is touched: either the
	// whole order can fill against current depth or nothing happens.
	if order.Qualifier == FOK {
		if b.AvailableQty(order.Side, order.Price) < order.Qty {
			return &MatchResult{Remaining: order, ShouldInsert: false}, nil
		}
	}

	result := &MatchResult{}
	counterBook, counterHeap := b.sideBook(order.Side.Opposite())
	crosses := func(best float64) bool { return order.Price >= best }
	if order.Side == SELL {
		crosses = func(best float64) bool { return order.Price <= best }
	}

	for !order.IsFilled() {
		best, ok := counterHeap.Peek()
		if !ok || !crosses(best) {
			break
		}

		q := counterBook[best]
		if q == nil || q.Len() == 0 {
			heap.Pop(counterHeap)
			delete(counterBook, best)
			continue
		}

		maker := q.Front()
		qty := min(order.Qty, maker.Qty)

		result.Trades = append(result.Trades, newTrade(order, maker, qty))

		order.Fill(qty)
		maker.Fill(qty)

		if maker.IsFilled() {
			q.PopFront()
			delete(b.ordersByID, maker.OrderID)
		}
	}

	if order.IsFilled() {
		return result, nil
	}

	result.Remaining = order
	if order.Qualifier == LIMIT {
		result.ShouldInsert = true
	}
	return result, nil
}

// Cancel removes a resting order by id. A missing order yields a
// not-found result, not an error.
func (b *OrderBook) Cancel(orderID string) CancelResult {
	order, ok := b.Remove(orderID)
	if !ok {
		return CancelResult{}
	}
	return CancelResult{Cancelled: true, Order: order}
}
