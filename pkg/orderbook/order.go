package orderbook

type Side string

const (
	BUY  Side = "BUY"
	SELL Side = "SELL"
)

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == BUY {
		return SELL
	}
	return BUY
}

// Qualifier controls what happens to the part of an order that does not
// match immediately.
type Qualifier string

const (
	// LIMIT rests any unmatched remainder in the book.
	LIMIT Qualifier = "LIMIT"
	// IOC fills what is possible and discards the remainder.
	IOC Qualifier = "IOC"
	// FOK fills the whole order immediately or not at all.
	FOK Qualifier = "FOK"
)

// BookOrder is the matching engine's view of an order. The full order
// lifecycle lives upstream in the OMS; the book only keeps what
// price-time priority needs.
type BookOrder struct {
	OrderID      string    `json:"order_id"`
	InstrumentID string    `json:"instrument_id"`
	Account      string    `json:"account"`
	Side         Side      `json:"side"`
	Price        float64   `json:"price"`
	Qty          int64     `json:"qty"`
	Qualifier    Qualifier `json:"qualifier"`

	// Sequence is the acceptance sequence, the time component of
	// price-time priority. Assigned by the store, never by callers.
	Sequence uint64 `json:"sequence"`
}

// Fill reduces the remaining quantity after a partial execution.
func (o *BookOrder) Fill(qty int64) {
	o.Qty -= qty
	if o.Qty < 0 {
		o.Qty = 0
	}
}

// IsFilled reports whether nothing remains to execute.
func (o *BookOrder) IsFilled() bool {
	return o.Qty == 0
}
