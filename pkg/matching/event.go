package matching

import (
	"github.com/openexchange/matching-core/pkg/orderbook"
)

type EventType string

const (
	EventOrderAccepted  EventType = "order_accepted"
	EventOrderCancelled EventType = "order_cancelled"
	EventTradeExecuted  EventType = "trade_executed"
	EventSequenceReset  EventType = "sequence_reset"
)

// MatchingEvent is one entry in the event log. Replaying all events for
// a store instance in sequence order rebuilds book and trade state.
//
// OrderAccepted carries the accepted order with the quantity that was
// actually rested (Inserted=false means nothing reached the book), so
// replay is plain state application rather than re-matching.
type MatchingEvent struct {
	Type         EventType            `json:"type"`
	Sequence     uint64               `json:"sequence"`
	InstrumentID string               `json:"instrument_id,omitempty"`
	OrderID      string               `json:"order_id,omitempty"`
	Order        *orderbook.BookOrder `json:"order,omitempty"`
	Inserted     bool                 `json:"inserted,omitempty"`
	Trade        *orderbook.Trade     `json:"trade,omitempty"`
}

func NewOrderAccepted(order orderbook.BookOrder, inserted bool, seq uint64) MatchingEvent {
	return MatchingEvent{
		Type:         EventOrderAccepted,
		Sequence:     seq,
		InstrumentID: order.InstrumentID,
		OrderID:      order.OrderID,
		Order:        &order,
		Inserted:     inserted,
	}
}

func NewOrderCancelled(instrumentID, orderID string, seq uint64) MatchingEvent {
	return MatchingEvent{
		Type:         EventOrderCancelled,
		Sequence:     seq,
		InstrumentID: instrumentID,
		OrderID:      orderID,
	}
}

func NewTradeExecuted(trade orderbook.Trade) MatchingEvent {
	return MatchingEvent{
		Type:         EventTradeExecuted,
		Sequence:     trade.Sequence,
		InstrumentID: trade.InstrumentID,
		Trade:        &trade,
	}
}

func NewSequenceReset(seq uint64) MatchingEvent {
	return MatchingEvent{
		Type:     EventSequenceReset,
		Sequence: seq,
	}
}
