package matching

import (
	"fmt"

	"github.com/openexchange/matching-core/pkg/orderbook"
)

// ReplayState is the book and trade state rebuilt from an event log.
type ReplayState struct {
	Books    map[string]*orderbook.OrderBook
	Trades   map[string][]orderbook.Trade
	Sequence uint64
}

// Replay applies events in order and reconstructs per-instrument books
// and trade history. Applying the same ordered events always yields the
// same state: inserts use the residual recorded at acceptance, trade
// events reduce the maker in place, cancels remove by id.
func Replay(events []MatchingEvent) (*ReplayState, error) {
	state := &ReplayState{
		Books:  make(map[string]*orderbook.OrderBook),
		Trades: make(map[string][]orderbook.Trade),
	}

	book := func(instrumentID string) *orderbook.OrderBook {
		b, ok := state.Books[instrumentID]
		if !ok {
			b = orderbook.NewOrderBook(instrumentID)
			state.Books[instrumentID] = b
		}
		return b
	}

	for _, ev := range events {
		if ev.Sequence <= state.Sequence && ev.Type != EventSequenceReset {
			return nil, fmt.Errorf("%w: replay at %d, got %d", ErrSequenceRegression, state.Sequence, ev.Sequence)
		}

		switch ev.Type {
		case EventOrderAccepted:
			if ev.Inserted && ev.Order != nil {
				o := *ev.Order
				book(ev.InstrumentID).Insert(&o)
			}
		case EventTradeExecuted:
			if ev.Trade == nil {
				return nil, fmt.Errorf("trade event %d has no trade", ev.Sequence)
			}
			book(ev.InstrumentID).Reduce(ev.Trade.MakerOrderID, ev.Trade.Qty)
			state.Trades[ev.InstrumentID] = append(state.Trades[ev.InstrumentID], *ev.Trade)
		case EventOrderCancelled:
			book(ev.InstrumentID).Remove(ev.OrderID)
		case EventSequenceReset:
			// sequence override only; book state untouched
		default:
			return nil, fmt.Errorf("unknown event type %q at sequence %d", ev.Type, ev.Sequence)
		}

		state.Sequence = ev.Sequence
	}

	return state, nil
}
