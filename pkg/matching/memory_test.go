package matching

import (
	"context"
	"testing"

	"github.com/openexchange/matching-core/pkg/orderbook"
)

func submitOrder(t *testing.T, s Store, order *orderbook.BookOrder) *orderbook.MatchResult {
	t.Helper()
	if order.Qualifier == "" {
		order.Qualifier = orderbook.LIMIT
	}
	res, err := s.SubmitOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("SubmitOrder(%s): %v", order.OrderID, err)
	}
	return res
}

func TestMemoryStoreSubmitAndSequence(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	submitOrder(t, s, &orderbook.BookOrder{OrderID: "B1", InstrumentID: "BTC-C", Account: "a1", Side: orderbook.BUY, Price: 100, Qty: 10})
	res := submitOrder(t, s, &orderbook.BookOrder{OrderID: "S1", InstrumentID: "BTC-C", Account: "a2", Side: orderbook.SELL, Price: 100, Qty: 4})

	if len(res.Trades) != 1 || res.Trades[0].Qty != 4 || res.Trades[0].Price != 100 {
		t.Fatalf("expected trade 4@100, got %+v", res.Trades)
	}

	// accept(1), accept(2), trade(3)
	seq, err := s.GetSequence(ctx)
	if err != nil || seq != 3 {
		t.Fatalf("sequence = %d err=%v, want 3", seq, err)
	}

	events, err := s.GetEvents(ctx, 0)
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	wantTypes := []EventType{EventOrderAccepted, EventOrderAccepted, EventTradeExecuted}
	if len(events) != len(wantTypes) {
		t.Fatalf("got %d events, want %d", len(events), len(wantTypes))
	}
	for i, ev := range events {
		if ev.Type != wantTypes[i] {
			t.Errorf("event %d type %s, want %s", i, ev.Type, wantTypes[i])
		}
		if ev.Sequence != uint64(i+1) {
			t.Errorf("event %d sequence %d, want %d: gapless numbering broken", i, ev.Sequence, i+1)
		}
	}
}

func TestMemoryStoreCancel(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	submitOrder(t, s, &orderbook.BookOrder{OrderID: "B1", InstrumentID: "BTC-C", Side: orderbook.BUY, Price: 100, Qty: 10})
	seqBefore, _ := s.GetSequence(ctx)

	// unknown order: not-found result, sequence untouched
	res, err := s.CancelOrder(ctx, "BTC-C", "nope")
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if res.Cancelled {
		t.Errorf("cancel of unknown order must not report success")
	}
	if seq, _ := s.GetSequence(ctx); seq != seqBefore {
		t.Errorf("not-found cancel moved sequence %d -> %d", seqBefore, seq)
	}

	// unknown instrument behaves the same
	if res, err := s.CancelOrder(ctx, "NOPE-C", "B1"); err != nil || res.Cancelled {
		t.Errorf("cancel on unknown instrument: res=%+v err=%v", res, err)
	}

	res, err = s.CancelOrder(ctx, "BTC-C", "B1")
	if err != nil || !res.Cancelled {
		t.Fatalf("cancel of resting order failed: res=%+v err=%v", res, err)
	}
	if seq, _ := s.GetSequence(ctx); seq != seqBefore+1 {
		t.Errorf("cancel should append one event, seq=%d", seq)
	}
	if snap, _ := s.GetBook(ctx, "BTC-C", 0); len(snap.Bids) != 0 {
		t.Errorf("book should be empty after cancel, got %+v", snap.Bids)
	}
}

func TestMemoryStoreTradesChronological(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	submitOrder(t, s, &orderbook.BookOrder{OrderID: "B1", InstrumentID: "BTC-C", Side: orderbook.BUY, Price: 100, Qty: 10})
	for i, qty := range []int64{2, 3, 5} {
		submitOrder(t, s, &orderbook.BookOrder{
			OrderID: "S" + string(rune('1'+i)), InstrumentID: "BTC-C",
			Side: orderbook.SELL, Price: 100, Qty: qty,
		})
	}

	trades, err := s.GetTrades(ctx, "BTC-C", 0)
	if err != nil {
		t.Fatalf("GetTrades: %v", err)
	}
	if len(trades) != 3 {
		t.Fatalf("got %d trades, want 3", len(trades))
	}
	for i := 1; i < len(trades); i++ {
		if trades[i].Sequence <= trades[i-1].Sequence {
			t.Errorf("trades out of chronological order at %d", i)
		}
	}

	limited, _ := s.GetTrades(ctx, "BTC-C", 2)
	if len(limited) != 2 {
		t.Fatalf("limit=2 returned %d trades", len(limited))
	}
	// the last two, still oldest first
	if limited[0].Qty != 3 || limited[1].Qty != 5 {
		t.Errorf("limited window wrong: %+v", limited)
	}
}

func TestMemoryStoreTradeHistoryBounded(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	submitOrder(t, s, &orderbook.BookOrder{OrderID: "B1", InstrumentID: "BTC-C", Side: orderbook.BUY, Price: 100, Qty: 10})
	for _, id := range []string{"S1", "S2", "S3"} {
		submitOrder(t, s, &orderbook.BookOrder{OrderID: id, InstrumentID: "BTC-C", Side: orderbook.SELL, Price: 100, Qty: 2})
	}

	trades, _ := s.GetTrades(ctx, "BTC-C", 0)
	if len(trades) != 2 {
		t.Fatalf("history should be trimmed to 2, got %d", len(trades))
	}
	if trades[0].TakerOrderID != "S2" || trades[1].TakerOrderID != "S3" {
		t.Errorf("trim should drop oldest first: %+v", trades)
	}
}

func TestMemoryStoreInstrumentIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	submitOrder(t, s, &orderbook.BookOrder{OrderID: "B1", InstrumentID: "BTC-C", Side: orderbook.BUY, Price: 100, Qty: 10})
	submitOrder(t, s, &orderbook.BookOrder{OrderID: "B2", InstrumentID: "ETH-P", Side: orderbook.BUY, Price: 50, Qty: 5})

	instruments, _ := s.Instruments(ctx)
	if len(instruments) != 2 {
		t.Fatalf("want 2 instruments, got %v", instruments)
	}
	if ok, _ := s.HasBook(ctx, "BTC-C"); !ok {
		t.Errorf("HasBook(BTC-C) = false")
	}
	if ok, _ := s.HasBook(ctx, "SOL-C"); ok {
		t.Errorf("HasBook(SOL-C) = true for unknown instrument")
	}

	bid, ok, _ := s.GetBestBid(ctx, "ETH-P")
	if !ok || bid != 50 {
		t.Errorf("ETH-P best bid = %v ok=%v", bid, ok)
	}

	// cross one instrument, the other stays put
	submitOrder(t, s, &orderbook.BookOrder{OrderID: "S1", InstrumentID: "BTC-C", Side: orderbook.SELL, Price: 100, Qty: 10})
	if trades, _ := s.GetTrades(ctx, "ETH-P", 0); len(trades) != 0 {
		t.Errorf("ETH-P should have no trades, got %d", len(trades))
	}
}

func TestMemoryStoreUnknownInstrumentQueries(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	snap, err := s.GetBook(ctx, "NOPE-C", 0)
	if err != nil {
		t.Fatalf("GetBook: %v", err)
	}
	if snap.InstrumentID != "NOPE-C" || len(snap.Bids) != 0 || len(snap.Asks) != 0 {
		t.Errorf("unknown instrument should yield an empty snapshot, got %+v", snap)
	}
	if _, ok, _ := s.GetBestBid(ctx, "NOPE-C"); ok {
		t.Errorf("unknown instrument has no best bid")
	}
	if trades, _ := s.GetTrades(ctx, "NOPE-C", 0); len(trades) != 0 {
		t.Errorf("unknown instrument has no trades")
	}
}

func TestMemoryStoreTradeCallback(t *testing.T) {
	s := NewMemoryStore(0)

	var got []orderbook.Trade
	s.RegisterTradeCallback(func(trades []orderbook.Trade) {
		got = append(got, trades...)
	})

	submitOrder(t, s, &orderbook.BookOrder{OrderID: "B1", InstrumentID: "BTC-C", Side: orderbook.BUY, Price: 100, Qty: 10})
	if len(got) != 0 {
		t.Fatalf("no trades yet, callback got %d", len(got))
	}

	submitOrder(t, s, &orderbook.BookOrder{OrderID: "S1", InstrumentID: "BTC-C", Side: orderbook.SELL, Price: 100, Qty: 4})
	if len(got) != 1 || got[0].Qty != 4 {
		t.Errorf("callback should observe the execution, got %+v", got)
	}
}

// A trade callback runs outside the shard's critical section, so it
// may query the store for the instrument that just traded.
func TestTradeCallbackCanQueryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)

	var seen []orderbook.Trade
	s.RegisterTradeCallback(func(trades []orderbook.Trade) {
		recorded, err := s.GetTrades(ctx, "BTC-C", 0)
		if err != nil {
			t.Errorf("GetTrades inside callback: %v", err)
		}
		seen = recorded
		if _, err := s.GetBook(ctx, "BTC-C", 0); err != nil {
			t.Errorf("GetBook inside callback: %v", err)
		}
	})

	submitOrder(t, s, &orderbook.BookOrder{OrderID: "B1", InstrumentID: "BTC-C", Side: orderbook.BUY, Price: 100, Qty: 10})
	submitOrder(t, s, &orderbook.BookOrder{OrderID: "S1", InstrumentID: "BTC-C", Side: orderbook.SELL, Price: 100, Qty: 4})

	if len(seen) != 1 || seen[0].Qty != 4 {
		t.Errorf("callback should see the recorded execution, got %+v", seen)
	}
}

func TestNewStoreFallsBackToMemory(t *testing.T) {
	for _, typ := range []string{"", "memory", "inmemory", "in_memory", "something-else"} {
		s, err := New(context.Background(), &Config{Type: typ})
		if err != nil {
			t.Fatalf("New(%q): %v", typ, err)
		}
		if _, ok := s.(*MemoryStore); !ok {
			t.Errorf("New(%q) = %T, want *MemoryStore", typ, s)
		}
	}
}
