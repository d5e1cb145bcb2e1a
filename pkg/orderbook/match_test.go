package orderbook

import (
	"errors"
	"testing"
)

// submit runs an order through Match and rests the residual the way the
// store does.
func submit(t *testing.T, b *OrderBook, order *BookOrder) *MatchResult {
	t.Helper()
	if order.Qualifier == "" {
		order.Qualifier = LIMIT
	}
	res, err := b.Match(order)
	if err != nil {
		t.Fatalf("Match(%s) error: %v", order.OrderID, err)
	}
	if res.ShouldInsert {
		b.Insert(order)
	}
	return res
}

func TestLimitOrderMatch(t *testing.T) {
	b := NewOrderBook("BTC-C")
	submit(t, b, &BookOrder{OrderID: "S1", InstrumentID: "BTC-C", Account: "acc-s", Side: SELL, Price: 100, Qty: 10})
	res := submit(t, b, &BookOrder{OrderID: "B1", InstrumentID: "BTC-C", Account: "acc-b", Side: BUY, Price: 101, Qty: 10})

	if len(res.Trades) != 1 || res.Trades[0].Qty != 10 {
		t.Fatalf("expected 1 trade of 10, got %+v", res.Trades)
	}
	if res.Trades[0].Price != 100 {
		t.Errorf("trade should print at maker price 100, got %v", res.Trades[0].Price)
	}
	if !b.IsEmpty() {
		t.Errorf("book should be empty after full cross")
	}
}

func TestPartialFillRestsResidual(t *testing.T) {
	b := NewOrderBook("BTC-C")

	// resting buy 10@100, then sell 5@100
	submit(t, b, &BookOrder{OrderID: "B1", Side: BUY, Price: 100, Qty: 10})
	res := submit(t, b, &BookOrder{OrderID: "S1", Side: SELL, Price: 100, Qty: 5})
	if len(res.Trades) != 1 || res.Trades[0].Qty != 5 || res.Trades[0].Price != 100 {
		t.Fatalf("expected trade 5@100, got %+v", res.Trades)
	}

	// sell 10@99 crosses the 5 left on the bid, residual 5 rests at 99
	res = submit(t, b, &BookOrder{OrderID: "S2", Side: SELL, Price: 99, Qty: 10})
	if len(res.Trades) != 1 || res.Trades[0].Qty != 5 || res.Trades[0].Price != 100 {
		t.Fatalf("expected trade 5@100 against resting bid, got %+v", res.Trades)
	}
	if !res.ShouldInsert || res.Remaining == nil || res.Remaining.Qty != 5 {
		t.Fatalf("expected residual 5 to rest, got %+v", res.Remaining)
	}
	if ask, ok := b.BestAsk(); !ok || ask != 99 {
		t.Errorf("expected best ask 99, got %v ok=%v", ask, ok)
	}
	if _, ok := b.BestBid(); ok {
		t.Errorf("bid side should be empty")
	}
}

func TestPriceTimePriority(t *testing.T) {
	b := NewOrderBook("ETH-P")
	submit(t, b, &BookOrder{OrderID: "S1", Side: SELL, Price: 101, Qty: 5})
	submit(t, b, &BookOrder{OrderID: "S2", Side: SELL, Price: 100, Qty: 5})
	submit(t, b, &BookOrder{OrderID: "S3", Side: SELL, Price: 100, Qty: 5})

	res := submit(t, b, &BookOrder{OrderID: "B1", Side: BUY, Price: 101, Qty: 12})
	if len(res.Trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(res.Trades))
	}
	// best price first, FIFO within the 100 level, then the 101 level
	want := []struct {
		maker string
		price float64
		qty   int64
	}{
		{"S2", 100, 5},
		{"S3", 100, 5},
		{"S1", 101, 2},
	}
	for i, w := range want {
		got := res.Trades[i]
		if got.MakerOrderID != w.maker || got.Price != w.price || got.Qty != w.qty {
			t.Errorf("trade %d: want maker=%s price=%v qty=%d, got %+v", i, w.maker, w.price, w.qty, got)
		}
	}
}

func TestQuantityConservation(t *testing.T) {
	b := NewOrderBook("ETH-P")
	submit(t, b, &BookOrder{OrderID: "S1", Side: SELL, Price: 100, Qty: 3})
	submit(t, b, &BookOrder{OrderID: "S2", Side: SELL, Price: 101, Qty: 4})

	order := &BookOrder{OrderID: "B1", Side: BUY, Price: 101, Qty: 10, Qualifier: LIMIT}
	res := submit(t, b, order)

	remaining := int64(0)
	if res.Remaining != nil {
		remaining = res.Remaining.Qty
	}
	if res.FilledQty()+remaining != 10 {
		t.Errorf("filled %d + remaining %d != original 10", res.FilledQty(), remaining)
	}
}

func TestTradeAccounts(t *testing.T) {
	b := NewOrderBook("BTC-C")
	submit(t, b, &BookOrder{OrderID: "S1", Account: "seller", Side: SELL, Price: 100, Qty: 5})
	res := submit(t, b, &BookOrder{OrderID: "B1", Account: "buyer", Side: BUY, Price: 100, Qty: 5})

	tr := res.Trades[0]
	if tr.BuyAccount != "buyer" || tr.SellAccount != "seller" {
		t.Errorf("accounts mismatched: %+v", tr)
	}
	if tr.AggressorSide != BUY {
		t.Errorf("aggressor should be BUY, got %s", tr.AggressorSide)
	}
	if tr.TakerOrderID != "B1" || tr.MakerOrderID != "S1" {
		t.Errorf("taker/maker ids wrong: %+v", tr)
	}
}

func TestIOCDiscardsResidual(t *testing.T) {
	b := NewOrderBook("BTC-C")
	submit(t, b, &BookOrder{OrderID: "S1", Side: SELL, Price: 100, Qty: 5})

	res := submit(t, b, &BookOrder{OrderID: "B1", Side: BUY, Price: 100, Qty: 10, Qualifier: IOC})
	if res.FilledQty() != 5 {
		t.Fatalf("expected IOC to fill 5, got %d", res.FilledQty())
	}
	if res.ShouldInsert {
		t.Errorf("IOC residual must not rest")
	}
	if !b.IsEmpty() {
		t.Errorf("book should be empty, residual discarded")
	}
}

func TestFOKInfeasibleLeavesBookUntouched(t *testing.T) {
	b := NewOrderBook("BTC-C")
	submit(t, b, &BookOrder{OrderID: "S1", Side: SELL, Price: 100, Qty: 5})

	res := submit(t, b, &BookOrder{OrderID: "B1", Side: BUY, Price: 100, Qty: 10, Qualifier: FOK})
	if res.HasTrades() {
		t.Fatalf("infeasible FOK must not trade, got %+v", res.Trades)
	}
	if res.ShouldInsert {
		t.Errorf("FOK must never rest")
	}
	// resting sell untouched
	if b.OrderCount() != 1 {
		t.Errorf("book changed by infeasible FOK")
	}
	if qty := b.AvailableQty(BUY, 100); qty != 5 {
		t.Errorf("resting depth changed: %d", qty)
	}
}

func TestFOKFeasibleFillsEverything(t *testing.T) {
	b := NewOrderBook("BTC-C")
	submit(t, b, &BookOrder{OrderID: "S1", Side: SELL, Price: 99, Qty: 6})
	submit(t, b, &BookOrder{OrderID: "S2", Side: SELL, Price: 100, Qty: 6})

	res := submit(t, b, &BookOrder{OrderID: "B1", Side: BUY, Price: 100, Qty: 10, Qualifier: FOK})
	if res.FilledQty() != 10 {
		t.Fatalf("expected full fill of 10, got %d", res.FilledQty())
	}
	if res.Remaining != nil {
		t.Errorf("nothing should remain, got %+v", res.Remaining)
	}
}

func TestMatchValidation(t *testing.T) {
	b := NewOrderBook("BTC-C")

	cases := []struct {
		name  string
		order *BookOrder
		want  error
	}{
		{"zero price", &BookOrder{OrderID: "O1", Side: BUY, Price: 0, Qty: 10, Qualifier: LIMIT}, ErrInvalidOrder},
		{"negative qty", &BookOrder{OrderID: "O2", Side: BUY, Price: 100, Qty: -1, Qualifier: LIMIT}, ErrInvalidOrder},
		{"unknown qualifier", &BookOrder{OrderID: "O3", Side: BUY, Price: 100, Qty: 10, Qualifier: "GTC"}, ErrUnsupportedQualifier},
	}
	for _, tc := range cases {
		if _, err := b.Match(tc.order); !errors.Is(err, tc.want) {
			t.Errorf("%s: want %v, got %v", tc.name, tc.want, err)
		}
	}
	if !b.IsEmpty() {
		t.Errorf("rejected orders must not touch the book")
	}
}

func TestCancel(t *testing.T) {
	b := NewOrderBook("BTC-C")
	submit(t, b, &BookOrder{OrderID: "B1", Side: BUY, Price: 100, Qty: 10})

	res := b.Cancel("B1")
	if !res.Cancelled || res.Order == nil || res.Order.OrderID != "B1" {
		t.Fatalf("expected cancel to find B1, got %+v", res)
	}
	if !b.IsEmpty() {
		t.Errorf("book should be empty after cancel")
	}

	res = b.Cancel("nope")
	if res.Cancelled {
		t.Errorf("cancel of unknown id must be a not-found result")
	}
}

func TestMatchDeterminism(t *testing.T) {
	run := func() []Trade {
		b := NewOrderBook("BTC-C")
		var trades []Trade
		orders := []*BookOrder{
			{OrderID: "O1", Side: BUY, Price: 100, Qty: 10},
			{OrderID: "O2", Side: SELL, Price: 101, Qty: 4},
			{OrderID: "O3", Side: SELL, Price: 100, Qty: 6},
			{OrderID: "O4", Side: BUY, Price: 101, Qty: 8},
			{OrderID: "O5", Side: SELL, Price: 99, Qty: 12},
		}
		for _, o := range orders {
			c := *o
			res := submit(t, b, &c)
			trades = append(trades, res.Trades...)
		}
		return trades
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("runs diverged: %d vs %d trades", len(a), len(b))
	}
	for i := range a {
		if a[i].MakerOrderID != b[i].MakerOrderID || a[i].TakerOrderID != b[i].TakerOrderID ||
			a[i].Price != b[i].Price || a[i].Qty != b[i].Qty {
			t.Errorf("trade %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}
