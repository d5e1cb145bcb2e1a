package orderbook

import (
	"time"

	"github.com/google/uuid"
)

// Trade is one matched execution. Immutable once created; the price is
// always the resting (maker) order's price.
type Trade struct {
	TradeID       string    `json:"trade_id"`
	InstrumentID  string    `json:"instrument_id"`
	TakerOrderID  string    `json:"taker_order_id"`
	MakerOrderID  string    `json:"maker_order_id"`
	BuyAccount    string    `json:"buy_account"`
	SellAccount   string    `json:"sell_account"`
	Price         float64   `json:"price"`
	Qty           int64     `json:"qty"`
	AggressorSide Side      `json:"aggressor_side"`
	Sequence      uint64    `json:"sequence"`
	Timestamp     time.Time `json:"timestamp"`
}

func newTrade(taker, maker *BookOrder, qty int64) Trade {
	t := Trade{
		TradeID:       uuid.New().String(),
		InstrumentID:  taker.InstrumentID,
		TakerOrderID:  taker.OrderID,
		MakerOrderID:  maker.OrderID,
		Price:         maker.Price,
		Qty:           qty,
		AggressorSide: taker.Side,
		Timestamp:     time.Now().UTC(),
	}
	if taker.Side == BUY {
		t.BuyAccount, t.SellAccount = taker.Account, maker.Account
	} else {
		t.BuyAccount, t.SellAccount = maker.Account, taker.Account
	}
	return t
}
