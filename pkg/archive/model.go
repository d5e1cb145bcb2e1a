package archive

import (
	"time"

	"github.com/openexchange/matching-core/pkg/orderbook"
)

// TradeRecord is the archived form of an execution.
type TradeRecord struct {
	TradeID       string    `gorm:"column:trade_id;primaryKey"`
	InstrumentID  string    `gorm:"column:instrument_id;index"`
	TakerOrderID  string    `gorm:"column:taker_order_id"`
	MakerOrderID  string    `gorm:"column:maker_order_id"`
	BuyAccount    string    `gorm:"column:buy_account"`
	SellAccount   string    `gorm:"column:sell_account"`
	Price         float64   `gorm:"column:price"`
	Qty           int64     `gorm:"column:qty"`
	AggressorSide string    `gorm:"column:aggressor_side"`
	Sequence      uint64    `gorm:"column:sequence;index"`
	ExecutedAt    time.Time `gorm:"column:executed_at"`
	ArchivedAt    time.Time `gorm:"column:archived_at;autoCreateTime"`
}

func (TradeRecord) TableName() string {
	return "trades"
}

func NewTradeRecord(t *orderbook.Trade) *TradeRecord {
	return &TradeRecord{
		TradeID:       t.TradeID,
		InstrumentID:  t.InstrumentID,
		TakerOrderID:  t.TakerOrderID,
		MakerOrderID:  t.MakerOrderID,
		BuyAccount:    t.BuyAccount,
		SellAccount:   t.SellAccount,
		Price:         t.Price,
		Qty:           t.Qty,
		AggressorSide: string(t.AggressorSide),
		Sequence:      t.Sequence,
		ExecutedAt:    t.Timestamp,
	}
}
