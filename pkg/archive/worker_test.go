package archive

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/openexchange/matching-core/pkg/kafka"
	"github.com/openexchange/matching-core/pkg/orderbook"
)

type fakeTradeRepo struct {
	records []*TradeRecord
	err     error
}

func (f *fakeTradeRepo) Create(ctx context.Context, record *TradeRecord) (*TradeRecord, error) {
	f.records = append(f.records, record)
	return record, f.err
}

func (f *fakeTradeRepo) BulkCreate(ctx context.Context, records []*TradeRecord) ([]*TradeRecord, error) {
	if len(records) == 0 {
		return records, nil
	}
	if f.err != nil {
		return nil, f.err
	}
	f.records = append(f.records, records...)
	return records, nil
}

func feedMessage(t *testing.T, trade orderbook.Trade) kafka.Message {
	t.Helper()
	b, err := json.Marshal(trade)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return kafka.Message{Key: []byte(trade.InstrumentID), Value: b}
}

func TestHandleBatch(t *testing.T) {
	repo := &fakeTradeRepo{}
	w := NewWorker(repo)

	trade := orderbook.Trade{
		TradeID:       "t-1",
		InstrumentID:  "BTC-C",
		TakerOrderID:  "B1",
		MakerOrderID:  "S1",
		BuyAccount:    "a1",
		SellAccount:   "a2",
		Price:         100,
		Qty:           4,
		AggressorSide: orderbook.BUY,
		Sequence:      3,
		Timestamp:     time.Now().UTC(),
	}

	msgs := []kafka.Message{
		feedMessage(t, trade),
		{Key: []byte("junk"), Value: []byte("{not json")},
	}
	if err := w.handleBatch(context.Background(), msgs); err != nil {
		t.Fatalf("handleBatch: %v", err)
	}

	// the junk message is dropped, the trade archived
	if len(repo.records) != 1 {
		t.Fatalf("archived %d records, want 1", len(repo.records))
	}
	rec := repo.records[0]
	if rec.TradeID != "t-1" || rec.Qty != 4 || rec.AggressorSide != "BUY" || rec.Sequence != 3 {
		t.Errorf("record mapped wrong: %+v", rec)
	}
}

func TestHandleBatchInsertFailure(t *testing.T) {
	repo := &fakeTradeRepo{err: errors.New("db down")}
	w := NewWorker(repo)

	msgs := []kafka.Message{feedMessage(t, orderbook.Trade{TradeID: "t-1", InstrumentID: "BTC-C"})}
	if err := w.handleBatch(context.Background(), msgs); err == nil {
		t.Errorf("insert failure must propagate so the batch is retried")
	}
}

func TestHandleBatchEmpty(t *testing.T) {
	repo := &fakeTradeRepo{err: errors.New("db down")}
	w := NewWorker(repo)

	// nothing decodable, nothing to insert, no error
	if err := w.handleBatch(context.Background(), nil); err != nil {
		t.Errorf("empty batch should be a no-op, got %v", err)
	}
}
