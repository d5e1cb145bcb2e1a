package archive

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/openexchange/matching-core/pkg/kafka"
	"github.com/openexchange/matching-core/pkg/orderbook"
)

// Worker drains the trade feed topic and bulk-inserts executions into
// the archive database.
type Worker struct {
	trades ITrade
}

func NewWorker(trades ITrade) *Worker {
	return &Worker{trades: trades}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, consumer *kafka.ConsumerGroup) error {
	return consumer.Run(ctx, w.handleBatch)
}

// handleBatch decodes a feed batch into trade records. Undecodable
// messages are logged and dropped rather than poisoning the batch; an
// insert failure is returned so the consumer retries the whole batch.
func (w *Worker) handleBatch(ctx context.Context, msgs []kafka.Message) error {
	records := make([]*TradeRecord, 0, len(msgs))
	for _, msg := range msgs {
		var trade orderbook.Trade
		if err := json.Unmarshal(msg.Value, &trade); err != nil {
			zap.S().Errorf("drop undecodable feed message at offset %d: %v", msg.Offset, err)
			continue
		}
		records = append(records, NewTradeRecord(&trade))
	}

	if _, err := w.trades.BulkCreate(ctx, records); err != nil {
		return err
	}
	if len(records) > 0 {
		zap.S().Debugf("archived %d trades", len(records))
	}
	return nil
}
