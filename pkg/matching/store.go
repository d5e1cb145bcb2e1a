package matching

import (
	"context"
	"strings"

	"go.uber.org/zap"

	redis_wrapper "github.com/openexchange/matching-core/pkg/infra/redis"
	"github.com/openexchange/matching-core/pkg/orderbook"
)

// Store unifies order submission, cancellation and querying behind one
// capability surface with interchangeable backends. Submission is one
// atomic logical unit: matching, event append and book/trade updates
// are never observable half-applied.
type Store interface {
	// SubmitOrder validates, matches, appends events and persists the
	// updated book and trades as one unit. An unknown instrument gets
	// an empty book created on first reference.
	SubmitOrder(ctx context.Context, order *orderbook.BookOrder) (*orderbook.MatchResult, error)
	// CancelOrder removes a resting order. A missing order is a
	// not-found result, never an error, and leaves the log untouched.
	CancelOrder(ctx context.Context, instrumentID, orderID string) (orderbook.CancelResult, error)

	// GetBook returns a snapshot limited to depth price levels per
	// side (0 = full), empty for unknown instruments.
	GetBook(ctx context.Context, instrumentID string, depth int) (*orderbook.Snapshot, error)
	GetBestBid(ctx context.Context, instrumentID string) (float64, bool, error)
	GetBestAsk(ctx context.Context, instrumentID string) (float64, bool, error)
	GetSpread(ctx context.Context, instrumentID string) (float64, bool, error)
	HasBook(ctx context.Context, instrumentID string) (bool, error)
	Instruments(ctx context.Context) ([]string, error)

	// GetTrades returns up to limit recent executions in chronological
	// order, oldest first.
	GetTrades(ctx context.Context, instrumentID string, limit int) ([]orderbook.Trade, error)

	// Event log surface, exposed for audit and recovery.
	AppendEvent(ctx context.Context, ev MatchingEvent) error
	GetEvents(ctx context.Context, fromSequence uint64) ([]MatchingEvent, error)
	GetSequence(ctx context.Context) (uint64, error)

	// BookRef hands out the live book for advanced read paths. Cheap;
	// callers must treat it as read-only and prefer it on hot paths.
	BookRef(instrumentID string) *orderbook.OrderBook
	// BookCopy deep-copies the book. Expensive; cold paths only.
	BookCopy(instrumentID string) *orderbook.OrderBook

	// RegisterTradeCallback subscribes to executions, e.g. for the
	// market-data feed. Callbacks run outside the matching section.
	RegisterTradeCallback(fn func([]orderbook.Trade))
}

// Config selects and tunes the storage backend. The choice is made
// once at startup, not per call.
type Config struct {
	// Type is "memory" or "redis". Anything else falls back to memory
	// with a warning.
	Type string `yaml:"type"`
	// MaxTradesPerInstrument bounds the in-process trade history.
	MaxTradesPerInstrument int `yaml:"max_trades_per_instrument"`
	// KeyPrefix namespaces redis keys, default "matching".
	KeyPrefix string `yaml:"key_prefix"`

	Redis *redis_wrapper.RedisConfig `yaml:"redis"`
}

const defaultMaxTrades = 1000

// New builds the configured store. Backend selection is static; an
// unrecognized selector degrades to the in-memory backend rather than
// failing startup.
func New(ctx context.Context, cfg *Config) (Store, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	maxTrades := cfg.MaxTradesPerInstrument
	if maxTrades <= 0 {
		maxTrades = defaultMaxTrades
	}

	switch strings.ToLower(cfg.Type) {
	case "redis":
		client, err := redis_wrapper.InitRedis(cfg.Redis)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(ctx, client, cfg.KeyPrefix, maxTrades)
	case "memory", "inmemory", "in_memory", "":
		return NewMemoryStore(maxTrades), nil
	default:
		zap.S().Warnf("unknown store type %q, falling back to in-memory", cfg.Type)
		return NewMemoryStore(maxTrades), nil
	}
}
