package matching

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore persists book state, trade history and the event log to
// Redis while matching against the same in-process core as the memory
// backend. Durable, shared across restarts, higher latency.
//
// Layout: <prefix>:book:<instrument> holds the serialized order list,
// <prefix>:trades:<instrument> an append-ordered trade list (trimmed),
// <prefix>:events the event log and <prefix>:sequence the counter.
type RedisStore struct {
	*MemoryStore

	client *redis.Client
	prefix string
}

// NewRedisStore connects the write-through hook and rebuilds in-process
// state by replaying the persisted event log from sequence zero.
func NewRedisStore(ctx context.Context, client *redis.Client, prefix string, maxTrades int) (*RedisStore, error) {
	if prefix == "" {
		prefix = "matching"
	}
	s := &RedisStore{
		MemoryStore: NewMemoryStore(maxTrades),
		client:      client,
		prefix:      prefix,
	}
	s.persist = s.writeThrough

	if err := s.bootstrap(ctx); err != nil {
		return nil, fmt.Errorf("%w: bootstrap: %v", ErrBackend, err)
	}
	return s, nil
}

func (s *RedisStore) bookKey(instrumentID string) string {
	return fmt.Sprintf("%s:book:%s", s.prefix, instrumentID)
}

func (s *RedisStore) tradesKey(instrumentID string) string {
	return fmt.Sprintf("%s:trades:%s", s.prefix, instrumentID)
}

func (s *RedisStore) eventsKey() string {
	return s.prefix + ":events"
}

func (s *RedisStore) sequenceKey() string {
	return s.prefix + ":sequence"
}

// bootstrap replays the durable event log into books, trade history and
// the in-process log. The log is the source of truth; everything else
// is a rebuildable cache.
func (s *RedisStore) bootstrap(ctx context.Context) error {
	raw, err := s.client.LRange(ctx, s.eventsKey(), 0, -1).Result()
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		zap.S().Info("redis store starting empty")
		return nil
	}

	events := make([]MatchingEvent, 0, len(raw))
	for _, item := range raw {
		var ev MatchingEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return fmt.Errorf("decode event: %v", err)
		}
		events = append(events, ev)
	}

	state, err := Replay(events)
	if err != nil {
		return err
	}

	for instrumentID, book := range state.Books {
		trades := state.Trades[instrumentID]
		if over := len(trades) - s.maxTrades; over > 0 {
			trades = trades[over:]
		}
		s.shards[instrumentID] = &shard{
			instrumentID: instrumentID,
			book:         book,
			trades:       trades,
		}
	}
	for _, ev := range events {
		if err := s.log.Append(ev); err != nil {
			return err
		}
	}

	zap.S().Infof("redis store bootstrapped: %d events, %d instruments, sequence %d",
		len(events), len(state.Books), state.Sequence)
	return nil
}

// writeThrough persists one mutation as a single MULTI/EXEC unit. A
// failure here halts the instrument: continuing would risk a sequence
// gap between the durable log and in-process state.
func (s *RedisStore) writeThrough(ctx context.Context, sh *shard, events []MatchingEvent, seq uint64) error {
	pipe := s.client.TxPipeline()

	if sh.book.IsEmpty() {
		pipe.Del(ctx, s.bookKey(sh.instrumentID))
	} else {
		encoded, err := json.Marshal(sh.book.Orders())
		if err != nil {
			return fmt.Errorf("encode book: %v", err)
		}
		pipe.Set(ctx, s.bookKey(sh.instrumentID), encoded, 0)
	}

	for _, ev := range events {
		encoded, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event: %v", err)
		}
		pipe.RPush(ctx, s.eventsKey(), encoded)

		if ev.Type == EventTradeExecuted && ev.Trade != nil {
			encoded, err := json.Marshal(ev.Trade)
			if err != nil {
				return fmt.Errorf("encode trade: %v", err)
			}
			key := s.tradesKey(sh.instrumentID)
			pipe.RPush(ctx, key, encoded)
			pipe.LTrim(ctx, key, int64(-s.maxTrades), -1)
		}
	}

	pipe.Set(ctx, s.sequenceKey(), seq, 0)

	_, err := pipe.Exec(ctx)
	return err
}
