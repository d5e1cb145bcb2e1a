package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openexchange/matching-core/pkg/orderbook"
)

// shard is the per-instrument unit of exclusion: one book, its trade
// history and a halt flag, guarded by one RWMutex. Writers for an
// instrument queue on the mutex, and that queuing order is exactly the
// acceptance-sequence fairness among concurrent submissions. Different
// instruments proceed in parallel.
type shard struct {
	instrumentID string

	mu     sync.RWMutex
	book   *orderbook.OrderBook
	trades []orderbook.Trade
	halted bool
}

// persistFunc is the backend write-through hook, called inside the
// shard's critical section so no partial state is ever observable.
type persistFunc func(ctx context.Context, sh *shard, events []MatchingEvent, seq uint64) error

// MemoryStore keeps all matching state in process. Fast, non-durable.
// It is also the matching core of persistent backends, which plug in a
// persist hook.
type MemoryStore struct {
	mu     sync.RWMutex // guards shards map
	shards map[string]*shard

	logMu sync.Mutex
	log   *EventLog

	maxTrades int
	callbacks []func([]orderbook.Trade)
	persist   persistFunc
}

func NewMemoryStore(maxTrades int) *MemoryStore {
	if maxTrades <= 0 {
		maxTrades = defaultMaxTrades
	}
	return &MemoryStore{
		shards:    make(map[string]*shard),
		log:       NewEventLog(),
		maxTrades: maxTrades,
	}
}

// shardFor returns the instrument's shard, creating book state lazily
// on first reference.
func (s *MemoryStore) shardFor(instrumentID string) *shard {
	s.mu.RLock()
	sh, ok := s.shards[instrumentID]
	s.mu.RUnlock()
	if ok {
		return sh
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sh, ok = s.shards[instrumentID]; ok {
		return sh
	}
	sh = &shard{
		instrumentID: instrumentID,
		book:         orderbook.NewOrderBook(instrumentID),
	}
	s.shards[instrumentID] = sh
	return sh
}

func (s *MemoryStore) lookupShard(instrumentID string) (*shard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shards[instrumentID]
	return sh, ok
}

func (s *MemoryStore) SubmitOrder(ctx context.Context, order *orderbook.BookOrder) (*orderbook.MatchResult, error) {
	sh := s.shardFor(order.InstrumentID)
	result, err := s.submitLocked(ctx, sh, order)
	if err != nil {
		return nil, err
	}

	// Callbacks fire after the shard section is released; a callback
	// may query the store, including this instrument.
	if result.HasTrades() {
		for _, cb := range s.callbacks {
			cb(result.Trades)
		}
	}
	return result, nil
}

func (s *MemoryStore) submitLocked(ctx context.Context, sh *shard, order *orderbook.BookOrder) (*orderbook.MatchResult, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.halted {
		return nil, fmt.Errorf("%w: %s", ErrInstrumentHalted, sh.instrumentID)
	}

	result, err := sh.book.Match(order)
	if err != nil {
		return nil, err
	}

	// Sequence assignment and append happen together under the log
	// section, keeping the global sequence gapless and append-ordered
	// while other instruments match in parallel.
	s.logMu.Lock()
	seq := s.log.Sequence() + 1
	order.Sequence = seq
	events := make([]MatchingEvent, 0, len(result.Trades)+1)
	events = append(events, NewOrderAccepted(*order, result.ShouldInsert, seq))
	for i := range result.Trades {
		seq++
		result.Trades[i].Sequence = seq
		events = append(events, NewTradeExecuted(result.Trades[i]))
	}
	appendErr := s.appendAllLocked(events)
	s.logMu.Unlock()

	if appendErr != nil {
		sh.halted = true
		zap.S().Errorf("halting %s: %v", sh.instrumentID, appendErr)
		return nil, appendErr
	}

	if result.ShouldInsert {
		sh.book.Insert(order)
	}
	if result.HasTrades() {
		sh.trades = append(sh.trades, result.Trades...)
		if over := len(sh.trades) - s.maxTrades; over > 0 {
			sh.trades = sh.trades[over:]
		}
	}

	if s.persist != nil {
		if err := s.persist(ctx, sh, events, seq); err != nil {
			sh.halted = true
			zap.S().Errorf("halting %s: write-through failed: %v", sh.instrumentID, err)
			return nil, fmt.Errorf("%w: %v", ErrBackend, err)
		}
	}

	return result, nil
}

func (s *MemoryStore) CancelOrder(ctx context.Context, instrumentID, orderID string) (orderbook.CancelResult, error) {
	sh, ok := s.lookupShard(instrumentID)
	if !ok {
		return orderbook.CancelResult{}, nil
	}

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if sh.halted {
		return orderbook.CancelResult{}, fmt.Errorf("%w: %s", ErrInstrumentHalted, instrumentID)
	}

	result := sh.book.Cancel(orderID)
	if !result.Cancelled {
		// not found: a legitimate outcome, log and sequence untouched
		return result, nil
	}

	s.logMu.Lock()
	seq := s.log.Sequence() + 1
	events := []MatchingEvent{NewOrderCancelled(instrumentID, orderID, seq)}
	appendErr := s.appendAllLocked(events)
	s.logMu.Unlock()

	if appendErr != nil {
		sh.halted = true
		zap.S().Errorf("halting %s: %v", instrumentID, appendErr)
		return orderbook.CancelResult{}, appendErr
	}

	if s.persist != nil {
		if err := s.persist(ctx, sh, events, seq); err != nil {
			sh.halted = true
			zap.S().Errorf("halting %s: write-through failed: %v", instrumentID, err)
			return orderbook.CancelResult{}, fmt.Errorf("%w: %v", ErrBackend, err)
		}
	}

	return result, nil
}

func (s *MemoryStore) appendAllLocked(events []MatchingEvent) error {
	for _, ev := range events {
		if err := s.log.Append(ev); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) GetBook(ctx context.Context, instrumentID string, depth int) (*orderbook.Snapshot, error) {
	sh, ok := s.lookupShard(instrumentID)
	if !ok {
		return &orderbook.Snapshot{InstrumentID: instrumentID, Timestamp: time.Now().UTC()}, nil
	}

	sh.mu.RLock()
	snap := sh.book.Snapshot(depth)
	sh.mu.RUnlock()

	s.logMu.Lock()
	snap.Sequence = s.log.Sequence()
	s.logMu.Unlock()
	return snap, nil
}

func (s *MemoryStore) GetBestBid(ctx context.Context, instrumentID string) (float64, bool, error) {
	sh, ok := s.lookupShard(instrumentID)
	if !ok {
		return 0, false, nil
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	price, ok := sh.book.BestBid()
	return price, ok, nil
}

func (s *MemoryStore) GetBestAsk(ctx context.Context, instrumentID string) (float64, bool, error) {
	sh, ok := s.lookupShard(instrumentID)
	if !ok {
		return 0, false, nil
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	price, ok := sh.book.BestAsk()
	return price, ok, nil
}

func (s *MemoryStore) GetSpread(ctx context.Context, instrumentID string) (float64, bool, error) {
	sh, ok := s.lookupShard(instrumentID)
	if !ok {
		return 0, false, nil
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	spread, ok := sh.book.Spread()
	return spread, ok, nil
}

func (s *MemoryStore) HasBook(ctx context.Context, instrumentID string) (bool, error) {
	_, ok := s.lookupShard(instrumentID)
	return ok, nil
}

func (s *MemoryStore) Instruments(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.shards))
	for id := range s.shards {
		out = append(out, id)
	}
	return out, nil
}

// GetTrades returns the most recent executions in chronological order,
// oldest first.
func (s *MemoryStore) GetTrades(ctx context.Context, instrumentID string, limit int) ([]orderbook.Trade, error) {
	sh, ok := s.lookupShard(instrumentID)
	if !ok {
		return nil, nil
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	start := 0
	if limit > 0 && len(sh.trades) > limit {
		start = len(sh.trades) - limit
	}
	out := make([]orderbook.Trade, len(sh.trades)-start)
	copy(out, sh.trades[start:])
	return out, nil
}

func (s *MemoryStore) AppendEvent(ctx context.Context, ev MatchingEvent) error {
	s.logMu.Lock()
	err := s.log.Append(ev)
	s.logMu.Unlock()
	if err != nil {
		if sh, ok := s.lookupShard(ev.InstrumentID); ok {
			sh.mu.Lock()
			sh.halted = true
			sh.mu.Unlock()
		}
		return err
	}
	return nil
}

func (s *MemoryStore) GetEvents(ctx context.Context, fromSequence uint64) ([]MatchingEvent, error) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	return s.log.GetFrom(fromSequence), nil
}

func (s *MemoryStore) GetSequence(ctx context.Context) (uint64, error) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	return s.log.Sequence(), nil
}

func (s *MemoryStore) BookRef(instrumentID string) *orderbook.OrderBook {
	sh, ok := s.lookupShard(instrumentID)
	if !ok {
		return nil
	}
	return sh.book
}

func (s *MemoryStore) BookCopy(instrumentID string) *orderbook.OrderBook {
	sh, ok := s.lookupShard(instrumentID)
	if !ok {
		return nil
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return orderbook.Restore(instrumentID, sh.book.Orders())
}

func (s *MemoryStore) RegisterTradeCallback(fn func([]orderbook.Trade)) {
	s.callbacks = append(s.callbacks, fn)
}
