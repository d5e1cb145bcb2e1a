// Package kafka wraps segmentio/kafka-go with an async producer and a
// batch-mode consumer group, the two shapes the matching services need:
// the server publishes executions, the archiver drains them in bulk.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Key       []byte
	Value     []byte
	Time      time.Time
	Headers   map[string]string
	raw       kafkago.Message
}

type ProducerConfig struct {
	Brokers        []string `yaml:"brokers"`
	BatchSize      int      `yaml:"batch_size"`
	BatchBytes     int64    `yaml:"batch_bytes"`
	BatchTimeoutMs int64    `yaml:"batch_timeout_ms"`
}

type Producer struct {
	w *kafkago.Writer
}

func NewProducer(cfg ProducerConfig) *Producer {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchBytes == 0 {
		cfg.BatchBytes = 1 << 20
	}
	if cfg.BatchTimeoutMs == 0 {
		cfg.BatchTimeoutMs = 50
	}
	return &Producer{w: &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Balancer:               &kafkago.Hash{},
		BatchSize:              cfg.BatchSize,
		BatchBytes:             cfg.BatchBytes,
		BatchTimeout:           time.Duration(cfg.BatchTimeoutMs) * time.Millisecond,
		AllowAutoTopicCreation: true,
		RequiredAcks:           kafkago.RequireNone,
		Async:                  true,
	}}
}

func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	if p == nil || p.w == nil {
		return errors.New("producer not initialized")
	}
	var kh []kafkago.Header
	for k, v := range headers {
		kh = append(kh, kafkago.Header{Key: k, Value: []byte(v)})
	}
	return p.w.WriteMessages(ctx, kafkago.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: kh,
		Time:    time.Now(),
	})
}

func (p *Producer) PublishJSON(ctx context.Context, topic string, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, topic, []byte(key), b, nil)
}

func (p *Producer) Close() error {
	if p == nil || p.w == nil {
		return nil
	}
	return p.w.Close()
}

type ConsumerConfig struct {
	Brokers        []string `yaml:"brokers"`
	GroupID        string   `yaml:"group_id"`
	Topic          string   `yaml:"topic"`
	WorkerCount    int      `yaml:"worker_count"`
	MaxRetries     int      `yaml:"max_retries"`
	DLQTopic       string   `yaml:"dlq_topic"`
	BatchSize      int      `yaml:"batch_size"`
	BatchTimeoutMs int64    `yaml:"batch_timeout_ms"`
}

// ConsumerGroup fetches messages, gathers them into batches and hands
// each batch to the handler. A batch is committed only after the
// handler succeeds or retries are exhausted (dead-lettered when a DLQ
// topic is configured).
type ConsumerGroup struct {
	r   *kafkago.Reader
	cfg ConsumerConfig
	dlq *Producer
}

func NewConsumerGroup(cfg ConsumerConfig) (*ConsumerGroup, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no brokers configured")
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.BatchTimeoutMs <= 0 {
		cfg.BatchTimeoutMs = 200
	}

	rd := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafkago.FirstOffset,
		MaxWait:     500 * time.Millisecond,
		MinBytes:    1,
		MaxBytes:    10 << 20,
	})

	var dlq *Producer
	if cfg.DLQTopic != "" {
		dlq = NewProducer(ProducerConfig{Brokers: cfg.Brokers})
	}
	return &ConsumerGroup{r: rd, cfg: cfg, dlq: dlq}, nil
}

func (cg *ConsumerGroup) Close() error {
	if cg == nil {
		return nil
	}
	if cg.dlq != nil {
		_ = cg.dlq.Close()
	}
	if cg.r != nil {
		return cg.r.Close()
	}
	return nil
}

// Run blocks until ctx is cancelled, delivering batches to handler
// from a pool of workers.
func (cg *ConsumerGroup) Run(ctx context.Context, handler func(context.Context, []Message) error) error {
	if cg == nil || cg.r == nil {
		return errors.New("consumer not initialized")
	}

	batchTimeout := time.Duration(cg.cfg.BatchTimeoutMs) * time.Millisecond
	batches := make(chan []kafkago.Message, cg.cfg.WorkerCount)

	go func() {
		defer close(batches)
		var buf []kafkago.Message
		deadline := time.Now().Add(batchTimeout)
		for {
			fetchCtx, cancel := context.WithDeadline(ctx, deadline)
			m, err := cg.r.FetchMessage(fetchCtx)
			cancel()
			switch {
			case err == nil:
				buf = append(buf, m)
			case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
				// batch window elapsed, flush whatever we have
			case errors.Is(err, context.Canceled):
				return
			default:
				zap.S().Warnf("kafka fetch error: %v", err)
				time.Sleep(200 * time.Millisecond)
				continue
			}

			if len(buf) >= cg.cfg.BatchSize || (len(buf) > 0 && !time.Now().Before(deadline)) {
				select {
				case batches <- buf:
					buf = nil
				case <-ctx.Done():
					return
				}
			}
			if !time.Now().Before(deadline) {
				deadline = time.Now().Add(batchTimeout)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < cg.cfg.WorkerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ms := range batches {
				cg.process(ctx, ms, handler)
			}
		}()
	}

	// batches closes when the reader loop exits, so every worker
	// drains and returns; no goroutine outlives Run.
	wg.Wait()
	return ctx.Err()
}

func (cg *ConsumerGroup) process(ctx context.Context, ms []kafkago.Message, handler func(context.Context, []Message) error) {
	wrapped := make([]Message, len(ms))
	for i, m := range ms {
		wrapped[i] = wrapMessage(m)
	}

	for attempt := 0; ; attempt++ {
		err := handler(ctx, wrapped)
		if err == nil {
			_ = cg.r.CommitMessages(ctx, ms...)
			return
		}
		if attempt >= cg.cfg.MaxRetries {
			zap.S().Errorf("batch of %d failed after %d attempts: %v", len(ms), attempt+1, err)
			if cg.dlq != nil {
				for _, m := range ms {
					_ = cg.dlq.Publish(ctx, cg.cfg.DLQTopic, m.Key, m.Value, headersToMap(m.Headers))
				}
			}
			_ = cg.r.CommitMessages(ctx, ms...)
			return
		}
		select {
		case <-time.After(retryBackoff(attempt + 1)):
		case <-ctx.Done():
			return
		}
	}
}

func wrapMessage(m kafkago.Message) Message {
	headers := map[string]string{}
	for _, h := range m.Headers {
		headers[h.Key] = string(h.Value)
	}
	return Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Time:      m.Time,
		Headers:   headers,
		raw:       m,
	}
}

func headersToMap(hs []kafkago.Header) map[string]string {
	out := map[string]string{}
	for _, h := range hs {
		out[h.Key] = string(h.Value)
	}
	return out
}

func retryBackoff(attempt int) time.Duration {
	const (
		min = 100 * time.Millisecond
		max = 10 * time.Second
	)
	d := time.Duration(float64(min) * math.Pow(2, float64(attempt-1)))
	if d > max {
		d = max
	}
	if d > 0 {
		d = time.Duration(rand.Int63n(int64(d)))
	}
	return d
}

// HashKey produces a stable 8-byte partition key for a string id.
func HashKey(s string) []byte {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	sum := h.Sum64()
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(sum >> (56 - 8*i))
	}
	return b
}
