package kafkawrapper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	kafka "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type memWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *memWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishJSON(t *testing.T) {
	w := &memWriter{}
	p := newProducer(w)
	at := time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	p.now = func() time.Time { return at }

	err := p.PublishJSON(context.Background(), "trades", "S1", map[string]int{"amount": 30}, map[string]string{"type": "trade"})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	m := w.msgs[0]
	assert.Equal(t, "trades", m.Topic)
	assert.Equal(t, []byte("S1"), m.Key)
	assert.JSONEq(t, `{"amount":30}`, string(m.Value))
	assert.Equal(t, at, m.Time)
	assert.Equal(t, []kafka.Header{{Key: "type", Value: []byte("trade")}}, m.Headers)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

type countingWriter struct {
	memWriter
	calls int
}

func (w *countingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.calls++
	return w.memWriter.WriteMessages(ctx, msgs...)
}

func TestPublishJSONBatchWritesOnce(t *testing.T) {
	w := &countingWriter{}
	p := newProducer(w)

	records := []JSONRecord{
		{Key: "S1", Value: map[string]int{"amount": 30}},
		{Key: "S2", Value: map[string]int{"amount": 5}},
	}
	require.NoError(t, p.PublishJSONBatch(context.Background(), "trades", records, map[string]string{"type": "trade"}))

	assert.Equal(t, 1, w.calls)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, []byte("S2"), w.msgs[1].Key)
	assert.JSONEq(t, `{"amount":5}`, string(w.msgs[1].Value))

	require.NoError(t, p.PublishJSONBatch(context.Background(), "trades", nil, nil))
	assert.Equal(t, 1, w.calls)

	var nilProducer *Producer
	assert.ErrorIs(t, nilProducer.PublishJSONBatch(context.Background(), "trades", records, nil), errNotInitialized)
}

func TestPublishUninitialized(t *testing.T) {
	var p *Producer
	assert.ErrorIs(t, p.Publish(context.Background(), "trades", nil, nil, nil), errNotInitialized)
	assert.NoError(t, p.Close())
}

type memReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
}

func (r *memReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		m := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *memReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *memReader) Close() error { return nil }

func (r *memReader) committedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.committed)
}

func newTestConsumer(t *testing.T, r *memReader, maxRetries int) *ConsumerGroup {
	cfg := ConsumerConfig{
		Topic:        "trades",
		MaxRetries:   maxRetries,
		BackoffMin:   time.Millisecond,
		BackoffMax:   2 * time.Millisecond,
		BatchSize:    2,
		BatchTimeout: 5 * time.Millisecond,
	}
	cfg.applyDefaults()
	return &ConsumerGroup{r: r, cfg: cfg, logger: zaptest.NewLogger(t)}
}

func messages(n int) []kafka.Message {
	out := make([]kafka.Message, n)
	for i := range out {
		out[i] = kafka.Message{
			Topic:   "trades",
			Offset:  int64(i),
			Value:   []byte{byte('a' + i)},
			Headers: []kafka.Header{{Key: "type", Value: []byte("trade")}},
		}
	}
	return out
}

func TestConsumerDeliversBatchesAndCommits(t *testing.T) {
	r := &memReader{pending: messages(5)}
	cg := newTestConsumer(t, r, 0)

	var (
		mu   sync.Mutex
		seen []Message
	)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- cg.Run(ctx, func(_ context.Context, batch []Message) error {
			mu.Lock()
			defer mu.Unlock()
			assert.LessOrEqual(t, len(batch), 2)
			seen = append(seen, batch...)
			return nil
		})
	}()

	require.Eventually(t, func() bool { return r.committedCount() == 5 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 5)
	assert.Equal(t, "trade", seen[0].Headers["type"])
	assert.Equal(t, int64(4), seen[4].Offset)
}

func TestConsumerRetriesThenCommits(t *testing.T) {
	r := &memReader{pending: messages(1)}
	cg := newTestConsumer(t, r, 2)

	var (
		mu       sync.Mutex
		attempts int
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = cg.Run(ctx, func(context.Context, []Message) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			return errors.New("handler down")
		})
	}()

	require.Eventually(t, func() bool { return r.committedCount() == 1 }, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, 3, attempts)
	mu.Unlock()
}

func TestBackoffDurationBounded(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := backoffDuration(10*time.Millisecond, 50*time.Millisecond, attempt)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.Less(t, d, 50*time.Millisecond)
	}
}
