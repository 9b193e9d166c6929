package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "tourism-retrieval/internal/common/errors"
	"tourism-retrieval/internal/common/logger"
	"tourism-retrieval/internal/learning"
	"tourism-retrieval/internal/models"
	"tourism-retrieval/internal/retrieval/engine"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ==========================
// Test Fakes
// ==========================

type fakeReader struct {
	msgs chan kafka.Message

	mu        sync.Mutex
	committed []int64
	closed    bool
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	r := &fakeReader{msgs: make(chan kafka.Message, len(msgs))}
	for _, m := range msgs {
		r.msgs <- m
	}
	return r
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeWriter struct {
	mu       sync.Mutex
	failures int
	attempts int
	written  []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts++
	if w.failures > 0 {
		w.failures--
		return errors.New("broker unavailable")
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.written...)
}

func (w *fakeWriter) Close() error { return nil }

// ==========================
// Test Helper Functions
// ==========================

func setupConsumer(t *testing.T, r Reader, w Writer) (*Consumer, *learning.Service) {
	log := logger.NewTestLogger(t)
	svc := learning.NewService(learning.Options{Logger: log})
	c := NewConsumer(r, w, engine.New(engine.Config{}, engine.Deps{Learning: svc, Logger: log}), log)
	c.dlqBackoff = time.Millisecond
	return c, svc
}

func eventMessage(t *testing.T, offset int64, ev Event) kafka.Message {
	data, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Topic: "tourism.feedback", Offset: offset, Value: data}
}

func runUntil(t *testing.T, c *Consumer, done func() bool) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	require.Eventually(t, done, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)
}

// ==========================
// Process Tests
// ==========================

func TestProcess_LearnsFromEvent(t *testing.T) {
	c, svc := setupConsumer(t, newFakeReader(), &fakeWriter{})

	err := c.Process(context.Background(), eventMessage(t, 1, Event{
		Question: "restaurantes em Campo Grande", Answer: "Casa do Peixe",
		Confidence: 0.45, Feedback: "negative", Category: "restaurant",
	}))
	require.NoError(t, err)

	assert.Len(t, svc.Interactions(), 1)
	assert.Len(t, svc.PriorityKnowledgeGaps(), 1)
}

func TestProcess_RejectsBadEvents(t *testing.T) {
	c, svc := setupConsumer(t, newFakeReader(), &fakeWriter{})

	tests := []struct {
		name  string
		value string
	}{
		{"not json", `{"question":`},
		{"missing confidence", `{"question":"q","answer":"a"}`},
		{"unknown feedback", `{"question":"q","answer":"a","confidence":0.5,"feedback":"meh"}`},
		{"blank question", `{"question":"   ","answer":"a","confidence":0.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Process(context.Background(), kafka.Message{Value: []byte(tt.value)})
			require.Error(t, err)
			assert.Equal(t, apperrors.ErrCodeInvalidFeedback, apperrors.CodeOf(err))
		})
	}
	assert.Empty(t, svc.Interactions())
}

// ==========================
// Run Tests
// ==========================

func TestRun_CommitsAndDeadLetters(t *testing.T) {
	r := newFakeReader(
		eventMessage(t, 10, Event{Question: "hotel em Bonito", Answer: "Zagaia", Confidence: 0.9, Feedback: "positive"}),
		kafka.Message{Topic: "tourism.feedback", Offset: 11, Value: []byte("garbage")},
		eventMessage(t, 12, Event{Question: "eventos em Corumbá", Answer: "?", Confidence: 0.2, Feedback: "negative"}),
	)
	w := &fakeWriter{}
	c, svc := setupConsumer(t, r, w)

	runUntil(t, c, func() bool { return len(r.Committed()) == 3 })

	assert.Equal(t, []int64{10, 11, 12}, r.Committed())
	assert.Len(t, svc.Interactions(), 2)

	written := w.Written()
	require.Len(t, written, 1)
	assert.Equal(t, []byte("garbage"), written[0].Value)

	headers := map[string]string{}
	for _, h := range written[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "11", headers["original_offset"])
	assert.Equal(t, "tourism.feedback", headers["original_topic"])
	assert.Equal(t, string(apperrors.ErrCodeInvalidFeedback), headers["error_code"])
}

func TestRun_RetriesDeadLetterWrites(t *testing.T) {
	r := newFakeReader(kafka.Message{Offset: 3, Value: []byte("{}")})
	w := &fakeWriter{failures: 2}
	c, _ := setupConsumer(t, r, w)

	runUntil(t, c, func() bool { return len(r.Committed()) == 1 })

	assert.Len(t, w.Written(), 1)
	w.mu.Lock()
	assert.Equal(t, 3, w.attempts)
	w.mu.Unlock()
}

func TestRun_HoldsPartitionUntilDeadLetterSucceeds(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Offset: 5, Value: []byte("{}")},
		eventMessage(t, 6, Event{Question: "passeios em Bonito", Answer: "Gruta", Confidence: 0.8}),
	)
	w := &fakeWriter{failures: defaultDLQAttempts + 2}
	c, svc := setupConsumer(t, r, w)

	runUntil(t, c, func() bool { return len(r.Committed()) == 2 })

	assert.Equal(t, []int64{5, 6}, r.Committed(), "the parked message is committed before anything after it")
	assert.Len(t, w.Written(), 1)
	assert.Len(t, svc.Interactions(), 1)
}

func TestRun_NeverCommitsPastUnparkedMessage(t *testing.T) {
	r := newFakeReader(
		kafka.Message{Offset: 7, Value: []byte("{}")},
		eventMessage(t, 8, Event{Question: "hotel em Bonito", Answer: "Zagaia", Confidence: 0.9}),
	)
	w := &fakeWriter{failures: 1 << 30}
	c, svc := setupConsumer(t, r, w)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Run(ctx) }()

	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.attempts > 2*defaultDLQAttempts
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)

	assert.Empty(t, r.Committed())
	assert.Empty(t, svc.Interactions(), "offset 8 is not consumed while offset 7 is unparked")
	assert.Len(t, r.msgs, 1)
}

func TestRun_StopsOnCancel(t *testing.T) {
	c, _ := setupConsumer(t, newFakeReader(), &fakeWriter{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, c.Run(ctx))
	assert.NoError(t, c.Close())
}

func TestProcess_ModelsFeedbackMapping(t *testing.T) {
	c, svc := setupConsumer(t, newFakeReader(), &fakeWriter{})

	require.NoError(t, c.Process(context.Background(), eventMessage(t, 1, Event{
		Question: "ônibus para Bonito", Answer: "Cruzeiro do Sul", Confidence: 70,
		CorrectAnswer: "Viação Cruzeiro do Sul, saída às 6h", UserID: "u-9", SessionID: "s-1",
	})))

	in := svc.Interactions()[0]
	assert.Equal(t, models.FeedbackNeutral, in.Feedback)
	assert.InDelta(t, 0.7, in.Confidence, 1e-9)
	assert.Equal(t, "s-1", in.Metadata.SessionID)
	assert.Equal(t, "Viação Cruzeiro do Sul, saída às 6h", in.Correction)
}
