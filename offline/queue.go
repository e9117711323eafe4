// Package offline makes mutating calls resilient to transient connectivity
// loss. Requests that cannot reach the network are persisted to a durable
// FIFO queue and replayed, in order, when the device comes back online.
package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/localspot/localspot-go/store"
	"github.com/rs/zerolog"
)

const queueKey = "pendingRequests"

// PendingRequest is a mutation captured while offline.
type PendingRequest struct {
	ID       uuid.UUID       `json:"id"`
	Endpoint string          `json:"endpoint"`
	Method   string          `json:"method"`
	Body     json.RawMessage `json:"body,omitempty"`
	QueuedAt time.Time       `json:"queuedAt"`
}

// Queue is a durable ordered list of pending requests. Every mutation is
// persisted immediately so the queue survives process restarts.
type Queue struct {
	store store.Store
	log   zerolog.Logger
	mu    sync.Mutex
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueLogger sets the queue logger.
func WithQueueLogger(log zerolog.Logger) QueueOption {
	return func(q *Queue) { q.log = log }
}

// NewQueue creates a Queue backed by s.
func NewQueue(s store.Store, opts ...QueueOption) *Queue {
	q := &Queue{store: s, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *Queue) load(ctx context.Context) ([]PendingRequest, error) {
	raw, err := q.store.Get(ctx, queueKey)
	if err == store.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pending requests: %w", err)
	}
	var pending []PendingRequest
	if err := json.Unmarshal(raw, &pending); err != nil {
		return nil, fmt.Errorf("decode pending requests: %w", err)
	}
	return pending, nil
}

func (q *Queue) save(ctx context.Context, pending []PendingRequest) error {
	raw, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("encode pending requests: %w", err)
	}
	if err := q.store.Set(ctx, queueKey, raw); err != nil {
		return fmt.Errorf("save pending requests: %w", err)
	}
	return nil
}

// Enqueue appends a pending request and persists the queue before returning.
func (q *Queue) Enqueue(ctx context.Context, method, endpoint string, body []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.load(ctx)
	if err != nil {
		return err
	}
	req := PendingRequest{
		ID:       uuid.New(),
		Endpoint: endpoint,
		Method:   method,
		Body:     body,
		QueuedAt: time.Now(),
	}
	if err := q.save(ctx, append(pending, req)); err != nil {
		return err
	}
	q.log.Info().Str("method", method).Str("endpoint", endpoint).Msg("queued offline request")
	return nil
}

// PendingCount reports the number of queued requests, for UI indicators.
// Read failures report zero.
func (q *Queue) PendingCount(ctx context.Context) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.load(ctx)
	if err != nil {
		q.log.Warn().Err(err).Msg("pending count read failed")
		return 0
	}
	return len(pending)
}

// takeAll returns the current queue contents and clears the durable queue.
func (q *Queue) takeAll(ctx context.Context) ([]PendingRequest, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}
	if err := q.save(ctx, []PendingRequest{}); err != nil {
		return nil, err
	}
	return pending, nil
}

// requeue appends req to the end of the current queue, preserving the
// relative order of replay failures.
func (q *Queue) requeue(ctx context.Context, req PendingRequest) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	pending, err := q.load(ctx)
	if err != nil {
		return err
	}
	return q.save(ctx, append(pending, req))
}
