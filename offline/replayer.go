package offline

import (
	"context"
	"sync"

	"github.com/localspot/localspot-go/connectivity"
	"github.com/rs/zerolog"
)

// Doer dispatches a replayed request. Implemented by the request layer.
type Doer interface {
	Do(ctx context.Context, method, endpoint string, body []byte) error
}

// Replayer drains the pending-request queue through a Doer whenever
// connectivity transitions from offline to online. Replay failures are
// re-queued and retried on the next transition rather than in a tight loop,
// which bounds retry storms at the cost of redelivery delay.
type Replayer struct {
	queue *Queue
	doer  Doer
	log   zerolog.Logger

	mu       sync.Mutex
	draining bool
}

// ReplayerOption configures a Replayer.
type ReplayerOption func(*Replayer)

// WithReplayerLogger sets the replayer logger.
func WithReplayerLogger(log zerolog.Logger) ReplayerOption {
	return func(r *Replayer) { r.log = log }
}

// NewReplayer creates a Replayer that drains q through doer.
func NewReplayer(q *Queue, doer Doer, opts ...ReplayerOption) *Replayer {
	r := &Replayer{queue: q, doer: doer, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Attach subscribes the replayer to m, draining on every offline→online
// transition. The returned cancel detaches it.
func (r *Replayer) Attach(m *connectivity.Monitor) (cancel func()) {
	return m.Subscribe(func(online bool) {
		if online {
			r.Drain(context.Background())
		}
	})
}

// Drain takes a snapshot of the queue, clears it, and attempts each request
// in original enqueue order. Failed requests are re-appended for the next
// online transition.
//
// The snapshot is removed from durable storage before dispatch, so a crash
// between removal and a successful replay can drop a mutation: delivery is
// at-most-once, not exactly-once. Only one drain pass runs at a time.
func (r *Replayer) Drain(ctx context.Context) {
	r.mu.Lock()
	if r.draining {
		r.mu.Unlock()
		return
	}
	r.draining = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.draining = false
		r.mu.Unlock()
	}()

	snapshot, err := r.queue.takeAll(ctx)
	if err != nil {
		r.log.Warn().Err(err).Msg("drain: reading pending queue failed")
		return
	}
	if len(snapshot) == 0 {
		return
	}
	r.log.Info().Int("count", len(snapshot)).Msg("replaying pending requests")

	for _, req := range snapshot {
		if err := r.doer.Do(ctx, req.Method, req.Endpoint, req.Body); err != nil {
			r.log.Warn().Err(err).
				Str("method", req.Method).
				Str("endpoint", req.Endpoint).
				Msg("replay failed, re-queueing")
			if rqErr := r.queue.requeue(ctx, req); rqErr != nil {
				r.log.Error().Err(rqErr).Str("endpoint", req.Endpoint).Msg("re-queue failed, mutation lost")
			}
		}
	}
}
