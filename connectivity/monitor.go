// Package connectivity tracks the device's online/offline state and fans out
// transition events to subscribers.
package connectivity

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Monitor holds the current connectivity state. State changes come from the
// platform shell via SetOnline, or from an optional Probe loop. Subscribers
// are notified on transitions only, never on repeated reports of the same
// state.
type Monitor struct {
	log zerolog.Logger

	mu     sync.Mutex
	online bool
	nextID int
	subs   map[int]func(online bool)
}

// MonitorOption configures a Monitor.
type MonitorOption func(*Monitor)

// WithLogger sets the monitor's logger.
func WithLogger(log zerolog.Logger) MonitorOption {
	return func(m *Monitor) { m.log = log }
}

// NewMonitor creates a Monitor that starts in the online state.
func NewMonitor(opts ...MonitorOption) *Monitor {
	m := &Monitor{
		log:    zerolog.Nop(),
		online: true,
		subs:   make(map[int]func(bool)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Online reports the current connectivity state.
func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// SetOnline records a connectivity report. Subscribers run synchronously, in
// the caller's goroutine, only when the state actually changed.
func (m *Monitor) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	subs := make([]func(bool), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	m.log.Debug().Bool("online", online).Msg("connectivity changed")
	for _, fn := range subs {
		fn(online)
	}
}

// Subscribe registers fn for transition events and returns a cancel function.
func (m *Monitor) Subscribe(fn func(online bool)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Probe polls url with HEAD requests every interval and feeds the result into
// SetOnline. It blocks until ctx is cancelled; run it in its own goroutine.
func (m *Monitor) Probe(ctx context.Context, url string, interval time.Duration) {
	client := &http.Client{Timeout: interval / 2}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
			if err != nil {
				m.log.Warn().Err(err).Msg("connectivity probe request")
				continue
			}
			resp, err := client.Do(req)
			if err != nil {
				m.SetOnline(false)
				continue
			}
			resp.Body.Close()
			m.SetOnline(true)
		}
	}
}
