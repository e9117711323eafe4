package offline_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/localspot/localspot-go/connectivity"
	"github.com/localspot/localspot-go/offline"
	"github.com/localspot/localspot-go/store/storefakes"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type replayedCall struct {
	method   string
	endpoint string
	body     string
}

// fakeDoer records replay attempts and fails endpoints listed in failing.
type fakeDoer struct {
	mu      sync.Mutex
	calls   []replayedCall
	failing map[string]bool
}

func (d *fakeDoer) Do(_ context.Context, method, endpoint string, body []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, replayedCall{method: method, endpoint: endpoint, body: string(body)})
	if d.failing[endpoint] {
		return errors.New("still unreachable")
	}
	return nil
}

func (d *fakeDoer) recorded() []replayedCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]replayedCall(nil), d.calls...)
}

func TestEnqueuePersistsImmediately(t *testing.T) {
	ctx := context.Background()
	fs := storefakes.NewFakeStore()
	q := offline.NewQueue(fs)

	require.NoError(t, q.Enqueue(ctx, "POST", "/businesses/b1/reviews", []byte(`{"rating":5}`)))
	require.Equal(t, 1, q.PendingCount(ctx))

	// A fresh queue over the same store sees the persisted entry.
	require.Equal(t, 1, offline.NewQueue(fs).PendingCount(ctx))
}

func TestDrainReplaysInEnqueueOrder(t *testing.T) {
	ctx := context.Background()
	q := offline.NewQueue(storefakes.NewFakeStore())
	doer := &fakeDoer{}

	require.NoError(t, q.Enqueue(ctx, "POST", "/a", []byte(`1`)))
	require.NoError(t, q.Enqueue(ctx, "PUT", "/b", []byte(`2`)))
	require.NoError(t, q.Enqueue(ctx, "DELETE", "/c", nil))

	offline.NewReplayer(q, doer).Drain(ctx)

	require.Equal(t, []replayedCall{
		{method: "POST", endpoint: "/a", body: "1"},
		{method: "PUT", endpoint: "/b", body: "2"},
		{method: "DELETE", endpoint: "/c", body: ""},
	}, doer.recorded())
	require.Equal(t, 0, q.PendingCount(ctx))
}

func TestDrainRequeuesFailuresInOrder(t *testing.T) {
	ctx := context.Background()
	q := offline.NewQueue(storefakes.NewFakeStore())
	doer := &fakeDoer{failing: map[string]bool{"/a": true, "/c": true}}

	require.NoError(t, q.Enqueue(ctx, "POST", "/a", nil))
	require.NoError(t, q.Enqueue(ctx, "POST", "/b", nil))
	require.NoError(t, q.Enqueue(ctx, "POST", "/c", nil))

	r := offline.NewReplayer(q, doer)
	r.Drain(ctx)

	// Failed requests stay queued for the next transition, in order.
	require.Equal(t, 2, q.PendingCount(ctx))

	// Next drain retries only the failures; let them succeed this time.
	doer.failing = nil
	r.Drain(ctx)
	require.Equal(t, 0, q.PendingCount(ctx))

	calls := doer.recorded()
	require.Len(t, calls, 5)
	require.Equal(t, "/a", calls[3].endpoint)
	require.Equal(t, "/c", calls[4].endpoint)
}

func TestReplayerAttachDrainsOnReconnect(t *testing.T) {
	ctx := context.Background()
	q := offline.NewQueue(storefakes.NewFakeStore())
	doer := &fakeDoer{}
	monitor := connectivity.NewMonitor()

	cancel := offline.NewReplayer(q, doer).Attach(monitor)
	defer cancel()

	monitor.SetOnline(false)
	require.NoError(t, q.Enqueue(ctx, "POST", "/reviews", []byte(`{"rating":4}`)))

	monitor.SetOnline(true)

	calls := doer.recorded()
	require.Len(t, calls, 1)
	require.Equal(t, "/reviews", calls[0].endpoint)
	require.Equal(t, 0, q.PendingCount(ctx))
}

func TestPendingRequestSerializationKeepsBody(t *testing.T) {
	ctx := context.Background()
	fs := storefakes.NewFakeStore()
	q := offline.NewQueue(fs)

	body := []byte(`{"rating":5,"comment":"great"}`)
	require.NoError(t, q.Enqueue(ctx, "POST", "/businesses/b1/reviews", body))

	raw, err := fs.Get(ctx, "pendingRequests")
	require.NoError(t, err)

	var pending []offline.PendingRequest
	require.NoError(t, json.Unmarshal(raw, &pending))
	require.Len(t, pending, 1)
	require.JSONEq(t, string(body), string(pending[0].Body))
	require.NotEqual(t, "00000000-0000-0000-0000-000000000000", pending[0].ID.String())
	require.False(t, pending[0].QueuedAt.IsZero())
}
