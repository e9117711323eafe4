package connectivity_test

import (
	"testing"

	"github.com/localspot/localspot-go/connectivity"
	"github.com/stretchr/testify/require"
)

func TestMonitorStartsOnline(t *testing.T) {
	m := connectivity.NewMonitor()
	require.True(t, m.Online())
}

func TestMonitorNotifiesOnTransitionOnly(t *testing.T) {
	m := connectivity.NewMonitor()

	var events []bool
	m.Subscribe(func(online bool) { events = append(events, online) })

	m.SetOnline(true) // already online, no event
	m.SetOnline(false)
	m.SetOnline(false) // repeated report, no event
	m.SetOnline(true)

	require.Equal(t, []bool{false, true}, events)
	require.True(t, m.Online())
}

func TestMonitorSubscribeCancel(t *testing.T) {
	m := connectivity.NewMonitor()

	calls := 0
	cancel := m.Subscribe(func(bool) { calls++ })

	m.SetOnline(false)
	cancel()
	m.SetOnline(true)

	require.Equal(t, 1, calls)
}
