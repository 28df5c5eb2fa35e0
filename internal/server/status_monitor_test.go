package server

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/ballastd/ballast/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestStatusMonitorPublishesImmediately(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	manager := events.NewManager(bus, zerolog.Nop())

	var received atomic.Int64
	unsubscribe := bus.Subscribe(events.SystemStatusChanged, func(event *events.Event) {
		received.Add(1)
	})
	defer unsubscribe()

	monitor := NewStatusMonitor(manager, nil, zerolog.Nop())
	monitor.Start(time.Hour)
	defer monitor.Stop()

	// The first status event is published on start, not after the first tick.
	require.Eventually(t, func() bool {
		return received.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestStatusMonitorStopEndsLoop(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	manager := events.NewManager(bus, zerolog.Nop())

	var received atomic.Int64
	unsubscribe := bus.Subscribe(events.SystemStatusChanged, func(event *events.Event) {
		received.Add(1)
	})
	defer unsubscribe()

	monitor := NewStatusMonitor(manager, nil, zerolog.Nop())
	monitor.Start(10 * time.Millisecond)

	require.Eventually(t, func() bool {
		return received.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	monitor.Stop()
	settled := received.Load()

	// A couple of intervals after Stop, no further events arrive.
	time.Sleep(50 * time.Millisecond)
	require.LessOrEqual(t, received.Load(), settled+1)
}
