// Package server provides the HTTP server and routing for Ballast.
package server

import (
	"time"

	"github.com/ballastd/ballast/internal/events"
	"github.com/rs/zerolog"
)

// StatusMonitor periodically publishes a SYSTEM_STATUS_CHANGED event so
// connected dashboards can refresh without polling.
type StatusMonitor struct {
	eventManager   *events.Manager
	systemHandlers *SystemHandlers
	log            zerolog.Logger
	stop           chan struct{}
}

// NewStatusMonitor creates a new status monitor
func NewStatusMonitor(eventManager *events.Manager, systemHandlers *SystemHandlers, log zerolog.Logger) *StatusMonitor {
	return &StatusMonitor{
		eventManager:   eventManager,
		systemHandlers: systemHandlers,
		log:            log.With().Str("component", "status_monitor").Logger(),
		stop:           make(chan struct{}),
	}
}

// Start begins periodic status monitoring
func (m *StatusMonitor) Start(interval time.Duration) {
	go m.monitor(interval)
}

// Stop ends the monitoring loop. Safe to call once.
func (m *StatusMonitor) Stop() {
	close(m.stop)
}

// monitor runs the periodic monitoring loop
func (m *StatusMonitor) monitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.publishStatus()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.publishStatus()
		}
	}
}

// publishStatus emits the current system status on the event bus
func (m *StatusMonitor) publishStatus() {
	if m.eventManager == nil {
		return
	}

	status := "healthy"
	if m.systemHandlers != nil && !m.systemHandlers.DatabasesHealthy() {
		status = "degraded"
	}

	m.eventManager.EmitTyped(events.SystemStatusChanged, "status_monitor", &events.SystemStatusChangedData{
		Status:    status,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}
