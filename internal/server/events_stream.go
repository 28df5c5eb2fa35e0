// Package server provides the HTTP server and routing for Ballast.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ballastd/ballast/internal/events"
	"github.com/ballastd/ballast/internal/utils"
	"github.com/rs/zerolog"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 30 * time.Second

// allEventTypes lists every event the stream can forward. A connection
// without a types filter subscribes to all of them.
var allEventTypes = []events.EventType{
	events.TradeRecorded,
	events.HoldingsChanged,
	events.PricesUpdated,
	events.RestrictionsUpdated,
	events.ProposalCreated,
	events.RebalanceCompleted,
	events.ModelChanged,
	events.SettingsChanged,
	events.SnapshotSaved,
	events.BackupCompleted,
	events.SystemStatusChanged,
	events.ErrorOccurred,
}

// EventsStreamHandler handles unified Server-Sent Events (SSE) streaming
// for all system events.
type EventsStreamHandler struct {
	eventBus *events.Bus
	log      zerolog.Logger
}

// NewEventsStreamHandler creates a new events stream handler.
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus: eventBus,
		log:      log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream requests (SSE).
//
// The optional ?types= query parameter narrows the subscription to a
// comma-separated list of event types.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	// The server-wide write deadline would cut the stream off mid-flight;
	// clear it for this connection.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	var subscribed []events.EventType
	if requested := utils.ParseCSV(r.URL.Query().Get("types")); len(requested) > 0 {
		for _, t := range requested {
			subscribed = append(subscribed, events.EventType(t))
		}
	} else {
		subscribed = allEventTypes
	}

	// Buffered so a slow client cannot block the emitting goroutine;
	// events are dropped when the buffer is full.
	eventChan := make(chan *events.Event, 100)

	forward := func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	unsubscribes := make([]func(), 0, len(subscribed))
	for _, eventType := range subscribed {
		unsubscribes = append(unsubscribes, h.eventBus.Subscribe(eventType, forward))
	}
	defer func() {
		for _, unsubscribe := range unsubscribes {
			unsubscribe()
		}
	}()

	h.log.Info().
		Int("subscribed_types", len(subscribed)).
		Msg("Client connected to event stream")

	done := r.Context().Done()

	// Send initial connection message
	fmt.Fprintf(w, "data: %s\n\n", h.encodePayload(map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}))
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-done:
			h.log.Info().Msg("Client disconnected from event stream")
			return

		case event := <-eventChan:
			payload := h.encodePayload(map[string]interface{}{
				"type":      string(event.Type),
				"module":    event.Module,
				"timestamp": event.Timestamp.Format(time.RFC3339),
				"data":      event.Data,
			})
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprintf(w, "data: %s\n\n", h.encodePayload(map[string]interface{}{
				"type":      "heartbeat",
				"timestamp": time.Now().Format(time.RFC3339),
			}))
			flusher.Flush()
		}
	}
}

// encodePayload encodes an SSE payload map to a JSON string.
func (h *EventsStreamHandler) encodePayload(payload map[string]interface{}) string {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return `{"error":"failed to encode event"}`
	}
	return string(data)
}
