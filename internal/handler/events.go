package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	apperrors "github.com/dmsbot/session-server-go/internal/errors"
	"github.com/dmsbot/session-server-go/internal/service"
	"github.com/dmsbot/session-server-go/internal/sse"
)

// EventsHandler streams one session's lifecycle events to an operator
// frontend over SSE.
type EventsHandler struct {
	broker  *sse.Broker // nil when event fan-out is disabled
	manager *service.SessionManager
}

func NewEventsHandler(broker *sse.Broker, manager *service.SessionManager) *EventsHandler {
	return &EventsHandler{
		broker:  broker,
		manager: manager,
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		writeError(w, apperrors.New(apperrors.ErrCodeTransportUnavailable, "Event streaming is disabled"))
		return
	}

	identity := chi.URLParam(r, "identity")
	if identity == "" {
		writeError(w, apperrors.MissingRequired("identity"))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	client := h.broker.Subscribe(identity)
	defer h.broker.Unsubscribe(client)

	log.Info().Str("identity", identity).Msg("sse connection established")

	status, err := h.manager.Status(r.Context(), identity)
	connected := err == nil && status != nil && status.Connected
	h.sendEvent(w, flusher, "connected", map[string]any{
		"identity":  identity,
		"connected": connected,
	})

	ctx := r.Context()
	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("identity", identity).Msg("sse connection closed by client")
			return

		case <-client.Done:
			log.Info().Str("identity", identity).Msg("sse connection closed by broker")
			return

		case event := <-client.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("identity", identity).Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
