package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wanwatch/wanwatch-server/internal/engine"
	"github.com/wanwatch/wanwatch-server/internal/models"
	"github.com/wanwatch/wanwatch-server/internal/storage"
)

// ========== Event handlers ==========

// HandleIngestEvent accepts one telemetry event from an edge collector. The
// event is always persisted; correlation runs inline and a correlation
// failure still returns 201, leaving the event for the sweep loop.
func (s *RESTServer) HandleIngestEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Type       string    `json:"type"`
		Serial     string    `json:"serial"`
		MACAddress string    `json:"macAddress"`
		Message    string    `json:"message"`
		Date       time.Time `json:"date"`
	}

	body := json.NewDecoder(r.Body)
	if err := body.Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Date.IsZero() {
		req.Date = time.Now()
	}

	payload, _ := json.Marshal(req)

	event := &models.Event{
		Type:       req.Type,
		Serial:     req.Serial,
		MACAddress: req.MACAddress,
		Message:    req.Message,
		Date:       req.Date,
		Payload:    payload,
	}

	ctx := r.Context()

	if err := s.store.CreateEvent(ctx, event); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.engine.ProcessEvent(ctx, event); err != nil {
		log.Error().Err(err).
			Str("event_id", event.ID.String()).
			Msg("inline correlation failed, leaving event for sweep")
	} else if s.metrics != nil {
		s.metrics.EventsProcessed.WithLabelValues(engine.Classify(event).String()).Inc()
	}

	s.respondJSON(w, http.StatusCreated, event)
}

// HandleListEvents lists events with filters
func (s *RESTServer) HandleListEvents(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	filters := storage.EventFilters{}
	q := r.URL.Query()

	if v := q.Get("processed"); v != "" {
		processed := v == "true"
		filters.Processed = &processed
	}
	if v := q.Get("type"); v != "" {
		filters.Type = &v
	}
	if v := q.Get("serial"); v != "" {
		filters.Serial = &v
	}
	if v := q.Get("mac_address"); v != "" {
		filters.MACAddress = &v
	}
	if v := q.Get("start_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.StartTime = &t
		}
	}
	if v := q.Get("end_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filters.EndTime = &t
		}
	}

	events, total, err := s.store.ListEvents(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"total":  total,
	})
}

// HandleGetEvent gets an event
func (s *RESTServer) HandleGetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	event, err := s.store.GetEvent(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "event not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, event)
}

// HandleDeleteEvent deletes an event
func (s *RESTServer) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	if err := s.store.DeleteEvent(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "event not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
