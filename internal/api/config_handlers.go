package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wanwatch/wanwatch-server/internal/models"
	"github.com/wanwatch/wanwatch-server/internal/storage"
)

// ========== Notification config handlers ==========

type configRequest struct {
	WaitTime                     int  `json:"waitTime"`
	EnableFullOutageNotification bool `json:"enableFullOutageNotification"`
	PartialOutageNotification    bool `json:"partialOutageNotification"`
	StartStopNotification        bool `json:"startStopNotification"`
}

// HandleListConfigs lists notification settings records
func (s *RESTServer) HandleListConfigs(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	configs, total, err := s.store.ListConfigs(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"configs": configs,
		"total":   total,
	})
}

// HandleCreateConfig creates a notification settings record
func (s *RESTServer) HandleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.WaitTime < 0 {
		s.respondError(w, http.StatusBadRequest, "waitTime must not be negative")
		return
	}

	config := &models.Config{
		WaitTime:                     req.WaitTime,
		EnableFullOutageNotification: req.EnableFullOutageNotification,
		PartialOutageNotification:    req.PartialOutageNotification,
		StartStopNotification:        req.StartStopNotification,
	}

	if err := s.store.CreateConfig(r.Context(), config); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, config)
}

// HandleGetConfig gets a notification settings record
func (s *RESTServer) HandleGetConfig(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid config id")
		return
	}

	config, err := s.store.GetConfig(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "config not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, config)
}

// HandleUpdateConfig updates a notification settings record
func (s *RESTServer) HandleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid config id")
		return
	}

	var req configRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.WaitTime < 0 {
		s.respondError(w, http.StatusBadRequest, "waitTime must not be negative")
		return
	}

	config, err := s.store.GetConfig(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "config not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	config.WaitTime = req.WaitTime
	config.EnableFullOutageNotification = req.EnableFullOutageNotification
	config.PartialOutageNotification = req.PartialOutageNotification
	config.StartStopNotification = req.StartStopNotification

	if err := s.store.UpdateConfig(ctx, config); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, config)
}

// HandleDeleteConfig deletes a notification settings record
func (s *RESTServer) HandleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid config id")
		return
	}

	if err := s.store.DeleteConfig(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "config not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// toggleConfigFlag loads a config, flips one flag and saves it back.
func (s *RESTServer) toggleConfigFlag(w http.ResponseWriter, r *http.Request, flip func(*models.Config)) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid config id")
		return
	}

	config, err := s.store.GetConfig(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "config not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	flip(config)

	if err := s.store.UpdateConfig(ctx, config); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, config)
}

// HandleToggleFullOutage flips the full outage notification flag
func (s *RESTServer) HandleToggleFullOutage(w http.ResponseWriter, r *http.Request) {
	s.toggleConfigFlag(w, r, func(c *models.Config) {
		c.EnableFullOutageNotification = !c.EnableFullOutageNotification
	})
}

// HandleTogglePartialOutage flips the partial outage notification flag
func (s *RESTServer) HandleTogglePartialOutage(w http.ResponseWriter, r *http.Request) {
	s.toggleConfigFlag(w, r, func(c *models.Config) {
		c.PartialOutageNotification = !c.PartialOutageNotification
	})
}

// HandleToggleStartStop flips the start/stop notification flag
func (s *RESTServer) HandleToggleStartStop(w http.ResponseWriter, r *http.Request) {
	s.toggleConfigFlag(w, r, func(c *models.Config) {
		c.StartStopNotification = !c.StartStopNotification
	})
}
