package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wanwatch/wanwatch-server/internal/engine"
	"github.com/wanwatch/wanwatch-server/internal/models"
	"github.com/wanwatch/wanwatch-server/internal/storage"
)

// ========== Notification handlers ==========

type notificationResponse struct {
	*models.Notification
	DurationSeconds float64 `json:"durationSeconds"`
}

func toNotificationResponse(n *models.Notification, now time.Time) notificationResponse {
	return notificationResponse{
		Notification:    n,
		DurationSeconds: engine.OpenOutageDuration(n, now).Seconds(),
	}
}

// HandleListNotifications lists notifications with filters
func (s *RESTServer) HandleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	filters := storage.NotificationFilters{}
	q := r.URL.Query()

	if v := q.Get("serial"); v != "" {
		filters.Serial = &v
	}
	if v := q.Get("customer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid customer_id")
			return
		}
		filters.CustomerID = &id
	}
	if v := q.Get("open"); v != "" {
		open := v == "true"
		filters.Open = &open
	}

	notifications, total, err := s.store.ListNotifications(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	now := time.Now()
	responses := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, toNotificationResponse(n, now))
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": responses,
		"total":         total,
	})
}

// HandleGetNotification gets a notification
func (s *RESTServer) HandleGetNotification(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	notification, err := s.store.GetNotification(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "notification not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, toNotificationResponse(notification, time.Now()))
}

// HandleCloseNotification closes an open notification manually, without
// waiting for a resolution event. No resolution email is sent.
func (s *RESTServer) HandleCloseNotification(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid notification id")
		return
	}

	notification, err := s.store.GetNotification(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "notification not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if !notification.Open() {
		s.respondError(w, http.StatusConflict, "notification already closed")
		return
	}

	endDate := time.Now()
	if endDate.Before(notification.StartDate) {
		endDate = notification.StartDate
	}

	if err := s.store.CloseNotification(ctx, id, endDate); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	notification.EndDate = &endDate
	s.respondJSON(w, http.StatusOK, toNotificationResponse(notification, endDate))
}

// ========== Message template handlers ==========

// HandleListMessages lists message templates
func (s *RESTServer) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	messages, total, err := s.store.ListMessages(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"messages": messages,
		"total":    total,
	})
}

// HandleCreateMessage creates a message template
func (s *RESTServer) HandleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ControllerDevice bool   `json:"controllerDevice"`
		MessageType      string `json:"messageType" validate:"required,min=3,max=100"`
		MessageText      string `json:"messageText" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	message := &models.Message{
		ControllerDevice: req.ControllerDevice,
		MessageType:      req.MessageType,
		MessageText:      req.MessageText,
	}

	if err := s.store.CreateMessage(r.Context(), message); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, message)
}

// HandleGetMessage gets a message template
func (s *RESTServer) HandleGetMessage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	message, err := s.store.GetMessage(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "message not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, message)
}

// HandleUpdateMessage updates a message template
func (s *RESTServer) HandleUpdateMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	var req struct {
		ControllerDevice bool   `json:"controllerDevice"`
		MessageType      string `json:"messageType" validate:"required,min=3,max=100"`
		MessageText      string `json:"messageText" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	message, err := s.store.GetMessage(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "message not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	message.ControllerDevice = req.ControllerDevice
	message.MessageType = req.MessageType
	message.MessageText = req.MessageText

	if err := s.store.UpdateMessage(ctx, message); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, message)
}

// HandleDeleteMessage deletes a message template
func (s *RESTServer) HandleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid message id")
		return
	}

	if err := s.store.DeleteMessage(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "message not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ========== Dashboard handlers ==========

// HandleDashboardStats returns the aggregate counters for the dashboard
func (s *RESTServer) HandleDashboardStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetDashboardStats(r.Context())
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, stats)
}
