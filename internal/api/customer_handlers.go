package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wanwatch/wanwatch-server/internal/models"
	"github.com/wanwatch/wanwatch-server/internal/storage"
)

// ========== Customer handlers ==========

// HandleListCustomers lists customers
func (s *RESTServer) HandleListCustomers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	customers, total, err := s.store.ListCustomers(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"customers": customers,
		"total":     total,
	})
}

// HandleCreateCustomer creates a customer
func (s *RESTServer) HandleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name" validate:"required,min=2,max=200"`
		Email   string `json:"email" validate:"email"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	customer := &models.Customer{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	}

	if err := s.store.CreateCustomer(r.Context(), customer); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "customer already exists")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, customer)
}

// HandleGetCustomer gets a customer
func (s *RESTServer) HandleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	customer, err := s.store.GetCustomer(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "customer not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, customer)
}

// HandleUpdateCustomer updates a customer
func (s *RESTServer) HandleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	var req struct {
		Name    string `json:"name" validate:"required,min=2,max=200"`
		Email   string `json:"email" validate:"email"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	customer, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "customer not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	customer.Name = req.Name
	customer.Email = req.Email
	customer.Phone = req.Phone
	customer.Address = req.Address

	if err := s.store.UpdateCustomer(ctx, customer); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, customer)
}

// HandleDeleteCustomer deletes a customer
func (s *RESTServer) HandleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	if err := s.store.DeleteCustomer(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "customer not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleListCustomerDevices lists the devices owned by one customer
func (s *RESTServer) HandleListCustomerDevices(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	limit, offset := parsePagination(r)

	devices, total, err := s.store.ListCustomerDevices(r.Context(), &id, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
		"total":   total,
	})
}

// HandleListCustomerNotifications lists one customer's outage history
func (s *RESTServer) HandleListCustomerNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid customer id")
		return
	}

	limit, offset := parsePagination(r)

	filters := storage.NotificationFilters{CustomerID: &id}

	notifications, total, err := s.store.ListNotifications(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"total":         total,
	})
}

// ========== Device handlers ==========

// HandleListDevices lists devices
func (s *RESTServer) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	if serial := r.URL.Query().Get("serial"); serial != "" {
		devices, err := s.store.GetCustomerDevicesBySerial(r.Context(), serial)
		if err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]interface{}{
			"devices": devices,
			"total":   int64(len(devices)),
		})
		return
	}

	var customerID *uuid.UUID
	if v := r.URL.Query().Get("customer_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid customer_id")
			return
		}
		customerID = &id
	}

	devices, total, err := s.store.ListCustomerDevices(r.Context(), customerID, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"devices": devices,
		"total":   total,
	})
}

// HandleCreateDevice creates a device directory record
func (s *RESTServer) HandleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Serial       string `json:"serial" validate:"required,min=4,max=64"`
		MACAddress   string `json:"macAddress"`
		CustomerID   string `json:"customerId" validate:"required"`
		IsController bool   `json:"isController"`
		Status       string `json:"status"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	device := &models.CustomerDevice{
		Serial:       req.Serial,
		MACAddress:   req.MACAddress,
		CustomerID:   req.CustomerID,
		IsController: req.IsController,
		Status:       req.Status,
	}

	if err := s.store.CreateCustomerDevice(r.Context(), device); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "device already exists")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, device)
}

// HandleGetDevice gets a device
func (s *RESTServer) HandleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	device, err := s.store.GetCustomerDevice(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "device not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, device)
}

// HandleUpdateDevice updates a device
func (s *RESTServer) HandleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var req struct {
		Serial       string `json:"serial" validate:"required,min=4,max=64"`
		MACAddress   string `json:"macAddress"`
		CustomerID   string `json:"customerId" validate:"required"`
		IsController bool   `json:"isController"`
		Status       string `json:"status"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	device, err := s.store.GetCustomerDevice(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "device not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	device.Serial = req.Serial
	device.MACAddress = req.MACAddress
	device.CustomerID = req.CustomerID
	device.IsController = req.IsController
	device.Status = req.Status

	if err := s.store.UpdateCustomerDevice(ctx, device); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, device)
}

// HandleDeleteDevice deletes a device
func (s *RESTServer) HandleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	if err := s.store.DeleteCustomerDevice(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "device not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
