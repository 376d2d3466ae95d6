package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
		r.Post("/password-reset/request", s.HandlePasswordResetRequest)
		r.Post("/password-reset/confirm", s.HandlePasswordResetConfirm)
	})

	// Event ingest (public, used by edge collectors)
	r.Post("/events", s.HandleIngestEvent)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Users
		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.HandleListUsers)
			r.Post("/", s.HandleCreateUser)
			r.Get("/me", s.HandleGetCurrentUser)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetUser)
				r.Put("/", s.HandleUpdateUser)
				r.Delete("/", s.HandleDeleteUser)
			})
		})

		// Customers
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", s.HandleListCustomers)
			r.Post("/", s.HandleCreateCustomer)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetCustomer)
				r.Put("/", s.HandleUpdateCustomer)
				r.Delete("/", s.HandleDeleteCustomer)
				r.Get("/devices", s.HandleListCustomerDevices)
				r.Get("/notifications", s.HandleListCustomerNotifications)
			})
		})

		// Devices
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.HandleListDevices)
			r.Post("/", s.HandleCreateDevice)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetDevice)
				r.Put("/", s.HandleUpdateDevice)
				r.Delete("/", s.HandleDeleteDevice)
			})
		})

		// Events
		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.HandleListEvents)
			r.Get("/{id}", s.HandleGetEvent)
			r.Delete("/{id}", s.HandleDeleteEvent)
		})

		// Notifications
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.HandleListNotifications)
			r.Get("/{id}", s.HandleGetNotification)
			r.Post("/{id}/close", s.HandleCloseNotification)
		})

		// Message templates
		r.Route("/messages", func(r chi.Router) {
			r.Get("/", s.HandleListMessages)
			r.Post("/", s.HandleCreateMessage)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetMessage)
				r.Put("/", s.HandleUpdateMessage)
				r.Delete("/", s.HandleDeleteMessage)
			})
		})

		// Notification configs
		r.Route("/configs", func(r chi.Router) {
			r.Get("/", s.HandleListConfigs)
			r.Post("/", s.HandleCreateConfig)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetConfig)
				r.Put("/", s.HandleUpdateConfig)
				r.Delete("/", s.HandleDeleteConfig)
				r.Patch("/toggle-full-outage", s.HandleToggleFullOutage)
				r.Patch("/toggle-partial-outage", s.HandleTogglePartialOutage)
				r.Patch("/toggle-start-stop", s.HandleToggleStartStop)
			})
		})

		// Dashboard
		r.Get("/dashboard/stats", s.HandleDashboardStats)
	})
}
