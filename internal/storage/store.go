package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/wanwatch/wanwatch-server/internal/models"
)

// Common errors
var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidData  = errors.New("invalid data")
)

// Store defines the storage interface
type Store interface {
	// Transaction support
	BeginTx(ctx context.Context) (Store, error)
	Commit() error
	Rollback() error

	// Event methods
	CreateEvent(ctx context.Context, event *models.Event) error
	GetEvent(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListEvents(ctx context.Context, filters EventFilters, limit, offset int) ([]*models.Event, int64, error)
	ListUnprocessedEvents(ctx context.Context, limit int) ([]*models.Event, error)
	MarkEventProcessed(ctx context.Context, id uuid.UUID) error
	RecordEventFailure(ctx context.Context, id uuid.UUID, maxAttempts int) error
	DeleteEvent(ctx context.Context, id uuid.UUID) error

	// Customer methods
	CreateCustomer(ctx context.Context, customer *models.Customer) error
	GetCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, customer *models.Customer) error
	DeleteCustomer(ctx context.Context, id uuid.UUID) error
	ListCustomers(ctx context.Context, limit, offset int) ([]*models.Customer, int64, error)

	// Customer device methods
	CreateCustomerDevice(ctx context.Context, device *models.CustomerDevice) error
	GetCustomerDevice(ctx context.Context, id uuid.UUID) (*models.CustomerDevice, error)
	GetCustomerDevicesBySerial(ctx context.Context, serial string) ([]*models.CustomerDevice, error)
	UpdateCustomerDevice(ctx context.Context, device *models.CustomerDevice) error
	DeleteCustomerDevice(ctx context.Context, id uuid.UUID) error
	ListCustomerDevices(ctx context.Context, customerID *uuid.UUID, limit, offset int) ([]*models.CustomerDevice, int64, error)

	// Notification ledger methods
	CreateNotification(ctx context.Context, notification *models.Notification) error
	GetNotification(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	FindOpenNotifications(ctx context.Context, serial string) ([]*models.Notification, error)
	CloseNotification(ctx context.Context, id uuid.UUID, endDate time.Time) error
	MarkNotificationNotified(ctx context.Context, id uuid.UUID) error
	ListNotifications(ctx context.Context, filters NotificationFilters, limit, offset int) ([]*models.Notification, int64, error)

	// Message template methods
	CreateMessage(ctx context.Context, message *models.Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	FindMessage(ctx context.Context, controllerDevice bool, messageType string) (*models.Message, error)
	UpdateMessage(ctx context.Context, message *models.Message) error
	DeleteMessage(ctx context.Context, id uuid.UUID) error
	ListMessages(ctx context.Context, limit, offset int) ([]*models.Message, int64, error)

	// Notification config methods
	CreateConfig(ctx context.Context, config *models.Config) error
	GetConfig(ctx context.Context, id uuid.UUID) (*models.Config, error)
	UpdateConfig(ctx context.Context, config *models.Config) error
	DeleteConfig(ctx context.Context, id uuid.UUID) error
	ListConfigs(ctx context.Context, limit, offset int) ([]*models.Config, int64, error)

	// User methods
	CreateUser(ctx context.Context, user *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByResetToken(ctx context.Context, token string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
	ListUsers(ctx context.Context, limit, offset int) ([]*models.User, int64, error)

	// Dashboard aggregates
	GetDashboardStats(ctx context.Context) (*DashboardStats, error)

	// Close the store
	Close() error
}

// EventFilters represents filters for event listing
type EventFilters struct {
	Processed  *bool
	Type       *string
	Serial     *string
	MACAddress *string
	StartTime  *time.Time
	EndTime    *time.Time
}

// NotificationFilters represents filters for notification listing
type NotificationFilters struct {
	Serial     *string
	CustomerID *uuid.UUID
	Open       *bool
}

// DashboardStats holds the aggregate counters shown on the dashboard.
type DashboardStats struct {
	Customers         int64 `json:"customers"`
	Devices           int64 `json:"devices"`
	OpenNotifications int64 `json:"openNotifications"`
	EventsToday       int64 `json:"eventsToday"`
	UnprocessedEvents int64 `json:"unprocessedEvents"`
	DeadLetterEvents  int64 `json:"deadLetterEvents"`
}
