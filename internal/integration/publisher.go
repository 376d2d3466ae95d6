package integration

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/wanwatch/wanwatch-server/internal/models"
)

// Subjects for notification lifecycle messages.
const (
	SubjectNotificationOpened = "notification.opened"
	SubjectNotificationClosed = "notification.closed"
)

// Publisher fans notification lifecycle changes out over NATS so downstream
// systems (ticketing, dashboards) can react without polling the API.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher creates a lifecycle publisher
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

type lifecycleMessage struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customerID"`
	Serial     string     `json:"serial"`
	MACAddress string     `json:"macAddress,omitempty"`
	Type       string     `json:"type"`
	StartDate  time.Time  `json:"startDate"`
	EndDate    *time.Time `json:"endDate,omitempty"`
	Notified   bool       `json:"notified"`
	Timestamp  time.Time  `json:"timestamp"`
}

// NotificationOpened publishes an opened episode
func (p *Publisher) NotificationOpened(notification *models.Notification) error {
	return p.publish(SubjectNotificationOpened, notification)
}

// NotificationClosed publishes a closed episode
func (p *Publisher) NotificationClosed(notification *models.Notification) error {
	return p.publish(SubjectNotificationClosed, notification)
}

func (p *Publisher) publish(subject string, notification *models.Notification) error {
	msg := lifecycleMessage{
		ID:         notification.ID.String(),
		CustomerID: notification.CustomerID.String(),
		Serial:     notification.Serial,
		MACAddress: notification.MACAddress,
		Type:       notification.Type,
		StartDate:  notification.StartDate,
		EndDate:    notification.EndDate,
		Notified:   notification.Notified,
		Timestamp:  time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal lifecycle message: %w", err)
	}

	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	log.Debug().
		Str("subject", subject).
		Str("serial", notification.Serial).
		Msg("lifecycle message published")

	return nil
}
