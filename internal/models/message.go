package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is a customer-facing notification template. Templates are keyed by
// the device class (controller or subordinate) and a lifecycle label.
type Message struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	ControllerDevice bool   `json:"controllerDevice" db:"controller_device"`
	MessageType      string `json:"messageType" db:"message_type"`
	MessageText      string `json:"messageText" db:"message_text"`
}

// Template labels. Controller devices get the "Full Outage" wording,
// subordinate devices the "Partial Outage" wording.
const (
	MessageFullOutage            = "Full Outage"
	MessagePartialOutage         = "Partial Outage"
	MessageFullOutageResolved    = "Full Outage Resolved"
	MessagePartialOutageResolved = "Partial Outage Resolved"
)

// OutageMessageType returns the template label for a device class and
// lifecycle phase.
func OutageMessageType(controller, resolved bool) string {
	switch {
	case controller && resolved:
		return MessageFullOutageResolved
	case controller:
		return MessageFullOutage
	case resolved:
		return MessagePartialOutageResolved
	default:
		return MessagePartialOutage
	}
}
