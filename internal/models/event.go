package models

import (
	"time"

	"github.com/google/uuid"
)

// Event is a raw telemetry fact reported by a customer-premises device.
// Events are append-only: the engine flips Processed exactly once and never
// deletes them.
type Event struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Type       string    `json:"type" db:"type"`
	Serial     string    `json:"serial" db:"serial"`
	MACAddress string    `json:"macAddress,omitempty" db:"mac_address"`
	Message    string    `json:"message,omitempty" db:"message"`
	Date       time.Time `json:"date" db:"date"`
	Payload    []byte    `json:"payload,omitempty" db:"payload"`

	Processed bool `json:"processed" db:"processed"`

	// Attempts counts failed processing runs; once it reaches the configured
	// bound the event is parked as a dead letter instead of retrying forever.
	Attempts   int  `json:"attempts" db:"attempts"`
	DeadLetter bool `json:"deadLetter" db:"dead_letter"`
}
