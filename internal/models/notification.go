package models

import (
	"time"

	"github.com/google/uuid"
)

// Notification is one outage episode for a device serial. An episode is open
// while EndDate is nil; for any serial at most one open episode may exist at
// a time.
type Notification struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	CustomerID uuid.UUID `json:"customerId" db:"customer_id"`
	Serial     string    `json:"serial" db:"serial"`
	MACAddress string    `json:"macAddress,omitempty" db:"mac_address"`

	// Type is the event type that opened the episode (e.g. wan_lost).
	Type string `json:"type" db:"type"`

	StartDate time.Time  `json:"startDate" db:"start_date"`
	EndDate   *time.Time `json:"endDate,omitempty" db:"end_date"`

	// Notified is set once the onset email went out; resolution emails do not
	// touch it.
	Notified bool `json:"notified" db:"notified"`
}

// Open reports whether the episode is still open.
func (n *Notification) Open() bool {
	return n.EndDate == nil
}
