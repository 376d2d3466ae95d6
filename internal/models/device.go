package models

import (
	"time"

	"github.com/google/uuid"
)

// CustomerDevice is a directory record linking a device serial to its owning
// customer. CustomerID is stored as text because the upstream inventory feed
// delivers it as an opaque string; the resolver parses it and treats garbage
// as an unresolvable device.
type CustomerDevice struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Serial     string `json:"serial" db:"serial"`
	MACAddress string `json:"macAddress,omitempty" db:"mac_address"`
	CustomerID string `json:"customerId" db:"customer_id"`

	// IsController marks full-outage-capable devices; an outage on a
	// controller means the whole site is down, on a subordinate device only
	// part of it.
	IsController bool   `json:"isController" db:"is_controller"`
	Status       string `json:"status,omitempty" db:"status"`
}
