package models

import (
	"time"

	"github.com/google/uuid"
)

// Config is an operator-managed notification settings record: a polling wait
// time plus per-category enable flags for the notification categories.
type Config struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	WaitTime                     int  `json:"waitTime" db:"wait_time"`
	EnableFullOutageNotification bool `json:"enableFullOutageNotification" db:"enable_full_outage_notification"`
	PartialOutageNotification    bool `json:"partialOutageNotification" db:"partial_outage_notification"`
	StartStopNotification        bool `json:"startStopNotification" db:"start_stop_notification"`
}
