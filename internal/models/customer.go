package models

import (
	"time"

	"github.com/google/uuid"
)

// Customer represents a subscriber who owns one or more devices. The
// correlation engine only reads customers; they are managed through the API.
type Customer struct {
	ID        uuid.UUID `json:"id" db:"id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	Name    string `json:"name" db:"name"`
	Email   string `json:"email,omitempty" db:"email"`
	Phone   string `json:"phone,omitempty" db:"phone"`
	Address string `json:"address,omitempty" db:"address"`
}
