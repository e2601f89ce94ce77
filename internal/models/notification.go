package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationMessage is a stored notification row. A nil UserID never
// reaches the table: "send to all" is fanned out to one row per account
// at write time.
type NotificationMessage struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	Message   string     `json:"message"`
	Read      bool       `json:"read"`
	CreatedAt time.Time  `json:"created_at"`
}
