package models

import (
	"time"

	"github.com/google/uuid"
)

// PresenceEntry is one identity's slot on the shared online-users channel.
// The profile fields are a denormalized snapshot taken at publish time.
type PresenceEntry struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	PublishedAt time.Time `json:"published_at"`
}
