package models

import (
	"time"

	"github.com/google/uuid"
)

// VisitRecord brackets one page visit with start/end timestamps.
// A record with a nil EndedAt is still open; records that stay open
// forever (lost unload write) are counted as abandoned, never active.
type VisitRecord struct {
	ID              uuid.UUID  `json:"id"`
	SessionID       string     `json:"session_id"`
	PagePath        string     `json:"page_path"`
	UserID          *uuid.UUID `json:"user_id,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	DurationSeconds *int64     `json:"duration_seconds,omitempty"`
}
