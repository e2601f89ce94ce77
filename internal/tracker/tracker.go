// Package tracker brackets page visits with start/end timestamps.
//
// One Tracker exists per storefront session. Navigate closes the
// previously open bracket and opens a new one; the close write is
// fire-and-forget while the new record's StartedAt is stamped
// immediately, so timing stays correct even when a close write is
// delayed or lost entirely.
package tracker

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kuantumticaret/storepulse/internal/models"
	"github.com/kuantumticaret/storepulse/internal/repositories"
)

const closeWriteTimeout = 5 * time.Second

type Tracker struct {
	visits    repositories.VisitRepository
	sessionID string
	debug     bool

	mu     sync.Mutex
	userID *uuid.UUID
	// open is the in-memory reference to the currently open record.
	// Close targets whatever this points at, never a server round trip,
	// so rapid navigation cannot leak more than one open record.
	open *models.VisitRecord

	now func() time.Time
}

func New(visits repositories.VisitRepository, sessionID string, debug bool) *Tracker {
	return &Tracker{
		visits:    visits,
		sessionID: sessionID,
		debug:     debug,
		now:       time.Now,
	}
}

// SetUser changes the identity captured by future brackets. The record
// that is currently open keeps whatever identity it was opened with.
func (t *Tracker) SetUser(userID *uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.userID = userID
}

// Navigate closes the prior bracket and opens a new one for pagePath.
// The close is fire-and-forget; the open insert runs on the caller's
// context. Failures are swallowed: the next navigation self-heals.
func (t *Tracker) Navigate(ctx context.Context, pagePath string) {
	t.mu.Lock()
	prev := t.open
	record := &models.VisitRecord{
		ID:        uuid.New(),
		SessionID: t.sessionID,
		PagePath:  pagePath,
		UserID:    t.userID,
		StartedAt: t.now(),
	}
	t.open = record
	t.mu.Unlock()

	if prev != nil {
		go t.closeRecord(prev)
	}

	if err := t.visits.Open(ctx, record); err != nil && t.debug {
		log.Printf("[tracker] failed to open visit record for %s: %v", pagePath, err)
	}
}

// Close ends the current bracket without opening a new one. It backs the
// page-unload beacon, so the write is best effort: a record whose close
// is lost stays open forever and is counted as abandoned downstream.
func (t *Tracker) Close(ctx context.Context) {
	t.mu.Lock()
	prev := t.open
	t.open = nil
	t.mu.Unlock()

	if prev == nil {
		return
	}

	endedAt := t.now()
	duration := durationSeconds(prev.StartedAt, endedAt)
	if err := t.visits.Close(ctx, prev.ID, endedAt, duration); err != nil && t.debug {
		log.Printf("[tracker] failed to close visit record %s: %v", prev.ID, err)
	}
}

// OpenRecordID reports the currently open bracket, if any.
func (t *Tracker) OpenRecordID() (uuid.UUID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.open == nil {
		return uuid.Nil, false
	}
	return t.open.ID, true
}

func (t *Tracker) closeRecord(record *models.VisitRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), closeWriteTimeout)
	defer cancel()

	endedAt := t.now()
	duration := durationSeconds(record.StartedAt, endedAt)
	if err := t.visits.Close(ctx, record.ID, endedAt, duration); err != nil && t.debug {
		log.Printf("[tracker] failed to close visit record %s: %v", record.ID, err)
	}
}

// durationSeconds is the wall-clock gap rounded to the nearest second,
// floored at zero.
func durationSeconds(startedAt, endedAt time.Time) int64 {
	seconds := int64(math.Round(endedAt.Sub(startedAt).Seconds()))
	if seconds < 0 {
		return 0
	}
	return seconds
}
