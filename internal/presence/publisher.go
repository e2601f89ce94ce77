// Package presence announces an identified user on the shared
// online-users channel and retracts the entry on teardown.
package presence

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/kuantumticaret/storepulse/internal/models"
	"github.com/kuantumticaret/storepulse/internal/repositories"
)

type State int

const (
	StateDisconnected State = iota
	StateSubscribing
	StateActive
)

func (s State) String() string {
	switch s {
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	default:
		return "disconnected"
	}
}

// Publisher owns at most one presence slot at a time. Identity changes
// always release the prior slot before a new one is published, so a
// single browser context never holds two slots for different identities.
type Publisher struct {
	channel repositories.PresenceChannel
	debug   bool

	mu      sync.Mutex
	state   State
	current *models.PresenceEntry
}

func NewPublisher(channel repositories.PresenceChannel, debug bool) *Publisher {
	return &Publisher{channel: channel, debug: debug}
}

func (p *Publisher) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// SetIdentity re-keys the publisher. A nil account means anonymous:
// presence is an authenticated-only feature, so the publisher just
// tears down and stays disconnected. Publish failures are not retried;
// presence is advisory.
func (p *Publisher) SetIdentity(ctx context.Context, account *models.Account) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.teardownLocked(ctx)

	if account == nil {
		return
	}

	p.state = StateSubscribing
	entry := &models.PresenceEntry{
		UserID:      account.ID,
		DisplayName: account.DisplayName,
		Email:       account.Email,
	}

	if err := p.channel.Track(ctx, entry); err != nil {
		if p.debug {
			log.Printf("[presence] failed to track %s: %v", account.ID, err)
		}
		p.state = StateDisconnected
		return
	}

	p.current = entry
	p.state = StateActive
}

// Refresh restamps the current entry. Heartbeat against the channel TTL;
// a failed refresh is left for the TTL to resolve.
func (p *Publisher) Refresh(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StateActive || p.current == nil {
		return
	}
	if err := p.channel.Track(ctx, p.current); err != nil && p.debug {
		log.Printf("[presence] failed to refresh %s: %v", p.current.UserID, err)
	}
}

// Teardown retracts the slot and releases the channel. Safe to call in
// any state; failures are swallowed.
func (p *Publisher) Teardown(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teardownLocked(ctx)
}

// CurrentUserID reports the identity whose slot is live, if any.
func (p *Publisher) CurrentUserID() (uuid.UUID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateActive || p.current == nil {
		return uuid.Nil, false
	}
	return p.current.UserID, true
}

func (p *Publisher) teardownLocked(ctx context.Context) {
	if p.current != nil {
		if err := p.channel.Untrack(ctx, p.current.UserID); err != nil && p.debug {
			log.Printf("[presence] failed to untrack %s: %v", p.current.UserID, err)
		}
		p.current = nil
	}
	p.state = StateDisconnected
}
