package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuantumticaret/storepulse/internal/models"
	"github.com/kuantumticaret/storepulse/internal/repositories"
	"github.com/kuantumticaret/storepulse/internal/ws"
)

type fakeVisitRepo struct {
	mu     sync.Mutex
	opened []*models.VisitRecord
	closed []uuid.UUID
}

func (f *fakeVisitRepo) Open(ctx context.Context, visit *models.VisitRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened = append(f.opened, visit)
	return nil
}

func (f *fakeVisitRepo) Close(ctx context.Context, id uuid.UUID, endedAt time.Time, durationSeconds int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = append(f.closed, id)
	return nil
}

func (f *fakeVisitRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.VisitRecord, error) {
	return nil, nil
}

func (f *fakeVisitRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.VisitRecord, error) {
	return nil, nil
}

func (f *fakeVisitRepo) ListClosedSince(ctx context.Context, since time.Time) ([]*models.VisitRecord, error) {
	return nil, nil
}

func (f *fakeVisitRepo) CountAbandoned(ctx context.Context, openedBefore time.Time) (int64, error) {
	return 0, nil
}

func (f *fakeVisitRepo) closedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.closed)
}

type fakePresenceChannel struct {
	mu      sync.Mutex
	tracked map[uuid.UUID]*models.PresenceEntry
}

func newFakePresenceChannel() *fakePresenceChannel {
	return &fakePresenceChannel{tracked: make(map[uuid.UUID]*models.PresenceEntry)}
}

func (f *fakePresenceChannel) Track(ctx context.Context, entry *models.PresenceEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tracked[entry.UserID] = entry
	return nil
}

func (f *fakePresenceChannel) Untrack(ctx context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tracked, userID)
	return nil
}

func (f *fakePresenceChannel) List(ctx context.Context) ([]*models.PresenceEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.PresenceEntry, 0, len(f.tracked))
	for _, entry := range f.tracked {
		out = append(out, entry)
	}
	return out, nil
}

func (f *fakePresenceChannel) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.tracked)
}

type fakeSubscription struct {
	closed bool
}

func (f *fakeSubscription) Close() error {
	f.closed = true
	return nil
}

type fakeFeed struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*fakeSubscription
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{subs: make(map[uuid.UUID]*fakeSubscription)}
}

func (f *fakeFeed) Publish(ctx context.Context, n *models.NotificationMessage) error {
	return nil
}

func (f *fakeFeed) Subscribe(ctx context.Context, userID uuid.UUID, handler func(models.NotificationMessage)) (repositories.FeedSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sub := &fakeSubscription{}
	f.subs[userID] = sub
	return sub, nil
}

func testAccount() *models.Account {
	return &models.Account{
		ID:          uuid.New(),
		Email:       "ayse@example.com",
		DisplayName: "Ayşe",
	}
}

func newTestRuntimes(t *testing.T) (*Runtimes, *fakeVisitRepo, *fakePresenceChannel, *fakeFeed) {
	t.Helper()
	visits := &fakeVisitRepo{}
	channel := newFakePresenceChannel()
	feed := newFakeFeed()
	hub := ws.NewHub()
	go hub.Run()
	t.Cleanup(hub.Shutdown)
	return NewRuntimes(visits, channel, feed, hub, false), visits, channel, feed
}

func TestRuntimes_BindPublishesPresenceAndSubscribes(t *testing.T) {
	runtimes, _, channel, feed := newTestRuntimes(t)
	account := testAccount()

	runtimes.Bind(context.Background(), "sess-1", account)

	assert.Equal(t, 1, channel.count())
	require.Contains(t, feed.subs, account.ID)
	assert.False(t, feed.subs[account.ID].closed)
}

func TestRuntimes_UnbindRetractsEverything(t *testing.T) {
	runtimes, _, channel, feed := newTestRuntimes(t)
	account := testAccount()
	ctx := context.Background()

	runtimes.Bind(ctx, "sess-1", account)
	runtimes.Unbind(ctx, "sess-1")

	assert.Equal(t, 0, channel.count())
	assert.True(t, feed.subs[account.ID].closed)
}

func TestRuntimes_ReleaseClosesOpenBracket(t *testing.T) {
	runtimes, visits, channel, _ := newTestRuntimes(t)
	account := testAccount()
	ctx := context.Background()

	runtimes.Bind(ctx, "sess-1", account)
	runtimes.Get("sess-1").Tracker.Navigate(ctx, "/urunler")

	runtimes.Release(ctx, "sess-1")

	assert.Equal(t, 1, visits.closedCount())
	assert.Equal(t, 0, channel.count())

	// A fresh runtime for the same session id starts anonymous.
	rt := runtimes.Get("sess-1")
	_, hasOpen := rt.Tracker.OpenRecordID()
	assert.False(t, hasOpen)
}

func TestRuntimes_ReleaseUnknownSessionIsNoop(t *testing.T) {
	runtimes, visits, _, _ := newTestRuntimes(t)
	runtimes.Release(context.Background(), "never-seen")
	assert.Equal(t, 0, visits.closedCount())
}
