package notify

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/kuantumticaret/storepulse/internal/models"
	"github.com/kuantumticaret/storepulse/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSurface struct {
	mu        sync.Mutex
	available bool
	shown     []Notification
	showErr   error
}

func (f *fakeSurface) Available() bool { return f.available }

func (f *fakeSurface) Show(n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, n)
	return f.showErr
}

func (f *fakeSurface) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.shown)
}

// fakeFeed tracks subscription lifecycle order and lets tests push
// events at the active subscriber.
type fakeFeed struct {
	mu       sync.Mutex
	ops      []string
	handlers map[uuid.UUID]func(models.NotificationMessage)
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{handlers: make(map[uuid.UUID]func(models.NotificationMessage))}
}

func (f *fakeFeed) Publish(ctx context.Context, n *models.NotificationMessage) error {
	f.mu.Lock()
	handler := f.handlers[*n.UserID]
	f.mu.Unlock()
	if handler != nil {
		handler(*n)
	}
	return nil
}

func (f *fakeFeed) Subscribe(ctx context.Context, userID uuid.UUID, handler func(models.NotificationMessage)) (repositories.FeedSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, "subscribe:"+userID.String())
	f.handlers[userID] = handler
	return &fakeFeedSub{feed: f, userID: userID}, nil
}

type fakeFeedSub struct {
	feed   *fakeFeed
	userID uuid.UUID
}

func (s *fakeFeedSub) Close() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	s.feed.ops = append(s.feed.ops, "close:"+s.userID.String())
	delete(s.feed.handlers, s.userID)
	return nil
}

// TestDispatcher_WorkerPreferred: with a worker bridge present the page
// surface is never used, even with permission granted.
func TestDispatcher_WorkerPreferred(t *testing.T) {
	worker := &fakeSurface{available: true}
	page := &fakeSurface{available: true}
	d := NewDispatcher(newFakeFeed(), worker, page, nil, false)
	d.SetPermission(PermissionGranted)

	d.Deliver("Yeni bildirim", "Siparişiniz kargoya verildi")

	require.Equal(t, 1, worker.count())
	assert.Equal(t, 0, page.count(), "page surface must not be used while a worker is present")
	assert.Equal(t, "Siparişiniz kargoya verildi", worker.shown[0].Body)
}

// TestDispatcher_WorkerErrorDoesNotFallBack: precedence is total.
func TestDispatcher_WorkerErrorDoesNotFallBack(t *testing.T) {
	worker := &fakeSurface{available: true, showErr: assert.AnError}
	page := &fakeSurface{available: true}
	d := NewDispatcher(newFakeFeed(), worker, page, nil, false)
	d.SetPermission(PermissionGranted)

	d.Deliver("Yeni bildirim", "test")

	assert.Equal(t, 1, worker.count())
	assert.Equal(t, 0, page.count())
}

// TestDispatcher_PageWhenGranted: no worker, granted permission, a
// single foreground notification.
func TestDispatcher_PageWhenGranted(t *testing.T) {
	worker := &fakeSurface{available: false}
	page := &fakeSurface{available: true}
	d := NewDispatcher(newFakeFeed(), worker, page, nil, false)
	d.SetPermission(PermissionGranted)

	d.Deliver("Yeni bildirim", "Siparişiniz hazırlanıyor")

	assert.Equal(t, 0, worker.count())
	require.Equal(t, 1, page.count())
}

// TestDispatcher_SilentWithoutPermission: no worker and no granted
// permission means no visible delivery at all.
func TestDispatcher_SilentWithoutPermission(t *testing.T) {
	worker := &fakeSurface{available: false}
	page := &fakeSurface{available: true}
	d := NewDispatcher(newFakeFeed(), worker, page, nil, false)

	d.Deliver("Yeni bildirim", "test")
	d.SetPermission(PermissionDenied)
	d.Deliver("Yeni bildirim", "test")

	assert.Equal(t, 0, worker.count())
	assert.Equal(t, 0, page.count())
}

func TestDispatcher_PromptOncePerSession(t *testing.T) {
	prompts := 0
	d := NewDispatcher(newFakeFeed(), &fakeSurface{}, &fakeSurface{}, func() { prompts++ }, false)

	d.Init()
	d.Init()

	assert.Equal(t, 1, prompts)
}

func TestDispatcher_NoPromptWhenAlreadyDecided(t *testing.T) {
	prompts := 0
	d := NewDispatcher(newFakeFeed(), &fakeSurface{}, &fakeSurface{}, func() { prompts++ }, false)

	d.SetPermission(PermissionGranted)
	d.Init()
	assert.Equal(t, 0, prompts)
}

// TestDispatcher_NeverRepromptAfterDenied: once denied is observed,
// the prompt never fires again this session, whatever the client
// reports afterwards.
func TestDispatcher_NeverRepromptAfterDenied(t *testing.T) {
	prompts := 0
	d := NewDispatcher(newFakeFeed(), &fakeSurface{}, &fakeSurface{}, func() { prompts++ }, false)

	d.SetPermission(PermissionDenied)
	d.Init()
	d.SetPermission(PermissionUnrequested)
	d.Init()

	assert.Equal(t, 0, prompts)
}

func TestDispatcher_MonotonicTags(t *testing.T) {
	worker := &fakeSurface{available: true}
	d := NewDispatcher(newFakeFeed(), worker, &fakeSurface{}, nil, false)

	for i := 0; i < 3; i++ {
		d.Deliver("Yeni bildirim", "test")
	}

	require.Equal(t, 3, worker.count())
	seen := make(map[string]bool)
	last := 0
	for _, n := range worker.shown {
		require.True(t, strings.HasPrefix(n.Tag, "notification-"))
		num, err := strconv.Atoi(strings.TrimPrefix(n.Tag, "notification-"))
		require.NoError(t, err)
		assert.Greater(t, num, last)
		assert.False(t, seen[n.Tag], "tags must be unique per event")
		seen[n.Tag] = true
		last = num
	}
}

// TestDispatcher_IdentitySwap: the old subscription is released before
// the new one opens, and events only reach the current identity.
func TestDispatcher_IdentitySwap(t *testing.T) {
	feed := newFakeFeed()
	worker := &fakeSurface{available: true}
	d := NewDispatcher(feed, worker, &fakeSurface{}, nil, false)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()

	d.SetIdentity(ctx, &first)
	d.SetIdentity(ctx, &second)

	require.Equal(t, []string{
		"subscribe:" + first.String(),
		"close:" + first.String(),
		"subscribe:" + second.String(),
	}, feed.ops)

	// An event for the old identity goes nowhere.
	feed.Publish(ctx, &models.NotificationMessage{UserID: &first, Message: "stale"})
	assert.Equal(t, 0, worker.count())

	feed.Publish(ctx, &models.NotificationMessage{UserID: &second, Message: "fresh"})
	require.Equal(t, 1, worker.count())
	assert.Equal(t, "fresh", worker.shown[0].Body)
}

func TestDispatcher_LogoutReleasesSubscription(t *testing.T) {
	feed := newFakeFeed()
	d := NewDispatcher(feed, &fakeSurface{available: true}, &fakeSurface{}, nil, false)
	ctx := context.Background()

	user := uuid.New()
	d.SetIdentity(ctx, &user)
	d.SetIdentity(ctx, nil)

	assert.Equal(t, []string{
		"subscribe:" + user.String(),
		"close:" + user.String(),
	}, feed.ops)
}

func TestDispatcher_TeardownIdempotent(t *testing.T) {
	feed := newFakeFeed()
	d := NewDispatcher(feed, &fakeSurface{}, &fakeSurface{}, nil, false)
	ctx := context.Background()

	user := uuid.New()
	d.SetIdentity(ctx, &user)
	d.Teardown()
	d.Teardown()

	assert.Equal(t, []string{
		"subscribe:" + user.String(),
		"close:" + user.String(),
	}, feed.ops)
}
