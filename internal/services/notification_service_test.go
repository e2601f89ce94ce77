package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kuantumticaret/storepulse/internal/models"
	"github.com/kuantumticaret/storepulse/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memNotificationRepo struct {
	mu            sync.Mutex
	notifications map[uuid.UUID]*models.NotificationMessage
}

func newMemNotificationRepo() *memNotificationRepo {
	return &memNotificationRepo{notifications: make(map[uuid.UUID]*models.NotificationMessage)}
}

func (m *memNotificationRepo) Create(ctx context.Context, n *models.NotificationMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	clone := *n
	m.notifications[n.ID] = &clone
	return nil
}

func (m *memNotificationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.NotificationMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (m *memNotificationRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.NotificationMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.NotificationMessage
	for _, n := range m.notifications {
		if n.UserID != nil && *n.UserID == userID {
			clone := *n
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memNotificationRepo) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notifications[id]
	if !ok || n.UserID == nil || *n.UserID != userID {
		return repositories.ErrNotFound
	}
	n.Read = true
	return nil
}

func (m *memNotificationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.notifications[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.notifications, id)
	return nil
}

type memAccountRepo struct {
	accounts []*models.Account
}

func (m *memAccountRepo) Create(ctx context.Context, a *models.Account) error { return nil }
func (m *memAccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return nil, repositories.ErrNotFound
}
func (m *memAccountRepo) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return nil, repositories.ErrNotFound
}
func (m *memAccountRepo) ListActive(ctx context.Context) ([]*models.Account, error) {
	return m.accounts, nil
}
func (m *memAccountRepo) Update(ctx context.Context, a *models.Account) error { return nil }
func (m *memAccountRepo) Delete(ctx context.Context, id uuid.UUID) error      { return nil }

type recordingFeed struct {
	mu        sync.Mutex
	published []models.NotificationMessage
}

func (f *recordingFeed) Publish(ctx context.Context, n *models.NotificationMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, *n)
	return nil
}

func (f *recordingFeed) Subscribe(ctx context.Context, userID uuid.UUID, handler func(models.NotificationMessage)) (repositories.FeedSubscription, error) {
	return nil, nil
}

func TestNotificationService_CreatePublishes(t *testing.T) {
	repo := newMemNotificationRepo()
	feed := &recordingFeed{}
	svc := NewNotificationService(repo, &memAccountRepo{}, feed, false)
	ctx := context.Background()

	userID := uuid.New()
	n, err := svc.Create(ctx, userID, "Siparişiniz kargoya verildi")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, n.ID)
	assert.False(t, n.Read)

	require.Len(t, feed.published, 1)
	assert.Equal(t, n.ID, feed.published[0].ID)
}

// TestNotificationService_BroadcastFanOut: "send to all" writes one row
// per active account rather than one shared row.
func TestNotificationService_BroadcastFanOut(t *testing.T) {
	repo := newMemNotificationRepo()
	feed := &recordingFeed{}
	accounts := &memAccountRepo{accounts: []*models.Account{
		{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()},
	}}
	svc := NewNotificationService(repo, accounts, feed, false)

	sent, err := svc.Broadcast(context.Background(), "Kampanya başladı")
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
	assert.Len(t, repo.notifications, 3)
	assert.Len(t, feed.published, 3)

	for _, account := range accounts.accounts {
		list, err := svc.ListForUser(context.Background(), account.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Kampanya başladı", list[0].Message)
	}
}

func TestNotificationService_MarkReadOwnerOnly(t *testing.T) {
	repo := newMemNotificationRepo()
	svc := NewNotificationService(repo, &memAccountRepo{}, &recordingFeed{}, false)
	ctx := context.Background()

	owner := uuid.New()
	other := uuid.New()
	n, err := svc.Create(ctx, owner, "test")
	require.NoError(t, err)

	err = svc.MarkRead(ctx, n.ID, other)
	assert.ErrorIs(t, err, ErrNotRecipient)

	err = svc.MarkRead(ctx, n.ID, owner)
	require.NoError(t, err)

	list, err := svc.ListForUser(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Read)
}

func TestNotificationService_MarkReadMissing(t *testing.T) {
	svc := NewNotificationService(newMemNotificationRepo(), &memAccountRepo{}, &recordingFeed{}, false)

	err := svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}
