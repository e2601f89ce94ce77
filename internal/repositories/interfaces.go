package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kuantumticaret/storepulse/internal/models"
)

type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	ListActive(ctx context.Context) ([]*models.Account, error)
	Update(ctx context.Context, account *models.Account) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteAllForAccount(ctx context.Context, accountID uuid.UUID) error
}

type VisitRepository interface {
	Open(ctx context.Context, visit *models.VisitRecord) error
	Close(ctx context.Context, id uuid.UUID, endedAt time.Time, durationSeconds int64) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.VisitRecord, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.VisitRecord, error)
	ListClosedSince(ctx context.Context, since time.Time) ([]*models.VisitRecord, error)
	CountAbandoned(ctx context.Context, openedBefore time.Time) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.NotificationMessage) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.NotificationMessage, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.NotificationMessage, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PresenceChannel is the shared online-users channel. Track publishes an
// identity's presence slot, Untrack retracts it. Entries also carry a TTL
// as a liveness backstop for sessions that never reach a clean teardown.
type PresenceChannel interface {
	Track(ctx context.Context, entry *models.PresenceEntry) error
	Untrack(ctx context.Context, userID uuid.UUID) error
	List(ctx context.Context) ([]*models.PresenceEntry, error)
}

// NotificationFeed carries row-insert events to the recipient's live
// sessions. Delivery is at-least-once; order across rows is not guaranteed.
type NotificationFeed interface {
	Publish(ctx context.Context, notification *models.NotificationMessage) error
	Subscribe(ctx context.Context, userID uuid.UUID, handler func(models.NotificationMessage)) (FeedSubscription, error)
}

// FeedSubscription is the handle for one active feed subscription.
// Close releases it; a closed subscription delivers nothing.
type FeedSubscription interface {
	Close() error
}
