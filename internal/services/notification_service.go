package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/kuantumticaret/storepulse/internal/models"
	"github.com/kuantumticaret/storepulse/internal/repositories"
)

var ErrNotRecipient = errors.New("notification belongs to another user")

// NotificationService creates notification rows and announces them on
// the feed. The row is the durable copy; a failed feed publish only
// costs timeliness, so it is logged and swallowed.
type NotificationService struct {
	notificationRepo repositories.NotificationRepository
	accountRepo      repositories.AccountRepository
	feed             repositories.NotificationFeed
	debug            bool
}

func NewNotificationService(
	notificationRepo repositories.NotificationRepository,
	accountRepo repositories.AccountRepository,
	feed repositories.NotificationFeed,
	debug bool,
) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		accountRepo:      accountRepo,
		feed:             feed,
		debug:            debug,
	}
}

// Create stores a notification for one recipient and publishes it.
func (s *NotificationService) Create(ctx context.Context, userID uuid.UUID, message string) (*models.NotificationMessage, error) {
	notification := &models.NotificationMessage{
		UserID:  &userID,
		Message: message,
	}

	if err := s.notificationRepo.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	if err := s.feed.Publish(ctx, notification); err != nil && s.debug {
		log.Printf("[notifications] failed to publish %s: %v", notification.ID, err)
	}
	return notification, nil
}

// Broadcast sends a message to every active account by fanning out one
// row per recipient at write time. A failed insert for one recipient
// does not stop the rest.
func (s *NotificationService) Broadcast(ctx context.Context, message string) (int, error) {
	accounts, err := s.accountRepo.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list accounts for broadcast: %w", err)
	}

	sent := 0
	for _, account := range accounts {
		if _, err := s.Create(ctx, account.ID, message); err != nil {
			if s.debug {
				log.Printf("[notifications] broadcast to %s failed: %v", account.ID, err)
			}
			continue
		}
		sent++
	}
	return sent, nil
}

func (s *NotificationService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.NotificationMessage, error) {
	return s.notificationRepo.ListForUser(ctx, userID)
}

// MarkRead flips the read flag for the owning recipient only.
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	err := s.notificationRepo.MarkRead(ctx, id, userID)
	if errors.Is(err, repositories.ErrNotFound) {
		// Distinguish "not yours" from "does not exist" for the caller.
		if _, getErr := s.notificationRepo.GetByID(ctx, id); getErr == nil {
			return ErrNotRecipient
		}
		return repositories.ErrNotFound
	}
	return err
}

// Delete hard-deletes a notification. Admin only; enforced by the API layer.
func (s *NotificationService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.notificationRepo.Delete(ctx, id)
}
