package services

import (
	"context"
	"errors"
	"strings"

	"github.com/yukikurage/edu-project-api/internal/constants"
	"github.com/yukikurage/edu-project-api/internal/logger"
	"github.com/yukikurage/edu-project-api/internal/models"
	"github.com/yukikurage/edu-project-api/internal/repository"
	"github.com/yukikurage/edu-project-api/internal/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound  = notFound("notification")
	ErrNotificationForbidden = forbidden("notification belongs to another user")
	ErrInvalidNotification   = invalid("notification requires a recipient, a message and a type")
	ErrNoRecipients          = invalid("at least one recipient is required")
)

// EventPublisher pushes events to the realtime rooms of individual users.
type EventPublisher interface {
	IsReady() bool
	PublishToUser(ctx context.Context, userID uint64, event string, payload interface{}) error
}

// Notifier is the subset of NotificationService used by task, project and
// reminder flows.
type Notifier interface {
	Notify(ctx context.Context, input NotifyInput) (*models.Notification, error)
	NotifyBulk(ctx context.Context, input NotifyBulkInput) (*BulkNotifyResult, error)
}

// NotificationService persists notifications and pushes them to connected clients.
type NotificationService struct {
	repo      repository.NotificationRepository
	publisher EventPublisher
	logger    *logger.Logger
}

// NewNotificationService creates a new NotificationService
func NewNotificationService(repo repository.NotificationRepository, publisher EventPublisher, log *logger.Logger) *NotificationService {
	return &NotificationService{
		repo:      repo,
		publisher: publisher,
		logger:    log,
	}
}

// NotifyInput describes a notification for a single user
type NotifyInput struct {
	UserID      uint64
	Message     string
	Type        string
	RelatedID   *uint64
	RelatedType *string
}

// NotifyBulkInput describes the same notification for several users
type NotifyBulkInput struct {
	UserIDs     []uint64
	Message     string
	Type        string
	RelatedID   *uint64
	RelatedType *string
}

// BulkNotifyResult reports per-recipient outcomes of NotifyBulk
type BulkNotifyResult struct {
	Notifications []models.Notification
	Failed        map[uint64]error
}

// ListNotificationsInput represents filters for a user's inbox
type ListNotificationsInput struct {
	UserID     uint64
	UnreadOnly bool
	Pagination utils.PaginationParams
}

// Notify stores a notification and then publishes it to the user's room.
// Publishing failures are logged; the stored row stays available for polling.
func (s *NotificationService) Notify(ctx context.Context, input NotifyInput) (*models.Notification, error) {
	if !s.publisher.IsReady() {
		return nil, ErrChannelNotReady
	}
	if input.UserID == 0 || strings.TrimSpace(input.Message) == "" || input.Type == "" {
		return nil, ErrInvalidNotification
	}

	return s.deliver(ctx, input.UserID, input.Message, input.Type, input.RelatedID, input.RelatedType)
}

// NotifyBulk creates one notification per distinct user. Failures for one
// recipient are collected and do not stop the others.
func (s *NotificationService) NotifyBulk(ctx context.Context, input NotifyBulkInput) (*BulkNotifyResult, error) {
	if !s.publisher.IsReady() {
		return nil, ErrChannelNotReady
	}
	if len(input.UserIDs) == 0 {
		return nil, ErrNoRecipients
	}
	if strings.TrimSpace(input.Message) == "" || input.Type == "" {
		return nil, ErrInvalidNotification
	}

	userIDs := uniqueUint64(input.UserIDs)
	result := &BulkNotifyResult{
		Notifications: make([]models.Notification, 0, len(userIDs)),
		Failed:        make(map[uint64]error),
	}

	for _, userID := range userIDs {
		if userID == 0 {
			result.Failed[userID] = ErrInvalidNotification
			continue
		}
		notification, err := s.deliver(ctx, userID, input.Message, input.Type, input.RelatedID, input.RelatedType)
		if err != nil {
			s.logger.Warn("Bulk notification failed for recipient",
				zap.Uint64("user_id", userID),
				zap.String("type", input.Type),
				zap.Error(err),
			)
			result.Failed[userID] = err
			continue
		}
		result.Notifications = append(result.Notifications, *notification)
	}

	return result, nil
}

func (s *NotificationService) deliver(ctx context.Context, userID uint64, message, notificationType string, relatedID *uint64, relatedType *string) (*models.Notification, error) {
	notification := &models.Notification{
		UserID:      userID,
		Message:     message,
		Type:        notificationType,
		IsRead:      false,
		RelatedID:   relatedID,
		RelatedType: relatedType,
	}

	if err := s.repo.Create(ctx, notification); err != nil {
		return nil, persistenceError("create notification", err)
	}

	if err := s.publisher.PublishToUser(ctx, userID, constants.EventNotification, notification); err != nil {
		s.logger.Warn("Failed to publish notification",
			zap.Uint64("notification_id", notification.ID),
			zap.Uint64("user_id", userID),
			zap.Error(err),
		)
	}

	return notification, nil
}

// ListForUser returns a page of the user's notifications, newest first
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]models.Notification, int64, error) {
	notifications, total, err := s.repo.List(ctx, repository.NotificationFilter{
		UserID:     input.UserID,
		UnreadOnly: input.UnreadOnly,
		Pagination: input.Pagination,
	})
	if err != nil {
		return nil, 0, persistenceError("list notifications", err)
	}
	return notifications, total, nil
}

// CountUnread returns how many unread notifications the user has
func (s *NotificationService) CountUnread(ctx context.Context, userID uint64) (int64, error) {
	_, total, err := s.repo.List(ctx, repository.NotificationFilter{
		UserID:     userID,
		UnreadOnly: true,
		Pagination: utils.PaginationParams{Limit: 1},
	})
	if err != nil {
		return 0, persistenceError("count unread notifications", err)
	}
	return total, nil
}

// MarkRead marks one of the user's notifications as read
func (s *NotificationService) MarkRead(ctx context.Context, id, userID uint64) (*models.Notification, error) {
	notification, err := s.findOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	if notification.IsRead {
		return notification, nil
	}

	if err := s.repo.MarkRead(ctx, id); err != nil {
		return nil, persistenceError("mark notification as read", err)
	}
	notification.IsRead = true

	return notification, nil
}

// MarkAllRead marks every unread notification of the user as read
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint64) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID)
	if err != nil {
		return 0, persistenceError("mark notifications as read", err)
	}
	return updated, nil
}

// Delete removes one of the user's notifications
func (s *NotificationService) Delete(ctx context.Context, id, userID uint64) error {
	if _, err := s.findOwned(ctx, id, userID); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return persistenceError("delete notification", err)
	}
	return nil
}

func (s *NotificationService) findOwned(ctx context.Context, id, userID uint64) (*models.Notification, error) {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, persistenceError("find notification", err)
	}

	if notification.UserID != userID {
		return nil, ErrNotificationForbidden
	}
	return notification, nil
}
