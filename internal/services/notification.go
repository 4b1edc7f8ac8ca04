package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventhub/internal/domain"
)

type notificationService struct {
	notificationRepo domain.NotificationRepository
	userRepo         domain.UserRepository
	pusher           domain.Pusher
	metrics          domain.Metrics
	logger           *slog.Logger
	contextTimeout   time.Duration
}

func NewNotificationService(
	notificationRepo domain.NotificationRepository,
	userRepo domain.UserRepository,
	pusher domain.Pusher,
	metrics domain.Metrics,
	logger *slog.Logger,
	timeout time.Duration,
) domain.NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		userRepo:         userRepo,
		pusher:           pusher,
		metrics:          metrics,
		logger:           logger,
		contextTimeout:   timeout,
	}
}

func validateNotificationInput(in domain.NotificationInput) error {
	if strings.TrimSpace(in.Message) == "" {
		return fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown notification type %q", domain.ErrInvalidInput, in.Type)
	}
	return nil
}

func (s *notificationService) NotifyOne(ctx context.Context, recipientID string, in domain.NotificationInput) (*domain.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if recipientID == "" {
		return nil, fmt.Errorf("%w: recipient is required", domain.ErrInvalidInput)
	}
	if err := validateNotificationInput(in); err != nil {
		return nil, err
	}
	n, err := s.create(ctx, recipientID, in)
	if err != nil {
		return nil, err
	}
	s.metrics.NotificationsCreated(in.Type, 1)
	return n, nil
}

func (s *notificationService) create(ctx context.Context, recipientID string, in domain.NotificationInput) (*domain.Notification, error) {
	n := &domain.Notification{
		RecipientID:     recipientID,
		Message:         strings.TrimSpace(in.Message),
		Type:            in.Type,
		RelatedEventID:  in.RelatedEventID,
		RejectionReason: in.RejectionReason,
	}
	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	if err := s.pusher.EmitToUser(ctx, recipientID, domain.PushNotification, n); err != nil {
		s.logger.WarnContext(ctx, "push notification failed", "recipient_id", recipientID, "err", err)
	}
	return n, nil
}

// NotifyRole creates one notification per user holding role. The fan-out is
// detached from the caller's cancellation and each insert gets its own
// timeout, so the total run time scales with the number of recipients.
func (s *notificationService) NotifyRole(ctx context.Context, role domain.Role, in domain.NotificationInput) (int, error) {
	if !role.Valid() {
		return 0, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}
	if err := validateNotificationInput(in); err != nil {
		return 0, err
	}
	ctx = context.WithoutCancel(ctx)

	listCtx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	ids, err := s.userRepo.ListIDsByRole(listCtx, role)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("list %s users: %w", role, err)
	}

	count := 0
	for _, id := range ids {
		if err := s.createWithTimeout(ctx, id, in); err != nil {
			s.metrics.NotificationsCreated(in.Type, count)
			return count, fmt.Errorf("fan-out to %s stopped after %d of %d: %w", role, count, len(ids), err)
		}
		count++
	}
	s.metrics.NotificationsCreated(in.Type, count)

	pushCtx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()
	payload := map[string]any{"role": role, "type": in.Type, "message": in.Message, "related_event_id": in.RelatedEventID}
	if err := s.pusher.EmitToAll(pushCtx, domain.PushBroadcast, payload); err != nil {
		s.logger.WarnContext(ctx, "push broadcast failed", "role", role, "err", err)
	}
	return count, nil
}

func (s *notificationService) createWithTimeout(ctx context.Context, recipientID string, in domain.NotificationInput) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()
	_, err := s.create(ctx, recipientID, in)
	return err
}

func (s *notificationService) Broadcast(ctx context.Context, caller domain.Caller, role domain.Role, message string, typ domain.NotificationType) (int, error) {
	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	if !caller.Is(domain.RoleCommunity) && !caller.Is(domain.RoleSuperAdmin) {
		return 0, fmt.Errorf("%w: only community or superadmin accounts may broadcast", domain.ErrForbidden)
	}
	count, err := s.NotifyRole(ctx, role, domain.NotificationInput{Message: message, Type: typ})
	if err != nil {
		return count, err
	}
	s.logger.InfoContext(ctx, "broadcast sent", "sender_id", caller.ID, "role", role, "type", typ, "count", count)
	return count, nil
}

func (s *notificationService) ListMine(ctx context.Context, caller domain.Caller, unreadOnly bool, page domain.PaginationParams) (*domain.NotificationListResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	list, total, err := s.notificationRepo.ListByRecipient(ctx, caller.ID, unreadOnly, page.Normalized())
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	if list == nil {
		list = []*domain.Notification{}
	}
	return &domain.NotificationListResult{Notifications: list, Total: total}, nil
}

func (s *notificationService) UnreadCount(ctx context.Context, caller domain.Caller) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	n, err := s.notificationRepo.CountUnread(ctx, caller.ID)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

// owned loads a notification and checks that caller is its recipient.
func (s *notificationService) owned(ctx context.Context, caller domain.Caller, id string) (*domain.Notification, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	n, err := s.notificationRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get notification: %w", err)
	}
	if n.RecipientID != caller.ID {
		return nil, domain.ErrForbidden
	}
	return n, nil
}

func (s *notificationService) MarkRead(ctx context.Context, caller domain.Caller, id string) (*domain.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	n, err := s.owned(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if n.IsRead {
		return n, nil
	}
	updated, err := s.notificationRepo.MarkRead(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return updated, nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, caller domain.Caller) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := requireCaller(caller); err != nil {
		return 0, err
	}
	n, err := s.notificationRepo.MarkAllRead(ctx, caller.ID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return n, nil
}

func (s *notificationService) Delete(ctx context.Context, caller domain.Caller, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.owned(ctx, caller, id); err != nil {
		return err
	}
	if err := s.notificationRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete notification: %w", err)
	}
	return nil
}
