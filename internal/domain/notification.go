package domain

import (
	"context"
	"encoding/json"
	"time"
)

// NotificationType is the closed set of notification kinds.
type NotificationType string

const (
	NotificationEventApproved NotificationType = "event_approved"
	NotificationEventRejected NotificationType = "event_rejected"
	NotificationNewEvent      NotificationType = "new_event"
	NotificationEventDeleted  NotificationType = "event_deleted"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationEventApproved, NotificationEventRejected, NotificationNewEvent, NotificationEventDeleted:
		return true
	}
	return false
}

// Notification is a per-user message. Only IsRead ever changes after creation.
// swagger:model Notification
type Notification struct {
	ID              string           `json:"id"`
	RecipientID     string           `json:"recipient_id"`
	Message         string           `json:"message"`
	Type            NotificationType `json:"type"`
	RelatedEventID  string           `json:"related_event_id,omitempty"`
	IsRead          bool             `json:"is_read"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NotificationInput describes a notification to create.
type NotificationInput struct {
	Message         string
	Type            NotificationType
	RelatedEventID  string
	RejectionReason string
}

// NotificationRepository is the notification store.
type NotificationRepository interface {
	Create(ctx context.Context, n *Notification) error
	GetByID(ctx context.Context, id string) (*Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, page PaginationParams) ([]*Notification, int, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	MarkRead(ctx context.Context, id string) (*Notification, error)
	MarkAllRead(ctx context.Context, recipientID string) (int, error)
	Delete(ctx context.Context, id string) error
}

// NotificationListResult is one page of a user's notifications.
type NotificationListResult struct {
	Notifications []*Notification
	Total         int
}

// NotificationService creates notifications and lets recipients manage them.
// NotifyOne and NotifyRole perform no caller checks and are meant for other services.
type NotificationService interface {
	NotifyOne(ctx context.Context, recipientID string, in NotificationInput) (*Notification, error)
	// NotifyRole creates one notification per user with the role. The fan-out is not
	// transactional: on error, count reports how many were created before it stopped.
	NotifyRole(ctx context.Context, role Role, in NotificationInput) (count int, err error)
	Broadcast(ctx context.Context, caller Caller, role Role, message string, typ NotificationType) (int, error)
	ListMine(ctx context.Context, caller Caller, unreadOnly bool, page PaginationParams) (*NotificationListResult, error)
	UnreadCount(ctx context.Context, caller Caller) (int, error)
	MarkRead(ctx context.Context, caller Caller, id string) (*Notification, error)
	MarkAllRead(ctx context.Context, caller Caller) (int, error)
	Delete(ctx context.Context, caller Caller, id string) error
}

// Push event names.
const (
	PushNotification        = "notification"
	PushBroadcast           = "broadcast"
	PushEventStatusChanged  = "event_status_changed"
	PushDeletionRequested   = "deletion_requested"
	PushEventDeleted        = "event_deleted"
	PushRegistrationCreated = "registration_created"
)

// Pusher emits fire-and-forget real-time events. Events published while nobody
// is subscribed are dropped.
type Pusher interface {
	EmitToAll(ctx context.Context, event string, payload any) error
	EmitToUser(ctx context.Context, userID, event string, payload any) error
}

// PushMessage is a real-time event as delivered to a subscriber.
type PushMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// PushSubscriber streams the messages for one user's channel and the global channel
// until ctx is done, after which the returned channel is closed.
type PushSubscriber interface {
	Subscribe(ctx context.Context, userID string) (<-chan PushMessage, error)
}
