package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"eventhub/internal/domain"
)

// Transition labels recorded in metrics.
const (
	transitionCreated           = "created"
	transitionApproved          = "pending_to_approved"
	transitionRejected          = "pending_to_rejected"
	transitionCompleted         = "approved_to_completed"
	transitionDeletionRequested = "deletion_requested"
	transitionDeletionApproved  = "deletion_approved"
	transitionDeleted           = "deleted"
)

type eventService struct {
	eventRepo      domain.EventRepository
	notifier       domain.NotificationService
	pusher         domain.Pusher
	images         domain.ImageStore
	metrics        domain.Metrics
	logger         *slog.Logger
	contextTimeout time.Duration
}

func NewEventService(
	eventRepo domain.EventRepository,
	notifier domain.NotificationService,
	pusher domain.Pusher,
	images domain.ImageStore,
	metrics domain.Metrics,
	logger *slog.Logger,
	timeout time.Duration,
) domain.EventService {
	return &eventService{
		eventRepo:      eventRepo,
		notifier:       notifier,
		pusher:         pusher,
		images:         images,
		metrics:        metrics,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func validateEventInput(in domain.EventInput) error {
	var missing []string
	if strings.TrimSpace(in.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(in.Description) == "" {
		missing = append(missing, "description")
	}
	if in.Date.IsZero() {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(in.Location) == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required", domain.ErrInvalidInput, strings.Join(missing, ", "))
	}
	for i, se := range in.SubEvents {
		if strings.TrimSpace(se.Name) == "" {
			return fmt.Errorf("%w: sub_events[%d].name required", domain.ErrInvalidInput, i)
		}
		if se.Fee.IsNegative() {
			return fmt.Errorf("%w: sub_events[%d].fee must not be negative", domain.ErrInvalidInput, i)
		}
	}
	return nil
}

func (s *eventService) CreateEvent(ctx context.Context, caller domain.Caller, in domain.EventInput) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	if !caller.Is(domain.RoleCommunity) {
		return nil, fmt.Errorf("%w: only community accounts may create events", domain.ErrForbidden)
	}
	if err := validateEventInput(in); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	event := &domain.Event{
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Date:         in.Date,
		Location:     strings.TrimSpace(in.Location),
		Category:     strings.TrimSpace(in.Category),
		Coordinators: in.Coordinators,
		Links:        in.Links,
		SubEvents:    make([]domain.SubEvent, 0, len(in.SubEvents)),
		Status:       domain.EventStatusPending,
		CreatorID:    caller.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for _, se := range in.SubEvents {
		event.SubEvents = append(event.SubEvents, domain.SubEvent{
			Name:         strings.TrimSpace(se.Name),
			Date:         se.Date,
			Venue:        se.Venue,
			Description:  se.Description,
			Rules:        se.Rules,
			Coordinators: se.Coordinators,
			Fee:          se.Fee,
			Prize:        se.Prize,
		})
	}
	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.metrics.EventTransition(transitionCreated)
	return event, nil
}

// load fetches an event, translating a missing document to ErrNotFound.
func (s *eventService) load(ctx context.Context, id string) (*domain.Event, error) {
	event, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return event, nil
}

// loadOwned fetches an event the caller created.
func (s *eventService) loadOwned(ctx context.Context, caller domain.Caller, id string) (*domain.Event, error) {
	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	event, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.CreatorID != caller.ID {
		return nil, fmt.Errorf("%w: only the event creator may change it", domain.ErrForbidden)
	}
	return event, nil
}

func requireSuperAdmin(caller domain.Caller) error {
	if err := requireCaller(caller); err != nil {
		return err
	}
	if !caller.Is(domain.RoleSuperAdmin) {
		return fmt.Errorf("%w: superadmin only", domain.ErrForbidden)
	}
	return nil
}

func (s *eventService) GetEvent(ctx context.Context, caller domain.Caller, id string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canView(caller, event) {
		return nil, domain.ErrNotFound
	}
	if !canManage(caller, event) {
		return event.WithoutRegistrations(), nil
	}
	return event, nil
}

// visibleFilter narrows f to what caller may see. Non-superadmin callers asking
// for a status other than approved only get their own events in that status.
func visibleFilter(caller domain.Caller, f domain.EventFilter) (domain.EventFilter, bool) {
	if caller.Is(domain.RoleSuperAdmin) {
		return f, true
	}
	requested := f.Statuses
	f.IncludeCreatorID = ""
	onlyApproved := len(requested) == 0 ||
		!slices.ContainsFunc(requested, func(st domain.EventStatus) bool { return st != domain.EventStatusApproved })
	if onlyApproved {
		f.Statuses = []domain.EventStatus{domain.EventStatusApproved}
		if len(requested) == 0 && !caller.Anonymous() {
			f.IncludeCreatorID = caller.ID
		}
		return f, true
	}
	if caller.Anonymous() {
		return f, false
	}
	f.CreatorID = caller.ID
	return f, true
}

func (s *eventService) ListEvents(ctx context.Context, caller domain.Caller, filter domain.EventFilter, page domain.PaginationParams) (*domain.EventListResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, st)
		}
	}
	filter, ok := visibleFilter(caller, filter)
	if !ok {
		return &domain.EventListResult{Events: []*domain.Event{}}, nil
	}
	return s.list(ctx, filter, page)
}

func (s *eventService) list(ctx context.Context, filter domain.EventFilter, page domain.PaginationParams) (*domain.EventListResult, error) {
	events, total, err := s.eventRepo.List(ctx, filter, page.Normalized())
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []*domain.Event{}
	}
	return &domain.EventListResult{Events: events, Total: total}, nil
}

func (s *eventService) ListMyEvents(ctx context.Context, caller domain.Caller, page domain.PaginationParams) (*domain.EventListResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	return s.list(ctx, domain.EventFilter{CreatorID: caller.ID}, page)
}

func validatePatch(event *domain.Event, p domain.EventPatch) error {
	if p.Empty() {
		return fmt.Errorf("%w: nothing to update", domain.ErrInvalidInput)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", domain.ErrInvalidInput)
	}
	if p.Description != nil && strings.TrimSpace(*p.Description) == "" {
		return fmt.Errorf("%w: description must not be empty", domain.ErrInvalidInput)
	}
	if p.Location != nil && strings.TrimSpace(*p.Location) == "" {
		return fmt.Errorf("%w: location must not be empty", domain.ErrInvalidInput)
	}
	if p.Date != nil && p.Date.IsZero() {
		return fmt.Errorf("%w: date must not be empty", domain.ErrInvalidInput)
	}
	if p.Status != nil {
		if *p.Status != domain.EventStatusCompleted {
			return fmt.Errorf("%w: status may only be set to completed", domain.ErrInvalidInput)
		}
		if event.Status != domain.EventStatusApproved {
			return fmt.Errorf("%w: only approved events can be completed", domain.ErrInvalidInput)
		}
	}
	return nil
}

func (s *eventService) UpdateEvent(ctx context.Context, caller domain.Caller, id string, patch domain.EventPatch) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.loadOwned(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if event.Status == domain.EventStatusRejected {
		return nil, fmt.Errorf("%w: rejected events cannot be edited", domain.ErrInvalidInput)
	}
	if err := validatePatch(event, patch); err != nil {
		return nil, err
	}
	updated, err := s.eventRepo.Update(ctx, id, patch)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			if _, loadErr := s.load(ctx, id); loadErr != nil {
				return nil, loadErr
			}
			return nil, fmt.Errorf("%w: event status changed concurrently", domain.ErrConflict)
		}
		return nil, fmt.Errorf("update event: %w", err)
	}
	if patch.Status != nil {
		s.metrics.EventTransition(transitionCompleted)
	}
	return updated, nil
}

func (s *eventService) UploadEventImage(ctx context.Context, caller domain.Caller, id string, r io.Reader, filename string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	event, err := s.loadOwned(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	if event.Status == domain.EventStatusRejected {
		return nil, fmt.Errorf("%w: rejected events cannot be edited", domain.ErrInvalidInput)
	}
	url, err := s.images.Upload(ctx, r, filename)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("upload event image: %w", err)
	}
	updated, err := s.eventRepo.SetImageURL(ctx, id, url)
	if err != nil {
		s.deleteImage(ctx, url)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("set event image: %w", err)
	}
	if event.ImageURL != "" && event.ImageURL != url {
		s.deleteImage(ctx, event.ImageURL)
	}
	return updated, nil
}

func (s *eventService) SetStatus(ctx context.Context, caller domain.Caller, id string, status domain.EventStatus, reason string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := requireSuperAdmin(caller); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	switch status {
	case domain.EventStatusApproved:
		reason = ""
	case domain.EventStatusRejected:
		if reason == "" {
			return nil, fmt.Errorf("%w: a rejection reason is required", domain.ErrInvalidInput)
		}
	default:
		return nil, fmt.Errorf("%w: status must be approved or rejected", domain.ErrInvalidInput)
	}

	event, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.Status != domain.EventStatusPending {
		return nil, fmt.Errorf("%w: event is %s, only pending events can be approved or rejected", domain.ErrInvalidInput, event.Status)
	}
	updated, err := s.eventRepo.UpdateStatus(ctx, id, domain.EventStatusPending, status, reason)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: event status changed concurrently", domain.ErrConflict)
		}
		return nil, fmt.Errorf("update event status: %w", err)
	}

	if status == domain.EventStatusApproved {
		s.metrics.EventTransition(transitionApproved)
		s.notify(ctx, updated.CreatorID, domain.NotificationInput{
			Message:        fmt.Sprintf("Your event %q has been approved.", updated.Title),
			Type:           domain.NotificationEventApproved,
			RelatedEventID: updated.ID,
		})
	} else {
		s.metrics.EventTransition(transitionRejected)
		s.notify(ctx, updated.CreatorID, domain.NotificationInput{
			Message:         fmt.Sprintf("Your event %q has been rejected.", updated.Title),
			Type:            domain.NotificationEventRejected,
			RelatedEventID:  updated.ID,
			RejectionReason: reason,
		})
	}
	s.emitAll(ctx, domain.PushEventStatusChanged, map[string]any{"event_id": updated.ID, "status": updated.Status})

	// The fan-out runs on its own per-recipient timeouts, past this call's deadline.
	if status == domain.EventStatusApproved {
		s.notifyRole(ctx, domain.RoleUser, domain.NotificationInput{
			Message:        fmt.Sprintf("New event coming soon: %s", updated.Title),
			Type:           domain.NotificationNewEvent,
			RelatedEventID: updated.ID,
		})
	}
	return updated, nil
}

func (s *eventService) RequestDeletion(ctx context.Context, caller domain.Caller, id, reason string) (*domain.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if _, err := s.loadOwned(ctx, caller, id); err != nil {
		return nil, err
	}
	updated, err := s.eventRepo.RequestDeletion(ctx, id, strings.TrimSpace(reason))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("request event deletion: %w", err)
	}
	s.metrics.EventTransition(transitionDeletionRequested)
	s.emitAll(ctx, domain.PushDeletionRequested, map[string]any{
		"event_id": updated.ID,
		"title":    updated.Title,
		"reason":   updated.DeletionReason,
	})
	return updated, nil
}

func (s *eventService) ApproveDeletion(ctx context.Context, caller domain.Caller, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := requireSuperAdmin(caller); err != nil {
		return err
	}
	event, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !event.DeletionRequested {
		return fmt.Errorf("%w: deletion has not been requested for this event", domain.ErrInvalidInput)
	}
	return s.remove(ctx, event, transitionDeletionApproved)
}

func (s *eventService) DeleteEvent(ctx context.Context, caller domain.Caller, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := requireSuperAdmin(caller); err != nil {
		return err
	}
	event, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return s.remove(ctx, event, transitionDeleted)
}

// remove hard-deletes event and tells its creator.
func (s *eventService) remove(ctx context.Context, event *domain.Event, transition string) error {
	if err := s.eventRepo.Delete(ctx, event.ID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("delete event: %w", err)
	}
	s.metrics.EventTransition(transition)
	s.notify(ctx, event.CreatorID, domain.NotificationInput{
		Message:        fmt.Sprintf("Your event %q has been deleted.", event.Title),
		Type:           domain.NotificationEventDeleted,
		RelatedEventID: event.ID,
	})
	s.emitAll(ctx, domain.PushEventDeleted, map[string]any{"event_id": event.ID})
	if event.ImageURL != "" {
		s.deleteImage(ctx, event.ImageURL)
	}
	return nil
}

func (s *eventService) ListDeletionRequests(ctx context.Context, caller domain.Caller, page domain.PaginationParams) (*domain.EventListResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := requireSuperAdmin(caller); err != nil {
		return nil, err
	}
	requested := true
	return s.list(ctx, domain.EventFilter{DeletionRequested: &requested}, page)
}

func (s *eventService) notify(ctx context.Context, recipientID string, in domain.NotificationInput) {
	if _, err := s.notifier.NotifyOne(ctx, recipientID, in); err != nil {
		s.logger.WarnContext(ctx, "notify event creator failed", "recipient_id", recipientID, "type", in.Type, "err", err)
	}
}

func (s *eventService) notifyRole(ctx context.Context, role domain.Role, in domain.NotificationInput) {
	if n, err := s.notifier.NotifyRole(ctx, role, in); err != nil {
		s.logger.WarnContext(ctx, "role fan-out incomplete", "role", role, "type", in.Type, "created", n, "err", err)
	}
}

func (s *eventService) emitAll(ctx context.Context, event string, payload any) {
	if err := s.pusher.EmitToAll(ctx, event, payload); err != nil {
		s.logger.WarnContext(ctx, "push failed", "event", event, "err", err)
	}
}

func (s *eventService) deleteImage(ctx context.Context, url string) {
	if err := s.images.Delete(ctx, url); err != nil {
		s.logger.WarnContext(ctx, "delete event image failed", "url", url, "err", err)
	}
}
