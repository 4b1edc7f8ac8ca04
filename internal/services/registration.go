package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"eventhub/internal/domain"
)

const (
	scopeMain     = "main"
	scopeSubEvent = "sub_event"

	maxStudyYear          = 10
	calendarEventDuration = 2 * time.Hour
	calendarTimeLayout    = "20060102T150405Z"
)

type registrationService struct {
	eventRepo      domain.EventRepository
	emailService   domain.EmailService
	pusher         domain.Pusher
	metrics        domain.Metrics
	logger         *slog.Logger
	appBaseURL     string
	contextTimeout time.Duration
	now            func() time.Time
}

func NewRegistrationService(
	eventRepo domain.EventRepository,
	emailService domain.EmailService,
	pusher domain.Pusher,
	metrics domain.Metrics,
	logger *slog.Logger,
	appBaseURL string,
	timeout time.Duration,
) domain.RegistrationService {
	return &registrationService{
		eventRepo:      eventRepo,
		emailService:   emailService,
		pusher:         pusher,
		metrics:        metrics,
		logger:         logger,
		appBaseURL:     strings.TrimRight(appBaseURL, "/"),
		contextTimeout: timeout,
		now:            time.Now,
	}
}

func validateRegistration(d domain.RegistrationDetails) error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if !emailRegexp.MatchString(strings.TrimSpace(d.Email)) {
		return fmt.Errorf("%w: a valid email is required", domain.ErrInvalidInput)
	}
	if d.Year < 0 || d.Year > maxStudyYear {
		return fmt.Errorf("%w: year must be between 1 and %d when given", domain.ErrInvalidInput, maxStudyYear)
	}
	return nil
}

func (s *registrationService) Register(ctx context.Context, eventID, subEventID string, d domain.RegistrationDetails) (*domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := validateRegistration(d); err != nil {
		return nil, err
	}
	reg := domain.Registration{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(d.Name),
		Email:         strings.ToLower(strings.TrimSpace(d.Email)),
		Phone:         strings.TrimSpace(d.Phone),
		InstituteName: strings.TrimSpace(d.InstituteName),
		Degree:        strings.TrimSpace(d.Degree),
		Branch:        strings.TrimSpace(d.Branch),
		Year:          d.Year,
		TransactionID: strings.TrimSpace(d.TransactionID),
		RegisteredAt:  s.now().UTC(),
	}

	event, err := s.eventRepo.AppendRegistration(ctx, eventID, subEventID, reg)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, s.diagnose(ctx, eventID, subEventID)
		}
		return nil, fmt.Errorf("append registration: %w", err)
	}

	scope := scopeMain
	if subEventID != "" {
		scope = scopeSubEvent
	}
	s.metrics.RegistrationCreated(scope)
	s.logger.InfoContext(ctx, "registration created", "event_id", event.ID, "sub_event_id", subEventID, "attendees", event.Attendees)

	s.sendConfirmation(ctx, event, subEventID, reg)
	payload := map[string]any{
		"event_id":        event.ID,
		"sub_event_id":    subEventID,
		"registration_id": reg.ID,
		"attendees":       event.Attendees,
	}
	if err := s.pusher.EmitToUser(ctx, event.CreatorID, domain.PushRegistrationCreated, payload); err != nil {
		s.logger.WarnContext(ctx, "push registration failed", "event_id", event.ID, "err", err)
	}
	return &reg, nil
}

// diagnose explains why the guarded append matched no document.
func (s *registrationService) diagnose(ctx context.Context, eventID, subEventID string) error {
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get event: %w", err)
	}
	if event.Status != domain.EventStatusApproved {
		return fmt.Errorf("%w: event is %s and not open for registration", domain.ErrInvalidInput, event.Status)
	}
	if subEventID != "" && event.SubEvent(subEventID) == nil {
		return fmt.Errorf("%w: sub-event not found", domain.ErrNotFound)
	}
	return fmt.Errorf("%w: event changed during registration, try again", domain.ErrConflict)
}

func (s *registrationService) sendConfirmation(ctx context.Context, event *domain.Event, subEventID string, reg domain.Registration) {
	data := &domain.RegistrationConfirmationEmailData{
		Email:      reg.Email,
		Name:       reg.Name,
		EventTitle: event.Title,
		Date:       event.Date,
		Location:   event.Location,
		EventURL:   s.appBaseURL + "/events/" + event.ID,
	}
	if se := event.SubEvent(subEventID); se != nil {
		data.SubEventName = se.Name
		if !se.Date.IsZero() {
			data.Date = se.Date
		}
		if se.Venue != "" {
			data.Location = se.Venue
		}
	}
	title := data.EventTitle
	if data.SubEventName != "" {
		title += ": " + data.SubEventName
	}
	data.CalendarURL = googleCalendarURL(title, event.Description, data.Location, data.Date)

	if err := s.emailService.SendRegistrationConfirmation(ctx, data); err != nil {
		s.logger.WarnContext(ctx, "registration confirmation email failed", "event_id", event.ID, "err", err)
	}
}

// googleCalendarURL builds an "add to calendar" template link.
func googleCalendarURL(title, details, location string, start time.Time) string {
	start = start.UTC()
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", title)
	q.Set("dates", start.Format(calendarTimeLayout)+"/"+start.Add(calendarEventDuration).Format(calendarTimeLayout))
	q.Set("details", details)
	q.Set("location", location)
	return "https://calendar.google.com/calendar/render?" + q.Encode()
}

func (s *registrationService) ListRegistrations(ctx context.Context, caller domain.Caller, eventID, subEventID string) ([]domain.Registration, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := requireCaller(caller); err != nil {
		return nil, err
	}
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	if !canManage(caller, event) {
		return nil, fmt.Errorf("%w: only the event creator or a superadmin may view registrations", domain.ErrForbidden)
	}
	regs := event.Registrations
	if subEventID != "" {
		se := event.SubEvent(subEventID)
		if se == nil {
			return nil, fmt.Errorf("%w: sub-event not found", domain.ErrNotFound)
		}
		regs = se.Registrations
	}
	if regs == nil {
		regs = []domain.Registration{}
	}
	return regs, nil
}
