package controllers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"eventhub/internal/delivery/http/helpers"
	"eventhub/internal/delivery/http/middleware"
	"eventhub/internal/domain"
)

// testLogger is a no-op logger for controller tests so we don't assert on log output.
var testLogger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))

var (
	communityCaller = domain.Caller{ID: "community-1", Role: domain.RoleCommunity}
	adminCaller     = domain.Caller{ID: "admin-1", Role: domain.RoleSuperAdmin}
)

// newRequest builds a request with an optional JSON body, path values and caller.
func newRequest(method, target, body string, caller domain.Caller, pathValues map[string]string) *http.Request {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range pathValues {
		req.SetPathValue(k, v)
	}
	if !caller.Anonymous() {
		req = req.WithContext(middleware.SetCaller(req.Context(), caller))
	}
	return req
}

// decodeEnvelope decodes an APIResponse, unmarshalling data into dest when non-nil.
func decodeEnvelope(t *testing.T, rr *httptest.ResponseRecorder, dest any) *helpers.APIError {
	t.Helper()
	var raw struct {
		Data  json.RawMessage   `json:"data"`
		Error *helpers.APIError `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&raw))
	if dest != nil {
		require.NoError(t, json.Unmarshal(raw.Data, dest))
	}
	return raw.Error
}

// fakeAuthService implements domain.AuthService for handler tests.
type fakeAuthService struct {
	err           error
	user          *domain.User
	token         string
	lastSignUp    domain.SignUpInput
	lastEmail     string
	lastCode      string
	requestCalled bool
}

func (f *fakeAuthService) SignUp(_ context.Context, in domain.SignUpInput) (*domain.User, error) {
	f.lastSignUp = in
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func (f *fakeAuthService) Login(_ context.Context, email, _ string) (string, *domain.User, error) {
	f.lastEmail = email
	if f.err != nil {
		return "", nil, f.err
	}
	return f.token, f.user, nil
}

func (f *fakeAuthService) RequestVerificationCode(_ context.Context, email string) error {
	f.requestCalled = true
	f.lastEmail = email
	return f.err
}

func (f *fakeAuthService) VerifyEmail(_ context.Context, email, code string) (*domain.User, error) {
	f.lastEmail, f.lastCode = email, code
	if f.err != nil {
		return nil, f.err
	}
	return f.user, nil
}

func (f *fakeAuthService) EnsureSuperAdmin(context.Context, string, string) (*domain.User, error) {
	return f.user, f.err
}

// fakeUserService implements domain.UserService for handler tests.
type fakeUserService struct {
	err           error
	user          *domain.User
	events        []*domain.Event
	lastCaller    domain.Caller
	lastName      *string
	lastLabel     *string
	lastLikedID   string
	lastUnlikedID string
}

func (f *fakeUserService) GetMe(_ context.Context, caller domain.Caller) (*domain.User, error) {
	f.lastCaller = caller
	return f.user, f.err
}

func (f *fakeUserService) UpdateProfile(_ context.Context, caller domain.Caller, name, label *string) (*domain.User, error) {
	f.lastCaller, f.lastName, f.lastLabel = caller, name, label
	return f.user, f.err
}

func (f *fakeUserService) LikeEvent(_ context.Context, caller domain.Caller, eventID string) error {
	f.lastCaller, f.lastLikedID = caller, eventID
	return f.err
}

func (f *fakeUserService) UnlikeEvent(_ context.Context, caller domain.Caller, eventID string) error {
	f.lastCaller, f.lastUnlikedID = caller, eventID
	return f.err
}

func (f *fakeUserService) ListLikedEvents(_ context.Context, caller domain.Caller) ([]*domain.Event, error) {
	f.lastCaller = caller
	return f.events, f.err
}

// fakeEventService implements domain.EventService for handler tests.
type fakeEventService struct {
	err          error
	event        *domain.Event
	list         *domain.EventListResult
	lastCaller   domain.Caller
	lastID       string
	lastInput    domain.EventInput
	lastFilter   domain.EventFilter
	lastPage     domain.PaginationParams
	lastPatch    domain.EventPatch
	lastStatus   domain.EventStatus
	lastReason   string
	lastFilename string
	lastImage    []byte
	deleted      []string
	approved     []string
}

func (f *fakeEventService) CreateEvent(_ context.Context, caller domain.Caller, in domain.EventInput) (*domain.Event, error) {
	f.lastCaller, f.lastInput = caller, in
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

func (f *fakeEventService) GetEvent(_ context.Context, caller domain.Caller, id string) (*domain.Event, error) {
	f.lastCaller, f.lastID = caller, id
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

func (f *fakeEventService) ListEvents(_ context.Context, caller domain.Caller, filter domain.EventFilter, page domain.PaginationParams) (*domain.EventListResult, error) {
	f.lastCaller, f.lastFilter, f.lastPage = caller, filter, page
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func (f *fakeEventService) ListMyEvents(_ context.Context, caller domain.Caller, page domain.PaginationParams) (*domain.EventListResult, error) {
	f.lastCaller, f.lastPage = caller, page
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func (f *fakeEventService) UpdateEvent(_ context.Context, caller domain.Caller, id string, patch domain.EventPatch) (*domain.Event, error) {
	f.lastCaller, f.lastID, f.lastPatch = caller, id, patch
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

func (f *fakeEventService) UploadEventImage(_ context.Context, caller domain.Caller, id string, r io.Reader, filename string) (*domain.Event, error) {
	f.lastCaller, f.lastID, f.lastFilename = caller, id, filename
	f.lastImage, _ = io.ReadAll(r)
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

func (f *fakeEventService) SetStatus(_ context.Context, caller domain.Caller, id string, status domain.EventStatus, reason string) (*domain.Event, error) {
	f.lastCaller, f.lastID, f.lastStatus, f.lastReason = caller, id, status, reason
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

func (f *fakeEventService) RequestDeletion(_ context.Context, caller domain.Caller, id, reason string) (*domain.Event, error) {
	f.lastCaller, f.lastID, f.lastReason = caller, id, reason
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

func (f *fakeEventService) ApproveDeletion(_ context.Context, caller domain.Caller, id string) error {
	f.lastCaller = caller
	if f.err != nil {
		return f.err
	}
	f.approved = append(f.approved, id)
	return nil
}

func (f *fakeEventService) DeleteEvent(_ context.Context, caller domain.Caller, id string) error {
	f.lastCaller = caller
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeEventService) ListDeletionRequests(_ context.Context, caller domain.Caller, page domain.PaginationParams) (*domain.EventListResult, error) {
	f.lastCaller, f.lastPage = caller, page
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

// fakeRegistrationService implements domain.RegistrationService.
type fakeRegistrationService struct {
	err            error
	regs           []domain.Registration
	lastEventID    string
	lastSubEventID string
	lastDetails    domain.RegistrationDetails
	lastCaller     domain.Caller
}

func (f *fakeRegistrationService) Register(_ context.Context, eventID, subEventID string, d domain.RegistrationDetails) (*domain.Registration, error) {
	f.lastEventID, f.lastSubEventID, f.lastDetails = eventID, subEventID, d
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Registration{ID: "reg-1", Name: d.Name, Email: d.Email}, nil
}

func (f *fakeRegistrationService) ListRegistrations(_ context.Context, caller domain.Caller, eventID, subEventID string) ([]domain.Registration, error) {
	f.lastCaller, f.lastEventID, f.lastSubEventID = caller, eventID, subEventID
	return f.regs, f.err
}

// fakeReportService implements domain.ReportService.
type fakeReportService struct {
	err     error
	csv     string
	summary *domain.EventSummary
}

func (f *fakeReportService) ExportRegistrationsCSV(_ context.Context, _ domain.Caller, _ string, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, f.csv)
	return err
}

func (f *fakeReportService) EventSummary(context.Context, domain.Caller) (*domain.EventSummary, error) {
	return f.summary, f.err
}

// fakeNotificationService implements domain.NotificationService.
type fakeNotificationService struct {
	err          error
	count        int
	notification *domain.Notification
	list         *domain.NotificationListResult
	lastCaller   domain.Caller
	lastID       string
	lastUnread   bool
	lastRole     domain.Role
	lastMessage  string
	lastType     domain.NotificationType
}

func (f *fakeNotificationService) NotifyOne(context.Context, string, domain.NotificationInput) (*domain.Notification, error) {
	return f.notification, f.err
}

func (f *fakeNotificationService) NotifyRole(context.Context, domain.Role, domain.NotificationInput) (int, error) {
	return f.count, f.err
}

func (f *fakeNotificationService) Broadcast(_ context.Context, caller domain.Caller, role domain.Role, message string, typ domain.NotificationType) (int, error) {
	f.lastCaller, f.lastRole, f.lastMessage, f.lastType = caller, role, message, typ
	return f.count, f.err
}

func (f *fakeNotificationService) ListMine(_ context.Context, caller domain.Caller, unreadOnly bool, _ domain.PaginationParams) (*domain.NotificationListResult, error) {
	f.lastCaller, f.lastUnread = caller, unreadOnly
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func (f *fakeNotificationService) UnreadCount(_ context.Context, caller domain.Caller) (int, error) {
	f.lastCaller = caller
	return f.count, f.err
}

func (f *fakeNotificationService) MarkRead(_ context.Context, caller domain.Caller, id string) (*domain.Notification, error) {
	f.lastCaller, f.lastID = caller, id
	if f.err != nil {
		return nil, f.err
	}
	return f.notification, nil
}

func (f *fakeNotificationService) MarkAllRead(_ context.Context, caller domain.Caller) (int, error) {
	f.lastCaller = caller
	return f.count, f.err
}

func (f *fakeNotificationService) Delete(_ context.Context, caller domain.Caller, id string) error {
	f.lastCaller, f.lastID = caller, id
	return f.err
}

// fakeSubscriber implements domain.PushSubscriber with a fixed set of messages.
type fakeSubscriber struct {
	messages []domain.PushMessage
	err      error
	lastUser string
}

func (f *fakeSubscriber) Subscribe(_ context.Context, userID string) (<-chan domain.PushMessage, error) {
	f.lastUser = userID
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan domain.PushMessage, len(f.messages))
	for _, m := range f.messages {
		ch <- m
	}
	close(ch)
	return ch, nil
}
