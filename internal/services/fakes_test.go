package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"time"

	"eventhub/internal/domain"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

const testTimeout = 5 * time.Second

// fakeEventRepo is an in-memory event store. AppendRegistration holds the lock
// for the status check and the append, matching the single-document update of
// the real store.
type fakeEventRepo struct {
	mu        sync.Mutex
	events    map[string]*domain.Event
	seq       int
	updateErr error
	appendErr error
	// onAppend runs inside AppendRegistration before the guard, so a test can
	// change the stored event between the caller's read and the write.
	onAppend func(e *domain.Event)
	// onUpdate plays the same role for Update.
	onUpdate func(e *domain.Event)
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{events: make(map[string]*domain.Event)}
}

func cloneEvent(e *domain.Event) *domain.Event {
	cp := *e
	cp.Registrations = slices.Clone(e.Registrations)
	cp.SubEvents = make([]domain.SubEvent, len(e.SubEvents))
	for i, se := range e.SubEvents {
		se.Registrations = slices.Clone(se.Registrations)
		cp.SubEvents[i] = se
	}
	return &cp
}

func (f *fakeEventRepo) put(e *domain.Event) *domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e.ID == "" {
		f.seq++
		e.ID = "event-" + strconv.Itoa(f.seq)
	}
	for i := range e.SubEvents {
		if e.SubEvents[i].ID == "" {
			e.SubEvents[i].ID = fmt.Sprintf("%s-sub-%d", e.ID, i+1)
		}
	}
	f.events[e.ID] = cloneEvent(e)
	return e
}

func (f *fakeEventRepo) get(id string) *domain.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.events[id]; ok {
		return cloneEvent(e)
	}
	return nil
}

func (f *fakeEventRepo) Create(_ context.Context, e *domain.Event) error {
	f.put(e)
	return nil
}

func (f *fakeEventRepo) GetByID(_ context.Context, id string) (*domain.Event, error) {
	if e := f.get(id); e != nil {
		return e, nil
	}
	return nil, domain.ErrNotFound
}

func (f *fakeEventRepo) matches(e *domain.Event, flt domain.EventFilter) bool {
	if len(flt.Statuses) > 0 && !slices.Contains(flt.Statuses, e.Status) {
		if flt.IncludeCreatorID == "" || e.CreatorID != flt.IncludeCreatorID {
			return false
		}
	}
	if flt.CreatorID != "" && e.CreatorID != flt.CreatorID {
		return false
	}
	if flt.Category != "" && e.Category != flt.Category {
		return false
	}
	if flt.DeletionRequested != nil && e.DeletionRequested != *flt.DeletionRequested {
		return false
	}
	return true
}

func (f *fakeEventRepo) List(_ context.Context, flt domain.EventFilter, page domain.PaginationParams) ([]*domain.Event, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var all []*domain.Event
	for _, e := range f.events {
		if f.matches(e, flt) {
			all = append(all, cloneEvent(e).WithoutRegistrations())
		}
	}
	slices.SortFunc(all, func(a, b *domain.Event) int { return a.Date.Compare(b.Date) })
	start := min(page.Offset(), len(all))
	end := min(start+page.PageSize, len(all))
	return all[start:end], len(all), nil
}

func (f *fakeEventRepo) ListByIDs(_ context.Context, ids []string) ([]*domain.Event, error) {
	out := []*domain.Event{}
	for _, id := range ids {
		if e := f.get(id); e != nil {
			out = append(out, e.WithoutRegistrations())
		}
	}
	return out, nil
}

func (f *fakeEventRepo) mutate(id string, fn func(e *domain.Event) bool) (*domain.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.events[id]
	if !ok || !fn(e) {
		return nil, domain.ErrNotFound
	}
	e.UpdatedAt = time.Now()
	return cloneEvent(e), nil
}

func (f *fakeEventRepo) Update(_ context.Context, id string, p domain.EventPatch) (*domain.Event, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.mutate(id, func(e *domain.Event) bool {
		if f.onUpdate != nil {
			f.onUpdate(e)
		}
		if p.Status != nil && e.Status != domain.EventStatusApproved {
			return false
		}
		if e.Status == domain.EventStatusRejected {
			return false
		}
		if p.Title != nil {
			e.Title = *p.Title
		}
		if p.Description != nil {
			e.Description = *p.Description
		}
		if p.Date != nil {
			e.Date = *p.Date
		}
		if p.Location != nil {
			e.Location = *p.Location
		}
		if p.Category != nil {
			e.Category = *p.Category
		}
		if p.Coordinators != nil {
			e.Coordinators = *p.Coordinators
		}
		if p.Links != nil {
			e.Links = *p.Links
		}
		if p.Status != nil {
			e.Status = *p.Status
		}
		return true
	})
}

func (f *fakeEventRepo) UpdateStatus(_ context.Context, id string, from, to domain.EventStatus, reason string) (*domain.Event, error) {
	return f.mutate(id, func(e *domain.Event) bool {
		if e.Status != from {
			return false
		}
		e.Status = to
		e.RejectionReason = reason
		return true
	})
}

func (f *fakeEventRepo) RequestDeletion(_ context.Context, id, reason string) (*domain.Event, error) {
	return f.mutate(id, func(e *domain.Event) bool {
		e.DeletionRequested = true
		e.DeletionReason = reason
		return true
	})
}

func (f *fakeEventRepo) SetImageURL(_ context.Context, id, url string) (*domain.Event, error) {
	return f.mutate(id, func(e *domain.Event) bool {
		e.ImageURL = url
		return true
	})
}

func (f *fakeEventRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.events[id]; !ok {
		return domain.ErrNotFound
	}
	delete(f.events, id)
	return nil
}

func (f *fakeEventRepo) AppendRegistration(_ context.Context, eventID, subEventID string, reg domain.Registration) (*domain.Event, error) {
	if f.appendErr != nil {
		return nil, f.appendErr
	}
	return f.mutate(eventID, func(e *domain.Event) bool {
		if f.onAppend != nil {
			f.onAppend(e)
		}
		if e.Status != domain.EventStatusApproved {
			return false
		}
		if subEventID == "" {
			e.Registrations = append(e.Registrations, reg)
		} else {
			se := e.SubEvent(subEventID)
			if se == nil {
				return false
			}
			se.Registrations = append(se.Registrations, reg)
		}
		e.Attendees++
		return true
	})
}

func (f *fakeEventRepo) CountByStatus(context.Context) ([]domain.EventStatusCount, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	byStatus := map[domain.EventStatus]int{}
	attendees := 0
	for _, e := range f.events {
		byStatus[e.Status]++
		attendees += e.Attendees
	}
	var out []domain.EventStatusCount
	for _, st := range []domain.EventStatus{domain.EventStatusApproved, domain.EventStatusCompleted, domain.EventStatusPending, domain.EventStatusRejected} {
		if n := byStatus[st]; n > 0 {
			out = append(out, domain.EventStatusCount{Status: st, Count: n})
		}
	}
	return out, attendees, nil
}

// fakeNotificationRepo is an in-memory notification store.
type fakeNotificationRepo struct {
	mu        sync.Mutex
	items     []*domain.Notification
	seq       int
	failAfter int // Create fails once this many records exist; 0 disables.
	delay     time.Duration
}

func (f *fakeNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter > 0 && len(f.items) >= f.failAfter {
		return errors.New("connection reset")
	}
	f.seq++
	n.ID = fmt.Sprintf("00000000-0000-0000-0000-%012d", f.seq)
	n.CreatedAt = time.Now()
	cp := *n
	f.items = append(f.items, &cp)
	return nil
}

func (f *fakeNotificationRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items {
		if n.ID == id {
			cp := *n
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationRepo) forRecipient(id string) []*domain.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Notification
	for _, n := range f.items {
		if n.RecipientID == id {
			out = append(out, n)
		}
	}
	return out
}

func (f *fakeNotificationRepo) ListByRecipient(_ context.Context, recipientID string, unreadOnly bool, page domain.PaginationParams) ([]*domain.Notification, int, error) {
	var out []*domain.Notification
	for _, n := range f.forRecipient(recipientID) {
		if !unreadOnly || !n.IsRead {
			out = append(out, n)
		}
	}
	slices.Reverse(out)
	start := min(page.Offset(), len(out))
	end := min(start+page.PageSize, len(out))
	return out[start:end], len(out), nil
}

func (f *fakeNotificationRepo) CountUnread(_ context.Context, recipientID string) (int, error) {
	n := 0
	for _, item := range f.forRecipient(recipientID) {
		if !item.IsRead {
			n++
		}
	}
	return n, nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, id string) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range f.items {
		if n.ID == id {
			n.IsRead = true
			cp := *n
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeNotificationRepo) MarkAllRead(_ context.Context, recipientID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, n := range f.items {
		if n.RecipientID == recipientID && !n.IsRead {
			n.IsRead = true
			count++
		}
	}
	return count, nil
}

func (f *fakeNotificationRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, n := range f.items {
		if n.ID == id {
			f.items = slices.Delete(f.items, i, i+1)
			return nil
		}
	}
	return domain.ErrNotFound
}

// fakeUserRepo is an in-memory identity store.
type fakeUserRepo struct {
	mu      sync.Mutex
	byID    map[string]*domain.User
	seq     int
	listErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[string]*domain.User)}
}

func (f *fakeUserRepo) add(email string, role domain.Role) *domain.User {
	u := domain.NewUser(email, "User "+email, role, "", time.Now(), time.Now())
	_ = f.Create(context.Background(), u)
	return u
}

func (f *fakeUserRepo) Create(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.byID {
		if existing.Email == u.Email {
			return domain.ErrDuplicateEmail
		}
	}
	f.seq++
	u.ID = "user-" + strconv.Itoa(f.seq)
	cp := *u
	cp.LikedEvents = slices.Clone(u.LikedEvents)
	f.byID[u.ID] = &cp
	return nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			cp.LikedEvents = slices.Clone(u.LikedEvents)
			return &cp, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		cp := *u
		cp.LikedEvents = slices.Clone(u.LikedEvents)
		return &cp, nil
	}
	return nil, domain.ErrUserNotFound
}

func (f *fakeUserRepo) Update(_ context.Context, u *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	existing, ok := f.byID[u.ID]
	if !ok {
		return domain.ErrUserNotFound
	}
	existing.Name = u.Name
	existing.DisplayLabel = u.DisplayLabel
	existing.UpdatedAt = u.UpdatedAt
	return nil
}

func (f *fakeUserRepo) SetVerified(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.Verified = true
	return nil
}

func (f *fakeUserRepo) ListIDsByRole(_ context.Context, role domain.Role) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := []string{}
	for id, u := range f.byID {
		if u.Role == role {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (f *fakeUserRepo) AddLikedEvent(_ context.Context, userID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	if !slices.Contains(u.LikedEvents, eventID) {
		u.LikedEvents = append(u.LikedEvents, eventID)
	}
	return nil
}

func (f *fakeUserRepo) RemoveLikedEvent(_ context.Context, userID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.LikedEvents = slices.DeleteFunc(u.LikedEvents, func(id string) bool { return id == eventID })
	return nil
}

// fakeCodeRepo stores verification codes keyed by email.
type fakeCodeRepo struct {
	codes map[string]string
	err   error
}

func (f *fakeCodeRepo) Create(_ context.Context, email, codeHash string, _ time.Time) error {
	if f.err != nil {
		return f.err
	}
	if f.codes == nil {
		f.codes = map[string]string{}
	}
	f.codes[email] = codeHash
	return nil
}

func (f *fakeCodeRepo) Consume(_ context.Context, email, codeHash string) (bool, error) {
	if f.codes[email] != codeHash {
		return false, nil
	}
	delete(f.codes, email)
	return true, nil
}

type pushCall struct {
	userID string
	event  string
}

type fakePusher struct {
	mu    sync.Mutex
	calls []pushCall
	err   error
}

func (f *fakePusher) EmitToAll(_ context.Context, event string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pushCall{event: event})
	return f.err
}

func (f *fakePusher) EmitToUser(_ context.Context, userID, event string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pushCall{userID: userID, event: event})
	return f.err
}

func (f *fakePusher) count(event string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.event == event {
			n++
		}
	}
	return n
}

type fakeImageStore struct {
	uploaded []string
	deleted  []string
	err      error
}

func (f *fakeImageStore) Upload(_ context.Context, _ io.Reader, filename string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	url := "https://img.example.com/" + filename
	f.uploaded = append(f.uploaded, url)
	return url, nil
}

func (f *fakeImageStore) Delete(_ context.Context, url string) error {
	f.deleted = append(f.deleted, url)
	return nil
}

type fakeMetrics struct {
	mu            sync.Mutex
	transitions   map[string]int
	registrations map[string]int
	notifications map[domain.NotificationType]int
	emails        map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		transitions:   map[string]int{},
		registrations: map[string]int{},
		notifications: map[domain.NotificationType]int{},
		emails:        map[string]int{},
	}
}

func (f *fakeMetrics) EventTransition(t string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitions[t]++
}

func (f *fakeMetrics) RegistrationCreated(scope string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registrations[scope]++
}

func (f *fakeMetrics) NotificationsCreated(typ domain.NotificationType, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications[typ] += n
}

func (f *fakeMetrics) EmailSent(template string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		f.emails[template]++
	}
}

type fakeEmailService struct {
	mu            sync.Mutex
	codes         []*domain.VerificationCodeEmailData
	confirmations []*domain.RegistrationConfirmationEmailData
	err           error
}

func (f *fakeEmailService) SendVerificationCode(_ context.Context, d *domain.VerificationCodeEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, d)
	return f.err
}

func (f *fakeEmailService) SendRegistrationConfirmation(_ context.Context, d *domain.RegistrationConfirmationEmailData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirmations = append(f.confirmations, d)
	return f.err
}

type fakePasswordHasher struct{}

func (fakePasswordHasher) GenerateSalt() (string, error) { return "salt", nil }

func (fakePasswordHasher) Hash(salt, password string) (string, error) {
	return "hash:" + salt + ":" + password, nil
}

func (fakePasswordHasher) Compare(hash, salt, password string) error {
	if hash != "hash:"+salt+":"+password {
		return domain.ErrInvalidCredentials
	}
	return nil
}

type fakeTokenIssuer struct {
	err error
}

func (f *fakeTokenIssuer) Issue(u *domain.User, _ time.Duration) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-" + u.ID + "-" + string(u.Role), nil
}
