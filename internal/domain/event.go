package domain

import (
	"context"
	"io"
	"time"

	"github.com/shopspring/decimal"
)

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventStatusPending   EventStatus = "pending"
	EventStatusApproved  EventStatus = "approved"
	EventStatusRejected  EventStatus = "rejected"
	EventStatusCompleted EventStatus = "completed"
)

// Valid reports whether s is a known status.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusPending, EventStatusApproved, EventStatusRejected, EventStatusCompleted:
		return true
	}
	return false
}

// Coordinator is a contact person for an event or sub-event.
type Coordinator struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
}

// Link is an external link attached to an event.
type Link struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Event is a community-created activity subject to superadmin approval.
// Attendees counts every registration ever made against the event and its
// sub-events; it is never decremented.
// swagger:model Event
type Event struct {
	ID                string         `json:"id"`
	Title             string         `json:"title"`
	Description       string         `json:"description"`
	Date              time.Time      `json:"date"`
	Location          string         `json:"location"`
	ImageURL          string         `json:"image_url"`
	Category          string         `json:"category"`
	Coordinators      []Coordinator  `json:"coordinators"`
	Links             []Link         `json:"links"`
	SubEvents         []SubEvent     `json:"sub_events"`
	Status            EventStatus    `json:"status"`
	CreatorID         string         `json:"creator_id"`
	Attendees         int            `json:"attendees"`
	RejectionReason   string         `json:"rejection_reason,omitempty"`
	DeletionRequested bool           `json:"deletion_requested"`
	DeletionReason    string         `json:"deletion_reason,omitempty"`
	Registrations     []Registration `json:"registrations,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// SubEvent is a nested activity of an Event with its own registration list.
type SubEvent struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Date          time.Time       `json:"date"`
	Venue         string          `json:"venue"`
	Description   string          `json:"description"`
	Rules         string          `json:"rules"`
	Coordinators  []Coordinator   `json:"coordinators"`
	Fee           decimal.Decimal `json:"fee"`
	Prize         string          `json:"prize"`
	Registrations []Registration  `json:"registrations,omitempty"`
}

// SubEvent returns the sub-event with the given id, or nil.
func (e *Event) SubEvent(id string) *SubEvent {
	for i := range e.SubEvents {
		if e.SubEvents[i].ID == id {
			return &e.SubEvents[i]
		}
	}
	return nil
}

// TotalRegistrations counts registrations across the main event and all sub-events.
func (e *Event) TotalRegistrations() int {
	n := len(e.Registrations)
	for _, se := range e.SubEvents {
		n += len(se.Registrations)
	}
	return n
}

// WithoutRegistrations returns a shallow copy with every registration list
// removed, for responses to callers who may not read registrant details.
func (e *Event) WithoutRegistrations() *Event {
	cp := *e
	cp.Registrations = nil
	cp.SubEvents = make([]SubEvent, len(e.SubEvents))
	for i, se := range e.SubEvents {
		se.Registrations = nil
		cp.SubEvents[i] = se
	}
	return &cp
}

// EventInput carries the caller-supplied fields of a new event.
type EventInput struct {
	Title        string
	Description  string
	Date         time.Time
	Location     string
	Category     string
	Coordinators []Coordinator
	Links        []Link
	SubEvents    []SubEventInput
}

// SubEventInput carries the caller-supplied fields of a new sub-event.
type SubEventInput struct {
	Name         string
	Date         time.Time
	Venue        string
	Description  string
	Rules        string
	Coordinators []Coordinator
	Fee          decimal.Decimal
	Prize        string
}

// EventPatch is a partial update; nil fields are left unchanged.
// Status may only carry EventStatusCompleted.
type EventPatch struct {
	Title        *string
	Description  *string
	Date         *time.Time
	Location     *string
	Category     *string
	Coordinators *[]Coordinator
	Links        *[]Link
	Status       *EventStatus
}

// Empty reports whether the patch changes nothing.
func (p EventPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Date == nil && p.Location == nil &&
		p.Category == nil && p.Coordinators == nil && p.Links == nil && p.Status == nil
}

// EventFilter narrows event listings. Statuses empty means any status.
// When IncludeCreatorID is set, events created by that user match regardless of Statuses.
type EventFilter struct {
	Statuses          []EventStatus
	CreatorID         string
	IncludeCreatorID  string
	Category          string
	Search            string
	DeletionRequested *bool
}

// EventStatusCount is the number of events in a status.
type EventStatusCount struct {
	Status EventStatus `json:"status"`
	Count  int         `json:"count"`
}

// EventRepository is the event store. AppendRegistration must be a single atomic
// document update covering both the list append and the attendee increment.
type EventRepository interface {
	Create(ctx context.Context, event *Event) error
	GetByID(ctx context.Context, id string) (*Event, error)
	List(ctx context.Context, filter EventFilter, page PaginationParams) ([]*Event, int, error)
	ListByIDs(ctx context.Context, ids []string) ([]*Event, error)
	// Update applies patch while the event is not rejected (approved, when the patch
	// completes it); it returns ErrNotFound when no such event matches.
	Update(ctx context.Context, id string, patch EventPatch) (*Event, error)
	// UpdateStatus moves an event from one status to another; it returns ErrNotFound
	// when no event with that id is currently in status from.
	UpdateStatus(ctx context.Context, id string, from, to EventStatus, rejectionReason string) (*Event, error)
	RequestDeletion(ctx context.Context, id, reason string) (*Event, error)
	SetImageURL(ctx context.Context, id, imageURL string) (*Event, error)
	Delete(ctx context.Context, id string) error
	// AppendRegistration appends reg to the main event (subEventID empty) or to the
	// sub-event and increments attendees, only while the event is approved. It returns
	// ErrNotFound when the guarded update matched nothing.
	AppendRegistration(ctx context.Context, eventID, subEventID string, reg Registration) (*Event, error)
	CountByStatus(ctx context.Context) ([]EventStatusCount, int, error)
}

// ImageStore uploads and removes event banner images.
type ImageStore interface {
	Upload(ctx context.Context, r io.Reader, filename string) (url string, err error)
	Delete(ctx context.Context, url string) error
}

// EventListResult is one page of events plus the total match count.
type EventListResult struct {
	Events []*Event
	Total  int
}

// EventService owns the event lifecycle state machine and its authorization rules.
type EventService interface {
	CreateEvent(ctx context.Context, caller Caller, input EventInput) (*Event, error)
	GetEvent(ctx context.Context, caller Caller, id string) (*Event, error)
	ListEvents(ctx context.Context, caller Caller, filter EventFilter, page PaginationParams) (*EventListResult, error)
	ListMyEvents(ctx context.Context, caller Caller, page PaginationParams) (*EventListResult, error)
	UpdateEvent(ctx context.Context, caller Caller, id string, patch EventPatch) (*Event, error)
	UploadEventImage(ctx context.Context, caller Caller, id string, r io.Reader, filename string) (*Event, error)
	SetStatus(ctx context.Context, caller Caller, id string, status EventStatus, reason string) (*Event, error)
	RequestDeletion(ctx context.Context, caller Caller, id, reason string) (*Event, error)
	ApproveDeletion(ctx context.Context, caller Caller, id string) error
	DeleteEvent(ctx context.Context, caller Caller, id string) error
	ListDeletionRequests(ctx context.Context, caller Caller, page PaginationParams) (*EventListResult, error)
}
