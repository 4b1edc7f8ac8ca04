package domain

import (
	"context"
	"io"
	"time"
)

// Registration is one person's enrollment in an event or sub-event. It is
// append-only: never updated or removed once stored.
// swagger:model Registration
type Registration struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone,omitempty"`
	InstituteName string    `json:"institute_name,omitempty"`
	Degree        string    `json:"degree,omitempty"`
	Branch        string    `json:"branch,omitempty"`
	Year          int       `json:"year,omitempty"`
	TransactionID string    `json:"transaction_id,omitempty"`
	RegisteredAt  time.Time `json:"registered_at"`
}

// RegistrationDetails are the personal details a registrant submits.
type RegistrationDetails struct {
	Name          string
	Email         string
	Phone         string
	InstituteName string
	Degree        string
	Branch        string
	Year          int
	TransactionID string
}

// RegistrationService appends registrations and exposes them to event owners.
type RegistrationService interface {
	Register(ctx context.Context, eventID, subEventID string, details RegistrationDetails) (*Registration, error)
	ListRegistrations(ctx context.Context, caller Caller, eventID, subEventID string) ([]Registration, error)
}

// EventSummary aggregates event counts for superadmin reporting.
// swagger:model EventSummary
type EventSummary struct {
	ByStatus       []EventStatusCount `json:"by_status"`
	TotalEvents    int                `json:"total_events"`
	TotalAttendees int                `json:"total_attendees"`
}

// ReportService produces exports and summaries over events.
type ReportService interface {
	ExportRegistrationsCSV(ctx context.Context, caller Caller, eventID string, w io.Writer) error
	EventSummary(ctx context.Context, caller Caller) (*EventSummary, error)
}
