package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"eventhub/internal/domain"
)

var registrationCSVHeader = []string{
	"scope", "sub_event", "name", "email", "phone", "institute", "degree", "branch", "year", "transaction_id", "registered_at",
}

type reportService struct {
	eventRepo      domain.EventRepository
	contextTimeout time.Duration
}

func NewReportService(eventRepo domain.EventRepository, timeout time.Duration) domain.ReportService {
	return &reportService{eventRepo: eventRepo, contextTimeout: timeout}
}

func (s *reportService) ExportRegistrationsCSV(ctx context.Context, caller domain.Caller, eventID string, w io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := requireCaller(caller); err != nil {
		return err
	}
	event, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("get event: %w", err)
	}
	if !canManage(caller, event) {
		return fmt.Errorf("%w: only the event creator or a superadmin may export registrations", domain.ErrForbidden)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(registrationCSVHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range event.Registrations {
		if err := cw.Write(registrationRecord(scopeMain, "", r)); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	for _, se := range event.SubEvents {
		for _, r := range se.Registrations {
			if err := cw.Write(registrationRecord(scopeSubEvent, se.Name, r)); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func registrationRecord(scope, subEvent string, r domain.Registration) []string {
	year := ""
	if r.Year > 0 {
		year = strconv.Itoa(r.Year)
	}
	return []string{
		scope, subEvent, r.Name, r.Email, r.Phone, r.InstituteName, r.Degree, r.Branch, year, r.TransactionID,
		r.RegisteredAt.UTC().Format(time.RFC3339),
	}
}

func (s *reportService) EventSummary(ctx context.Context, caller domain.Caller) (*domain.EventSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	if err := requireSuperAdmin(caller); err != nil {
		return nil, err
	}
	counts, attendees, err := s.eventRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count events by status: %w", err)
	}
	summary := &domain.EventSummary{ByStatus: counts, TotalAttendees: attendees}
	if summary.ByStatus == nil {
		summary.ByStatus = []domain.EventStatusCount{}
	}
	for _, c := range counts {
		summary.TotalEvents += c.Count
	}
	return summary, nil
}
