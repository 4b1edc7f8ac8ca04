package controllers

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	h "eventhub/internal/delivery/http/helpers"
	"eventhub/internal/delivery/http/middleware"
	"eventhub/internal/domain"
)

// RegisterRequest is the request body for the registration endpoints.
type RegisterRequest struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone"`
	InstituteName string `json:"institute_name"`
	Degree        string `json:"degree"`
	Branch        string `json:"branch"`
	Year          int    `json:"year" validate:"omitempty,min=1,max=10"`
	TransactionID string `json:"transaction_id"`
}

func (req RegisterRequest) toDetails() domain.RegistrationDetails {
	return domain.RegistrationDetails{
		Name:          strings.TrimSpace(req.Name),
		Email:         normalizeEmail(req.Email),
		Phone:         strings.TrimSpace(req.Phone),
		InstituteName: strings.TrimSpace(req.InstituteName),
		Degree:        strings.TrimSpace(req.Degree),
		Branch:        strings.TrimSpace(req.Branch),
		Year:          req.Year,
		TransactionID: strings.TrimSpace(req.TransactionID),
	}
}

// RegistrationSuccessResponse is the success envelope for a new registration (201).
type RegistrationSuccessResponse struct {
	Data  *domain.Registration `json:"data"`
	Error *h.APIError          `json:"error"`
}

// RegistrationsSuccessResponse is the success envelope for registration listings.
type RegistrationsSuccessResponse struct {
	Data  []domain.Registration `json:"data"`
	Error *h.APIError           `json:"error"`
}

// EventSummarySuccessResponse is the success envelope for GET /admin/reports/summary.
type EventSummarySuccessResponse struct {
	Data  *domain.EventSummary `json:"data"`
	Error *h.APIError          `json:"error"`
}

type RegistrationController struct {
	Logger  *slog.Logger
	Service domain.RegistrationService
	Reports domain.ReportService
}

func NewRegistrationController(logger *slog.Logger, svc domain.RegistrationService, reports domain.ReportService) *RegistrationController {
	return &RegistrationController{
		Logger:  logger,
		Service: svc,
		Reports: reports,
	}
}

// Register godoc
// @Summary Register for an event
// @Description Open to anyone while the event is approved. A confirmation email with a calendar link is sent to the registrant.
// @Tags registrations
// @Accept json
// @Produce json
// @Param eventID path string true "Event ID"
// @Param body body RegisterRequest true "Registrant details"
// @Success 201 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request (invalid details or event not open)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 429 {object} helpers.APIResponse "error.code: too_many_requests"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registrations [post]
func (c *RegistrationController) Register(w http.ResponseWriter, r *http.Request) {
	c.register(w, r, "")
}

// RegisterSubEvent godoc
// @Summary Register for a sub-event
// @Description Same rules as registering for the main event; counts toward the event's attendees.
// @Tags registrations
// @Accept json
// @Produce json
// @Param eventID path string true "Event ID"
// @Param subEventID path string true "Sub-event ID"
// @Param body body RegisterRequest true "Registrant details"
// @Success 201 {object} controllers.RegistrationSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 429 {object} helpers.APIResponse "error.code: too_many_requests"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/sub-events/{subEventID}/registrations [post]
func (c *RegistrationController) RegisterSubEvent(w http.ResponseWriter, r *http.Request) {
	subEventID := r.PathValue("subEventID")
	if subEventID == "" {
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "missing subEventID")
		return
	}
	c.register(w, r, subEventID)
}

func (c *RegistrationController) register(w http.ResponseWriter, r *http.Request, subEventID string) {
	var req RegisterRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	reg, err := c.Service.Register(r.Context(), r.PathValue("eventID"), subEventID, req.toDetails())
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, reg)
}

// ListRegistrations godoc
// @Summary List an event's registrations
// @Description Creator or superadmin only. Pass sub_event_id to list a sub-event's registrations instead of the main event's.
// @Tags registrations
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param sub_event_id query string false "Sub-event ID"
// @Success 200 {object} controllers.RegistrationsSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registrations [get]
func (c *RegistrationController) ListRegistrations(w http.ResponseWriter, r *http.Request) {
	regs, err := c.Service.ListRegistrations(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("eventID"), r.URL.Query().Get("sub_event_id"))
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, regs)
}

// ExportRegistrations godoc
// @Summary Export an event's registrations as CSV
// @Description Creator or superadmin only. Main-event rows come first, then each sub-event's rows.
// @Tags reports
// @Produce text/csv
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 200 {string} string "CSV file"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/registrations/export [get]
func (c *RegistrationController) ExportRegistrations(w http.ResponseWriter, r *http.Request) {
	eventID := r.PathValue("eventID")
	var buf bytes.Buffer
	if err := c.Reports.ExportRegistrationsCSV(r.Context(), middleware.CallerFromContext(r.Context()), eventID, &buf); err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "registrations-"+eventID+".csv"))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// EventSummary godoc
// @Summary Event counts per status and total attendees
// @Tags reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.EventSummarySuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/reports/summary [get]
func (c *RegistrationController) EventSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := c.Reports.EventSummary(r.Context(), middleware.CallerFromContext(r.Context()))
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, summary)
}
