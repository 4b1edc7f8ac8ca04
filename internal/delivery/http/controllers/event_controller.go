package controllers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	h "eventhub/internal/delivery/http/helpers"
	"eventhub/internal/delivery/http/middleware"
	"eventhub/internal/domain"
)

// maxImageUploadBytes caps the multipart body of POST /events/{eventID}/image.
const maxImageUploadBytes = 5 << 20

// CoordinatorRequest is a contact person in event request bodies.
type CoordinatorRequest struct {
	Name    string `json:"name" validate:"required"`
	Contact string `json:"contact"`
}

// LinkRequest is an external link in event request bodies.
type LinkRequest struct {
	Title string `json:"title"`
	URL   string `json:"url" validate:"required,url"`
}

// SubEventRequest is a nested activity in POST /events.
type SubEventRequest struct {
	Name         string               `json:"name" validate:"required"`
	Date         time.Time            `json:"date"`
	Venue        string               `json:"venue"`
	Description  string               `json:"description"`
	Rules        string               `json:"rules"`
	Coordinators []CoordinatorRequest `json:"coordinators" validate:"dive"`
	Fee          decimal.Decimal      `json:"fee" swaggertype:"string"`
	Prize        string               `json:"prize"`
}

// CreateEventRequest is the request body for POST /events.
type CreateEventRequest struct {
	Title        string               `json:"title" validate:"required"`
	Description  string               `json:"description" validate:"required"`
	Date         time.Time            `json:"date"`
	Location     string               `json:"location" validate:"required"`
	Category     string               `json:"category"`
	Coordinators []CoordinatorRequest `json:"coordinators" validate:"dive"`
	Links        []LinkRequest        `json:"links" validate:"dive"`
	SubEvents    []SubEventRequest    `json:"sub_events" validate:"dive"`
}

// Validate implements Validator.
func (c CreateEventRequest) Validate() []string {
	var errs []string
	if c.Date.IsZero() {
		errs = append(errs, "date is required")
	}
	for _, se := range c.SubEvents {
		if se.Fee.IsNegative() {
			errs = append(errs, "sub_events fee must not be negative")
			break
		}
	}
	return errs
}

func (c CreateEventRequest) toInput() domain.EventInput {
	in := domain.EventInput{
		Title:        c.Title,
		Description:  c.Description,
		Date:         c.Date,
		Location:     c.Location,
		Category:     c.Category,
		Coordinators: toCoordinators(c.Coordinators),
		Links:        toLinks(c.Links),
		SubEvents:    make([]domain.SubEventInput, 0, len(c.SubEvents)),
	}
	for _, se := range c.SubEvents {
		in.SubEvents = append(in.SubEvents, domain.SubEventInput{
			Name:         se.Name,
			Date:         se.Date,
			Venue:        se.Venue,
			Description:  se.Description,
			Rules:        se.Rules,
			Coordinators: toCoordinators(se.Coordinators),
			Fee:          se.Fee,
			Prize:        se.Prize,
		})
	}
	return in
}

func toCoordinators(in []CoordinatorRequest) []domain.Coordinator {
	out := make([]domain.Coordinator, 0, len(in))
	for _, c := range in {
		out = append(out, domain.Coordinator{Name: c.Name, Contact: c.Contact})
	}
	return out
}

func toLinks(in []LinkRequest) []domain.Link {
	out := make([]domain.Link, 0, len(in))
	for _, l := range in {
		out = append(out, domain.Link{Title: l.Title, URL: l.URL})
	}
	return out
}

// UpdateEventRequest is the request body for PATCH /events/{eventID}. All fields optional;
// omitted fields are unchanged. status accepts only "completed".
type UpdateEventRequest struct {
	Title        *string               `json:"title"`
	Description  *string               `json:"description"`
	Date         *time.Time            `json:"date"`
	Location     *string               `json:"location"`
	Category     *string               `json:"category"`
	Coordinators *[]CoordinatorRequest `json:"coordinators" validate:"omitempty,dive"`
	Links        *[]LinkRequest        `json:"links" validate:"omitempty,dive"`
	Status       *string               `json:"status" validate:"omitempty,eq=completed"`
}

func (u UpdateEventRequest) toPatch() domain.EventPatch {
	p := domain.EventPatch{
		Title:       u.Title,
		Description: u.Description,
		Date:        u.Date,
		Location:    u.Location,
		Category:    u.Category,
	}
	if u.Coordinators != nil {
		cs := toCoordinators(*u.Coordinators)
		p.Coordinators = &cs
	}
	if u.Links != nil {
		ls := toLinks(*u.Links)
		p.Links = &ls
	}
	if u.Status != nil {
		st := domain.EventStatus(*u.Status)
		p.Status = &st
	}
	return p
}

// SetStatusRequest is the request body for PATCH /events/{eventID}/status.
type SetStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
	Reason string `json:"reason"`
}

// Validate implements Validator.
func (s SetStatusRequest) Validate() []string {
	if s.Status == string(domain.EventStatusRejected) && strings.TrimSpace(s.Reason) == "" {
		return []string{"reason is required when rejecting"}
	}
	return nil
}

// DeletionRequest is the optional request body for POST /events/{eventID}/deletion-request.
type DeletionRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// EventSuccessResponse is the success envelope for endpoints returning one event.
type EventSuccessResponse struct {
	Data  *domain.Event `json:"data"`
	Error *h.APIError   `json:"error"`
}

// EventListResponse is one page of events.
type EventListResponse struct {
	Events     []*domain.Event  `json:"events"`
	Pagination h.PaginationMeta `json:"pagination"`
}

// EventListSuccessResponse is the success envelope for paginated event listings.
type EventListSuccessResponse struct {
	Data  EventListResponse `json:"data"`
	Error *h.APIError       `json:"error"`
}

type EventController struct {
	Logger  *slog.Logger
	Service domain.EventService
}

func NewEventController(logger *slog.Logger, svc domain.EventService) *EventController {
	return &EventController{
		Logger:  logger,
		Service: svc,
	}
}

func writeEventList(w http.ResponseWriter, page domain.PaginationParams, res *domain.EventListResult) {
	h.WriteJSONSuccess(w, http.StatusOK, EventListResponse{
		Events:     res.Events,
		Pagination: h.NewPaginationMeta(page, res.Total),
	})
}

// CreateEvent godoc
// @Summary Create an event
// @Description Community accounts only. The event starts in "pending" and is invisible to others until a superadmin approves it.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param event body CreateEventRequest true "Event data"
// @Success 201 {object} controllers.EventSuccessResponse "data contains the created event"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not a community account)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events [post]
func (c *EventController) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req CreateEventRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	event, err := c.Service.CreateEvent(r.Context(), middleware.CallerFromContext(r.Context()), req.toInput())
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, event)
}

// ListEvents godoc
// @Summary List events
// @Description Anonymous callers see approved events. Authenticated callers also see their own events; superadmins see everything. Registrant details are never included.
// @Tags events
// @Produce json
// @Param status query string false "Comma separated statuses (pending, approved, rejected, completed)"
// @Param category query string false "Category"
// @Param search query string false "Case-insensitive title search"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.EventListSuccessResponse
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events [get]
func (c *EventController) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := domain.EventFilter{
		Category: strings.TrimSpace(q.Get("category")),
		Search:   strings.TrimSpace(q.Get("search")),
	}
	if raw := q.Get("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				filter.Statuses = append(filter.Statuses, domain.EventStatus(strings.ToLower(s)))
			}
		}
	}
	page := h.ParsePagination(r)
	res, err := c.Service.ListEvents(r.Context(), middleware.CallerFromContext(r.Context()), filter, page)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	writeEventList(w, page, res)
}

// ListMyEvents godoc
// @Summary List the caller's own events
// @Description Events created by the caller, in any status.
// @Tags events
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.EventListSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/mine [get]
func (c *EventController) ListMyEvents(w http.ResponseWriter, r *http.Request) {
	page := h.ParsePagination(r)
	res, err := c.Service.ListMyEvents(r.Context(), middleware.CallerFromContext(r.Context()), page)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	writeEventList(w, page, res)
}

// GetEvent godoc
// @Summary Get an event by ID
// @Description Unapproved events are reported as not found unless the caller created them or is a superadmin. Registrations are included only for those callers.
// @Tags events
// @Produce json
// @Param eventID path string true "Event ID"
// @Success 200 {object} controllers.EventSuccessResponse
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID} [get]
func (c *EventController) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := c.Service.GetEvent(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("eventID"))
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, event)
}

// UpdateEvent godoc
// @Summary Update event details
// @Description Creator only. Rejected events cannot be edited. status accepts only "completed", and only for approved events.
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param body body UpdateEventRequest true "Fields to update (all optional)"
// @Success 200 {object} controllers.EventSuccessResponse "data contains the updated event"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not creator)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID} [patch]
func (c *EventController) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req UpdateEventRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	event, err := c.Service.UpdateEvent(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("eventID"), req.toPatch())
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, event)
}

// UploadEventImage godoc
// @Summary Upload an event banner image
// @Description Creator only. Multipart form with an "image" file field (max 5 MB). Replaces any previous image.
// @Tags events
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param image formData file true "Image file"
// @Success 200 {object} controllers.EventSuccessResponse "data contains the updated event"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not creator)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/image [post]
func (c *EventController) UploadEventImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImageUploadBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "image must be at most 5 MB")
			return
		}
		h.WriteJSONError(w, http.StatusBadRequest, h.ErrCodeBadRequest, "image file is required")
		return
	}
	defer file.Close()

	event, err := c.Service.UploadEventImage(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("eventID"), file, header.Filename)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, event)
}

// SetStatus godoc
// @Summary Approve or reject a pending event
// @Description Superadmin only. Approval notifies the creator and every user; rejection notifies the creator with the reason.
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param body body SetStatusRequest true "Target status and reason"
// @Success 200 {object} controllers.EventSuccessResponse "data contains the updated event"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request (event not pending)"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (status changed concurrently)"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/status [patch]
func (c *EventController) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req SetStatusRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	event, err := c.Service.SetStatus(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("eventID"), domain.EventStatus(req.Status), req.Reason)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, event)
}

// RequestDeletion godoc
// @Summary Ask a superadmin to delete an event
// @Tags events
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Param body body DeletionRequest false "Optional reason"
// @Success 200 {object} controllers.EventSuccessResponse "data contains the flagged event"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not creator)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/deletion-request [post]
func (c *EventController) RequestDeletion(w http.ResponseWriter, r *http.Request) {
	var req DeletionRequest
	if r.ContentLength != 0 && !h.DecodeAndValidate(w, r, &req) {
		return
	}
	event, err := c.Service.RequestDeletion(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("eventID"), req.Reason)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, event)
}

// ApproveDeletion godoc
// @Summary Approve a deletion request
// @Description Superadmin only. Hard-deletes the event and notifies its creator.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 204 "deleted"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request (no deletion requested)"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID}/deletion-approval [post]
func (c *EventController) ApproveDeletion(w http.ResponseWriter, r *http.Request) {
	if err := c.Service.ApproveDeletion(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("eventID")); err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteEvent godoc
// @Summary Delete an event
// @Description Superadmin only. Hard-deletes the event and notifies its creator.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 204 "deleted"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /events/{eventID} [delete]
func (c *EventController) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := c.Service.DeleteEvent(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("eventID")); err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListDeletionRequests godoc
// @Summary List events awaiting deletion
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.EventListSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /admin/deletion-requests [get]
func (c *EventController) ListDeletionRequests(w http.ResponseWriter, r *http.Request) {
	page := h.ParsePagination(r)
	res, err := c.Service.ListDeletionRequests(r.Context(), middleware.CallerFromContext(r.Context()), page)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	writeEventList(w, page, res)
}
