package controllers

import (
	"log/slog"
	"net/http"

	h "eventhub/internal/delivery/http/helpers"
	"eventhub/internal/delivery/http/middleware"
	"eventhub/internal/domain"
)

// UpdateUserRequest is the request body for PATCH /users/me. Omitted fields are unchanged.
type UpdateUserRequest struct {
	Name         *string `json:"name"`
	DisplayLabel *string `json:"display_label"`
}

// Validate implements Validator.
func (u UpdateUserRequest) Validate() []string {
	if u.Name == nil && u.DisplayLabel == nil {
		return []string{"at least one of name or display_label is required"}
	}
	return nil
}

// EventsSuccessResponse is the success envelope for endpoints returning a plain list of events.
type EventsSuccessResponse struct {
	Data  []*domain.Event `json:"data"`
	Error *h.APIError     `json:"error"`
}

type UserController struct {
	Logger  *slog.Logger
	Service domain.UserService
}

func NewUserController(logger *slog.Logger, svc domain.UserService) *UserController {
	return &UserController{
		Logger:  logger,
		Service: svc,
	}
}

// GetMe godoc
// @Summary Get the current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.UserSuccessResponse "data contains the user"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /users/me [get]
func (c *UserController) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := c.Service.GetMe(r.Context(), middleware.CallerFromContext(r.Context()))
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, user)
}

// UpdateMe godoc
// @Summary Update the current user's profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body UpdateUserRequest true "Fields to update"
// @Success 200 {object} controllers.UserSuccessResponse "data contains the updated user"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /users/me [patch]
func (c *UserController) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req UpdateUserRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	user, err := c.Service.UpdateProfile(r.Context(), middleware.CallerFromContext(r.Context()), req.Name, req.DisplayLabel)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, user)
}

// ListLikedEvents godoc
// @Summary List the events the current user liked
// @Description Events that are no longer visible to the caller are omitted.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.EventsSuccessResponse "data contains the liked events"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /users/me/liked-events [get]
func (c *UserController) ListLikedEvents(w http.ResponseWriter, r *http.Request) {
	events, err := c.Service.ListLikedEvents(r.Context(), middleware.CallerFromContext(r.Context()))
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, events)
}

// LikeEvent godoc
// @Summary Like an event
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 204 "liked"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /users/me/liked-events/{eventID} [put]
func (c *UserController) LikeEvent(w http.ResponseWriter, r *http.Request) {
	if err := c.Service.LikeEvent(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("eventID")); err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UnlikeEvent godoc
// @Summary Remove a like from an event
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param eventID path string true "Event ID"
// @Success 204 "unliked"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /users/me/liked-events/{eventID} [delete]
func (c *UserController) UnlikeEvent(w http.ResponseWriter, r *http.Request) {
	if err := c.Service.UnlikeEvent(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("eventID")); err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
