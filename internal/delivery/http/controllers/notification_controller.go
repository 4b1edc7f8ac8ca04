package controllers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	h "eventhub/internal/delivery/http/helpers"
	"eventhub/internal/delivery/http/middleware"
	"eventhub/internal/domain"
)

// streamHeartbeat keeps idle SSE connections open through proxies.
const streamHeartbeat = 25 * time.Second

// BroadcastRequest is the request body for POST /notifications/broadcast.
type BroadcastRequest struct {
	Role    string `json:"role" validate:"required"`
	Message string `json:"message" validate:"required"`
	Type    string `json:"type" validate:"required"`
}

// NotificationListResponse is one page of the caller's notifications.
type NotificationListResponse struct {
	Notifications []*domain.Notification `json:"notifications"`
	Pagination    h.PaginationMeta       `json:"pagination"`
}

// NotificationListSuccessResponse is the success envelope for GET /notifications.
type NotificationListSuccessResponse struct {
	Data  NotificationListResponse `json:"data"`
	Error *h.APIError              `json:"error"`
}

// NotificationSuccessResponse is the success envelope for endpoints returning one notification.
type NotificationSuccessResponse struct {
	Data  *domain.Notification `json:"data"`
	Error *h.APIError          `json:"error"`
}

// CountResponse carries a single count.
type CountResponse struct {
	Count int `json:"count"`
}

// CountSuccessResponse is the success envelope for endpoints returning a count.
type CountSuccessResponse struct {
	Data  CountResponse `json:"data"`
	Error *h.APIError   `json:"error"`
}

type NotificationController struct {
	Logger     *slog.Logger
	Service    domain.NotificationService
	Subscriber domain.PushSubscriber
}

func NewNotificationController(logger *slog.Logger, svc domain.NotificationService, subscriber domain.PushSubscriber) *NotificationController {
	return &NotificationController{
		Logger:     logger,
		Service:    svc,
		Subscriber: subscriber,
	}
}

// List godoc
// @Summary List the caller's notifications
// @Description Newest first.
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param unread query bool false "Only unread notifications"
// @Param page query int false "Page (default 1)"
// @Param page_size query int false "Page size (default 20, max 100)"
// @Success 200 {object} controllers.NotificationListSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /notifications [get]
func (c *NotificationController) List(w http.ResponseWriter, r *http.Request) {
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	page := h.ParsePagination(r)
	res, err := c.Service.ListMine(r.Context(), middleware.CallerFromContext(r.Context()), unreadOnly, page)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, NotificationListResponse{
		Notifications: res.Notifications,
		Pagination:    h.NewPaginationMeta(page, res.Total),
	})
}

// UnreadCount godoc
// @Summary Count the caller's unread notifications
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.CountSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /notifications/unread-count [get]
func (c *NotificationController) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := c.Service.UnreadCount(r.Context(), middleware.CallerFromContext(r.Context()))
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, CountResponse{Count: n})
}

// MarkRead godoc
// @Summary Mark a notification as read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 200 {object} controllers.NotificationSuccessResponse
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not the recipient)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /notifications/{id}/read [patch]
func (c *NotificationController) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := c.Service.MarkRead(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, n)
}

// MarkAllRead godoc
// @Summary Mark all of the caller's notifications as read
// @Tags notifications
// @Produce json
// @Security BearerAuth
// @Success 200 {object} controllers.CountSuccessResponse "data.count is the number updated"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /notifications/read-all [patch]
func (c *NotificationController) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := c.Service.MarkAllRead(r.Context(), middleware.CallerFromContext(r.Context()))
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, CountResponse{Count: n})
}

// Delete godoc
// @Summary Delete a notification
// @Tags notifications
// @Security BearerAuth
// @Param id path string true "Notification ID"
// @Success 204 "deleted"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden (not the recipient)"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /notifications/{id} [delete]
func (c *NotificationController) Delete(w http.ResponseWriter, r *http.Request) {
	if err := c.Service.Delete(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("id")); err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Broadcast godoc
// @Summary Notify every user with a role
// @Description Community or superadmin only. Creates one notification per user holding the role. On a mid-way failure, data.count reports how many were created.
// @Tags notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body BroadcastRequest true "Target role, message and type"
// @Success 201 {object} controllers.CountSuccessResponse "data.count is the number of notifications created"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /notifications/broadcast [post]
func (c *NotificationController) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	role, _ := domain.ParseRole(req.Role)
	n, err := c.Service.Broadcast(r.Context(), middleware.CallerFromContext(r.Context()), role, req.Message, domain.NotificationType(req.Type))
	if err != nil {
		if n > 0 {
			c.Logger.WarnContext(r.Context(), "broadcast partially delivered", "created", n, "err", err)
		}
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, CountResponse{Count: n})
}

// Stream godoc
// @Summary Stream real-time events
// @Description Server-sent events for the caller's channel and the global channel. Each message is "event: <name>" followed by "data: <json payload>". Events published while disconnected are not replayed.
// @Tags notifications
// @Produce text/event-stream
// @Security BearerAuth
// @Success 200 {string} string "event stream"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /notifications/stream [get]
func (c *NotificationController) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	caller := middleware.CallerFromContext(ctx)
	if caller.Anonymous() {
		h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "unauthorized")
		return
	}
	messages, err := c.Subscriber.Subscribe(ctx, caller.ID)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}

	rc := http.NewResponseController(w)
	// The server's write timeout would otherwise cut long-lived streams.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		c.Logger.ErrorContext(ctx, "streaming unsupported", "err", err)
		return
	}

	ticker := time.NewTicker(streamHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case msg, ok := <-messages:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, msg.Payload); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}
