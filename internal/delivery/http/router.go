package http

import (
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	"eventhub/internal/delivery/http/controllers"
	"eventhub/internal/delivery/http/middleware"
	"eventhub/internal/domain"
)

// RouterDeps holds everything the router mounts.
type RouterDeps struct {
	Auth         *controllers.AuthController
	User         *controllers.UserController
	Event        *controllers.EventController
	Registration *controllers.RegistrationController
	Notification *controllers.NotificationController
	Health       *controllers.HealthController

	Verifier    domain.TokenVerifier
	RateLimiter *middleware.RateLimiter
	// Metrics serves /metrics when non-nil.
	Metrics http.Handler
	Logger  *slog.Logger
}

// NewRouter initializes the HTTP router with all application routes
func NewRouter(d RouterDeps) *http.ServeMux {
	mux := http.NewServeMux()
	auth := middleware.RequireAuth(d.Verifier, d.Logger)
	optional := middleware.OptionalAuth(d.Verifier)
	authLimit := d.RateLimiter.Limit("auth")
	registerLimit := d.RateLimiter.Limit("register")

	// Auth
	mux.HandleFunc("POST /auth/signup", authLimit(d.Auth.SignUp))
	mux.HandleFunc("POST /auth/login", authLimit(d.Auth.Login))
	mux.HandleFunc("POST /auth/verification/request", authLimit(d.Auth.RequestVerificationCode))
	mux.HandleFunc("POST /auth/verification/verify", authLimit(d.Auth.VerifyEmail))

	// Profile and likes
	mux.HandleFunc("GET /users/me", auth(d.User.GetMe))
	mux.HandleFunc("PATCH /users/me", auth(d.User.UpdateMe))
	mux.HandleFunc("GET /users/me/liked-events", auth(d.User.ListLikedEvents))
	mux.HandleFunc("PUT /users/me/liked-events/{eventID}", auth(d.User.LikeEvent))
	mux.HandleFunc("DELETE /users/me/liked-events/{eventID}", auth(d.User.UnlikeEvent))

	// Events
	mux.HandleFunc("GET /events", optional(d.Event.ListEvents))
	mux.HandleFunc("GET /events/mine", auth(d.Event.ListMyEvents))
	mux.HandleFunc("GET /events/{eventID}", optional(d.Event.GetEvent))
	mux.HandleFunc("POST /events", auth(d.Event.CreateEvent))
	mux.HandleFunc("PATCH /events/{eventID}", auth(d.Event.UpdateEvent))
	mux.HandleFunc("POST /events/{eventID}/image", auth(d.Event.UploadEventImage))
	mux.HandleFunc("PATCH /events/{eventID}/status", auth(d.Event.SetStatus))
	mux.HandleFunc("POST /events/{eventID}/deletion-request", auth(d.Event.RequestDeletion))
	mux.HandleFunc("POST /events/{eventID}/deletion-approval", auth(d.Event.ApproveDeletion))
	mux.HandleFunc("DELETE /events/{eventID}", auth(d.Event.DeleteEvent))
	mux.HandleFunc("GET /admin/deletion-requests", auth(d.Event.ListDeletionRequests))

	// Registrations and reports
	mux.HandleFunc("POST /events/{eventID}/registrations", registerLimit(optional(d.Registration.Register)))
	mux.HandleFunc("POST /events/{eventID}/sub-events/{subEventID}/registrations", registerLimit(optional(d.Registration.RegisterSubEvent)))
	mux.HandleFunc("GET /events/{eventID}/registrations", auth(d.Registration.ListRegistrations))
	mux.HandleFunc("GET /events/{eventID}/registrations/export", auth(d.Registration.ExportRegistrations))
	mux.HandleFunc("GET /admin/reports/summary", auth(d.Registration.EventSummary))

	// Notifications
	mux.HandleFunc("GET /notifications", auth(d.Notification.List))
	mux.HandleFunc("GET /notifications/unread-count", auth(d.Notification.UnreadCount))
	mux.HandleFunc("GET /notifications/stream", auth(d.Notification.Stream))
	mux.HandleFunc("PATCH /notifications/read-all", auth(d.Notification.MarkAllRead))
	mux.HandleFunc("PATCH /notifications/{id}/read", auth(d.Notification.MarkRead))
	mux.HandleFunc("DELETE /notifications/{id}", auth(d.Notification.Delete))
	mux.HandleFunc("POST /notifications/broadcast", auth(d.Notification.Broadcast))

	// Ops
	mux.HandleFunc("GET /healthz", d.Health.Healthz)
	if d.Metrics != nil {
		mux.Handle("GET /metrics", d.Metrics)
	}
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	return mux
}

// WithMiddleware wraps the router in the shared middleware chain:
// Recovery, RequestID, Logging, CORS.
func WithMiddleware(next http.Handler, logger *slog.Logger, allowedOrigins []string) http.Handler {
	return middleware.Recovery(logger,
		middleware.RequestID(
			middleware.LoggingMiddleware(logger,
				middleware.CORS(allowedOrigins, next))))
}
