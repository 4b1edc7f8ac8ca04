package controllers

import (
	"log/slog"
	"net/http"
	"strings"

	h "eventhub/internal/delivery/http/helpers"
	"eventhub/internal/domain"
)

// SignUpRequest is the request body for POST /auth/signup
type SignUpRequest struct {
	Email        string `json:"email" validate:"required,email"`
	Password     string `json:"password" validate:"required,min=8"`
	Name         string `json:"name" validate:"required"`
	Role         string `json:"role" validate:"omitempty,oneof=user community"` // defaults to "user"
	DisplayLabel string `json:"display_label"`
}

// LoginRequest is the request body for POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse is the response body for POST /auth/login
type LoginResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"token_type"`
	User      *domain.User `json:"user"`
}

// VerificationRequest is the request body for POST /auth/verification/request
type VerificationRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// VerifyEmailRequest is the request body for POST /auth/verification/verify
type VerifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// UserSuccessResponse is the success envelope for endpoints returning a user.
type UserSuccessResponse struct {
	Data  *domain.User `json:"data"`
	Error *h.APIError  `json:"error"`
}

// LoginSuccessResponse is the success envelope for POST /auth/login (200).
type LoginSuccessResponse struct {
	Data  LoginResponse `json:"data"`
	Error *h.APIError   `json:"error"`
}

type AuthController struct {
	Logger  *slog.Logger
	Service domain.AuthService
}

func NewAuthController(logger *slog.Logger, svc domain.AuthService) *AuthController {
	return &AuthController{
		Logger:  logger,
		Service: svc,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalize implements helpers.Normalizer.
func (r *SignUpRequest) Normalize() { r.Email = normalizeEmail(r.Email) }

func (r *LoginRequest) Normalize() { r.Email = normalizeEmail(r.Email) }

func (r *VerificationRequest) Normalize() { r.Email = normalizeEmail(r.Email) }

func (r *VerifyEmailRequest) Normalize() {
	r.Email = normalizeEmail(r.Email)
	r.Code = strings.TrimSpace(r.Code)
}

// SignUp godoc
// @Summary Sign up a new user
// @Description Create an account with email, password (min 8 chars) and name. Role is "user" (default) or "community"; display_label is a free-form community sub-type. A verification code is emailed.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body SignUpRequest true "Sign-up data"
// @Success 201 {object} controllers.UserSuccessResponse "data contains the created user"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict (email already registered)"
// @Failure 429 {object} helpers.APIResponse "error.code: too_many_requests"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /auth/signup [post]
func (c *AuthController) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	user, err := c.Service.SignUp(r.Context(), domain.SignUpInput{
		Email:        req.Email,
		Password:     req.Password,
		Name:         strings.TrimSpace(req.Name),
		Role:         domain.Role(strings.ToLower(strings.TrimSpace(req.Role))),
		DisplayLabel: strings.TrimSpace(req.DisplayLabel),
	})
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusCreated, user)
}

// Login godoc
// @Summary Log in
// @Description Authenticate with email and password. Returns a bearer JWT carrying the user id, email and role.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Login credentials"
// @Success 200 {object} controllers.LoginSuccessResponse "data contains token and user"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 401 {object} helpers.APIResponse "error.code: unauthorized"
// @Failure 429 {object} helpers.APIResponse "error.code: too_many_requests"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /auth/login [post]
func (c *AuthController) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	token, user, err := c.Service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, LoginResponse{Token: token, TokenType: "Bearer", User: user})
}

// RequestVerificationCode godoc
// @Summary Request an email verification code
// @Description Emails a 6-digit code valid for 15 minutes. Always answers 202 so the endpoint cannot be used to probe for accounts.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body VerificationRequest true "Email to verify"
// @Success 202 {object} helpers.APIResponse "data is null"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 429 {object} helpers.APIResponse "error.code: too_many_requests"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /auth/verification/request [post]
func (c *AuthController) RequestVerificationCode(w http.ResponseWriter, r *http.Request) {
	var req VerificationRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	if err := c.Service.RequestVerificationCode(r.Context(), req.Email); err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusAccepted, nil)
}

// VerifyEmail godoc
// @Summary Verify an email address
// @Description Consumes a verification code and marks the account verified.
// @Tags auth
// @Accept json
// @Produce json
// @Param body body VerifyEmailRequest true "Email and code"
// @Success 200 {object} controllers.UserSuccessResponse "data contains the verified user"
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request (wrong or expired code)"
// @Failure 429 {object} helpers.APIResponse "error.code: too_many_requests"
// @Failure 500 {object} helpers.APIResponse "error.code: internal_error"
// @Router /auth/verification/verify [post]
func (c *AuthController) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailRequest
	if !h.DecodeAndValidate(w, r, &req) {
		return
	}
	user, err := c.Service.VerifyEmail(r.Context(), req.Email, req.Code)
	if err != nil {
		h.WriteServiceError(w, r, c.Logger, err)
		return
	}
	h.WriteJSONSuccess(w, http.StatusOK, user)
}
