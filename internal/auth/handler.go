package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"

	"github.com/imagelify/api/internal/response"
	"github.com/imagelify/api/internal/user"
)

const minPasswordLength = 8

// Handler holds HTTP handlers for auth endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a new auth Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type signupRequest struct {
	Email    string `json:"email"    example:"jane@example.com"`
	Password string `json:"password" example:"hunter2hunter2"`
}

type signinRequest struct {
	Email    string `json:"email"    example:"jane@example.com"`
	Password string `json:"password" example:"hunter2hunter2"`
}

type tokenData struct {
	Token string    `json:"token" example:"eyJhbGci..."`
	User  user.User `json:"user"`
}

// Signup godoc
//
//	@Summary		Sign up
//	@Description	Create a new account on the free plan and return a JWT.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		signupRequest	true	"Email and password"
//	@Success		201		{object}	response.Envelope{data=tokenData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		409		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/signup [post]
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		response.BadRequest(w, "invalid email address")
		return
	}
	if len(req.Password) < minPasswordLength {
		response.BadRequest(w, "password must be at least 8 characters")
		return
	}

	token, u, err := h.svc.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, user.ErrAlreadyExists) {
			response.Conflict(w, "email already registered")
			return
		}
		response.InternalError(w)
		return
	}

	response.Created(w, tokenData{Token: token, User: *u})
}

// Signin godoc
//
//	@Summary		Sign in
//	@Description	Verify email and password and return a JWT.
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			request	body		signinRequest	true	"Email and password"
//	@Success		200		{object}	response.Envelope{data=tokenData}
//	@Failure		400		{object}	response.Envelope
//	@Failure		401		{object}	response.Envelope
//	@Failure		500		{object}	response.Envelope
//	@Router			/auth/signin [post]
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req signinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}
	if req.Email == "" || req.Password == "" {
		response.BadRequest(w, "email and password are required")
		return
	}

	token, u, err := h.svc.Signin(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(w, "invalid email or password")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, tokenData{Token: token, User: *u})
}
