package handlers

import (
	"net/http"

	"github.com/nammaooru/civic-reports/internal/domain"
	"github.com/nammaooru/civic-reports/internal/http/response"
	"github.com/nammaooru/civic-reports/pkg/logger"
)

// Register handles POST /auth/register
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterRequest
	if !decodeJSON(r, &req) {
		badJSON(w)
		return
	}

	user, err := h.authService.Register(r.Context(), &req)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	logger.InfoContext(r.Context(), "User registered", "user_id", user.ID)
	response.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"user":    user,
		"message": "Registration successful. Check your email for a verification code.",
	})
}

// Login handles POST /auth/login
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(r, &req) {
		badJSON(w)
		return
	}

	grant, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, grant)
}

// SendOtp handles POST /auth/otp/send. The response is identical whether or
// not an account exists for the address.
func (h *Handlers) SendOtp(w http.ResponseWriter, r *http.Request) {
	var req domain.SendOtpRequest
	if !decodeJSON(r, &req) {
		badJSON(w)
		return
	}

	if err := h.authService.IssueOtp(r.Context(), req.Email); err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusAccepted, map[string]string{
		"message": "If the address is valid, a verification code has been sent.",
	})
}

// VerifyOtp handles POST /auth/otp/verify
func (h *Handlers) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyOtpRequest
	if !decodeJSON(r, &req) {
		badJSON(w)
		return
	}

	grant, err := h.authService.VerifyOtp(r.Context(), req.Email, req.Code)
	if err != nil {
		response.WriteDomainError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, grant)
}
