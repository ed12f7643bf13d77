package handler

import (
	"log/slog"
	"net/http"

	"github.com/neighborly/neighborly/internal/model"
	"github.com/neighborly/neighborly/internal/server/middleware"
	"github.com/neighborly/neighborly/internal/service"
)

// AuthHandler serves account registration and session endpoints.
type AuthHandler struct {
	authSvc *service.AuthService
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authSvc *service.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, logger: logger}
}

// loginRequest is the expected payload for the Login endpoint.
type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// sessionResponse is returned by Register and Login.
type sessionResponse struct {
	Token     string      `json:"access_token"`
	TokenType string      `json:"token_type"`
	ExpiresIn int         `json:"expires_in"`
	User      *model.User `json:"user"`
}

// Register creates a self-service account and signs it in.
// POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, err, "Registration failed")
		return
	}

	u, err := h.authSvc.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, err, "Registration failed")
		return
	}

	token, err := h.authSvc.IssueJWT(r.Context(), u, h.authSvc.TokenTTL())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, sessionResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.authSvc.TokenTTL().Seconds()),
		User:      u,
	})
}

// Login authenticates a user and returns a JWT session token.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeServiceError(w, err, "Login failed")
		return
	}

	u, token, err := h.authSvc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, err, "Login failed")
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.authSvc.TokenTTL().Seconds()),
		User:      u,
	})
}

// Logout ends the current session. JWTs are stateless, so this only
// acknowledges the request; clients discard their token.
// DELETE /api/v1/auth/session
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if u := middleware.GetUser(r.Context()); u != nil {
		h.logger.Info("user logged out", "user_id", u.ID, "request_id", middleware.GetRequestID(r.Context()))
	}
	w.WriteHeader(http.StatusNoContent)
}
