package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/userauth/user-auth-be/internal/auth"
	"github.com/userauth/user-auth-be/internal/models"
	"github.com/userauth/user-auth-be/internal/services"
)

// UserHandler handles HTTP requests for registration, login, and account
// management.
type UserHandler struct {
	service services.UserServiceProvider
	tokens  *auth.TokenService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider, tokens *auth.TokenService) *UserHandler {
	return &UserHandler{service: service, tokens: tokens}
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginPayload defines the structure for login requests.
type LoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles new user registration.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.Register(r.Context(), payload.Username, payload.Email, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateUsername):
			writeDetail(w, http.StatusBadRequest, "Username already registered")
		case errors.Is(err, models.ErrDuplicateEmail):
			writeDetail(w, http.StatusBadRequest, "Email already registered")
		default:
			log.Error().Err(err).Str("username", payload.Username).Msg("Failed to register user")
			writeDetail(w, http.StatusInternalServerError, "Failed to register user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// Login handles credential verification and token issuance. Credentials are
// accepted either as a JSON body or as a form-encoded one (OAuth2
// password-flow style).
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	payload, ok := decodeLogin(w, r)
	if !ok {
		return
	}

	user, err := h.service.Authenticate(r.Context(), payload.Username, payload.Password)
	if err != nil {
		if errors.Is(err, models.ErrInvalidCredentials) {
			log.Warn().Str("username", payload.Username).Msg("Failed authentication attempt")
			writeDetail(w, http.StatusUnauthorized, "Incorrect username or password")
			return
		}
		log.Error().Err(err).Str("username", payload.Username).Msg("Authentication lookup failed")
		writeDetail(w, http.StatusInternalServerError, "Failed to authenticate")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		log.Error().Err(err).Str("user_id", user.ID).Msg("Failed to issue token")
		writeDetail(w, http.StatusInternalServerError, "Failed to issue token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"access_token": token,
		"token_type":   "bearer",
		"user_id":      user.ID,
	})
}

// GetMe retrieves the currently authenticated user's profile.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			// The token outlived the account.
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to load user")
		writeDetail(w, http.StatusInternalServerError, "Failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateMe handles updating the authenticated user's profile. Absent fields
// are left unchanged.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var payload struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, payload.Username, payload.Email)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateUsername):
			writeDetail(w, http.StatusBadRequest, "Username already registered")
		case errors.Is(err, models.ErrDuplicateEmail):
			writeDetail(w, http.StatusBadRequest, "Email already registered")
		case errors.Is(err, models.ErrUserNotFound):
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		default:
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to update user")
			writeDetail(w, http.StatusInternalServerError, "Failed to update user")
		}
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// ChangePassword handles changing the authenticated user's password.
func (h *UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}

	var payload struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.ChangePassword(r.Context(), userID, payload.CurrentPassword, payload.NewPassword); err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidCredentials):
			writeDetail(w, http.StatusUnauthorized, "Incorrect password")
		case errors.Is(err, models.ErrUserNotFound):
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
		default:
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to change password")
			writeDetail(w, http.StatusInternalServerError, "Failed to change password")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully"})
}

// Logout acknowledges a logout. Tokens are stateless, so the server keeps no
// session to tear down; the client discards the token.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Successfully logged out"})
}

// decodeLogin reads login credentials from either a form-encoded or a JSON
// request body, writing the error response itself on failure.
func decodeLogin(w http.ResponseWriter, r *http.Request) (LoginPayload, bool) {
	var payload LoginPayload

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/x-www-form-urlencoded") ||
		strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseForm(); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid request body")
			return payload, false
		}
		payload.Username = r.PostFormValue("username")
		payload.Password = r.PostFormValue("password")
		return payload, true
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "Invalid request body")
		return payload, false
	}
	return payload, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
