package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/HammerMeetNail/campussafe/internal/metrics"
	"github.com/HammerMeetNail/campussafe/internal/models"
	"github.com/HammerMeetNail/campussafe/internal/services"
)

const (
	sessionCookieName = "session_token"
	cookieMaxAge      = 30 * 24 * 60 * 60 // 30 days in seconds
)

type AuthHandler struct {
	userService services.UserServiceInterface
	authService services.AuthServiceInterface
	secure      bool // Use secure cookies (HTTPS only)
}

func NewAuthHandler(userService services.UserServiceInterface, authService services.AuthServiceInterface, secure bool) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		authService: authService,
		secure:      secure,
	}
}

type RegisterRequest struct {
	Email      string `json:"email" validate:"required,email,max=254"`
	Password   string `json:"password" validate:"required"`
	Username   string `json:"username" validate:"required,min=2,max=50"`
	Searchable *bool  `json:"searchable"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Username   *string `json:"username" validate:"omitempty,min=2,max=50"`
	AvatarURL  *string `json:"avatar_url" validate:"omitempty,max=2048"`
	Searchable *bool   `json:"searchable"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type AuthResponse struct {
	User    *models.User `json:"user,omitempty"`
	Token   string       `json:"token,omitempty"`
	Message string       `json:"message,omitempty"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if err := validatePassword(req.Password); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !validUsername(req.Username) {
		writeError(w, http.StatusBadRequest, "Username may contain letters, digits, '.', '_' and '-' only")
		return
	}

	passwordHash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		writeServiceError(w, r, "hash password", err)
		return
	}

	searchable := true
	if req.Searchable != nil {
		searchable = *req.Searchable
	}
	user, err := h.userService.Create(r.Context(), models.CreateUserParams{
		Email:        req.Email,
		PasswordHash: passwordHash,
		Username:     req.Username,
		Searchable:   searchable,
	})
	if err != nil {
		writeServiceError(w, r, "create user", err)
		return
	}

	token, err := h.authService.CreateSession(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "create session", err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, AuthResponse{User: user, Token: token})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	user, err := h.authService.Authenticate(r.Context(), req.Email, req.Password)
	if errors.Is(err, services.ErrInvalidCredentials) {
		metrics.AuthRejections.WithLabelValues("invalid_credentials").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if err != nil {
		writeServiceError(w, r, "authenticate", err)
		return
	}

	token, err := h.authService.CreateSession(r.Context(), user.ID)
	if err != nil {
		writeServiceError(w, r, "create session", err)
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, AuthResponse{User: user, Token: token})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := GetSessionTokenFromContext(r.Context())
	if token == "" {
		if cookie, err := r.Cookie(sessionCookieName); err == nil {
			token = cookie.Value
		}
	}
	if token != "" {
		_ = h.authService.DeleteSession(r.Context(), token)
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, AuthResponse{Message: "Logged out successfully"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: user})
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Username != nil {
		trimmed := strings.TrimSpace(*req.Username)
		if !validUsername(trimmed) {
			writeError(w, http.StatusBadRequest, "Username may contain letters, digits, '.', '_' and '-' only")
			return
		}
		req.Username = &trimmed
	}
	if req.AvatarURL != nil && *req.AvatarURL != "" && !strings.HasPrefix(*req.AvatarURL, "https://") {
		writeError(w, http.StatusBadRequest, "avatar_url must be an https URL")
		return
	}

	updated, err := h.userService.UpdateProfile(r.Context(), user.ID, models.UpdateProfileParams{
		Username:   req.Username,
		AvatarURL:  req.AvatarURL,
		Searchable: req.Searchable,
	})
	if err != nil {
		writeServiceError(w, r, "update profile", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{User: updated})
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req ChangePasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if !h.authService.VerifyPassword(user.PasswordHash, req.CurrentPassword) {
		writeError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}
	if err := validatePassword(req.NewPassword); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	newHash, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		writeServiceError(w, r, "hash password", err)
		return
	}
	if err := h.userService.UpdatePassword(r.Context(), user.ID, newHash); err != nil {
		writeServiceError(w, r, "update password", err)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Message: "Password changed successfully"})
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
	})
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	if len([]byte(password)) > 72 {
		return errors.New("password must be at most 72 bytes")
	}

	var hasUpper, hasLower, hasDigit bool
	for _, c := range password {
		switch {
		case unicode.IsUpper(c):
			hasUpper = true
		case unicode.IsLower(c):
			hasLower = true
		case unicode.IsDigit(c):
			hasDigit = true
		}
	}

	if !hasUpper || !hasLower || !hasDigit {
		return errors.New("password must contain at least one uppercase letter, one lowercase letter, and one digit")
	}

	return nil
}

func validUsername(username string) bool {
	if len(username) < 2 || len(username) > 50 {
		return false
	}
	for _, c := range username {
		if !unicode.IsLetter(c) && !unicode.IsDigit(c) && c != '.' && c != '_' && c != '-' {
			return false
		}
	}
	return true
}
