package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"kolekta.org/internal/auth"
	"kolekta.org/internal/directory"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      *directory.User `json:"user"`
}

const tokenTTL = 8 * time.Hour

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if email == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := a.directory.FindUserByEmail(r.Context(), email)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			// Same response for unknown email and wrong password.
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "login failed")
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if user.Status != directory.UserStatusActive {
		writeError(w, r, http.StatusForbidden, "account is not active")
		return
	}

	token, err := auth.GenerateToken(user.ID, user.Role, user.OrganizationID, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	a.audit(r.Context(), "auth.login", "user", user.ID, map[string]string{
		"email": email,
		"role":  string(user.Role),
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: time.Now().UTC().Add(tokenTTL),
		User:      user,
	})
}
