package web

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mtzanidakis/digifuse/internal/auth"
	"github.com/mtzanidakis/digifuse/internal/store"
)

type userView struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserView(u *store.User) userView {
	return userView{ID: u.ID, Email: u.Email, Username: u.Username, CreatedAt: u.CreatedAt}
}

type credentials struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c *credentials) normalize() {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Username = strings.TrimSpace(c.Username)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	body.normalize()
	if body.Email == "" || body.Username == "" || body.Password == "" {
		jsonError(w, "email, password and username are required", http.StatusBadRequest)
		return
	}

	existing, err := s.store.GetUserByEmail(body.Email)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing != nil {
		jsonError(w, "email already exists", http.StatusBadRequest)
		return
	}

	hash, err := auth.HashPassword(body.Password)
	if err != nil {
		jsonError(w, "password hashing failed", http.StatusInternalServerError)
		return
	}

	u := &store.User{Email: body.Email, Username: body.Username, PasswordHash: hash}
	if err := s.store.CreateUser(u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			jsonError(w, "email already exists", http.StatusBadRequest)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.logger.Info("user registered", "user_id", u.ID)
	jsonStatus(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user":    toUserView(u),
	})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body credentials
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	body.normalize()
	if body.Email == "" || body.Password == "" {
		jsonError(w, "email and password are required", http.StatusBadRequest)
		return
	}

	u, err := s.store.GetUserByEmail(body.Email)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if u == nil {
		jsonError(w, "invalid email or password", http.StatusUnauthorized)
		return
	}
	ok, err := auth.CheckPassword(u.PasswordHash, body.Password)
	if err != nil {
		s.logger.Error("stored password hash unreadable", "user_id", u.ID, "error", err)
	}
	if !ok {
		jsonError(w, "invalid email or password", http.StatusUnauthorized)
		return
	}

	token, err := s.sessions.Create(u.ID)
	if err != nil {
		jsonError(w, "session creation failed", http.StatusInternalServerError)
		return
	}

	s.setSessionCookie(w, token)
	jsonResponse(w, map[string]any{
		"message":      "Login successful",
		"access_token": token,
		"user":         toUserView(u),
	})
}

// googleLogin signs a user in with a Google ID token, creating the account
// on first use.
func (s *Server) googleLogin(w http.ResponseWriter, r *http.Request) {
	if s.google == nil {
		jsonError(w, auth.ErrGoogleDisabled.Error(), http.StatusNotImplemented)
		return
	}

	var body struct {
		IDToken string `json:"id_token"`
	}
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(body.IDToken) == "" {
		jsonError(w, "id_token is required", http.StatusBadRequest)
		return
	}

	id, err := s.google.Verify(r.Context(), body.IDToken)
	switch {
	case errors.Is(err, auth.ErrGoogleDisabled):
		jsonError(w, err.Error(), http.StatusNotImplemented)
		return
	case err != nil:
		s.logger.Warn("google token rejected", "error", err)
		jsonError(w, "invalid google token", http.StatusUnauthorized)
		return
	}

	status := http.StatusOK
	message := "Login successful"
	u, err := s.store.GetUserByEmail(id.Email)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if u == nil {
		hash, err := auth.UnusablePasswordHash()
		if err != nil {
			jsonError(w, "password hashing failed", http.StatusInternalServerError)
			return
		}
		u = &store.User{Email: id.Email, Username: auth.UsernameFromEmail(id.Email), PasswordHash: hash}
		if err := s.store.CreateUser(u); err != nil {
			jsonError(w, err.Error(), http.StatusInternalServerError)
			return
		}
		s.logger.Info("user registered via google", "user_id", u.ID)
		status = http.StatusCreated
		message = "User created and logged in"
	}

	token, err := s.sessions.Create(u.ID)
	if err != nil {
		jsonError(w, "session creation failed", http.StatusInternalServerError)
		return
	}

	s.setSessionCookie(w, token)
	jsonStatus(w, status, map[string]any{
		"message":      message,
		"access_token": token,
		"user":         toUserView(u),
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Revoke(requestToken(r))
	clearSessionCookie(w)
	jsonResponse(w, map[string]string{"message": "Logged out"})
}

// currentUser loads the authenticated user, writing a 401 when the account
// no longer exists.
func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) (*store.User, bool) {
	u, err := s.store.GetUser(userIDFrom(r.Context()))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	if u == nil {
		jsonError(w, "invalid token", http.StatusUnauthorized)
		return nil, false
	}
	return u, true
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}
	jsonResponse(w, map[string]any{
		"message": "Profile retrieved",
		"user":    toUserView(u),
	})
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	u, ok := s.currentUser(w, r)
	if !ok {
		return
	}

	var body credentials
	if err := decodeJSON(r, &body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	body.normalize()
	if body.Email == "" && body.Username == "" && body.Password == "" {
		jsonError(w, "at least one of username, email or password is required", http.StatusBadRequest)
		return
	}

	if body.Username != "" {
		u.Username = body.Username
	}
	if body.Email != "" {
		u.Email = body.Email
	}
	if body.Password != "" {
		hash, err := auth.HashPassword(body.Password)
		if err != nil {
			jsonError(w, "password hashing failed", http.StatusInternalServerError)
			return
		}
		u.PasswordHash = hash
	}

	if err := s.store.UpdateUser(u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			jsonError(w, "email already exists", http.StatusBadRequest)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	updated, err := s.store.GetUser(u.ID)
	if err != nil || updated == nil {
		updated = u
	}
	jsonResponse(w, map[string]any{
		"message": "Profile updated",
		"user":    toUserView(updated),
	})
}

func (s *Server) deleteProfile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFrom(r.Context())
	if err := s.store.DeleteUser(userID); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.sessions.RevokeUser(userID)
	clearSessionCookie(w)
	s.logger.Info("user deleted", "user_id", userID)
	jsonResponse(w, map[string]string{"message": "Profile and all related data deleted"})
}
