package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"feeledger/internal/session"
)

type sessionKey struct{}

// withAuth requires a valid bearer token and attaches the session to the
// request context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		sess, err := s.sessions.Verify(token)
		if err != nil {
			slog.WarnContext(r.Context(), "Session verification failed", "error", err)
			writeError(w, http.StatusUnauthorized, "invalid session")
			return
		}

		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next(w, r.WithContext(ctx))
	}
}

// withRole requires authentication plus a specific role.
func (s *Server) withRole(role session.Role, next http.HandlerFunc) http.HandlerFunc {
	return s.withAuth(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := sessionFromContext(r.Context())
		if !ok || sess.Role != role {
			writeError(w, http.StatusForbidden, "insufficient role")
			return
		}
		next(w, r)
	})
}

func sessionFromContext(ctx context.Context) (session.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(session.Session)
	return sess, ok
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	cred, ok := s.credentials[req.Username]
	if !ok || subtle.ConstantTimeCompare([]byte(cred.Password), []byte(req.Password)) != 1 {
		slog.WarnContext(r.Context(), "Login failed", "username", req.Username)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.sessions.Issue(req.Username, cred.Role)
	if err != nil {
		slog.ErrorContext(r.Context(), "Token issue failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not create session")
		return
	}

	slog.InfoContext(r.Context(), "Login succeeded", "username", req.Username, "role", string(cred.Role))
	writeJSON(w, http.StatusOK, map[string]string{
		"token": token,
		"role":  string(cred.Role),
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Revoke(bearerToken(r)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
