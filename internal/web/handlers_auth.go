package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/JonMunkholm/checkin/internal/auth"
	"github.com/JonMunkholm/checkin/internal/web/middleware"
)

// maxJSONBody bounds small JSON request bodies.
const maxJSONBody = 16 << 10

type signInRequest struct {
	Password string `json:"password"`
}

type signInResponse struct {
	Token   string       `json:"token"`
	Session auth.Session `json:"session"`
}

// handleSignIn checks the shared password and sets the session cookie.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %w", auth.ErrPasswordRequired, err))
		return
	}

	sess, err := s.auth.SignIn(r.Context(), req.Password)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	http.SetCookie(w, s.sessionCookie(sess.Token, sess.ExpiresAt))
	writeJSON(w, http.StatusOK, signInResponse{Token: sess.Token, Session: sess})
}

// handleSignOut revokes the current session and clears the cookie.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	if err := s.auth.SignOut(r.Context(), sess.Token); err != nil {
		s.respondError(w, r, err)
		return
	}

	http.SetCookie(w, s.sessionCookie("", time.Unix(0, 0)))
	w.WriteHeader(http.StatusNoContent)
}

// handleSession reports the current session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, _ := auth.SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) sessionCookie(token string, expires time.Time) *http.Cookie {
	c := &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   s.cfg.Auth.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
	if token == "" {
		c.MaxAge = -1
	}
	return c
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}
