package web

// errors.go turns handler errors into responses.
//
// Every failure is:
//   - logged with the technical error and request id (server-side only)
//   - mapped to a stable code with core.MapError, or to an AUTH code here
//   - localized from the message catalog for the request's Accept-Language
//   - answered as JSON for API routes and plain text otherwise
//
// # Authentication (AUTH001-AUTH004)
//
//	AUTH001 - Password is required
//	AUTH002 - Incorrect password
//	AUTH003 - Session missing, expired or revoked
//	AUTH004 - Too many requests
//
// # Live Connection (LIVE001)
//
//	LIVE001 - The device sent a frame the server does not understand

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/checkin/internal/auth"
	"github.com/JonMunkholm/checkin/internal/core"
	"github.com/JonMunkholm/checkin/internal/logging"
)

var errTooManyRequests = errors.New("too many requests")

// ErrorResponse is the JSON body of every API error.
// Code is machine readable; Message and Action are localized.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

var webMessages = []struct {
	target error
	msg    core.UserMessage
}{
	{auth.ErrPasswordRequired, core.UserMessage{Message: "Password is required", Code: "AUTH001"}},
	{auth.ErrInvalidCredentials, core.UserMessage{Message: "Incorrect password", Code: "AUTH002"}},
	{auth.ErrInvalidToken, core.UserMessage{Message: "Your sign-in has expired", Code: "AUTH003"}},
	{auth.ErrSessionRevoked, core.UserMessage{Message: "Your sign-in has expired", Code: "AUTH003"}},
	{errTooManyRequests, core.UserMessage{Message: "Too many requests", Code: "AUTH004"}},
	{errInvalidFrame, core.UserMessage{Message: "Invalid message", Code: "LIVE001"}},
}

// mapError classifies err, trying the web layer's own codes first.
func mapError(err error) core.UserMessage {
	for _, m := range webMessages {
		if errors.Is(err, m.target) {
			return m.msg
		}
	}
	return core.MapError(err)
}

// statusFor picks the HTTP status for a message code.
func statusFor(code string) int {
	switch code {
	case core.CodeSetupRequired, "FETCH001", "FEED001", "DB001", "DB002", "DB003":
		return http.StatusServiceUnavailable
	case "AUTH001", "AUTH002", "AUTH003":
		return http.StatusUnauthorized
	case "AUTH004", "IMP001":
		return http.StatusTooManyRequests
	case "FETCH002", "MUT001", "MUT002", "MUT005", "IMP003", "LIVE001":
		return http.StatusBadRequest
	case "MUT003":
		return http.StatusNotFound
	case "IMP004":
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// localize fills Message and Action from the catalog, keeping the English
// defaults for codes the catalog does not know.
func (s *Server) localize(r *http.Request, msg core.UserMessage) core.UserMessage {
	locale := s.locale(r)
	if text := s.msgs.T(locale, msg.Code, nil); text != msg.Code {
		msg.Message = text
	}
	if text := s.msgs.T(locale, msg.Code+"_action", nil); text != msg.Code+"_action" {
		msg.Action = text
	}
	return msg
}

func (s *Server) locale(r *http.Request) string {
	return s.msgs.Match(r.Header.Get("Accept-Language"))
}

// respondError logs err and writes the mapped, localized error response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	userMsg := mapError(err)
	status := statusFor(userMsg.Code)

	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	logging.FromContext(r.Context()).Log(r.Context(), level, "request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	)

	userMsg = s.localize(r, userMsg)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}
	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, status)
		return
	}
	respondErrorText(w, userMsg, status)
}

func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

func respondErrorText(w http.ResponseWriter, msg core.UserMessage, status int) {
	http.Error(w, msg.Message+" ("+msg.Code+")", status)
}

// wantsJSON checks if the client prefers a JSON response.
func wantsJSON(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		return true
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
