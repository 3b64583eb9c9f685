package web

import (
	"context"
	"html/template"
	"io"
	"net/http"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/checkin/internal/core"
	"github.com/JonMunkholm/checkin/internal/logging"
)

var setupTemplate = template.Must(template.New("setup").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:sans-serif;max-width:40rem;margin:4rem auto;padding:0 1rem;color:#1f2937}
h1{font-size:1.5rem}
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Body}}</p>
<p>{{.Hint}}</p>
<p><small>{{.Code}}</small></p>
</body>
</html>
`))

type setupView struct {
	Lang, Title, Body, Hint, Code string
}

// setupPage renders the static setup-required notice.
func setupPage(lang, title, body, hint string) templ.Component {
	view := setupView{Lang: lang, Title: title, Body: body, Hint: hint, Code: core.CodeSetupRequired}
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		return setupTemplate.Execute(w, view)
	})
}

// handleSetupRequired answers every request while the store is not
// configured.
func (s *Server) handleSetupRequired(w http.ResponseWriter, r *http.Request) {
	msg := s.localize(r, core.UserMessage{
		Message: "Setup required",
		Code:    core.CodeSetupRequired,
	})

	w.Header().Set("Retry-After", "3600")
	if wantsJSON(r) {
		respondErrorJSON(w, msg, http.StatusServiceUnavailable)
		return
	}

	locale := s.locale(r)
	page := setupPage(locale,
		s.msgs.T(locale, "SetupTitle", nil),
		s.msgs.T(locale, "SetupBody", nil),
		s.msgs.T(locale, "SetupHint", nil),
	)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	if err := page.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render setup page", "error", err)
	}
}
