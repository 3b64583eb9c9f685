package web

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/checkin/internal/core"
)

// parseQuery reads the q and status query parameters.
func parseQuery(r *http.Request) (core.Query, error) {
	status, err := core.ParseStatusFilter(r.URL.Query().Get("status"))
	if err != nil {
		return core.Query{}, err
	}
	return core.Query{Text: r.URL.Query().Get("q"), Status: status}, nil
}

// handleListParticipants returns a filtered snapshot with whole-list counts.
func (s *Server) handleListParticipants(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	listing, err := s.service.ListParticipants(r.Context(), q)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if listing.Participants == nil {
		listing.Participants = []core.Participant{}
	}
	writeJSON(w, http.StatusOK, listing)
}

type addParticipantRequest struct {
	Name    string `json:"name"`
	Company string `json:"company"`
	Memo    string `json:"memo"`
}

// handleAddParticipant registers one participant. Devices pick it up from
// the change feed.
func (s *Server) handleAddParticipant(w http.ResponseWriter, r *http.Request) {
	var req addParticipantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: %w", core.ErrNameRequired, err))
		return
	}

	p, err := s.service.AddParticipant(withActor(r), core.Draft{
		Name:    req.Name,
		Company: req.Company,
		Memo:    req.Memo,
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// handleCheckIn checks a participant in. Repeating it is a no-op that
// reports changed=false.
func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	result, err := s.service.CheckIn(withActor(r), id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
