package core

import (
	"fmt"
	"strings"
)

// StatusFilter narrows a view by check-in status.
type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterPending   StatusFilter = "pending"
	FilterCheckedIn StatusFilter = "checked_in"
)

// ParseStatusFilter accepts "", "all", "pending" and "checked_in".
// The empty string means all.
func ParseStatusFilter(s string) (StatusFilter, error) {
	switch StatusFilter(strings.ToLower(strings.TrimSpace(s))) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterPending:
		return FilterPending, nil
	case FilterCheckedIn:
		return FilterCheckedIn, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFilter, s)
	}
}

// Query is the search box text plus the status tab.
type Query struct {
	Text   string       `json:"query"`
	Status StatusFilter `json:"status"`
}

func (f StatusFilter) matches(p Participant) bool {
	switch f {
	case FilterPending:
		return p.Status == StatusPending
	case FilterCheckedIn:
		return p.Status == StatusCheckedIn
	default:
		return true
	}
}

// Filter returns the participants whose name or company contains q.Text
// (case-insensitive) and whose status matches q.Status. The input slice is
// never modified; order is preserved.
func Filter(list []Participant, q Query) []Participant {
	text := strings.ToLower(strings.TrimSpace(q.Text))

	out := make([]Participant, 0, len(list))
	for _, p := range list {
		if !q.Status.matches(p) {
			continue
		}
		if text != "" &&
			!strings.Contains(strings.ToLower(p.Name), text) &&
			!strings.Contains(strings.ToLower(p.Company), text) {
			continue
		}
		out = append(out, p)
	}
	return out
}
