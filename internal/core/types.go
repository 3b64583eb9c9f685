package core

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Status is the check-in state of a participant.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCheckedIn Status = "checked_in"
)

// Field limits keep a full row inside a single change notification payload.
const (
	MaxNameLength    = 200
	MaxCompanyLength = 200
	MaxMemoLength    = 1000
)

// Participant is a pre-registered attendee of the event.
type Participant struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Company     string     `json:"company,omitempty"`
	Memo        string     `json:"memo,omitempty"`
	Status      Status     `json:"status"`
	CheckInTime *time.Time `json:"check_in_time,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// CheckedIn reports whether the participant has been checked in.
func (p Participant) CheckedIn() bool {
	return p.Status == StatusCheckedIn
}

// Draft is a participant that has not been written to the store yet.
// Drafts are always created pending.
type Draft struct {
	Name    string
	Company string
	Memo    string
}

// NewDraft trims the input and validates it.
func NewDraft(name, company, memo string) (Draft, error) {
	d := Draft{
		Name:    strings.TrimSpace(name),
		Company: strings.TrimSpace(company),
		Memo:    strings.TrimSpace(memo),
	}
	if d.Name == "" {
		return Draft{}, ErrNameRequired
	}
	// Name and company are single-line labels on the board.
	if strings.ContainsFunc(d.Name, unicode.IsControl) {
		return Draft{}, fmt.Errorf("%w: name", ErrControlChar)
	}
	if strings.ContainsFunc(d.Company, unicode.IsControl) {
		return Draft{}, fmt.Errorf("%w: company", ErrControlChar)
	}
	if utf8.RuneCountInString(d.Name) > MaxNameLength {
		return Draft{}, fmt.Errorf("%w: name exceeds %d characters", ErrFieldTooLong, MaxNameLength)
	}
	if utf8.RuneCountInString(d.Company) > MaxCompanyLength {
		return Draft{}, fmt.Errorf("%w: company exceeds %d characters", ErrFieldTooLong, MaxCompanyLength)
	}
	if utf8.RuneCountInString(d.Memo) > MaxMemoLength {
		return Draft{}, fmt.Errorf("%w: memo exceeds %d characters", ErrFieldTooLong, MaxMemoLength)
	}
	return d, nil
}

// Counts are the derived totals shown in the board header.
type Counts struct {
	Total     int `json:"total"`
	CheckedIn int `json:"checked_in"`
}

// CountOf computes counts for a list of participants.
func CountOf(list []Participant) Counts {
	c := Counts{Total: len(list)}
	for _, p := range list {
		if p.CheckedIn() {
			c.CheckedIn++
		}
	}
	return c
}

// ChangeKind tags a row-level change notification.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Change is a row-level notification from the participant store.
// Record is set for inserts and updates; ID is always set.
type Change struct {
	Kind   ChangeKind   `json:"event"`
	ID     string       `json:"id"`
	Record *Participant `json:"participant,omitempty"`
}

// InsertChange builds an insert notification for p.
func InsertChange(p Participant) Change {
	return Change{Kind: ChangeInsert, ID: p.ID, Record: &p}
}

// UpdateChange builds an update notification for p.
func UpdateChange(p Participant) Change {
	return Change{Kind: ChangeUpdate, ID: p.ID, Record: &p}
}

// DeleteChange builds a delete notification for id.
func DeleteChange(id string) Change {
	return Change{Kind: ChangeDelete, ID: id}
}
