package core

import "errors"

// Validation errors.
var (
	ErrNameRequired  = errors.New("name is required")
	ErrFieldTooLong  = errors.New("field too long")
	ErrControlChar   = errors.New("field contains a control character")
	ErrInvalidFilter = errors.New("invalid status filter")
)

// Lookup and store errors. Store implementations wrap driver errors with
// these so callers can classify them with errors.Is.
var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrFetchFailed         = errors.New("fetch participants failed")
	ErrWriteFailed         = errors.New("write participants failed")
)

// Import errors.
var (
	ErrInvalidCSV   = errors.New("invalid csv")
	ErrFileTooLarge = errors.New("file too large")
)

// ErrFeedLost is returned by Session.Run when the change subscription is
// dropped. The device has to reload to resynchronize.
var ErrFeedLost = errors.New("change feed lost")
