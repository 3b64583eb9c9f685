package core

// error_messages.go maps technical errors to user-facing messages with codes
// that receptionists can quote when something goes wrong at the desk.
//
// # Configuration (CFG001)
//
//	CFG001 - Setup required: the store URL or key is not configured
//
// # Fetch Errors (FETCH001-FETCH002)
//
//	FETCH001 - The participant list could not be loaded
//	           Action: Reload the list
//	FETCH002 - Unknown status filter
//
// # Mutation Errors (MUT001-MUT099)
//
//	MUT001 - Name is required
//	MUT002 - A field is too long
//	MUT003 - Participant not found
//	MUT004 - The change could not be saved
//	MUT005 - Name or company contains a line break or control character
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Too many imports in progress
//	IMP002 - Nothing to import (reported as a result, not an error)
//	IMP003 - The file is not a readable CSV
//	IMP004 - The file is too large
//
// # Live Feed (FEED001)
//
//	FEED001 - The live feed was interrupted; reload to resynchronize
//
// # Store Connectivity (DB001-DB099)
//
// Matched by pattern when a driver error reaches the web layer unclassified.
//
// # Default Error (ERR000)
//
// Fallback when nothing matches. Check the server logs for the technical error.
//
// Authentication codes (AUTH001-AUTH099) are assigned by the web layer.

import (
	"errors"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
// Message and Action are English defaults; the web layer localizes by Code.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// Codes shared with other layers.
const (
	CodeSetupRequired   = "CFG001"
	CodeNothingToImport = "IMP002"
)

// errorKind pairs a sentinel error with its user message.
// The first sentinel matched by errors.Is wins.
type errorKind struct {
	target error
	msg    UserMessage
}

var errorKinds = []errorKind{
	{ErrNameRequired, UserMessage{
		Message: "Name is required",
		Action:  "Enter the participant's name",
		Code:    "MUT001",
	}},
	{ErrFieldTooLong, UserMessage{
		Message: "A field is too long",
		Action:  "Shorten the name, company or memo",
		Code:    "MUT002",
	}},
	{ErrControlChar, UserMessage{
		Message: "Name or company contains a line break or control character",
		Action:  "Remove line breaks and tabs from the name and company",
		Code:    "MUT005",
	}},
	{ErrParticipantNotFound, UserMessage{
		Message: "Participant not found",
		Action:  "Reload the list; the participant may have been removed",
		Code:    "MUT003",
	}},
	{ErrTooManyImports, UserMessage{
		Message: "Another import is in progress",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}},
	{ErrInvalidCSV, UserMessage{
		Message: "The file could not be read as CSV",
		Action:  "Save the file as UTF-8 CSV and try again",
		Code:    "IMP003",
	}},
	{ErrFileTooLarge, UserMessage{
		Message: "The file is too large",
		Action:  "Split the file into smaller files",
		Code:    "IMP004",
	}},
	{ErrInvalidFilter, UserMessage{
		Message: "Unknown status filter",
		Action:  "Use all, pending or checked_in",
		Code:    "FETCH002",
	}},
	{ErrFeedLost, UserMessage{
		Message: "The live feed was interrupted",
		Action:  "Reload the list",
		Code:    "FEED001",
	}},
	{ErrFetchFailed, UserMessage{
		Message: "The participant list could not be loaded",
		Action:  "Reload the list",
		Code:    "FETCH001",
	}},
	{ErrWriteFailed, UserMessage{
		Message: "The change could not be saved",
		Action:  "Please try again",
		Code:    "MUT004",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catch driver errors that reached a caller unwrapped.
// Matched case-insensitively with strings.Contains; first match wins.
var errorPatterns = []errorPattern{
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to the participant store",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "The connection to the participant store was interrupted",
			Action:  "Please try again",
			Code:    "DB002",
		},
	},
	{
		pattern: "deadline exceeded",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again",
			Code:    "DB003",
		},
	},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact the event staff",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, p := range errorPatterns {
		if strings.Contains(errStr, p.pattern) {
			return p.msg
		}
	}

	return defaultMessage
}

// FormatUserError returns "message (code)" for plain-text contexts.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Code == "" {
		return ""
	}
	return msg.Message + " (" + msg.Code + ")"
}
