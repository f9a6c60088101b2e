// Package moderr defines the error kinds surfaced by the moderation store.
//
// Every failure mode has a Kind with a stable code so callers and the error
// sink can key on it. Errors wrap their cause; use IsKind (or errors.As)
// rather than string matching.
package moderr

import (
	"errors"
	"fmt"
)

// Kind identifies a failure mode.
type Kind string

// Error kinds
const (
	KindInvalidInput        Kind = "InvalidInput"
	KindInvalidEnum         Kind = "InvalidEnum"
	KindInvalidModerationID Kind = "InvalidModerationId"
	KindInvalidTimestamp    Kind = "InvalidTimestamp"
	KindInvalidDayKey       Kind = "InvalidDayKey"
	KindFieldLengthExceeded Kind = "FieldLengthExceeded"
	KindNotesLimitExceeded  Kind = "NotesLimitExceeded"

	KindAlreadyExists            Kind = "ModerationEntryAlreadyExists"
	KindNotFound                 Kind = "ModerationItemNotFound"
	KindAlreadyDeleted           Kind = "AlreadyDeleted"
	KindActionStatusInconsistent Kind = "ActionStatusInconsistent"

	KindDeletedConsistency           Kind = "DeletedConsistency"
	KindActionedAtConsistency        Kind = "ActionedAtConsistency"
	KindEscalatedConsistency         Kind = "EscalatedConsistency"
	KindStatusSubmittedAtConsistency Kind = "StatusSubmittedAtConsistency"

	KindConcurrentModification Kind = "ConcurrentModification"
	KindContentCorrupted       Kind = "ContentCorrupted"

	KindPaginationTokenInvalid  Kind = "PaginationTokenInvalid"
	KindPaginationTokenExpired  Kind = "PaginationTokenExpired"
	KindPaginationTokenTooLarge Kind = "PaginationTokenTooLarge"
	KindPaginationLimitExceeded Kind = "PaginationLimitExceeded"
	KindQueryLimitExceeded      Kind = "QueryLimitExceeded"

	KindSchemaCreationFailed Kind = "SchemaCreationFailed"
	KindStorageTransient     Kind = "StorageTransient"
	KindCancelled            Kind = "Cancelled"
	KindCountsFailed         Kind = "GetAllModerationCountsFailed"
)

// codes maps each kind to its stable sink code.
var codes = map[Kind]string{
	KindInvalidInput:                 "MOD_E001",
	KindInvalidEnum:                  "MOD_E002",
	KindInvalidModerationID:          "MOD_E003",
	KindInvalidTimestamp:             "MOD_E004",
	KindInvalidDayKey:                "MOD_E005",
	KindFieldLengthExceeded:          "MOD_E006",
	KindNotesLimitExceeded:           "MOD_E007",
	KindAlreadyExists:                "MOD_E010",
	KindNotFound:                     "MOD_E011",
	KindAlreadyDeleted:               "MOD_E012",
	KindActionStatusInconsistent:     "MOD_E013",
	KindDeletedConsistency:           "MOD_E014",
	KindActionedAtConsistency:        "MOD_E015",
	KindEscalatedConsistency:         "MOD_E016",
	KindStatusSubmittedAtConsistency: "MOD_E017",
	KindConcurrentModification:       "MOD_E020",
	KindContentCorrupted:             "MOD_E021",
	KindPaginationTokenInvalid:       "MOD_E030",
	KindPaginationTokenExpired:       "MOD_E031",
	KindPaginationTokenTooLarge:      "MOD_E032",
	KindPaginationLimitExceeded:      "MOD_E033",
	KindQueryLimitExceeded:           "MOD_E034",
	KindSchemaCreationFailed:         "MOD_E040",
	KindStorageTransient:             "MOD_E041",
	KindCancelled:                    "MOD_E042",
	KindCountsFailed:                 "MOD_E043",
}

// Code returns the stable sink code for a kind.
func (k Kind) Code() string {
	if c, ok := codes[k]; ok {
		return c
	}
	return "MOD_E000"
}

// Error is the concrete error type carried across the store's API.
type Error struct {
	Kind   Kind
	Origin string         // operation that produced the error
	Msg    string
	Data   map[string]any // sanitized offending parameters
	Err    error          // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

// New builds an Error of the given kind.
func New(kind Kind, origin, msg string) *Error {
	return &Error{Kind: kind, Origin: origin, Msg: msg}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, origin, msg string, err error) *Error {
	return &Error{Kind: kind, Origin: origin, Msg: msg, Err: err}
}

// WithData attaches sanitized context parameters and returns the error.
func (e *Error) WithData(data map[string]any) *Error {
	e.Data = data
	return e
}

// IsKind reports whether err (or anything it wraps) is an Error of kind k.
func IsKind(err error, k Kind) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind == k
	}
	return false
}

// KindOf returns the kind of err, or "" when err is not a store error.
func KindOf(err error) Kind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	return ""
}
