package sanitize

import (
	"fmt"
	"time"

	"github.com/MadlinksCoding/modstore/internal/moderr"
	"github.com/MadlinksCoding/modstore/internal/types"
)

// maxRepresentableMs keeps day-key derivation inside the range where the
// instant is a real calendar date (year 1..9999).
const maxRepresentableMs = 253402300799999 // 9999-12-31T23:59:59.999Z

// DayKeyFromTs derives the UTC YYYYMMDD token for an epoch-ms timestamp.
// Accepts anything Integer can coerce; fails with InvalidTimestamp when
// sanitization fails or the instant is not a representable calendar date.
func DayKeyFromTs(ts any) (string, error) {
	ms, ok := Integer(ts)
	if !ok {
		return "", moderr.New(moderr.KindInvalidTimestamp, "dayKeyFromTs",
			"timestamp is not numeric").WithData(map[string]any{"timestamp": fmt.Sprintf("%v", ts)})
	}
	if ms <= 0 || ms > maxRepresentableMs {
		return "", moderr.New(moderr.KindInvalidTimestamp, "dayKeyFromTs",
			fmt.Sprintf("timestamp %d is outside the representable date range", ms)).
			WithData(map[string]any{"timestamp": ms})
	}
	return types.UTCDayKey(ms), nil
}

// StatusSubmittedAtKey builds the composite status+submittedAt range key.
// The status must be a member of the closed status set and ts must be a
// positive integer.
func StatusSubmittedAtKey(status types.Status, ts any) (string, error) {
	if !status.IsValid() {
		return "", moderr.New(moderr.KindInvalidEnum, "statusSubmittedAtKey",
			fmt.Sprintf("invalid status %q", status)).
			WithData(map[string]any{"status": string(status)})
	}
	ms, ok := Integer(ts)
	if !ok || ms <= 0 {
		return "", moderr.New(moderr.KindInvalidTimestamp, "statusSubmittedAtKey",
			"submittedAt must be a positive integer").
			WithData(map[string]any{"submittedAt": fmt.Sprintf("%v", ts)})
	}
	return types.BuildStatusSubmittedAt(status, ms), nil
}

// ValidateDayKey checks the YYYYMMDD shape and that the token names a real
// calendar date.
func ValidateDayKey(key string) error {
	if len(key) != 8 {
		return moderr.New(moderr.KindInvalidDayKey, "validateDayKey",
			fmt.Sprintf("dayKey %q is not 8 digits", key)).
			WithData(map[string]any{"dayKey": key})
	}
	t, err := time.ParseInLocation("20060102", key, time.UTC)
	if err != nil || t.UTC().Format("20060102") != key {
		return moderr.New(moderr.KindInvalidDayKey, "validateDayKey",
			fmt.Sprintf("dayKey %q is not a real calendar date", key)).
			WithData(map[string]any{"dayKey": key})
	}
	return nil
}
