package pvoutput

import (
	"errors"
	"fmt"
	"time"

	"github.com/ryabkov82/pvoutput-ingest/internal/ingest"
)

// DateLayout is the API's YYYYMMDD date format
const DateLayout = "20060102"

// ErrInvalidDate is wrapped by every date validation failure
var ErrInvalidDate = errors.New("invalid date")

// DateString formats t as YYYYMMDD
func DateString(t time.Time) string {
	return t.Format(DateLayout)
}

// ParseDate parses a YYYYMMDD date
func ParseDate(date string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, date, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not in YYYYMMDD format", ErrInvalidDate, date)
	}
	return t, nil
}

// CheckDate rejects dates that are malformed or in the future relative to now
func CheckDate(date string, now time.Time) error {
	t, err := ParseDate(date)
	if err != nil {
		return err
	}
	// Compare wall-clock dates, now is taken in its own location.
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if t.After(today) {
		return fmt.Errorf("%w: date should not be in the future, got %s, current date is %s",
			ErrInvalidDate, date, DateString(now))
	}
	return nil
}

// CheckStatus verifies that the first and last keys of a status table fall
// on the requested date or the day after it.
func CheckStatus(status *ingest.Table, requestedDate string) error {
	if status == nil {
		return fmt.Errorf("status table is nil")
	}
	from, err := ParseDate(requestedDate)
	if err != nil {
		return err
	}
	return ingest.CheckKeyDateRange(status, from, from.AddDate(0, 0, 1))
}
