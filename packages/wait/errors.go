package wait

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError is returned when a wait's condition did not hold before its bound.
type TimeoutError struct {
	State   State
	Target  string
	Timeout time.Duration
	Elapsed time.Duration
	// LastErr is the last error the condition reported, if any.
	LastErr error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("timed out after %dms waiting for %s", e.Timeout.Milliseconds(), e.describe())
	if e.LastErr != nil {
		msg += ": " + e.LastErr.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error {
	return e.LastErr
}

func (e *TimeoutError) describe() string {
	switch e.State {
	case Visible:
		return fmt.Sprintf("%s to be visible", e.Target)
	case Clickable:
		return fmt.Sprintf("%s to be clickable", e.Target)
	case URLContains:
		return fmt.Sprintf("URL to contain %q", e.Target)
	case TitleContains:
		return fmt.Sprintf("title to contain %q", e.Target)
	default:
		return e.Target
	}
}

// IsTimeout reports whether err is, or wraps, a *TimeoutError.
func IsTimeout(err error) bool {
	var terr *TimeoutError
	return errors.As(err, &terr)
}
