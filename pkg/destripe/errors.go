package destripe

import (
	"errors"
)

var (
	// ErrInsufficientData means the band holds less than one strip's worth of
	// valid pixels.
	ErrInsufficientData = errors.New("destripe: insufficient valid data")

	// ErrDegenerateDetector means a virtual detector has no valid samples, so
	// its distribution cannot be normalised.
	ErrDegenerateDetector = errors.New("destripe: detector has no valid samples")

	// ErrConfiguration covers missing or contradictory band configuration and
	// inconsistent geometry.
	ErrConfiguration = errors.New("destripe: configuration error")

	// ErrAllocation means a working buffer could not be acquired within the
	// configured budget.
	ErrAllocation = errors.New("destripe: buffer allocation failure")
)

// Kind names the failure class of err for reporting.
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrDegenerateDetector):
		return "degenerate_detector"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrAllocation):
		return "allocation"
	default:
		return "other"
	}
}
