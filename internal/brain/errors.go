package brain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the feature extraction stages. None of them is
// recovered from inside the algorithms; callers decide what to do.
var (
	// ErrDimensionMismatch indicates grayordinate counts that disagree across inputs expected to align.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrRankDeficient indicates an underdetermined regression design matrix.
	ErrRankDeficient = errors.New("rank deficient design matrix")

	// ErrDegenerateTimeSeries indicates a zero-variance series where normalization or correlation is required.
	ErrDegenerateTimeSeries = errors.New("degenerate time series")

	// ErrEmptyParcel indicates a parcel id with no assigned grayordinates.
	// It wraps ErrDegenerateTimeSeries: an empty parcel has no mean time series.
	ErrEmptyParcel = fmt.Errorf("empty parcel: %w", ErrDegenerateTimeSeries)
)

// MismatchError wraps ErrDimensionMismatch with the offending sizes
func MismatchError(what string, got, want int) error {
	return fmt.Errorf("%w: %s has %d grayordinates, expected %d", ErrDimensionMismatch, what, got, want)
}
