package brain

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Orient returns m in (time, grayordinate) orientation. A matrix stored as
// (grayordinate, time) is transposed into a new matrix; m is never modified.
func Orient(m *mat.Dense, bm *BrainMap) (*mat.Dense, error) {
	rows, cols := m.Dims()
	n := bm.Len()

	switch {
	case cols == n:
		return m, nil
	case rows == n:
		return mat.DenseCopyOf(m.T()), nil
	}

	return nil, fmt.Errorf("%w: matrix is %d by %d, brain map has %d grayordinates", ErrDimensionMismatch, rows, cols, n)
}

// CheckAligned verifies every session has the expected grayordinate count
func CheckAligned(sessions []*mat.Dense, grayordinates int) error {
	for i, s := range sessions {
		if s == nil {
			return fmt.Errorf("session %d: no time series", i)
		}

		_, cols := s.Dims()
		if cols != grayordinates {
			return MismatchError(fmt.Sprintf("session %d", i), cols, grayordinates)
		}
	}

	return nil
}
