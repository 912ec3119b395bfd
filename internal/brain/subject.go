package brain

import (
	"context"

	"gonum.org/v1/gonum/mat"
)

// Subject is a pure record of where a subject's images live
type Subject struct {
	ID       string   `yaml:"id"`
	Primary  string   `yaml:"primary,omitempty"`
	Sessions []string `yaml:"sessions"`
}

// SubjectData holds a subject's loaded session time series, each in
// (time, grayordinate) orientation and aligned to the same BrainMap.
type SubjectData struct {
	ID       string
	Sessions []*mat.Dense
}

// Loader reads brain data from storage. The returned matrix is nil for
// structural-only images; otherwise it is aligned with the returned BrainMap.
type Loader interface {
	Load(ctx context.Context, path string) (*mat.Dense, *BrainMap, error)
}
