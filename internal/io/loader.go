package io

import (
	"context"
	"fmt"
	"strings"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"gonum.org/v1/gonum/mat"
)

// BrainMapSuffix marks structural-only inputs: the file is a brain map and
// carries no time series.
const BrainMapSuffix = ".brainmap"

// FileLoader loads time series from npy, csv or NIfTI files, all aligned to
// one brain map.
type FileLoader struct {
	BrainMap *brain.BrainMap
	// TimeStart and TimeEnd select the NIfTI volumes that are sampled.
	TimeStart int
	TimeEnd   int
	Workers   int
}

// Load implements brain.Loader
func (l *FileLoader) Load(ctx context.Context, path string) (*mat.Dense, *brain.BrainMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, BrainMapSuffix):
		bm, err := ReadBrainMap(path)
		return nil, bm, err

	case strings.HasSuffix(lower, ".nii"), strings.HasSuffix(lower, ".nii.gz"):
		x, err := ReadNifti(path, l.BrainMap, l.TimeStart, l.TimeEnd, l.Workers)
		if err != nil {
			return nil, nil, err
		}
		return x, l.BrainMap, nil
	}

	m, err := ReadMatrix(path)
	if err != nil {
		return nil, nil, err
	}

	x, err := brain.Orient(m, l.BrainMap)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}

	return x, l.BrainMap, nil
}
