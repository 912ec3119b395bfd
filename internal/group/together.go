package group

import (
	"context"
	"fmt"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"github.com/KyungWonPark/Connectivity/internal/calc"
	"github.com/KyungWonPark/Connectivity/internal/ica"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// RunTogether runs one spatial decomposition over every grayordinate of the
// time-concatenated group data.
func RunTogether(ctx context.Context, bm *brain.BrainMap, subjects []brain.SubjectData, cfg Config) (*Components, error) {
	pool := calc.NewPool(cfg.Workers)

	x, err := concatenate(pool, bm, subjects)
	if err != nil {
		return nil, err
	}

	maps, courses, err := decompose(ctx, x, cfg)
	if err != nil {
		return nil, err
	}

	comps := newComponents(Together, maps, courses)
	log.WithFields(log.Fields{
		"components": comps.Len(),
		"version":    comps.Version(),
	}).Info("Group decomposition finished")

	return comps, nil
}

// concatenate variance-normalizes every session per grayordinate and stacks
// all sessions of all subjects along the time axis.
func concatenate(pool *calc.Pool, bm *brain.BrainMap, subjects []brain.SubjectData) (*mat.Dense, error) {
	n := bm.Len()
	total := 0
	for _, s := range subjects {
		if err := brain.CheckAligned(s.Sessions, n); err != nil {
			return nil, fmt.Errorf("subject %s: %w", s.ID, err)
		}
		for _, x := range s.Sessions {
			rows, _ := x.Dims()
			total += rows
		}
	}
	if total == 0 {
		return nil, fmt.Errorf("group decomposition: no time series")
	}

	concat := mat.NewDense(total, n, nil)
	offset := 0
	for _, s := range subjects {
		for i, x := range s.Sessions {
			rows, _ := x.Dims()
			block := concat.Slice(offset, offset+rows, 0, n).(*mat.Dense)
			if err := pool.ZScoring(x, block); err != nil {
				return nil, fmt.Errorf("subject %s session %d: %w", s.ID, i, err)
			}
			offset += rows
		}
	}

	return concat, nil
}

// decompose reduces x (time, grayordinate) with PCA and unmixes the
// whitened maps with FastICA. It returns (component, grayordinate) maps and
// (time, component) time courses with x ≈ courses * maps.
func decompose(ctx context.Context, x *mat.Dense, cfg Config) (*mat.Dense, *mat.Dense, error) {
	red, err := ica.PCA(ctx, x, cfg.Components, cfg.solver())
	if err != nil {
		return nil, nil, err
	}

	res, err := ica.FastICA(ctx, red.Whitened, cfg.ica())
	if err != nil {
		return nil, nil, err
	}
	if !res.Converged {
		log.WithField("iterations", res.Iterations).Warn("FastICA did not converge")
	}

	// x ≈ Basis * Whitened = (Basis * W^T) * (W * Whitened)
	t, _ := x.Dims()
	courses := mat.NewDense(t, cfg.Components, nil)
	courses.Mul(red.Basis, res.Unmixing.T())

	maps := res.Sources
	positiveSkew(maps, courses)

	return maps, courses, nil
}

// positiveSkew flips every component whose map has negative skew, together
// with its time course, so signs are reproducible.
func positiveSkew(maps *mat.Dense, courses *mat.Dense) {
	k, _ := maps.Dims()
	t, _ := courses.Dims()

	for c := 0; c < k; c++ {
		row := maps.RawRowView(c)

		var mean float64
		for _, v := range row {
			mean += v
		}
		mean /= float64(len(row))

		var third float64
		for _, v := range row {
			d := v - mean
			third += d * d * d
		}

		if third >= 0 {
			continue
		}

		for j := range row {
			row[j] = -row[j]
		}
		for i := 0; i < t; i++ {
			courses.Set(i, c, -courses.At(i, c))
		}
	}
}
