// Package dualreg maps a subject's sessions onto the group components in
// two regression stages: spatial regression against the group maps gives
// one time course per component, temporal regression of the data against
// those time courses gives the subject-specific maps.
package dualreg

import (
	"context"
	"errors"
	"fmt"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"github.com/KyungWonPark/Connectivity/internal/calc"
	"github.com/KyungWonPark/Connectivity/internal/group"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Config controls dual regression
type Config struct {
	// Normalize z-scores every grayordinate of a session before regression,
	// matching the group stage. When unset the data is only demeaned.
	Normalize bool
	// NormalizeTimeCourses z-scores the stage 1 time courses before they are
	// used as the stage 2 design.
	NormalizeTimeCourses bool
	// SessionWorkers bounds how many sessions are regressed at once.
	SessionWorkers int
	Workers        int
}

// Result holds the dual regression output of one subject. Component index
// i everywhere refers to row i of the group components.
type Result struct {
	ComponentsVersion uuid.UUID
	// TimeCourses holds one (time, component) matrix per session.
	TimeCourses []*mat.Dense
	// SessionMaps holds one (component, grayordinate) matrix per session.
	SessionMaps []*mat.Dense
	// Maps is the grayordinate-wise mean of SessionMaps.
	Maps *mat.Dense
}

// Run regresses every session of a subject independently and averages the
// session maps.
func Run(ctx context.Context, comps *group.Components, sessions []*mat.Dense, cfg Config) (*Result, error) {
	if len(sessions) == 0 {
		return nil, errors.New("dual regression: no sessions")
	}
	if err := brain.CheckAligned(sessions, comps.Grayordinates()); err != nil {
		return nil, err
	}

	pool := calc.NewPool(cfg.Workers)

	res := Result{
		ComponentsVersion: comps.Version(),
		TimeCourses:       make([]*mat.Dense, len(sessions)),
		SessionMaps:       make([]*mat.Dense, len(sessions)),
	}

	eg, ctx := errgroup.WithContext(ctx)
	if cfg.SessionWorkers > 0 {
		eg.SetLimit(cfg.SessionWorkers)
	}
	for i, x := range sessions {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			courses, maps, err := session(pool, comps, x, cfg)
			if err != nil {
				return fmt.Errorf("session %d: %w", i, err)
			}

			res.TimeCourses[i] = courses
			res.SessionMaps[i] = maps
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	maps, err := pool.Mean(res.SessionMaps)
	if err != nil {
		return nil, err
	}
	res.Maps = maps

	return &res, nil
}

// RunSession regresses a single (time, grayordinate) session and returns
// its (time, component) time courses and (component, grayordinate) maps.
func RunSession(comps *group.Components, x *mat.Dense, cfg Config) (*mat.Dense, *mat.Dense, error) {
	if err := brain.CheckAligned([]*mat.Dense{x}, comps.Grayordinates()); err != nil {
		return nil, nil, err
	}

	return session(calc.NewPool(cfg.Workers), comps, x, cfg)
}

func session(pool *calc.Pool, comps *group.Components, x *mat.Dense, cfg Config) (*mat.Dense, *mat.Dense, error) {
	t, g := x.Dims()
	k := comps.Len()

	if k > g {
		return nil, nil, fmt.Errorf("%w: %d components over %d grayordinates", brain.ErrRankDeficient, k, g)
	}
	if k > t {
		return nil, nil, fmt.Errorf("%w: %d components over %d time points", brain.ErrRankDeficient, k, t)
	}

	data := mat.NewDense(t, g, nil)
	if cfg.Normalize {
		if err := pool.ZScoring(x, data); err != nil {
			return nil, nil, err
		}
	} else if err := pool.Demean(x, data); err != nil {
		return nil, nil, err
	}

	// stage 1: maps^T * courses^T = data^T
	var coursesT mat.Dense
	if err := solve(&coursesT, comps.Matrix().T(), data.T()); err != nil {
		return nil, nil, fmt.Errorf("spatial regression: %w", err)
	}
	courses := mat.DenseCopyOf(coursesT.T())

	if cfg.NormalizeTimeCourses {
		normed := mat.NewDense(t, k, nil)
		if err := pool.ZScoring(courses, normed); err != nil {
			return nil, nil, fmt.Errorf("time course normalization: %w", err)
		}
		courses = normed
	}

	// stage 2: courses * maps = data
	var maps mat.Dense
	if err := solve(&maps, courses, data); err != nil {
		return nil, nil, fmt.Errorf("temporal regression: %w", err)
	}

	return courses, &maps, nil
}

// solve is a least-squares solve that reports ill-conditioned designs as
// ErrRankDeficient instead of returning the degenerate solution.
func solve(dst *mat.Dense, a, b mat.Matrix) error {
	err := dst.Solve(a, b)
	if err == nil {
		return nil
	}

	var cond mat.Condition
	if errors.As(err, &cond) {
		return fmt.Errorf("%w: condition number %g", brain.ErrRankDeficient, float64(cond))
	}

	return err
}
