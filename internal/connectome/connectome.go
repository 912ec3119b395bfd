// Package connectome builds semi-dense connectomes: the Pearson correlation
// between every subcortical parcel's mean time series and every
// grayordinate, computed per session and then averaged over the sessions of
// a subject.
//
// Sessions are correlated first and averaged after, never concatenated
// before correlating, so every scan session weighs the same whatever its
// length or noise scale.
package connectome

import (
	"context"
	"errors"
	"fmt"

	"github.com/KyungWonPark/Connectivity/internal/batch"
	"github.com/KyungWonPark/Connectivity/internal/brain"
	"github.com/KyungWonPark/Connectivity/internal/calc"
	"github.com/KyungWonPark/Connectivity/internal/parcel"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Config controls connectome construction
type Config struct {
	// SessionWorkers bounds how many sessions of a subject are correlated at once.
	SessionWorkers int
	// SubjectWorkers bounds how many subjects BuildBatch runs at once.
	SubjectWorkers int
	// Workers is the worker count of the numeric kernels.
	Workers  int
	Observer batch.Observer
}

// Build returns the (parcel, grayordinate) connectome of one subject. Its
// shape depends only on the labeling, not on the number of sessions.
func Build(ctx context.Context, labeling *parcel.Labeling, bm *brain.BrainMap, sessions []*mat.Dense, cfg Config) (*mat.Dense, error) {
	if len(sessions) == 0 {
		return nil, errors.New("connectome: no sessions")
	}
	if labeling.Len() != bm.Len() {
		return nil, brain.MismatchError("parcel labeling", labeling.Len(), bm.Len())
	}
	if err := brain.CheckAligned(sessions, bm.Len()); err != nil {
		return nil, err
	}

	pool := calc.NewPool(cfg.Workers)
	perSession := make([]*mat.Dense, len(sessions))

	eg, ctx := errgroup.WithContext(ctx)
	if cfg.SessionWorkers > 0 {
		eg.SetLimit(cfg.SessionWorkers)
	}
	for i, x := range sessions {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			c, err := session(pool, labeling, x)
			if err != nil {
				return fmt.Errorf("session %d: %w", i, err)
			}
			perSession[i] = c
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return pool.Mean(perSession)
}

// BuildSession returns the connectome of a single session
func BuildSession(labeling *parcel.Labeling, x *mat.Dense, cfg Config) (*mat.Dense, error) {
	if err := brain.CheckAligned([]*mat.Dense{x}, labeling.Len()); err != nil {
		return nil, err
	}

	return session(calc.NewPool(cfg.Workers), labeling, x)
}

func session(pool *calc.Pool, labeling *parcel.Labeling, x *mat.Dense) (*mat.Dense, error) {
	means, err := ParcelMeans(labeling, x)
	if err != nil {
		return nil, err
	}

	return pool.Pearson(means, x)
}

// ParcelMeans averages, per time point, the grayordinates of every parcel
// and returns a (time, parcel) matrix; column id-1 belongs to parcel id.
func ParcelMeans(labeling *parcel.Labeling, x *mat.Dense) (*mat.Dense, error) {
	t, g := x.Dims()
	if g != labeling.Len() {
		return nil, brain.MismatchError("time series", g, labeling.Len())
	}

	counts := labeling.Counts()
	for i, c := range counts {
		if c == 0 {
			return nil, fmt.Errorf("%w: parcel %d", brain.ErrEmptyParcel, i+1)
		}
	}

	k := labeling.Parcels()
	means := mat.NewDense(t, k, nil)
	labels := labeling.Labels()
	for i := 0; i < t; i++ {
		src := x.RawRowView(i)
		dst := means.RawRowView(i)
		for j, label := range labels {
			if label != parcel.Unlabeled {
				dst[label-1] += src[j]
			}
		}
		for p := 0; p < k; p++ {
			dst[p] /= float64(counts[p])
		}
	}

	return means, nil
}

// BuildBatch builds the connectome of every subject independently. A
// subject's failure is reported in its result and does not affect the rest.
func BuildBatch(ctx context.Context, labeling *parcel.Labeling, bm *brain.BrainMap, subjects []brain.SubjectData, cfg Config) []batch.Result[*mat.Dense] {
	return batch.Run(ctx, subjects,
		func(s brain.SubjectData) string { return s.ID },
		func(ctx context.Context, s brain.SubjectData) (*mat.Dense, error) {
			return Build(ctx, labeling, bm, s.Sessions, cfg)
		},
		batch.Options{
			Stage:    "connectome",
			Workers:  cfg.SubjectWorkers,
			Observer: cfg.Observer,
		})
}
