package group

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"github.com/KyungWonPark/Connectivity/internal/calc"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Group is a set of grayordinates decomposed on its own
type Group struct {
	Name    string
	Indices []int
}

// DefaultGroups splits the brain into its left and right hemispheres,
// cortex and subcortex together. Midline structures belong to neither.
func DefaultGroups(bm *brain.BrainMap) []Group {
	return []Group{
		{Name: "left", Indices: bm.HemisphereIndices(brain.Left)},
		{Name: "right", Indices: bm.HemisphereIndices(brain.Right)},
	}
}

// RunSeparately decomposes every group independently and reassembles the
// maps into one (component, grayordinate) array in BrainMap order.
//
// Component k of every later group is the one whose group time course
// best matches component k of the first group (greedy on absolute
// correlation, signs aligned), so a row describes one component across all
// groups. Grayordinates outside every group are back-projected onto the
// mean matched time courses.
func RunSeparately(ctx context.Context, bm *brain.BrainMap, subjects []brain.SubjectData, groups []Group, cfg Config) (*Components, error) {
	if cfg.Components < 1 {
		return nil, fmt.Errorf("RunSeparately: component count must be positive, got %d", cfg.Components)
	}
	if bm.Len() == 0 {
		return nil, errors.New("RunSeparately: empty brain map")
	}
	if err := checkGroups(groups, bm.Len()); err != nil {
		return nil, err
	}

	pool := calc.NewPool(cfg.Workers)

	x, err := concatenate(pool, bm, subjects)
	if err != nil {
		return nil, err
	}
	t, n := x.Dims()
	k := cfg.Components

	maps := mat.NewDense(k, n, nil)
	courses := mat.NewDense(t, k, nil)
	var reference *mat.Dense

	for gi, grp := range groups {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		groupMaps, groupCourses, err := decompose(ctx, columns(x, grp.Indices), cfg)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", grp.Name, err)
		}

		perm := identity(k)
		signs := ones(k)
		if gi == 0 {
			reference = groupCourses
		} else {
			perm, signs, err = match(pool, reference, groupCourses)
			if err != nil {
				return nil, fmt.Errorf("group %s: matching: %w", grp.Name, err)
			}
		}

		for c := 0; c < k; c++ {
			for j, g := range grp.Indices {
				maps.Set(c, g, signs[c]*groupMaps.At(perm[c], j))
			}
			for i := 0; i < t; i++ {
				courses.Set(i, c, courses.At(i, c)+signs[c]*groupCourses.At(i, perm[c]))
			}
		}

		log.WithFields(log.Fields{
			"group":         grp.Name,
			"grayordinates": len(grp.Indices),
		}).Info("Group decomposed")
	}
	courses.Scale(1/float64(len(groups)), courses)

	if rest := uncovered(groups, n); len(rest) > 0 {
		restMaps, err := backProject(courses, columns(x, rest))
		if err != nil {
			return nil, fmt.Errorf("back-projecting %d ungrouped grayordinates: %w", len(rest), err)
		}
		for c := 0; c < k; c++ {
			for j, g := range rest {
				maps.Set(c, g, restMaps.At(c, j))
			}
		}
	}

	comps := newComponents(Separately, maps, courses)
	log.WithFields(log.Fields{
		"components": comps.Len(),
		"groups":     len(groups),
		"version":    comps.Version(),
	}).Info("Group decomposition finished")

	return comps, nil
}

func checkGroups(groups []Group, n int) error {
	if len(groups) == 0 {
		return errors.New("no grayordinate groups")
	}

	seen := make([]bool, n)
	for _, grp := range groups {
		if len(grp.Indices) == 0 {
			return fmt.Errorf("group %s has no grayordinates", grp.Name)
		}
		for _, g := range grp.Indices {
			if g < 0 || g >= n {
				return fmt.Errorf("%w: group %s references grayordinate %d of %d", brain.ErrDimensionMismatch, grp.Name, g, n)
			}
			if seen[g] {
				return fmt.Errorf("grayordinate %d belongs to more than one group", g)
			}
			seen[g] = true
		}
	}

	return nil
}

func uncovered(groups []Group, n int) []int {
	covered := make([]bool, n)
	for _, grp := range groups {
		for _, g := range grp.Indices {
			covered[g] = true
		}
	}

	var rest []int
	for g := 0; g < n; g++ {
		if !covered[g] {
			rest = append(rest, g)
		}
	}

	return rest
}

// columns copies the given columns of x into a new matrix
func columns(x *mat.Dense, indices []int) *mat.Dense {
	t, _ := x.Dims()
	out := mat.NewDense(t, len(indices), nil)
	for i := 0; i < t; i++ {
		src := x.RawRowView(i)
		dst := out.RawRowView(i)
		for j, g := range indices {
			dst[j] = src[g]
		}
	}

	return out
}

type pair struct {
	ref  int
	cand int
	corr float64
}

// match pairs every reference time course with one candidate time course.
// perm[ref] is the matched candidate and signs[ref] aligns its sign.
func match(pool *calc.Pool, reference *mat.Dense, candidate *mat.Dense) ([]int, []float64, error) {
	corr, err := pool.Pearson(reference, candidate)
	if err != nil {
		return nil, nil, err
	}
	k, _ := corr.Dims()

	pairs := make([]pair, 0, k*k)
	for r := 0; r < k; r++ {
		for c := 0; c < k; c++ {
			pairs = append(pairs, pair{ref: r, cand: c, corr: corr.At(r, c)})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return math.Abs(pairs[i].corr) > math.Abs(pairs[j].corr)
	})

	perm := make([]int, k)
	signs := make([]float64, k)
	refDone := make([]bool, k)
	candDone := make([]bool, k)
	for _, p := range pairs {
		if refDone[p.ref] || candDone[p.cand] {
			continue
		}
		refDone[p.ref] = true
		candDone[p.cand] = true
		perm[p.ref] = p.cand
		signs[p.ref] = 1
		if p.corr < 0 {
			signs[p.ref] = -1
		}
	}

	return perm, signs, nil
}

// backProject solves courses * maps = x for maps in the least-squares sense
func backProject(courses *mat.Dense, x *mat.Dense) (*mat.Dense, error) {
	var maps mat.Dense
	if err := maps.Solve(courses, x); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: condition number %g", brain.ErrRankDeficient, float64(cond))
		}
		return nil, err
	}

	return &maps, nil
}

func identity(k int) []int {
	perm := make([]int, k)
	for i := range perm {
		perm[i] = i
	}

	return perm
}

func ones(k int) []float64 {
	signs := make([]float64, k)
	for i := range signs {
		signs[i] = 1
	}

	return signs
}
