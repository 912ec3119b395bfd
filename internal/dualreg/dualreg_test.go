package dualreg_test

import (
	"context"
	"math/rand"
	"testing"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"github.com/KyungWonPark/Connectivity/internal/calc"
	"github.com/KyungWonPark/Connectivity/internal/dualreg"
	"github.com/KyungWonPark/Connectivity/internal/group"
	"github.com/KyungWonPark/Connectivity/internal/synth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const k = 5

func truth(t *testing.T, seed int64) (*brain.BrainMap, *mat.Dense, *rand.Rand) {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	bm := synth.BrainMap(20, 30)
	return bm, synth.Components(rng, bm, k), rng
}

func components(t *testing.T, maps mat.Matrix) *group.Components {
	t.Helper()

	comps, err := group.NewComponents(maps)
	require.NoError(t, err)
	return comps
}

func TestRecoversNoiseFreeMaps(t *testing.T) {
	_, maps, rng := truth(t, 1)
	sessions := synth.Subject(rng, "s", maps, 3, 60, 0).Sessions

	res, err := dualreg.Run(context.Background(), components(t, maps), sessions, dualreg.Config{Workers: 2})
	require.NoError(t, err)

	assert.True(t, mat.EqualApprox(res.Maps, maps, 1e-8))
	for _, m := range res.SessionMaps {
		assert.True(t, mat.EqualApprox(m, maps, 1e-8))
	}
}

func TestShapes(t *testing.T) {
	bm, maps, rng := truth(t, 2)
	comps := components(t, maps)
	sessions := synth.Subject(rng, "s", maps, 2, 40, 0.2).Sessions

	res, err := dualreg.Run(context.Background(), comps, sessions, dualreg.Config{Normalize: true, SessionWorkers: 1})
	require.NoError(t, err)

	assert.Equal(t, comps.Version(), res.ComponentsVersion)
	require.Len(t, res.TimeCourses, 2)
	require.Len(t, res.SessionMaps, 2)
	for i := range sessions {
		r, c := res.TimeCourses[i].Dims()
		assert.Equal(t, 40, r)
		assert.Equal(t, k, c)
		r, c = res.SessionMaps[i].Dims()
		assert.Equal(t, k, r)
		assert.Equal(t, bm.Len(), c)
	}

	mean, err := calc.NewPool(1).Mean(res.SessionMaps)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(mean, res.Maps, 1e-12))
}

func TestComponentOrderStable(t *testing.T) {
	_, maps, rng := truth(t, 3)
	x := synth.Session(rng, maps, 80, 0.3)

	perm := []int{4, 2, 0, 3, 1}
	permuted := mat.NewDense(k, maps.RawMatrix().Cols, nil)
	for i, p := range perm {
		permuted.SetRow(i, maps.RawRowView(p))
	}

	cfg := dualreg.Config{Normalize: true}
	_, orig, err := dualreg.RunSession(components(t, maps), x, cfg)
	require.NoError(t, err)
	_, swapped, err := dualreg.RunSession(components(t, permuted), x, cfg)
	require.NoError(t, err)

	for i, p := range perm {
		assert.InDeltaSlice(t, orig.RawRowView(p), swapped.RawRowView(i), 1e-9, "row %d", i)
	}
}

func TestNormalizeTimeCourses(t *testing.T) {
	_, maps, rng := truth(t, 4)
	x := synth.Session(rng, maps, 50, 0.2)

	courses, _, err := dualreg.RunSession(components(t, maps), x, dualreg.Config{Normalize: true, NormalizeTimeCourses: true})
	require.NoError(t, err)

	for _, s := range calc.NewPool(1).ColumnStats(courses) {
		assert.InDelta(t, 0, s.Avg, 1e-9)
		assert.InDelta(t, 1, s.Std, 1e-9)
	}
}

func TestInputsUnchanged(t *testing.T) {
	_, maps, rng := truth(t, 5)
	comps := components(t, maps)
	x := synth.Session(rng, maps, 30, 0.1)

	before := mat.DenseCopyOf(x)
	mapsBefore := comps.Maps()

	_, err := dualreg.Run(context.Background(), comps, []*mat.Dense{x}, dualreg.Config{Normalize: true})
	require.NoError(t, err)

	assert.True(t, mat.Equal(before, x))
	assert.True(t, mat.Equal(mapsBefore, comps.Matrix()))
}

func TestErrors(t *testing.T) {
	bm, maps, rng := truth(t, 6)
	comps := components(t, maps)

	t.Run("more components than time points", func(t *testing.T) {
		x := synth.Session(rng, maps, k-1, 0.1)
		_, err := dualreg.Run(context.Background(), comps, []*mat.Dense{x}, dualreg.Config{})
		assert.ErrorIs(t, err, brain.ErrRankDeficient)
	})

	t.Run("singular design", func(t *testing.T) {
		singular := mat.DenseCopyOf(maps)
		singular.SetRow(2, make([]float64, bm.Len()))
		x := synth.Session(rng, maps, 40, 0.1)
		_, err := dualreg.Run(context.Background(), components(t, singular), []*mat.Dense{x}, dualreg.Config{})
		assert.ErrorIs(t, err, brain.ErrRankDeficient)
	})

	t.Run("grayordinate mismatch", func(t *testing.T) {
		_, err := dualreg.Run(context.Background(), comps, []*mat.Dense{mat.NewDense(40, bm.Len()+1, nil)}, dualreg.Config{})
		assert.ErrorIs(t, err, brain.ErrDimensionMismatch)
	})

	t.Run("no sessions", func(t *testing.T) {
		_, err := dualreg.Run(context.Background(), comps, nil, dualreg.Config{})
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		x := synth.Session(rng, maps, 40, 0.1)
		_, err := dualreg.Run(ctx, comps, []*mat.Dense{x}, dualreg.Config{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestGroupRoundTrip(t *testing.T) {
	bm, maps, rng := truth(t, 7)
	subject := synth.Subject(rng, "s", maps, 1, 100, 0.1)

	comps, err := group.RunTogether(context.Background(), bm, []brain.SubjectData{subject},
		group.Config{Components: k, Seed: 1, MaxIter: 500, Tolerance: 1e-8})
	require.NoError(t, err)

	res, err := dualreg.Run(context.Background(), comps, subject.Sessions, dualreg.Config{Normalize: true})
	require.NoError(t, err)

	assert.True(t, mat.EqualApprox(res.Maps, comps.Matrix(), 1e-6))
	assert.True(t, mat.EqualApprox(res.TimeCourses[0], comps.TimeCourses(), 1e-6))
}
