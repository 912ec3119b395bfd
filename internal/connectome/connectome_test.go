package connectome_test

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"github.com/KyungWonPark/Connectivity/internal/calc"
	"github.com/KyungWonPark/Connectivity/internal/connectome"
	"github.com/KyungWonPark/Connectivity/internal/group"
	"github.com/KyungWonPark/Connectivity/internal/parcel"
	"github.com/KyungWonPark/Connectivity/internal/synth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const k = 5

type fixture struct {
	bm       *brain.BrainMap
	maps     *mat.Dense
	labeling *parcel.Labeling
	rng      *rand.Rand
}

func setup(t *testing.T) fixture {
	t.Helper()

	rng := rand.New(rand.NewSource(21))
	bm := synth.BrainMap(20, 30)
	maps := synth.Components(rng, bm, k)

	comps, err := group.NewComponents(maps)
	require.NoError(t, err)
	labeling, err := parcel.Parcellate(comps, bm, parcel.Config{})
	require.NoError(t, err)

	return fixture{bm: bm, maps: maps, labeling: labeling, rng: rng}
}

func (f fixture) sessions(n int) []*mat.Dense {
	return synth.Subject(f.rng, "s", f.maps, n, 120, 0.1).Sessions
}

func TestBuildBoundsAndShape(t *testing.T) {
	f := setup(t)

	for _, n := range []int{1, 3} {
		c, err := connectome.Build(context.Background(), f.labeling, f.bm, f.sessions(n), connectome.Config{Workers: 2})
		require.NoError(t, err)

		r, cols := c.Dims()
		assert.Equal(t, k, r, "%d sessions", n)
		assert.Equal(t, f.bm.Len(), cols, "%d sessions", n)

		for _, v := range c.RawMatrix().Data {
			assert.GreaterOrEqual(t, v, -1.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestBuildPeaksInsideParcel(t *testing.T) {
	f := setup(t)

	c, err := connectome.Build(context.Background(), f.labeling, f.bm, f.sessions(2), connectome.Config{})
	require.NoError(t, err)

	for p := 1; p <= k; p++ {
		row := c.RawRowView(p - 1)
		best := 0
		for g := range row {
			if row[g] > row[best] {
				best = g
			}
		}
		assert.Equal(t, p, f.labeling.Label(best), "parcel %d peaks at grayordinate %d", p, best)
	}
}

func TestSingleMemberParcelCorrelatesOne(t *testing.T) {
	f := setup(t)

	labels := make([]int, f.bm.Len())
	sub := f.bm.SubcorticalIndices()
	labels[sub[0]] = 1
	for _, g := range sub[1:] {
		labels[g] = 2
	}
	labeling, err := parcel.NewLabeling(labels, 2, uuid.Nil)
	require.NoError(t, err)

	c, err := connectome.Build(context.Background(), labeling, f.bm, f.sessions(2), connectome.Config{})
	require.NoError(t, err)
	assert.InDelta(t, 1, c.At(0, sub[0]), 1e-12)
}

func TestCorrelateThenAverage(t *testing.T) {
	f := setup(t)
	sessions := f.sessions(2)
	cfg := connectome.Config{SessionWorkers: 2}

	built, err := connectome.Build(context.Background(), f.labeling, f.bm, sessions, cfg)
	require.NoError(t, err)

	var perSession []*mat.Dense
	for _, x := range sessions {
		c, err := connectome.BuildSession(f.labeling, x, cfg)
		require.NoError(t, err)
		perSession = append(perSession, c)
	}
	mean, err := calc.NewPool(1).Mean(perSession)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(built, mean, 1e-12))

	// shifting one session's baseline changes a concatenated correlation
	// but not a per-session one
	shifted := mat.DenseCopyOf(sessions[1])
	rows, cols := shifted.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			shifted.Set(i, j, shifted.At(i, j)+float64(j))
		}
	}
	again, err := connectome.Build(context.Background(), f.labeling, f.bm, []*mat.Dense{sessions[0], shifted}, cfg)
	require.NoError(t, err)
	assert.True(t, mat.EqualApprox(built, again, 1e-9))
}

func TestParcelMeans(t *testing.T) {
	labeling, err := parcel.NewLabeling([]int{0, 1, 1}, 1, uuid.Nil)
	require.NoError(t, err)

	x := mat.NewDense(2, 3, []float64{
		100, 1, 3,
		100, 2, 6,
	})
	means, err := connectome.ParcelMeans(labeling, x)
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 4}, means.RawMatrix().Data)
}

func TestBuildErrors(t *testing.T) {
	f := setup(t)

	t.Run("empty parcel", func(t *testing.T) {
		labels := f.labeling.Labels()
		labeling, err := parcel.NewLabeling(labels, k+1, uuid.Nil)
		require.NoError(t, err)

		_, err = connectome.Build(context.Background(), labeling, f.bm, f.sessions(1), connectome.Config{})
		assert.ErrorIs(t, err, brain.ErrEmptyParcel)
		assert.ErrorIs(t, err, brain.ErrDegenerateTimeSeries)
	})

	t.Run("flat grayordinate", func(t *testing.T) {
		x := f.sessions(1)[0]
		rows, _ := x.Dims()
		for i := 0; i < rows; i++ {
			x.Set(i, 3, 1)
		}
		_, err := connectome.Build(context.Background(), f.labeling, f.bm, []*mat.Dense{x}, connectome.Config{})
		assert.ErrorIs(t, err, brain.ErrDegenerateTimeSeries)
	})

	t.Run("non-finite sample", func(t *testing.T) {
		for _, bad := range []float64{math.NaN(), math.Inf(1)} {
			x := f.sessions(1)[0]
			x.Set(7, 0, bad)

			c, err := connectome.Build(context.Background(), f.labeling, f.bm, []*mat.Dense{x}, connectome.Config{})
			assert.ErrorIs(t, err, brain.ErrDegenerateTimeSeries, "sample %v", bad)
			assert.Nil(t, c)
		}

		x := f.sessions(1)[0]
		x.Set(7, f.bm.Len()-1, math.NaN())
		_, err := connectome.Build(context.Background(), f.labeling, f.bm, []*mat.Dense{x}, connectome.Config{})
		assert.ErrorIs(t, err, brain.ErrDegenerateTimeSeries)
	})

	t.Run("grayordinate mismatch", func(t *testing.T) {
		_, err := connectome.Build(context.Background(), f.labeling, f.bm, []*mat.Dense{mat.NewDense(10, 3, nil)}, connectome.Config{})
		assert.ErrorIs(t, err, brain.ErrDimensionMismatch)
	})

	t.Run("no sessions", func(t *testing.T) {
		_, err := connectome.Build(context.Background(), f.labeling, f.bm, nil, connectome.Config{})
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := connectome.Build(ctx, f.labeling, f.bm, f.sessions(1), connectome.Config{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

type countingObserver struct {
	mu     sync.Mutex
	failed int
	ok     int
}

func (o *countingObserver) Observe(stage string, d time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err != nil {
		o.failed++
	} else {
		o.ok++
	}
}

func TestBuildBatchIsolatesFailures(t *testing.T) {
	f := setup(t)

	subjects := []brain.SubjectData{
		{ID: "good", Sessions: f.sessions(2)},
		{ID: "bad", Sessions: []*mat.Dense{mat.NewDense(10, 2, nil)}},
		{ID: "also-good", Sessions: f.sessions(1)},
	}
	obs := &countingObserver{}

	results := connectome.BuildBatch(context.Background(), f.labeling, f.bm, subjects, connectome.Config{SubjectWorkers: 2, Observer: obs})
	require.Len(t, results, 3)

	assert.Equal(t, "good", results[0].Subject)
	assert.NoError(t, results[0].Err)
	assert.NotNil(t, results[0].Value)

	assert.Equal(t, "bad", results[1].Subject)
	assert.ErrorIs(t, results[1].Err, brain.ErrDimensionMismatch)
	assert.Nil(t, results[1].Value)

	assert.NoError(t, results[2].Err)

	assert.Equal(t, 2, obs.ok)
	assert.Equal(t, 1, obs.failed)
}
