package pipeline_test

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"github.com/KyungWonPark/Connectivity/internal/config"
	"github.com/KyungWonPark/Connectivity/internal/dualreg"
	"github.com/KyungWonPark/Connectivity/internal/io"
	"github.com/KyungWonPark/Connectivity/internal/metrics"
	"github.com/KyungWonPark/Connectivity/internal/pipeline"
	"github.com/KyungWonPark/Connectivity/internal/synth"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

const k = 4

// dataset writes npy sessions for n subjects and returns their records
func dataset(t *testing.T, dir string, n int) (*brain.BrainMap, []brain.Subject) {
	t.Helper()

	rng := rand.New(rand.NewSource(5))
	bm := synth.BrainMap(16, 24)
	maps := synth.Components(rng, bm, k)

	subjects := make([]brain.Subject, n)
	for i := range subjects {
		id := fmt.Sprintf("sub-%d", i)
		data := synth.Subject(rng, id, maps, 2, 60, 0.1)
		subjects[i].ID = id
		for s, x := range data.Sessions {
			p := filepath.Join(dir, fmt.Sprintf("%s_%d.npy", id, s))
			require.NoError(t, io.WriteNpy(p, x))
			subjects[i].Sessions = append(subjects[i].Sessions, p)
		}
	}

	return bm, subjects
}

func newPipeline(t *testing.T, bm *brain.BrainMap, out string) *pipeline.Pipeline {
	t.Helper()

	cfg := config.Default()
	cfg.Decomposition.Components = k
	cfg.Parcellation.Compact = true
	cfg.Output.Dir = out
	cfg.Runtime.SubjectWorkers = 2
	cfg.Metrics.Textfile = filepath.Join(out, "featx.prom")
	require.NoError(t, cfg.Validate())

	return &pipeline.Pipeline{
		Config:   cfg,
		BrainMap: bm,
		Loader:   &io.FileLoader{BrainMap: bm},
		Sink:     &pipeline.Sink{Dir: out, Format: cfg.Output.Format},
		Recorder: metrics.NewRecorder(),
	}
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out")
	bm, subjects := dataset(t, dir, 3)

	broken := brain.Subject{ID: "broken", Sessions: []string{filepath.Join(dir, "missing.npy")}}
	all := append(append([]brain.Subject(nil), subjects...), broken)

	p := newPipeline(t, bm, out)
	summary, results, err := p.Run(context.Background(), subjects[:2], all)
	require.NoError(t, err)

	assert.Equal(t, "together", summary.Mode)
	assert.Equal(t, k, summary.Components)
	assert.GreaterOrEqual(t, summary.Parcels, 1)
	assert.LessOrEqual(t, summary.Parcels, k)
	require.Len(t, results, 4)

	for i, r := range results[:3] {
		require.NoError(t, r.Err, "subject %d", i)
		rows, cols := r.Value.Connectome.Dims()
		assert.Equal(t, summary.Parcels, rows)
		assert.Equal(t, bm.Len(), cols)
		rows, cols = r.Value.DualRegression.Maps.Dims()
		assert.Equal(t, k, rows)
		assert.Equal(t, bm.Len(), cols)
	}
	assert.Error(t, results[3].Err)

	for _, f := range []string{
		"components.npy", "labels.npy", "summary.yaml", "featx.prom",
		"subjects/sub-0/connectome.npy",
		"subjects/sub-0/dualreg_maps.npy",
		"subjects/sub-2/timecourses_1.npy",
	} {
		assert.FileExists(t, filepath.Join(out, f))
	}
	assert.NoDirExists(t, filepath.Join(out, "subjects", "broken"))

	raw, err := os.ReadFile(filepath.Join(out, "summary.yaml"))
	require.NoError(t, err)
	var written pipeline.Summary
	require.NoError(t, yaml.Unmarshal(raw, &written))
	assert.Equal(t, summary.ComponentsVersion, written.ComponentsVersion)
	require.Len(t, written.Subjects, 4)
	assert.Empty(t, written.Subjects[0].Error)
	assert.NotEmpty(t, written.Subjects[3].Error)

	labels, err := io.ReadLabels(filepath.Join(out, "labels.npy"))
	require.NoError(t, err)
	for _, g := range bm.CortexIndices() {
		assert.Zero(t, labels[g])
	}
}

func TestRunSeparately(t *testing.T) {
	dir := t.TempDir()
	bm, subjects := dataset(t, dir, 2)

	p := newPipeline(t, bm, filepath.Join(dir, "out"))
	p.Config.Decomposition.Mode = "separately"
	p.Sink = nil
	p.Config.Metrics.Textfile = ""

	summary, results, err := p.Run(context.Background(), subjects, subjects)
	require.NoError(t, err)
	assert.Equal(t, "separately", summary.Mode)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

func TestGroupFailsOnBadSubject(t *testing.T) {
	dir := t.TempDir()
	bm, subjects := dataset(t, dir, 2)
	subjects[1].Sessions = append(subjects[1].Sessions, filepath.Join(dir, "missing.npy"))

	p := newPipeline(t, bm, filepath.Join(dir, "out"))
	_, err := p.Group(context.Background(), subjects)
	assert.Error(t, err)
}

func TestGroupLogsOnce(t *testing.T) {
	dir := t.TempDir()
	bm, subjects := dataset(t, dir, 2)
	hook := logtest.NewGlobal()
	defer hook.Reset()

	for _, mode := range []string{"together", "separately"} {
		hook.Reset()
		p := newPipeline(t, bm, filepath.Join(dir, mode))
		p.Config.Decomposition.Mode = mode

		_, err := p.Group(context.Background(), subjects)
		require.NoError(t, err)

		finished := 0
		for _, e := range hook.AllEntries() {
			if e.Message == "Group decomposition finished" {
				finished++
			}
		}
		assert.Equal(t, 1, finished, mode)
	}
}

func TestStages(t *testing.T) {
	dir := t.TempDir()
	bm, subjects := dataset(t, dir, 2)
	p := newPipeline(t, bm, filepath.Join(dir, "out"))

	comps, err := p.Group(context.Background(), subjects)
	require.NoError(t, err)
	labeling, err := p.Parcellate(comps)
	require.NoError(t, err)
	assert.Equal(t, comps.Version(), labeling.ComponentsVersion())

	dr := p.DualRegression(context.Background(), comps, subjects)
	require.Len(t, dr, 2)
	for _, r := range dr {
		require.NoError(t, r.Err)
		assert.Equal(t, comps.Version(), r.Value.ComponentsVersion)
	}

	cs := p.Connectomes(context.Background(), labeling, subjects)
	require.Len(t, cs, 2)
	for _, r := range cs {
		assert.NoError(t, r.Err)
	}
}

func TestLoadSubject(t *testing.T) {
	dir := t.TempDir()
	bm, subjects := dataset(t, dir, 1)
	loader := &io.FileLoader{BrainMap: bm}

	data, err := pipeline.LoadSubject(context.Background(), loader, bm, subjects[0])
	require.NoError(t, err)
	assert.Equal(t, subjects[0].ID, data.ID)
	assert.Len(t, data.Sessions, 2)

	other := synth.BrainMap(10, 10)
	_, err = pipeline.LoadSubject(context.Background(), &io.FileLoader{BrainMap: other}, other, subjects[0])
	assert.ErrorIs(t, err, brain.ErrDimensionMismatch)

	_, err = pipeline.LoadSubject(context.Background(), loader, bm, brain.Subject{ID: "empty"})
	assert.Error(t, err)

	mapPath := filepath.Join(dir, "only.brainmap")
	require.NoError(t, io.WriteBrainMap(mapPath, bm))
	_, err = pipeline.LoadSubject(context.Background(), loader, bm, brain.Subject{ID: "s", Sessions: []string{mapPath}})
	assert.Error(t, err)
}

func TestResolveGroups(t *testing.T) {
	bm := synth.BrainMap(10, 18)

	groups, err := pipeline.ResolveGroups(bm, nil)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, bm.HemisphereIndices(brain.Left), groups[0].Indices)

	groups, err = pipeline.ResolveGroups(bm, []string{"right", "THALAMUS_LEFT, caudate_left"})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, bm.HemisphereIndices(brain.Right), groups[0].Indices)
	for _, g := range groups[1].Indices {
		s := bm.Structure(g)
		assert.True(t, s == brain.ThalamusLeft || s == brain.CaudateLeft)
	}
	assert.NotEmpty(t, groups[1].Indices)

	_, err = pipeline.ResolveGroups(bm, []string{"frontal"})
	assert.Error(t, err)
}

func stagingLeft(t *testing.T, dir string) []string {
	t.Helper()

	left, err := filepath.Glob(filepath.Join(dir, ".staging-*"))
	require.NoError(t, err)
	return left
}

func TestSinkWriteFeatures(t *testing.T) {
	out := t.TempDir()
	sink := &pipeline.Sink{Dir: out, Format: "npy"}
	f := pipeline.Features{
		DualRegression: &dualreg.Result{
			Maps:        mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6}),
			TimeCourses: []*mat.Dense{mat.NewDense(4, 2, nil), mat.NewDense(4, 2, nil)},
		},
		Connectome: mat.NewDense(2, 3, []float64{1, 0, 0, 0, 1, 0}),
	}

	require.NoError(t, sink.WriteFeatures(context.Background(), "s", f))
	dir := filepath.Join(out, "subjects", "s")
	for _, name := range []string{"dualreg_maps.npy", "timecourses_0.npy", "timecourses_1.npy", "connectome.npy"} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.Empty(t, stagingLeft(t, dir))

	c, err := io.ReadMatrix(filepath.Join(dir, "connectome.npy"))
	require.NoError(t, err)
	assert.True(t, mat.Equal(f.Connectome, c))
}

func TestSinkLeavesNothingOnFailure(t *testing.T) {
	f := pipeline.Features{Connectome: mat.NewDense(1, 2, []float64{1, 0.5})}

	t.Run("cancelled", func(t *testing.T) {
		out := t.TempDir()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := (&pipeline.Sink{Dir: out, Format: "npy"}).WriteFeatures(ctx, "s", f)
		assert.ErrorIs(t, err, context.Canceled)
		assert.NoDirExists(t, filepath.Join(out, "subjects", "s"))
	})

	t.Run("write error", func(t *testing.T) {
		out := t.TempDir()

		err := (&pipeline.Sink{Dir: out, Format: "xyz"}).WriteFeatures(context.Background(), "s", f)
		assert.Error(t, err)
		assert.NoDirExists(t, filepath.Join(out, "subjects", "s"))
	})

	t.Run("earlier outputs kept", func(t *testing.T) {
		out := t.TempDir()
		sink := &pipeline.Sink{Dir: out, Format: "npy"}
		require.NoError(t, sink.WriteConnectome(context.Background(), "s", f.Connectome))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		later := pipeline.Features{Connectome: mat.NewDense(1, 2, []float64{0, 0})}
		assert.ErrorIs(t, sink.WriteFeatures(ctx, "s", later), context.Canceled)

		dir := filepath.Join(out, "subjects", "s")
		c, err := io.ReadMatrix(filepath.Join(dir, "connectome.npy"))
		require.NoError(t, err)
		assert.True(t, mat.Equal(f.Connectome, c))
		assert.Empty(t, stagingLeft(t, dir))
	})
}
