package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"github.com/KyungWonPark/Connectivity/internal/io"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return out.String(), err
}

func TestSynthThenRun(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	outDir := filepath.Join(dir, "out")

	stdout, err := execute(t, "synth", data, "--subjects", "3", "--components", "4")
	require.NoError(t, err)
	assert.Contains(t, stdout, "wrote 3 subjects")

	cfgPath := filepath.Join(dir, "featx.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
decomposition:
  components: 4
parcellation:
  compact: true
logging:
  level: warn
`), 0o644))

	stdout, err = execute(t, "run",
		"-c", cfgPath,
		"-m", filepath.Join(data, "manifest.yaml"),
		"--brain-map", filepath.Join(data, "brain.brainmap"),
		"-o", outDir)
	require.NoError(t, err, stdout)
	assert.Contains(t, stdout, "sub-01\tok")

	labels, err := io.ReadLabels(filepath.Join(outDir, "labels.npy"))
	require.NoError(t, err)
	assert.Len(t, labels, 50)
	assert.FileExists(t, filepath.Join(outDir, "subjects", "sub-03", "connectome.npy"))
}

func TestLoadLabeling(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.csv")
	require.NoError(t, io.WriteLabels(path, []int{0, 2, 1, 2}))

	l, err := loadLabeling(path)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Parcels())
	assert.Equal(t, []int{1, 2}, l.Counts())

	empty := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, io.WriteLabels(empty, []int{0, 0}))
	_, err = loadLabeling(empty)
	assert.Error(t, err)
}

func TestSubjectsOf(t *testing.T) {
	m := &io.Manifest{}
	m.Subjects = append(m.Subjects, subject("a"), subject("b"))

	all, err := subjectsOf(m, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	some, err := subjectsOf(m, []string{"b"})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "b", some[0].ID)

	_, err = subjectsOf(m, []string{"c"})
	assert.Error(t, err)
}

func subject(id string) brain.Subject {
	return brain.Subject{ID: id, Sessions: []string{id + ".npy"}}
}
