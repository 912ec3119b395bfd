package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/KyungWonPark/Connectivity/internal/dualreg"
	"github.com/KyungWonPark/Connectivity/internal/group"
	"github.com/KyungWonPark/Connectivity/internal/io"
	"github.com/KyungWonPark/Connectivity/internal/parcel"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Sink writes stage outputs under Dir:
//
//	components.<fmt>                  (component, grayordinate)
//	labels.<fmt>                      1 x grayordinate parcel ids
//	subjects/<id>/dualreg_maps.<fmt>  (component, grayordinate)
//	subjects/<id>/timecourses_<s>.<fmt>
//	subjects/<id>/connectome.<fmt>    (parcel, grayordinate)
//	summary.yaml
type Sink struct {
	Dir    string
	Format string
}

func (s *Sink) path(elem ...string) (string, error) {
	p := filepath.Join(append([]string{s.Dir}, elem...)...)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	return p, nil
}

func (s *Sink) file(name string) string {
	return name + "." + s.Format
}

// ComponentsPath is where WriteComponents puts the maps
func (s *Sink) ComponentsPath() string {
	return filepath.Join(s.Dir, s.file("components"))
}

// LabelsPath is where WriteLabeling puts the labels
func (s *Sink) LabelsPath() string {
	return filepath.Join(s.Dir, s.file("labels"))
}

// WriteComponents writes the group maps
func (s *Sink) WriteComponents(comps *group.Components) error {
	p, err := s.path(s.file("components"))
	if err != nil {
		return err
	}

	return io.WriteMatrix(p, comps.Matrix())
}

// WriteLabeling writes the parcel labels
func (s *Sink) WriteLabeling(labeling *parcel.Labeling) error {
	p, err := s.path(s.file("labels"))
	if err != nil {
		return err
	}

	return io.WriteLabels(p, labeling.Labels())
}

// WriteDualRegression writes a subject's maps and per-session time courses
func (s *Sink) WriteDualRegression(ctx context.Context, subject string, res *dualreg.Result) error {
	return s.WriteFeatures(ctx, subject, Features{DualRegression: res})
}

// WriteConnectome writes a subject's semi-dense connectome
func (s *Sink) WriteConnectome(ctx context.Context, subject string, connectome *mat.Dense) error {
	return s.WriteFeatures(ctx, subject, Features{Connectome: connectome})
}

// WriteFeatures writes whatever features f holds for one subject. Files are
// staged and only moved under subjects/<id>/ once all of them are written
// and ctx is still live, so a failed or cancelled subject leaves nothing
// behind.
func (s *Sink) WriteFeatures(ctx context.Context, subject string, f Features) error {
	st, err := s.stage(subject)
	if err != nil {
		return err
	}

	if err := st.features(f); err != nil {
		st.abort()
		return err
	}
	if err := ctx.Err(); err != nil {
		st.abort()
		return err
	}

	return st.commit()
}

type staging struct {
	dir    string
	target string
	format string
	names  []string
	// created is set when target did not exist before staging
	created bool
}

func (s *Sink) stage(subject string) (*staging, error) {
	target := filepath.Join(s.Dir, "subjects", subject)
	_, statErr := os.Stat(target)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	dir, err := os.MkdirTemp(target, ".staging-")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	return &staging{dir: dir, target: target, format: s.Format, created: os.IsNotExist(statErr)}, nil
}

func (st *staging) write(name string, m *mat.Dense) error {
	file := name + "." + st.format
	if err := io.WriteMatrix(filepath.Join(st.dir, file), m); err != nil {
		return err
	}
	st.names = append(st.names, file)

	return nil
}

func (st *staging) features(f Features) error {
	if f.DualRegression != nil {
		if err := st.write("dualreg_maps", f.DualRegression.Maps); err != nil {
			return err
		}
		for i, courses := range f.DualRegression.TimeCourses {
			if err := st.write(fmt.Sprintf("timecourses_%d", i), courses); err != nil {
				return err
			}
		}
	}
	if f.Connectome != nil {
		if err := st.write("connectome", f.Connectome); err != nil {
			return err
		}
	}

	return nil
}

func (st *staging) commit() error {
	defer os.RemoveAll(st.dir)

	for i, name := range st.names {
		if err := os.Rename(filepath.Join(st.dir, name), filepath.Join(st.target, name)); err != nil {
			for _, done := range st.names[:i] {
				os.Remove(filepath.Join(st.target, done))
			}
			st.removeTarget()
			return fmt.Errorf("failed to commit %s: %w", name, err)
		}
	}

	return nil
}

func (st *staging) abort() {
	os.RemoveAll(st.dir)
	st.removeTarget()
}

// removeTarget drops the subject directory only if staging created it and
// it is empty again
func (st *staging) removeTarget() {
	if st.created {
		os.Remove(st.target)
	}
}

// WriteSummary writes the run summary as YAML
func (s *Sink) WriteSummary(summary *Summary) error {
	p, err := s.path("summary.yaml")
	if err != nil {
		return err
	}

	raw, err := yaml.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}

	return os.WriteFile(p, raw, 0o644)
}
