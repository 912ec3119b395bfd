// Package pipeline runs the feature extraction stages in order: the group
// decomposition over the pooled subjects, the subcortical parcellation of
// its components, then dual regression and the connectome of every subject.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KyungWonPark/Connectivity/internal/batch"
	"github.com/KyungWonPark/Connectivity/internal/brain"
	"github.com/KyungWonPark/Connectivity/internal/config"
	"github.com/KyungWonPark/Connectivity/internal/connectome"
	"github.com/KyungWonPark/Connectivity/internal/dualreg"
	"github.com/KyungWonPark/Connectivity/internal/group"
	"github.com/KyungWonPark/Connectivity/internal/ica"
	"github.com/KyungWonPark/Connectivity/internal/magma"
	"github.com/KyungWonPark/Connectivity/internal/metrics"
	"github.com/KyungWonPark/Connectivity/internal/parcel"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Pipeline holds what every stage shares
type Pipeline struct {
	Config   *config.Config
	BrainMap *brain.BrainMap
	Loader   brain.Loader
	// Sink receives stage outputs; nil keeps them in memory only.
	Sink     *Sink
	Recorder *metrics.Recorder
}

// Features is what one subject produces
type Features struct {
	DualRegression *dualreg.Result
	Connectome     *mat.Dense
}

// Summary describes a finished run
type Summary struct {
	ComponentsVersion string           `yaml:"components_version"`
	Mode              string           `yaml:"mode"`
	Components        int              `yaml:"components"`
	Parcels           int              `yaml:"parcels"`
	Subjects          []SubjectOutcome `yaml:"subjects"`
}

// SubjectOutcome reports one subject
type SubjectOutcome struct {
	ID       string        `yaml:"id"`
	Duration time.Duration `yaml:"duration"`
	Error    string        `yaml:"error,omitempty"`
}

func (p *Pipeline) observer() batch.Observer {
	if p.Recorder == nil {
		return nil
	}

	return p.Recorder
}

func (p *Pipeline) observe(stage string, start time.Time, err error) {
	if p.Recorder != nil {
		p.Recorder.Observe(stage, time.Since(start), err)
	}
}

// Solver returns the eigensolver selected by the configuration
func (p *Pipeline) Solver() ica.Eigensolver {
	d := p.Config.Decomposition
	if d.Eigensolver == "magma" {
		return magma.Solver{Path: d.MagmaPath, Tolerance: d.MagmaTolerance}
	}

	return ica.GonumSolver{}
}

func (p *Pipeline) groupConfig() group.Config {
	d := p.Config.Decomposition
	return group.Config{
		Components: d.Components,
		Seed:       d.Seed,
		MaxIter:    d.MaxIter,
		Tolerance:  d.Tolerance,
		Workers:    p.Config.Runtime.Workers,
		Solver:     p.Solver(),
	}
}

func (p *Pipeline) dualregConfig() dualreg.Config {
	return dualreg.Config{
		Normalize:            p.Config.DualRegression.Normalize,
		NormalizeTimeCourses: p.Config.DualRegression.NormalizeTimeCourses,
		SessionWorkers:       p.Config.Runtime.SessionWorkers,
		Workers:              p.Config.Runtime.Workers,
	}
}

func (p *Pipeline) connectomeConfig() connectome.Config {
	return connectome.Config{
		SessionWorkers: p.Config.Runtime.SessionWorkers,
		SubjectWorkers: p.Config.Runtime.SubjectWorkers,
		Workers:        p.Config.Runtime.Workers,
		Observer:       p.observer(),
	}
}

func (p *Pipeline) load(ctx context.Context, s brain.Subject) (brain.SubjectData, error) {
	return LoadSubject(ctx, p.Loader, p.BrainMap, s)
}

// Load loads subjects in parallel. Any failure fails the whole call.
func (p *Pipeline) Load(ctx context.Context, subjects []brain.Subject) ([]brain.SubjectData, error) {
	results := batch.Run(ctx, subjects,
		func(s brain.Subject) string { return s.ID },
		p.load,
		batch.Options{Stage: "load", Workers: p.Config.Runtime.SubjectWorkers, Observer: p.observer()})

	data := make([]brain.SubjectData, 0, len(results))
	var errs []error
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("subject %s: %w", r.Subject, r.Err))
			continue
		}
		data = append(data, r.Value)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return data, nil
}

// Group loads the pooled subjects and runs the group decomposition. Every
// later stage waits on its result.
func (p *Pipeline) Group(ctx context.Context, subjects []brain.Subject) (comps *group.Components, err error) {
	start := time.Now()
	defer func() { p.observe("group", start, err) }()

	data, err := p.Load(ctx, subjects)
	if err != nil {
		return nil, fmt.Errorf("group: %w", err)
	}

	cfg := p.groupConfig()
	log.WithFields(log.Fields{
		"subjects":   len(data),
		"components": cfg.Components,
		"mode":       p.Config.Decomposition.Mode,
	}).Info("Group decomposition started")

	switch group.Mode(p.Config.Decomposition.Mode) {
	case group.Separately:
		var groups []group.Group
		groups, err = ResolveGroups(p.BrainMap, p.Config.Decomposition.Groups)
		if err != nil {
			return nil, err
		}
		comps, err = group.RunSeparately(ctx, p.BrainMap, data, groups, cfg)
	default:
		comps, err = group.RunTogether(ctx, p.BrainMap, data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("group: %w", err)
	}

	if p.Recorder != nil {
		p.Recorder.SetComponents(comps.Len())
	}
	if p.Sink != nil {
		if err := p.Sink.WriteComponents(comps); err != nil {
			return nil, err
		}
	}

	return comps, nil
}

// Parcellate derives the subcortical labels from comps
func (p *Pipeline) Parcellate(comps *group.Components) (labeling *parcel.Labeling, err error) {
	start := time.Now()
	defer func() { p.observe("parcellate", start, err) }()

	labeling, err = parcel.Parcellate(comps, p.BrainMap, parcel.Config{
		Threshold: p.Config.Parcellation.Threshold,
		Compact:   p.Config.Parcellation.Compact,
		Workers:   p.Config.Runtime.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("parcellate: %w", err)
	}

	if p.Recorder != nil {
		p.Recorder.SetParcels(labeling.Parcels())
	}

	if p.Sink != nil {
		if err := p.Sink.WriteLabeling(labeling); err != nil {
			return nil, err
		}
	}

	return labeling, nil
}

// DualRegression streams subjects through dual regression
func (p *Pipeline) DualRegression(ctx context.Context, comps *group.Components, subjects []brain.Subject) []batch.Result[*dualreg.Result] {
	cfg := p.dualregConfig()
	return batch.Stream(ctx, subjects,
		func(s brain.Subject) string { return s.ID },
		p.load,
		func(ctx context.Context, data brain.SubjectData) (*dualreg.Result, error) {
			res, err := dualreg.Run(ctx, comps, data.Sessions, cfg)
			if err != nil {
				return nil, err
			}
			if p.Sink != nil {
				if err := p.Sink.WriteDualRegression(ctx, data.ID, res); err != nil {
					return nil, err
				}
			}
			return res, nil
		},
		p.Config.Runtime.Prefetch,
		batch.Options{Stage: "dualreg", Workers: p.Config.Runtime.SubjectWorkers, Observer: p.observer()})
}

// Connectomes streams subjects through the connectome builder
func (p *Pipeline) Connectomes(ctx context.Context, labeling *parcel.Labeling, subjects []brain.Subject) []batch.Result[*mat.Dense] {
	cfg := p.connectomeConfig()
	return batch.Stream(ctx, subjects,
		func(s brain.Subject) string { return s.ID },
		p.load,
		func(ctx context.Context, data brain.SubjectData) (*mat.Dense, error) {
			c, err := connectome.Build(ctx, labeling, p.BrainMap, data.Sessions, cfg)
			if err != nil {
				return nil, err
			}
			if p.Sink != nil {
				if err := p.Sink.WriteConnectome(ctx, data.ID, c); err != nil {
					return nil, err
				}
			}
			return c, nil
		},
		p.Config.Runtime.Prefetch,
		batch.Options{Stage: "connectome", Workers: p.Config.Runtime.SubjectWorkers, Observer: p.observer()})
}

// Run executes every stage. groupSubjects feed the group decomposition;
// every subject in subjects then gets its dual regression maps and
// connectome, each subject loaded once. Subject failures are reported in
// the summary and do not fail the run; a group or parcellation failure
// does.
func (p *Pipeline) Run(ctx context.Context, groupSubjects, subjects []brain.Subject) (*Summary, []batch.Result[Features], error) {
	comps, err := p.Group(ctx, groupSubjects)
	if err != nil {
		return nil, nil, err
	}

	labeling, err := p.Parcellate(comps)
	if err != nil {
		return nil, nil, err
	}

	drCfg := p.dualregConfig()
	cCfg := p.connectomeConfig()
	results := batch.Stream(ctx, subjects,
		func(s brain.Subject) string { return s.ID },
		p.load,
		func(ctx context.Context, data brain.SubjectData) (Features, error) {
			var f Features
			var err error

			f.DualRegression, err = dualreg.Run(ctx, comps, data.Sessions, drCfg)
			if err != nil {
				return f, fmt.Errorf("dual regression: %w", err)
			}
			f.Connectome, err = connectome.Build(ctx, labeling, p.BrainMap, data.Sessions, cCfg)
			if err != nil {
				return f, fmt.Errorf("connectome: %w", err)
			}

			if p.Sink != nil {
				if err := p.Sink.WriteFeatures(ctx, data.ID, f); err != nil {
					return f, err
				}
			}
			return f, nil
		},
		p.Config.Runtime.Prefetch,
		batch.Options{Stage: "subject", Workers: p.Config.Runtime.SubjectWorkers, Observer: p.observer()})

	summary := &Summary{
		ComponentsVersion: comps.Version().String(),
		Mode:              string(comps.Mode()),
		Components:        comps.Len(),
		Parcels:           labeling.Parcels(),
	}
	for _, r := range results {
		o := SubjectOutcome{ID: r.Subject, Duration: r.Duration}
		if r.Err != nil {
			o.Error = r.Err.Error()
		}
		summary.Subjects = append(summary.Subjects, o)
	}

	if failed := batch.Failed(results); len(failed) > 0 {
		log.WithField("failed", len(failed)).Warn("Some subjects failed")
	}

	if p.Sink != nil {
		if err := p.Sink.WriteSummary(summary); err != nil {
			return summary, results, err
		}
	}
	if p.Recorder != nil && p.Config.Metrics.Textfile != "" {
		if err := p.Recorder.WriteTextfile(p.Config.Metrics.Textfile); err != nil {
			return summary, results, err
		}
	}

	return summary, results, nil
}
