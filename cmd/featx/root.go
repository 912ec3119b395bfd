package main

import (
	"fmt"
	"os"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"github.com/KyungWonPark/Connectivity/internal/config"
	"github.com/KyungWonPark/Connectivity/internal/io"
	"github.com/KyungWonPark/Connectivity/internal/logging"
	"github.com/KyungWonPark/Connectivity/internal/metrics"
	"github.com/KyungWonPark/Connectivity/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	v = config.New()

	cfgFile      string
	manifestFile string
	cfg          *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "featx",
	Short: "Grayordinate functional connectivity feature extraction",
	Long: `featx derives group ICA components from pooled grayordinate time series,
parcellates the subcortex with them, and computes per-subject dual
regression maps and semi-dense connectomes.

Subjects are listed in a YAML manifest:

  group: [100307, 100408]
  subjects:
    - id: "100307"
      sessions: ["100307/rfMRI_REST*.npy"]`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().StringVarP(&manifestFile, "manifest", "m", "manifest.yaml", "subject manifest")
	rootCmd.PersistentFlags().StringP("out", "o", "", "output directory")
	rootCmd.PersistentFlags().String("brain-map", "", "brain map every image is aligned to")
	rootCmd.PersistentFlags().String("format", "", "output matrix format: npy, csv or bin")
	rootCmd.PersistentFlags().String("log-level", "", "log level")

	_ = v.BindPFlag("output.dir", rootCmd.PersistentFlags().Lookup("out"))
	_ = v.BindPFlag("input.brain_map", rootCmd.PersistentFlags().Lookup("brain-map"))
	_ = v.BindPFlag("output.format", rootCmd.PersistentFlags().Lookup("format"))
	_ = v.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(v, cfgFile)
	if err != nil {
		return err
	}

	return logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
}

// newPipeline reads the brain map and wires the loader, sink and metrics
func newPipeline() (*pipeline.Pipeline, error) {
	bm, err := io.ReadBrainMap(cfg.Input.BrainMap)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	return &pipeline.Pipeline{
		Config:   cfg,
		BrainMap: bm,
		Loader: &io.FileLoader{
			BrainMap:  bm,
			TimeStart: cfg.Input.TimeStart,
			TimeEnd:   cfg.Input.TimeEnd,
			Workers:   cfg.Runtime.Workers,
		},
		Sink:     &pipeline.Sink{Dir: cfg.Output.Dir, Format: cfg.Output.Format},
		Recorder: metrics.NewRecorder(),
	}, nil
}

func readManifest() (*io.Manifest, error) {
	return io.ReadManifest(manifestFile)
}

// flushMetrics writes the textfile when one is configured
func flushMetrics(p *pipeline.Pipeline) error {
	if cfg.Metrics.Textfile == "" {
		return nil
	}

	return p.Recorder.WriteTextfile(cfg.Metrics.Textfile)
}

func subjectsOf(m *io.Manifest, ids []string) ([]brain.Subject, error) {
	if len(ids) == 0 {
		return m.Subjects, nil
	}

	byID := make(map[string]brain.Subject, len(m.Subjects))
	for _, s := range m.Subjects {
		byID[s.ID] = s
	}

	subjects := make([]brain.Subject, 0, len(ids))
	for _, id := range ids {
		s, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("subject %s is not in the manifest", id)
		}
		subjects = append(subjects, s)
	}

	return subjects, nil
}
