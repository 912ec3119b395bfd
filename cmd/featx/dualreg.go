package main

import (
	"fmt"

	"github.com/KyungWonPark/Connectivity/internal/batch"
	"github.com/spf13/cobra"
)

var (
	dualregComponents string
	dualregSubjects   []string
)

var dualregCmd = &cobra.Command{
	Use:   "dualreg",
	Short: "Dual regression of every subject against the group components",
	Long: `Dualreg regresses each session onto the group maps to get component time
courses, then regresses the session onto those time courses to get subject
maps. Session maps are averaged per subject.

Outputs go to <out>/subjects/<id>/.`,
	RunE: runDualreg,
}

func init() {
	rootCmd.AddCommand(dualregCmd)
	dualregCmd.Flags().StringVar(&dualregComponents, "components", "", "component maps (default <out>/components.<format>)")
	dualregCmd.Flags().StringSliceVar(&dualregSubjects, "subject", nil, "only these subjects")
}

func runDualreg(cmd *cobra.Command, args []string) error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	m, err := readManifest()
	if err != nil {
		return err
	}
	subjects, err := subjectsOf(m, dualregSubjects)
	if err != nil {
		return err
	}

	comps, err := loadComponents(dualregComponents, p.Sink.ComponentsPath())
	if err != nil {
		return err
	}

	results := p.DualRegression(cmd.Context(), comps, subjects)
	if err := flushMetrics(p); err != nil {
		return err
	}

	return report(cmd, results)
}

func report[T any](cmd *cobra.Command, results []batch.Result[T]) error {
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\tFAILED\t%v\n", r.Subject, r.Err)
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\tok\t%s\n", r.Subject, r.Duration)
	}

	if failed := batch.Failed(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d subjects failed", len(failed), len(results))
	}

	return nil
}
