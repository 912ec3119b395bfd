package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage: group, parcellate, dualreg, connectome",
	Long: `Run decomposes the group subjects, parcellates the components and then
streams every subject through dual regression and the connectome builder,
loading each subject once. A failing subject is reported in
<out>/summary.yaml and does not stop the others.`,
	RunE: runAll,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runAll(cmd *cobra.Command, args []string) error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	m, err := readManifest()
	if err != nil {
		return err
	}

	summary, results, err := p.Run(cmd.Context(), m.GroupSubjects(), m.Subjects)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "components %s (%d), %d parcels\n", summary.ComponentsVersion, summary.Components, summary.Parcels)
	return report(cmd, results)
}
