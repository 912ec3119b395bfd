package main

import (
	"fmt"

	"github.com/KyungWonPark/Connectivity/internal/group"
	"github.com/KyungWonPark/Connectivity/internal/io"
	"github.com/spf13/cobra"
)

var parcellateComponents string

var parcellateCmd = &cobra.Command{
	Use:   "parcellate",
	Short: "Label subcortical grayordinates by their strongest component",
	Long: `Parcellate assigns every subcortical grayordinate the id 1+k of the
component k with the largest absolute loading. Cortex stays 0.

A component that loads mostly on cortex may win no subcortical
grayordinate, leaving its parcel empty; connectome then fails for every
subject. Set parcellation.compact to renumber the non-empty parcels to
1..K' instead.

The labels are written to <out>/labels.<format>.`,
	RunE: runParcellate,
}

func init() {
	rootCmd.AddCommand(parcellateCmd)
	parcellateCmd.Flags().StringVar(&parcellateComponents, "components", "", "component maps (default <out>/components.<format>)")
}

func loadComponents(path string, fallback string) (*group.Components, error) {
	if path == "" {
		path = fallback
	}

	maps, err := io.ReadMatrix(path)
	if err != nil {
		return nil, err
	}

	return group.NewComponents(maps)
}

func runParcellate(cmd *cobra.Command, args []string) error {
	p, err := newPipeline()
	if err != nil {
		return err
	}

	comps, err := loadComponents(parcellateComponents, p.Sink.ComponentsPath())
	if err != nil {
		return err
	}

	labeling, err := p.Parcellate(comps)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d parcels, sizes %v\n", p.Sink.LabelsPath(), labeling.Parcels(), labeling.Counts())
	return flushMetrics(p)
}
