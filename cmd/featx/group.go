package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Run the group ICA over the manifest's group subjects",
	Long: `Group z-scores every session of the group subjects, pools them and
decomposes the result into decomposition.components spatial maps, either
over all grayordinates at once (mode: together) or per hemisphere with the
hemispheres matched afterwards (mode: separately).

The maps are written to <out>/components.<format>.`,
	RunE: runGroup,
}

func init() {
	rootCmd.AddCommand(groupCmd)
}

func runGroup(cmd *cobra.Command, args []string) error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	m, err := readManifest()
	if err != nil {
		return err
	}

	comps, err := p.Group(cmd.Context(), m.GroupSubjects())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d components (%s)\n", p.Sink.ComponentsPath(), comps.Len(), comps.Version())
	return flushMetrics(p)
}
