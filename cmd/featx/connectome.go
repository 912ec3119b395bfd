package main

import (
	"errors"

	"github.com/KyungWonPark/Connectivity/internal/io"
	"github.com/KyungWonPark/Connectivity/internal/parcel"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	connectomeLabels   string
	connectomeSubjects []string
)

var connectomeCmd = &cobra.Command{
	Use:   "connectome",
	Short: "Correlate subcortical parcels with every grayordinate",
	Long: `Connectome averages each parcel's time series, correlates the averages
with every grayordinate per session and averages the sessions, giving one
(parcel, grayordinate) matrix per subject.

Outputs go to <out>/subjects/<id>/connectome.<format>.`,
	RunE: runConnectome,
}

func init() {
	rootCmd.AddCommand(connectomeCmd)
	connectomeCmd.Flags().StringVar(&connectomeLabels, "labels", "", "parcel labels (default <out>/labels.<format>)")
	connectomeCmd.Flags().StringSliceVar(&connectomeSubjects, "subject", nil, "only these subjects")
}

func loadLabeling(path string) (*parcel.Labeling, error) {
	labels, err := io.ReadLabels(path)
	if err != nil {
		return nil, err
	}

	parcels := 0
	for _, l := range labels {
		parcels = max(parcels, l)
	}
	if parcels == 0 {
		return nil, errors.New("labels hold no parcel")
	}

	return parcel.NewLabeling(labels, parcels, uuid.Nil)
}

func runConnectome(cmd *cobra.Command, args []string) error {
	p, err := newPipeline()
	if err != nil {
		return err
	}
	m, err := readManifest()
	if err != nil {
		return err
	}
	subjects, err := subjectsOf(m, connectomeSubjects)
	if err != nil {
		return err
	}

	path := connectomeLabels
	if path == "" {
		path = p.Sink.LabelsPath()
	}
	labeling, err := loadLabeling(path)
	if err != nil {
		return err
	}

	results := p.Connectomes(cmd.Context(), labeling, subjects)
	if err := flushMetrics(p); err != nil {
		return err
	}

	return report(cmd, results)
}
