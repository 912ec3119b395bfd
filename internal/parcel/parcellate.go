// Package parcel turns the soft group decomposition into hard subcortical
// parcels: each subcortical grayordinate joins the component with the
// largest absolute loading.
package parcel

import (
	"math"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"github.com/KyungWonPark/Connectivity/internal/calc"
	"github.com/KyungWonPark/Connectivity/internal/group"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Config controls parcellation. The zero value is plain argmax.
type Config struct {
	// Threshold discards loadings with magnitude at or below it. A
	// subcortical grayordinate left without loadings stays Unlabeled.
	Threshold float64
	// Compact renumbers the parcels that received members to 1..n, in
	// component order.
	Compact bool
	Workers int
}

// Parcellate labels every subcortical grayordinate with 1 + the index of
// its winning component; ties go to the lowest component index. Cortical
// grayordinates are always Unlabeled.
func Parcellate(comps *group.Components, bm *brain.BrainMap, cfg Config) (*Labeling, error) {
	k, n := comps.Len(), comps.Grayordinates()
	if n != bm.Len() {
		return nil, brain.MismatchError("group components", n, bm.Len())
	}

	loadings := comps.Matrix()
	if cfg.Threshold > 0 {
		thredMat := mat.NewDense(k, n, nil)
		if err := calc.NewPool(cfg.Workers).Threshold(comps.Maps(), thredMat, cfg.Threshold, 0); err != nil {
			return nil, err
		}
		loadings = thredMat
	}

	labels := make([]int, n)
	unassigned := 0
	for _, g := range bm.SubcorticalIndices() {
		winner := -1
		best := 0.0
		for c := 0; c < k; c++ {
			v := math.Abs(loadings.At(c, g))
			if winner < 0 || v > best {
				winner = c
				best = v
			}
		}

		if cfg.Threshold > 0 && best == 0 {
			unassigned++
			continue
		}
		labels[g] = winner + 1
	}

	parcels := k
	if cfg.Compact {
		parcels = compact(labels, k)
	}

	l := Labeling{
		componentsVersion: comps.Version(),
		labels:            labels,
		parcels:           parcels,
	}

	log.WithFields(log.Fields{
		"parcels":    parcels,
		"unassigned": unassigned,
		"version":    comps.Version(),
	}).Info("Subcortical parcellation finished")

	if empty := l.Empty(); len(empty) > 0 {
		log.WithField("parcels", empty).Warn("Some components won no subcortical grayordinate; connectomes will fail with an empty parcel unless parcellation.compact is set")
	}

	return &l, nil
}

// compact renumbers used ids to 1..n in place and returns n
func compact(labels []int, k int) int {
	used := make([]bool, k+1)
	for _, l := range labels {
		used[l] = true
	}

	renum := make([]int, k+1)
	next := 0
	for id := 1; id <= k; id++ {
		if used[id] {
			next++
			renum[id] = next
		}
	}

	for g, l := range labels {
		labels[g] = renum[l]
	}
	if next == 0 {
		return 1
	}

	return next
}
