// Package synth generates small synthetic grayordinate datasets with a
// known component structure: a brain map, group component maps whose
// subcortical argmax is prescribed, and sessions mixed from those maps.
package synth

import (
	"fmt"
	"math/rand"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"gonum.org/v1/gonum/mat"
)

// DominantLoading is the loading of the winning component of a subcortical grayordinate
const DominantLoading = 3.0

var subcorticalCycle = []brain.Structure{
	brain.ThalamusLeft, brain.ThalamusRight,
	brain.CaudateLeft, brain.CaudateRight,
	brain.PutamenLeft, brain.PutamenRight,
	brain.HippocampusLeft, brain.HippocampusRight,
	brain.BrainStem,
}

// BrainMap lays out cortical grayordinates first (left half, then right),
// followed by subcortical grayordinates cycling through a few structures.
// Voxel coordinates are attached on a small grid.
func BrainMap(cortical, subcortical int) *brain.BrainMap {
	n := cortical + subcortical
	structures := make([]brain.Structure, 0, n)
	voxels := make([]brain.Voxel, 0, n)

	for i := 0; i < cortical; i++ {
		if i < (cortical+1)/2 {
			structures = append(structures, brain.CortexLeft)
		} else {
			structures = append(structures, brain.CortexRight)
		}
	}
	for i := 0; i < subcortical; i++ {
		structures = append(structures, subcorticalCycle[i%len(subcorticalCycle)])
	}
	for i := 0; i < n; i++ {
		voxels = append(voxels, brain.Voxel{X: i % 8, Y: (i / 8) % 8, Z: i / 64})
	}

	bm, err := brain.NewBrainMap(structures, voxels)
	if err != nil {
		panic(fmt.Sprintf("synth: %v", err))
	}

	return bm
}

// Dominant returns the 0-based component prescribed to win grayordinate g
// among k components. It is only meaningful for subcortical grayordinates.
func Dominant(g int, k int) int {
	return g % k
}

// Components returns (k, grayordinate) maps. Every subcortical grayordinate
// loads DominantLoading on component Dominant(g, k)
// and at most 0.2 in magnitude elsewhere. Cortical grayordinates load
// equally (magnitude 1) on every component.
func Components(rng *rand.Rand, bm *brain.BrainMap, k int) *mat.Dense {
	n := bm.Len()
	maps := mat.NewDense(k, n, nil)

	for g := 0; g < n; g++ {
		if bm.Structure(g).IsCortex() {
			for c := 0; c < k; c++ {
				sign := 1.0
				if (c+g)%2 == 1 {
					sign = -1
				}
				maps.Set(c, g, sign)
			}
			continue
		}

		for c := 0; c < k; c++ {
			maps.Set(c, g, 0.4*rng.Float64()-0.2)
		}
		maps.Set(Dominant(g, k), g, DominantLoading)
	}

	return maps
}

// Session mixes maps with random component time courses:
// x = A * maps + noise, shaped (timePoints, grayordinate).
func Session(rng *rand.Rand, maps *mat.Dense, timePoints int, noise float64) *mat.Dense {
	k, n := maps.Dims()

	courses := mat.NewDense(timePoints, k, nil)
	for t := 0; t < timePoints; t++ {
		for c := 0; c < k; c++ {
			courses.Set(t, c, rng.NormFloat64())
		}
	}

	x := mat.NewDense(timePoints, n, nil)
	x.Mul(courses, maps)
	for t := 0; t < timePoints; t++ {
		row := x.RawRowView(t)
		for g := range row {
			row[g] += noise * rng.NormFloat64()
		}
	}

	return x
}

// Subject builds a subject with the given number of sessions
func Subject(rng *rand.Rand, id string, maps *mat.Dense, sessions int, timePoints int, noise float64) brain.SubjectData {
	data := brain.SubjectData{ID: id}
	for i := 0; i < sessions; i++ {
		data.Sessions = append(data.Sessions, Session(rng, maps, timePoints, noise))
	}

	return data
}
