package brain

import "fmt"

// Voxel is a volume coordinate of a grayordinate
type Voxel struct {
	X int
	Y int
	Z int
}

// BrainMap maps every grayordinate index to its brain structure. It is
// immutable once built and safe to share between goroutines.
type BrainMap struct {
	structures []Structure
	voxels     []Voxel
}

// NewBrainMap builds a BrainMap. voxels may be nil; when present it must be
// parallel to structures.
func NewBrainMap(structures []Structure, voxels []Voxel) (*BrainMap, error) {
	if voxels != nil && len(voxels) != len(structures) {
		return nil, fmt.Errorf("%w: %d voxel coordinates for %d structures", ErrDimensionMismatch, len(voxels), len(structures))
	}

	for i, s := range structures {
		if !knownStructures[s] {
			return nil, fmt.Errorf("grayordinate %d: unknown brain structure %q", i, s)
		}
	}

	bm := BrainMap{
		structures: append([]Structure(nil), structures...),
	}
	if voxels != nil {
		bm.voxels = append([]Voxel(nil), voxels...)
	}

	return &bm, nil
}

// Len returns the number of grayordinates
func (b *BrainMap) Len() int {
	return len(b.structures)
}

// Structure returns the structure of grayordinate i
func (b *BrainMap) Structure(i int) Structure {
	return b.structures[i]
}

// HasVoxels reports whether voxel coordinates are attached
func (b *BrainMap) HasVoxels() bool {
	return b.voxels != nil
}

// Voxel returns the volume coordinate of grayordinate i
func (b *BrainMap) Voxel(i int) Voxel {
	return b.voxels[i]
}

// Indices returns, in ascending order, every grayordinate whose structure satisfies pred
func (b *BrainMap) Indices(pred func(Structure) bool) []int {
	var indices []int
	for i, s := range b.structures {
		if pred(s) {
			indices = append(indices, i)
		}
	}

	return indices
}

// CortexIndices returns the cortical grayordinates
func (b *BrainMap) CortexIndices() []int {
	return b.Indices(Structure.IsCortex)
}

// SubcorticalIndices returns the subcortical grayordinates
func (b *BrainMap) SubcorticalIndices() []int {
	return b.Indices(Structure.IsSubcortical)
}

// HemisphereIndices returns the grayordinates of one hemisphere, cortex and subcortex alike
func (b *BrainMap) HemisphereIndices(h Hemisphere) []int {
	return b.Indices(func(s Structure) bool { return s.Hemisphere() == h })
}

// Equal reports whether both maps label the same grayordinates identically
func (b *BrainMap) Equal(other *BrainMap) bool {
	if b.Len() != other.Len() {
		return false
	}

	for i := range b.structures {
		if b.structures[i] != other.structures[i] {
			return false
		}
	}

	return true
}
