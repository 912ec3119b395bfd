package group

import (
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
)

// Mode names how the group decomposition was run
type Mode string

// Modes
const (
	Together   Mode = "together"
	Separately Mode = "separately"
	Imported   Mode = "imported"
)

// Components is the immutable group artifact: one spatial map per
// component, identified by a version. Row order is fixed for the lifetime
// of a run and every downstream stage refers to components by row index.
type Components struct {
	version     uuid.UUID
	mode        Mode
	maps        *mat.Dense
	timeCourses *mat.Dense
}

// NewComponents wraps externally produced (component, grayordinate) maps,
// for instance maps read back from disk. maps is copied.
func NewComponents(maps mat.Matrix) (*Components, error) {
	k, g := maps.Dims()
	if k == 0 || g == 0 {
		return nil, fmt.Errorf("empty component maps: %d by %d", k, g)
	}

	return &Components{
		version: uuid.New(),
		mode:    Imported,
		maps:    mat.DenseCopyOf(maps),
	}, nil
}

func newComponents(mode Mode, maps *mat.Dense, timeCourses *mat.Dense) *Components {
	return &Components{
		version:     uuid.New(),
		mode:        mode,
		maps:        maps,
		timeCourses: timeCourses,
	}
}

// Version identifies this artifact
func (c *Components) Version() uuid.UUID {
	return c.version
}

// Mode returns how the components were produced
func (c *Components) Mode() Mode {
	return c.mode
}

// Len returns the number of components
func (c *Components) Len() int {
	k, _ := c.maps.Dims()
	return k
}

// Grayordinates returns the number of grayordinates per map
func (c *Components) Grayordinates() int {
	_, g := c.maps.Dims()
	return g
}

// At returns the loading of component k at grayordinate g
func (c *Components) At(k, g int) float64 {
	return c.maps.At(k, g)
}

// Matrix exposes the maps read-only. Callers must not type-assert and mutate it.
func (c *Components) Matrix() mat.Matrix {
	return c.maps
}

// Maps returns a copy of the (component, grayordinate) maps
func (c *Components) Maps() *mat.Dense {
	return mat.DenseCopyOf(c.maps)
}

// TimeCourses returns a copy of the (time, component) group time courses,
// or nil when the components were imported.
func (c *Components) TimeCourses() *mat.Dense {
	if c.timeCourses == nil {
		return nil
	}

	return mat.DenseCopyOf(c.timeCourses)
}
