package group

import (
	"github.com/KyungWonPark/Connectivity/internal/ica"
)

// Config controls the group decomposition. Components is shared by both
// modes so their outputs stay comparable.
type Config struct {
	Components int
	Seed       int64
	MaxIter    int
	Tolerance  float64
	Workers    int
	Solver     ica.Eigensolver
}

func (c Config) solver() ica.Eigensolver {
	if c.Solver == nil {
		return ica.GonumSolver{}
	}

	return c.Solver
}

func (c Config) ica() ica.Config {
	return ica.Config{
		Seed:      c.Seed,
		MaxIter:   c.MaxIter,
		Tolerance: c.Tolerance,
	}
}
