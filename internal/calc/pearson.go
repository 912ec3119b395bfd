package calc

import (
	"fmt"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"gonum.org/v1/gonum/mat"
)

// Pearson correlates every column of a with every column of b. Both are
// (time, series) matrices over the same time points; the result is
// (a series, b series), clipped to [-1, 1].
func (p *Pool) Pearson(a *mat.Dense, b *mat.Dense) (*mat.Dense, error) {
	aRows, aCols := a.Dims()
	bRows, bCols := b.Dims()

	if aRows != bRows {
		return nil, fmt.Errorf("%w: Pearson: %d time points against %d", brain.ErrDimensionMismatch, aRows, bRows)
	}

	za := mat.NewDense(aRows, aCols, nil)
	if err := p.ZScoring(a, za); err != nil {
		return nil, fmt.Errorf("seed: %w", err)
	}

	zb := mat.NewDense(bRows, bCols, nil)
	if err := p.ZScoring(b, zb); err != nil {
		return nil, fmt.Errorf("target: %w", err)
	}

	pearsonMat := mat.NewDense(aCols, bCols, nil)
	pearsonMat.Mul(za.T(), zb)
	pearsonMat.Scale(1/float64(aRows), pearsonMat)

	p.Clip(pearsonMat, -1, 1)

	return pearsonMat, nil
}
