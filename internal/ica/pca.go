package ica

import (
	"context"
	"fmt"
	"math"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"gonum.org/v1/gonum/mat"
)

// rankTolerance is the smallest retained eigenvalue relative to the largest
const rankTolerance = 1e-10

// Reduction is a rank-k PCA approximation x ≈ Basis * Whitened
type Reduction struct {
	// Whitened holds k spatial signals (k, grayordinate), each with unit
	// mean square over grayordinates and mutually orthogonal.
	Whitened *mat.Dense
	// Basis holds the matching temporal weights (time, k).
	Basis *mat.Dense
	// Values holds the k largest singular values of x.
	Values []float64
}

// PCA reduces a (time, grayordinate) matrix to its k leading spatial
// components. The Gram matrix along the shorter axis is decomposed.
func PCA(ctx context.Context, x *mat.Dense, k int, solver Eigensolver) (*Reduction, error) {
	t, g := x.Dims()

	if k < 1 {
		return nil, fmt.Errorf("PCA: component count must be positive, got %d", k)
	}
	if k > t || k > g {
		return nil, fmt.Errorf("%w: %d components requested from %d time points and %d grayordinates", brain.ErrRankDeficient, k, t, g)
	}

	var gram mat.SymDense
	if t <= g {
		gram.SymOuterK(1, x)
	} else {
		gram.SymOuterK(1, x.T())
	}

	vals, vecs, err := solver.EigenSym(ctx, &gram)
	if err != nil {
		return nil, fmt.Errorf("PCA: %w", err)
	}

	if vals[0] <= 0 || vals[k-1] <= rankTolerance*vals[0] {
		return nil, fmt.Errorf("%w: only %d of %d requested components carry variance", brain.ErrRankDeficient, rank(vals), k)
	}

	sigma := make([]float64, k)
	for i := 0; i < k; i++ {
		sigma[i] = math.Sqrt(vals[i])
	}

	scale := math.Sqrt(float64(g))
	whitened := mat.NewDense(k, g, nil)
	basis := mat.NewDense(t, k, nil)

	lead := vecs.Slice(0, vecs.RawMatrix().Rows, 0, k)
	if t <= g {
		// lead is U_k (t, k); V_k^T = Sigma^-1 U_k^T x
		whitened.Mul(lead.T(), x)
		for i := 0; i < k; i++ {
			row := whitened.RawRowView(i)
			for j := range row {
				row[j] *= scale / sigma[i]
			}
		}
		basis.Copy(lead)
	} else {
		// lead is V_k (g, k); U_k = x V_k Sigma^-1
		whitened.Copy(lead.T())
		whitened.Scale(scale, whitened)
		basis.Mul(x, lead)
		for j := 0; j < k; j++ {
			for i := 0; i < t; i++ {
				basis.Set(i, j, basis.At(i, j)/sigma[j])
			}
		}
	}

	// x ≈ U_k Sigma_k V_k^T = (U_k Sigma_k / sqrt(g)) Whitened
	for j := 0; j < k; j++ {
		for i := 0; i < t; i++ {
			basis.Set(i, j, basis.At(i, j)*sigma[j]/scale)
		}
	}

	return &Reduction{
		Whitened: whitened,
		Basis:    basis,
		Values:   sigma,
	}, nil
}

func rank(vals []float64) int {
	r := 0
	for _, v := range vals {
		if v > rankTolerance*vals[0] && v > 0 {
			r++
		}
	}

	return r
}
