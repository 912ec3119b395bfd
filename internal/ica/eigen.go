package ica

import (
	"context"
	"errors"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Eigensolver decomposes a symmetric matrix. Eigenvalues are returned in
// descending order with the matching eigenvectors as columns.
type Eigensolver interface {
	EigenSym(ctx context.Context, a mat.Symmetric) ([]float64, *mat.Dense, error)
}

// GonumSolver runs the decomposition in-process
type GonumSolver struct{}

// EigenSym implements Eigensolver
func (GonumSolver) EigenSym(ctx context.Context, a mat.Symmetric) ([]float64, *mat.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	var es mat.EigenSym
	if ok := es.Factorize(a, true); !ok {
		return nil, nil, errors.New("symmetric eigendecomposition did not converge")
	}

	var vecs mat.Dense
	es.VectorsTo(&vecs)

	return SortDescending(es.Values(nil), &vecs), &vecs, nil
}

// SortDescending reorders eigenvalues (and the eigenvector columns of vecs,
// in place) from largest to smallest, returning the sorted values.
func SortDescending(vals []float64, vecs *mat.Dense) []float64 {
	n := len(vals)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return vals[idx[i]] > vals[idx[j]]
	})

	rows, _ := vecs.Dims()
	src := mat.DenseCopyOf(vecs)
	sorted := make([]float64, n)
	col := make([]float64, rows)
	for dst, from := range idx {
		sorted[dst] = vals[from]
		mat.Col(col, from, src)
		vecs.SetCol(dst, col)
	}

	return sorted
}
