package ica

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Config controls FastICA
type Config struct {
	Seed      int64
	MaxIter   int
	Tolerance float64
}

// Result of a FastICA run
type Result struct {
	// Unmixing is the orthogonal (k, k) rotation with Sources = Unmixing * Whitened.
	Unmixing *mat.Dense
	// Sources holds the k independent spatial maps (k, grayordinate).
	Sources    *mat.Dense
	Iterations int
	Converged  bool
}

// FastICA runs symmetric FastICA on whitened signals z (k, samples). A run
// that exhausts MaxIter is returned with Converged unset, not as an error.
func FastICA(ctx context.Context, z *mat.Dense, cfg Config) (*Result, error) {
	k, n := z.Dims()
	if cfg.MaxIter < 1 {
		return nil, fmt.Errorf("FastICA: max iterations must be positive, got %d", cfg.MaxIter)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	w := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			w.Set(i, j, rng.NormFloat64())
		}
	}
	if err := decorrelate(w); err != nil {
		return nil, err
	}

	y := mat.NewDense(k, n, nil)
	gy := mat.NewDense(k, n, nil)
	next := mat.NewDense(k, k, nil)
	cross := mat.NewDense(k, k, nil)
	derivMean := make([]float64, k)

	res := Result{}
	for iter := 1; iter <= cfg.MaxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		y.Mul(w, z)
		for i := 0; i < k; i++ {
			src := y.RawRowView(i)
			dst := gy.RawRowView(i)
			var acc float64
			for j, v := range src {
				th := math.Tanh(v)
				dst[j] = th
				acc += 1 - th*th
			}
			derivMean[i] = acc / float64(n)
		}

		// W+ = E[g(Wz) z^T] - diag(E[g'(Wz)]) W
		next.Mul(gy, z.T())
		next.Scale(1/float64(n), next)
		for i := 0; i < k; i++ {
			for j := 0; j < k; j++ {
				next.Set(i, j, next.At(i, j)-derivMean[i]*w.At(i, j))
			}
		}
		if err := decorrelate(next); err != nil {
			return nil, err
		}

		// converged when every new row is parallel to its old row
		cross.Mul(next, w.T())
		var lim float64
		for i := 0; i < k; i++ {
			lim = math.Max(lim, math.Abs(math.Abs(cross.At(i, i))-1))
		}

		w.Copy(next)
		res.Iterations = iter
		if lim < cfg.Tolerance {
			res.Converged = true
			break
		}
	}

	sources := mat.NewDense(k, n, nil)
	sources.Mul(w, z)

	res.Unmixing = w
	res.Sources = sources

	return &res, nil
}

// decorrelate replaces w by (w w^T)^(-1/2) w
func decorrelate(w *mat.Dense) error {
	k, _ := w.Dims()

	var wwt mat.SymDense
	wwt.SymOuterK(1, w)

	var es mat.EigenSym
	if ok := es.Factorize(&wwt, true); !ok {
		return fmt.Errorf("FastICA: decorrelation failed")
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// E D^(-1/2) E^T
	scaled := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			if vals[j] <= 0 {
				return fmt.Errorf("FastICA: singular unmixing matrix")
			}
			scaled.Set(i, j, vecs.At(i, j)/math.Sqrt(vals[j]))
		}
	}

	var inv mat.Dense
	inv.Mul(scaled, vecs.T())

	var out mat.Dense
	out.Mul(&inv, w)
	w.Copy(&out)

	return nil
}
