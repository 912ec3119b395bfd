// Package magma hands symmetric eigenproblems to an external MAGMA solver
// binary. The matrix and the eigenvalue buffer are exchanged through System
// V shared memory; the binary is invoked as
//
//	magma <n> <matrix shm id> <eigenvalue shm id>
//
// and overwrites the matrix buffer with the eigenvectors, one per row.
package magma

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"unsafe"

	"github.com/KyungWonPark/Connectivity/internal/calc"
	"github.com/KyungWonPark/Connectivity/internal/ica"
	"github.com/KyungWonPark/shmtool/shm"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
)

// Solver runs the external binary at Path
type Solver struct {
	Path string
	// Tolerance is the relative precision required of A v = lambda v; zero
	// skips the check.
	Tolerance float64
}

// EigenSym implements ica.Eigensolver
func (s Solver) EigenSym(ctx context.Context, a mat.Symmetric) ([]float64, *mat.Dense, error) {
	if s.Path == "" {
		return nil, nil, fmt.Errorf("no MAGMA binary configured")
	}

	n, _ := a.Dims()
	size := uint64(n)

	matBufferShm, err := shm.Create(size * size * 8)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create shared memory region: %w", err)
	}
	defer matBufferShm.Destroy()

	eigValShm, err := shm.Create(size * 1 * 8)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create shared memory region: %w", err)
	}
	defer eigValShm.Destroy()

	pMatBuffer, err := matBufferShm.Attach()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to attach shared memory region: %w", err)
	}
	defer matBufferShm.Detach(pMatBuffer)

	pEigVal, err := eigValShm.Attach()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to attach shared memory region: %w", err)
	}
	defer eigValShm.Detach(pEigVal)

	matBuffer := unsafe.Slice((*float64)(pMatBuffer), n*n)
	eigValBuffer := unsafe.Slice((*float64)(pEigVal), n)

	toRowMajor(a, matBuffer)

	log.WithField("n", n).Debug("Diagonalizing with MAGMA")
	cmd := exec.CommandContext(ctx, s.Path, strconv.Itoa(n), fmt.Sprintf("%d", matBufferShm.Id), fmt.Sprintf("%d", eigValShm.Id))
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, nil, fmt.Errorf("MAGMA execution has failed: %w: %s", err, out)
	}

	eigVal := append([]float64(nil), eigValBuffer...)
	eigVecRows := mat.NewDense(n, n, append([]float64(nil), matBuffer...))

	if s.Tolerance > 0 {
		org := mat.DenseCopyOf(a)
		if !calc.CheckEigenQuality(org, eigVal, eigVecRows, s.Tolerance*maxAbs(eigVal)) {
			return nil, nil, fmt.Errorf("MAGMA eigendecomposition failed the A v = lambda v check")
		}
	}

	vecs := mat.DenseCopyOf(eigVecRows.T())
	return ica.SortDescending(eigVal, vecs), vecs, nil
}

func toRowMajor(a mat.Matrix, dst []float64) {
	rows, cols := a.Dims()

	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dst[i*cols+j] = a.At(i, j)
		}
	}

	return
}

func maxAbs(vals []float64) float64 {
	m := 1.0
	for _, v := range vals {
		m = math.Max(m, math.Abs(v))
	}

	return m
}
