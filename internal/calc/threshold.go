package calc

import (
	"fmt"
	"math"
	"sync"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"gonum.org/v1/gonum/mat"
)

func threshold(inputMat *mat.Dense, outputMat *mat.Dense, thr float64, sub float64, order <-chan int, wg *sync.WaitGroup) {
	_, inputCols := inputMat.Dims()

	for index := range order {
		for t := 0; t < inputCols; t++ {
			value := inputMat.At(index, t)
			if thr >= math.Abs(value) {
				value = sub
			}

			outputMat.Set(index, t, value)
		}

		wg.Done()
	}

	return
}

// Threshold replaces every element whose magnitude is at most thr by sub
func (p *Pool) Threshold(inputMat *mat.Dense, outputMat *mat.Dense, thr float64, sub float64) error {
	inputRows, inputCols := inputMat.Dims()
	outputRows, outputCols := outputMat.Dims()

	if inputRows != outputRows || inputCols != outputCols {
		return fmt.Errorf("%w: Threshold: input dims: %d by %d when output dims: %d by %d", brain.ErrDimensionMismatch, inputRows, inputCols, outputRows, outputCols)
	}

	p.dispatch(inputRows, func(order <-chan int, wg *sync.WaitGroup) {
		threshold(inputMat, outputMat, thr, sub, order, wg)
	})

	return nil
}

func clip(m *mat.Dense, lo float64, hi float64, order <-chan int, wg *sync.WaitGroup) {
	_, cols := m.Dims()

	for index := range order {
		row := m.RawRowView(index)
		for i := 0; i < cols; i++ {
			row[i] = math.Min(hi, math.Max(lo, row[i]))
		}

		wg.Done()
	}

	return
}

// Clip bounds every element of m to [lo, hi] in place
func (p *Pool) Clip(m *mat.Dense, lo float64, hi float64) {
	rows, _ := m.Dims()

	p.dispatch(rows, func(order <-chan int, wg *sync.WaitGroup) {
		clip(m, lo, hi, order, wg)
	})
}
