package calc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"gonum.org/v1/gonum/mat"
)

func avg(inputMat *mat.Dense, outputMat *mat.Dense, div float64, order <-chan int, wg *sync.WaitGroup) {
	_, inputCols := inputMat.Dims()

	for index := range order {
		for t := 0; t < inputCols; t++ {
			value := inputMat.At(index, t) / div
			outputMat.Set(index, t, value)
		}

		wg.Done()
	}

	return
}

// Avg divides an accumulated matrix by div
func (p *Pool) Avg(inputMat *mat.Dense, outputMat *mat.Dense, div float64) error {
	inputRows, inputCols := inputMat.Dims()
	outputRows, outputCols := outputMat.Dims()

	if inputRows != outputRows || inputCols != outputCols {
		return fmt.Errorf("%w: Avg: input dims: %d by %d when output dims: %d by %d", brain.ErrDimensionMismatch, inputRows, inputCols, outputRows, outputCols)
	}
	if div == 0 {
		return errors.New("Avg: division by zero")
	}

	p.dispatch(inputRows, func(order <-chan int, wg *sync.WaitGroup) {
		avg(inputMat, outputMat, div, order, wg)
	})

	return nil
}

// Mean returns the elementwise mean of equally shaped matrices
func (p *Pool) Mean(mats []*mat.Dense) (*mat.Dense, error) {
	if len(mats) == 0 {
		return nil, errors.New("Mean: no matrices")
	}

	rows, cols := mats[0].Dims()
	accedMat := mat.NewDense(rows, cols, nil)
	for _, m := range mats {
		if err := p.Acc(m, accedMat); err != nil {
			return nil, err
		}
	}

	avgedMat := mat.NewDense(rows, cols, nil)
	if err := p.Avg(accedMat, avgedMat, float64(len(mats))); err != nil {
		return nil, err
	}

	return avgedMat, nil
}
