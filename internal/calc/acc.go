package calc

import (
	"fmt"
	"sync"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"gonum.org/v1/gonum/mat"
)

func acc(inputMat *mat.Dense, outputMat *mat.Dense, order <-chan int, wg *sync.WaitGroup) {
	_, inputCols := inputMat.Dims()

	for index := range order {
		for t := 0; t < inputCols; t++ {
			value := outputMat.At(index, t) + inputMat.At(index, t)
			outputMat.Set(index, t, value)
		}

		wg.Done()
	}

	return
}

// Acc adds inputMat into outputMat elementwise
func (p *Pool) Acc(inputMat *mat.Dense, outputMat *mat.Dense) error {
	inputRows, inputCols := inputMat.Dims()
	outputRows, outputCols := outputMat.Dims()

	if inputRows != outputRows || inputCols != outputCols {
		return fmt.Errorf("%w: Acc: input dims: %d by %d when output dims: %d by %d", brain.ErrDimensionMismatch, inputRows, inputCols, outputRows, outputCols)
	}

	p.dispatch(inputRows, func(order <-chan int, wg *sync.WaitGroup) {
		acc(inputMat, outputMat, order, wg)
	})

	return nil
}
