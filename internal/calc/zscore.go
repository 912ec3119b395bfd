package calc

import (
	"fmt"
	"math"
	"sync"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"gonum.org/v1/gonum/mat"
)

func getStat(timeSeriesMat *mat.Dense, stats []Statistic, order <-chan int, wg *sync.WaitGroup) {
	numRows, _ := timeSeriesMat.Dims()

	for index := range order {
		var accVal float64
		for t := 0; t < numRows; t++ {
			accVal += timeSeriesMat.At(t, index)
		}
		avgVal := accVal / float64(numRows)

		var accSqrDev float64
		for t := 0; t < numRows; t++ {
			dev := timeSeriesMat.At(t, index) - avgVal
			accSqrDev += dev * dev
		}

		stats[index].Avg = avgVal
		stats[index].Std = math.Sqrt(accSqrDev / float64(numRows))

		wg.Done()
	}

	return
}

// ColumnStats returns mean and population standard deviation of every
// column of a (time, series) matrix
func (p *Pool) ColumnStats(timeSeriesMat *mat.Dense) []Statistic {
	_, cols := timeSeriesMat.Dims()
	stats := make([]Statistic, cols)

	p.dispatch(cols, func(order <-chan int, wg *sync.WaitGroup) {
		getStat(timeSeriesMat, stats, order, wg)
	})

	return stats
}

func zScoring(inputMat *mat.Dense, outputMat *mat.Dense, stats []Statistic, scale bool, order <-chan int, wg *sync.WaitGroup) {
	_, inputCols := inputMat.Dims()

	for index := range order {
		for j := 0; j < inputCols; j++ {
			newValue := inputMat.At(index, j) - stats[j].Avg
			if scale {
				newValue /= stats[j].Std
			}
			outputMat.Set(index, j, newValue)
		}

		wg.Done()
	}

	return
}

// ZScoring standardizes every column of inputMat to zero mean and unit
// variance. A column without variance, or holding a NaN or infinite sample,
// is reported as ErrDegenerateTimeSeries.
func (p *Pool) ZScoring(inputMat *mat.Dense, outputMat *mat.Dense) error {
	inputRows, inputCols := inputMat.Dims()
	outputRows, outputCols := outputMat.Dims()

	if outputRows != inputRows || outputCols != inputCols {
		return fmt.Errorf("%w: ZScoring: input is %d by %d but output is %d by %d", brain.ErrDimensionMismatch, inputRows, inputCols, outputRows, outputCols)
	}

	stats := p.ColumnStats(inputMat)
	for j, s := range stats {
		if s.Degenerate() {
			return fmt.Errorf("%w: series %d has std %v", brain.ErrDegenerateTimeSeries, j, s.Std)
		}
	}

	p.dispatch(inputRows, func(order <-chan int, wg *sync.WaitGroup) {
		zScoring(inputMat, outputMat, stats, true, order, wg)
	})

	return nil
}

// Demean removes the mean of every column of inputMat. A column holding a
// NaN or infinite sample is reported as ErrDegenerateTimeSeries.
func (p *Pool) Demean(inputMat *mat.Dense, outputMat *mat.Dense) error {
	inputRows, inputCols := inputMat.Dims()
	outputRows, outputCols := outputMat.Dims()

	if outputRows != inputRows || outputCols != inputCols {
		return fmt.Errorf("%w: Demean: input is %d by %d but output is %d by %d", brain.ErrDimensionMismatch, inputRows, inputCols, outputRows, outputCols)
	}

	stats := p.ColumnStats(inputMat)
	for j, s := range stats {
		if math.IsNaN(s.Std) || math.IsInf(s.Std, 0) {
			return fmt.Errorf("%w: series %d is not finite", brain.ErrDegenerateTimeSeries, j)
		}
	}

	p.dispatch(inputRows, func(order <-chan int, wg *sync.WaitGroup) {
		zScoring(inputMat, outputMat, stats, false, order, wg)
	})

	return nil
}
