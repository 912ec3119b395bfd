package calc

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"
)

func symCheck(matrix *mat.Dense, isSymm []bool, pre float64, order <-chan int, wg *sync.WaitGroup) {
	_, cols := matrix.Dims()

	for index := range order {
		isSymm[index] = true
		for i := index; i < cols; i++ {
			if math.Abs(matrix.At(index, i)-matrix.At(i, index)) >= pre {
				isSymm[index] = false
				break
			}
		}

		wg.Done()
	}

	return
}

// SymCheck checks symmetry within precision pre
func (p *Pool) SymCheck(matrix *mat.Dense, pre float64) bool {
	rows, cols := matrix.Dims()
	if rows != cols {
		return false
	}

	isSymm := make([]bool, rows)

	p.dispatch(rows, func(order <-chan int, wg *sync.WaitGroup) {
		symCheck(matrix, isSymm, math.Abs(pre), order, wg)
	})

	for i := 0; i < rows; i++ {
		if !isSymm[i] {
			return false
		}
	}

	return true
}

// CheckEigenQuality checks that every row of eigVec is an eigenvector of
// org with the matching eigenvalue: A v = lambda v within pre.
func CheckEigenQuality(org *mat.Dense, eigVal []float64, eigVec *mat.Dense, pre float64) bool {
	rows, cols := org.Dims()
	vecRows, vecCols := eigVec.Dims()
	if vecCols != cols || vecRows != len(eigVal) || rows != cols {
		return false
	}

	av := mat.NewVecDense(rows, nil)
	lv := mat.NewVecDense(rows, nil)
	for i := 0; i < vecRows; i++ {
		v := eigVec.RowView(i)

		av.MulVec(org, v)
		lv.ScaleVec(eigVal[i], v)

		if !mat.EqualApprox(av, lv, math.Abs(pre)) {
			return false
		}
	}

	return true
}
