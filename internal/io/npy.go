package io

import (
	"fmt"
	"math"

	"github.com/kshedden/gonpy"
	"gonum.org/v1/gonum/mat"
)

// WriteNpy writes a matrix to a Python numpy npy binary file
func WriteNpy(path string, matrix mat.Matrix) error {
	rows, cols := matrix.Dims()
	rawMat := mat.DenseCopyOf(matrix).RawMatrix()

	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("WriteNpy: failed to open file: %w", err)
	}
	w.Shape = []int{rows, cols}
	w.Version = 2

	if err := w.WriteFloat64(rawMat.Data); err != nil {
		return fmt.Errorf("WriteNpy: failed to write file: %w", err)
	}

	return nil
}

// ReadNpy reads a one or two dimensional float64 npy file. A vector is
// returned as a single row.
func ReadNpy(path string) (*mat.Dense, error) {
	r, err := gonpy.NewFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("ReadNpy: failed to open file: %w", err)
	}

	var rows, cols int
	switch len(r.Shape) {
	case 1:
		rows, cols = 1, r.Shape[0]
	case 2:
		rows, cols = r.Shape[0], r.Shape[1]
	default:
		return nil, fmt.Errorf("ReadNpy: %s has %d dimensions, want 1 or 2", path, len(r.Shape))
	}

	data, err := r.GetFloat64()
	if err != nil {
		return nil, fmt.Errorf("ReadNpy: failed to read file: %w", err)
	}

	if r.ColumnMajor && rows > 1 {
		return mat.DenseCopyOf(mat.NewDense(cols, rows, data).T()), nil
	}

	return mat.NewDense(rows, cols, data), nil
}

// WriteLabels writes integer labels as a single-row matrix
func WriteLabels(path string, labels []int) error {
	row := make([]float64, len(labels))
	for i, l := range labels {
		row[i] = float64(l)
	}

	return WriteMatrix(path, mat.NewDense(1, len(row), row))
}

// ReadLabels reads labels written by WriteLabels
func ReadLabels(path string) ([]int, error) {
	m, err := ReadMatrix(path)
	if err != nil {
		return nil, err
	}

	rows, cols := m.Dims()
	if rows != 1 && cols != 1 {
		return nil, fmt.Errorf("ReadLabels: %s is %d by %d, want a vector", path, rows, cols)
	}

	labels := make([]int, 0, rows*cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if v != math.Trunc(v) {
				return nil, fmt.Errorf("ReadLabels: non-integer label %g", v)
			}
			labels = append(labels, int(v))
		}
	}

	return labels, nil
}
