package io

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
)

// WriteBin writes a matrix to a file as raw little-endian float64 values in row-major order
func WriteBin(path string, matrix mat.Matrix) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("WriteBin: failed to create file: %w", err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	if err := binary.Write(w, binary.LittleEndian, mat.DenseCopyOf(matrix).RawMatrix().Data); err != nil {
		return fmt.Errorf("WriteBin: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("WriteBin: %w", err)
	}

	return file.Close()
}
