// Package io reads and writes the matrices, brain maps and manifests the
// feature extraction stages consume and produce.
package io

import (
	"fmt"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Formats accepted by WriteMatrix
var Formats = []string{"npy", "csv", "bin"}

// WriteMatrix writes a matrix in the format given by the file extension
func WriteMatrix(path string, matrix mat.Matrix) error {
	switch ext(path) {
	case ".npy":
		return WriteNpy(path, matrix)
	case ".csv":
		return WriteCSV(path, matrix)
	case ".bin":
		return WriteBin(path, matrix)
	}

	return fmt.Errorf("WriteMatrix: unsupported format: %s", path)
}

// ReadMatrix reads an npy or csv matrix
func ReadMatrix(path string) (*mat.Dense, error) {
	switch ext(path) {
	case ".npy":
		return ReadNpy(path)
	case ".csv":
		return ReadCSV(path)
	}

	return nil, fmt.Errorf("ReadMatrix: unsupported format: %s", path)
}

func ext(path string) string {
	return strings.ToLower(filepath.Ext(path))
}
