package io

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// WriteCSV saves a matrix as a csv file, one row per line
func WriteCSV(path string, matrix mat.Matrix) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("WriteCSV: failed to open: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	rows, _ := matrix.Dims()

	stride := runtime.NumCPU()
	parsed := make([]string, stride)

	for row := 0; row < rows; row += stride {
		var wg sync.WaitGroup
		jobMark := stride

		if row+stride >= rows {
			jobMark = rows - row
		}

		wg.Add(jobMark)
		for offset := 0; offset < jobMark; offset++ {
			go formatLine(matrix, parsed, offset, row, &wg)
		}
		wg.Wait()

		for i := 0; i < jobMark; i++ {
			if _, err := fmt.Fprintf(w, "%s\n", parsed[i]); err != nil {
				return fmt.Errorf("WriteCSV: %w", err)
			}
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("WriteCSV: %w", err)
	}

	return f.Close()
}

func formatLine(matrix mat.Matrix, parsed []string, offset int, row int, wg *sync.WaitGroup) {
	_, cols := matrix.Dims()

	fields := make([]string, cols)
	for i := 0; i < cols; i++ {
		fields[i] = strconv.FormatFloat(matrix.At(row+offset, i), 'g', -1, 64)
	}
	parsed[offset] = strings.Join(fields, ", ")

	wg.Done()

	return
}

// ReadCSV reads a csv file of numbers into a matrix
func ReadCSV(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: failed to open file: %w", err)
	}
	defer f.Close()

	csvReader := csv.NewReader(f)
	csvReader.TrimLeadingSpace = true
	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("ReadCSV: failed to parse CSV file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("ReadCSV: %s is empty", path)
	}

	rows, cols := len(records), len(records[0])
	matrix := mat.NewDense(rows, cols, nil)
	errs := make([]error, rows)

	workers := runtime.NumCPU()
	order := make(chan int, workers)
	var wg sync.WaitGroup

	wg.Add(rows)

	for i := 0; i < workers; i++ {
		go parseLine(records, matrix, errs, order, &wg)
	}

	for i := 0; i < rows; i++ {
		order <- i
	}

	wg.Wait()
	close(order)

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return matrix, nil
}

func parseLine(records [][]string, matrix *mat.Dense, errs []error, order <-chan int, wg *sync.WaitGroup) {
	_, cols := matrix.Dims()

	for index := range order {
		for i := 0; i < cols; i++ {
			str := strings.TrimSpace(records[index][i])
			value, err := strconv.ParseFloat(str, 64)
			if err != nil {
				errs[index] = fmt.Errorf("ReadCSV: line %d: failed to parse: %w", index+1, err)
				break
			}

			matrix.Set(index, i, value)
		}

		wg.Done()
	}

	return
}
