package io

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	stdio "io"
	"os"
	"strconv"
	"strings"

	"github.com/KyungWonPark/Connectivity/internal/brain"
)

// ReadBrainMap reads a brain map with one grayordinate per line, in
// grayordinate order:
//
//	structure[,x,y,z]
//
// Structures use CIFTI names with or without the CIFTI_STRUCTURE_ prefix.
// Voxel coordinates must be given on every line or on none. Lines starting
// with # are comments.
func ReadBrainMap(path string) (*brain.BrainMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open brain map: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var structures []brain.Structure
	var voxels []brain.Voxel
	line := 0
	for {
		record, err := r.Read()
		if errors.Is(err, stdio.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("brain map %s: %w", path, err)
		}
		line++

		st, err := brain.ParseStructure(record[0])
		if err != nil {
			return nil, fmt.Errorf("brain map %s line %d: %w", path, line, err)
		}
		structures = append(structures, st)

		switch len(record) {
		case 1:
			if voxels != nil {
				return nil, fmt.Errorf("brain map %s line %d: missing voxel coordinates", path, line)
			}
		case 4:
			if voxels == nil && line > 1 {
				return nil, fmt.Errorf("brain map %s line %d: unexpected voxel coordinates", path, line)
			}
			v, err := parseVoxel(record[1:])
			if err != nil {
				return nil, fmt.Errorf("brain map %s line %d: %w", path, line, err)
			}
			voxels = append(voxels, v)
		default:
			return nil, fmt.Errorf("brain map %s line %d: %d fields, want 1 or 4", path, line, len(record))
		}
	}

	return brain.NewBrainMap(structures, voxels)
}

func parseVoxel(xyz []string) (brain.Voxel, error) {
	var coords [3]int
	for i, s := range xyz {
		c, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return brain.Voxel{}, fmt.Errorf("failed to convert ascii to integer: %w", err)
		}
		if c < 0 {
			return brain.Voxel{}, fmt.Errorf("negative voxel coordinate %d", c)
		}
		coords[i] = c
	}

	return brain.Voxel{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

// WriteBrainMap writes bm in the format read by ReadBrainMap
func WriteBrainMap(path string, bm *brain.BrainMap) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create brain map: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	for g := 0; g < bm.Len(); g++ {
		record := []string{bm.Structure(g).Short()}
		if bm.HasVoxels() {
			v := bm.Voxel(g)
			record = append(record, strconv.Itoa(v.X), strconv.Itoa(v.Y), strconv.Itoa(v.Z))
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write brain map: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write brain map: %w", err)
	}

	return f.Close()
}
