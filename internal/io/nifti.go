package io

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/KyungWonPark/Connectivity/internal/brain"
	"github.com/KyungWonPark/nifti"
	"gonum.org/v1/gonum/mat"
)

func sampling(img *nifti.Nifti1Image, bm *brain.BrainMap, timeStart int, order <-chan int, wg *sync.WaitGroup, timeSeries *mat.Dense) {
	for timePoint := range order {
		for g := 0; g < bm.Len(); g++ {
			vox := bm.Voxel(g)
			value := img.GetAt(uint32(vox.X), uint32(vox.Y), uint32(vox.Z), uint32(timePoint))
			timeSeries.Set(timePoint-timeStart, g, float64(value))
		}

		wg.Done()
	}

	return
}

// ReadNifti samples a 4-D NIfTI volume at the voxel coordinates of bm for
// time points timeStart..timeEnd-1 and returns a (time, grayordinate) matrix.
func ReadNifti(path string, bm *brain.BrainMap, timeStart int, timeEnd int, numLoader int) (*mat.Dense, error) {
	if !bm.HasVoxels() {
		return nil, errors.New("ReadNifti: brain map has no voxel coordinates")
	}
	if timeStart < 0 || timeEnd <= timeStart {
		return nil, fmt.Errorf("ReadNifti: invalid time range [%d, %d)", timeStart, timeEnd)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("ReadNifti: %w", err)
	}
	if numLoader < 1 {
		numLoader = 1
	}

	img, err := loadImage(path)
	if err != nil {
		return nil, fmt.Errorf("ReadNifti: %s: %w", path, err)
	}
	if err := checkExtent(img, bm, timeStart, timeEnd); err != nil {
		return nil, fmt.Errorf("ReadNifti: %s: %w", path, err)
	}

	timeSeries := mat.NewDense(timeEnd-timeStart, bm.Len(), nil)

	order := make(chan int, numLoader)
	var wg sync.WaitGroup

	wg.Add(timeEnd - timeStart)
	for i := 0; i < numLoader; i++ {
		go sampling(img, bm, timeStart, order, &wg, timeSeries)
	}

	for timePoint := timeStart; timePoint < timeEnd; timePoint++ {
		order <- timePoint
	}
	wg.Wait()

	close(order)
	return timeSeries, nil
}

// loadImage reads header and data. The nifti package reports a bad header
// by printing and returning an image without data, and panics on
// unsupported data types or a short file.
func loadImage(path string) (img *nifti.Nifti1Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("unreadable image: %v", r)
		}
	}()

	img = new(nifti.Nifti1Image)
	img.LoadImage(path, true)

	if img.GetHeader().Bitpix == 0 {
		return nil, errors.New("unreadable image header")
	}

	return img, nil
}

// checkExtent makes sure every sample ReadNifti takes lies inside the image
func checkExtent(img *nifti.Nifti1Image, bm *brain.BrainMap, timeStart int, timeEnd int) (err error) {
	dims := img.GetDims()
	if dims[0] <= 0 || dims[1] <= 0 || dims[2] <= 0 {
		return fmt.Errorf("image has empty spatial dimensions %v", dims)
	}
	numVolumes := dims[3]
	if numVolumes <= 0 {
		numVolumes = 1
	}
	if timeEnd > numVolumes {
		return fmt.Errorf("time range [%d, %d) exceeds the %d volumes of the image", timeStart, timeEnd, numVolumes)
	}

	for g := 0; g < bm.Len(); g++ {
		vox := bm.Voxel(g)
		if vox.X < 0 || vox.X >= dims[0] || vox.Y < 0 || vox.Y >= dims[1] || vox.Z < 0 || vox.Z >= dims[2] {
			return fmt.Errorf("grayordinate %d at voxel (%d, %d, %d) lies outside the %dx%dx%d image", g, vox.X, vox.Y, vox.Z, dims[0], dims[1], dims[2])
		}
	}

	// the last sample has the largest offset; a short data section fails here
	// instead of in a loader goroutine
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("image data ends before volume %d", timeEnd-1)
		}
	}()
	img.GetAt(uint32(dims[0]-1), uint32(dims[1]-1), uint32(dims[2]-1), uint32(timeEnd-1))

	return nil
}
