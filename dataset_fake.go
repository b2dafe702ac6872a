package rankgen_go

import (
	"fmt"
	"math/rand"

	"gorgonia.org/tensor"
)

const fakeDatasetSize = 1024

// FakeDataset Synthetic source for pipeline validation: every index yields
// a deterministic pseudo-random RGB image derived from (seed, index), so no
// data path is required. Pixel values stay in [0; 1) (tensor conversion
// only, no normalization), matching the reference behaviour of the
// synthetic kind.
type FakeDataset struct {
	imageSize int
	seed      int64
}

// NewFakeDataset Constructor for FakeDataset
func NewFakeDataset(imageSize int, seed int64) (*FakeDataset, error) {
	if imageSize < 1 {
		return nil, fmt.Errorf("Image size must be positive, but got %d", imageSize)
	}
	return &FakeDataset{imageSize: imageSize, seed: seed}, nil
}

func (ds *FakeDataset) Len() int {
	return fakeDatasetSize
}

func (ds *FakeDataset) Channels() int {
	return 3
}

func (ds *FakeDataset) Sample(i int) (*tensor.Dense, int, error) {
	if i < 0 || i >= fakeDatasetSize {
		return nil, 0, fmt.Errorf("Sample index %d is out of range [0;%d)", i, fakeDatasetSize)
	}
	rnd := rand.New(rand.NewSource(ds.seed + int64(i)))
	data := make([]float64, 3*ds.imageSize*ds.imageSize)
	for p := range data {
		data[p] = rnd.Float64()
	}
	label := rnd.Intn(10)
	return tensor.New(tensor.WithShape(3, ds.imageSize, ds.imageSize), tensor.WithBacking(data)), label, nil
}
