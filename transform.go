package rankgen_go

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"
)

// RankEncoder Deterministic, non-invertible encoding of an image into the
// generator's latent vector. Two fixed random artifacts are drawn once per
// run: a permutation of the flat image vector and a lookup table of uniform
// values, one per latent slot. Encoding a flattened image then goes
// permute -> equal-chunk means -> ascending rank order -> lookup remap.
//
// The encoder builds no graph nodes, so no gradient ever flows through it.
type RankEncoder struct {
	perm     []int
	lookup   []float64
	flatLen  int
	featDim  int
	chunkLen int
}

// NewRankEncoder Draws the run's fixed artifacts from the run context.
//
// flatLen - flattened image length (channels*height*width)
// featDim - latent width; must divide flatLen evenly
//
func NewRankEncoder(rt *Runtime, flatLen, featDim int) (*RankEncoder, error) {
	if featDim < 1 {
		return nil, fmt.Errorf("Feature width must be positive, but got %d", featDim)
	}
	if flatLen < featDim || flatLen%featDim != 0 {
		return nil, fmt.Errorf("Flat image length %d is not divisible by feature width %d", flatLen, featDim)
	}
	lookup := make([]float64, featDim)
	for i := range lookup {
		lookup[i] = rt.Uniform.Float64()
	}
	return &RankEncoder{
		perm:     rt.Rand.Perm(flatLen),
		lookup:   lookup,
		flatLen:  flatLen,
		featDim:  featDim,
		chunkLen: flatLen / featDim,
	}, nil
}

// FeatDim Returns the latent width of produced vectors
func (e *RankEncoder) FeatDim() int {
	return e.featDim
}

// Encode Maps a (B, C, H, W) image batch to a (B, featDim) latent batch.
// Pure function of (batch, permutation, lookup): same batch in, same latent
// out, for the whole lifetime of the encoder.
func (e *RankEncoder) Encode(batch *tensor.Dense) (*tensor.Dense, error) {
	shape := batch.Shape()
	if len(shape) < 2 {
		return nil, fmt.Errorf("Batch must have at least 2 dimensions, but got shape %v", shape)
	}
	batchSize := shape[0]
	if shape.TotalSize()/batchSize != e.flatLen {
		return nil, fmt.Errorf("Batch row length %d doesn't match encoder flat length %d", shape.TotalSize()/batchSize, e.flatLen)
	}
	data, ok := batch.Data().([]float64)
	if !ok {
		return nil, errors.Errorf("Batch must be backed by []float64, but got %T", batch.Data())
	}

	out := make([]float64, batchSize*e.featDim)
	permuted := make([]float64, e.flatLen)
	reduced := make([]float64, e.featDim)
	ranks := make([]int, e.featDim)
	for b := 0; b < batchSize; b++ {
		row := data[b*e.flatLen : (b+1)*e.flatLen]
		for i, p := range e.perm {
			permuted[i] = row[p]
		}
		for c := 0; c < e.featDim; c++ {
			chunk := permuted[c*e.chunkLen : (c+1)*e.chunkLen]
			reduced[c] = floats.Sum(chunk) / float64(e.chunkLen)
		}
		// Ascending argsort; stable so that ties rank by slot index.
		for i := range ranks {
			ranks[i] = i
		}
		sort.SliceStable(ranks, func(i, j int) bool {
			return reduced[ranks[i]] < reduced[ranks[j]]
		})
		for j, idx := range ranks {
			out[b*e.featDim+j] = e.lookup[idx]
		}
	}
	return tensor.New(tensor.WithShape(batchSize, e.featDim), tensor.WithBacking(out)), nil
}
