package rankgen_go

import (
	"testing"

	"gorgonia.org/tensor"
)

func TestRankEncoderConstantImage(t *testing.T) {
	rt := testRuntime(42)
	e, err := NewRankEncoder(rt, 64, 4)
	if err != nil {
		t.Fatal(err)
	}
	// All chunk means tie, so ascending ranks resolve by slot index and the
	// latent vector must be the lookup table itself.
	backing := make([]float64, 64)
	for i := range backing {
		backing[i] = 0.25
	}
	batch := tensor.New(tensor.WithShape(1, 1, 8, 8), tensor.WithBacking(backing))
	latent, err := e.Encode(batch)
	if err != nil {
		t.Fatal(err)
	}
	got := latent.Data().([]float64)
	if !float64sEqual(got, e.lookup) {
		t.Errorf("Expected latent %v to equal lookup table %v", got, e.lookup)
	}
}

func TestRankEncoderDeterministic(t *testing.T) {
	batch := UniformRandDense(testRuntime(7).Rand, 3, 48)
	if err := batch.Reshape(3, 3, 4, 4); err != nil {
		t.Fatal(err)
	}

	e1, err := NewRankEncoder(testRuntime(42), 48, 16)
	if err != nil {
		t.Fatal(err)
	}
	e2, err := NewRankEncoder(testRuntime(42), 48, 16)
	if err != nil {
		t.Fatal(err)
	}

	first, err := e1.Encode(batch)
	if err != nil {
		t.Fatal(err)
	}
	second, err := e1.Encode(batch)
	if err != nil {
		t.Fatal(err)
	}
	other, err := e2.Encode(batch)
	if err != nil {
		t.Fatal(err)
	}
	if !float64sEqual(first.Data().([]float64), second.Data().([]float64)) {
		t.Error("Same encoder must produce identical latents for the same batch")
	}
	if !float64sEqual(first.Data().([]float64), other.Data().([]float64)) {
		t.Error("Encoders built from the same seed must produce identical latents")
	}
}

func TestRankEncoderRemapsRanks(t *testing.T) {
	rt := testRuntime(11)
	e, err := NewRankEncoder(rt, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	// Chunk length is 1, so the chunk means are the permuted values
	// themselves; craft the row so that permuted values are strictly
	// increasing and ranks come out as identity.
	backing := make([]float64, 4)
	for rank, p := range e.perm {
		backing[p] = float64(rank)
	}
	batch := tensor.New(tensor.WithShape(1, 1, 2, 2), tensor.WithBacking(backing))
	latent, err := e.Encode(batch)
	if err != nil {
		t.Fatal(err)
	}
	if got := latent.Data().([]float64); !float64sEqual(got, e.lookup) {
		t.Errorf("Expected identity ranks to map to lookup table, got %v want %v", got, e.lookup)
	}
}

func TestRankEncoderLatentRange(t *testing.T) {
	rt := testRuntime(3)
	e, err := NewRankEncoder(rt, 3*8*8, LatentDim)
	if err != nil {
		t.Fatal(err)
	}
	batch := UniformRandDense(rt.Rand, 2, 3*8*8)
	if err := batch.Reshape(2, 3, 8, 8); err != nil {
		t.Fatal(err)
	}
	latent, err := e.Encode(batch)
	if err != nil {
		t.Fatal(err)
	}
	if !latent.Shape().Eq(tensor.Shape{2, LatentDim}) {
		t.Fatalf("Unexpected latent shape %v", latent.Shape())
	}
	for _, v := range latent.Data().([]float64) {
		if v < 0 || v >= 1 {
			t.Errorf("Latent value %f is outside the lookup range [0;1)", v)
		}
	}
}

func TestRankEncoderRejectsIndivisibleLength(t *testing.T) {
	if _, err := NewRankEncoder(testRuntime(1), 50, 16); err == nil {
		t.Error("Expected error for flat length not divisible by feature width")
	}
}

func TestRankEncoderRejectsWrongBatchLength(t *testing.T) {
	e, err := NewRankEncoder(testRuntime(1), 64, 16)
	if err != nil {
		t.Fatal(err)
	}
	batch := tensor.New(tensor.WithShape(2, 1, 4, 4), tensor.WithBacking(make([]float64, 32)))
	if _, err := e.Encode(batch); err == nil {
		t.Error("Expected error for batch row length mismatch")
	}
}
