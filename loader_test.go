package rankgen_go

import (
	"math/rand"
	"testing"

	"gorgonia.org/tensor"
)

func drainEpoch(t *testing.T, ep *Epoch) []*Batch {
	t.Helper()
	var batches []*Batch
	for {
		b, ok, err := ep.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			return batches
		}
		batches = append(batches, b)
	}
}

func TestDataLoaderBatching(t *testing.T) {
	ds, err := NewFakeDataset(8, 42)
	if err != nil {
		t.Fatal(err)
	}
	loader, err := NewDataLoader(ds, 100, 0, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatal(err)
	}
	// 1024 samples with batch size 100: ten full batches, trailing partial
	// batch dropped.
	if loader.Batches() != 10 {
		t.Fatalf("Expected 10 batches, got %d", loader.Batches())
	}
	batches := drainEpoch(t, loader.Epoch())
	if len(batches) != 10 {
		t.Fatalf("Expected 10 batches from epoch, got %d", len(batches))
	}
	want := tensor.Shape{100, 3, 8, 8}
	for i, b := range batches {
		if !b.Images.Shape().Eq(want) {
			t.Errorf("Batch #%d has shape %v, want %v", i, b.Images.Shape(), want)
		}
		if len(b.Labels) != 100 {
			t.Errorf("Batch #%d has %d labels, want 100", i, len(b.Labels))
		}
	}
}

func TestDataLoaderShuffleDeterminism(t *testing.T) {
	ds, err := NewFakeDataset(8, 42)
	if err != nil {
		t.Fatal(err)
	}
	first, err := NewDataLoader(ds, 64, 0, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewDataLoader(ds, 64, 0, rand.New(rand.NewSource(9)))
	if err != nil {
		t.Fatal(err)
	}
	fb := drainEpoch(t, first.Epoch())
	sb := drainEpoch(t, second.Epoch())
	if len(fb) != len(sb) {
		t.Fatalf("Epoch lengths differ: %d vs %d", len(fb), len(sb))
	}
	for i := range fb {
		if !float64sEqual(fb[i].Images.Data().([]float64), sb[i].Images.Data().([]float64)) {
			t.Fatalf("Batch #%d differs between identically seeded loaders", i)
		}
	}
}

func TestDataLoaderWorkersPreserveOrder(t *testing.T) {
	ds, err := NewFakeDataset(8, 42)
	if err != nil {
		t.Fatal(err)
	}
	sync, err := NewDataLoader(ds, 64, 0, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatal(err)
	}
	parallel, err := NewDataLoader(ds, 64, 4, rand.New(rand.NewSource(5)))
	if err != nil {
		t.Fatal(err)
	}
	sb := drainEpoch(t, sync.Epoch())
	pb := drainEpoch(t, parallel.Epoch())
	if len(sb) != len(pb) {
		t.Fatalf("Epoch lengths differ: %d vs %d", len(sb), len(pb))
	}
	for i := range sb {
		if !float64sEqual(sb[i].Images.Data().([]float64), pb[i].Images.Data().([]float64)) {
			t.Fatalf("Batch #%d differs between synchronous and worker loaders", i)
		}
	}
}

func TestDataLoaderRejectsTinyDataset(t *testing.T) {
	ds, err := NewFakeDataset(8, 42)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewDataLoader(ds, ds.Len()+1, 0, rand.New(rand.NewSource(1))); err == nil {
		t.Error("Expected error for dataset smaller than a single batch")
	}
}
