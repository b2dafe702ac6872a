package rankgen_go

import (
	"fmt"
	"math/rand"
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Batch One mini-batch of stacked samples.
//
// Images - (B, C, H, W) dense tensor
// Labels - per-sample class labels
//
type Batch struct {
	Images *tensor.Dense
	Labels []int
}

// DataLoader Shuffling, batching, multi-worker iterable over a Dataset.
// Every call to Epoch reshuffles the sample order from the loader's own RNG
// (so runs replay exactly under a fixed seed) and hands out fixed-size
// batches in order. A trailing partial batch is dropped: the expression
// graph downstream is compiled for one batch shape.
type DataLoader struct {
	ds        Dataset
	batchSize int
	workers   int
	rnd       *rand.Rand
}

// NewDataLoader Constructor for DataLoader
//
// workers - number of background goroutines prefetching batches; 0 means
// the calling goroutine assembles batches on demand
//
func NewDataLoader(ds Dataset, batchSize, workers int, rnd *rand.Rand) (*DataLoader, error) {
	if batchSize < 1 {
		return nil, fmt.Errorf("Batch size must be positive, but got %d", batchSize)
	}
	if workers < 0 {
		return nil, fmt.Errorf("Workers count must be non-negative, but got %d", workers)
	}
	if ds.Len() < batchSize {
		return nil, fmt.Errorf("Dataset of %d samples can't fill a single batch of %d", ds.Len(), batchSize)
	}
	return &DataLoader{ds: ds, batchSize: batchSize, workers: workers, rnd: rnd}, nil
}

// Batches Returns number of full batches per epoch
func (l *DataLoader) Batches() int {
	return l.ds.Len() / l.batchSize
}

// Epoch Starts a freshly shuffled pass over the dataset.
func (l *DataLoader) Epoch() *Epoch {
	order := l.rnd.Perm(l.ds.Len())
	ep := &Epoch{
		loader:  l,
		order:   order,
		batches: l.Batches(),
	}
	if l.workers > 0 {
		ep.start()
	}
	return ep
}

// Epoch A single shuffled pass handing out batches in deterministic order.
// With workers > 0 batches are prefetched concurrently and re-sequenced, so
// worker scheduling never changes the order the training loop observes.
type Epoch struct {
	loader  *DataLoader
	order   []int
	batches int
	next    int

	results chan indexedBatch
	pending map[int]indexedBatch
	closed  bool
}

type indexedBatch struct {
	idx   int
	batch *Batch
	err   error
}

// Next Returns the next batch. The boolean is false once the epoch is
// exhausted; an error aborts the epoch (fail-fast, no retry).
func (ep *Epoch) Next() (*Batch, bool, error) {
	if ep.next >= ep.batches {
		return nil, false, nil
	}
	if ep.results == nil {
		b, err := ep.assemble(ep.next)
		if err != nil {
			return nil, false, err
		}
		ep.next++
		return b, true, nil
	}
	for {
		if got, ok := ep.pending[ep.next]; ok {
			delete(ep.pending, ep.next)
			if got.err != nil {
				return nil, false, got.err
			}
			ep.next++
			return got.batch, true, nil
		}
		got, ok := <-ep.results
		if !ok {
			return nil, false, fmt.Errorf("Batch stream ended before batch %d", ep.next)
		}
		ep.pending[got.idx] = got
	}
}

// start Spawns the prefetch workers. Each worker assembles whole batches;
// the consumer side of Next re-sequences them by batch index.
func (ep *Epoch) start() {
	ep.results = make(chan indexedBatch, ep.loader.workers)
	ep.pending = make(map[int]indexedBatch, ep.loader.workers)
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < ep.loader.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				b, err := ep.assemble(idx)
				ep.results <- indexedBatch{idx: idx, batch: b, err: err}
			}
		}()
	}
	go func() {
		for idx := 0; idx < ep.batches; idx++ {
			jobs <- idx
		}
		close(jobs)
		wg.Wait()
		close(ep.results)
	}()
}

// assemble Stacks batch #idx into a single (B, C, H, W) tensor.
func (ep *Epoch) assemble(idx int) (*Batch, error) {
	l := ep.loader
	first := idx * l.batchSize
	var (
		data    []float64
		labels  = make([]int, l.batchSize)
		rowLen  int
		shape   tensor.Shape
		backing []float64
	)
	for j := 0; j < l.batchSize; j++ {
		sample, label, err := l.ds.Sample(ep.order[first+j])
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't load sample for batch #%d", idx))
		}
		if data == nil {
			shape = sample.Shape()
			rowLen = shape.TotalSize()
			data = make([]float64, l.batchSize*rowLen)
		}
		backing, _ = sample.Data().([]float64)
		if len(backing) != rowLen {
			return nil, fmt.Errorf("Sample size %d doesn't match batch row size %d", len(backing), rowLen)
		}
		copy(data[j*rowLen:(j+1)*rowLen], backing)
		labels[j] = label
	}
	full := append(tensor.Shape{l.batchSize}, shape...)
	return &Batch{
		Images: tensor.New(tensor.WithShape(full...), tensor.WithBacking(data)),
		Labels: labels,
	}, nil
}
