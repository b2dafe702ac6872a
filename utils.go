package rankgen_go

import (
	"fmt"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gorgonia.org/tensor"
)

// NormRandDense Return reference to tensor.Dense filled with normally distributed float64 values
//
// rnd - explicit random source (no global RNG is touched)
// batchSize - Simply batch size
// n - Number of elements in each batch
// Resulting dense will have batchSize*n elements
//
func NormRandDense(rnd *rand.Rand, batchSize, n int) *tensor.Dense {
	data := make([]float64, batchSize*n)
	for i := range data {
		data[i] = rnd.NormFloat64()
	}
	return tensor.New(tensor.WithShape(batchSize, n), tensor.WithBacking(data))
}

// UniformRandDense Return reference to tensor.Dense filled with pseudo-random float64 values in range [0.0,1.0)
//
// rnd - explicit random source (no global RNG is touched)
// batchSize - Simply batch size
// n - Number of elements in each batch
// Resulting dense will have batchSize*n elements
//
func UniformRandDense(rnd *rand.Rand, batchSize, n int) *tensor.Dense {
	data := make([]float64, batchSize*n)
	for i := range data {
		data[i] = rnd.Float64()
	}
	return tensor.New(tensor.WithShape(batchSize, n), tensor.WithBacking(data))
}

// PlotLossHistory Plot chart of mean reconstruction loss per epoch
func PlotLossHistory(losses []float64, fname string) error {
	if len(losses) == 0 {
		return fmt.Errorf("Loss history is empty")
	}
	lineData := make(plotter.XYs, len(losses))
	for i, l := range losses {
		lineData[i].X = float64(i)
		lineData[i].Y = l
	}
	line, err := plotter.NewLine(lineData)
	if err != nil {
		return errors.Wrap(err, "Can't init new line")
	}
	p := plot.New()
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Loss_G"
	p.Add(plotter.NewGrid())
	p.Add(line)
	// Save the plot to a PNG file.
	if err := p.Save(4*vg.Inch, 4*vg.Inch, fname); err != nil {
		return errors.Wrap(err, "Can't save plot")
	}
	return nil
}
