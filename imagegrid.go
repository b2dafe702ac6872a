package rankgen_go

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gorgonia.org/tensor"
)

const (
	gridColumns = 8
	gridPadding = 2
)

// SaveImageGrid Writes a (B, C, H, W) batch as a PNG grid, 8 tiles per row
// with a 2px border, after rescaling the whole batch from its own value
// range into a displayable one (min/max renormalization, so both [-1;1]
// generator output and [0;1] real batches land in [0;255]).
func SaveImageGrid(batch *tensor.Dense, fname string) error {
	shape := batch.Shape()
	if len(shape) != 4 {
		return fmt.Errorf("Batch must have 4 dimensions (B, C, H, W), but got shape %v", shape)
	}
	b, c, h, w := shape[0], shape[1], shape[2], shape[3]
	if c != 1 && c != 3 {
		return fmt.Errorf("Channel count must be 1 or 3, but got %d", c)
	}
	data, ok := batch.Data().([]float64)
	if !ok {
		return errors.Errorf("Batch must be backed by []float64, but got %T", batch.Data())
	}

	lo, hi := floats.Min(data), floats.Max(data)
	scale := hi - lo
	if scale == 0 {
		scale = 1
	}

	cols := b
	if cols > gridColumns {
		cols = gridColumns
	}
	rows := (b + gridColumns - 1) / gridColumns
	canvas := image.NewRGBA(image.Rect(0, 0,
		cols*w+(cols+1)*gridPadding,
		rows*h+(rows+1)*gridPadding,
	))
	for i := 0; i < b; i++ {
		x0 := (i%gridColumns)*(w+gridPadding) + gridPadding
		y0 := (i/gridColumns)*(h+gridPadding) + gridPadding
		plane := h * w
		base := i * c * plane
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				var r, g, bl float64
				if c == 1 {
					v := (data[base+y*w+x] - lo) / scale
					r, g, bl = v, v, v
				} else {
					r = (data[base+0*plane+y*w+x] - lo) / scale
					g = (data[base+1*plane+y*w+x] - lo) / scale
					bl = (data[base+2*plane+y*w+x] - lo) / scale
				}
				canvas.Set(x0+x, y0+y, color.RGBA{
					R: uint8(r*255 + 0.5),
					G: uint8(g*255 + 0.5),
					B: uint8(bl*255 + 0.5),
					A: 0xff,
				})
			}
		}
	}

	f, err := os.Create(fname)
	if err != nil {
		return errors.Wrap(err, "Can't create image grid file")
	}
	defer f.Close()
	if err := png.Encode(f, canvas); err != nil {
		return errors.Wrap(err, "Can't encode image grid")
	}
	return nil
}
