package rankgen_go

import (
	"fmt"
	"image"
	"math"
	"os"
	"strings"

	// Register the raster formats a folder dataset is expected to hold.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
	"gorgonia.org/tensor"
)

// Dataset An indexable collection of (image, label) pairs. Sample returns a
// (C, H, W) float64 tensor; every source normalizes pixel values to its own
// displayable convention (see the concrete constructors).
//
// Sample must be safe for concurrent use: the data loader calls it from
// multiple worker goroutines.
type Dataset interface {
	Len() int
	Channels() int
	Sample(i int) (*tensor.Dense, int, error)
}

// SelectDataset Constructs one of the fixed dataset/transform pipelines for
// the configured dataset kind. Unrecognized kinds are an error.
func SelectDataset(cfg *Config, rt *Runtime) (Dataset, error) {
	switch strings.ToLower(cfg.Dataset) {
	case DatasetFolder, DatasetImagenet, DatasetLFW:
		return NewFolderDataset(cfg.DataRoot, cfg.ImageSize)
	case DatasetLSUN:
		return NewLSUNDataset(cfg.DataRoot, cfg.Classes, cfg.ImageSize)
	case DatasetCIFAR10:
		return NewCIFAR10Dataset(cfg.DataRoot, cfg.ImageSize)
	case DatasetMNIST:
		return NewMNISTDataset(cfg.DataRoot, cfg.ImageSize, rt.Seed)
	case DatasetFake:
		return NewFakeDataset(cfg.ImageSize, rt.Seed)
	default:
		return nil, fmt.Errorf("Dataset kind '%s' is not recognized", cfg.Dataset)
	}
}

func decodeImageFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "Can't open image file")
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't decode image file '%s'", path))
	}
	return img, nil
}

// resizeShorterSide Scales the image so its shorter side equals size,
// preserving aspect ratio.
func resizeShorterSide(img image.Image, size int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= 0 || h <= 0 {
		return img
	}
	var dw, dh int
	if w < h {
		dw = size
		dh = int(math.Round(float64(h) * float64(size) / float64(w)))
	} else {
		dh = size
		dw = int(math.Round(float64(w) * float64(size) / float64(h)))
	}
	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// resizeTo Scales the image to an exact size x size square.
func resizeTo(img image.Image, size int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// centerCrop Crops the central size x size window.
func centerCrop(img image.Image, size int) image.Image {
	b := img.Bounds()
	x0 := b.Min.X + (b.Dx()-size)/2
	y0 := b.Min.Y + (b.Dy()-size)/2
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Copy(dst, image.Point{}, img, image.Rect(x0, y0, x0+size, y0+size), draw.Src, nil)
	return dst
}

// rotateBilinear Rotates the image around its center by angle radians with
// bilinear resampling, keeping the canvas size.
func rotateBilinear(img image.Image, angle float64) image.Image {
	b := img.Bounds()
	cx := float64(b.Min.X+b.Max.X) / 2
	cy := float64(b.Min.Y+b.Max.Y) / 2
	sin, cos := math.Sin(angle), math.Cos(angle)
	m := f64.Aff3{
		cos, -sin, cx - cx*cos + cy*sin,
		sin, cos, cy - cx*sin - cy*cos,
	}
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.BiLinear.Transform(dst, m, img, b, draw.Src, nil)
	return dst
}

// flipHorizontal Mirrors the image along the vertical axis.
func flipHorizontal(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			dst.Set(x, y, img.At(b.Max.X-1-x, b.Min.Y+y))
		}
	}
	return dst
}

// toTensorNormalized Converts an image to a (channels, size, size) tensor
// with every channel standardized as (v - 0.5) / 0.5, i.e. into [-1; 1].
func toTensorNormalized(img image.Image, channels int) (*tensor.Dense, error) {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()
	data := make([]float64, channels*h*w)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			switch channels {
			case 1:
				gray := (float64(r) + float64(g) + float64(bl)) / (3.0 * 65535.0)
				data[y*w+x] = (gray - 0.5) / 0.5
			case 3:
				data[0*h*w+y*w+x] = (float64(r)/65535.0 - 0.5) / 0.5
				data[1*h*w+y*w+x] = (float64(g)/65535.0 - 0.5) / 0.5
				data[2*h*w+y*w+x] = (float64(bl)/65535.0 - 0.5) / 0.5
			default:
				return nil, fmt.Errorf("Channel count must be 1 or 3, but got %d", channels)
			}
		}
	}
	return tensor.New(tensor.WithShape(channels, h, w), tensor.WithBacking(data)), nil
}
