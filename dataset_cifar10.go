package rankgen_go

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// CIFAR-10 binary layout: 10000 records per batch file, each record one
// label byte followed by 3072 pixel bytes (1024 R, 1024 G, 1024 B,
// row-major 32x32).
const (
	cifarEdge       = 32
	cifarPlane      = cifarEdge * cifarEdge
	cifarRecordSize = 1 + 3*cifarPlane
)

var cifarBatchFiles = []string{
	"data_batch_1.bin",
	"data_batch_2.bin",
	"data_batch_3.bin",
	"data_batch_4.bin",
	"data_batch_5.bin",
}

// CIFAR10Dataset CIFAR-10 training split read from the canonical binary
// batch files. Raw records are kept in memory; decoding, resize to the
// configured image size and normalization into [-1; 1] happen per sample.
type CIFAR10Dataset struct {
	records   [][]byte
	imageSize int
}

// NewCIFAR10Dataset Loads all five training batches from the root (either
// directly or under the conventional "cifar-10-batches-bin" subdirectory).
func NewCIFAR10Dataset(root string, imageSize int) (*CIFAR10Dataset, error) {
	dir := root
	if _, err := os.Stat(filepath.Join(root, cifarBatchFiles[0])); err != nil {
		nested := filepath.Join(root, "cifar-10-batches-bin")
		if _, err := os.Stat(filepath.Join(nested, cifarBatchFiles[0])); err != nil {
			return nil, fmt.Errorf("No CIFAR-10 batch files found under '%s'", root)
		}
		dir = nested
	}
	ds := &CIFAR10Dataset{imageSize: imageSize}
	for _, name := range cifarBatchFiles {
		raw, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.Wrap(err, fmt.Sprintf("Can't read CIFAR-10 batch '%s'", name))
		}
		if len(raw)%cifarRecordSize != 0 {
			return nil, fmt.Errorf("CIFAR-10 batch '%s' has truncated records (%d bytes)", name, len(raw))
		}
		for off := 0; off < len(raw); off += cifarRecordSize {
			ds.records = append(ds.records, raw[off:off+cifarRecordSize])
		}
	}
	if len(ds.records) == 0 {
		return nil, fmt.Errorf("No CIFAR-10 records found under '%s'", dir)
	}
	return ds, nil
}

func (ds *CIFAR10Dataset) Len() int {
	return len(ds.records)
}

func (ds *CIFAR10Dataset) Channels() int {
	return 3
}

func (ds *CIFAR10Dataset) Sample(i int) (*tensor.Dense, int, error) {
	if i < 0 || i >= len(ds.records) {
		return nil, 0, fmt.Errorf("Sample index %d is out of range [0;%d)", i, len(ds.records))
	}
	rec := ds.records[i]
	label := int(rec[0])
	pixels := rec[1:]
	img := image.NewRGBA(image.Rect(0, 0, cifarEdge, cifarEdge))
	for y := 0; y < cifarEdge; y++ {
		for x := 0; x < cifarEdge; x++ {
			p := y*cifarEdge + x
			off := img.PixOffset(x, y)
			img.Pix[off+0] = pixels[p]
			img.Pix[off+1] = pixels[cifarPlane+p]
			img.Pix[off+2] = pixels[2*cifarPlane+p]
			img.Pix[off+3] = 0xff
		}
	}
	var resized image.Image = img
	if ds.imageSize != cifarEdge {
		resized = resizeTo(img, ds.imageSize)
	}
	t, err := toTensorNormalized(resized, 3)
	if err != nil {
		return nil, 0, err
	}
	return t, label, nil
}
