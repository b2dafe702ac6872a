package rankgen_go

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const (
	mnistImagesMagic = 2051
	mnistLabelsMagic = 2049
	mnistMaxRotation = 30.0 * math.Pi / 180.0
)

// MNISTDataset MNIST training split read from the IDX ubyte pair. Every
// sample is resized to the configured image size, randomly flipped and
// randomly rotated within +-30 degrees (bilinear), then normalized into
// [-1; 1] as a single channel.
type MNISTDataset struct {
	images    [][]byte
	labels    []byte
	edge      int
	imageSize int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMNISTDataset Loads train-images-idx3-ubyte/train-labels-idx1-ubyte
// from the root (or its MNIST/raw subdirectory). The augmentation RNG is
// seeded from the run seed.
func NewMNISTDataset(root string, imageSize int, seed int64) (*MNISTDataset, error) {
	dir := root
	if _, err := os.Stat(filepath.Join(root, "train-images-idx3-ubyte")); err != nil {
		nested := filepath.Join(root, "MNIST", "raw")
		if _, err := os.Stat(filepath.Join(nested, "train-images-idx3-ubyte")); err != nil {
			return nil, fmt.Errorf("No MNIST ubyte files found under '%s'", root)
		}
		dir = nested
	}
	images, edge, err := readIDXImages(filepath.Join(dir, "train-images-idx3-ubyte"))
	if err != nil {
		return nil, err
	}
	labels, err := readIDXLabels(filepath.Join(dir, "train-labels-idx1-ubyte"))
	if err != nil {
		return nil, err
	}
	if len(images) != len(labels) {
		return nil, fmt.Errorf("MNIST images/labels count mismatch: %d vs %d", len(images), len(labels))
	}
	return &MNISTDataset{
		images:    images,
		labels:    labels,
		edge:      edge,
		imageSize: imageSize,
		rnd:       rand.New(rand.NewSource(seed)),
	}, nil
}

func readIDXImages(path string) ([][]byte, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, errors.Wrap(err, "Can't read MNIST images file")
	}
	if len(raw) < 16 {
		return nil, 0, fmt.Errorf("MNIST images file '%s' is truncated", path)
	}
	if magic := binary.BigEndian.Uint32(raw[0:4]); magic != mnistImagesMagic {
		return nil, 0, fmt.Errorf("MNIST images file '%s' has wrong magic %d", path, magic)
	}
	count := int(binary.BigEndian.Uint32(raw[4:8]))
	rows := int(binary.BigEndian.Uint32(raw[8:12]))
	cols := int(binary.BigEndian.Uint32(raw[12:16]))
	if rows != cols {
		return nil, 0, fmt.Errorf("MNIST images must be square, but got %dx%d", rows, cols)
	}
	plane := rows * cols
	if len(raw) != 16+count*plane {
		return nil, 0, fmt.Errorf("MNIST images file '%s' has truncated pixel data", path)
	}
	images := make([][]byte, count)
	for i := 0; i < count; i++ {
		images[i] = raw[16+i*plane : 16+(i+1)*plane]
	}
	return images, rows, nil
}

func readIDXLabels(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "Can't read MNIST labels file")
	}
	if len(raw) < 8 {
		return nil, fmt.Errorf("MNIST labels file '%s' is truncated", path)
	}
	if magic := binary.BigEndian.Uint32(raw[0:4]); magic != mnistLabelsMagic {
		return nil, fmt.Errorf("MNIST labels file '%s' has wrong magic %d", path, magic)
	}
	count := int(binary.BigEndian.Uint32(raw[4:8]))
	if len(raw) != 8+count {
		return nil, fmt.Errorf("MNIST labels file '%s' has truncated label data", path)
	}
	return raw[8:], nil
}

func (ds *MNISTDataset) Len() int {
	return len(ds.images)
}

func (ds *MNISTDataset) Channels() int {
	return 1
}

// draw Produces the augmentation coin flips under the lock; the loader
// calls Sample from several goroutines.
func (ds *MNISTDataset) draw() (bool, float64) {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.rnd.Float64() < 0.5, (ds.rnd.Float64()*2 - 1) * mnistMaxRotation
}

func (ds *MNISTDataset) Sample(i int) (*tensor.Dense, int, error) {
	if i < 0 || i >= len(ds.images) {
		return nil, 0, fmt.Errorf("Sample index %d is out of range [0;%d)", i, len(ds.images))
	}
	src := image.NewGray(image.Rect(0, 0, ds.edge, ds.edge))
	copy(src.Pix, ds.images[i])
	var img image.Image = src
	if ds.imageSize != ds.edge {
		img = resizeTo(img, ds.imageSize)
	}
	flip, angle := ds.draw()
	if flip {
		img = flipHorizontal(img)
	}
	img = rotateBilinear(img, angle)
	t, err := toTensorNormalized(img, 1)
	if err != nil {
		return nil, 0, err
	}
	return t, int(ds.labels[i]), nil
}
