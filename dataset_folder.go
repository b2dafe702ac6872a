package rankgen_go

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// FolderDataset Generic image-folder source: every subdirectory of the root
// is a class, every raster file inside it a sample. Images go through
// resize (shorter side) -> center crop -> normalize into [-1; 1].
type FolderDataset struct {
	paths     []string
	labels    []int
	imageSize int
}

// NewFolderDataset Walks the root and indexes all class subdirectories.
func NewFolderDataset(root string, imageSize int) (*FolderDataset, error) {
	classes, err := listClassDirs(root)
	if err != nil {
		return nil, err
	}
	return newFolderDataset(root, classes, imageSize)
}

func newFolderDataset(root string, classes []string, imageSize int) (*FolderDataset, error) {
	ds := &FolderDataset{imageSize: imageSize}
	for label, class := range classes {
		classDir := filepath.Join(root, class)
		entries, err := os.ReadDir(classDir)
		if err != nil {
			return nil, errors.Wrap(err, fmt.Sprintf("Can't read class directory '%s'", classDir))
		}
		for _, e := range entries {
			if e.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
				continue
			}
			ds.paths = append(ds.paths, filepath.Join(classDir, e.Name()))
			ds.labels = append(ds.labels, label)
		}
	}
	if len(ds.paths) == 0 {
		return nil, fmt.Errorf("No images found under '%s'", root)
	}
	return ds, nil
}

func listClassDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrap(err, fmt.Sprintf("Can't read dataset root '%s'", root))
	}
	classes := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			classes = append(classes, e.Name())
		}
	}
	sort.Strings(classes)
	if len(classes) == 0 {
		return nil, fmt.Errorf("No class directories found under '%s'", root)
	}
	return classes, nil
}

func (ds *FolderDataset) Len() int {
	return len(ds.paths)
}

func (ds *FolderDataset) Channels() int {
	return 3
}

func (ds *FolderDataset) Sample(i int) (*tensor.Dense, int, error) {
	if i < 0 || i >= len(ds.paths) {
		return nil, 0, fmt.Errorf("Sample index %d is out of range [0;%d)", i, len(ds.paths))
	}
	img, err := decodeImageFile(ds.paths[i])
	if err != nil {
		return nil, 0, err
	}
	img = centerCrop(resizeShorterSide(img, ds.imageSize), ds.imageSize)
	t, err := toTensorNormalized(img, 3)
	if err != nil {
		return nil, 0, err
	}
	return t, ds.labels[i], nil
}
