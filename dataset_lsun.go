package rankgen_go

import (
	"fmt"
	"strings"
)

// NewLSUNDataset LSUN-style source: each requested class maps to a
// "<class>_train" directory of scene images under the root. Shares the
// folder pipeline (resize shorter side, center crop, normalize).
//
// classes - comma separated class list, e.g. "bedroom,church_outdoor"
//
func NewLSUNDataset(root, classes string, imageSize int) (*FolderDataset, error) {
	split := strings.Split(classes, ",")
	dirs := make([]string, 0, len(split))
	for _, c := range split {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		dirs = append(dirs, c+"_train")
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("No LSUN classes given in '%s'", classes)
	}
	return newFolderDataset(root, dirs, imageSize)
}
