// Package split verifies the constructed output directory against the
// externally supplied train/val/test split files.
package split

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/covidct/builder/internal/models"
)

// ErrNoSplitFiles marks the fatal configuration error of a version with
// no split files at all: verification cannot even begin.
var ErrNoSplitFiles = errors.New("no split files found for requested version")

// File is one discovered split file.
type File struct {
	Partition models.Partition
	Path      string
	// FromBase is set when the file was substituted from the base
	// variant because the requested sub-variant does not ship it.
	FromBase bool
}

// FileName returns the conventional split file name for a partition and
// version, e.g. "train_CT-3B.txt".
func FileName(p models.Partition, v models.Version) string {
	return fmt.Sprintf("%s_CT-%s.txt", p, v.Tag())
}

// Discover locates the three partition split files for a version under
// dir. A sub-variant missing some partitions falls back to the base
// variant's files for exactly those partitions; this is the documented
// compatibility rule for variant naming, not a guess. Zero files found
// is fatal.
func Discover(dir string, v models.Version) ([]File, error) {
	files := make([]File, 0, len(models.Partitions))
	for _, p := range models.Partitions {
		path := filepath.Join(dir, FileName(p, v))
		if _, err := os.Stat(path); err == nil {
			files = append(files, File{Partition: p, Path: path})
			continue
		}
		if v.IsBase() {
			continue
		}
		basePath := filepath.Join(dir, FileName(p, v.Base()))
		if _, err := os.Stat(basePath); err == nil {
			files = append(files, File{Partition: p, Path: basePath, FromBase: true})
		}
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s under %s", ErrNoSplitFiles, v.Tag(), dir)
	}
	return files, nil
}
