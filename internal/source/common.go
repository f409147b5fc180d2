package source

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/volume"
	"github.com/covidct/builder/internal/window"
)

// SliceFilename builds the deterministic output name for one slice:
// <sourcetag>-<caseID>-<index>.png. The tag prefix keeps names from
// different sources collision-free; the fixed scheme keeps re-runs
// idempotent.
func SliceFilename(sourceTag, caseID string, sliceIdx int) string {
	return fmt.Sprintf("%s-%s-%04d.png", sourceTag, sanitizeCaseID(caseID), sliceIdx)
}

// sanitizeCaseID strips path separators and whitespace from raw case
// identifiers (some sources use "Patient 12"-style directory names).
func sanitizeCaseID(id string) string {
	id = strings.TrimSpace(id)
	repl := strings.NewReplacer("/", "_", "\\", "_", " ", "_")
	return repl.Replace(id)
}

// writeSlice normalizes nothing itself: it takes already windowed 8-bit
// pixels, resizes to the target resolution and writes the PNG.
func writeSlice(cfg Config, pixels []uint8, width, height int, name string) error {
	img, err := window.ToGray(pixels, width, height)
	if err != nil {
		return err
	}
	resized := window.ResizeSquare(img, cfg.TargetSize)
	return window.WritePNG(filepath.Join(cfg.OutDir, name), resized)
}

// writeVolumeSlices extracts every non-degenerate slice of a volume,
// applies the shared HU window and writes the images. keep, when not
// nil, additionally filters slices by index before the emptiness check.
// It returns the manifest entries in slice order.
func writeVolumeSlices(cfg Config, sourceTag, caseID string, vol *volume.Volume, class models.ClassLabel, keep func(z int) bool) ([]models.ManifestEntry, error) {
	entries := make([]models.ManifestEntry, 0, vol.Depth)
	for z := 0; z < vol.Depth; z++ {
		if keep != nil && !keep(z) {
			continue
		}
		raw, err := vol.Slice(z)
		if err != nil {
			return nil, err
		}
		pixels := cfg.Window.Normalize(raw)
		if window.IsEmptySlice(pixels) {
			continue
		}
		name := SliceFilename(sourceTag, caseID, z)
		if err := writeSlice(cfg, pixels, vol.Width, vol.Height, name); err != nil {
			return nil, err
		}
		entries = append(entries, models.ManifestEntry{
			Filename:   name,
			Class:      class,
			Source:     sourceTag,
			CaseID:     caseID,
			SliceIndex: z,
		})
	}
	return entries, nil
}

// processDICOMCase loads the DICOM series in caseDir and writes its
// windowed slices, all labeled with class.
func processDICOMCase(cfg Config, sourceTag, caseID, caseDir string, class models.ClassLabel, keep func(z int) bool) ([]models.ManifestEntry, error) {
	vol, err := volume.LoadDICOMSeries(caseDir)
	if err != nil {
		return nil, err
	}
	return writeVolumeSlices(cfg, sourceTag, caseID, vol, class, keep)
}

// loadIDSet reads one identifier per line, ignoring blanks and
// #-comments. Used for exclusion lists.
func loadIDSet(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening id list: %w", err)
	}
	defer f.Close()

	ids := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ids[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading id list: %w", err)
	}
	return ids, nil
}

// loadCSV reads all records of a CSV metadata file, skipping the header
// row when hasHeader is set. Rows with the wrong field count are
// returned as-is; callers validate per row since per-row loss is
// tolerable (input error, not metadata error).
func loadCSV(path string, hasHeader bool) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if hasHeader && len(rows) > 0 {
		rows = rows[1:]
	}
	return rows, nil
}

// listCaseDirs returns the names of immediate subdirectories of root in
// sorted order, so case enumeration is deterministic across runs.
func listCaseDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("enumerating cases under %s: %w", root, err)
	}
	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}

// listImageFiles returns sorted image file names (png/jpg/jpeg)
// directly under dir.
func listImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing images under %s: %w", dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg":
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
