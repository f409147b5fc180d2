package models

import (
	"bufio"
	"fmt"
	"os"
)

// ManifestEntry records one slice image written to the output directory.
// Entries are immutable once appended; ordering is insertion order.
type ManifestEntry struct {
	Filename   string     `json:"filename"`
	Class      ClassLabel `json:"class"`
	Source     string     `json:"source"`
	CaseID     string     `json:"caseId"`
	SliceIndex int        `json:"sliceIndex"`
}

// Manifest is the global ordered list of (filename, class) pairs
// accumulated across all source processors.
type Manifest struct {
	Entries []ManifestEntry `json:"entries"`
}

// NewManifest creates an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{Entries: make([]ManifestEntry, 0)}
}

// Append adds entries in order.
func (m *Manifest) Append(entries ...ManifestEntry) {
	m.Entries = append(m.Entries, entries...)
}

// Len returns the number of entries.
func (m *Manifest) Len() int { return len(m.Entries) }

// CountByClass tallies entries over the full class enumeration, so
// classes with zero entries still appear in the result.
func (m *Manifest) CountByClass() map[ClassLabel]int {
	counts := make(map[ClassLabel]int, len(ClassLabels))
	for _, c := range ClassLabels {
		counts[c] = 0
	}
	for _, e := range m.Entries {
		counts[e.Class]++
	}
	return counts
}

// WriteFile writes the manifest as "<filename> <class>" lines.
func (m *Manifest) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating manifest file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, e := range m.Entries {
		if _, err := fmt.Fprintf(w, "%s %d\n", e.Filename, int(e.Class)); err != nil {
			return fmt.Errorf("writing manifest line: %w", err)
		}
	}
	return w.Flush()
}
