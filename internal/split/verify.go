package split

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/covidct/builder/internal/models"
)

// Report is the outcome of verifying the output directory against a set
// of split files. Missing files accumulate instead of stopping the
// check, so the full gap is visible at once.
type Report struct {
	Total        int                        `json:"total"`
	Found        int                        `json:"found"`
	Missing      []string                   `json:"missing,omitempty"`
	PerPartition map[models.Partition]Tally `json:"perPartition"`
	Classes      map[models.ClassLabel]int  `json:"classes"`
}

// Tally is the found/total pair for one partition.
type Tally struct {
	Found int `json:"found"`
	Total int `json:"total"`
}

// Complete reports whether every split-referenced file exists.
func (r *Report) Complete() bool {
	return r.Found == r.Total
}

// Summary renders the binary completeness status.
func (r *Report) Summary() string {
	if r.Complete() {
		return fmt.Sprintf("%d/%d files created, dataset successfully constructed!", r.Found, r.Total)
	}
	return fmt.Sprintf("%d/%d files created, dataset incomplete", r.Found, r.Total)
}

// Verify checks that every file referenced by the split files exists
// under outDir. Each missing file is logged individually.
func Verify(outDir string, files []File, log *zap.Logger) (*Report, error) {
	if log == nil {
		log = zap.NewNop()
	}

	report := &Report{
		PerPartition: make(map[models.Partition]Tally, len(files)),
		Classes:      make(map[models.ClassLabel]int, len(models.ClassLabels)),
	}
	for _, c := range models.ClassLabels {
		report.Classes[c] = 0
	}

	for _, f := range files {
		tally, err := verifyFile(outDir, f, report, log)
		if err != nil {
			return nil, err
		}
		report.PerPartition[f.Partition] = tally
	}
	return report, nil
}

func verifyFile(outDir string, f File, report *Report, log *zap.Logger) (Tally, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return Tally{}, fmt.Errorf("opening split file: %w", err)
	}
	defer fh.Close()

	var tally Tally
	scanner := bufio.NewScanner(fh)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		rec, err := models.ParseSplitLine(line)
		if err != nil {
			log.Warn("unreadable split line",
				zap.String("file", f.Path),
				zap.Int("line", lineNum),
				zap.Error(err))
			continue
		}

		tally.Total++
		report.Total++
		report.Classes[rec.Class]++

		if _, err := os.Stat(filepath.Join(outDir, rec.Filename)); err != nil {
			report.Missing = append(report.Missing, rec.Filename)
			log.Warn("missing file",
				zap.String("partition", string(f.Partition)),
				zap.String("filename", rec.Filename))
			continue
		}
		tally.Found++
		report.Found++
	}
	if err := scanner.Err(); err != nil {
		return Tally{}, fmt.Errorf("reading split file: %w", err)
	}
	return tally, nil
}
