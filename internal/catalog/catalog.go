// Package catalog persists build manifests in a DuckDB file so counts
// and entries can be queried after construction without rescanning the
// output directory.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/covidct/builder/internal/models"
)

// insertBatchSize bounds the number of rows per INSERT statement.
const insertBatchSize = 500

// ErrRunNotFound marks a run ID with no recorded build.
var ErrRunNotFound = errors.New("run not found")

// Catalog is a DuckDB-backed store of build runs and their manifest
// entries.
type Catalog struct {
	db *sql.DB
}

// RunInfo summarizes one recorded build run.
type RunInfo struct {
	ID         string    `json:"id"`
	Version    string    `json:"version"`
	CreatedAt  time.Time `json:"createdAt"`
	EntryCount int       `json:"entryCount"`
}

// Open opens (or creates) the catalog database at path.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id         VARCHAR PRIMARY KEY,
			version    VARCHAR NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entries (
			run_id    VARCHAR NOT NULL,
			filename  VARCHAR NOT NULL,
			class     INTEGER NOT NULL,
			source    VARCHAR NOT NULL,
			case_id   VARCHAR NOT NULL,
			slice_idx INTEGER NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating catalog schema: %w", err)
		}
	}

	return &Catalog{db: db}, nil
}

// Close releases the underlying database.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// RecordRun stores one build run and all its manifest entries. Inserts
// are batched; index-free appends keep the recording phase fast.
func (c *Catalog) RecordRun(runID, versionTag string, entries []models.ManifestEntry) error {
	if _, err := c.db.Exec(
		`INSERT INTO runs (id, version, created_at) VALUES (?, ?, ?)`,
		runID, versionTag, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}

	for start := 0; start < len(entries); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := c.insertBatch(runID, entries[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) insertBatch(runID string, batch []models.ManifestEntry) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO entries (run_id, filename, class, source, case_id, slice_idx) VALUES `)

	args := make([]interface{}, 0, len(batch)*6)
	for i, e := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?)")
		args = append(args, runID, e.Filename, int(e.Class), e.Source, e.CaseID, e.SliceIndex)
	}

	if _, err := c.db.Exec(sb.String(), args...); err != nil {
		return fmt.Errorf("inserting entry batch: %w", err)
	}
	return nil
}

// CountsByClass tallies a run's entries over the full class
// enumeration, including zero-count classes.
func (c *Catalog) CountsByClass(runID string) (map[models.ClassLabel]int, error) {
	counts := make(map[models.ClassLabel]int, len(models.ClassLabels))
	for _, cl := range models.ClassLabels {
		counts[cl] = 0
	}

	rows, err := c.db.Query(
		`SELECT class, COUNT(*) FROM entries WHERE run_id = ? GROUP BY class`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying class counts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var class, n int
		if err := rows.Scan(&class, &n); err != nil {
			return nil, fmt.Errorf("scanning class count: %w", err)
		}
		counts[models.ClassLabel(class)] = n
	}
	return counts, rows.Err()
}

// CountsBySource tallies a run's entries per source tag.
func (c *Catalog) CountsBySource(runID string) (map[string]int, error) {
	rows, err := c.db.Query(
		`SELECT source, COUNT(*) FROM entries WHERE run_id = ? GROUP BY source`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying source counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("scanning source count: %w", err)
		}
		counts[source] = n
	}
	return counts, rows.Err()
}

// Entries returns one page of a run's manifest in insertion order,
// along with the total entry count.
func (c *Catalog) Entries(runID string, page, pageSize int) ([]models.ManifestEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 100
	}

	var total int
	if err := c.db.QueryRow(
		`SELECT COUNT(*) FROM entries WHERE run_id = ?`, runID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting entries: %w", err)
	}

	rows, err := c.db.Query(
		`SELECT filename, class, source, case_id, slice_idx
		 FROM entries WHERE run_id = ?
		 ORDER BY rowid LIMIT ? OFFSET ?`,
		runID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	entries := make([]models.ManifestEntry, 0, pageSize)
	for rows.Next() {
		var e models.ManifestEntry
		var class int
		if err := rows.Scan(&e.Filename, &class, &e.Source, &e.CaseID, &e.SliceIndex); err != nil {
			return nil, 0, fmt.Errorf("scanning entry: %w", err)
		}
		e.Class = models.ClassLabel(class)
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// Run returns one recorded run by ID.
func (c *Catalog) Run(id string) (*RunInfo, error) {
	var info RunInfo
	err := c.db.QueryRow(
		`SELECT r.id, r.version, r.created_at,
		        (SELECT COUNT(*) FROM entries e WHERE e.run_id = r.id)
		 FROM runs r WHERE r.id = ?`, id).
		Scan(&info.ID, &info.Version, &info.CreatedAt, &info.EntryCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	return &info, nil
}

// LatestRun returns the most recently recorded run.
func (c *Catalog) LatestRun() (*RunInfo, error) {
	var info RunInfo
	err := c.db.QueryRow(
		`SELECT r.id, r.version, r.created_at,
		        (SELECT COUNT(*) FROM entries e WHERE e.run_id = r.id)
		 FROM runs r ORDER BY r.created_at DESC LIMIT 1`).
		Scan(&info.ID, &info.Version, &info.CreatedAt, &info.EntryCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("catalog has no recorded runs")
	}
	if err != nil {
		return nil, fmt.Errorf("querying latest run: %w", err)
	}
	return &info, nil
}
