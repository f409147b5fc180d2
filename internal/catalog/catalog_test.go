package catalog

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covidct/builder/internal/models"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	cat, err := Open(filepath.Join(t.TempDir(), "catalog.duckdb"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })
	return cat
}

func sampleEntries() []models.ManifestEntry {
	return []models.ManifestEntry{
		{Filename: "cncb-c1-0000.png", Class: models.ClassCOVID19, Source: "cncb", CaseID: "c1", SliceIndex: 0},
		{Filename: "cncb-c1-0001.png", Class: models.ClassCOVID19, Source: "cncb", CaseID: "c1", SliceIndex: 1},
		{Filename: "lidc-n1-0000.png", Class: models.ClassNormal, Source: "lidc", CaseID: "n1", SliceIndex: 0},
	}
}

func TestRecordAndQueryRun(t *testing.T) {
	cat := openTestCatalog(t)
	require.NoError(t, cat.RecordRun("run-1", "3A", sampleEntries()))

	t.Run("class counts include zero classes", func(t *testing.T) {
		counts, err := cat.CountsByClass("run-1")
		require.NoError(t, err)
		assert.Equal(t, map[models.ClassLabel]int{
			models.ClassNormal:    1,
			models.ClassPneumonia: 0,
			models.ClassCOVID19:   2,
		}, counts)
	})

	t.Run("source counts", func(t *testing.T) {
		counts, err := cat.CountsBySource("run-1")
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"cncb": 2, "lidc": 1}, counts)
	})

	t.Run("entries page in insertion order", func(t *testing.T) {
		entries, total, err := cat.Entries("run-1", 1, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, entries, 2)
		assert.Equal(t, "cncb-c1-0000.png", entries[0].Filename)
		assert.Equal(t, models.ClassCOVID19, entries[0].Class)

		entries, total, err = cat.Entries("run-1", 2, 2)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, entries, 1)
		assert.Equal(t, "lidc-n1-0000.png", entries[0].Filename)
	})
}

func TestRun(t *testing.T) {
	cat := openTestCatalog(t)
	require.NoError(t, cat.RecordRun("run-1", "3A", sampleEntries()))

	info, err := cat.Run("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", info.ID)
	assert.Equal(t, "3A", info.Version)
	assert.Equal(t, 3, info.EntryCount)

	_, err = cat.Run("ghost")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestLatestRun(t *testing.T) {
	cat := openTestCatalog(t)

	_, err := cat.LatestRun()
	assert.Error(t, err, "empty catalog has no latest run")

	require.NoError(t, cat.RecordRun("run-old", "3A", sampleEntries()[:1]))
	require.NoError(t, cat.RecordRun("run-new", "3B", sampleEntries()))

	info, err := cat.LatestRun()
	require.NoError(t, err)
	assert.Equal(t, "run-new", info.ID)
	assert.Equal(t, "3B", info.Version)
	assert.Equal(t, 3, info.EntryCount)
}

func TestRecordRunEmptyManifest(t *testing.T) {
	cat := openTestCatalog(t)
	require.NoError(t, cat.RecordRun("run-empty", "3A", nil))

	counts, err := cat.CountsByClass("run-empty")
	require.NoError(t, err)
	assert.Equal(t, 0, counts[models.ClassNormal])

	_, total, err := cat.Entries("run-empty", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, total)
}
