package split

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covidct/builder/internal/models"
)

func writeSplitFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func touchOutput(t *testing.T, outDir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(outDir, name), []byte("png"), 0644))
	}
}

func TestDiscover(t *testing.T) {
	v3a := models.Version{Major: 3, Variant: models.VariantA}
	v3b := models.Version{Major: 3, Variant: models.VariantB}

	t.Run("all three partitions of the requested version", func(t *testing.T) {
		dir := t.TempDir()
		for _, p := range models.Partitions {
			writeSplitFile(t, dir, FileName(p, v3a), "")
		}

		files, err := Discover(dir, v3a)
		require.NoError(t, err)
		require.Len(t, files, 3)
		for i, p := range models.Partitions {
			assert.Equal(t, p, files[i].Partition)
			assert.False(t, files[i].FromBase)
		}
	})

	t.Run("missing sub-variant partitions fall back to the base variant", func(t *testing.T) {
		dir := t.TempDir()
		writeSplitFile(t, dir, FileName(models.PartitionTrain, v3b), "")
		writeSplitFile(t, dir, FileName(models.PartitionVal, v3a), "")
		writeSplitFile(t, dir, FileName(models.PartitionTest, v3a), "")

		files, err := Discover(dir, v3b)
		require.NoError(t, err)
		require.Len(t, files, 3)

		byPartition := make(map[models.Partition]File, 3)
		for _, f := range files {
			byPartition[f.Partition] = f
		}
		assert.False(t, byPartition[models.PartitionTrain].FromBase)
		assert.True(t, byPartition[models.PartitionVal].FromBase)
		assert.True(t, byPartition[models.PartitionTest].FromBase)
		assert.Equal(t, filepath.Join(dir, "val_CT-3A.txt"), byPartition[models.PartitionVal].Path)
	})

	t.Run("base variant never substitutes", func(t *testing.T) {
		dir := t.TempDir()
		writeSplitFile(t, dir, FileName(models.PartitionTrain, v3a), "")

		files, err := Discover(dir, v3a)
		require.NoError(t, err)
		assert.Len(t, files, 1)
	})

	t.Run("no split files at all is fatal", func(t *testing.T) {
		_, err := Discover(t.TempDir(), v3b)
		assert.True(t, errors.Is(err, ErrNoSplitFiles))
	})
}

func TestFileName(t *testing.T) {
	v := models.Version{Major: 2, Variant: models.VariantB}
	assert.Equal(t, "train_CT-2B.txt", FileName(models.PartitionTrain, v))
	assert.Equal(t, "test_CT-2B.txt", FileName(models.PartitionTest, v))
}

func TestVerifyIncomplete(t *testing.T) {
	outDir := t.TempDir()
	touchOutput(t, outDir, "a.png", "b.png")

	splitDir := t.TempDir()
	writeSplitFile(t, splitDir, "train_CT-3A.txt", "a.png 1\nc.png 2\n")

	files := []File{{Partition: models.PartitionTrain, Path: filepath.Join(splitDir, "train_CT-3A.txt")}}
	report, err := Verify(outDir, files, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Found)
	assert.Equal(t, []string{"c.png"}, report.Missing)
	assert.False(t, report.Complete())
	assert.Equal(t, "1/2 files created, dataset incomplete", report.Summary())
	assert.Equal(t, Tally{Found: 1, Total: 2}, report.PerPartition[models.PartitionTrain])
}

func TestVerifyComplete(t *testing.T) {
	outDir := t.TempDir()
	touchOutput(t, outDir, "a.png", "b.png", "c.png")

	splitDir := t.TempDir()
	writeSplitFile(t, splitDir, "train_CT-3A.txt", "a.png 0\nb.png 1\n")
	writeSplitFile(t, splitDir, "val_CT-3A.txt", "c.png 2\n")

	files := []File{
		{Partition: models.PartitionTrain, Path: filepath.Join(splitDir, "train_CT-3A.txt")},
		{Partition: models.PartitionVal, Path: filepath.Join(splitDir, "val_CT-3A.txt")},
	}
	report, err := Verify(outDir, files, nil)
	require.NoError(t, err)

	assert.True(t, report.Complete())
	assert.Equal(t, "3/3 files created, dataset successfully constructed!", report.Summary())
	assert.Empty(t, report.Missing)

	t.Run("class tallies follow the split labels", func(t *testing.T) {
		assert.Equal(t, map[models.ClassLabel]int{
			models.ClassNormal:    1,
			models.ClassPneumonia: 1,
			models.ClassCOVID19:   1,
		}, report.Classes)
	})
}

func TestVerifySkipsUnreadableLines(t *testing.T) {
	outDir := t.TempDir()
	touchOutput(t, outDir, "a.png")

	splitDir := t.TempDir()
	// Blank lines and lines without a valid class token are skipped,
	// extra trailing fields are ignored.
	writeSplitFile(t, splitDir, "train_CT-3A.txt", "a.png 0 12 40 88 120\n\nnonsense\nb.png 9\n")

	files := []File{{Partition: models.PartitionTrain, Path: filepath.Join(splitDir, "train_CT-3A.txt")}}
	report, err := Verify(outDir, files, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Found)
	assert.True(t, report.Complete())
}
