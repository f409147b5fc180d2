package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSliceFilename(t *testing.T) {
	t.Run("deterministic", func(t *testing.T) {
		a := SliceFilename("cncb", "case-1", 3)
		b := SliceFilename("cncb", "case-1", 3)
		assert.Equal(t, a, b)
		assert.Equal(t, "cncb-case-1-0003.png", a)
	})

	t.Run("source tags keep names collision-free", func(t *testing.T) {
		a := SliceFilename("cncb", "case1", 0)
		b := SliceFilename("tcia", "case1", 0)
		assert.NotEqual(t, a, b)
	})

	t.Run("case ids are sanitized", func(t *testing.T) {
		assert.Equal(t, "ictcf-Patient_12-0000.png", SliceFilename("ictcf", "Patient 12", 0))
		assert.NotContains(t, SliceFilename("x", "a/b\\c", 1), "/")
	})
}

func TestLoadIDSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.txt")
	content := "case-1\n\n# poor quality\ncase-2\n  case-3  \n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	ids, err := loadIDSet(path)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Contains(t, ids, "case-1")
	assert.Contains(t, ids, "case-2")
	assert.Contains(t, ids, "case-3")
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.csv")
	content := "case_id,label\ncase-1,NCP\ncase-2,Normal\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	rows, err := loadCSV(path, true)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"case-1", "NCP"}, rows[0])

	rows, err = loadCSV(path, false)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestListCaseDirsSorted(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, d), 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0644))

	dirs, err := listCaseDirs(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, dirs)
}
