package source

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/covidct/builder/internal/models"
	"github.com/covidct/builder/internal/testutil"
	"github.com/covidct/builder/internal/volume"
	"github.com/covidct/builder/internal/window"
)

// maskWithSlices builds a segmentation mask volume where only the given
// slice indices carry lesion voxels.
func maskWithSlices(width, height, depth int, annotated ...int) *volume.Volume {
	mask := &volume.Volume{
		Data:   make([]float64, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
	n := width * height
	for _, z := range annotated {
		for i := z * n; i < (z+1)*n; i++ {
			mask.Data[i] = 1
		}
	}
	return mask
}

func TestCOVID1920Process(t *testing.T) {
	root := t.TempDir()
	vol := testutil.MakeVolume(16, 16, 3, -900, 0)

	testutil.WriteNIfTI(t, filepath.Join(root, "volumes", "case1_ct.nii.gz"), vol)
	testutil.WriteNIfTI(t, filepath.Join(root, "masks", "case1_seg.nii.gz"), maskWithSlices(16, 16, 3, 1))

	cfg := Config{
		Root:       root,
		OutDir:     t.TempDir(),
		TargetSize: 8,
		Window:     window.DefaultLung,
	}
	entries, err := NewCOVID1920Processor().Process(cfg)
	require.NoError(t, err)

	t.Run("only mask-annotated slices survive", func(t *testing.T) {
		require.Len(t, entries, 1)
		assert.Equal(t, 1, entries[0].SliceIndex)
		assert.Equal(t, models.ClassCOVID19, entries[0].Class)
		assert.Equal(t, "case1", entries[0].CaseID)
	})
}

func TestCOVID1920MaskMismatchSkipsCase(t *testing.T) {
	root := t.TempDir()
	good := testutil.MakeVolume(16, 16, 2, -900, 0)

	testutil.WriteNIfTI(t, filepath.Join(root, "volumes", "good_ct.nii.gz"), good)
	testutil.WriteNIfTI(t, filepath.Join(root, "masks", "good_seg.nii.gz"), maskWithSlices(16, 16, 2, 0, 1))

	// Mask dimensions disagree with the volume; the case is skipped,
	// the run continues.
	testutil.WriteNIfTI(t, filepath.Join(root, "volumes", "bad_ct.nii.gz"), testutil.MakeVolume(16, 16, 2, -900, 0))
	testutil.WriteNIfTI(t, filepath.Join(root, "masks", "bad_seg.nii.gz"), maskWithSlices(8, 8, 2, 0))

	cfg := Config{
		Root:       root,
		OutDir:     t.TempDir(),
		TargetSize: 8,
		Window:     window.DefaultLung,
	}
	entries, err := NewCOVID1920Processor().Process(cfg)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "good", e.CaseID)
	}
}

func TestCOVID1920MissingMaskSkipsCase(t *testing.T) {
	root := t.TempDir()
	testutil.WriteNIfTI(t, filepath.Join(root, "volumes", "lone_ct.nii.gz"), testutil.MakeVolume(16, 16, 2, -900, 0))

	cfg := Config{
		Root:       root,
		OutDir:     t.TempDir(),
		TargetSize: 8,
		Window:     window.DefaultLung,
	}
	entries, err := NewCOVID1920Processor().Process(cfg)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
