package system

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImagePoolClearsOnGet(t *testing.T) {
	p := NewImagePool()
	size := image.Pt(4, 3)

	img := p.Get(size)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Rect)
	img.Pix[0] = 255
	p.Put(img)

	again := p.Get(size)
	assert.Equal(t, uint8(0), again.Pix[0])
	gets, allocs := p.Stats()
	assert.Equal(t, int64(2), gets)
	assert.GreaterOrEqual(t, allocs, int64(1))
}

func TestImagePoolDropsSubImages(t *testing.T) {
	p := NewImagePool()
	img := p.Get(image.Pt(8, 8))
	sub := img.SubImage(image.Rect(2, 2, 4, 4)).(*image.RGBA)
	p.Put(sub)
	p.Put(nil)
	_, allocs := p.Stats()
	assert.Equal(t, int64(1), allocs)
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "a.yaml")
	newer := filepath.Join(dir, "b.YAML")
	require.NoError(t, os.WriteFile(old, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(newer, []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.txt"), []byte("x"), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	got, err := FindLatest(dir, ".yaml", ".yml")
	require.NoError(t, err)
	assert.Equal(t, newer, got)

	_, err = FindLatest(dir, ".pdf")
	assert.Error(t, err)
}

func TestReadMemory(t *testing.T) {
	st, err := ReadMemory()
	require.NoError(t, err)
	assert.NotZero(t, st.RSS)
}
