package analyzer

import (
	"image"
	"image/color"
	"image/draw"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func canvas(w, h int, boxes ...image.Rectangle) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Rect, image.NewUniform(color.Black), image.Point{}, draw.Src)
	for _, b := range boxes {
		draw.Draw(img, b, image.NewUniform(color.White), image.Point{}, draw.Src)
	}
	return img
}

func TestContrastDetectorFindsBlock(t *testing.T) {
	img := canvas(200, 200, image.Rect(50, 50, 150, 150))

	blocks, err := NewContrastDetector().Detect(img)
	require.NoError(t, err)
	require.NotEmpty(t, blocks)

	r := blocks[0].Rect
	assert.GreaterOrEqual(t, r.Dx(), 80)
	assert.GreaterOrEqual(t, r.Dy(), 80)
	assert.True(t, r.Overlaps(image.Rect(50, 50, 150, 150)))
}

func TestContrastDetectorOrdersByArea(t *testing.T) {
	img := canvas(300, 200, image.Rect(10, 10, 40, 40), image.Rect(150, 50, 280, 180))

	blocks, err := NewContrastDetector().Detect(img)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.True(t, blocks[0].Rect.Overlaps(image.Rect(150, 50, 280, 180)))
	assert.Greater(t, blocks[0].Area, blocks[1].Area)
}

func TestContrastDetectorIgnoresSmallAndFlat(t *testing.T) {
	d := NewContrastDetector()

	blocks, err := d.Detect(canvas(100, 100))
	require.NoError(t, err)
	assert.Empty(t, blocks)

	blocks, err = d.Detect(canvas(100, 100, image.Rect(10, 10, 13, 13)))
	require.NoError(t, err)
	assert.Empty(t, blocks)

	blocks, err = d.Detect(canvas(2, 2))
	require.NoError(t, err)
	assert.Empty(t, blocks)
}

func TestContrastDetectorOffsetBounds(t *testing.T) {
	img := canvas(200, 200, image.Rect(120, 120, 180, 180))
	sub := img.SubImage(image.Rect(100, 100, 200, 200))

	d := NewContrastDetector()
	d.Workers = 1
	blocks, err := d.Detect(sub)
	require.NoError(t, err)
	require.NotEmpty(t, blocks)
	assert.True(t, blocks[0].Rect.In(sub.Bounds()))
	assert.True(t, blocks[0].Rect.Overlaps(image.Rect(120, 120, 180, 180)))
}

func TestFocus(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 100)
	f, ok := Focus([]Block{{Rect: image.Rect(100, 0, 200, 50)}}, bounds)
	require.True(t, ok)
	assert.InDelta(t, 0.75, f.X, 1e-9)
	assert.InDelta(t, 0.25, f.Y, 1e-9)

	_, ok = Focus(nil, bounds)
	assert.False(t, ok)
}

func TestNewDetector(t *testing.T) {
	tests := []struct {
		variant string
		wantErr bool
	}{
		{"contrast", false},
		{"", false},
		{"ocr", true},
	}
	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			d, err := NewDetector(tt.variant)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownDetector)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, d)
		})
	}
}
