package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestProcessRendersAllSizes(t *testing.T) {
	data := pngBytes(t, 1000, 500)

	res, err := NewImaging().Process(data, "image/png")
	require.NoError(t, err)

	assert.Equal(t, "png", res.Format)
	assert.Equal(t, "image/png", res.ContentType())
	assert.Equal(t, 1000, res.Width)
	require.Len(t, res.Variants, 4)

	thumb := res.Variants[SizeThumbnail]
	assert.Equal(t, 200, thumb.Width)
	assert.Equal(t, 200, thumb.Height)

	medium := res.Variants[SizeMedium]
	assert.Equal(t, 800, medium.Width)
	assert.Equal(t, 400, medium.Height)

	large := res.Variants[SizeLarge]
	assert.Equal(t, 1000, large.Width, "large never upscales")

	assert.Equal(t, data, res.Variants[SizeOriginal].Data)
}

func TestProcessRejectsGarbage(t *testing.T) {
	_, err := NewImaging().Process([]byte("not an image"), "image/png")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestSizeValid(t *testing.T) {
	assert.True(t, SizeMedium.Valid())
	assert.False(t, Size("huge").Valid())
}
