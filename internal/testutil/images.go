package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

// SolidImage returns a w x h image filled with c.
func SolidImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// EncodePNG encodes img as PNG.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// TestPNG returns an opaque red PNG of the given size.
func TestPNG(t testing.TB, w, h int) []byte {
	t.Helper()
	return EncodePNG(t, SolidImage(w, h, color.NRGBA{R: 255, A: 255}))
}

// DecodePNG decodes PNG bytes.
func DecodePNG(t testing.TB, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	return img
}

// HugePNG returns a small PNG whose header declares a w x h image. Only the
// header is valid for that size, so decoders that trust it allocate the full
// pixel buffer before failing on the data.
func HugePNG(t testing.TB, w, h uint32) []byte {
	t.Helper()
	data := TestPNG(t, 1, 1)
	// Signature (8), IHDR length and type (8), then width and height.
	require.Equal(t, "IHDR", string(data[12:16]))
	binary.BigEndian.PutUint32(data[16:20], w)
	binary.BigEndian.PutUint32(data[20:24], h)
	binary.BigEndian.PutUint32(data[29:33], crc32.ChecksumIEEE(data[12:29]))
	return data
}
