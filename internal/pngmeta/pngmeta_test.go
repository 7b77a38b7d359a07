package pngmeta_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prilive-com/circlebot/internal/pngmeta"
)

func encoded(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestInsert_RoundTrip(t *testing.T) {
	src := encoded(t)

	out, err := pngmeta.Insert(src,
		pngmeta.Text{Key: pngmeta.KeyAuthor, Value: "Ahmed"},
		pngmeta.Text{Key: pngmeta.KeyTitle, Value: "circlebot"},
	)
	require.NoError(t, err)

	texts, err := pngmeta.Read(out)
	require.NoError(t, err)
	assert.Equal(t, []pngmeta.Text{
		{Key: "Author", Value: "Ahmed"},
		{Key: "Title", Value: "circlebot"},
	}, texts)

	// Still a decodable PNG with the same pixels.
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 4, 3), img.Bounds())
	_, _, _, a := img.At(1, 1).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}

func TestInsert_SkipsEmpty(t *testing.T) {
	src := encoded(t)

	out, err := pngmeta.Insert(src, pngmeta.Text{Key: pngmeta.KeyAuthor, Value: ""})
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestInsert_RejectsNonPNG(t *testing.T) {
	_, err := pngmeta.Insert([]byte("GIF89a not a png at all, definitely long enough"))
	assert.ErrorIs(t, err, pngmeta.ErrNotPNG)
}

func TestInsert_RejectsLongKeyword(t *testing.T) {
	_, err := pngmeta.Insert(encoded(t), pngmeta.Text{Key: string(bytes.Repeat([]byte("k"), 80)), Value: "v"})
	assert.Error(t, err)
}

func TestRead_DetectsCorruption(t *testing.T) {
	out, err := pngmeta.Insert(encoded(t), pngmeta.Text{Key: "Title", Value: "x"})
	require.NoError(t, err)

	// Flip a byte inside the tEXt payload.
	i := bytes.Index(out, []byte("Title"))
	require.Positive(t, i)
	out[i] ^= 0xff

	_, err = pngmeta.Read(out)
	assert.Error(t, err)
}
