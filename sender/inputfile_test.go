package sender

import (
	"io"
	"reflect"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInputFile_FromReader(t *testing.T) {
	f := FromReader(strings.NewReader("data"), "a.png")
	assert.True(t, f.IsUpload())
	assert.False(t, f.IsEmpty())
	assert.Equal(t, "a.png", f.FileName)
}

func TestInputFile_FromBytesIsReplayable(t *testing.T) {
	f := FromBytes([]byte("payload"), "circle.png")
	require.True(t, f.IsUpload())

	first, err := io.ReadAll(f.OpenReader())
	require.NoError(t, err)
	second, err := io.ReadAll(f.OpenReader())
	require.NoError(t, err)

	assert.Equal(t, "payload", string(first))
	assert.Equal(t, first, second)
}

func TestInputFile_FromFileID(t *testing.T) {
	f := FromFileID("abc")
	assert.False(t, f.IsUpload())
	assert.False(t, f.IsEmpty())

	data, err := f.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, string(data))
}

func TestInputFile_IsEmpty(t *testing.T) {
	assert.True(t, InputFile{}.IsEmpty())
	assert.True(t, InputFile{FileName: "x.png"}.IsEmpty())
}

func TestInputFile_Size(t *testing.T) {
	n, ok := FromBytes(make([]byte, 12), "a.png").Size()
	assert.True(t, ok)
	assert.Equal(t, int64(12), n)

	_, ok = FromReader(strings.NewReader("abc"), "a.png").Size()
	assert.False(t, ok)
}

func TestValidateSendSticker_Sizes(t *testing.T) {
	err := validateSendSticker(SendStickerRequest{ChatID: int64(1), Sticker: FromBytes(nil, "a.png")})
	assert.Error(t, err)

	err = validateSendSticker(SendStickerRequest{ChatID: int64(1), Sticker: FromBytes(make([]byte, MaxUploadSize+1), "a.png")})
	assert.Error(t, err)

	err = validateSendSticker(SendStickerRequest{ChatID: int64(1), Sticker: FromBytes([]byte("png"), "a.png")})
	assert.NoError(t, err)
}

func reflectField(v any, i int) reflect.StructField {
	return reflect.TypeOf(v).Field(i)
}
