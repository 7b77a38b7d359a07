package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Capture is one request seen by MockTelegramServer.
type Capture struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
}

func (c *Capture) AssertMethod(t *testing.T, expected string) {
	t.Helper()
	assert.Equal(t, expected, c.Method, "unexpected method")
}

// AssertContentType checks that the Content-Type contains expected, which
// ignores multipart boundaries.
func (c *Capture) AssertContentType(t *testing.T, expected string) {
	t.Helper()
	assert.Contains(t, c.ContentType, expected, "unexpected content-type")
}

// AssertJSONField compares a top-level field of a JSON body. Numbers decode
// as float64.
func (c *Capture) AssertJSONField(t *testing.T, field string, expected any) {
	t.Helper()
	assert.Equal(t, expected, c.BodyMap(t)[field], "unexpected value for field: "+field)
}

func (c *Capture) BodyMap(t *testing.T) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(c.Body, &m), "failed to decode JSON body")
	return m
}

// MultipartForm parses a multipart/form-data body.
func (c *Capture) MultipartForm(t *testing.T) *multipart.Form {
	t.Helper()
	_, params, err := mime.ParseMediaType(c.ContentType)
	require.NoError(t, err, "failed to parse content-type")
	form, err := multipart.NewReader(bytes.NewReader(c.Body), params["boundary"]).ReadForm(32 << 20)
	require.NoError(t, err, "failed to parse multipart body")
	return form
}

// MultipartFile returns the content of the uploaded file in field.
func (c *Capture) MultipartFile(t *testing.T, field string) []byte {
	t.Helper()
	files := c.MultipartForm(t).File[field]
	require.NotEmpty(t, files, "file field should exist: "+field)
	f, err := files[0].Open()
	require.NoError(t, err)
	defer f.Close()
	data, err := io.ReadAll(f)
	require.NoError(t, err)
	return data
}
