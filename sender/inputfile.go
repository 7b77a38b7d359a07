package sender

import (
	"bytes"
	"encoding/json"
	"io"
)

// MaxUploadSize is the maximum file size for Bot API uploads (50MB).
const MaxUploadSize = 50 << 20

// InputFile is either a reference to a file already on Telegram's servers or
// content to upload.
type InputFile struct {
	// FileID references an existing file on Telegram servers.
	FileID string

	// Reader is single-use upload content; a retried request would send an
	// empty file. Prefer Source.
	Reader io.Reader

	// Source returns a fresh reader per attempt and takes priority over Reader.
	Source func() io.Reader

	// FileName is required for uploads.
	FileName string

	// ContentType of the upload part. Empty derives it from FileName.
	ContentType string

	size      int64
	sizeKnown bool
}

// FromReader creates a single-use InputFile from an io.Reader.
func FromReader(r io.Reader, filename string) InputFile {
	return InputFile{Reader: r, FileName: filename}
}

// FromBytes creates a retry-safe InputFile from in-memory bytes.
func FromBytes(data []byte, filename string) InputFile {
	return InputFile{
		Source:   func() io.Reader { return bytes.NewReader(data) },
		FileName:  filename,
		size:      int64(len(data)),
		sizeKnown: true,
	}
}

// FromFileID creates an InputFile referencing an existing Telegram file.
func FromFileID(fileID string) InputFile {
	return InputFile{FileID: fileID}
}

// WithContentType returns a copy of f uploaded with the given content type.
func (f InputFile) WithContentType(ct string) InputFile {
	f.ContentType = ct
	return f
}

// IsUpload returns true if this InputFile requires upload.
func (f InputFile) IsUpload() bool {
	return f.Reader != nil || f.Source != nil
}

// IsEmpty returns true if the InputFile has no value set.
func (f InputFile) IsEmpty() bool {
	return f.FileID == "" && !f.IsUpload()
}

// Size returns the upload size and whether it is known up front. Only
// FromBytes uploads know their size.
func (f InputFile) Size() (int64, bool) {
	return f.size, f.sizeKnown
}

// OpenReader returns a reader for the file content.
func (f InputFile) OpenReader() io.Reader {
	if f.Source != nil {
		return f.Source()
	}
	return f.Reader
}

// MarshalJSON encodes a file_id reference. Uploads never go through JSON;
// they are routed to multipart encoding by BuildMultipartRequest.
func (f InputFile) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.FileID)
}
