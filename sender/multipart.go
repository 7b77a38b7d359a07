package sender

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"mime/multipart"
	"net/textproto"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// FilePart represents a file to be uploaded via multipart.
type FilePart struct {
	FieldName   string    // e.g. "sticker"
	FileName    string    // e.g. "circle.png"
	ContentType string    // empty derives it from FileName
	Reader      io.Reader // File content
}

// MultipartRequest represents a request with files and parameters.
type MultipartRequest struct {
	Files  []FilePart
	Params map[string]string
}

// HasUploads returns true if the request contains file uploads.
func (r MultipartRequest) HasUploads() bool {
	return len(r.Files) > 0
}

// MultipartEncoder encodes requests as multipart/form-data.
type MultipartEncoder struct {
	w *multipart.Writer
}

// NewMultipartEncoder creates a new multipart encoder.
func NewMultipartEncoder(w io.Writer) *MultipartEncoder {
	return &MultipartEncoder{w: multipart.NewWriter(w)}
}

// ContentType returns the Content-Type header value including boundary.
func (e *MultipartEncoder) ContentType() string {
	return e.w.FormDataContentType()
}

// Close writes the trailing boundary.
func (e *MultipartEncoder) Close() error {
	return e.w.Close()
}

// Encode writes params in key order, then the files.
func (e *MultipartEncoder) Encode(req MultipartRequest) error {
	for _, name := range slices.Sorted(maps.Keys(req.Params)) {
		if err := e.w.WriteField(name, req.Params[name]); err != nil {
			return fmt.Errorf("param %s: %w", name, err)
		}
	}
	for _, file := range req.Files {
		if err := e.writeFile(file); err != nil {
			return fmt.Errorf("file %s: %w", file.FieldName, err)
		}
	}
	return nil
}

// EncodeAndClose encodes req and closes the writer, returning the first error.
func (e *MultipartEncoder) EncodeAndClose(req MultipartRequest) error {
	if err := e.Encode(req); err != nil {
		return fmt.Errorf("failed to encode multipart request: %w", err)
	}
	if err := e.Close(); err != nil {
		return fmt.Errorf("failed to close multipart encoder: %w", err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func (e *MultipartEncoder) writeFile(file FilePart) error {
	ct := file.ContentType
	if ct == "" {
		ct = mime.TypeByExtension(filepath.Ext(file.FileName))
	}
	if ct == "" {
		ct = "application/octet-stream"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(file.FieldName), quoteEscaper.Replace(file.FileName)))
	h.Set("Content-Type", ct)

	part, err := e.w.CreatePart(h)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	_, err = io.Copy(part, file.Reader)
	return err
}

// BuildMultipartRequest creates a MultipartRequest from a typed request struct.
// Zero-valued fields are skipped; InputFile uploads become file parts and
// complex values are JSON encoded.
func BuildMultipartRequest(req any) (MultipartRequest, error) {
	result := MultipartRequest{Params: make(map[string]string)}

	rv := reflect.ValueOf(req)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return result, nil
	}

	rt := rv.Type()
	for i := range rt.NumField() {
		field := rt.Field(i)
		value := rv.Field(i)
		if !field.IsExported() || value.IsZero() {
			continue
		}

		name := jsonFieldName(field)
		if name == "-" {
			continue
		}

		if err := addField(&result, name, value.Interface()); err != nil {
			return result, fmt.Errorf("field %s: %w", name, err)
		}
	}

	return result, nil
}

func addField(req *MultipartRequest, name string, v any) error {
	switch v := v.(type) {
	case InputFile:
		return addInputFile(req, name, v)
	case string:
		req.Params[name] = v
	case int:
		req.Params[name] = strconv.Itoa(v)
	case int64:
		req.Params[name] = strconv.FormatInt(v, 10)
	case bool:
		req.Params[name] = strconv.FormatBool(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("JSON marshal: %w", err)
		}
		req.Params[name] = string(data)
	}
	return nil
}

var errEmptyInputFile = errors.New("InputFile must have FileID or content set")

func addInputFile(req *MultipartRequest, name string, file InputFile) error {
	switch {
	case file.FileID != "":
		req.Params[name] = file.FileID
	case file.IsUpload():
		req.Files = append(req.Files, FilePart{
			FieldName:   name,
			FileName:    file.FileName,
			ContentType: file.ContentType,
			Reader:      file.OpenReader(),
		})
	default:
		return errEmptyInputFile
	}
	return nil
}

func jsonFieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "" {
		return strings.ToLower(field.Name)
	}
	name, _, _ := strings.Cut(tag, ",")
	return name
}
