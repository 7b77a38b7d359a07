// Package pngmeta embeds tEXt metadata chunks into encoded PNG data.
package pngmeta

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Standard tEXt keywords.
const (
	KeyAuthor = "Author"
	KeyTitle  = "Title"
)

var signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// ErrNotPNG is returned when the input does not start with a PNG IHDR.
var ErrNotPNG = errors.New("pngmeta: not a PNG stream")

// Text is one keyword/value pair.
type Text struct {
	Key   string
	Value string
}

// Insert returns png with a tEXt chunk per entry placed right after IHDR.
// Entries with an empty key or value are skipped.
func Insert(png []byte, entries ...Text) ([]byte, error) {
	// signature + IHDR (4 len + 4 type + 13 data + 4 crc)
	const ihdrEnd = 8 + 4 + 4 + 13 + 4
	if len(png) < ihdrEnd || !bytes.Equal(png[:8], signature) || string(png[12:16]) != "IHDR" {
		return nil, ErrNotPNG
	}

	var out bytes.Buffer
	out.Grow(len(png) + 64*len(entries))
	out.Write(png[:ihdrEnd])
	for _, e := range entries {
		if e.Key == "" || e.Value == "" {
			continue
		}
		if len(e.Key) > 79 || bytes.IndexByte([]byte(e.Key), 0) >= 0 {
			return nil, fmt.Errorf("pngmeta: invalid keyword %q", e.Key)
		}
		writeChunk(&out, "tEXt", append(append([]byte(e.Key), 0), e.Value...))
	}
	out.Write(png[ihdrEnd:])
	return out.Bytes(), nil
}

func writeChunk(w *bytes.Buffer, typ string, data []byte) {
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[:4], uint32(len(data)))
	copy(hdr[4:], typ)
	w.Write(hdr[:])
	w.Write(data)

	crc := crc32.NewIEEE()
	crc.Write(hdr[4:])
	crc.Write(data)
	var sum [4]byte
	binary.BigEndian.PutUint32(sum[:], crc.Sum32())
	w.Write(sum[:])
}

// Read returns every tEXt entry found in png.
func Read(png []byte) ([]Text, error) {
	if len(png) < 8 || !bytes.Equal(png[:8], signature) {
		return nil, ErrNotPNG
	}
	var out []Text
	for p := 8; p+12 <= len(png); {
		n := int(binary.BigEndian.Uint32(png[p : p+4]))
		typ := string(png[p+4 : p+8])
		end := p + 8 + n + 4
		if n < 0 || end > len(png) {
			return nil, fmt.Errorf("pngmeta: truncated %s chunk", typ)
		}
		data := png[p+8 : p+8+n]
		if binary.BigEndian.Uint32(png[end-4:end]) != crc32.ChecksumIEEE(png[p+4:p+8+n]) {
			return nil, fmt.Errorf("pngmeta: bad crc in %s chunk", typ)
		}
		if typ == "tEXt" {
			if i := bytes.IndexByte(data, 0); i > 0 {
				out = append(out, Text{Key: string(data[:i]), Value: string(data[i+1:])})
			}
		}
		if typ == "IEND" {
			break
		}
		p = end
	}
	return out, nil
}
