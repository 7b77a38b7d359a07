// Package circle crops still images to their inscribed circle.
//
// Mask applies a hard edge: a pixel is kept when its centre lies inside or on
// the circle, and cleared to fully transparent otherwise. The result depends
// only on the input pixels, so the same image always yields the same output.
package circle

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"

	// Registered decoders for Decode.
	_ "image/gif"
	_ "image/jpeg"

	_ "golang.org/x/image/webp"
)

// DefaultMaxPixels bounds the decoded size to about 160MB of NRGBA pixels.
const DefaultMaxPixels = 40_000_000

// ErrTooLarge reports an image whose declared dimensions exceed the pixel limit.
var ErrTooLarge = errors.New("circle: image too large")

// Inscribed returns the centre and radius of the largest circle that fits in b.
func Inscribed(b image.Rectangle) (cx, cy, r float64) {
	w, h := float64(b.Dx()), float64(b.Dy())
	cx = float64(b.Min.X) + w/2
	cy = float64(b.Min.Y) + h/2
	r = min(w, h) / 2
	return cx, cy, r
}

// Contains reports whether pixel (x, y) of an image with bounds b is inside
// the inscribed circle.
func Contains(b image.Rectangle, x, y int) bool {
	cx, cy, r := Inscribed(b)
	return inside(cx, cy, r*r, x, y)
}

func inside(cx, cy, r2 float64, x, y int) bool {
	dx := float64(x) + 0.5 - cx
	dy := float64(y) + 0.5 - cy
	return dx*dx+dy*dy <= r2
}

// Mask returns a copy of img with every pixel outside the inscribed circle set
// to transparent and every pixel inside made fully opaque. The output has the
// same width and height as img, with its origin at (0, 0).
func Mask(img image.Image) *image.NRGBA {
	b := img.Bounds()
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	cx, cy, r := Inscribed(b)
	r2 := r * r

	src, fast := img.(*image.NRGBA)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !inside(cx, cy, r2, x, y) {
				continue // NewNRGBA is zeroed
			}
			var c color.NRGBA
			if fast {
				c = src.NRGBAAt(x, y)
			} else {
				c = color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			}
			c.A = 0xff
			out.SetNRGBA(x-b.Min.X, y-b.Min.Y, c)
		}
	}
	return out
}

// Decode reads a PNG, JPEG, GIF or WebP image and returns it with its format name.
func Decode(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("circle: decode: %w", err)
	}
	if b := img.Bounds(); b.Empty() {
		return nil, "", fmt.Errorf("circle: decode: empty %s image", format)
	}
	return img, format, nil
}

// DecodeLimited reads only the image header first and refuses images with
// more than maxPixels pixels before any pixel buffer is allocated. A
// non-positive maxPixels disables the check.
func DecodeLimited(data []byte, maxPixels int64) (image.Image, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("circle: decode: %w", err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, format, fmt.Errorf("%w: %s %dx%d exceeds %d pixels",
			ErrTooLarge, format, cfg.Width, cfg.Height, maxPixels)
	}
	return Decode(bytes.NewReader(data))
}

// Encode writes img as PNG.
func Encode(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(w, img); err != nil {
		return fmt.Errorf("circle: encode: %w", err)
	}
	return nil
}

// MaskBytes decodes data under DefaultMaxPixels, masks it and returns the
// PNG encoding.
func MaskBytes(data []byte) ([]byte, error) {
	img, _, err := DecodeLimited(data, DefaultMaxPixels)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, Mask(img)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
