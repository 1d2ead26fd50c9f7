// Package texture decodes the images used for environment maps and
// material textures.
package texture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrUnknownFormat is returned when data matches no supported image format.
var ErrUnknownFormat = errors.New("unknown image format")

// Decode decodes an image, sniffing its format from content. nameHint is
// only consulted for formats without a signature, which today means TGA.
func Decode(data []byte, nameHint string) (image.Image, string, error) {
	kind, _ := filetype.Match(data)
	if kind != filetype.Unknown {
		if !filetype.IsImage(data) {
			return nil, kind.Extension, fmt.Errorf("%w: %s is not an image", ErrUnknownFormat, kind.MIME.Value)
		}
		img, format, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, kind.Extension, fmt.Errorf("decode %s: %w", kind.Extension, err)
		}
		return img, format, nil
	}

	if strings.EqualFold(filepath.Ext(nameHint), ".tga") {
		img, err := DecodeTGA(data)
		if err != nil {
			return nil, "tga", err
		}
		return img, "tga", nil
	}

	// Let the registered decoders have a go before giving up.
	if img, format, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, format, nil
	}
	return nil, "", ErrUnknownFormat
}

// ImageToRGBA converts any image.Image to *image.RGBA with bounds starting
// at the origin.
func ImageToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r16, g16, b16, a16 := img.At(x, y).RGBA()
			rgba.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, color.RGBA{
				R: uint8(r16 >> 8), G: uint8(g16 >> 8), B: uint8(b16 >> 8), A: uint8(a16 >> 8),
			})
		}
	}
	return rgba
}

// FlipVertical returns a copy of img with rows reversed. GL textures and
// framebuffers store the bottom row first.
func FlipVertical(img *image.RGBA) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(b)
	stride := img.Stride
	h := b.Dy()
	for y := 0; y < h; y++ {
		copy(out.Pix[y*stride:(y+1)*stride], img.Pix[(h-1-y)*stride:(h-y)*stride])
	}
	return out
}
