package texture

import (
	"fmt"
	"image"
	"image/color"
)

// TGA image type constants.
const (
	TGATypeUncompressed = 2  // Uncompressed true-color
	TGATypeRLE          = 10 // RLE compressed true-color
)

// DecodeTGA decodes a TGA image file.
// Supports uncompressed true-color (type 2) and RLE compressed (type 10) files
// at 24 or 32 bits per pixel.
func DecodeTGA(data []byte) (image.Image, error) {
	if len(data) < 18 {
		return nil, fmt.Errorf("TGA data too short")
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("color-mapped TGA not supported")
	}
	if imageType != TGATypeUncompressed && imageType != TGATypeRLE {
		return nil, fmt.Errorf("unsupported TGA type %d (only uncompressed/RLE true-color supported)", imageType)
	}
	if bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("unsupported TGA bit depth %d (only 24/32 supported)", bpp)
	}

	offset := 18 + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("TGA data truncated")
	}

	w := tgaWriter{
		img:         image.NewRGBA(image.Rect(0, 0, width, height)),
		width:       width,
		height:      height,
		bpp:         bpp / 8,
		topToBottom: descriptor&0x20 != 0,
	}
	pixels := data[offset:]

	if imageType == TGATypeUncompressed {
		if len(pixels) < width*height*w.bpp {
			return nil, fmt.Errorf("TGA pixel data truncated")
		}
		for i := 0; i < width*height; i++ {
			w.put(i, w.pixel(pixels[i*w.bpp:]))
		}
		return w.img, nil
	}

	w.decodeRLE(pixels)
	return w.img, nil
}

type tgaWriter struct {
	img           *image.RGBA
	width, height int
	bpp           int
	topToBottom   bool
}

// pixel reads one BGR(A) pixel.
func (w *tgaWriter) pixel(p []byte) color.RGBA {
	c := color.RGBA{R: p[2], G: p[1], B: p[0], A: 255}
	if w.bpp == 4 {
		c.A = p[3]
	}
	return c
}

// put stores pixel number idx, flipping rows for bottom-up files.
func (w *tgaWriter) put(idx int, c color.RGBA) {
	x := idx % w.width
	y := idx / w.width
	if !w.topToBottom {
		y = w.height - 1 - y
	}
	w.img.SetRGBA(x, y, c)
}

// decodeRLE expands run-length packets. Truncated input leaves the rest of
// the image transparent.
func (w *tgaWriter) decodeRLE(data []byte) {
	total := w.width * w.height
	idx, pos := 0, 0
	for idx < total && pos < len(data) {
		packet := data[pos]
		pos++
		count := int(packet&0x7F) + 1

		if packet&0x80 != 0 {
			if pos+w.bpp > len(data) {
				return
			}
			c := w.pixel(data[pos:])
			pos += w.bpp
			for i := 0; i < count && idx < total; i++ {
				w.put(idx, c)
				idx++
			}
			continue
		}
		for i := 0; i < count && idx < total; i++ {
			if pos+w.bpp > len(data) {
				return
			}
			w.put(idx, w.pixel(data[pos:]))
			pos += w.bpp
			idx++
		}
	}
}
