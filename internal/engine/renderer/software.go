package renderer

import (
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/Faultbox/meshview/internal/scene"
)

// ErrNoFrame is returned by Capture before the first Render.
var ErrNoFrame = errors.New("no frame rendered")

// Software renders the background into an in-memory image.
type Software struct {
	width, height int
	frame         *image.RGBA
	rendered      bool
}

// NewSoftware returns a CPU renderer of the given size.
func NewSoftware(width, height int) *Software {
	s := &Software{}
	s.Resize(width, height)
	return s
}

// Resize changes the output size.
func (s *Software) Resize(width, height int) {
	s.width = max(width, 1)
	s.height = max(height, 1)
	s.frame = image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	s.rendered = false
}

// Size returns the output size.
func (s *Software) Size() (int, int) { return s.width, s.height }

// Render draws the frame.
func (s *Software) Render(f Frame) error {
	s.rendered = true
	bg := f.Background
	if bg == nil || bg.Disposed() {
		draw.Draw(s.frame, s.frame.Bounds(), image.Transparent, image.Point{}, draw.Src)
		return nil
	}

	aspect := float32(s.width) / float32(s.height)
	for y := 0; y < s.height; y++ {
		for x := 0; x < s.width; x++ {
			var u, v float32
			if bg.Mapping == scene.MappingEquirectangularReflection && f.Camera != nil {
				ndcX := 2*(float32(x)+0.5)/float32(s.width) - 1
				ndcY := 1 - 2*(float32(y)+0.5)/float32(s.height)
				u, v = equirectUV(f.Camera.Ray(ndcX, ndcY, aspect))
			} else {
				u, v = screenUV(bg.Matrix, x, y, s.width, s.height)
			}
			s.frame.SetRGBA(x, y, sample(bg, u, v))
		}
	}
	return nil
}

// Capture returns a copy of the last frame.
func (s *Software) Capture() (image.Image, error) {
	if !s.rendered {
		return nil, ErrNoFrame
	}
	out := image.NewRGBA(s.frame.Bounds())
	copy(out.Pix, s.frame.Pix)
	return out, nil
}

// At returns one pixel of the last frame.
func (s *Software) At(x, y int) color.RGBA { return s.frame.RGBAAt(x, y) }

// Close is a no-op.
func (s *Software) Close() {}
