// Package renderer draws the viewer frame. Software renders on the CPU for
// headless runs and tests; GL renders with OpenGL 4.1 in a window.
package renderer

import (
	"image"
	"image/color"
	gomath "math"

	"github.com/Faultbox/meshview/internal/engine/camera"
	"github.com/Faultbox/meshview/internal/scene"
	"github.com/Faultbox/meshview/pkg/math"
)

// Frame is what one render pass needs.
type Frame struct {
	// Background is nil for a transparent background.
	Background *scene.Texture
	Camera     *camera.Camera
}

// Renderer draws frames and reads them back.
type Renderer interface {
	Resize(width, height int)
	Size() (width, height int)
	Render(f Frame) error
	// Capture returns the last rendered frame, top row first.
	Capture() (image.Image, error)
	Close()
}

// screenUV maps a pixel center to texture coordinates through the
// row-major 3x3 UV transform. v grows upward.
func screenUV(m [9]float32, x, y, width, height int) (u, v float32) {
	su := (float32(x) + 0.5) / float32(width)
	sv := 1 - (float32(y)+0.5)/float32(height)
	return m[0]*su + m[1]*sv + m[2], m[3]*su + m[4]*sv + m[5]
}

// equirectUV maps a view direction to equirectangular texture coordinates.
func equirectUV(dir math.Vec3) (u, v float32) {
	y := min(max(float64(dir.Y), -1), 1)
	u = float32(gomath.Atan2(float64(dir.Z), float64(dir.X))/(2*gomath.Pi) + 0.5)
	v = float32(gomath.Asin(y)/gomath.Pi + 0.5)
	return u, v
}

// sample reads a texture at (u, v) with clamp-to-edge addressing. Pixel
// textures store the bottom row first and are filtered bilinearly. Decoded
// images store the top row first and are sampled nearest.
func sample(t *scene.Texture, u, v float32) color.RGBA {
	u = min(max(u, 0), 1)
	v = min(max(v, 0), 1)
	if t.Image != nil {
		b := t.Image.Bounds()
		x := b.Min.X + min(int(u*float32(b.Dx())), b.Dx()-1)
		y := b.Min.Y + min(int((1-v)*float32(b.Dy())), b.Dy()-1)
		return color.RGBAModel.Convert(t.Image.At(x, y)).(color.RGBA)
	}
	if t.Width == 0 || t.Height == 0 || len(t.Pixels) < t.Width*t.Height*4 {
		return color.RGBA{}
	}

	fx := u*float32(t.Width) - 0.5
	fy := v*float32(t.Height) - 0.5
	x0, y0 := int(gomath.Floor(float64(fx))), int(gomath.Floor(float64(fy)))
	ax, ay := fx-float32(x0), fy-float32(y0)

	texel := func(x, y int) [4]float32 {
		x = min(max(x, 0), t.Width-1)
		y = min(max(y, 0), t.Height-1)
		i := 4 * (y*t.Width + x)
		p := t.Pixels[i : i+4]
		return [4]float32{float32(p[0]), float32(p[1]), float32(p[2]), float32(p[3])}
	}
	c00, c10 := texel(x0, y0), texel(x0+1, y0)
	c01, c11 := texel(x0, y0+1), texel(x0+1, y0+1)

	var out [4]uint8
	for i := range out {
		bottom := c00[i] + (c10[i]-c00[i])*ax
		top := c01[i] + (c11[i]-c01[i])*ax
		out[i] = uint8(min(max(bottom+(top-bottom)*ay+0.5, 0), 255))
	}
	return color.RGBA{out[0], out[1], out[2], out[3]}
}
