package renderer

import (
	"fmt"
	"image"
	"image/draw"

	"github.com/go-gl/gl/v4.1-core/gl"
	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/engine/capture"
	"github.com/Faultbox/meshview/internal/engine/framebuffer"
	"github.com/Faultbox/meshview/internal/engine/shader"
	"github.com/Faultbox/meshview/internal/scene"
)

const backgroundVertexShader = `
#version 410 core

out vec2 vNdc;

void main() {
	// Fullscreen triangle from the vertex index.
	vec2 pos = vec2((gl_VertexID << 1) & 2, gl_VertexID & 2) * 2.0 - 1.0;
	vNdc = pos;
	gl_Position = vec4(pos, 0.0, 1.0);
}
`

const backgroundFragmentShader = `
#version 410 core

in vec2 vNdc;
out vec4 FragColor;

uniform sampler2D uTexture;
uniform int uEquirect;
uniform mat3 uUvTransform;
uniform vec3 uForward;
uniform vec3 uRight;
uniform vec3 uUp;
uniform vec2 uRayScale;

const float PI = 3.141592653589793;

void main() {
	vec2 uv;
	if (uEquirect == 1) {
		vec3 dir = normalize(uForward + uRight * vNdc.x * uRayScale.x + uUp * vNdc.y * uRayScale.y);
		uv.x = atan(dir.z, dir.x) / (2.0 * PI) + 0.5;
		uv.y = asin(clamp(dir.y, -1.0, 1.0)) / PI + 0.5;
	} else {
		uv = (uUvTransform * vec3(vNdc * 0.5 + 0.5, 1.0)).xy;
	}
	FragColor = texture(uTexture, uv);
}
`

// Config holds GL renderer configuration.
type Config struct {
	Width  int
	Height int
}

// GL renders with OpenGL into an offscreen framebuffer and blits it to
// the window.
type GL struct {
	config Config
	log    *zap.Logger

	program *shader.Program
	vao     uint32
	fb      *framebuffer.Framebuffer

	texture  uint32
	uploaded *scene.Texture
	rendered bool
}

// NewGL creates the renderer. It must be called after the OpenGL context
// is current.
func NewGL(cfg Config, log *zap.Logger) (*GL, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	log.Info("OpenGL initialized",
		zap.String("version", gl.GoStr(gl.GetString(gl.VERSION))),
		zap.String("renderer", gl.GoStr(gl.GetString(gl.RENDERER))),
	)

	r := &GL{config: cfg, log: log}
	var err error
	r.program, err = shader.Compile(backgroundVertexShader, backgroundFragmentShader)
	if err != nil {
		return nil, fmt.Errorf("failed to create background program: %w", err)
	}
	r.fb, err = framebuffer.New(int32(cfg.Width), int32(cfg.Height))
	if err != nil {
		r.program.Delete()
		return nil, err
	}
	gl.GenVertexArrays(1, &r.vao)
	gl.GenTextures(1, &r.texture)
	gl.BindTexture(gl.TEXTURE_2D, r.texture)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	return r, nil
}

// Resize handles window resize.
func (r *GL) Resize(width, height int) {
	r.config.Width, r.config.Height = width, height
	r.fb.Resize(int32(width), int32(height))
	r.log.Debug("renderer resized", zap.Int("width", width), zap.Int("height", height))
}

// Size returns the output size.
func (r *GL) Size() (int, int) { return r.config.Width, r.config.Height }

// Render draws the frame and presents it.
func (r *GL) Render(f Frame) error {
	r.fb.Bind()
	gl.ClearColor(0, 0, 0, 0)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	if bg := f.Background; bg != nil && !bg.Disposed() {
		r.upload(bg)
		r.program.Use()
		gl.ActiveTexture(gl.TEXTURE0)
		gl.BindTexture(gl.TEXTURE_2D, r.texture)
		gl.Uniform1i(r.program.Uniform("uTexture"), 0)

		equirect := int32(0)
		if bg.Mapping == scene.MappingEquirectangularReflection && f.Camera != nil {
			equirect = 1
			forward, right, up := f.Camera.Basis()
			sx, sy := f.Camera.RayScale(float32(r.config.Width) / float32(max(r.config.Height, 1)))
			gl.Uniform3f(r.program.Uniform("uForward"), forward.X, forward.Y, forward.Z)
			gl.Uniform3f(r.program.Uniform("uRight"), right.X, right.Y, right.Z)
			gl.Uniform3f(r.program.Uniform("uUp"), up.X, up.Y, up.Z)
			gl.Uniform2f(r.program.Uniform("uRayScale"), sx, sy)
		}
		gl.Uniform1i(r.program.Uniform("uEquirect"), equirect)
		// Row-major on our side, so upload transposed.
		gl.UniformMatrix3fv(r.program.Uniform("uUvTransform"), 1, true, &bg.Matrix[0])

		gl.Disable(gl.DEPTH_TEST)
		gl.BindVertexArray(r.vao)
		gl.DrawArrays(gl.TRIANGLES, 0, 3)
		gl.BindVertexArray(0)
	}

	r.fb.Unbind()
	r.fb.BlitToScreen(int32(r.config.Width), int32(r.config.Height))
	r.rendered = true
	if err := gl.GetError(); err != gl.NO_ERROR {
		return fmt.Errorf("gl error 0x%x", err)
	}
	return nil
}

// upload refreshes the GL texture when the background texture changed.
func (r *GL) upload(t *scene.Texture) {
	if t == r.uploaded && !t.NeedsUpdate {
		return
	}
	width, height, pixels := t.Width, t.Height, t.Pixels
	if t.Image != nil {
		b := t.Image.Bounds()
		rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), t.Image, b.Min, draw.Src)
		width, height = b.Dx(), b.Dy()
		// GL wants the bottom row first.
		pixels = make([]byte, len(rgba.Pix))
		row := width * 4
		for y := 0; y < height; y++ {
			copy(pixels[y*row:(y+1)*row], rgba.Pix[(height-1-y)*rgba.Stride:])
		}
	}
	if width == 0 || height == 0 || len(pixels) < width*height*4 {
		return
	}
	gl.BindTexture(gl.TEXTURE_2D, r.texture)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	t.NeedsUpdate = false
	r.uploaded = t
}

// Capture reads the last frame back from the framebuffer.
func (r *GL) Capture() (image.Image, error) {
	if !r.rendered {
		return nil, ErrNoFrame
	}
	w, h := r.fb.Size()
	return capture.FromPixels(r.fb.ReadPixels(), int(w), int(h))
}

// Close releases the GL resources.
func (r *GL) Close() {
	r.log.Info("closing renderer")
	if r.vao != 0 {
		gl.DeleteVertexArrays(1, &r.vao)
	}
	if r.texture != 0 {
		gl.DeleteTextures(1, &r.texture)
	}
	r.fb.Destroy()
	r.program.Delete()
}
