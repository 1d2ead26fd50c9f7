package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/Faultbox/meshview/internal/async"
	"github.com/Faultbox/meshview/internal/engine/texture"
	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/internal/scene"
)

// textCanvas is the side length of rendered text textures.
const textCanvas = 256

// parseImages decodes embedded data URLs, or starts decoding them when
// the parser defers images. Other URLs are kept as strings.
func (p *parser) parseImages(items []map[string]any) error {
	for _, im := range items {
		uuid := str(im, "uuid")
		url := str(im, "url")
		if !strings.HasPrefix(url, "data:") {
			p.images[uuid] = url
			continue
		}
		if p.ctx != nil {
			p.decodes[uuid] = async.Go(p.ctx, func(ctx context.Context) (image.Image, error) {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				img, err := decodeDataImage(url)
				if err != nil {
					return nil, err
				}
				return texture.ImageToRGBA(img), nil
			})
			continue
		}
		img, err := decodeDataImage(url)
		if err != nil {
			p.in.log.Warn("failed to decode image", zap.String("uuid", uuid), zap.Error(err))
			continue
		}
		p.images[uuid] = img
	}
	return nil
}

func decodeDataImage(url string) (image.Image, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(url, "data:"), ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, fmt.Errorf("unsupported data URL %.32q", url)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	img, _, err := texture.Decode(data, "")
	return img, err
}

func (p *parser) parseTextures(items []map[string]any) error {
	for _, t := range items {
		var tex *scene.Texture
		if classify(str(t, "type")) == specialText {
			tex = textTexture(t)
		} else {
			tex = scene.NewDataTexture(nil, 0, 0, scene.MappingUV)
			if f, ok := p.decodes[str(t, "image")]; ok {
				p.loads = append(p.loads, ImageLoad{Texture: tex, Image: f})
			}
			switch img := p.images[str(t, "image")].(type) {
			case image.Image:
				tex = scene.NewImageTexture(texture.ImageToRGBA(img), scene.MappingUV)
			case string:
				tex.Props["url"] = img
			}
			if m, ok := protocol.Int(t["mapping"]); ok {
				tex.Mapping = textureMapping(m)
			}
			copyExtra(tex.Props, t, "uuid", "name", "image", "mapping", "type")
		}
		tex.UUID = str(t, "uuid")
		tex.Name = str(t, "name")
		p.textures[tex.UUID] = tex
	}
	return nil
}

// three.js mapping constants.
const (
	threeUVMapping                       = 300
	threeEquirectangularReflectionMapping = 303
)

func textureMapping(m int) int {
	if m == threeEquirectangularReflectionMapping {
		return scene.MappingEquirectangularReflection
	}
	return scene.MappingUV
}

// textTexture draws json.text centered on a transparent canvas.
func textTexture(t map[string]any) *scene.Texture {
	img := image.NewRGBA(image.Rect(0, 0, textCanvas, textCanvas))
	text := str(t, "text")
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.Black),
		Face: basicfont.Face7x13,
	}
	// Shorten until the text fits, like auto-sizing the font down.
	for len(text) > 0 && d.MeasureString(text) > fixed.I(textCanvas) {
		text = text[:len(text)-1]
	}
	d.Dot = fixed.Point26_6{
		X: (fixed.I(textCanvas) - d.MeasureString(text)) / 2,
		Y: fixed.I(textCanvas / 2),
	}
	d.DrawString(text)

	tex := scene.NewImageTexture(img, scene.MappingUV)
	tex.Props["type"] = "_text"
	tex.Props["text"] = str(t, "text")
	if fs, ok := protocol.Float(t["font_size"]); ok {
		tex.Props["font_size"] = fs
	}
	if ff := str(t, "font_face"); ff != "" {
		tex.Props["font_face"] = ff
	}
	return tex
}

func (p *parser) parseMaterials(items []map[string]any) error {
	for _, m := range items {
		mat := scene.NewMaterial(str(m, "type"))
		mat.UUID = str(m, "uuid")
		mat.Name = str(m, "name")
		if c, ok := protocol.Float(m["color"]); ok {
			mat.Color = scene.ColorFromHex(uint32(c))
		}
		if o, ok := protocol.Float(m["opacity"]); ok {
			mat.Opacity = float32(o)
		}
		if v, ok := m["transparent"].(bool); ok {
			mat.Transparent = v
		}
		if v, ok := m["depthWrite"].(bool); ok {
			mat.DepthWrite = v
		}
		if ref := str(m, "map"); ref != "" {
			tex, ok := p.textures[ref]
			if !ok {
				p.in.log.Warn("material references unknown texture", zap.String("material", mat.UUID), zap.String("texture", ref))
			}
			mat.Map = tex
		}
		copyExtra(mat.Props, m, "uuid", "name", "type", "color", "opacity", "transparent", "depthWrite", "map")
		p.materials[mat.UUID] = mat
	}
	return nil
}
