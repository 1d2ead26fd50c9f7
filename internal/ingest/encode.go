package ingest

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/png"

	"github.com/google/uuid"

	"github.com/Faultbox/meshview/internal/engine/texture"
	"github.com/Faultbox/meshview/internal/scene"
)

// Encode serializes obj and its descendants into the description layout
// Parse reads. Resources shared between objects are written once.
func Encode(obj *scene.Object) map[string]any {
	e := &encoder{ids: map[any]string{}}
	root := e.object(obj)
	return map[string]any{
		"metadata":   map[string]any{"version": 4.5, "type": "Object"},
		"geometries": e.geometries,
		"materials":  e.materials,
		"textures":   e.textures,
		"images":     e.images,
		"object":     root,
	}
}

type encoder struct {
	ids        map[any]string
	geometries []any
	materials  []any
	textures   []any
	images     []any
}

// id returns the resource's uuid, inventing one for resources without.
func (e *encoder) id(key any, have string) (string, bool) {
	if id, ok := e.ids[key]; ok {
		return id, true
	}
	if have == "" {
		have = uuid.NewString()
	}
	e.ids[key] = have
	return have, false
}

func (e *encoder) object(o *scene.Object) map[string]any {
	out := map[string]any{}
	for k, v := range o.Props {
		out[k] = v
	}
	m := o.Matrix()
	out["uuid"] = o.UUID
	out["name"] = o.Name
	out["type"] = o.Type
	out["matrix"] = m[:]
	out["visible"] = o.Visible

	if bg := o.Background; bg != nil {
		out["top_color"] = colorList(bg.TopColor)
		out["bottom_color"] = colorList(bg.BottomColor)
		out["environment_map"] = bg.EnvironmentMap
		out["render_environment_map"] = bg.RenderEnvironmentMap
		out["use_ar_background"] = bg.UseARBackground
	}
	if o.Geometry != nil {
		out["geometry"] = e.geometry(o.Geometry)
	}
	if len(o.Materials) > 0 {
		ids := make([]any, len(o.Materials))
		for i, mat := range o.Materials {
			ids[i] = e.material(mat)
		}
		if o.MultiMaterial {
			out["material"] = ids
		} else {
			out["material"] = ids[0]
		}
	}
	if len(o.Children) > 0 {
		children := make([]any, len(o.Children))
		for i, c := range o.Children {
			children[i] = e.object(c)
		}
		out["children"] = children
	}
	return out
}

func (e *encoder) geometry(g *scene.Geometry) string {
	id, seen := e.id(g, g.UUID)
	if seen {
		return id
	}
	out := map[string]any{"uuid": id, "type": g.Type}
	if g.Type != "BufferGeometry" {
		for k, v := range g.Params {
			out[k] = v
		}
	} else {
		attrs := map[string]any{}
		for name, vals := range g.Attributes {
			size := 3.0
			if s, ok := g.Params[name+".itemSize"].(float64); ok {
				size = s
			}
			attrs[name] = map[string]any{"itemSize": size, "type": "Float32Array", "array": vals}
		}
		data := map[string]any{"attributes": attrs}
		if len(g.Index) > 0 {
			data["index"] = map[string]any{"type": "Uint32Array", "array": g.Index}
		}
		out["data"] = data
	}
	e.geometries = append(e.geometries, out)
	return id
}

func (e *encoder) material(m *scene.Material) string {
	id, seen := e.id(m, m.UUID)
	if seen {
		return id
	}
	out := map[string]any{}
	for k, v := range m.Props {
		out[k] = v
	}
	out["uuid"] = id
	out["type"] = m.Type
	out["name"] = m.Name
	out["color"] = float64(m.Color.Hex())
	out["opacity"] = float64(m.Opacity)
	out["transparent"] = m.Transparent
	out["depthWrite"] = m.DepthWrite
	if m.Map != nil {
		out["map"] = e.texture(m.Map)
	}
	e.materials = append(e.materials, out)
	return id
}

func (e *encoder) texture(t *scene.Texture) string {
	id, seen := e.id(t, t.UUID)
	if seen {
		return id
	}
	out := map[string]any{}
	for k, v := range t.Props {
		if k != "url" {
			out[k] = v
		}
	}
	out["uuid"] = id
	out["name"] = t.Name
	if t.Props["type"] == "_text" {
		e.textures = append(e.textures, out)
		return id
	}
	if t.Mapping == scene.MappingEquirectangularReflection {
		out["mapping"] = float64(threeEquirectangularReflectionMapping)
	} else {
		out["mapping"] = float64(threeUVMapping)
	}
	if url, ok := e.image(t); ok {
		imgID := uuid.NewString()
		e.images = append(e.images, map[string]any{"uuid": imgID, "url": url})
		out["image"] = imgID
	}
	e.textures = append(e.textures, out)
	return id
}

// image renders the texture's pixels as a PNG data URL.
func (e *encoder) image(t *scene.Texture) (string, bool) {
	var img image.Image
	switch {
	case t.Image != nil:
		img = t.Image
	case len(t.Pixels) == 4*t.Width*t.Height && t.Width > 0:
		rgba := image.NewRGBA(image.Rect(0, 0, t.Width, t.Height))
		copy(rgba.Pix, t.Pixels)
		img = rgba
	default:
		if url, ok := t.Props["url"].(string); ok {
			return url, true
		}
		return "", false
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, texture.ImageToRGBA(img)); err != nil {
		return "", false
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), true
}

func colorList(c [3]uint8) []any {
	return []any{float64(c[0]), float64(c[1]), float64(c[2])}
}
