package ingest

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/internal/scene"
	"github.com/Faultbox/meshview/pkg/math"
	"github.com/Faultbox/meshview/pkg/meshfile"
)

// objectKeys are consumed by parseObject and never copied into Props.
var objectKeys = []string{
	"uuid", "name", "type", "matrix", "position", "quaternion", "scale",
	"visible", "geometry", "material", "children", "format", "data",
	"resources", "url", "mtl_library",
	"top_color", "bottom_color", "environment_map", "render_environment_map", "use_ar_background",
}

func (p *parser) parseObject(m map[string]any) (*scene.Object, error) {
	typ := str(m, "type")
	obj := scene.NewObject(typ, str(m, "name"))

	switch {
	case classify(typ) == specialMeshfileObject:
		if err := p.meshfileObject(obj, m); err != nil {
			return nil, err
		}
	case typ == scene.TypeBackground:
		bg := scene.NewBackgroundObject()
		bg.Name = obj.Name
		obj = bg
		parseBackground(obj.Background, m)
	default:
		if err := p.attachResources(obj, m); err != nil {
			return nil, err
		}
	}

	obj.UUID = str(m, "uuid")
	if err := parseTransform(obj, m); err != nil {
		return nil, err
	}
	if v, ok := m["visible"].(bool); ok {
		obj.Visible = v
	}
	copyExtra(obj.Props, m, objectKeys...)

	for _, c := range list(m["children"]) {
		child, err := p.parseObject(c)
		if err != nil {
			return nil, err
		}
		obj.Add(child)
	}
	return obj, nil
}

func (p *parser) attachResources(obj *scene.Object, m map[string]any) error {
	if ref := str(m, "geometry"); ref != "" {
		g, ok := p.geometries[ref]
		if !ok {
			return fmt.Errorf("%w: object %q references unknown geometry %q", protocol.ErrMalformedCommand, str(m, "uuid"), ref)
		}
		obj.Geometry = g
	}
	switch ref := m["material"].(type) {
	case string:
		mat, ok := p.materials[ref]
		if !ok {
			return fmt.Errorf("%w: object %q references unknown material %q", protocol.ErrMalformedCommand, str(m, "uuid"), ref)
		}
		obj.Materials = []*scene.Material{mat}
	case []any:
		obj.MultiMaterial = true
		for _, r := range ref {
			id, _ := r.(string)
			mat, ok := p.materials[id]
			if !ok {
				return fmt.Errorf("%w: object %q references unknown material %q", protocol.ErrMalformedCommand, str(m, "uuid"), id)
			}
			obj.Materials = append(obj.Materials, mat)
		}
	}
	return nil
}

// meshfileObject decodes an embedded mesh file into a mesh with a default
// material.
func (p *parser) meshfileObject(obj *scene.Object, m map[string]any) error {
	format := str(m, "format")
	data, ok := blob(m["data"])
	if !ok {
		return fmt.Errorf("%w: mesh file object has no data", protocol.ErrMalformedCommand)
	}
	mesh, err := meshfile.Parse(format, data)
	if err != nil {
		if errors.Is(err, meshfile.ErrUnsupportedFormat) {
			return p.unsupported("object", format)
		}
		p.in.log.Error("failed to decode mesh file", zap.String("format", format), zap.Error(err))
		return fmt.Errorf("decode %s mesh: %w", format, err)
	}
	obj.Type = scene.TypeMesh
	obj.Geometry = meshGeometry(mesh)
	obj.Geometry.UUID = str(m, "uuid")
	mat := scene.NewMaterial("MeshPhongMaterial")
	mat.UUID = str(m, "uuid") + "-material"
	obj.Materials = []*scene.Material{mat}
	return nil
}

func parseTransform(obj *scene.Object, m map[string]any) error {
	if raw, ok := m["matrix"]; ok {
		vals, ok := protocol.Floats(raw)
		if !ok {
			return fmt.Errorf("%w: object matrix is not numeric", protocol.ErrMalformedCommand)
		}
		mat, ok := math.Mat4FromSlice(vals)
		if !ok {
			return fmt.Errorf("%w: object matrix has %d values", protocol.ErrMalformedCommand, len(vals))
		}
		obj.SetMatrix(mat)
		return nil
	}
	if v, ok := protocol.Floats(m["position"]); ok && len(v) >= 3 {
		obj.Position = math.Vec3FromSlice(v)
	}
	if v, ok := protocol.Floats(m["quaternion"]); ok && len(v) >= 4 {
		obj.Quaternion = math.QuatFromSlice(v)
	}
	if v, ok := protocol.Floats(m["scale"]); ok && len(v) >= 3 {
		obj.Scale = math.Vec3FromSlice(v)
	}
	return nil
}

func parseBackground(bg *scene.BackgroundProps, m map[string]any) {
	bytesOf := func(v any, dst *[3]uint8) {
		vals, ok := protocol.Floats(v)
		if !ok || len(vals) < 3 {
			return
		}
		for i := range dst {
			dst[i] = uint8(vals[i])
		}
	}
	bytesOf(m["top_color"], &bg.TopColor)
	bytesOf(m["bottom_color"], &bg.BottomColor)
	bg.EnvironmentMap = str(m, "environment_map")
	if v, ok := m["render_environment_map"].(bool); ok {
		bg.RenderEnvironmentMap = v
	}
	if v, ok := m["use_ar_background"].(bool); ok {
		bg.UseARBackground = v
	}
}
