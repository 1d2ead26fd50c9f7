package ingest

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/internal/scene"
	"github.com/Faultbox/meshview/pkg/meshfile"
)

func (p *parser) parseGeometries(items []map[string]any) error {
	for _, g := range items {
		geom, err := p.parseGeometry(g)
		if err != nil {
			return err
		}
		p.geometries[geom.UUID] = geom
	}
	return nil
}

func (p *parser) parseGeometry(g map[string]any) (*scene.Geometry, error) {
	typ := str(g, "type")
	switch classify(typ) {
	case specialDeprecatedMeshfile:
		p.in.log.Warn("_meshfile is deprecated. Please use _meshfile_geometry for geometries and _meshfile_object for objects with geometry and material")
		fallthrough
	case specialMeshfileGeometry:
		geom, err := p.meshfileGeometry(g)
		if err != nil {
			return nil, err
		}
		geom.UUID = str(g, "uuid")
		return geom, nil
	}

	geom := scene.NewGeometry(typ)
	geom.UUID = str(g, "uuid")
	if typ != "BufferGeometry" {
		copyExtra(geom.Params, g, "uuid", "type")
		return geom, nil
	}

	data, _ := protocol.Map(g["data"])
	attrs, _ := protocol.Map(data["attributes"])
	for name, raw := range attrs {
		a, ok := protocol.Map(raw)
		if !ok {
			return nil, fmt.Errorf("%w: attribute %q is not a map", protocol.ErrMalformedCommand, name)
		}
		vals, ok := protocol.Floats(a["array"])
		if !ok {
			return nil, fmt.Errorf("%w: attribute %q has no numeric array", protocol.ErrMalformedCommand, name)
		}
		geom.Attributes[name] = vals
		if size, ok := protocol.Int(a["itemSize"]); ok {
			geom.Params[name+".itemSize"] = float64(size)
		}
	}
	if idx, ok := protocol.Map(data["index"]); ok {
		vals, ok := protocol.Floats(idx["array"])
		if !ok {
			return nil, fmt.Errorf("%w: index has no numeric array", protocol.ErrMalformedCommand)
		}
		geom.Index = make([]uint32, len(vals))
		for i, v := range vals {
			geom.Index[i] = uint32(v)
		}
	}
	if _, ok := geom.Attributes["normal"]; !ok && len(geom.Attributes["position"]) > 0 {
		m := meshfile.Mesh{Positions: geom.Attributes["position"], Indices: geom.Index}
		m.ComputeNormals()
		geom.Attributes["normal"] = m.Normals
	}
	return geom, nil
}

func (p *parser) meshfileGeometry(g map[string]any) (*scene.Geometry, error) {
	format := str(g, "format")
	data, ok := blob(g["data"])
	if !ok {
		return nil, fmt.Errorf("%w: mesh file has no data", protocol.ErrMalformedCommand)
	}
	mesh, err := meshfile.Parse(format, data)
	if err != nil {
		if errors.Is(err, meshfile.ErrUnsupportedFormat) {
			return nil, p.unsupported("geometry", format)
		}
		p.in.log.Error("failed to decode mesh file", zap.String("format", format), zap.Error(err))
		return nil, fmt.Errorf("decode %s mesh: %w", format, err)
	}
	return meshGeometry(mesh), nil
}

func meshGeometry(mesh *meshfile.Mesh) *scene.Geometry {
	geom := scene.NewGeometry("BufferGeometry")
	geom.Attributes["position"] = mesh.Positions
	if len(mesh.Normals) == 0 {
		mesh.ComputeNormals()
	}
	geom.Attributes["normal"] = mesh.Normals
	geom.Index = mesh.Indices
	geom.Params["position.itemSize"] = 3.0
	geom.Params["normal.itemSize"] = 3.0
	return geom
}
