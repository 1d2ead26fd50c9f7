// Package meshfile decodes the mesh file formats that can be embedded in
// object descriptions.
package meshfile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chewxy/math32"
)

// ErrUnsupportedFormat is returned for formats with no decoder.
var ErrUnsupportedFormat = errors.New("unsupported mesh format")

// Mesh is decoded triangle data. Positions and Normals hold xyz triples.
// When Indices is empty the positions are an unindexed triangle list.
type Mesh struct {
	Positions []float32
	Normals   []float32
	Indices   []uint32
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	if len(m.Indices) > 0 {
		return len(m.Indices) / 3
	}
	return m.VertexCount() / 3
}

// Parse decodes data in the named format ("stl", "obj", ...).
func Parse(format string, data []byte) (*Mesh, error) {
	switch strings.ToLower(format) {
	case "stl":
		return ParseSTL(data)
	case "obj":
		return ParseOBJ(data)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// ComputeNormals fills Normals with area-weighted vertex normals.
func (m *Mesh) ComputeNormals() {
	normals := make([]float32, len(m.Positions))
	tri := func(a, b, c uint32) {
		ax, ay, az := m.Positions[3*a], m.Positions[3*a+1], m.Positions[3*a+2]
		e1x, e1y, e1z := m.Positions[3*b]-ax, m.Positions[3*b+1]-ay, m.Positions[3*b+2]-az
		e2x, e2y, e2z := m.Positions[3*c]-ax, m.Positions[3*c+1]-ay, m.Positions[3*c+2]-az
		nx := e1y*e2z - e1z*e2y
		ny := e1z*e2x - e1x*e2z
		nz := e1x*e2y - e1y*e2x
		for _, v := range [3]uint32{a, b, c} {
			normals[3*v] += nx
			normals[3*v+1] += ny
			normals[3*v+2] += nz
		}
	}
	if len(m.Indices) > 0 {
		for i := 0; i+2 < len(m.Indices); i += 3 {
			tri(m.Indices[i], m.Indices[i+1], m.Indices[i+2])
		}
	} else {
		for i := uint32(0); int(i)+2 < m.VertexCount(); i += 3 {
			tri(i, i+1, i+2)
		}
	}
	for i := 0; i+2 < len(normals); i += 3 {
		l := math32.Sqrt(normals[i]*normals[i] + normals[i+1]*normals[i+1] + normals[i+2]*normals[i+2])
		if l > 0 {
			normals[i] /= l
			normals[i+1] /= l
			normals[i+2] /= l
		}
	}
	m.Normals = normals
}
