package meshfile

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	stlHeaderSize   = 80
	stlTriangleSize = 50
)

// ParseSTL decodes binary or ASCII STL into an unindexed triangle list with
// per-facet normals.
func ParseSTL(data []byte) (*Mesh, error) {
	if isBinarySTL(data) {
		return parseBinarySTL(data)
	}
	return parseASCIISTL(data)
}

func isBinarySTL(data []byte) bool {
	if len(data) < stlHeaderSize+4 {
		return false
	}
	n := binary.LittleEndian.Uint32(data[stlHeaderSize:])
	if stlHeaderSize+4+int(n)*stlTriangleSize == len(data) {
		return true
	}
	// Some exporters write "solid" into binary headers, so only trust the
	// keyword when the size check fails.
	return !bytes.HasPrefix(bytes.TrimSpace(data[:min(len(data), 256)]), []byte("solid"))
}

func parseBinarySTL(data []byte) (*Mesh, error) {
	n := int(binary.LittleEndian.Uint32(data[stlHeaderSize:]))
	body := data[stlHeaderSize+4:]
	if len(body) < n*stlTriangleSize {
		return nil, fmt.Errorf("stl: %d triangles declared, data holds %d", n, len(body)/stlTriangleSize)
	}
	m := &Mesh{
		Positions: make([]float32, 0, 9*n),
		Normals:   make([]float32, 0, 9*n),
	}
	f := func(b []byte) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(b)) }
	for i := 0; i < n; i++ {
		t := body[i*stlTriangleSize:]
		nx, ny, nz := f(t[0:]), f(t[4:]), f(t[8:])
		for v := 0; v < 3; v++ {
			o := 12 + 12*v
			m.Positions = append(m.Positions, f(t[o:]), f(t[o+4:]), f(t[o+8:]))
			m.Normals = append(m.Normals, nx, ny, nz)
		}
	}
	return m, nil
}

func parseASCIISTL(data []byte) (*Mesh, error) {
	m := &Mesh{}
	var normal [3]float32
	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "facet":
			if len(fields) >= 5 && fields[1] == "normal" {
				v, err := parseFloats(fields[2:5])
				if err != nil {
					return nil, fmt.Errorf("stl line %d: %w", line, err)
				}
				copy(normal[:], v)
			}
		case "vertex":
			if len(fields) < 4 {
				return nil, fmt.Errorf("stl line %d: vertex needs 3 coordinates", line)
			}
			v, err := parseFloats(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("stl line %d: %w", line, err)
			}
			m.Positions = append(m.Positions, v...)
			m.Normals = append(m.Normals, normal[:]...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("stl: %w", err)
	}
	if len(m.Positions)%9 != 0 {
		return nil, fmt.Errorf("stl: vertex count %d is not a multiple of 3", len(m.Positions)/3)
	}
	return m, nil
}

func parseFloats(fields []string) ([]float32, error) {
	out := make([]float32, len(fields))
	for i, s := range fields {
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return nil, err
		}
		out[i] = float32(f)
	}
	return out, nil
}
