// Package ingest turns serialized object descriptions into scene objects.
//
// Descriptions follow the three.js object JSON layout: shared "geometries",
// "materials", "textures" and "images" lists referenced by uuid from a
// nested "object". A few extension types are understood on top of that.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/async"
	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/internal/scene"
)

// ErrUnsupportedFormat is returned when a description uses a format no
// decoder exists for.
var ErrUnsupportedFormat = errors.New("unsupported ingestion format")

// special is the closed set of extension types handled outside the
// standard three.js layout.
type special int

const (
	specialNone special = iota
	specialMeshfileGeometry
	specialMeshfileObject
	specialText
	specialDeprecatedMeshfile
)

func classify(typ string) special {
	switch typ {
	case "_meshfile_geometry":
		return specialMeshfileGeometry
	case "_meshfile_object":
		return specialMeshfileObject
	case "_text":
		return specialText
	case "_meshfile":
		return specialDeprecatedMeshfile
	}
	return specialNone
}

// Ingester converts object descriptions.
type Ingester struct {
	log *zap.Logger
}

// New returns an Ingester that logs through log.
func New(log *zap.Logger) *Ingester {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ingester{log: log}
}

// ImageLoad is an embedded image still decoding for a texture that is
// already part of a parsed object.
type ImageLoad struct {
	Texture *scene.Texture
	Image   *async.Future[image.Image]
}

// Ingest parses desc on the calling goroutine so the object can be
// installed right away. Embedded images decode in the background; each
// returned load carries the texture it belongs to.
func (in *Ingester) Ingest(ctx context.Context, desc map[string]any) (*scene.Object, []ImageLoad, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	p := in.newParser(ctx)
	obj, err := p.parse(desc)
	if err != nil {
		return nil, nil, err
	}
	return obj, p.loads, nil
}

// Parse converts desc synchronously, images included.
func (in *Ingester) Parse(desc map[string]any) (*scene.Object, error) {
	return in.newParser(nil).parse(desc)
}

func (in *Ingester) newParser(ctx context.Context) *parser {
	return &parser{
		in:         in,
		ctx:        ctx,
		images:     map[string]any{},
		decodes:    map[string]*async.Future[image.Image]{},
		textures:   map[string]*scene.Texture{},
		geometries: map[string]*scene.Geometry{},
		materials:  map[string]*scene.Material{},
	}
}

func (p *parser) parse(desc map[string]any) (*scene.Object, error) {
	if err := p.parseImages(list(desc["images"])); err != nil {
		return nil, err
	}
	if err := p.parseTextures(list(desc["textures"])); err != nil {
		return nil, err
	}
	if err := p.parseGeometries(list(desc["geometries"])); err != nil {
		return nil, err
	}
	if err := p.parseMaterials(list(desc["materials"])); err != nil {
		return nil, err
	}
	root, ok := protocol.Map(desc["object"])
	if !ok {
		return nil, fmt.Errorf("%w: description has no object", protocol.ErrMalformedCommand)
	}
	return p.parseObject(root)
}

// parser decodes images inline when ctx is nil.
type parser struct {
	in         *Ingester
	ctx        context.Context
	images     map[string]any
	decodes    map[string]*async.Future[image.Image]
	loads      []ImageLoad
	textures   map[string]*scene.Texture
	geometries map[string]*scene.Geometry
	materials  map[string]*scene.Material
}

func (p *parser) unsupported(what string, format string) error {
	p.in.log.Error("unsupported mesh type", zap.String("kind", what), zap.String("format", format))
	return fmt.Errorf("%w: %s format %q", ErrUnsupportedFormat, what, format)
}

func list(v any) []map[string]any {
	items, _ := v.([]any)
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := protocol.Map(it); ok {
			out = append(out, m)
		}
	}
	return out
}

func str(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// blob returns binary payloads that may arrive as bin, str or a typed array.
func blob(v any) ([]byte, bool) {
	switch b := v.(type) {
	case []byte:
		return b, true
	case string:
		return []byte(b), true
	case protocol.Uint8Array:
		return b, true
	case *protocol.Uint8Array:
		return *b, true
	}
	return nil, false
}

// copyExtra stores every key not in skip into props.
func copyExtra(props map[string]any, m map[string]any, skip ...string) {
outer:
	for k, v := range m {
		for _, s := range skip {
			if k == s {
				continue outer
			}
		}
		props[k] = normalize(v)
	}
}

// normalize converts decoded numbers to float64 throughout v.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	}
	if f, ok := protocol.Float(v); ok {
		return f
	}
	return v
}
