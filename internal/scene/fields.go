package scene

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/pkg/math"
)

// fieldHolder is anything a property chain can step through.
type fieldHolder interface {
	getField(name string) (any, bool)
	setField(name string, v any) error
}

func asHolder(v any) (fieldHolder, bool) {
	switch t := v.(type) {
	case *Object:
		return (*objectFields)(t), t != nil
	case *Material:
		return (*materialFields)(t), t != nil
	case *Geometry:
		return (*geometryFields)(t), t != nil
	case *Texture:
		return (*textureFields)(t), t != nil
	case *math.Vec3:
		return (*vec3Fields)(t), t != nil
	case *math.Quat:
		return (*quatFields)(t), t != nil
	case *Color:
		return (*colorFields)(t), t != nil
	case map[string]any:
		return mapFields(t), t != nil
	case []any:
		return sliceFields(t), true
	case []*Object:
		return objectSlice(t), true
	case []*Material:
		return materialSlice(t), true
	}
	return nil, false
}

var indexPattern = regexp.MustCompile(`\[(\w+)\]`)

// splitChain turns "a.b[c].d" into ["a", "b", "c", "d"].
func splitChain(property string) []string {
	property = indexPattern.ReplaceAllString(property, ".$1")
	property = strings.TrimPrefix(property, ".")
	return strings.Split(property, ".")
}

// chainError describes where a property chain stopped.
type chainError struct {
	subPath string
	detail  string
}

func (e *chainError) Error() string { return e.detail }

// walkChain resolves every segment but the last, returning the holder that
// owns the final field. No state is modified.
func walkChain(target any, name string, segments []string) (fieldHolder, string, *chainError) {
	parentPath := name
	parent, ok := asHolder(target)
	if !ok {
		return nil, parentPath, &chainError{parentPath, fmt.Sprintf("'%s' is not an Object and has no properties", parentPath)}
	}
	for _, seg := range segments[:len(segments)-1] {
		v, ok := parent.getField(seg)
		if !ok {
			return nil, parentPath, &chainError{parentPath, fmt.Sprintf("'%s' has no property '%s'", parentPath, seg)}
		}
		parentPath += "." + seg
		next, ok := asHolder(v)
		if !ok {
			return nil, parentPath, &chainError{parentPath, fmt.Sprintf("'%s' is not an Object and has no properties", parentPath)}
		}
		parent = next
	}
	final := segments[len(segments)-1]
	if _, ok := parent.getField(final); !ok {
		return nil, parentPath, &chainError{parentPath, fmt.Sprintf("'%s' has no property '%s'", parentPath, final)}
	}
	return parent, parentPath, nil
}

// GetChain reads a nested property such as "material.color.r" from target.
func GetChain(target any, chain string) (any, bool) {
	segments := splitChain(chain)
	holder, _, err := walkChain(target, "", segments)
	if err != nil {
		return nil, false
	}
	return holder.getField(segments[len(segments)-1])
}

// SetChain writes a nested property on target. Nothing is written unless
// the whole chain resolves and the value has an acceptable type.
func SetChain(target any, chain string, value any) error {
	segments := splitChain(chain)
	holder, parentPath, cerr := walkChain(target, "", segments)
	if cerr != nil {
		return cerr
	}
	if err := holder.setField(segments[len(segments)-1], value); err != nil {
		return &chainError{parentPath, err.Error()}
	}
	return nil
}

func wantFloat(name string, v any) (float32, error) {
	f, ok := protocol.Float(v)
	if !ok {
		return 0, fmt.Errorf("'%s' expects a number, got %T", name, v)
	}
	return float32(f), nil
}

func wantBool(name string, v any) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("'%s' expects a boolean, got %T", name, v)
	}
	return b, nil
}

func wantString(name string, v any) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("'%s' expects a string, got %T", name, v)
	}
	return s, nil
}

func wantFloats(name string, v any, n int) ([]float32, error) {
	vals, ok := protocol.Floats(v)
	if !ok || len(vals) < n {
		return nil, fmt.Errorf("'%s' expects %d numbers", name, n)
	}
	return vals, nil
}

// setProp assigns into a free-form property map, keeping numbers as float64.
func setProp(props map[string]any, name string, v any) error {
	if old, ok := props[name]; ok {
		if _, isNum := protocol.Float(old); isNum {
			f, ok := protocol.Float(v)
			if !ok {
				return fmt.Errorf("'%s' expects a number, got %T", name, v)
			}
			props[name] = f
			return nil
		}
		if _, isBool := old.(bool); isBool {
			b, err := wantBool(name, v)
			if err != nil {
				return err
			}
			props[name] = b
			return nil
		}
	}
	props[name] = v
	return nil
}

type objectFields Object

func (o *objectFields) getField(name string) (any, bool) {
	switch name {
	case "uuid":
		return o.UUID, true
	case "name":
		return o.Name, true
	case "type":
		return o.Type, true
	case "visible":
		return o.Visible, true
	case "position":
		return &o.Position, true
	case "quaternion":
		return &o.Quaternion, true
	case "scale":
		return &o.Scale, true
	case "geometry":
		return o.Geometry, o.Geometry != nil
	case "material":
		if len(o.Materials) == 0 {
			return nil, false
		}
		if o.MultiMaterial {
			return o.Materials, true
		}
		return o.Materials[0], true
	case "children":
		return o.Children, true
	}
	if bg := o.Background; bg != nil {
		switch name {
		case "top_color":
			return colorBytes(bg.TopColor), true
		case "bottom_color":
			return colorBytes(bg.BottomColor), true
		case "environment_map":
			return bg.EnvironmentMap, true
		case "render_environment_map":
			return bg.RenderEnvironmentMap, true
		case "use_ar_background":
			return bg.UseARBackground, true
		}
	}
	v, ok := o.Props[name]
	return v, ok
}

func (o *objectFields) setField(name string, v any) (err error) {
	switch name {
	case "uuid":
		o.UUID, err = wantString(name, v)
		return err
	case "name":
		o.Name, err = wantString(name, v)
		return err
	case "type", "geometry", "material", "children":
		return fmt.Errorf("'%s' cannot be replaced through a property write", name)
	case "visible":
		o.Visible, err = wantBool(name, v)
		return err
	case "position", "scale":
		vals, err := wantFloats(name, v, 3)
		if err != nil {
			return err
		}
		if name == "position" {
			o.Position = math.Vec3FromSlice(vals)
		} else {
			o.Scale = math.Vec3FromSlice(vals)
		}
		return nil
	case "quaternion":
		vals, err := wantFloats(name, v, 4)
		if err != nil {
			return err
		}
		o.Quaternion = math.QuatFromSlice(vals)
		return nil
	}
	if bg := o.Background; bg != nil {
		switch name {
		case "top_color", "bottom_color":
			c, err := unitColor(name, v)
			if err != nil {
				return err
			}
			if name == "top_color" {
				bg.TopColor = c
			} else {
				bg.BottomColor = c
			}
			return nil
		case "environment_map":
			if v == nil {
				bg.EnvironmentMap = ""
				return nil
			}
			bg.EnvironmentMap, err = wantString(name, v)
			return err
		case "render_environment_map":
			bg.RenderEnvironmentMap, err = wantBool(name, v)
			return err
		case "use_ar_background":
			bg.UseARBackground, err = wantBool(name, v)
			return err
		}
	}
	return setProp(o.Props, name, v)
}

func colorBytes(c [3]uint8) []any {
	return []any{float64(c[0]), float64(c[1]), float64(c[2])}
}

// unitColor converts an RGB triple in [0, 1] to bytes.
func unitColor(name string, v any) ([3]uint8, error) {
	var c [3]uint8
	vals, err := wantFloats(name, v, 3)
	if err != nil {
		return c, err
	}
	for i := range c {
		f := vals[i] * 255
		switch {
		case f <= 0:
			c[i] = 0
		case f >= 255:
			c[i] = 255
		default:
			c[i] = uint8(f + 0.5)
		}
	}
	return c, nil
}

type materialFields Material

func (m *materialFields) getField(name string) (any, bool) {
	switch name {
	case "uuid":
		return m.UUID, true
	case "name":
		return m.Name, true
	case "type":
		return m.Type, true
	case "color":
		return &m.Color, true
	case "opacity":
		return float64(m.Opacity), true
	case "transparent":
		return m.Transparent, true
	case "depthWrite":
		return m.DepthWrite, true
	case "needsUpdate":
		return m.NeedsUpdate, true
	case "map":
		return m.Map, m.Map != nil
	}
	v, ok := m.Props[name]
	return v, ok
}

func (m *materialFields) setField(name string, v any) (err error) {
	switch name {
	case "uuid":
		m.UUID, err = wantString(name, v)
		return err
	case "name":
		m.Name, err = wantString(name, v)
		return err
	case "type", "map":
		return fmt.Errorf("'%s' cannot be replaced through a property write", name)
	case "color":
		vals, err := wantFloats(name, v, 3)
		if err != nil {
			return err
		}
		m.Color = Color{vals[0], vals[1], vals[2]}
		return nil
	case "opacity":
		m.Opacity, err = wantFloat(name, v)
		return err
	case "transparent":
		m.Transparent, err = wantBool(name, v)
		return err
	case "depthWrite":
		m.DepthWrite, err = wantBool(name, v)
		return err
	case "needsUpdate":
		m.NeedsUpdate, err = wantBool(name, v)
		return err
	}
	return setProp(m.Props, name, v)
}

type geometryFields Geometry

func (g *geometryFields) getField(name string) (any, bool) {
	switch name {
	case "uuid":
		return g.UUID, true
	case "type":
		return g.Type, true
	}
	v, ok := g.Params[name]
	return v, ok
}

func (g *geometryFields) setField(name string, v any) (err error) {
	switch name {
	case "uuid":
		g.UUID, err = wantString(name, v)
		return err
	case "type":
		return fmt.Errorf("'%s' cannot be replaced through a property write", name)
	}
	return setProp(g.Params, name, v)
}

type textureFields Texture

func (t *textureFields) getField(name string) (any, bool) {
	switch name {
	case "uuid":
		return t.UUID, true
	case "name":
		return t.Name, true
	case "mapping":
		return float64(t.Mapping), true
	case "needsUpdate":
		return t.NeedsUpdate, true
	}
	v, ok := t.Props[name]
	return v, ok
}

func (t *textureFields) setField(name string, v any) (err error) {
	switch name {
	case "uuid":
		t.UUID, err = wantString(name, v)
		return err
	case "name":
		t.Name, err = wantString(name, v)
		return err
	case "mapping":
		f, err := wantFloat(name, v)
		t.Mapping = int(f)
		return err
	case "needsUpdate":
		t.NeedsUpdate, err = wantBool(name, v)
		return err
	}
	if t.Props == nil {
		t.Props = map[string]any{}
	}
	return setProp(t.Props, name, v)
}

type vec3Fields math.Vec3

func (v *vec3Fields) field(name string) *float32 {
	switch name {
	case "x":
		return &v.X
	case "y":
		return &v.Y
	case "z":
		return &v.Z
	}
	return nil
}

func (v *vec3Fields) getField(name string) (any, bool) {
	if p := v.field(name); p != nil {
		return float64(*p), true
	}
	return nil, false
}

func (v *vec3Fields) setField(name string, val any) (err error) {
	p := v.field(name)
	*p, err = assignFloat(name, val, *p)
	return err
}

type quatFields math.Quat

func (q *quatFields) field(name string) *float32 {
	switch name {
	case "x":
		return &q.X
	case "y":
		return &q.Y
	case "z":
		return &q.Z
	case "w":
		return &q.W
	}
	return nil
}

func (q *quatFields) getField(name string) (any, bool) {
	if p := q.field(name); p != nil {
		return float64(*p), true
	}
	return nil, false
}

func (q *quatFields) setField(name string, val any) (err error) {
	p := q.field(name)
	*p, err = assignFloat(name, val, *p)
	return err
}

type colorFields Color

func (c *colorFields) field(name string) *float32 {
	switch name {
	case "r":
		return &c.R
	case "g":
		return &c.G
	case "b":
		return &c.B
	}
	return nil
}

func (c *colorFields) getField(name string) (any, bool) {
	if p := c.field(name); p != nil {
		return float64(*p), true
	}
	return nil, false
}

func (c *colorFields) setField(name string, val any) (err error) {
	p := c.field(name)
	*p, err = assignFloat(name, val, *p)
	return err
}

// assignFloat returns the converted value, or old with an error.
func assignFloat(name string, v any, old float32) (float32, error) {
	f, err := wantFloat(name, v)
	if err != nil {
		return old, err
	}
	return f, nil
}

type mapFields map[string]any

func (m mapFields) getField(name string) (any, bool) {
	v, ok := m[name]
	return v, ok
}

func (m mapFields) setField(name string, v any) error {
	return setProp(m, name, v)
}

func sliceIndex(name string, n int) (int, bool) {
	i, err := strconv.Atoi(name)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

type sliceFields []any

func (s sliceFields) getField(name string) (any, bool) {
	i, ok := sliceIndex(name, len(s))
	if !ok {
		return nil, false
	}
	return s[i], true
}

func (s sliceFields) setField(name string, v any) error {
	i, _ := sliceIndex(name, len(s))
	s[i] = v
	return nil
}

type objectSlice []*Object

func (s objectSlice) getField(name string) (any, bool) {
	i, ok := sliceIndex(name, len(s))
	if !ok {
		return nil, false
	}
	return s[i], true
}

func (s objectSlice) setField(name string, _ any) error {
	return fmt.Errorf("'%s' cannot be replaced through a property write", name)
}

type materialSlice []*Material

func (s materialSlice) getField(name string) (any, bool) {
	i, ok := sliceIndex(name, len(s))
	if !ok {
		return nil, false
	}
	return s[i], true
}

func (s materialSlice) setField(name string, _ any) error {
	return fmt.Errorf("'%s' cannot be replaced through a property write", name)
}
