package scene

import (
	"image"
	"strings"

	"github.com/Faultbox/meshview/pkg/math"
)

// Object types understood by the viewer. Anything else is carried through
// as an opaque type name.
const (
	TypeScene              = "Scene"
	TypeGroup              = "Group"
	TypeObject3D           = "Object3D"
	TypeMesh               = "Mesh"
	TypePoints             = "Points"
	TypeLine               = "Line"
	TypeLineSegments       = "LineSegments"
	TypeLineLoop           = "LineLoop"
	TypePerspectiveCamera  = "PerspectiveCamera"
	TypeOrthographicCamera = "OrthographicCamera"
	TypeAmbientLight       = "AmbientLight"
	TypeDirectionalLight   = "DirectionalLight"
	TypePointLight         = "PointLight"
	TypeSpotLight          = "SpotLight"
	TypeHemisphereLight    = "HemisphereLight"
	TypeBackground         = "Background"
	TypeGridHelper         = "GridHelper"
	TypeAxesHelper         = "AxesHelper"
)

// Color is a linear RGB triple with components in [0, 1].
type Color struct {
	R, G, B float32
}

// White is the default material color.
var White = Color{1, 1, 1}

// ColorFromHex converts a packed 0xRRGGBB value.
func ColorFromHex(hex uint32) Color {
	return Color{
		R: float32(hex>>16&0xff) / 255,
		G: float32(hex>>8&0xff) / 255,
		B: float32(hex&0xff) / 255,
	}
}

// Hex packs the color back into 0xRRGGBB.
func (c Color) Hex() uint32 {
	to := func(v float32) uint32 {
		if v <= 0 {
			return 0
		}
		if v >= 1 {
			return 255
		}
		return uint32(v*255 + 0.5)
	}
	return to(c.R)<<16 | to(c.G)<<8 | to(c.B)
}

// Texture mappings.
const (
	MappingUV = iota
	MappingEquirectangularReflection
)

// Texture is image data sampled by a material or used as a background.
type Texture struct {
	UUID    string
	Name    string
	Mapping int
	// Matrix is the row-major 3x3 UV transform.
	Matrix      [9]float32
	Width       int
	Height      int
	Pixels      []uint8 // RGBA, row 0 first
	Image       image.Image
	SRGB        bool
	NeedsUpdate bool
	Props       map[string]any

	disposed bool
}

// NewDataTexture wraps raw RGBA pixels.
func NewDataTexture(pixels []uint8, width, height, mapping int) *Texture {
	return &Texture{
		Mapping:     mapping,
		Matrix:      [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
		Width:       width,
		Height:      height,
		Pixels:      pixels,
		SRGB:        true,
		NeedsUpdate: true,
		Props:       map[string]any{},
	}
}

// NewImageTexture wraps a decoded image.
func NewImageTexture(img image.Image, mapping int) *Texture {
	b := img.Bounds()
	t := NewDataTexture(nil, b.Dx(), b.Dy(), mapping)
	t.Image = img
	return t
}

// SetImage replaces the texture contents with img. A released texture is
// left alone and SetImage reports false.
func (t *Texture) SetImage(img image.Image) bool {
	if t == nil || t.disposed {
		return false
	}
	b := img.Bounds()
	t.Image, t.Pixels = img, nil
	t.Width, t.Height = b.Dx(), b.Dy()
	t.NeedsUpdate = true
	return true
}

// Dispose releases the texture. It reports whether this call released it.
func (t *Texture) Dispose() bool {
	if t == nil || t.disposed {
		return false
	}
	t.disposed = true
	t.Pixels = nil
	t.Image = nil
	return true
}

// Disposed reports whether the texture has been released.
func (t *Texture) Disposed() bool {
	return t != nil && t.disposed
}

// Geometry is vertex data shared by meshes, points and lines.
type Geometry struct {
	UUID       string
	Type       string
	Attributes map[string][]float32
	Index      []uint32
	Params     map[string]any

	disposed bool
}

// NewGeometry returns an empty geometry of the given type.
func NewGeometry(typ string) *Geometry {
	return &Geometry{
		Type:       typ,
		Attributes: map[string][]float32{},
		Params:     map[string]any{},
	}
}

// Dispose releases the geometry. It reports whether this call released it.
func (g *Geometry) Dispose() bool {
	if g == nil || g.disposed {
		return false
	}
	g.disposed = true
	g.Attributes = nil
	g.Index = nil
	return true
}

// Disposed reports whether the geometry has been released.
func (g *Geometry) Disposed() bool {
	return g != nil && g.disposed
}

// Material describes how an object is shaded.
type Material struct {
	UUID        string
	Type        string
	Name        string
	Color       Color
	Opacity     float32
	Transparent bool
	DepthWrite  bool
	NeedsUpdate bool
	Map         *Texture
	Props       map[string]any

	// baseOpacity is cached on the first opacity write so modulated
	// opacity always scales the original value.
	baseOpacity    float32
	hasBaseOpacity bool
	disposed       bool
}

// NewMaterial returns an opaque white material.
func NewMaterial(typ string) *Material {
	return &Material{
		Type:       typ,
		Color:      White,
		Opacity:    1,
		DepthWrite: true,
		Props:      map[string]any{},
	}
}

// BaseOpacity returns the cached original opacity, if any.
func (m *Material) BaseOpacity() (float32, bool) {
	return m.baseOpacity, m.hasBaseOpacity
}

func (m *Material) cacheBaseOpacity() {
	if !m.hasBaseOpacity {
		m.baseOpacity = m.Opacity
		m.hasBaseOpacity = true
	}
}

func (m *Material) setOpacity(opacity float32) {
	m.cacheBaseOpacity()
	m.Opacity = opacity
	m.Transparent = opacity < 1
	m.DepthWrite = true
	m.NeedsUpdate = true
}

// Dispose releases the material. It reports whether this call released it.
func (m *Material) Dispose() bool {
	if m == nil || m.disposed {
		return false
	}
	m.disposed = true
	return true
}

// Disposed reports whether the material has been released.
func (m *Material) Disposed() bool {
	return m != nil && m.disposed
}

// BackgroundProps are the user-settable inputs of the Background object.
type BackgroundProps struct {
	TopColor             [3]uint8
	BottomColor          [3]uint8
	EnvironmentMap       string
	RenderEnvironmentMap bool
	UseARBackground      bool
}

// Object is one render object in the hierarchy.
type Object struct {
	UUID       string
	Name       string
	Type       string
	Position   math.Vec3
	Quaternion math.Quat
	Scale      math.Vec3
	Visible    bool
	Geometry   *Geometry
	Materials  []*Material
	// MultiMaterial records that the material was given as an array.
	MultiMaterial bool
	Children      []*Object
	Props         map[string]any
	Background    *BackgroundProps
}

// NewObject returns an object with an identity transform.
func NewObject(typ, name string) *Object {
	return &Object{
		Name:       name,
		Type:       typ,
		Quaternion: math.QuatIdentity(),
		Scale:      math.Vec3{X: 1, Y: 1, Z: 1},
		Visible:    true,
		Props:      map[string]any{},
	}
}

// NewGroup returns an empty group.
func NewGroup(name string) *Object {
	return NewObject(TypeGroup, name)
}

// NewLight returns a light with the default properties for its type.
func NewLight(typ, name string, color Color, intensity float64) *Object {
	o := NewObject(typ, name)
	o.Props["color"] = float64(color.Hex())
	o.Props["intensity"] = intensity
	switch typ {
	case TypeDirectionalLight, TypeSpotLight:
		o.Props["castShadow"] = false
		o.Props["shadow"] = map[string]any{"radius": 1.0}
	case TypePointLight:
		o.Props["castShadow"] = false
		o.Props["shadow"] = map[string]any{"radius": 1.0}
		o.Props["distance"] = 0.0
	}
	return o
}

// NewCamera returns a perspective or orthographic camera.
func NewCamera(typ, name string) *Object {
	o := NewObject(typ, name)
	o.Props["zoom"] = 1.0
	o.Props["near"] = 0.01
	o.Props["far"] = 100.0
	if typ == TypePerspectiveCamera {
		o.Props["fov"] = 75.0
		o.Props["aspect"] = 1.0
	} else {
		o.Props["left"], o.Props["right"] = -1.0, 1.0
		o.Props["top"], o.Props["bottom"] = 1.0, -1.0
	}
	return o
}

// IsLight reports whether the object is a light source.
func (o *Object) IsLight() bool {
	return strings.HasSuffix(o.Type, "Light")
}

// IsCamera reports whether the object is a camera.
func (o *Object) IsCamera() bool {
	return o.Type == TypePerspectiveCamera || o.Type == TypeOrthographicCamera
}

// IsBackground reports whether the object drives the background.
func (o *Object) IsBackground() bool {
	return o.Background != nil
}

// Material returns the first material, or nil.
func (o *Object) Material() *Material {
	if len(o.Materials) == 0 {
		return nil
	}
	return o.Materials[0]
}

// Matrix composes the local transform.
func (o *Object) Matrix() math.Mat4 {
	return math.Compose(o.Position, o.Quaternion, o.Scale)
}

// SetMatrix decomposes m into position, quaternion and scale.
func (o *Object) SetMatrix(m math.Mat4) {
	o.Position, o.Quaternion, o.Scale = m.Decompose()
}

// Add appends child to the object's children.
func (o *Object) Add(child *Object) {
	o.Children = append(o.Children, child)
}

// Remove detaches child. It reports whether child was found.
func (o *Object) Remove(child *Object) bool {
	for i, c := range o.Children {
		if c == child {
			o.Children = append(o.Children[:i], o.Children[i+1:]...)
			return true
		}
	}
	return false
}

// Replace swaps old for replacement in place, appending when old is absent.
func (o *Object) Replace(old, replacement *Object) {
	for i, c := range o.Children {
		if c == old {
			o.Children[i] = replacement
			return
		}
	}
	o.Children = append(o.Children, replacement)
}

// Traverse visits o and every descendant, parents first.
func (o *Object) Traverse(fn func(*Object)) {
	fn(o)
	for _, c := range o.Children {
		c.Traverse(fn)
	}
}

// Resource kinds reported to a DisposeFunc.
const (
	ResourceGeometry = "geometry"
	ResourceMaterial = "material"
	ResourceTexture  = "texture"
)

// DisposeFunc is told about every resource the tree releases.
type DisposeFunc func(kind, uuid string)

// dispose releases the object's own geometry, materials and material maps.
// Children are released by their own nodes.
func (o *Object) dispose(hook DisposeFunc) {
	if o == nil {
		return
	}
	report := func(kind, uuid string, released bool) {
		if released && hook != nil {
			hook(kind, uuid)
		}
	}
	if o.Geometry != nil {
		report(ResourceGeometry, o.Geometry.UUID, o.Geometry.Dispose())
	}
	for _, m := range o.Materials {
		if m == nil {
			continue
		}
		if m.Map != nil {
			report(ResourceTexture, m.Map.UUID, m.Map.Dispose())
		}
		report(ResourceMaterial, m.UUID, m.Dispose())
	}
}
