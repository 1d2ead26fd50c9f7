// Package camera provides the viewer camera: projection kind, orbit target
// and the matrices the renderer needs.
package camera

import (
	"fmt"
	gomath "math"

	"github.com/Faultbox/meshview/internal/scene"
	"github.com/Faultbox/meshview/pkg/math"
)

// Kind is the projection type.
type Kind int

const (
	Perspective Kind = iota
	Orthographic
)

// ParseKind parses "perspective" or "orthographic".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "perspective":
		return Perspective, nil
	case "orthographic":
		return Orthographic, nil
	}
	return Perspective, fmt.Errorf("unknown camera kind %q", s)
}

func (k Kind) String() string {
	if k == Orthographic {
		return "orthographic"
	}
	return "perspective"
}

// ObjectType returns the scene object type of cameras of this kind.
func (k Kind) ObjectType() string {
	if k == Orthographic {
		return scene.TypeOrthographicCamera
	}
	return scene.TypePerspectiveCamera
}

// KindOf reports the projection of a scene camera object.
func KindOf(obj *scene.Object) (Kind, bool) {
	if obj == nil {
		return Perspective, false
	}
	switch obj.Type {
	case scene.TypePerspectiveCamera:
		return Perspective, true
	case scene.TypeOrthographicCamera:
		return Orthographic, true
	}
	return Perspective, false
}

// Camera orbits a target point.
type Camera struct {
	Kind     Kind
	Position math.Vec3
	Target   math.Vec3

	// Projection
	Fov    float32 // vertical, degrees
	Zoom   float32
	Near   float32
	Far    float32
	Left   float32
	Right  float32
	Top    float32
	Bottom float32

	// Orbit constraints
	MinDistance float32
	MaxDistance float32
	MinPitch    float32
	MaxPitch    float32

	// Sensitivity
	DragSensitivity float32
	ZoomSensitivity float32

	synced math.Vec3
}

// New creates a camera with three.js-like defaults.
func New(kind Kind) *Camera {
	return &Camera{
		Kind:            kind,
		Position:        math.Vec3{X: 3, Y: 1, Z: 0},
		Fov:             75,
		Zoom:            1,
		Near:            0.01,
		Far:             100,
		Left:            -1,
		Right:           1,
		Top:             1,
		Bottom:          -1,
		MinDistance:     0.01,
		MaxDistance:     1000,
		MinPitch:        -1.55,
		MaxPitch:        1.55,
		DragSensitivity: 0.005,
		ZoomSensitivity: 0.1,
	}
}

// IsPerspective reports whether the camera uses a perspective projection.
func (c *Camera) IsPerspective() bool { return c.Kind == Perspective }

// Sync copies the projection of obj, a scene camera placed by world. The
// orbit position only follows the object when the object itself moved.
func (c *Camera) Sync(obj *scene.Object, world math.Mat4) {
	if kind, ok := KindOf(obj); ok {
		c.Kind = kind
	}
	read := func(name string, dst *float32) {
		if v, ok := obj.Props[name].(float64); ok {
			*dst = float32(v)
		}
	}
	read("fov", &c.Fov)
	read("zoom", &c.Zoom)
	read("near", &c.Near)
	read("far", &c.Far)
	read("left", &c.Left)
	read("right", &c.Right)
	read("top", &c.Top)
	read("bottom", &c.Bottom)

	pos := world.TransformPoint(math.Vec3{})
	if pos != c.synced {
		c.Position = pos
		c.synced = pos
	}
}

// SetTarget moves the orbit center.
func (c *Camera) SetTarget(v math.Vec3) {
	c.Target = v
}

// ViewMatrix returns the world-to-camera transform.
func (c *Camera) ViewMatrix() math.Mat4 {
	return math.LookAt(c.Position, c.Target, math.Vec3{Y: 1})
}

// ProjectionMatrix returns the projection for a viewport of aspect
// width/height.
func (c *Camera) ProjectionMatrix(aspect float32) math.Mat4 {
	zoom := c.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	if c.Kind == Orthographic {
		dx := (c.Right - c.Left) / (2 * zoom)
		dy := (c.Top - c.Bottom) / (2 * zoom)
		cx := (c.Right + c.Left) / 2
		cy := (c.Top + c.Bottom) / 2
		return math.Ortho(cx-dx*aspect, cx+dx*aspect, cy-dy, cy+dy, c.Near, c.Far)
	}
	half := float64(c.Fov) * gomath.Pi / 360
	fov := 2 * gomath.Atan(gomath.Tan(half)/float64(zoom))
	return math.Perspective(float32(fov), aspect, c.Near, c.Far)
}

// spherical returns the offset from target as distance, pitch and yaw.
func (c *Camera) spherical() (dist, pitch, yaw float64) {
	off := c.Position.Sub(c.Target)
	dist = float64(off.Length())
	if dist == 0 {
		return 0, 0, 0
	}
	pitch = gomath.Asin(float64(off.Y) / dist)
	yaw = gomath.Atan2(float64(off.X), float64(off.Z))
	return dist, pitch, yaw
}

func (c *Camera) place(dist, pitch, yaw float64) {
	c.Position = math.Vec3{
		X: c.Target.X + float32(dist*gomath.Cos(pitch)*gomath.Sin(yaw)),
		Y: c.Target.Y + float32(dist*gomath.Sin(pitch)),
		Z: c.Target.Z + float32(dist*gomath.Cos(pitch)*gomath.Cos(yaw)),
	}
}

// HandleDrag orbits around the target by a mouse drag delta.
func (c *Camera) HandleDrag(deltaX, deltaY float32) {
	dist, pitch, yaw := c.spherical()
	if dist == 0 {
		return
	}
	yaw -= float64(deltaX * c.DragSensitivity)
	pitch += float64(deltaY * c.DragSensitivity)
	pitch = min(max(pitch, float64(c.MinPitch)), float64(c.MaxPitch))
	c.place(dist, pitch, yaw)
}

// HandleZoom moves toward or away from the target by a scroll delta.
func (c *Camera) HandleZoom(delta float32) {
	dist, pitch, yaw := c.spherical()
	if dist == 0 {
		return
	}
	dist -= float64(delta) * dist * float64(c.ZoomSensitivity)
	dist = min(max(dist, float64(c.MinDistance)), float64(c.MaxDistance))
	c.place(dist, pitch, yaw)
}

// Basis returns the unit forward, right and up vectors of the view.
func (c *Camera) Basis() (forward, right, up math.Vec3) {
	forward = c.Target.Sub(c.Position).Normalize()
	if forward.Length() == 0 {
		forward = math.Vec3{Z: -1}
	}
	right = forward.Cross(math.Vec3{Y: 1}).Normalize()
	if right.Length() == 0 {
		right = math.Vec3{X: 1}
	}
	return forward, right, right.Cross(forward)
}

// RayScale returns how far the view ray leans per unit of NDC along the
// right and up vectors. Orthographic cameras return zero.
func (c *Camera) RayScale(aspect float32) (sx, sy float32) {
	if c.Kind == Orthographic {
		return 0, 0
	}
	zoom := c.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	tanHalf := float32(gomath.Tan(float64(c.Fov)*gomath.Pi/360)) / zoom
	return tanHalf * aspect, tanHalf
}

// Ray returns the world-space view direction through a point in normalized
// device coordinates.
func (c *Camera) Ray(ndcX, ndcY, aspect float32) math.Vec3 {
	forward, right, up := c.Basis()
	sx, sy := c.RayScale(aspect)
	return forward.
		Add(right.Scale(ndcX * sx)).
		Add(up.Scale(ndcY * sy)).
		Normalize()
}
