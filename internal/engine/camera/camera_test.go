package camera

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshview/internal/scene"
	"github.com/Faultbox/meshview/pkg/math"
)

func TestParseKind(t *testing.T) {
	k, err := ParseKind("orthographic")
	require.NoError(t, err)
	assert.Equal(t, Orthographic, k)
	assert.Equal(t, scene.TypeOrthographicCamera, k.ObjectType())
	assert.Equal(t, "orthographic", k.String())

	_, err = ParseKind("fisheye")
	assert.Error(t, err)
}

func TestKindOf(t *testing.T) {
	k, ok := KindOf(scene.NewCamera(scene.TypeOrthographicCamera, ""))
	assert.True(t, ok)
	assert.Equal(t, Orthographic, k)

	_, ok = KindOf(scene.NewGroup("g"))
	assert.False(t, ok)
	_, ok = KindOf(nil)
	assert.False(t, ok)
}

func TestSyncFollowsObject(t *testing.T) {
	c := New(Perspective)
	obj := scene.NewCamera(scene.TypeOrthographicCamera, "")
	obj.Props["zoom"] = 2.0

	c.Sync(obj, math.Translate(1, 2, 3))
	assert.Equal(t, Orthographic, c.Kind)
	assert.False(t, c.IsPerspective())
	assert.Equal(t, float32(2), c.Zoom)
	assert.Equal(t, math.Vec3{X: 1, Y: 2, Z: 3}, c.Position)

	// Orbiting sticks until the object moves again.
	c.HandleDrag(100, 0)
	moved := c.Position
	c.Sync(obj, math.Translate(1, 2, 3))
	assert.Equal(t, moved, c.Position)
	c.Sync(obj, math.Translate(0, 0, 5))
	assert.Equal(t, math.Vec3{Z: 5}, c.Position)
}

func TestOrbitKeepsDistance(t *testing.T) {
	c := New(Perspective)
	c.Position = math.Vec3{Z: 4}
	c.SetTarget(math.Vec3{})

	c.HandleDrag(50, 30)
	assert.InDelta(t, 4, c.Position.Length(), 1e-4)

	c.HandleZoom(1)
	assert.InDelta(t, 3.6, c.Position.Length(), 1e-4)

	c.HandleDrag(0, 1e6)
	assert.LessOrEqual(t, c.Position.Y, float32(4))
}

func TestProjection(t *testing.T) {
	c := New(Perspective)
	c.Fov = 90
	p := c.ProjectionMatrix(1)
	assert.InDelta(t, 1, p[0], 1e-5)
	assert.InDelta(t, 1, p[5], 1e-5)

	c.Zoom = 2
	p = c.ProjectionMatrix(1)
	assert.InDelta(t, 2, p[5], 1e-5)

	c.Kind = Orthographic
	c.Zoom = 1
	p = c.ProjectionMatrix(2)
	assert.InDelta(t, 0.5, p[0], 1e-5)
	assert.InDelta(t, 1, p[5], 1e-5)

	view := c.ViewMatrix()
	assert.NotEqual(t, math.Identity(), view)
}

func TestRay(t *testing.T) {
	c := New(Perspective)
	c.Position = math.Vec3{Z: 5}
	c.Fov = 90

	center := c.Ray(0, 0, 1)
	assert.InDelta(t, -1, center.Z, 1e-5)

	top := c.Ray(0, 1, 1)
	assert.InDelta(t, 0.7071, top.Y, 1e-3)
	assert.InDelta(t, -0.7071, top.Z, 1e-3)

	c.Kind = Orthographic
	ortho := c.Ray(0.5, 0.5, 1)
	assert.InDelta(t, -1, ortho.Z, 1e-6)
	assert.Zero(t, ortho.Y)
}
