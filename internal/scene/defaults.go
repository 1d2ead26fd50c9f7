package scene

import (
	stdmath "math"

	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/pkg/math"
)

// Well-known paths in the default scene.
var (
	BackgroundPath = protocol.Path{"Background"}
	CameraPath     = protocol.Path{"Cameras", "default", "rotated"}
)

// DefaultScene builds the initial hierarchy: a Z-up root with lights, a
// grid, hidden axes, the background object and the default camera.
func DefaultScene(cameraType string) *Object {
	root := NewObject(TypeScene, "Scene")
	root.Quaternion = math.QuatFromAxisAngle(math.Vec3{X: 1}, -stdmath.Pi/2)

	lights := NewGroup("Lights")
	directional := NewLight(TypeDirectionalLight, "DirectionalLight", White, 0.5)
	directional.Position = math.Vec3{X: 1, Y: 5, Z: 10}
	lights.Add(directional)
	lights.Add(NewLight(TypeAmbientLight, "AmbientLight", White, 0.3))
	root.Add(lights)

	grid := NewObject(TypeGridHelper, "Grid")
	grid.Quaternion = math.QuatFromAxisAngle(math.Vec3{X: 1}, stdmath.Pi/2)
	grid.Props["size"] = 20.0
	grid.Props["divisions"] = 40.0
	root.Add(grid)

	axes := NewObject(TypeAxesHelper, "Axes")
	axes.Props["size"] = 0.5
	axes.Visible = false
	root.Add(axes)

	background := NewGroup("Background")
	background.Add(NewBackgroundObject())
	root.Add(background)

	cameras := NewGroup("Cameras")
	def := NewGroup("default")
	rotated := NewGroup("rotated")
	rotated.Quaternion = math.QuatFromAxisAngle(math.Vec3{X: 1}, stdmath.Pi/2)
	if cameraType != TypeOrthographicCamera {
		cameraType = TypePerspectiveCamera
	}
	cam := NewCamera(cameraType, ObjectName)
	cam.Position = math.Vec3{X: 3, Y: 1, Z: 0}
	rotated.Add(cam)
	def.Add(rotated)
	cameras.Add(def)
	root.Add(cameras)

	return root
}
