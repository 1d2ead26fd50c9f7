package viewer

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/meshview/internal/config"
	"github.com/Faultbox/meshview/internal/engine/camera"
	"github.com/Faultbox/meshview/internal/ingest"
	"github.com/Faultbox/meshview/internal/metrics"
	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/internal/scene"
)

type failingLoader struct{}

func (failingLoader) Load(context.Context, string) (*scene.Texture, error) {
	return nil, errors.New("not found")
}

type fixedLoader struct{}

func (fixedLoader) Load(_ context.Context, name string) (*scene.Texture, error) {
	t := scene.NewDataTexture([]uint8{255, 0, 0, 255}, 1, 1, scene.MappingEquirectangularReflection)
	t.Name = name
	return t, nil
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Viewer.Width, cfg.Viewer.Height = 8, 8
	cfg.Capture.OutputDir = t.TempDir()
	return cfg
}

func newViewer(t *testing.T, opts ...Option) (*Viewer, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	opts = append([]Option{WithLogger(zap.New(core))}, opts...)
	v, err := New(context.Background(), testConfig(t), opts...)
	require.NoError(t, err)
	return v, logs
}

func message(t *testing.T, m map[string]any) []byte {
	t.Helper()
	data, err := msgpack.Marshal(m)
	require.NoError(t, err)
	return data
}

func settle(t *testing.T, v *Viewer) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, v.Settle(ctx))
}

func box(uuid string) map[string]any {
	return map[string]any{
		"geometries": []any{map[string]any{"uuid": "geom-" + uuid, "type": "BoxGeometry", "width": 1, "height": 1, "depth": 1}},
		"materials":  []any{map[string]any{"uuid": "mat-" + uuid, "type": "MeshLambertMaterial", "color": 0x00ff00}},
		"object":     map[string]any{"uuid": uuid, "type": "Mesh", "geometry": "geom-" + uuid, "material": "mat-" + uuid},
	}
}

func pngDataURL(t *testing.T, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// texturedBox is box with a 4x2 embedded image as its material map.
func texturedBox(t *testing.T, uuid string) map[string]any {
	desc := box(uuid)
	desc["images"] = []any{map[string]any{"uuid": "img-" + uuid, "url": pngDataURL(t, 4, 2)}}
	desc["textures"] = []any{map[string]any{"uuid": "tex-" + uuid, "image": "img-" + uuid}}
	desc["materials"] = []any{map[string]any{"uuid": "mat-" + uuid, "type": "MeshLambertMaterial", "color": 0x00ff00, "map": "tex-" + uuid}}
	return desc
}

func TestNewDefaultScene(t *testing.T) {
	v, _ := newViewer(t)
	for _, path := range []string{"/Lights/DirectionalLight", "/Grid", "/Axes", "/Background/<object>", "/Cameras/default/rotated/<object>"} {
		_, ok := v.Tree().Lookup(protocol.SplitPath(path))
		assert.True(t, ok, path)
	}
	_, ok := v.Panel().Root().Folder(AnimationsFolder)
	assert.True(t, ok)
	assert.True(t, v.Dirty())

	bg, env := v.Background().Output()
	assert.Same(t, v.Background().Gradient(true), bg)
	assert.Same(t, v.Background().Gradient(true), env)
}

func TestNewRejectsUnknownCamera(t *testing.T) {
	cfg := testConfig(t)
	cfg.Viewer.Camera = "fisheye"
	_, err := New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSetTransformMessage(t *testing.T) {
	v, _ := newViewer(t)
	v.dirty = false
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type":   "set_transform",
		"path":   "/meshes/box",
		"matrix": []float32{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 1, 2, 3, 1},
	})))

	n, ok := v.Tree().Lookup(protocol.Path{"meshes", "box"})
	require.True(t, ok)
	assert.InDelta(t, 2, n.Object().Position.Y, 1e-6)
	assert.True(t, v.Dirty())
}

func TestDecodeFailureLeavesSceneAlone(t *testing.T) {
	m := metrics.New()
	v, logs := newViewer(t, WithMetrics(m))
	before := v.Tree().Root().Len()

	assert.Error(t, v.HandleMessage([]byte{0xc1}))
	assert.ErrorIs(t, v.HandleMessage(message(t, map[string]any{"type": "set_transform", "path": "/a", "matrix": []float32{1, 2}})), protocol.ErrMalformedCommand)
	assert.Equal(t, before, v.Tree().Root().Len())
	assert.Equal(t, 2, logs.FilterMessage("dropping message that failed to decode").Len())
}

func TestDeleteRootRejected(t *testing.T) {
	v, logs := newViewer(t)
	err := v.HandleMessage(message(t, map[string]any{"type": "delete", "path": ""}))
	assert.ErrorIs(t, err, scene.ErrRootDelete)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.ErrorLevel).Len())
	_, ok := v.Tree().Lookup(scene.BackgroundPath)
	assert.True(t, ok)

	require.NoError(t, v.HandleMessage(message(t, map[string]any{"type": "delete", "path": "/Grid"})))
	_, ok = v.Tree().Lookup(protocol.Path{"Grid"})
	assert.False(t, ok)
}

func TestSetObjectIsInstalled(t *testing.T) {
	v, _ := newViewer(t)
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_object", "path": "/meshes/box", "object": box("first"),
	})))

	n, ok := v.Tree().Lookup(protocol.Path{"meshes", "box", scene.ObjectName})
	require.True(t, ok)
	assert.Equal(t, "first", n.Object().UUID)
	assert.Equal(t, scene.TypeMesh, n.Object().Type)
}

func TestLaterSetObjectWins(t *testing.T) {
	v, _ := newViewer(t)
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_object", "path": "/meshes/box", "object": box("first"),
	})))
	n, ok := v.Tree().Lookup(protocol.Path{"meshes", "box", scene.ObjectName})
	require.True(t, ok)
	first := n.Object()

	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_object", "path": "/meshes/box", "object": box("second"),
	})))
	settle(t, v)

	n, ok = v.Tree().Lookup(protocol.Path{"meshes", "box", scene.ObjectName})
	require.True(t, ok)
	assert.Equal(t, "second", n.Object().UUID)
	assert.True(t, first.Materials[0].Disposed())
}

func TestSetObjectThenDelete(t *testing.T) {
	v, _ := newViewer(t)
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_object", "path": "/meshes/box", "object": texturedBox(t, "box"),
	})))
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "delete", "path": "/meshes/box",
	})))
	settle(t, v)

	_, ok := v.Tree().Lookup(protocol.Path{"meshes", "box"})
	assert.False(t, ok)
}

func TestSetObjectThenSetProperty(t *testing.T) {
	v, _ := newViewer(t)
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_object", "path": "/meshes/box", "object": texturedBox(t, "box"),
	})))
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_property", "path": "/meshes/box", "property": "opacity", "value": 0.25,
	})))
	settle(t, v)

	n, ok := v.Tree().Lookup(protocol.Path{"meshes", "box", scene.ObjectName})
	require.True(t, ok)
	m := n.Object().Materials[0]
	assert.InDelta(t, 0.25, m.Opacity, 1e-6)
	assert.True(t, m.Transparent)
}

func TestEmbeddedImageFillsTexture(t *testing.T) {
	v, _ := newViewer(t)
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_object", "path": "/meshes/box", "object": texturedBox(t, "box"),
	})))
	n, ok := v.Tree().Lookup(protocol.Path{"meshes", "box", scene.ObjectName})
	require.True(t, ok)
	tex := n.Object().Materials[0].Map
	require.NotNil(t, tex)

	settle(t, v)
	require.NotNil(t, tex.Image)
	assert.Equal(t, 4, tex.Width)
	assert.Equal(t, 2, tex.Height)
	assert.True(t, tex.NeedsUpdate)
}

func TestEmbeddedImageAfterDeleteStaysReleased(t *testing.T) {
	v, _ := newViewer(t)
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_object", "path": "/meshes/box", "object": texturedBox(t, "box"),
	})))
	n, ok := v.Tree().Lookup(protocol.Path{"meshes", "box", scene.ObjectName})
	require.True(t, ok)
	tex := n.Object().Materials[0].Map

	require.NoError(t, v.HandleMessage(message(t, map[string]any{"type": "delete", "path": "/meshes"})))
	settle(t, v)
	assert.True(t, tex.Disposed())
	assert.Nil(t, tex.Image)
}

func TestUnsupportedSetObjectIsNoop(t *testing.T) {
	v, logs := newViewer(t)
	err := v.HandleMessage(message(t, map[string]any{
		"type": "set_object", "path": "/meshes/part",
		"object": map[string]any{"object": map[string]any{"uuid": "p", "type": "_meshfile_object", "format": "dae", "data": "<COLLADA/>"}},
	}))
	assert.ErrorIs(t, err, ingest.ErrUnsupportedFormat)

	_, ok := v.Tree().Lookup(protocol.Path{"meshes", "part", scene.ObjectName})
	assert.False(t, ok)
	assert.Equal(t, 1, logs.FilterMessage("unsupported mesh type").Len())
}

func TestBackgroundPropertyRedirect(t *testing.T) {
	v, _ := newViewer(t)
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_property", "path": "/Background", "property": "top_color", "value": []float64{1, 0, 0},
	})))
	assert.Equal(t, [3]uint8{255, 0, 0}, v.Background().Props().TopColor)
	bg, _ := v.Background().Output()
	assert.Equal(t, uint8(255), bg.Pixels[4*scene.GradientWidth])

	// Visibility stays on the group.
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_property", "path": "/Background", "property": "visible", "value": false,
	})))
	group, _ := v.Tree().Lookup(scene.BackgroundPath)
	assert.False(t, group.Object().Visible)
	v.Tick()
	bg, env := v.Background().Output()
	assert.Same(t, v.Background().White(true), bg)
	assert.Same(t, v.Background().White(true), env)
}

func TestPropertyChainFailureKeepsRunning(t *testing.T) {
	v, logs := newViewer(t)
	err := v.HandleMessage(message(t, map[string]any{
		"type": "set_property", "path": "/Grid", "property": "foo.bar.nonexistent", "value": 1,
	}))
	var perr *scene.PropertyError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 1, logs.FilterMessage("set_property failed").Len())

	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_property", "path": "/Axes", "property": "visible", "value": true,
	})))
}

func TestEnvironmentMapFailureDegrades(t *testing.T) {
	v, logs := newViewer(t, WithEnvMapLoader(failingLoader{}))
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_property", "path": "/Background", "property": "environment_map", "value": "sky.hdr",
	})))
	assert.Equal(t, 1, v.Background().Pending())
	settle(t, v)

	assert.Empty(t, v.Background().Props().EnvironmentMap)
	bg, _ := v.Background().Output()
	assert.Same(t, v.Background().Gradient(true), bg)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).FilterField(zap.String("map", "sky.hdr")).Len())
}

func TestEnvironmentMapLoads(t *testing.T) {
	v, _ := newViewer(t, WithEnvMapLoader(fixedLoader{}))
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_property", "path": "/Background", "property": "environment_map", "value": "red.png",
	})))
	settle(t, v)

	bg, env := v.Background().Output()
	require.NotNil(t, bg)
	assert.Equal(t, "red.png", bg.Name)
	assert.Same(t, bg, env)
}

func TestCameraKindFollowsSceneCamera(t *testing.T) {
	v, _ := newViewer(t)
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_object", "path": "/Cameras/default/rotated",
		"object": map[string]any{"object": map[string]any{
			"uuid": "ortho", "type": "OrthographicCamera",
			"left": -2, "right": 2, "top": 1, "bottom": -1, "zoom": 1,
		}},
	})))
	settle(t, v)
	v.Tick()

	assert.Equal(t, camera.Orthographic, v.Camera().Kind)
	bg, env := v.Background().Output()
	assert.Same(t, v.Background().Gradient(false), bg)
	assert.Same(t, v.Background().Gradient(true), env)
}

func TestSetTarget(t *testing.T) {
	v, _ := newViewer(t)
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_target", "path": "", "value": []float64{1, 2, 3},
	})))
	assert.InDelta(t, 3, v.Camera().Target.Z, 1e-6)
}

func TestCaptureImage(t *testing.T) {
	v, _ := newViewer(t)
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "capture_image", "xres": 4, "yres": 2,
	})))

	select {
	case ev := <-v.Events():
		assert.Equal(t, "img", ev.Type)
		assert.True(t, strings.HasPrefix(ev.Data, "data:image/png;base64,"))
	default:
		t.Fatal("no image event")
	}
	w, h := v.Renderer().Size()
	assert.Equal(t, 8, w)
	assert.Equal(t, 8, h)
}

func TestSaveImage(t *testing.T) {
	v, logs := newViewer(t)
	require.NoError(t, v.HandleMessage(message(t, map[string]any{"type": "save_image"})))
	saved := logs.FilterMessage("screenshot saved").All()
	require.Len(t, saved, 1)
	assert.Contains(t, saved[0].ContextMap()["file"], v.cfg.Capture.OutputDir)
}

func TestControlsRoundTrip(t *testing.T) {
	v, _ := newViewer(t)
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_control", "name": "speed", "callback": "cb",
		"value": 1, "min": 0, "max": 10, "step": 0.5, "keycode1": "a", "keycode2": "d",
	})))
	v.HandleKey("D")

	ev := <-v.Events()
	assert.Equal(t, "control", ev.Type)
	assert.Equal(t, "speed", ev.Name)
	assert.Equal(t, 1.5, ev.Value)

	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_control_value", "name": "speed", "value": 4, "invoke_callback": false,
	})))
	c, _ := v.Controls().Get("speed")
	assert.Equal(t, 4.0, c.Value())

	require.NoError(t, v.HandleMessage(message(t, map[string]any{"type": "delete_control", "name": "speed"})))
	err := v.HandleMessage(message(t, map[string]any{"type": "delete_control", "name": "speed"}))
	assert.Error(t, err)
}

func TestSetAnimationUsesConfigDefaults(t *testing.T) {
	v, _ := newViewer(t)
	v.cfg.Animation.Play = false

	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_animation", "path": "",
		"animations": []any{map[string]any{
			"path": "/meshes/box",
			"clip": map[string]any{"fps": 1, "tracks": []any{map[string]any{
				"name": ".position", "type": "vector",
				"keys": []any{
					map[string]any{"time": 0, "value": []any{0, 0, 0}},
					map[string]any{"time": 2, "value": []any{1, 0, 0}},
				},
			}}},
		}},
	})))
	assert.Len(t, v.Animator().Actions(), 1)
	assert.False(t, v.Animator().Playing())
	assert.InDelta(t, 2, v.Animator().Duration(), 1e-9)

	err := v.HandleMessage(message(t, map[string]any{
		"type": "set_animation", "path": "",
		"animations": []any{map[string]any{"path": "/x", "clip": map[string]any{"tracks": []any{map[string]any{"name": ".position"}}}}},
	}))
	assert.Error(t, err)
	assert.Len(t, v.Animator().Actions(), 1)
}

func TestTickRendersOnlyWhenDirty(t *testing.T) {
	m := metrics.New()
	v, _ := newViewer(t, WithMetrics(m))
	presented := 0
	v.onPresent = func() { presented++ }

	v.Tick()
	v.Tick()
	assert.Equal(t, 1, presented)

	v.Orbit(10, 0)
	v.Tick()
	assert.Equal(t, 2, presented)
}

func TestPostAfterRunStops(t *testing.T) {
	v, _ := newViewer(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- v.Run(ctx) }()

	ran := make(chan struct{})
	require.NoError(t, v.Post(func() { close(ran) }))
	<-ran
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.ErrorIs(t, v.Post(func() {}), ErrClosed)
}

func TestExportImportRoundTrip(t *testing.T) {
	v, _ := newViewer(t)
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_object", "path": "/meshes/box", "object": box("boxy"),
	})))
	settle(t, v)
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type":   "set_transform",
		"path":   "/meshes/box",
		"matrix": []float32{2, 0, 0, 0, 0, 2, 0, 0, 0, 0, 2, 0, 1, 2, 3, 1},
	})))
	require.NoError(t, v.HandleMessage(message(t, map[string]any{
		"type": "set_property", "path": "/Background", "property": "bottom_color", "value": []float64{0, 0, 1},
	})))

	file := t.TempDir() + "/scene.msgpack"
	require.NoError(t, v.ExportFile(file))

	other, _ := newViewer(t)
	require.NoError(t, other.ImportFile(file))

	n, ok := other.Tree().Lookup(protocol.Path{"meshes", "box"})
	require.True(t, ok)
	assert.InDelta(t, 2, n.Object().Scale.X, 1e-5)
	assert.InDelta(t, 3, n.Object().Position.Z, 1e-5)

	mesh, ok := other.Tree().Lookup(protocol.Path{"meshes", "box", scene.ObjectName})
	require.True(t, ok)
	assert.Equal(t, "boxy", mesh.Object().UUID)

	assert.Equal(t, [3]uint8{0, 0, 255}, other.Background().Props().BottomColor)
	_, ok = other.Panel().FolderFor(protocol.Path{"meshes", "box"})
	assert.True(t, ok)

	assert.Error(t, other.Import([]byte{0xc1}))
}
