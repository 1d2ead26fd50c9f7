// Package viewer owns one scene viewer: the scene tree, background,
// control panel, user controls, animation and camera, all mutated from a
// single goroutine that drains the viewer's queue.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/animation"
	"github.com/Faultbox/meshview/internal/config"
	"github.com/Faultbox/meshview/internal/controls"
	"github.com/Faultbox/meshview/internal/engine/camera"
	"github.com/Faultbox/meshview/internal/engine/capture"
	"github.com/Faultbox/meshview/internal/engine/renderer"
	"github.com/Faultbox/meshview/internal/ingest"
	"github.com/Faultbox/meshview/internal/metrics"
	"github.com/Faultbox/meshview/internal/panel"
	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/internal/scene"
	"github.com/Faultbox/meshview/pkg/math"
)

const (
	queueSize  = 1024
	eventsSize = 64

	// AnimationsFolder is the panel folder holding playback widgets.
	AnimationsFolder = "Animations"
)

// ErrClosed is returned by Post after the viewer stopped.
var ErrClosed = errors.New("viewer closed")

// Viewer is the per-viewer context. All methods except Post, Submit and
// Events must run on the goroutine executing Run, or on a goroutine that
// owns the viewer exclusively, as tests and replays do.
type Viewer struct {
	cfg *config.Config
	log *zap.Logger
	ctx context.Context

	queue  chan func()
	done   chan struct{}
	events chan protocol.Event

	tree       *scene.Tree
	background *scene.Background
	panel      *panel.Panel
	controls   *controls.Set
	animator   *animation.Controller
	ingester   *ingest.Ingester
	camera     *camera.Camera
	renderer   renderer.Renderer
	metrics    *metrics.Metrics
	shots      *capture.Screenshots
	watcher    *envWatcher

	onFrame   func() bool
	onPresent func()

	dirty   bool
	pending int
	watched string
}

// Option configures a Viewer.
type Option func(*options)

type options struct {
	log      *zap.Logger
	renderer renderer.Renderer
	metrics  *metrics.Metrics
	loader   scene.EnvMapLoader
	recorder animation.Recorder
	clock    func() time.Time
	frame    func() bool
	present  func()
}

// WithLogger sets the root logger; components log through named children.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithRenderer replaces the default software renderer.
func WithRenderer(r renderer.Renderer) Option {
	return func(o *options) { o.renderer = r }
}

// WithMetrics records command and frame metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithEnvMapLoader replaces the file loader used for environment maps.
func WithEnvMapLoader(l scene.EnvMapLoader) Option {
	return func(o *options) { o.loader = l }
}

// WithRecorder replaces the tar frame recorder.
func WithRecorder(r animation.Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithClock replaces time.Now for animation playback.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithFrameHook runs fn at the start of every tick. Returning true stops
// Run. Window hosts poll input here.
func WithFrameHook(fn func() bool) Option {
	return func(o *options) { o.frame = fn }
}

// WithPresentHook runs fn after every rendered frame.
func WithPresentHook(fn func()) Option {
	return func(o *options) { o.present = fn }
}

// New builds a viewer with the default scene described by cfg. ctx bounds
// every background load the viewer starts.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Viewer, error) {
	o := options{log: zap.NewNop(), clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	kind, err := camera.ParseKind(cfg.Viewer.Camera)
	if err != nil {
		return nil, err
	}

	v := &Viewer{
		cfg:       cfg,
		log:       o.log.Named("dispatch"),
		ctx:       ctx,
		queue:     make(chan func(), queueSize),
		done:      make(chan struct{}),
		events:    make(chan protocol.Event, eventsSize),
		ingester:  ingest.New(o.log.Named("ingest")),
		camera:    camera.New(kind),
		renderer:  o.renderer,
		metrics:   o.metrics,
		shots:     capture.NewScreenshots(cfg.Capture.OutputDir, cfg.Capture.Prefix),
		onFrame:   o.frame,
		onPresent: o.present,
	}
	if v.renderer == nil {
		v.renderer = renderer.NewSoftware(cfg.Viewer.Width, cfg.Viewer.Height)
	}

	v.panel = panel.New(
		panel.WithLogger(o.log.Named("panel")),
		panel.WithChangeHook(v.panelChanged),
	)
	v.tree = scene.NewTree(v.defaultScene(kind),
		scene.WithLogger(o.log.Named("scene")),
		scene.WithPanel(v.panel),
		scene.WithUpdateHook(v.updateBackground),
	)

	loader := o.loader
	if loader == nil {
		loader = &scene.FileLoader{}
	}
	v.background = scene.NewBackground(v.backgroundProps(),
		scene.WithEnvMapLoader(ctx, &countingLoader{loader: loader, metrics: o.metrics}, v.post),
		scene.WithBackgroundLogger(o.log.Named("background")),
		scene.WithChangeHook(v.MarkDirty),
	)

	v.controls = controls.New(v.panel.Root(), v.send, o.log.Named("controls"))

	recorder := o.recorder
	if recorder == nil {
		recorder = capture.NewRecorder(cfg.Capture.OutputDir, cfg.Capture.Prefix)
	}
	v.animator = animation.New(v.tree,
		animation.WithLogger(o.log.Named("animation")),
		animation.WithPanel(v.panel.Root().AddFolder(AnimationsFolder)),
		animation.WithRecorder(recorder, v.restoreRenderLoop),
		animation.WithDirtyHook(v.MarkDirty),
		animation.WithClock(o.clock),
	)
	if err := v.animator.SetFormat(cfg.Capture.Format); err != nil {
		return nil, err
	}

	if cfg.Background.WatchEnvironmentMap {
		w, err := newEnvWatcher(o.log.Named("background"))
		if err != nil {
			return nil, fmt.Errorf("environment map watcher: %w", err)
		}
		v.watcher = w
		go w.Run(ctx, v.reloadEnvMap)
	}

	v.updateBackground()
	v.MarkDirty()
	return v, nil
}

// defaultScene builds the initial tree with the configured background.
func (v *Viewer) defaultScene(kind camera.Kind) *scene.Object {
	root := scene.DefaultScene(kind.ObjectType())
	bg := v.cfg.Background
	for _, group := range root.Children {
		if group.Name != scene.BackgroundPath.Last() {
			continue
		}
		group.Visible = bg.Visible
		for _, obj := range group.Children {
			if obj.Background == nil {
				continue
			}
			obj.Background.TopColor = bg.TopColor
			obj.Background.BottomColor = bg.BottomColor
			obj.Background.EnvironmentMap = bg.EnvironmentMap
			obj.Background.RenderEnvironmentMap = bg.RenderEnvironmentMap
		}
	}
	return root
}

// backgroundProps returns the props of the installed Background object.
func (v *Viewer) backgroundProps() *scene.BackgroundProps {
	if n, ok := v.tree.Lookup(scene.BackgroundPath.Child(scene.ObjectName)); ok && n.Object().IsBackground() {
		return n.Object().Background
	}
	return scene.NewBackgroundObject().Background
}

// Tree returns the scene graph.
func (v *Viewer) Tree() *scene.Tree { return v.tree }

// Background returns the background controller.
func (v *Viewer) Background() *scene.Background { return v.background }

// Panel returns the control panel model.
func (v *Viewer) Panel() *panel.Panel { return v.panel }

// Controls returns the user controls.
func (v *Viewer) Controls() *controls.Set { return v.controls }

// Animator returns the animation controller.
func (v *Viewer) Animator() *animation.Controller { return v.animator }

// Camera returns the viewer camera.
func (v *Viewer) Camera() *camera.Camera { return v.camera }

// Renderer returns the renderer.
func (v *Viewer) Renderer() renderer.Renderer { return v.renderer }

// Dirty reports whether a render is pending.
func (v *Viewer) Dirty() bool { return v.dirty }

// MarkDirty schedules a render on the next tick.
func (v *Viewer) MarkDirty() { v.dirty = true }

// Events delivers outbound events for the command sender.
func (v *Viewer) Events() <-chan protocol.Event { return v.events }

// Post queues fn to run on the viewer goroutine.
func (v *Viewer) Post(fn func()) error {
	select {
	case <-v.done:
		return ErrClosed
	default:
	}
	select {
	case v.queue <- fn:
		return nil
	case <-v.done:
		return ErrClosed
	}
}

func (v *Viewer) post(fn func()) {
	if err := v.Post(fn); err != nil {
		v.log.Debug("dropping completion after close")
	}
}

// Submit queues one raw message for decoding and applying.
func (v *Viewer) Submit(data []byte) error {
	return v.Post(func() { _ = v.HandleMessage(data) })
}

// Run drains the queue and ticks the render loop at the configured frame
// rate until ctx ends or the frame hook asks to quit.
func (v *Viewer) Run(ctx context.Context) error {
	defer close(v.done)

	fps := v.cfg.Viewer.FPSLimit
	if fps <= 0 {
		fps = 60
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	v.log.Info("viewer running", zap.Int("fps", fps))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-v.queue:
			fn()
		case <-ticker.C:
			if v.onFrame != nil && v.onFrame() {
				v.log.Info("viewer closed by host")
				return nil
			}
			v.Tick()
		}
	}
}

// Settle runs queued work until no object or environment map load is in
// flight. It is for callers that own the viewer without running Run.
func (v *Viewer) Settle(ctx context.Context) error {
	for v.pending > 0 || v.background.Pending() > 0 {
		select {
		case fn := <-v.queue:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		select {
		case fn := <-v.queue:
			fn()
		default:
			return nil
		}
	}
}

// Tick advances animation and renders when something changed.
func (v *Viewer) Tick() {
	v.animator.Update()
	if !v.dirty {
		return
	}
	v.dirty = false

	if err := v.render(); err != nil {
		v.log.Error("render failed", zap.Error(err))
		return
	}
	if v.animator.Recording() {
		frame, err := v.renderer.Capture()
		if err != nil {
			v.log.Warn("failed to read back frame", zap.Error(err))
		} else {
			v.animator.AfterRender(frame)
		}
	}
	if v.onPresent != nil {
		v.onPresent()
	}
}

func (v *Viewer) render() error {
	v.syncCamera()
	v.updateBackground()
	bg, _ := v.background.Output()
	if err := v.renderer.Render(renderer.Frame{Background: bg, Camera: v.camera}); err != nil {
		return err
	}
	v.metrics.Frame()
	return nil
}

// updateBackground recomputes the background outputs from the group
// visibility and the camera kind.
func (v *Viewer) updateBackground() {
	if props := v.backgroundProps(); props != v.background.Props() {
		v.background.Rebind(props)
	}
	visible := true
	if n, ok := v.tree.Lookup(scene.BackgroundPath); ok {
		visible = n.Object().Visible
	}
	v.syncCamera()
	v.background.Update(visible, v.camera.IsPerspective())
	if v.watcher != nil && v.background.Props().EnvironmentMap != v.watched {
		v.watched = v.background.Props().EnvironmentMap
		v.watcher.Track(v.watched)
	}
	if v.metrics != nil {
		v.metrics.PendingLoads.Set(float64(v.pending + v.background.Pending()))
	}
}

// reloadEnvMap is called by the watcher when the map file changes.
func (v *Viewer) reloadEnvMap(name string) {
	_ = v.Post(func() {
		if v.background.Reload(name) {
			v.MarkDirty()
		}
	})
}

// syncCamera follows the scene camera object.
func (v *Viewer) syncCamera() {
	path := scene.CameraPath.Child(scene.ObjectName)
	world := math.Identity()
	n := v.tree.Root()
	world = world.Mul(n.Object().Matrix())
	for _, name := range path {
		child, ok := n.Child(name)
		if !ok {
			return
		}
		n = child
		world = world.Mul(n.Object().Matrix())
	}
	if _, ok := camera.KindOf(n.Object()); ok {
		v.camera.Sync(n.Object(), world)
	}
}

// panelChanged runs after a panel edit wrote to the scene.
func (v *Viewer) panelChanged(path protocol.Path, _ string) {
	if path.Equal(scene.BackgroundPath.Child(scene.ObjectName)) || path.Equal(scene.BackgroundPath) {
		v.updateBackground()
	}
	v.MarkDirty()
}

func (v *Viewer) restoreRenderLoop() {
	v.log.Debug("render loop restored after capture")
	v.MarkDirty()
}

// send queues an outbound event without blocking the viewer.
func (v *Viewer) send(ev protocol.Event) {
	select {
	case v.events <- ev:
		v.metrics.Event(ev.Type)
	default:
		v.log.Warn("event queue full, dropping event", zap.String("type", ev.Type), zap.String("name", ev.Name))
	}
}

// HandleKey routes a key press to control shortcuts.
func (v *Viewer) HandleKey(key string) {
	if v.controls.HandleKey(key) {
		v.MarkDirty()
	}
}

// Orbit rotates the camera by a drag delta.
func (v *Viewer) Orbit(dx, dy float32) {
	v.camera.HandleDrag(dx, dy)
	v.MarkDirty()
}

// Zoom moves the camera by a scroll delta.
func (v *Viewer) Zoom(delta float32) {
	v.camera.HandleZoom(delta)
	v.MarkDirty()
}

// Resize changes the render size.
func (v *Viewer) Resize(width, height int) {
	v.renderer.Resize(width, height)
	v.MarkDirty()
}

// countingLoader records environment map loads.
type countingLoader struct {
	loader  scene.EnvMapLoader
	metrics *metrics.Metrics
}

func (l *countingLoader) Load(ctx context.Context, name string) (*scene.Texture, error) {
	t, err := l.loader.Load(ctx, name)
	l.metrics.Load("environment_map", err)
	return t, err
}
