// Package animation plays keyframe clips on scene objects: one action per
// clip and target, a shared playhead, loop handling and frame recording.
package animation

import (
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/panel"
	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/internal/scene"
)

// Defaults applied to options a load leaves unset.
const (
	DefaultLoopMode          = LoopRepeat
	DefaultRepetitions       = 1
	DefaultPlay              = true
	DefaultClampWhenFinished = true
)

// Frame formats a recording can use.
const (
	FormatPNG = "png"
	FormatJPG = "jpg"
)

// Targets resolves animation paths to scene nodes.
type Targets interface {
	Find(path protocol.Path) *scene.Node
}

// Recorder captures rendered frames while a recording is active.
type Recorder interface {
	// Start begins a new capture.
	Start(format string) error
	// Capture stores one rendered frame.
	Capture(frame image.Image) error
	// Stop ends the capture, keeping the frames.
	Stop()
	// Save writes the captured frames and returns where they went.
	Save() (string, error)
	// Discard drops any captured frames.
	Discard()
}

// Controller owns the loaded actions and the playback state.
type Controller struct {
	targets Targets
	folder  *panel.Folder
	log     *zap.Logger
	now     func() time.Time

	recorder    Recorder
	restoreLoop func()
	onDirty     func()

	actions   []*Action
	playing   bool
	recording bool
	format    string
	time      float64
	duration  float64
	timeScale float64
	clockRun  bool
	lastTick  time.Time
	scrubber  *panel.Controller
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller's logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// WithPanel adds playback widgets under folder.
func WithPanel(folder *panel.Folder) Option {
	return func(c *Controller) { c.folder = folder }
}

// WithRecorder enables recording. restoreLoop runs when a capture stops,
// to resume the regular render loop.
func WithRecorder(rec Recorder, restoreLoop func()) Option {
	return func(c *Controller) {
		c.recorder = rec
		c.restoreLoop = restoreLoop
	}
}

// WithDirtyHook sets the callback run whenever the scene changed.
func WithDirtyHook(fn func()) Option {
	return func(c *Controller) { c.onDirty = fn }
}

// WithClock replaces time.Now as the playback clock.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New returns an idle controller animating nodes resolved by targets.
func New(targets Targets, opts ...Option) *Controller {
	c := &Controller{
		targets:   targets,
		log:       zap.NewNop(),
		now:       time.Now,
		format:    FormatPNG,
		timeScale: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Actions returns the loaded actions.
func (c *Controller) Actions() []*Action { return c.actions }

// Playing reports whether the playhead advances on Update.
func (c *Controller) Playing() bool { return c.playing }

// Recording reports whether rendered frames are being captured.
func (c *Controller) Recording() bool { return c.recording }

// Time returns the furthest playhead of any action, as last displayed.
func (c *Controller) Time() float64 { return c.time }

// Duration returns the length of the longest loaded clip.
func (c *Controller) Duration() float64 { return c.duration }

// TimeScale returns the playback speed multiplier.
func (c *Controller) TimeScale() float64 { return c.timeScale }

// SetTimeScale sets the playback speed multiplier. Negative values are
// clamped to zero.
func (c *Controller) SetTimeScale(s float64) {
	c.timeScale = max(s, 0)
}

// Format returns the frame format used for recordings.
func (c *Controller) Format() string { return c.format }

// SetFormat selects the frame format for the next recording.
func (c *Controller) SetFormat(format string) error {
	if format != FormatPNG && format != FormatJPG {
		return fmt.Errorf("unsupported recording format %q", format)
	}
	c.format = format
	c.discardCapture()
	return nil
}

// Load replaces the current animation with specs. All clips are parsed
// before anything changes, so a bad clip leaves the old animation intact.
func (c *Controller) Load(specs []protocol.AnimationSpec, opts protocol.AnimationOptions) error {
	clips := make([]*Clip, len(specs))
	for i, spec := range specs {
		clip, err := ParseClip(spec.Clip)
		if err != nil {
			return fmt.Errorf("animation %d at %s: %w", i, spec.Path, err)
		}
		clips[i] = clip
	}

	c.Clear()
	c.buildPanel()

	play, loop, reps, clamp := DefaultPlay, DefaultLoopMode, DefaultRepetitions, DefaultClampWhenFinished
	if opts.Play != nil {
		play = *opts.Play
	}
	if opts.LoopMode != nil {
		loop = LoopMode(*opts.LoopMode)
	}
	if opts.Repetitions != nil {
		reps = *opts.Repetitions
	}
	if opts.ClampWhenFinished != nil {
		clamp = *opts.ClampWhenFinished
	}

	for i, spec := range specs {
		target := c.targets.Find(spec.Path).Object()
		a := newAction(clips[i], target, c.log)
		a.clampWhenFinished = clamp
		a.SetLoop(loop, reps)
		c.actions = append(c.actions, a)
		c.duration = max(c.duration, float64(clips[i].Duration))
	}
	if c.scrubber != nil {
		c.scrubber.Min(0).Max(c.duration)
	}
	c.log.Debug("animation loaded", zap.Int("actions", len(c.actions)), zap.Float64("duration", c.duration))

	c.Reset()
	if play {
		c.Play()
	}
	return nil
}

// Clear stops and forgets every action.
func (c *Controller) Clear() {
	if c.folder != nil {
		c.folder.Clear()
	}
	c.scrubber = nil
	for _, a := range c.actions {
		a.Stop()
	}
	c.actions = nil
	c.duration = 0
	c.displayProgress(0)
}

// Play starts or resumes every action.
func (c *Controller) Play() {
	c.clockRun = true
	c.lastTick = c.now()
	for _, a := range c.actions {
		a.Play()
	}
	c.playing = true
}

// Pause halts playback. An active recording is stopped and saved.
func (c *Controller) Pause() {
	c.clockRun = false
	c.playing = false
	if c.recording {
		c.stopCapture()
		c.saveCapture()
	}
}

// Reset rewinds every action and discards captured frames.
func (c *Controller) Reset() {
	for _, a := range c.actions {
		a.Reset()
	}
	c.displayProgress(0)
	c.step(0)
	c.discardCapture()
	c.dirty()
}

// Seek moves every action's playhead to t, clamped to its own clip.
func (c *Controller) Seek(t float64) {
	for _, a := range c.actions {
		a.Seek(min(max(t, 0), float64(a.clip.Duration)))
	}
	c.dirty()
}

// Record rewinds, plays and captures every rendered frame until paused.
func (c *Controller) Record() error {
	if c.recorder == nil {
		return fmt.Errorf("recording is not available")
	}
	c.Reset()
	c.Play()
	if err := c.recorder.Start(c.format); err != nil {
		return fmt.Errorf("start recording: %w", err)
	}
	c.recording = true
	return nil
}

// Update advances playback by the time elapsed since the previous call.
// When every action has finished, playback pauses and rewinds.
func (c *Controller) Update() {
	if !c.playing {
		return
	}
	c.step(c.delta())
	c.dirty()

	if c.duration != 0 {
		furthest := 0.0
		for _, a := range c.actions {
			furthest = max(furthest, a.Time())
		}
		c.displayProgress(furthest)
	} else {
		c.displayProgress(0)
	}

	for _, a := range c.actions {
		if !a.Finished() {
			return
		}
	}
	c.Pause()
	for _, a := range c.actions {
		a.Reset()
	}
}

// AfterRender hands a rendered frame to the recorder while recording.
func (c *Controller) AfterRender(frame image.Image) {
	if !c.recording {
		return
	}
	if err := c.recorder.Capture(frame); err != nil {
		c.log.Warn("failed to capture frame", zap.Error(err))
	}
}

func (c *Controller) delta() float64 {
	if !c.clockRun {
		return 0
	}
	now := c.now()
	d := now.Sub(c.lastTick).Seconds()
	c.lastTick = now
	return d
}

func (c *Controller) step(dt float64) {
	for _, a := range c.actions {
		a.update(dt * c.timeScale)
	}
}

func (c *Controller) displayProgress(t float64) {
	c.time = t
	if c.scrubber != nil {
		c.scrubber.Refresh()
	}
}

func (c *Controller) dirty() {
	if c.onDirty != nil {
		c.onDirty()
	}
}

func (c *Controller) stopCapture() {
	c.recording = false
	c.recorder.Stop()
	if c.restoreLoop != nil {
		c.restoreLoop()
	}
}

func (c *Controller) saveCapture() {
	where, err := c.recorder.Save()
	if err != nil {
		c.log.Error("failed to save recording", zap.Error(err))
		return
	}
	c.log.Info("recording saved; extract the archive and convert the frames with ffmpeg",
		zap.String("archive", where),
		zap.String("command", fmt.Sprintf("ffmpeg -r 60 -i %%07d.%s -vcodec libx264 -preset slow -crf 18 output.mp4", c.format)),
	)
}

func (c *Controller) discardCapture() {
	if c.recorder != nil && !c.recording {
		c.recorder.Discard()
	}
}

// buildPanel creates the playback widgets for a freshly loaded animation.
func (c *Controller) buildPanel() {
	if c.folder == nil {
		return
	}
	c.folder.Open()
	f := c.folder.AddFolder("default")
	f.Open()
	f.AddButton("play", c.Play)
	f.AddButton("pause", c.Pause)
	f.AddButton("reset", c.Reset)
	c.scrubber = f.AddNumber("time", func() float64 { return c.time }, func(t float64) {
		c.time = t
		c.Seek(t)
	}).Min(0).Max(1e9).Step(0.001)
	f.AddNumber("timeScale", c.TimeScale, c.SetTimeScale).Step(0.01).Min(0)

	rec := f.AddFolder("Recording")
	rec.AddButton("record", func() {
		if err := c.Record(); err != nil {
			c.log.Warn("failed to start recording", zap.Error(err))
		}
	})
	rec.AddOption("format", []string{FormatPNG, FormatJPG}, c.format).OnChange(func(v any) {
		s, _ := v.(string)
		if err := c.SetFormat(s); err != nil {
			c.log.Warn("failed to change recording format", zap.Error(err))
		}
	})
}
