package animation

import (
	gomath "math"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/scene"
	"github.com/Faultbox/meshview/pkg/math"
)

// LoopMode selects what an action does at the end of its clip. The numbers
// match the three.js constants clients send.
type LoopMode int

const (
	LoopOnce     LoopMode = 2200
	LoopRepeat   LoopMode = 2201
	LoopPingPong LoopMode = 2202
)

// binding ties one track to the object it writes.
type binding struct {
	track  *Track
	object *scene.Object
}

// Action plays one clip on one target object.
type Action struct {
	clip              *Clip
	bindings          []binding
	loop              LoopMode
	repetitions       int
	clampWhenFinished bool

	time      float64
	loopCount int
	paused    bool
	enabled   bool
	running   bool
	log       *zap.Logger
}

func newAction(clip *Clip, target *scene.Object, log *zap.Logger) *Action {
	a := &Action{
		clip:              clip,
		loop:              LoopRepeat,
		repetitions:       gomath.MaxInt,
		clampWhenFinished: false,
		enabled:           true,
		loopCount:         -1,
		log:               log,
	}
	for _, tr := range clip.Tracks {
		obj := resolveNode(target, tr.Node)
		if obj == nil {
			log.Warn("no node found for animation track", zap.String("clip", clip.Name), zap.String("track", tr.Name))
			continue
		}
		a.bindings = append(a.bindings, binding{track: tr, object: obj})
	}
	return a
}

// resolveNode finds the descendant of root called name, or root itself.
func resolveNode(root *scene.Object, name string) *scene.Object {
	if name == "" || name == root.Name || name == root.UUID {
		return root
	}
	var found *scene.Object
	root.Traverse(func(o *scene.Object) {
		if found == nil && (o.Name == name || o.UUID == name) {
			found = o
		}
	})
	return found
}

// Clip returns the played clip.
func (a *Action) Clip() *Clip { return a.clip }

// Time returns the playhead in seconds.
func (a *Action) Time() float64 { return a.time }

// Seek moves the playhead to t and writes the sampled values. A finished
// action is sampled too but stays finished.
func (a *Action) Seek(t float64) {
	a.time = t
	if !a.running {
		return
	}
	a.apply(a.advance(0))
}

// Paused reports whether the action was halted, usually by clamping at the
// end of its last repetition.
func (a *Action) Paused() bool { return a.paused }

// Enabled reports whether the action still affects its target.
func (a *Action) Enabled() bool { return a.enabled }

// Running reports whether Play was called since the last Stop.
func (a *Action) Running() bool { return a.running }

// Finished reports whether the action will not advance any further.
func (a *Action) Finished() bool { return a.paused || !a.enabled }

// SetLoop sets the loop mode and number of repetitions.
func (a *Action) SetLoop(mode LoopMode, repetitions int) {
	a.loop = mode
	a.repetitions = repetitions
}

// Play schedules the action.
func (a *Action) Play() { a.running = true }

// Stop unschedules the action and rewinds it.
func (a *Action) Stop() {
	a.running = false
	a.Reset()
}

// Reset rewinds the action to its first frame.
func (a *Action) Reset() {
	a.paused = false
	a.enabled = true
	a.time = 0
	a.loopCount = -1
}

// update advances the playhead by dt and writes the sampled values.
func (a *Action) update(dt float64) {
	if !a.running || !a.enabled {
		return
	}
	if a.paused {
		dt = 0
	}
	a.apply(a.advance(dt))
}

// advance moves the playhead and returns the clip time to sample, which
// differs from the playhead on the backwards half of a ping-pong loop.
func (a *Action) advance(dt float64) float64 {
	duration := float64(a.clip.Duration)
	t := a.time + dt
	pingPong := a.loop == LoopPingPong

	if dt == 0 {
		if a.loopCount == -1 {
			return t
		}
		if pingPong && a.loopCount&1 == 1 {
			return duration - t
		}
		return t
	}

	if a.loop == LoopOnce || duration == 0 {
		if a.loopCount == -1 {
			a.loopCount = 0
		}
		switch {
		case t >= duration:
			t = duration
		case t < 0:
			t = 0
		default:
			a.time = t
			return t
		}
		a.finish()
		a.time = t
		return t
	}

	if a.loopCount == -1 {
		a.loopCount = 0
	}
	if t >= duration || t < 0 {
		loops := gomath.Floor(t / duration)
		t -= duration * loops
		a.loopCount += int(gomath.Abs(loops))
		if a.repetitions-a.loopCount <= 0 {
			a.finish()
			if dt > 0 {
				t = duration
			} else {
				t = 0
			}
		}
	}
	a.time = t
	if pingPong && a.loopCount&1 == 1 {
		return duration - t
	}
	return t
}

func (a *Action) finish() {
	if a.clampWhenFinished {
		a.paused = true
	} else {
		a.enabled = false
	}
}

// apply writes every track's value at clip time t.
func (a *Action) apply(t float64) {
	for _, b := range a.bindings {
		if err := write(b.object, b.track, float32(t)); err != nil {
			a.log.Debug("animation track write failed", zap.String("track", b.track.Name), zap.Error(err))
		}
	}
}

func write(obj *scene.Object, tr *Track, t float32) error {
	if tr.Type == TypeString {
		return scene.SetChain(obj, tr.Property, tr.SampleString(t))
	}
	v := tr.Sample(t)
	switch tr.Property {
	case "position":
		obj.Position = math.Vec3FromSlice(v)
		return nil
	case "scale":
		obj.Scale = math.Vec3FromSlice(v)
		return nil
	case "quaternion":
		obj.Quaternion = math.QuatFromSlice(v).Normalize()
		return nil
	}
	switch {
	case tr.Type == TypeBool:
		return scene.SetChain(obj, tr.Property, v[0] >= 0.5)
	case len(v) == 1:
		return scene.SetChain(obj, tr.Property, float64(v[0]))
	}
	vals := make([]any, len(v))
	for i, f := range v {
		vals[i] = float64(f)
	}
	return scene.SetChain(obj, tr.Property, vals)
}
