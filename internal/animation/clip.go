package animation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/tanema/gween/ease"

	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/pkg/math"
)

// ErrBadClip is returned for clip descriptions that cannot be sampled.
var ErrBadClip = errors.New("malformed animation clip")

// ValueType is the kind of value a track animates.
type ValueType int

const (
	TypeNumber ValueType = iota
	TypeVector
	TypeQuaternion
	TypeColor
	TypeBool
	TypeString
)

var valueTypes = map[string]ValueType{
	"number":     TypeNumber,
	"vector":     TypeVector,
	"quaternion": TypeQuaternion,
	"color":      TypeColor,
	"bool":       TypeBool,
	"string":     TypeString,
}

// Interpolation selects how values between keyframes are computed. The
// numbers match the three.js constants clients send.
type Interpolation int

const (
	InterpolateDiscrete Interpolation = 2300
	InterpolateLinear   Interpolation = 2301
	InterpolateSmooth   Interpolation = 2302
)

func (i Interpolation) ease() ease.TweenFunc {
	if i == InterpolateSmooth {
		return ease.InOutCubic
	}
	return ease.Linear
}

// Track is the keyframes of one property of one target.
type Track struct {
	Name string
	// Node is the descendant the track addresses; empty means the target itself.
	Node string
	// Property is the property chain written on the node.
	Property      string
	Type          ValueType
	Interpolation Interpolation
	Times         []float32
	Values        []float32
	Strings       []string
}

// Stride returns the number of values per keyframe.
func (t *Track) Stride() int {
	if t.Type == TypeString || len(t.Times) == 0 {
		return 1
	}
	return len(t.Values) / len(t.Times)
}

// Clip is a named set of tracks played together.
type Clip struct {
	UUID     string
	Name     string
	Duration float32
	Tracks   []*Track
}

// ParseClip reads a clip in the three.js JSON layout. Tracks may carry
// flat times/values arrays or a list of {time, value} keys; times are in
// frames when the clip sets fps. Each parsed clip gets a fresh UUID.
func ParseClip(raw map[string]any) (*Clip, error) {
	clip := &Clip{UUID: uuid.NewString()}
	clip.Name, _ = protocol.String(raw["name"])

	frameTime := float32(1)
	if fps, ok := protocol.Float(raw["fps"]); ok && fps > 0 {
		frameTime = float32(1 / fps)
	}
	tracks, _ := raw["tracks"].([]any)
	for i, rt := range tracks {
		m, ok := protocol.Map(rt)
		if !ok {
			return nil, fmt.Errorf("%w: track %d is not a map", ErrBadClip, i)
		}
		tr, err := parseTrack(m)
		if err != nil {
			return nil, err
		}
		for k := range tr.Times {
			tr.Times[k] *= frameTime
		}
		clip.Tracks = append(clip.Tracks, tr)
	}

	if d, ok := protocol.Float(raw["duration"]); ok && d >= 0 {
		clip.Duration = float32(d)
	} else {
		for _, tr := range clip.Tracks {
			if n := len(tr.Times); n > 0 && tr.Times[n-1] > clip.Duration {
				clip.Duration = tr.Times[n-1]
			}
		}
	}
	return clip, nil
}

func parseTrack(m map[string]any) (*Track, error) {
	name, _ := protocol.String(m["name"])
	typ, _ := protocol.String(m["type"])
	vt, ok := valueTypes[strings.ToLower(typ)]
	if !ok {
		return nil, fmt.Errorf("%w: track %q has unknown type %q", ErrBadClip, name, typ)
	}
	node, property, ok := splitTrackName(name)
	if !ok {
		return nil, fmt.Errorf("%w: cannot parse track name %q", ErrBadClip, name)
	}
	tr := &Track{
		Name:          name,
		Node:          node,
		Property:      property,
		Type:          vt,
		Interpolation: InterpolateLinear,
	}
	if vt == TypeBool || vt == TypeString {
		tr.Interpolation = InterpolateDiscrete
	}
	if in, ok := protocol.Int(m["interpolation"]); ok {
		switch Interpolation(in) {
		case InterpolateDiscrete, InterpolateLinear, InterpolateSmooth:
			tr.Interpolation = Interpolation(in)
		default:
			return nil, fmt.Errorf("%w: track %q has unknown interpolation %d", ErrBadClip, name, in)
		}
	}

	if keys, ok := m["keys"].([]any); ok {
		if err := tr.readKeys(keys); err != nil {
			return nil, err
		}
	} else {
		if err := tr.readArrays(m["times"], m["values"]); err != nil {
			return nil, err
		}
	}
	if len(tr.Times) == 0 {
		return nil, fmt.Errorf("%w: track %q has no keyframes", ErrBadClip, name)
	}
	if !sort.SliceIsSorted(tr.Times, func(i, j int) bool { return tr.Times[i] < tr.Times[j] }) {
		return nil, fmt.Errorf("%w: track %q times are not sorted", ErrBadClip, name)
	}
	n := len(tr.Values)
	if vt == TypeString {
		n = len(tr.Strings)
	}
	if n == 0 || n%len(tr.Times) != 0 {
		return nil, fmt.Errorf("%w: track %q has %d values for %d keyframes", ErrBadClip, name, n, len(tr.Times))
	}
	if vt == TypeQuaternion && tr.Stride() != 4 {
		return nil, fmt.Errorf("%w: quaternion track %q has stride %d", ErrBadClip, name, tr.Stride())
	}
	return tr, nil
}

func (t *Track) readKeys(keys []any) error {
	for _, rk := range keys {
		k, ok := protocol.Map(rk)
		if !ok {
			return fmt.Errorf("%w: track %q key is not a map", ErrBadClip, t.Name)
		}
		tm, ok := protocol.Float(k["time"])
		if !ok {
			return fmt.Errorf("%w: track %q key has no time", ErrBadClip, t.Name)
		}
		if err := t.appendValue(k["value"]); err != nil {
			return err
		}
		t.Times = append(t.Times, float32(tm))
	}
	return nil
}

func (t *Track) readArrays(times, values any) error {
	ts, ok := protocol.Floats(times)
	if !ok {
		return fmt.Errorf("%w: track %q has no times", ErrBadClip, t.Name)
	}
	t.Times = append([]float32(nil), ts...)
	if t.Type == TypeString || t.Type == TypeBool {
		list, _ := values.([]any)
		for _, v := range list {
			if err := t.appendValue(v); err != nil {
				return err
			}
		}
		return nil
	}
	vs, ok := protocol.Floats(values)
	if !ok {
		return fmt.Errorf("%w: track %q has no numeric values", ErrBadClip, t.Name)
	}
	t.Values = append([]float32(nil), vs...)
	return nil
}

// appendValue adds one keyframe value: a number, a list of numbers, a bool
// or a string depending on the track type.
func (t *Track) appendValue(v any) error {
	switch t.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: track %q expects strings", ErrBadClip, t.Name)
		}
		t.Strings = append(t.Strings, s)
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("%w: track %q expects booleans", ErrBadClip, t.Name)
		}
		f := float32(0)
		if b {
			f = 1
		}
		t.Values = append(t.Values, f)
	default:
		if f, ok := protocol.Float(v); ok {
			t.Values = append(t.Values, float32(f))
			return nil
		}
		vals, ok := protocol.Floats(v)
		if !ok {
			return fmt.Errorf("%w: track %q expects numbers", ErrBadClip, t.Name)
		}
		t.Values = append(t.Values, vals...)
	}
	return nil
}

// splitTrackName separates "node.property.chain" into its node and
// property chain. A leading dot addresses the target itself.
func splitTrackName(name string) (node, property string, ok bool) {
	node, property, found := strings.Cut(name, ".")
	if !found || property == "" {
		return "", "", false
	}
	return node, property, true
}

// segment finds the keyframe interval holding time and the blend factor
// inside it. Times outside the keyframes clamp to the ends.
func (t *Track) segment(time float32) (i, j int, alpha float32) {
	last := len(t.Times) - 1
	if time <= t.Times[0] {
		return 0, 0, 0
	}
	if time >= t.Times[last] {
		return last, last, 0
	}
	j = sort.Search(len(t.Times), func(k int) bool { return t.Times[k] > time })
	i = j - 1
	span := t.Times[j] - t.Times[i]
	if span <= 0 || t.Interpolation == InterpolateDiscrete {
		return i, i, 0
	}
	return i, j, t.Interpolation.ease()(time-t.Times[i], 0, 1, span)
}

// Sample returns the numeric value at time. String tracks return nil.
func (t *Track) Sample(time float32) []float32 {
	if t.Type == TypeString {
		return nil
	}
	stride := t.Stride()
	i, j, alpha := t.segment(time)
	a := t.Values[i*stride : (i+1)*stride]
	out := make([]float32, stride)
	if i == j || alpha == 0 {
		copy(out, a)
		return out
	}
	b := t.Values[j*stride : (j+1)*stride]
	if t.Type == TypeQuaternion {
		return math.QuatFromSlice(a).Slerp(math.QuatFromSlice(b), alpha).Slice()
	}
	for k := range out {
		out[k] = a[k] + (b[k]-a[k])*alpha
	}
	return out
}

// SampleString returns the value of a string track at time.
func (t *Track) SampleString(time float32) string {
	if t.Type != TypeString {
		return ""
	}
	i, _, _ := t.segment(time)
	return t.Strings[i]
}
