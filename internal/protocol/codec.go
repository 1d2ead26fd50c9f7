package protocol

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Faultbox/meshview/pkg/math"
)

// Decode parses one msgpack message into a Command. The message is fully
// decoded before anything is returned so callers never apply half a command.
func Decode(data []byte) (Command, error) {
	var raw map[string]any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	return FromMap(raw)
}

// FromMap converts an already-decoded message map into a Command.
func FromMap(raw map[string]any) (Command, error) {
	typ, ok := String(raw["type"])
	if !ok {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedCommand)
	}
	kind := ParseKind(typ)
	if kind == KindUnknown {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, typ)
	}

	path, err := decodePath(raw["path"])
	if err != nil {
		return nil, err
	}

	switch kind {
	case KindSetTransform:
		vals, ok := Floats(raw["matrix"])
		if !ok {
			return nil, malformed(kind, "matrix")
		}
		m, ok := math.Mat4FromSlice(vals)
		if !ok {
			return nil, fmt.Errorf("%w: %s matrix has %d values, want 16", ErrMalformedCommand, kind, len(vals))
		}
		return SetTransform{Path: path, Matrix: m}, nil

	case KindDelete:
		return Delete{Path: path}, nil

	case KindSetObject:
		obj, ok := Map(raw["object"])
		if !ok {
			return nil, malformed(kind, "object")
		}
		return SetObject{Path: path, Object: obj}, nil

	case KindSetProperty:
		prop, ok := String(raw["property"])
		if !ok || prop == "" {
			return nil, malformed(kind, "property")
		}
		return SetProperty{Path: path, Property: prop, Value: raw["value"]}, nil

	case KindSetAnimation:
		return decodeSetAnimation(path, raw)

	case KindSetTarget:
		vals, ok := Floats(raw["value"])
		if !ok || len(vals) < 3 {
			return nil, malformed(kind, "value")
		}
		return SetTarget{Path: path, Value: math.Vec3FromSlice(vals)}, nil

	case KindCaptureImage, KindSaveImage:
		x, _ := Int(raw["xres"])
		y, _ := Int(raw["yres"])
		if kind == KindCaptureImage {
			return CaptureImage{XRes: x, YRes: y}, nil
		}
		return SaveImage{XRes: x, YRes: y}, nil

	case KindSetControl:
		name, ok := String(raw["name"])
		if !ok || name == "" {
			return nil, malformed(kind, "name")
		}
		c := SetControl{
			Name:  name,
			Value: optFloat(raw["value"]),
			Min:   optFloat(raw["min"]),
			Max:   optFloat(raw["max"]),
			Step:  optFloat(raw["step"]),
		}
		c.Callback, _ = String(raw["callback"])
		c.Keycode1, _ = String(raw["keycode1"])
		c.Keycode2, _ = String(raw["keycode2"])
		return c, nil

	case KindSetControlValue:
		name, ok := String(raw["name"])
		if !ok || name == "" {
			return nil, malformed(kind, "name")
		}
		invoke, ok := Bool(raw["invoke_callback"])
		if !ok {
			invoke = true
		}
		return SetControlValue{Name: name, Value: raw["value"], InvokeCallback: invoke}, nil

	case KindDeleteControl:
		name, ok := String(raw["name"])
		if !ok || name == "" {
			return nil, malformed(kind, "name")
		}
		return DeleteControl{Name: name}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, typ)
}

func decodeSetAnimation(path Path, raw map[string]any) (Command, error) {
	list, ok := raw["animations"].([]any)
	if !ok {
		return nil, malformed(KindSetAnimation, "animations")
	}
	cmd := SetAnimation{Path: path, Animations: make([]AnimationSpec, 0, len(list))}
	for i, entry := range list {
		m, ok := Map(entry)
		if !ok {
			return nil, fmt.Errorf("%w: set_animation entry %d is not a map", ErrMalformedCommand, i)
		}
		target, err := decodePath(m["path"])
		if err != nil {
			return nil, err
		}
		clip, ok := Map(m["clip"])
		if !ok {
			return nil, fmt.Errorf("%w: set_animation entry %d has no clip", ErrMalformedCommand, i)
		}
		cmd.Animations = append(cmd.Animations, AnimationSpec{Path: target, Clip: clip})
	}
	if opts, ok := Map(raw["options"]); ok {
		if v, ok := Bool(opts["play"]); ok {
			cmd.Options.Play = &v
		}
		if v, ok := Int(opts["loopMode"]); ok {
			cmd.Options.LoopMode = &v
		}
		if v, ok := Int(opts["repetitions"]); ok {
			cmd.Options.Repetitions = &v
		}
		if v, ok := Bool(opts["clampWhenFinished"]); ok {
			cmd.Options.ClampWhenFinished = &v
		}
	}
	return cmd, nil
}

func decodePath(v any) (Path, error) {
	switch p := v.(type) {
	case nil:
		return Path{}, nil
	case string:
		return SplitPath(p), nil
	case []any:
		out := make(Path, 0, len(p))
		for _, seg := range p {
			s, ok := seg.(string)
			if !ok {
				return nil, fmt.Errorf("%w: path segment %v is not a string", ErrMalformedCommand, seg)
			}
			if s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: path has type %T", ErrMalformedCommand, v)
}

func optFloat(v any) *float64 {
	f, ok := Float(v)
	if !ok {
		return nil
	}
	return &f
}

func malformed(kind Kind, field string) error {
	return fmt.Errorf("%w: %s requires %s", ErrMalformedCommand, kind, field)
}

// ToMap converts a Command back into its wire map.
func ToMap(cmd Command) map[string]any {
	m := map[string]any{"type": cmd.Kind().String()}
	if p := cmd.Target(); p != nil {
		m["path"] = p.String()
	}
	switch c := cmd.(type) {
	case SetTransform:
		m["matrix"] = c.Matrix[:]
	case SetObject:
		m["object"] = c.Object
	case SetProperty:
		m["property"] = c.Property
		m["value"] = c.Value
	case SetAnimation:
		anims := make([]any, len(c.Animations))
		for i, a := range c.Animations {
			anims[i] = map[string]any{"path": a.Path.String(), "clip": a.Clip}
		}
		m["animations"] = anims
		opts := map[string]any{}
		if c.Options.Play != nil {
			opts["play"] = *c.Options.Play
		}
		if c.Options.LoopMode != nil {
			opts["loopMode"] = *c.Options.LoopMode
		}
		if c.Options.Repetitions != nil {
			opts["repetitions"] = *c.Options.Repetitions
		}
		if c.Options.ClampWhenFinished != nil {
			opts["clampWhenFinished"] = *c.Options.ClampWhenFinished
		}
		m["options"] = opts
	case SetTarget:
		m["value"] = []float32{c.Value.X, c.Value.Y, c.Value.Z}
	case CaptureImage:
		m["xres"], m["yres"] = c.XRes, c.YRes
	case SaveImage:
		m["xres"], m["yres"] = c.XRes, c.YRes
	case SetControl:
		m["name"] = c.Name
		m["callback"] = c.Callback
		for k, v := range map[string]*float64{"value": c.Value, "min": c.Min, "max": c.Max, "step": c.Step} {
			if v != nil {
				m[k] = *v
			}
		}
		if c.Keycode1 != "" {
			m["keycode1"] = c.Keycode1
		}
		if c.Keycode2 != "" {
			m["keycode2"] = c.Keycode2
		}
	case SetControlValue:
		m["name"] = c.Name
		m["value"] = c.Value
		m["invoke_callback"] = c.InvokeCallback
	case DeleteControl:
		m["name"] = c.Name
	}
	return m
}

// Encode serializes a Command to msgpack.
func Encode(cmd Command) ([]byte, error) {
	return msgpack.Marshal(ToMap(cmd))
}
