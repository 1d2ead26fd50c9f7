// Package protocol decodes the msgpack command stream that drives a viewer
// and encodes the events sent back to the sender.
package protocol

import (
	"github.com/Faultbox/meshview/pkg/math"
)

// Kind identifies a command type.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindSetTransform
	KindDelete
	KindSetObject
	KindSetProperty
	KindSetAnimation
	KindSetTarget
	KindCaptureImage
	KindSaveImage
	KindSetControl
	KindSetControlValue
	KindDeleteControl
)

var kindNames = map[Kind]string{
	KindSetTransform:    "set_transform",
	KindDelete:          "delete",
	KindSetObject:       "set_object",
	KindSetProperty:     "set_property",
	KindSetAnimation:    "set_animation",
	KindSetTarget:       "set_target",
	KindCaptureImage:    "capture_image",
	KindSaveImage:       "save_image",
	KindSetControl:      "set_control",
	KindSetControlValue: "set_control_value",
	KindDeleteControl:   "delete_control",
}

var kindByName = func() map[string]Kind {
	m := make(map[string]Kind, len(kindNames))
	for k, n := range kindNames {
		m[n] = k
	}
	return m
}()

// String returns the wire name of the kind.
func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// ParseKind maps a wire type name to its Kind.
func ParseKind(name string) Kind {
	return kindByName[name]
}

// Command is one decoded protocol message.
type Command interface {
	Kind() Kind
	Target() Path
}

// SetTransform replaces the transform of the object at Path.
type SetTransform struct {
	Path   Path
	Matrix math.Mat4
}

// Delete removes the subtree at Path.
type Delete struct {
	Path Path
}

// SetObject installs a new object described by Object at Path.
type SetObject struct {
	Path   Path
	Object map[string]any
}

// SetProperty writes Value to Property on the object at Path.
type SetProperty struct {
	Path     Path
	Property string
	Value    any
}

// AnimationSpec binds one clip to a target path.
type AnimationSpec struct {
	Path Path
	Clip map[string]any
}

// AnimationOptions holds optional playback settings. Nil fields take defaults.
type AnimationOptions struct {
	Play              *bool
	LoopMode          *int
	Repetitions       *int
	ClampWhenFinished *bool
}

// SetAnimation loads a new animation set, replacing the current one.
type SetAnimation struct {
	Path       Path
	Animations []AnimationSpec
	Options    AnimationOptions
}

// SetTarget moves the camera orbit target.
type SetTarget struct {
	Path  Path
	Value math.Vec3
}

// CaptureImage asks for a screenshot to be sent back to the sender.
type CaptureImage struct {
	XRes, YRes int
}

// SaveImage asks for a screenshot to be written to disk.
type SaveImage struct {
	XRes, YRes int
}

// SetControl creates a button or, when Value is set, a numeric slider.
type SetControl struct {
	Name     string
	Callback string
	Value    *float64
	Min      *float64
	Max      *float64
	Step     *float64
	Keycode1 string
	Keycode2 string
}

// SetControlValue updates a control and optionally fires its callback.
type SetControlValue struct {
	Name           string
	Value          any
	InvokeCallback bool
}

// DeleteControl removes a named control.
type DeleteControl struct {
	Name string
}

func (SetTransform) Kind() Kind    { return KindSetTransform }
func (Delete) Kind() Kind          { return KindDelete }
func (SetObject) Kind() Kind       { return KindSetObject }
func (SetProperty) Kind() Kind     { return KindSetProperty }
func (SetAnimation) Kind() Kind    { return KindSetAnimation }
func (SetTarget) Kind() Kind       { return KindSetTarget }
func (CaptureImage) Kind() Kind    { return KindCaptureImage }
func (SaveImage) Kind() Kind       { return KindSaveImage }
func (SetControl) Kind() Kind      { return KindSetControl }
func (SetControlValue) Kind() Kind { return KindSetControlValue }
func (DeleteControl) Kind() Kind   { return KindDeleteControl }

func (c SetTransform) Target() Path  { return c.Path }
func (c Delete) Target() Path        { return c.Path }
func (c SetObject) Target() Path     { return c.Path }
func (c SetProperty) Target() Path   { return c.Path }
func (c SetAnimation) Target() Path  { return c.Path }
func (c SetTarget) Target() Path     { return c.Path }
func (CaptureImage) Target() Path    { return nil }
func (SaveImage) Target() Path       { return nil }
func (SetControl) Target() Path      { return nil }
func (SetControlValue) Target() Path { return nil }
func (DeleteControl) Target() Path   { return nil }
