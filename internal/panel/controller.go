package panel

import (
	"fmt"
	"math"

	"github.com/Faultbox/meshview/internal/protocol"
)

// Kind is the widget type of a controller.
type Kind int

const (
	KindBool Kind = iota
	KindNumber
	KindColor
	KindButton
	KindOption
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindColor:
		return "color"
	case KindButton:
		return "button"
	case KindOption:
		return "option"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Controller is one widget bound to a value through get/set accessors.
// The displayed value only changes on Refresh or SetValue.
type Controller struct {
	name     string
	label    string
	kind     Kind
	min      *float64
	max      *float64
	step     *float64
	options  []string
	get      func() any
	set      func(any) error
	onChange func(any)
	display  any
}

func newController(name string, kind Kind, get func() any, set func(any) error) *Controller {
	c := &Controller{name: name, label: name, kind: kind, get: get, set: set}
	c.Refresh()
	return c
}

// Name returns the bound value's name.
func (c *Controller) Name() string { return c.name }

// Label returns the text shown next to the widget.
func (c *Controller) Label() string { return c.label }

// Kind returns the widget type.
func (c *Controller) Kind() Kind { return c.kind }

// Options returns the allowed values of an option controller.
func (c *Controller) Options() []string { return c.options }

// Range returns the numeric bounds and step. Unset values are nil.
func (c *Controller) Range() (min, max, step *float64) { return c.min, c.max, c.step }

// Value returns the displayed value.
func (c *Controller) Value() any { return c.display }

// Min sets the lower bound of a number controller.
func (c *Controller) Min(v float64) *Controller { c.min = &v; return c }

// Max sets the upper bound of a number controller.
func (c *Controller) Max(v float64) *Controller { c.max = &v; return c }

// Step sets the increment of a number controller.
func (c *Controller) Step(v float64) *Controller { c.step = &v; return c }

// WithLabel sets the displayed label.
func (c *Controller) WithLabel(label string) *Controller { c.label = label; return c }

// OnChange registers fn to run after every successful SetValue.
func (c *Controller) OnChange(fn func(value any)) *Controller { c.onChange = fn; return c }

// Refresh re-reads the bound value for display.
func (c *Controller) Refresh() {
	if c.get != nil {
		c.display = c.get()
	}
}

// SetValue writes v through the controller as if the user had edited it.
// Numbers are clamped to the range and snapped to the step.
func (c *Controller) SetValue(v any) error {
	switch c.kind {
	case KindBool:
		if _, ok := v.(bool); !ok {
			return fmt.Errorf("controller %q expects a boolean, got %T", c.name, v)
		}
	case KindNumber:
		f, ok := protocol.Float(v)
		if !ok {
			return fmt.Errorf("controller %q expects a number, got %T", c.name, v)
		}
		v = c.constrain(f)
	case KindColor:
		vals, ok := protocol.Floats(v)
		if !ok || len(vals) < 3 {
			return fmt.Errorf("controller %q expects an RGB triple", c.name)
		}
		v = []any{float64(vals[0]), float64(vals[1]), float64(vals[2])}
	case KindOption:
		s, _ := v.(string)
		if !c.allowed(s) {
			return fmt.Errorf("controller %q has no option %v", c.name, v)
		}
		v = s
	case KindButton:
		return c.Press()
	}
	if c.set != nil {
		if err := c.set(v); err != nil {
			return err
		}
	}
	c.Refresh()
	if c.get == nil {
		c.display = v
	}
	if c.onChange != nil {
		c.onChange(c.display)
	}
	return nil
}

// Press activates a button controller.
func (c *Controller) Press() error {
	if c.kind != KindButton {
		return fmt.Errorf("controller %q is not a button", c.name)
	}
	if c.set != nil {
		if err := c.set(nil); err != nil {
			return err
		}
	}
	if c.onChange != nil {
		c.onChange(nil)
	}
	return nil
}

func (c *Controller) constrain(f float64) float64 {
	if c.min != nil && f < *c.min {
		f = *c.min
	}
	if c.max != nil && f > *c.max {
		f = *c.max
	}
	if c.step != nil && *c.step > 0 {
		base, s := 0.0, *c.step
		if c.min != nil {
			base = *c.min
		}
		f = base + math.Round((f-base)/s)*s
	}
	return f
}

func (c *Controller) allowed(s string) bool {
	for _, o := range c.options {
		if o == s {
			return true
		}
	}
	return false
}
