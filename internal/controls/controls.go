// Package controls manages the buttons and sliders clients create on the
// control panel. Every user change is reported back as a control event.
package controls

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/panel"
	"github.com/Faultbox/meshview/internal/protocol"
)

// ErrUnknownControl is returned for operations on a name never created.
var ErrUnknownControl = errors.New("unknown control")

// Control is one client-defined widget.
type Control struct {
	Name     string
	Callback string
	// Keycode1 decrements a slider or presses a button; Keycode2 increments.
	Keycode1 string
	Keycode2 string

	value      float64
	slider     bool
	step       float64
	controller *panel.Controller
}

// IsSlider reports whether the control carries a value.
func (c *Control) IsSlider() bool { return c.slider }

// Value returns a slider's current value.
func (c *Control) Value() float64 { return c.value }

// Controller returns the panel widget.
func (c *Control) Controller() *panel.Controller { return c.controller }

// Set is the collection of controls living in one panel folder.
type Set struct {
	folder   *panel.Folder
	send     func(protocol.Event)
	log      *zap.Logger
	controls map[string]*Control
}

// New returns a Set adding widgets to folder. send receives the events
// user changes produce.
func New(folder *panel.Folder, send func(protocol.Event), log *zap.Logger) *Set {
	if log == nil {
		log = zap.NewNop()
	}
	if send == nil {
		send = func(protocol.Event) {}
	}
	return &Set{folder: folder, send: send, log: log, controls: map[string]*Control{}}
}

// Apply creates the control cmd describes, replacing one with the same name.
func (s *Set) Apply(cmd protocol.SetControl) *Control {
	s.Delete(cmd.Name)

	c := &Control{
		Name:     cmd.Name,
		Callback: cmd.Callback,
		Keycode1: normalizeKey(cmd.Keycode1),
		Keycode2: normalizeKey(cmd.Keycode2),
	}
	if cmd.Value == nil {
		c.controller = s.folder.AddButton(c.Name, func() {
			s.send(protocol.ControlEvent(c.Name, nil))
		})
	} else {
		c.slider = true
		c.value = *cmd.Value
		c.step = 1
		c.controller = s.folder.AddNumber(c.Name,
			func() float64 { return c.value },
			func(v float64) { c.value = v })
		if cmd.Min != nil {
			c.controller.Min(*cmd.Min)
		}
		if cmd.Max != nil {
			c.controller.Max(*cmd.Max)
		}
		if cmd.Step != nil {
			c.step = *cmd.Step
			c.controller.Step(*cmd.Step)
		}
		c.controller.OnChange(func(v any) {
			s.send(protocol.ControlEvent(c.Name, v))
		})
	}
	s.controls[c.Name] = c
	s.log.Debug("control created", zap.String("name", c.Name), zap.Bool("slider", c.slider))
	return c
}

// SetValue updates a control from the client. With invoke set the change is
// reported back exactly as a user edit would be.
func (s *Set) SetValue(cmd protocol.SetControlValue) error {
	c, ok := s.controls[cmd.Name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownControl, cmd.Name)
	}
	if !c.slider {
		if cmd.InvokeCallback {
			return c.controller.Press()
		}
		return nil
	}
	if cmd.InvokeCallback {
		return c.controller.SetValue(cmd.Value)
	}
	f, ok := protocol.Float(cmd.Value)
	if !ok {
		return fmt.Errorf("control %q expects a number, got %T", cmd.Name, cmd.Value)
	}
	c.value = f
	c.controller.Refresh()
	return nil
}

// Delete removes the named control. It reports whether one existed.
func (s *Set) Delete(name string) bool {
	c, ok := s.controls[name]
	if !ok {
		return false
	}
	s.folder.Remove(c.controller)
	delete(s.controls, name)
	return true
}

// Get returns the named control.
func (s *Set) Get(name string) (*Control, bool) {
	c, ok := s.controls[name]
	return c, ok
}

// Names returns the control names in order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.controls))
	for name := range s.controls {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HandleKey applies every shortcut bound to key. It reports whether any
// control reacted.
func (s *Set) HandleKey(key string) bool {
	key = normalizeKey(key)
	if key == "" {
		return false
	}
	handled := false
	for _, name := range s.Names() {
		c := s.controls[name]
		var err error
		switch {
		case key == c.Keycode1 && !c.slider:
			err = c.controller.Press()
		case key == c.Keycode1:
			err = c.controller.SetValue(c.value - c.step)
		case key == c.Keycode2 && c.slider:
			err = c.controller.SetValue(c.value + c.step)
		default:
			continue
		}
		if err != nil {
			s.log.Warn("control shortcut failed", zap.String("name", name), zap.Error(err))
			continue
		}
		handled = true
	}
	return handled
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
