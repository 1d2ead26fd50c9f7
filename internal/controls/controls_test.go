package controls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshview/internal/panel"
	"github.com/Faultbox/meshview/internal/protocol"
)

func ptr(f float64) *float64 { return &f }

func newSet(t *testing.T) (*Set, *panel.Folder, *[]protocol.Event) {
	t.Helper()
	var events []protocol.Event
	folder := panel.New().Root()
	return New(folder, func(e protocol.Event) { events = append(events, e) }, nil), folder, &events
}

func TestButton(t *testing.T) {
	s, folder, events := newSet(t)
	c := s.Apply(protocol.SetControl{Name: "go", Callback: "on_go", Keycode1: "G"})
	assert.False(t, c.IsSlider())

	w, ok := folder.Controller("go")
	require.True(t, ok)
	assert.Equal(t, panel.KindButton, w.Kind())

	require.NoError(t, w.Press())
	assert.True(t, s.HandleKey("g"))
	assert.Equal(t, []protocol.Event{
		protocol.ControlEvent("go", nil),
		protocol.ControlEvent("go", nil),
	}, *events)
}

func TestSlider(t *testing.T) {
	s, folder, events := newSet(t)
	s.Apply(protocol.SetControl{
		Name: "speed", Value: ptr(1), Min: ptr(0), Max: ptr(2), Step: ptr(0.5),
		Keycode1: "a", Keycode2: "d",
	})
	w, _ := folder.Controller("speed")
	assert.Equal(t, 1.0, w.Value())

	require.NoError(t, w.SetValue(1.6))
	c, _ := s.Get("speed")
	assert.Equal(t, 1.5, c.Value())

	assert.True(t, s.HandleKey("d"))
	assert.True(t, s.HandleKey("d"))
	assert.Equal(t, 2.0, c.Value())
	assert.True(t, s.HandleKey("A"))
	assert.Equal(t, 1.5, c.Value())
	assert.False(t, s.HandleKey("x"))

	require.Len(t, *events, 4)
	assert.Equal(t, protocol.ControlEvent("speed", 1.5), (*events)[0])
	assert.Equal(t, protocol.ControlEvent("speed", 1.5), (*events)[3])
}

func TestSetValue(t *testing.T) {
	s, folder, events := newSet(t)
	s.Apply(protocol.SetControl{Name: "x", Value: ptr(0)})
	s.Apply(protocol.SetControl{Name: "b"})

	require.NoError(t, s.SetValue(protocol.SetControlValue{Name: "x", Value: 3.0}))
	w, _ := folder.Controller("x")
	assert.Equal(t, 3.0, w.Value())
	assert.Empty(t, *events)

	require.NoError(t, s.SetValue(protocol.SetControlValue{Name: "x", Value: int64(4), InvokeCallback: true}))
	require.NoError(t, s.SetValue(protocol.SetControlValue{Name: "b", InvokeCallback: true}))
	require.NoError(t, s.SetValue(protocol.SetControlValue{Name: "b"}))
	assert.Equal(t, []protocol.Event{
		protocol.ControlEvent("x", 4.0),
		protocol.ControlEvent("b", nil),
	}, *events)

	assert.ErrorIs(t, s.SetValue(protocol.SetControlValue{Name: "nope"}), ErrUnknownControl)
	assert.Error(t, s.SetValue(protocol.SetControlValue{Name: "x", Value: "high"}))
}

func TestReplaceAndDelete(t *testing.T) {
	s, folder, _ := newSet(t)
	s.Apply(protocol.SetControl{Name: "x", Value: ptr(0)})
	s.Apply(protocol.SetControl{Name: "x"})
	assert.Len(t, folder.Controllers(), 1)
	c, _ := s.Get("x")
	assert.False(t, c.IsSlider())

	s.Apply(protocol.SetControl{Name: "a"})
	assert.Equal(t, []string{"a", "x"}, s.Names())

	assert.True(t, s.Delete("x"))
	assert.False(t, s.Delete("x"))
	assert.Len(t, folder.Controllers(), 1)
}
