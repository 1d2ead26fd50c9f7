package protocol

import "github.com/vmihailenco/msgpack/v5"

// Event is an outbound message sent back to the command sender.
type Event struct {
	Type  string `msgpack:"type"`
	Name  string `msgpack:"name,omitempty"`
	Value any    `msgpack:"value"`
	Data  string `msgpack:"data,omitempty"`
}

// ControlEvent reports a control value change.
func ControlEvent(name string, value any) Event {
	return Event{Type: "control", Name: name, Value: value}
}

// ImageEvent carries a captured image as a data URL.
func ImageEvent(dataURL string) Event {
	return Event{Type: "img", Data: dataURL}
}

// EncodeEvent serializes an Event to msgpack.
func EncodeEvent(ev Event) ([]byte, error) {
	return msgpack.Marshal(ev)
}

// DecodeEvent parses an Event.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	err := msgpack.Unmarshal(data, &ev)
	return ev, err
}
