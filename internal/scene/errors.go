package scene

import (
	"errors"
	"fmt"

	"github.com/Faultbox/meshview/internal/protocol"
)

var (
	// ErrRootDelete is returned when a delete addresses the root path.
	ErrRootDelete = errors.New("cannot delete the root path")
	// ErrPropertyChain is wrapped by every PropertyError.
	ErrPropertyChain = errors.New("unresolvable property chain")
)

// PropertyError reports a set_property that could not be applied.
type PropertyError struct {
	Path     protocol.Path
	Property string
	// SubPath is the part of the chain that resolved before the failure,
	// prefixed with the node name.
	SubPath string
	Detail  string
	Value   any
}

func (e *PropertyError) Error() string {
	return fmt.Sprintf("set_property(%q, %q, %v): %s; the value will not be set", e.Path.String(), e.Property, e.Value, e.Detail)
}

func (e *PropertyError) Unwrap() error {
	return ErrPropertyChain
}
