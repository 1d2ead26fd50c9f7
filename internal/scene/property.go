package scene

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/protocol"
)

// propertyKind enumerates the property names with dedicated setters.
type propertyKind int

const (
	propChain propertyKind = iota
	propPosition
	propQuaternion
	propScale
	propColor
	propOpacity
	propModulatedOpacity
	propTopColor
	propBottomColor
)

var wellKnownProperties = map[string]propertyKind{
	"position":          propPosition,
	"quaternion":        propQuaternion,
	"scale":             propScale,
	"color":             propColor,
	"opacity":           propOpacity,
	"modulated_opacity": propModulatedOpacity,
	"top_color":         propTopColor,
	"bottom_color":      propBottomColor,
}

// SetProperty writes value to property on the object at path. Failures are
// logged once and returned; the object is left untouched.
func (t *Tree) SetProperty(path protocol.Path, property string, value any) error {
	n := t.Find(path)
	err := n.setProperty(property, value)
	if err != nil {
		perr := &PropertyError{Path: path, Property: property, Value: value, Detail: err.Error()}
		if cerr, ok := err.(*chainError); ok {
			perr.SubPath = cerr.subPath
		}
		t.log.Error("set_property failed",
			zap.String("path", path.String()),
			zap.String("property", property),
			zap.String("sub_path", perr.SubPath),
			zap.String("detail", perr.Detail),
			zap.Any("value", value),
		)
		return perr
	}
	if n.object.IsBackground() && t.onUpdate != nil {
		t.onUpdate()
	}
	if n.bindings != nil {
		n.bindings.Refresh()
	}
	return nil
}

func (n *Node) setProperty(property string, value any) error {
	obj := n.object
	switch wellKnownProperties[property] {
	case propPosition:
		return (*objectFields)(obj).setField("position", value)
	case propQuaternion:
		return (*objectFields)(obj).setField("quaternion", value)
	case propScale:
		return (*objectFields)(obj).setField("scale", value)
	case propColor:
		vals, err := wantFloats(property, value, 3)
		if err != nil {
			return err
		}
		visitMaterials(obj, func(m *Material) {
			m.Color = Color{vals[0], vals[1], vals[2]}
			if len(vals) > 3 {
				m.setOpacity(vals[3])
			}
		})
		return nil
	case propOpacity:
		f, err := wantFloat(property, value)
		if err != nil {
			return err
		}
		visitMaterials(obj, func(m *Material) { m.setOpacity(f) })
		return nil
	case propModulatedOpacity:
		f, err := wantFloat(property, value)
		if err != nil {
			return err
		}
		visitMaterials(obj, func(m *Material) {
			m.cacheBaseOpacity()
			m.setOpacity(m.baseOpacity * f)
		})
		return nil
	case propTopColor, propBottomColor:
		if obj.Background == nil {
			return n.setPropertyChain(property, value)
		}
		return (*objectFields)(obj).setField(property, value)
	case propChain:
		return n.setPropertyChain(property, value)
	}
	return fmt.Errorf("unhandled property %q", property)
}

func (n *Node) setPropertyChain(property string, value any) error {
	segments := splitChain(property)
	holder, parentPath, cerr := walkChain(n.object, n.name, segments)
	if cerr != nil {
		return cerr
	}
	if err := holder.setField(segments[len(segments)-1], value); err != nil {
		return &chainError{subPath: parentPath, detail: err.Error()}
	}
	return nil
}

// visitMaterials applies fn to every material under obj, including its
// descendants.
func visitMaterials(obj *Object, fn func(*Material)) {
	obj.Traverse(func(o *Object) {
		for _, m := range o.Materials {
			if m != nil {
				fn(m)
			}
		}
	})
}
