// Package scene holds the path-addressed render hierarchy: objects and their
// resources, the node tree that owns them, property writes and the background
// state machine.
package scene

import (
	"sort"

	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/pkg/math"
)

// ObjectName is the reserved child name holding the object installed at a path.
const ObjectName = "<object>"

// Bindings are the control-panel entries attached to one node.
type Bindings interface {
	// Refresh re-reads every bound value for display.
	Refresh()
	// Close removes the bindings from the panel.
	Close()
}

// Panel creates bindings for nodes as they are created or replaced.
type Panel interface {
	Bind(path protocol.Path, obj *Object) Bindings
}

// Node is one addressable point in the tree. It owns its object.
type Node struct {
	name     string
	object   *Object
	children map[string]*Node
	bindings Bindings
}

// Name returns the node's name within its parent.
func (n *Node) Name() string { return n.name }

// Object returns the render object the node wraps.
func (n *Node) Object() *Object { return n.object }

// Child returns the named child without creating it.
func (n *Node) Child(name string) (*Node, bool) {
	c, ok := n.children[name]
	return c, ok
}

// ChildNames returns the child names in sorted order.
func (n *Node) ChildNames() []string {
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of direct children.
func (n *Node) Len() int { return len(n.children) }

// Tree is the scene graph rooted at a single node.
type Tree struct {
	root      *Node
	log       *zap.Logger
	panel     Panel
	onDispose DisposeFunc
	onUpdate  func()
}

// Option configures a Tree.
type Option func(*Tree)

// WithLogger sets the logger used for diagnostics.
func WithLogger(log *zap.Logger) Option {
	return func(t *Tree) { t.log = log }
}

// WithPanel attaches a control panel.
func WithPanel(p Panel) Option {
	return func(t *Tree) { t.panel = p }
}

// WithDisposeHook reports every released resource to fn.
func WithDisposeHook(fn DisposeFunc) Option {
	return func(t *Tree) { t.onDispose = fn }
}

// WithUpdateHook sets the callback fired after a property write on the
// Background object.
func WithUpdateHook(fn func()) Option {
	return func(t *Tree) { t.onUpdate = fn }
}

// NewTree builds a tree around root, creating nodes for its descendants.
func NewTree(root *Object, opts ...Option) *Tree {
	t := &Tree{log: zap.NewNop()}
	for _, opt := range opts {
		opt(t)
	}
	t.root = t.wrap(protocol.Path{}, root)
	return t
}

// wrap creates the node for obj and its descendants.
func (t *Tree) wrap(path protocol.Path, obj *Object) *Node {
	n := &Node{name: obj.Name, object: obj, children: map[string]*Node{}}
	n.bindings = t.bind(path, obj)
	for _, c := range obj.Children {
		n.children[c.Name] = t.wrap(path.Child(c.Name), c)
	}
	return n
}

func (t *Tree) bind(path protocol.Path, obj *Object) Bindings {
	if t.panel == nil {
		return nil
	}
	return t.panel.Bind(path, obj)
}

// Root returns the root node.
func (t *Tree) Root() *Node { return t.root }

// Find resolves path from the root, creating missing groups along the way.
func (t *Tree) Find(path protocol.Path) *Node {
	n := t.root
	for i, name := range path {
		child, ok := n.children[name]
		if !ok {
			obj := NewGroup(name)
			n.object.Add(obj)
			child = &Node{name: name, object: obj, children: map[string]*Node{}}
			child.bindings = t.bind(append(protocol.Path(nil), path[:i+1]...), obj)
			n.children[name] = child
		}
		n = child
	}
	return n
}

// Lookup resolves path without creating anything.
func (t *Tree) Lookup(path protocol.Path) (*Node, bool) {
	n := t.root
	for _, name := range path {
		child, ok := n.children[name]
		if !ok {
			return nil, false
		}
		n = child
	}
	return n, true
}

// SetObject installs obj at path, replacing and disposing whatever was there.
// The group node at path keeps its identity and named children.
func (t *Tree) SetObject(path protocol.Path, obj *Object) {
	parent := t.Find(path)
	objPath := path.Child(ObjectName)
	obj.Name = ObjectName

	old, ok := parent.children[ObjectName]
	if !ok {
		parent.object.Add(obj)
		parent.children[ObjectName] = t.wrap(objPath, obj)
		return
	}

	old.disposeRecursive(t)
	old.closeBindings()
	parent.object.Replace(old.object, obj)
	old.object = obj
	old.bindings = t.bind(objPath, obj)
	old.children = map[string]*Node{}
	for _, c := range obj.Children {
		old.children[c.Name] = t.wrap(objPath.Child(c.Name), c)
	}
}

// SetTransform decomposes m and applies it to the object at path.
func (t *Tree) SetTransform(path protocol.Path, m math.Mat4) {
	t.Find(path).object.SetMatrix(m)
}

// Delete removes the subtree at path and releases its resources.
func (t *Tree) Delete(path protocol.Path) error {
	if path.IsRoot() {
		t.log.Error("can't delete an empty path")
		return ErrRootDelete
	}
	parent := t.Find(path.Parent())
	name := path.Last()
	child, ok := parent.children[name]
	if !ok {
		return nil
	}
	child.disposeRecursive(t)
	child.closeBindings()
	parent.object.Remove(child.object)
	delete(parent.children, name)
	return nil
}

// DisposeRecursive releases the resources of every object in the subtree.
// Nodes stay in place; releasing twice is a no-op.
func (t *Tree) DisposeRecursive(n *Node) {
	n.disposeRecursive(t)
}

func (n *Node) disposeRecursive(t *Tree) {
	for _, c := range n.children {
		c.disposeRecursive(t)
	}
	n.object.dispose(t.onDispose)
}

func (n *Node) closeBindings() {
	for _, c := range n.children {
		c.closeBindings()
	}
	if n.bindings != nil {
		n.bindings.Close()
		n.bindings = nil
	}
}

// Reset disposes the whole tree and rebuilds it around root.
func (t *Tree) Reset(root *Object) {
	t.root.disposeRecursive(t)
	t.root.closeBindings()
	t.root = t.wrap(protocol.Path{}, root)
}

// Walk visits every node, parents first, children in name order.
func (t *Tree) Walk(fn func(path protocol.Path, n *Node)) {
	var walk func(protocol.Path, *Node)
	walk = func(p protocol.Path, n *Node) {
		fn(p, n)
		for _, name := range n.ChildNames() {
			walk(p.Child(name), n.children[name])
		}
	}
	walk(protocol.Path{}, t.root)
}
