// Package panel models the viewer's control panel: a tree of folders
// mirroring the scene graph, each holding controllers bound to values of
// the object at that path.
package panel

import (
	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/protocol"
	"github.com/Faultbox/meshview/internal/scene"
)

// SceneFolder is the title of the folder mirroring the scene root.
const SceneFolder = "Scene"

// Panel is the root of the control panel.
type Panel struct {
	root     *Folder
	scene    *Folder
	log      *zap.Logger
	onChange func(path protocol.Path, name string)
}

// Option configures a Panel.
type Option func(*Panel)

// WithLogger sets the logger used for failed writes.
func WithLogger(log *zap.Logger) Option {
	return func(p *Panel) { p.log = log }
}

// WithChangeHook sets the callback run after any scene-bound controller
// changes a value.
func WithChangeHook(fn func(path protocol.Path, name string)) Option {
	return func(p *Panel) { p.onChange = fn }
}

// New returns an empty panel with a scene folder.
func New(opts ...Option) *Panel {
	p := &Panel{root: newFolder("", nil), log: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.scene = p.root.AddFolder(SceneFolder)
	return p
}

// Root returns the top-level folder.
func (p *Panel) Root() *Folder { return p.root }

// Scene returns the folder mirroring the scene root.
func (p *Panel) Scene() *Folder { return p.scene }

// FolderFor returns the folder mirroring path.
func (p *Panel) FolderFor(path protocol.Path) (*Folder, bool) {
	f := p.scene
	for _, name := range path {
		sub, ok := f.Folder(name)
		if !ok {
			return nil, false
		}
		f = sub
	}
	return f, true
}

// Bind creates the folder for the node at path and the controllers for obj.
func (p *Panel) Bind(path protocol.Path, obj *scene.Object) scene.Bindings {
	f := p.scene
	for _, name := range path {
		f = f.AddFolder(name)
	}
	b := &bindings{panel: p, path: append(protocol.Path(nil), path...), folder: f}
	b.create(obj)
	return b
}

func (p *Panel) changed(path protocol.Path, name string) {
	if p.onChange != nil {
		p.onChange(path, name)
	}
}

// bindings are the controllers one node owns inside its folder.
type bindings struct {
	panel  *Panel
	path   protocol.Path
	folder *Folder
	owned  []*Controller
}

func (b *bindings) Refresh() {
	if b.folder.visibility != nil {
		b.folder.visibility.Refresh()
	}
	for _, c := range b.owned {
		c.Refresh()
	}
}

func (b *bindings) Close() {
	for _, c := range b.owned {
		b.folder.Remove(c)
	}
	b.owned = nil
	b.folder.visibility = nil
	if parent := b.folder.parent; parent != nil && !b.path.IsRoot() {
		parent.RemoveFolder(b.folder.name)
	}
}

func (b *bindings) create(obj *scene.Object) {
	f := b.folder
	f.visibility = newController("visible", KindBool,
		func() any { return obj.Visible },
		func(v any) error { obj.Visible = v.(bool); return nil })
	f.visibility.OnChange(func(any) { b.panel.changed(b.path, "visible") })

	switch {
	case obj.IsLight():
		b.number(obj, "intensity").Min(0).Step(0.01).WithLabel("intensity (cd)")
		if _, ok := obj.Props["castShadow"]; ok {
			b.field(obj, "castShadow", KindBool)
			if _, ok := obj.Props["shadow"]; ok {
				b.number(obj, "shadow.radius").Min(0).Step(0.05).Max(3)
			}
		}
		if _, ok := obj.Props["distance"]; ok {
			b.number(obj, "distance").Min(0).Step(0.1).Max(100)
		}
	case obj.IsCamera():
		b.number(obj, "zoom").Min(0).Step(0.1)
	case obj.IsBackground():
		b.color(obj, "top_color")
		b.color(obj, "bottom_color")
		b.field(obj, "render_environment_map", KindBool)
	}
}

// field binds the property chain name of obj.
func (b *bindings) field(obj *scene.Object, name string, kind Kind) *Controller {
	c := b.folder.AddBound(name, kind,
		func() any {
			v, _ := scene.GetChain(obj, name)
			return v
		},
		func(v any) error { return scene.SetChain(obj, name, v) })
	c.OnChange(func(any) { b.panel.changed(b.path, name) })
	b.owned = append(b.owned, c)
	return c
}

func (b *bindings) number(obj *scene.Object, name string) *Controller {
	return b.field(obj, name, KindNumber)
}

// color binds a background color. The widget edits 0-255 bytes while the
// property takes unit floats.
func (b *bindings) color(obj *scene.Object, name string) *Controller {
	c := b.folder.AddBound(name, KindColor,
		func() any {
			v, _ := scene.GetChain(obj, name)
			return v
		},
		func(v any) error {
			vals, _ := protocol.Floats(v)
			unit := make([]any, 3)
			for i := range unit {
				unit[i] = float64(vals[i]) / 255
			}
			return scene.SetChain(obj, name, unit)
		})
	c.OnChange(func(any) { b.panel.changed(b.path, name) })
	b.owned = append(b.owned, c)
	return c
}
