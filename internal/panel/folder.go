package panel

// Folder is a named group of controllers and subfolders.
type Folder struct {
	name        string
	parent      *Folder
	open        bool
	visibility  *Controller
	controllers []*Controller
	folders     map[string]*Folder
	order       []string
}

func newFolder(name string, parent *Folder) *Folder {
	return &Folder{name: name, parent: parent, folders: map[string]*Folder{}}
}

// Name returns the folder title.
func (f *Folder) Name() string { return f.name }

// Open expands the folder.
func (f *Folder) Open() { f.open = true }

// IsOpen reports whether the folder is expanded.
func (f *Folder) IsOpen() bool { return f.open }

// Hidden reports whether the folder's visibility checkbox is unchecked.
func (f *Folder) Hidden() bool {
	if f.visibility == nil {
		return false
	}
	v, _ := f.visibility.Value().(bool)
	return !v
}

// Visibility returns the checkbox shown in the folder title, if any.
func (f *Folder) Visibility() *Controller { return f.visibility }

// AddFolder returns the subfolder called name, creating it when missing.
func (f *Folder) AddFolder(name string) *Folder {
	if sub, ok := f.folders[name]; ok {
		return sub
	}
	sub := newFolder(name, f)
	f.folders[name] = sub
	f.order = append(f.order, name)
	return sub
}

// Folder returns the subfolder called name.
func (f *Folder) Folder(name string) (*Folder, bool) {
	sub, ok := f.folders[name]
	return sub, ok
}

// Folders returns the subfolders in creation order.
func (f *Folder) Folders() []*Folder {
	out := make([]*Folder, 0, len(f.order))
	for _, name := range f.order {
		out = append(out, f.folders[name])
	}
	return out
}

// RemoveFolder drops the subfolder called name and everything below it.
func (f *Folder) RemoveFolder(name string) bool {
	if _, ok := f.folders[name]; !ok {
		return false
	}
	delete(f.folders, name)
	for i, n := range f.order {
		if n == name {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	return true
}

// Controllers returns the folder's controllers in creation order.
func (f *Folder) Controllers() []*Controller { return f.controllers }

// Controller returns the controller bound to name.
func (f *Folder) Controller(name string) (*Controller, bool) {
	for _, c := range f.controllers {
		if c.name == name {
			return c, true
		}
	}
	return nil, false
}

// Remove drops c from the folder.
func (f *Folder) Remove(c *Controller) bool {
	for i, have := range f.controllers {
		if have == c {
			f.controllers = append(f.controllers[:i], f.controllers[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every controller and subfolder.
func (f *Folder) Clear() {
	f.controllers = nil
	f.visibility = nil
	f.folders = map[string]*Folder{}
	f.order = nil
}

// Refresh re-reads every controller below f.
func (f *Folder) Refresh() {
	if f.visibility != nil {
		f.visibility.Refresh()
	}
	for _, c := range f.controllers {
		c.Refresh()
	}
	for _, sub := range f.folders {
		sub.Refresh()
	}
}

func (f *Folder) add(c *Controller) *Controller {
	f.controllers = append(f.controllers, c)
	return c
}

// AddBool adds a checkbox.
func (f *Folder) AddBool(name string, get func() bool, set func(bool)) *Controller {
	return f.add(newController(name, KindBool,
		func() any { return get() },
		func(v any) error { set(v.(bool)); return nil }))
}

// AddNumber adds a numeric slider.
func (f *Folder) AddNumber(name string, get func() float64, set func(float64)) *Controller {
	return f.add(newController(name, KindNumber,
		func() any { return get() },
		func(v any) error { set(v.(float64)); return nil }))
}

// AddButton adds a button running fn when pressed.
func (f *Folder) AddButton(name string, fn func()) *Controller {
	return f.add(newController(name, KindButton, nil, func(any) error { fn(); return nil }))
}

// AddOption adds a drop-down restricted to options.
func (f *Folder) AddOption(name string, options []string, value string) *Controller {
	c := newController(name, KindOption, nil, nil)
	c.options = options
	c.display = value
	return f.add(c)
}

// AddBound adds a controller whose accessors may fail, as bindings to
// loosely typed object fields do.
func (f *Folder) AddBound(name string, kind Kind, get func() any, set func(any) error) *Controller {
	return f.add(newController(name, kind, get, set))
}
