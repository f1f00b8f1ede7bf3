package remote

import (
	"context"
	"io"
)

// Func is an exported unit function operating on a mount target.
type Func func(target io.Writer) error

// Handle is a loaded unit as seen by the container layer.
type Handle interface {
	// Binding is the global name the unit declared.
	Binding() string
	// Symbol returns an exported function of the unit.
	Symbol(name string) (Func, bool)
}

// UnitLoader performs dynamic code loading for a platform.
type UnitLoader interface {
	Load(ctx context.Context, location string, scope *ShareScope) (Handle, error)
	Unload(h Handle)
}

// Module is a resolved export that can be mounted on a target.
type Module interface {
	Mount(target io.Writer) error
}

// Unmounter is implemented by modules that export an unmount function.
type Unmounter interface {
	Unmount(target io.Writer) error
}

type module struct {
	path  string
	mount Func
}

func (m *module) Mount(target io.Writer) error {
	return m.mount(target)
}

func (m *module) String() string {
	return m.path
}

type unmountableModule struct {
	module
	unmount Func
}

func (m *unmountableModule) Unmount(target io.Writer) error {
	return m.unmount(target)
}

func newModule(path string, mount, unmount Func) Module {
	base := module{path: path, mount: mount}
	if unmount == nil {
		return &base
	}
	return &unmountableModule{module: base, unmount: unmount}
}
