package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Container is a loaded remote and its exported module table.
type Container struct {
	Name     string
	Location string

	handle Handle

	mu     sync.Mutex
	closed bool
}

// Get returns the module exported as export.
func (c *Container) Get(export string) (Module, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, newError(KindContainerNotFound, c.Name, errors.New("container was unloaded"))
	}

	path := ModulePath(c.Name, export)
	mount, ok := c.handle.Symbol("Mount" + export)
	if !ok || mount == nil {
		return nil, newError(KindModuleMissing, c.Name, fmt.Errorf("no export %q", export))
	}
	unmount, _ := c.handle.Symbol("Unmount" + export)
	return newModule(path, mount, unmount), nil
}

func (c *Container) close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Loader bootstraps each remote entry once and caches its container.
type Loader struct {
	registry *Registry
	units    UnitLoader
	scope    *ShareScope
	logger   *slog.Logger

	group singleflight.Group

	mu         sync.Mutex
	containers map[string]*Container
	bootstraps int
}

// NewLoader creates a Loader. Containers are dropped when the registry
// invalidates their remote.
func NewLoader(registry *Registry, units UnitLoader, scope *ShareScope, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		registry:   registry,
		units:      units,
		scope:      scope,
		logger:     logger,
		containers: make(map[string]*Container),
	}
	if registry != nil {
		registry.OnInvalidate(l.Unload)
	}
	return l
}

// Load returns the container for d, bootstrapping it on first use.
// Concurrent calls for the same entry share one bootstrap.
func (l *Loader) Load(ctx context.Context, d Descriptor) (*Container, error) {
	l.mu.Lock()
	if c, ok := l.containers[d.Name]; ok {
		if c.Location == d.EntryLocation {
			l.mu.Unlock()
			return c, nil
		}
		delete(l.containers, d.Name)
		l.mu.Unlock()
		l.release(c)
	} else {
		l.mu.Unlock()
	}

	key := d.Name + "\x00" + d.EntryLocation
	bootCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(key, func() (any, error) {
		return l.bootstrap(bootCtx, d)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Container), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) bootstrap(ctx context.Context, d Descriptor) (*Container, error) {
	start := time.Now()
	l.mu.Lock()
	l.bootstraps++
	l.mu.Unlock()

	h, err := l.units.Load(ctx, d.EntryLocation, l.scope)
	if err != nil {
		var rerr *Error
		if !errors.As(err, &rerr) {
			err = newError(KindLoad, d.Name, err)
		}
		l.logger.Warn("remote bootstrap failed",
			slog.String("remote", d.Name),
			slog.String("entry", d.EntryLocation),
			slog.String("kind", KindOf(err).String()),
			slog.Any("error", err))
		return nil, err
	}
	if h.Binding() != d.Name {
		l.units.Unload(h)
		return nil, newError(KindContainerNotFound, d.Name, fmt.Errorf("entry declared %q", h.Binding()))
	}

	c := &Container{Name: d.Name, Location: d.EntryLocation, handle: h}
	l.mu.Lock()
	if l.isCurrent(d) {
		l.containers[d.Name] = c
	}
	l.mu.Unlock()

	l.logger.Debug("remote bootstrapped",
		slog.String("remote", d.Name),
		slog.String("entry", d.EntryLocation),
		slog.Duration("elapsed", time.Since(start)))
	return c, nil
}

// isCurrent reports whether d is still what the registry holds. Containers
// for superseded locations are returned to their caller but never cached.
func (l *Loader) isCurrent(d Descriptor) bool {
	if l.registry == nil {
		return true
	}
	current, ok := l.registry.Lookup(d.Name)
	return !ok || current.EntryLocation == d.EntryLocation
}

// Unload drops the container for name so the next Load bootstraps again.
func (l *Loader) Unload(name string) {
	l.mu.Lock()
	c, ok := l.containers[name]
	delete(l.containers, name)
	l.mu.Unlock()
	if ok {
		l.release(c)
	}
}

func (l *Loader) release(c *Container) {
	c.close()
	l.units.Unload(c.handle)
	l.logger.Debug("remote unloaded", slog.String("remote", c.Name), slog.String("entry", c.Location))
}

// Bootstraps counts bootstrap attempts made so far.
func (l *Loader) Bootstraps() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bootstraps
}

// Cached reports whether a container is cached for name.
func (l *Loader) Cached(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.containers[name]
	return ok
}
