package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Resolver turns module paths into mounted-ready modules, recovering once
// from the transient failure kinds.
type Resolver struct {
	registry *Registry
	loader   *Loader
	scope    *ShareScope
	logger   *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(registry *Registry, loader *Loader, scope *ShareScope, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{registry: registry, loader: loader, scope: scope, logger: logger}
}

// Resolve loads the container of path's remote and returns the export.
// Shared-dependency-not-ready and stale-manifest failures are retried once
// after recovery; everything else fails immediately with *ResolveError.
func (r *Resolver) Resolve(ctx context.Context, path string) (Module, error) {
	remoteName, export, err := SplitModulePath(path)
	if err != nil {
		return nil, &ResolveError{Path: path, Attempts: 0, Err: err}
	}

	mod, err := r.attempt(ctx, remoteName, export)
	if err == nil {
		return mod, nil
	}

	var rerr *Error
	if !errors.As(err, &rerr) {
		return nil, &ResolveError{Path: path, Attempts: 1, Err: err}
	}
	switch rerr.Kind {
	case KindSharedDependencyNotReady:
		r.logger.Info("loading shared dependency before retry",
			slog.String("module", path),
			slog.String("dependency", rerr.Dependency))
		if lerr := r.scope.Load(ctx, rerr.Dependency); lerr != nil {
			return nil, &ResolveError{Path: path, Attempts: 1, Err: errors.Join(err, lerr)}
		}
	case KindStaleManifest:
		d, ok := r.registry.Lookup(remoteName)
		if !ok {
			return nil, &ResolveError{Path: path, Attempts: 1, Err: err}
		}
		r.logger.Info("re-registering stale remote before retry",
			slog.String("module", path),
			slog.String("entry", d.EntryLocation))
		r.registry.Force(d)
	default:
		return nil, &ResolveError{Path: path, Attempts: 1, Err: err}
	}

	mod, err = r.attempt(ctx, remoteName, export)
	if err != nil {
		return nil, &ResolveError{Path: path, Attempts: 2, Err: err}
	}
	return mod, nil
}

func (r *Resolver) attempt(ctx context.Context, remoteName, export string) (Module, error) {
	d, ok := r.registry.Lookup(remoteName)
	if !ok {
		return nil, newError(KindContainerNotFound, remoteName, errors.New("remote is not registered"))
	}
	c, err := r.loader.Load(ctx, d)
	if err != nil {
		return nil, err
	}
	mod, err := c.Get(export)
	if err != nil {
		return nil, err
	}
	if mod == nil {
		return nil, newError(KindModuleMissing, remoteName, fmt.Errorf("export %q resolved to nothing", export))
	}
	return mod, nil
}
