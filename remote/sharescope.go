package remote

import (
	"context"
	"fmt"
	"path"
	"reflect"
	"sort"
	"sync"
)

// Symbols is the exported symbol table of a shared package.
type Symbols map[string]reflect.Value

// ProvideFunc loads a shared package on demand.
type ProvideFunc func(ctx context.Context) (Symbols, error)

type sharedPackage struct {
	provide ProvideFunc
	symbols Symbols
}

// ShareScope holds the packages the host shares with units. Packages are
// provided lazily and loaded explicitly.
type ShareScope struct {
	mu       sync.Mutex
	begun    bool
	packages map[string]*sharedPackage
}

// NewShareScope creates an empty scope.
func NewShareScope() *ShareScope {
	return &ShareScope{packages: make(map[string]*sharedPackage)}
}

// Provide offers the package at importPath.
func (s *ShareScope) Provide(importPath string, provide ProvideFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packages[importPath] = &sharedPackage{provide: provide}
}

// Begin marks the host as ready to negotiate with units.
func (s *ShareScope) Begin() {
	s.mu.Lock()
	s.begun = true
	s.mu.Unlock()
}

// Begun reports whether Begin was called.
func (s *ShareScope) Begun() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.begun
}

// Load makes the package at importPath available. It is idempotent.
func (s *ShareScope) Load(ctx context.Context, importPath string) error {
	if s == nil {
		return fmt.Errorf("shared scope: no scope to load %q into", importPath)
	}
	s.mu.Lock()
	pkg, ok := s.packages[importPath]
	if ok && pkg.symbols != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("shared scope: unknown package %q", importPath)
	}

	symbols, err := pkg.provide(ctx)
	if err != nil {
		return fmt.Errorf("shared scope: load %q: %w", importPath, err)
	}
	if symbols == nil {
		symbols = Symbols{}
	}

	s.mu.Lock()
	pkg.symbols = symbols
	s.mu.Unlock()
	return nil
}

// Loaded lists loaded import paths.
func (s *ShareScope) Loaded() []string {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for p, pkg := range s.packages {
		if pkg.symbols != nil {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// negotiate returns the symbol tables for imports, keyed the way the
// interpreter expects ("import/path/pkgname"). The first import that is not
// loaded yields a KindSharedDependencyNotReady error.
func (s *ShareScope) negotiate(remote string, imports []string) (map[string]map[string]reflect.Value, error) {
	out := make(map[string]map[string]reflect.Value, len(imports))
	if len(imports) == 0 {
		return out, nil
	}
	begun := s.Begun()
	for _, imp := range imports {
		var symbols Symbols
		if begun {
			s.mu.Lock()
			if pkg, ok := s.packages[imp]; ok {
				symbols = pkg.symbols
			}
			s.mu.Unlock()
		}
		if symbols == nil {
			return nil, &Error{Kind: KindSharedDependencyNotReady, Remote: remote, Dependency: imp}
		}
		out[imp+"/"+path.Base(imp)] = symbols
	}
	return out, nil
}
