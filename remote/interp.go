package remote

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// InterpLoader loads units written as Go source and evaluates them with an
// interpreter, one interpreter per unit.
type InterpLoader struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewInterpLoader creates an InterpLoader reading entries through fetcher.
func NewInterpLoader(fetcher Fetcher, logger *slog.Logger) *InterpLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &InterpLoader{fetcher: fetcher, logger: logger}
}

// Load fetches, checks and evaluates the unit at location.
func (l *InterpLoader) Load(ctx context.Context, location string, scope *ShareScope) (Handle, error) {
	src, err := l.fetcher.Fetch(ctx, location)
	if err != nil {
		return nil, newError(KindLoad, "", err)
	}

	unit, err := parseUnit(location, src)
	if err != nil {
		return nil, newError(KindStaleManifest, "", err)
	}

	shared, err := scope.negotiate(unit.pkg, unit.imports)
	if err != nil {
		return nil, err
	}

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, newError(KindLoad, unit.pkg, fmt.Errorf("use stdlib: %w", err))
	}
	if len(shared) > 0 {
		if err := i.Use(shared); err != nil {
			return nil, newError(KindLoad, unit.pkg, fmt.Errorf("use shared scope: %w", err))
		}
	}
	if _, err := i.EvalWithContext(ctx, string(src)); err != nil {
		return nil, newError(KindLoad, unit.pkg, fmt.Errorf("evaluate %s: %w", location, err))
	}

	l.logger.Debug("unit evaluated",
		slog.String("entry", location),
		slog.String("binding", unit.pkg),
		slog.Int("exports", len(unit.funcs)))
	return &interpHandle{interp: i, pkg: unit.pkg, funcs: unit.funcs}, nil
}

// Unload drops the unit's interpreter.
func (l *InterpLoader) Unload(h Handle) {
	if ih, ok := h.(*interpHandle); ok {
		ih.close()
	}
}

type interpHandle struct {
	mu     sync.Mutex
	interp *interp.Interpreter
	pkg    string
	funcs  map[string]bool
}

func (h *interpHandle) Binding() string {
	return h.pkg
}

func (h *interpHandle) Symbol(name string) (Func, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.interp == nil || !h.funcs[name] {
		return nil, false
	}
	v, err := h.interp.Eval(h.pkg + "." + name)
	if err != nil || v.Kind() != reflect.Func {
		return nil, false
	}
	return wrapFunc(name, v), true
}

func (h *interpHandle) close() {
	h.mu.Lock()
	h.interp = nil
	h.mu.Unlock()
}

func wrapFunc(name string, fn reflect.Value) Func {
	return func(target io.Writer) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s: %v", name, r)
			}
		}()
		out := fn.Call([]reflect.Value{reflect.ValueOf(target)})
		if len(out) == 0 {
			return nil
		}
		if e, ok := out[len(out)-1].Interface().(error); ok {
			return e
		}
		return nil
	}
}

type unitSource struct {
	pkg     string
	imports []string
	funcs   map[string]bool
}

// parseUnit reads the package clause, non standard imports and exported
// functions of a unit without evaluating it.
func parseUnit(location string, src []byte) (*unitSource, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, location, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, err
	}
	unit := &unitSource{pkg: f.Name.Name, funcs: make(map[string]bool)}
	std := stdlibPaths()
	for _, imp := range f.Imports {
		p, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return nil, err
		}
		if !std[p] {
			unit.imports = append(unit.imports, p)
		}
	}
	for _, decl := range f.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Recv != nil || !fd.Name.IsExported() {
			continue
		}
		unit.funcs[fd.Name.Name] = true
	}
	return unit, nil
}

var stdlibPaths = sync.OnceValue(func() map[string]bool {
	out := make(map[string]bool, len(stdlib.Symbols))
	for key := range stdlib.Symbols {
		if i := strings.LastIndex(key, "/"); i > 0 {
			out[key[:i]] = true
		}
	}
	return out
})
