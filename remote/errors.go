package remote

import (
	"errors"
	"fmt"
)

// Kind tags a remote loading failure so recovery can dispatch on it.
type Kind int

const (
	// KindLoad is a bootstrap or network failure of a remote entry.
	KindLoad Kind = iota + 1
	// KindSharedDependencyNotReady means the unit imports a shared dependency
	// the host has not made available yet.
	KindSharedDependencyNotReady
	// KindStaleManifest means the entry no longer parses as a unit.
	KindStaleManifest
	// KindContainerNotFound means the binding the remote should create is absent.
	KindContainerNotFound
	// KindModuleMissing means the container has no such export.
	KindModuleMissing
)

func (k Kind) String() string {
	switch k {
	case KindLoad:
		return "load"
	case KindSharedDependencyNotReady:
		return "shared dependency not ready"
	case KindStaleManifest:
		return "stale manifest"
	case KindContainerNotFound:
		return "container not found"
	case KindModuleMissing:
		return "module missing"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Sentinels for errors.Is checks against a Kind.
var (
	ErrLoad                     = &Error{Kind: KindLoad}
	ErrSharedDependencyNotReady = &Error{Kind: KindSharedDependencyNotReady}
	ErrStaleManifest            = &Error{Kind: KindStaleManifest}
	ErrContainerNotFound        = &Error{Kind: KindContainerNotFound}
	ErrModuleMissing            = &Error{Kind: KindModuleMissing}
)

// Error is a tagged remote failure.
type Error struct {
	Kind   Kind
	Remote string
	// Dependency is the shared dependency import path for
	// KindSharedDependencyNotReady.
	Dependency string
	Err        error
}

func newError(kind Kind, remote string, err error) *Error {
	return &Error{Kind: kind, Remote: remote, Err: err}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Remote != "" {
		msg = e.Remote + ": " + msg
	}
	if e.Dependency != "" {
		msg += " (" + e.Dependency + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var rerr *Error
	if errors.As(err, &rerr) {
		return rerr.Kind
	}
	return 0
}

// ResolveError is the fatal shape every failed resolve surfaces as.
type ResolveError struct {
	Path     string
	Attempts int
	Err      error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: failed after %d attempt(s): %v", e.Path, e.Attempts, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}
