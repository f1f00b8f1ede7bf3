package remote

import (
	"context"
	"io"
	"sync"
)

type fakeHandle struct {
	binding string
	syms    map[string]Func
}

func (h *fakeHandle) Binding() string { return h.binding }

func (h *fakeHandle) Symbol(name string) (Func, bool) {
	fn, ok := h.syms[name]
	return fn, ok
}

// fakeUnits serves queued results per location; once a queue is drained
// the last result repeats.
type fakeUnits struct {
	mu       sync.Mutex
	results  map[string][]fakeResult
	loads    []string
	unloaded int
	gate     chan struct{}
}

type fakeResult struct {
	handle Handle
	err    error
}

func newFakeUnits() *fakeUnits {
	return &fakeUnits{results: make(map[string][]fakeResult)}
}

func (f *fakeUnits) serve(location string, results ...fakeResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[location] = append(f.results[location], results...)
}

func (f *fakeUnits) Load(ctx context.Context, location string, scope *ShareScope) (Handle, error) {
	f.mu.Lock()
	f.loads = append(f.loads, location)
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.results[location]
	if len(queue) == 0 {
		return nil, io.ErrUnexpectedEOF
	}
	res := queue[0]
	if len(queue) > 1 {
		f.results[location] = queue[1:]
	}
	return res.handle, res.err
}

func (f *fakeUnits) Unload(h Handle) {
	f.mu.Lock()
	f.unloaded++
	f.mu.Unlock()
}

func (f *fakeUnits) loadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.loads)
}

func frameHandle(name string, withUnmount bool) *fakeHandle {
	h := &fakeHandle{binding: name, syms: map[string]Func{
		"MountFrame": func(target io.Writer) error {
			_, err := io.WriteString(target, name+"\n")
			return err
		},
	}}
	if withUnmount {
		h.syms["UnmountFrame"] = func(target io.Writer) error {
			_, err := io.WriteString(target, "\f")
			return err
		}
	}
	return h
}
