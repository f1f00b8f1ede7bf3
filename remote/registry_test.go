package remote

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryEnsureIsIdempotent(t *testing.T) {
	r := NewRegistry()
	var invalidated []string
	r.OnInvalidate(func(name string) { invalidated = append(invalidated, name) })

	r.Ensure(Descriptor{Name: "frame_0001", EntryLocation: "A"})
	r.Ensure(Descriptor{Name: "frame_0001", EntryLocation: "A"})
	assert.Empty(t, invalidated)

	d, ok := r.Lookup("frame_0001")
	require.True(t, ok)
	assert.Equal(t, "A", d.EntryLocation)
}

func TestRegistryEnsureDifferentLocationReplaces(t *testing.T) {
	r := NewRegistry()
	var invalidated []string
	r.OnInvalidate(func(name string) { invalidated = append(invalidated, name) })

	r.Ensure(Descriptor{Name: "frame_0001", EntryLocation: "A"})
	r.Ensure(Descriptor{Name: "frame_0001", EntryLocation: "B"})

	assert.Equal(t, []string{"frame_0001"}, invalidated)
	d, _ := r.Lookup("frame_0001")
	assert.Equal(t, "B", d.EntryLocation)
}

func TestRegistryForceAlwaysInvalidates(t *testing.T) {
	r := NewRegistry()
	count := 0
	r.OnInvalidate(func(string) { count++ })

	d := Descriptor{Name: "frame_0002", EntryLocation: "A"}
	r.Ensure(d)
	r.Force(d)
	r.Force(d)
	assert.Equal(t, 2, count)
	assert.Equal(t, []string{"frame_0002"}, r.Names())
}

func TestRegistryScenarioWithLoader(t *testing.T) {
	units := newFakeUnits()
	units.serve("A", fakeResult{handle: frameHandle("frame_0001", false)})
	units.serve("B", fakeResult{handle: frameHandle("frame_0001", false)})

	r := NewRegistry()
	l := NewLoader(r, units, nil, nil)
	ctx := context.Background()

	a := Descriptor{Name: "frame_0001", EntryLocation: "A"}
	r.Ensure(a)
	_, err := l.Load(ctx, a)
	require.NoError(t, err)

	r.Ensure(a)
	_, err = l.Load(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, 1, units.loadCount(), "identical re-registration must not bootstrap again")

	b := Descriptor{Name: "frame_0001", EntryLocation: "B"}
	r.Ensure(b)
	assert.False(t, l.Cached("frame_0001"))
	_, err = l.Load(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, 2, units.loadCount())
	assert.Equal(t, 1, units.unloaded)
}
