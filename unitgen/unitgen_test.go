package unitgen

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matt-g-everett/framefed/palette"
	"github.com/matt-g-everett/framefed/remote"
)

type sources map[string][]byte

func (s sources) Fetch(_ context.Context, location string) ([]byte, error) {
	src, ok := s[location]
	if !ok {
		return nil, fmt.Errorf("%s: not found", location)
	}
	return src, nil
}

// checker is a 3x2 image: black, white, black / white, black, white.
func checker() image.Image {
	img := image.NewGray(image.Rect(0, 0, 3, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 3; x++ {
			if (x+y)%2 == 1 {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func mount(t *testing.T, name string, src []byte) string {
	t.Helper()
	scope := remote.NewShareScope()
	scope.Provide(palette.ImportPath, func(context.Context) (remote.Symbols, error) {
		return palette.Symbols(), nil
	})
	scope.Begin()

	registry := remote.NewRegistry()
	registry.Ensure(remote.Descriptor{Name: name, EntryLocation: "unit"})
	loader := remote.NewLoader(registry, remote.NewInterpLoader(sources{"unit": src}, nil), scope, nil)
	resolver := remote.NewResolver(registry, loader, scope, nil)

	mod, err := resolver.Resolve(context.Background(), remote.ModulePath(name, "Frame"))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, mod.Mount(&buf))
	return buf.String()
}

func TestQuantize(t *testing.T) {
	grid := Quantize(checker(), 2, 0)
	assert.Equal(t, [][]int{{0, 1, 0}, {1, 0, 1}}, grid)

	grid = Quantize(checker(), 2, 2)
	assert.Equal(t, [][]int{{0, 0}}, grid, "step 2 samples even pixels")
}

func TestGenerateLiteralUnit(t *testing.T) {
	src, err := Generate(checker(), Options{Name: "frame_0001"})
	require.NoError(t, err)
	assert.Contains(t, string(src), "package frame_0001")
	assert.Contains(t, string(src), "func MountFrame(target io.Writer) error")
	assert.Contains(t, string(src), "func UnmountFrame(target io.Writer) error")
	assert.NotContains(t, string(src), palette.ImportPath)

	out := mount(t, "frame_0001", src)
	assert.Equal(t, "#000000 #ffffff #000000\n#ffffff #000000 #ffffff\n", out)
}

func TestGeneratePaletteUnitMatchesLiteral(t *testing.T) {
	literal, err := Generate(checker(), Options{Name: "frame_0002", Levels: 4})
	require.NoError(t, err)
	shared, err := Generate(checker(), Options{Name: "frame_0002", Levels: 4, UsePalette: true})
	require.NoError(t, err)
	assert.Contains(t, string(shared), `"`+palette.ImportPath+`"`)

	assert.Equal(t, mount(t, "frame_0002", literal), mount(t, "frame_0002", shared))
}

func TestGenerateRampMatchesLiteral(t *testing.T) {
	literal, err := Generate(checker(), Options{Name: "frame_0003", Levels: 3, Ramp: "sepia"})
	require.NoError(t, err)
	shared, err := Generate(checker(), Options{Name: "frame_0003", Levels: 3, Ramp: "sepia", UsePalette: true})
	require.NoError(t, err)

	out := mount(t, "frame_0003", shared)
	assert.Equal(t, mount(t, "frame_0003", literal), out)
	assert.Contains(t, out, palette.Tint("sepia", 0, 3))
}

func TestGenerateRejectsBadOptions(t *testing.T) {
	_, err := Generate(checker(), Options{Name: "frame-0001"})
	assert.Error(t, err)
	_, err = Generate(checker(), Options{Name: "frame_0001", Export: "frame"})
	assert.Error(t, err)
	_, err = Generate(checker(), Options{Name: "frame_0001", Levels: 17})
	assert.Error(t, err)
	_, err = Generate(checker(), Options{Name: "frame_0001", Ramp: `"; os.Exit(1); "`})
	assert.Error(t, err)
	_, err = Generate(image.NewGray(image.Rect(0, 0, 0, 0)), Options{Name: "frame_0001"})
	assert.Error(t, err)
}

func TestDecodePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, checker()))
	img, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), img.Bounds())

	_, err = Decode(bytes.NewReader([]byte("not an image")))
	assert.Error(t, err)
}
