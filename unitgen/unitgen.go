// Package unitgen turns bitmaps into frame unit sources.
package unitgen

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"image"
	_ "image/gif"  // decoders for Decode
	_ "image/jpeg" // decoders for Decode
	_ "image/png"  // decoders for Decode
	"io"
	"strings"
	"text/template"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/matt-g-everett/framefed/palette"
)

const digits = "0123456789abcdef"

// Options controls generation.
type Options struct {
	// Name is the package clause, the remote name of the frame.
	Name string
	// Export names the mount function, Mount<Export>.
	Export string
	// Levels is the number of ramp levels, 2 to 16.
	Levels int
	// MaxWidth downsamples wider images, 0 keeps the width.
	MaxWidth int
	// Ramp names the palette gradient levels are drawn from, grey when
	// empty.
	Ramp string
	// UsePalette emits level digits resolved through the shared palette
	// instead of literal colours.
	UsePalette bool
}

var unitTemplate = template.Must(template.New("unit").Parse(`package {{.Name}}

import (
	"io"
	"strings"
{{- if .UsePalette}}

	"{{.PaletteImport}}"
{{- end}}
)
{{if .UsePalette}}
const (
	digits = "{{.Digits}}"
	levels = {{.Levels}}
	ramp   = "{{.Ramp}}"
)
{{end}}
var rows = []string{
{{- range .Rows}}
	"{{.}}",
{{- end}}
}

func Mount{{.Export}}(target io.Writer) error {
{{- if .UsePalette}}
	for _, row := range rows {
		cells := make([]string, 0, len(row))
		for _, c := range row {
			cells = append(cells, palette.Tint(ramp, strings.IndexRune(digits, c), levels))
		}
		if _, err := io.WriteString(target, strings.Join(cells, " ")+"\n"); err != nil {
			return err
		}
	}
	return nil
{{- else}}
	_, err := io.WriteString(target, strings.Join(rows, "\n")+"\n")
	return err
{{- end}}
}

func Unmount{{.Export}}(target io.Writer) error {
	_, err := io.WriteString(target, "\f")
	return err
}
`))

type templateData struct {
	Options
	PaletteImport string
	Digits        string
	Rows          []string
}

// Generate renders the unit source of img.
func Generate(img image.Image, opts Options) ([]byte, error) {
	if !token.IsIdentifier(opts.Name) {
		return nil, fmt.Errorf("unit name %q is not a Go identifier", opts.Name)
	}
	if opts.Export == "" {
		opts.Export = "Frame"
	}
	if !token.IsExported(opts.Export) {
		return nil, fmt.Errorf("export %q must start with an upper case letter", opts.Export)
	}
	if opts.Levels == 0 {
		opts.Levels = 2
	}
	if opts.Ramp == "" {
		opts.Ramp = "grey"
	}
	if !token.IsIdentifier(strings.ReplaceAll(opts.Ramp, "-", "_")) {
		return nil, fmt.Errorf("ramp %q is not a palette name", opts.Ramp)
	}
	if opts.Levels < 2 || opts.Levels > len(digits) {
		return nil, fmt.Errorf("levels must be between 2 and %d, got %d", len(digits), opts.Levels)
	}

	grid := Quantize(img, opts.Levels, opts.MaxWidth)
	if len(grid) == 0 {
		return nil, fmt.Errorf("image is empty")
	}
	rows := make([]string, len(grid))
	for y, line := range grid {
		if opts.UsePalette {
			var b strings.Builder
			for _, level := range line {
				b.WriteByte(digits[level])
			}
			rows[y] = b.String()
			continue
		}
		cells := make([]string, len(line))
		for x, level := range line {
			cells[x] = palette.Tint(opts.Ramp, level, opts.Levels)
		}
		rows[y] = strings.Join(cells, " ")
	}

	var buf bytes.Buffer
	data := templateData{Options: opts, PaletteImport: palette.ImportPath, Digits: digits, Rows: rows}
	if err := unitTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render unit: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format unit: %w", err)
	}
	return src, nil
}

// Quantize maps img to rows of grey levels, sampling every step pixels so
// the width is at most maxWidth.
func Quantize(img image.Image, levels, maxWidth int) [][]int {
	bounds := img.Bounds()
	step := 1
	if maxWidth > 0 && bounds.Dx() > maxWidth {
		step = (bounds.Dx() + maxWidth - 1) / maxWidth
	}
	var grid [][]int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += step {
		line := make([]int, 0, bounds.Dx()/step+1)
		for x := bounds.Min.X; x < bounds.Max.X; x += step {
			c, ok := colorful.MakeColor(img.At(x, y))
			if !ok {
				// fully transparent
				line = append(line, 0)
				continue
			}
			line = append(line, palette.Level(c, levels))
		}
		grid = append(grid, line)
	}
	return grid
}

// Decode reads an image in any registered format.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}
