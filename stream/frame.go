package stream

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Frame is a grid of pixels as mounted on the stage.
type Frame struct {
	Width  int
	Height int
	pixels []colorful.Color
}

// NewFrame creates a black Frame.
func NewFrame(width, height int) *Frame {
	f := new(Frame)
	f.Width = width
	f.Height = height
	f.pixels = make([]colorful.Color, width*height)
	return f
}

// ParseFrame reads rows of space separated hex colours. Short rows are
// padded with black to the widest row.
func ParseFrame(text string) (*Frame, error) {
	var rows [][]colorful.Color
	width := 0
	for n, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		row := make([]colorful.Color, len(fields))
		for i, field := range fields {
			c, err := colorful.Hex(field)
			if err != nil {
				return nil, fmt.Errorf("row %d col %d: %w", n, i, err)
			}
			row[i] = c
		}
		if len(row) > width {
			width = len(row)
		}
		rows = append(rows, row)
	}

	f := NewFrame(width, len(rows))
	for y, row := range rows {
		copy(f.pixels[y*width:], row)
	}
	return f, nil
}

// At returns the pixel at x, y.
func (f *Frame) At(x, y int) colorful.Color {
	return f.pixels[y*f.Width+x]
}

// Set sets the pixel at x, y.
func (f *Frame) Set(x, y int, c colorful.Color) {
	f.pixels[y*f.Width+x] = c
}

// Len is the pixel count.
func (f *Frame) Len() int {
	return len(f.pixels)
}

// MarshalBinary converts a Frame into the ledrx wire format: a little
// endian uint16 pixel count followed by RGB triples.
func (f *Frame) MarshalBinary() (data []byte, err error) {
	if len(f.pixels) > math.MaxUint16 {
		return nil, fmt.Errorf("frame has %d pixels, max %d", len(f.pixels), math.MaxUint16)
	}
	data = make([]byte, 2, (len(f.pixels)*3)+2)
	binary.LittleEndian.PutUint16(data, uint16(len(f.pixels)))
	for _, p := range f.pixels {
		r, g, b := p.Clamped().RGB255()
		data = append(data, r, g, b)
	}

	return data, nil
}
