// Package palette is shared with frame units so they can name colours
// without each carrying a copy of the colour tables.
package palette

import (
	"reflect"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// ImportPath is the path units import the palette under.
const ImportPath = "framefed/palette"

var named = map[string]string{
	"black": "#000000",
	"white": "#ffffff",
	"paper": "#f2efe6",
	"ink":   "#101014",
	"red":   "#c8102e",
}

// Hex returns the colour of level on a ramp of levels greys, from black at
// 0 to white at levels-1. Levels below 2 collapse to black/white.
func Hex(level, levels int) string {
	return Tint("grey", level, levels)
}

// Named returns the hex of a named colour, or black.
func Named(name string) string {
	if hex, ok := named[strings.ToLower(name)]; ok {
		return hex
	}
	return "#000000"
}

// Level maps a colour to the nearest level of a ramp of levels greys by
// its lightness.
func Level(c colorful.Color, levels int) int {
	if levels < 2 {
		levels = 2
	}
	l, _, _ := c.Lab()
	if l < 0 {
		l = 0
	}
	if l > 1 {
		l = 1
	}
	return int(l*float64(levels-1) + 0.5)
}

// Symbols is the interpreter symbol table for ImportPath.
func Symbols() map[string]reflect.Value {
	return map[string]reflect.Value{
		"Hex":   reflect.ValueOf(Hex),
		"Named": reflect.ValueOf(Named),
		"Tint":  reflect.ValueOf(Tint),
	}
}
