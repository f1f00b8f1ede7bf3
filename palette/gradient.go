package palette

import (
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Stop is a colour at a position of a Gradient, 0 to 1.
type Stop struct {
	Pos   float64
	Color colorful.Color
}

// Gradient is a look-up table of colours blended in Lab space. Stops are
// ordered by Pos.
type Gradient []Stop

// NewGradient builds a Gradient from hex stops, ignoring malformed ones.
func NewGradient(stops map[float64]string) Gradient {
	g := make(Gradient, 0, len(stops))
	for pos, hex := range stops {
		c, err := colorful.Hex(hex)
		if err != nil {
			continue
		}
		g = append(g, Stop{Pos: pos, Color: c})
	}
	sort.Slice(g, func(i, j int) bool { return g[i].Pos < g[j].Pos })
	return g
}

// GetColor gets the colour at t on the look-up table.
func (g Gradient) GetColor(t float64) colorful.Color {
	if len(g) == 0 {
		return colorful.Color{}
	}
	if t <= g[0].Pos {
		return g[0].Color
	}
	if last := g[len(g)-1]; t >= last.Pos {
		return last.Color
	}
	for i := 0; i < len(g)-1; i++ {
		c1 := g[i]
		c2 := g[i+1]
		if c1.Pos <= t && t <= c2.Pos {
			if c2.Pos == c1.Pos {
				return c2.Color
			}
			return c1.Color.BlendLab(c2.Color, (t-c1.Pos)/(c2.Pos-c1.Pos)).Clamped()
		}
	}
	return g[len(g)-1].Color
}

var ramps = map[string]Gradient{
	"grey":  NewGradient(map[float64]string{0: "#000000", 1: "#ffffff"}),
	"sepia": NewGradient(map[float64]string{0: "#101014", 0.6: "#8c6a43", 1: "#f2efe6"}),
	"ember": NewGradient(map[float64]string{0: "#000000", 0.4: "#c8102e", 0.8: "#ffb000", 1: "#ffffff"}),
}

// Tint returns the colour of level on a ramp of levels steps along the
// named gradient. Unknown ramps fall back to grey.
func Tint(ramp string, level, levels int) string {
	g, ok := ramps[strings.ToLower(ramp)]
	if !ok {
		g = ramps["grey"]
	}
	if levels < 2 {
		levels = 2
	}
	level = min(max(level, 0), levels-1)
	return g.GetColor(float64(level) / float64(levels-1)).Hex()
}
