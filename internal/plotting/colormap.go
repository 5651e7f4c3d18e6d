package plotting

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/plot/palette"
)

// colormapStops holds evenly spaced anchor colours for each named colormap.
var colormapStops = map[string][]string{
	"jet":      {"#00007f", "#0000ff", "#007fff", "#00ffff", "#7fff7f", "#ffff00", "#ff7f00", "#ff0000", "#7f0000"},
	"viridis":  {"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"},
	"gray":     {"#000000", "#ffffff"},
	"coolwarm": {"#3b4cc0", "#6889ee", "#9abbff", "#c9d7f0", "#edd1c2", "#f7a889", "#e26952", "#b40426"},
	"hot":      {"#0b0000", "#ff0000", "#ffff00", "#ffffff"},
}

// Colormap is a named continuous colour scale. It implements
// palette.ColorMap so it can drive gonum/plot heat maps and colour bars.
type Colormap struct {
	name     string
	stops    []colorful.Color
	min, max float64
	alpha    float64
}

var _ palette.ColorMap = (*Colormap)(nil)

// NewColormap returns the colormap called name over [0, 1]. A "_r" suffix
// reverses it.
func NewColormap(name string) (*Colormap, error) {
	base, reversed := strings.CutSuffix(name, "_r")
	hexes, ok := colormapStops[base]
	if !ok {
		return nil, fmt.Errorf("unknown colormap %q", name)
	}
	stops := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("colormap %s: %w", base, err)
		}
		if reversed {
			stops[len(hexes)-1-i] = c
		} else {
			stops[i] = c
		}
	}
	return &Colormap{name: name, stops: stops, max: 1, alpha: 1}, nil
}

// Name returns the colormap name including any "_r" suffix.
func (c *Colormap) Name() string { return c.name }

func (c *Colormap) Max() float64     { return c.max }
func (c *Colormap) SetMax(v float64) { c.max = v }
func (c *Colormap) Min() float64     { return c.min }
func (c *Colormap) SetMin(v float64) { c.min = v }
func (c *Colormap) Alpha() float64   { return c.alpha }

// SetRange sets both ends of the value range.
func (c *Colormap) SetRange(lo, hi float64) { c.min, c.max = lo, hi }

// SetAlpha sets the opacity. It panics outside [0, 1].
func (c *Colormap) SetAlpha(a float64) {
	if a < 0 || a > 1 {
		panic("plotting: colormap alpha out of range")
	}
	c.alpha = a
}

// blend returns the colour at fraction t in [0, 1] of the scale.
func (c *Colormap) blend(t float64) colorful.Color {
	seg := t * float64(len(c.stops)-1)
	i := int(math.Floor(seg))
	if i >= len(c.stops)-1 {
		return c.stops[len(c.stops)-1]
	}
	return c.stops[i].BlendRgb(c.stops[i+1], seg-float64(i)).Clamped()
}

func (c *Colormap) toColor(cc colorful.Color) color.Color {
	r, g, b := cc.RGB255()
	a := uint8(math.Round(c.alpha * 255))
	return color.NRGBA{R: r, G: g, B: b, A: a}
}

// At returns the colour for v, which must lie in [Min, Max].
func (c *Colormap) At(v float64) (color.Color, error) {
	switch {
	case math.IsNaN(v):
		return nil, palette.ErrNaN
	case v < c.min:
		return nil, palette.ErrUnderflow
	case v > c.max:
		return nil, palette.ErrOverflow
	}
	t := 0.0
	if c.max > c.min {
		t = (v - c.min) / (c.max - c.min)
	}
	return c.toColor(c.blend(t)), nil
}

// Palette samples n evenly spaced colours across the scale.
func (c *Colormap) Palette(n int) palette.Palette {
	colors := make([]color.Color, n)
	for i := range colors {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		colors[i] = c.toColor(c.blend(t))
	}
	return plainPalette(colors)
}

// Hexes samples n evenly spaced colours as "#rrggbb" strings, the form
// go-echarts visual maps expect.
func (c *Colormap) Hexes(n int) []string {
	out := make([]string, n)
	for i := range out {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		out[i] = c.blend(t).Hex()
	}
	return out
}

type plainPalette []color.Color

func (p plainPalette) Colors() []color.Color { return p }

// SeriesColors returns n colours for data series: the hex colours in order,
// cycling when there are fewer than n, or evenly spaced hues when none are
// given or one fails to parse.
func SeriesColors(hexes []string, n int) []color.Color {
	if n <= 0 {
		return nil
	}
	parsed := make([]color.Color, 0, len(hexes))
	for _, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			parsed = nil
			break
		}
		parsed = append(parsed, c)
	}
	out := make([]color.Color, n)
	for i := range out {
		if len(parsed) > 0 {
			out[i] = parsed[i%len(parsed)]
			continue
		}
		out[i] = colorful.Hsl(360*float64(i)/float64(n), 0.7, 0.5)
	}
	return out
}
