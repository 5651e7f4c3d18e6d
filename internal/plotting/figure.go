package plotting

import (
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"path/filepath"
	"strings"

	"github.com/muograph/muograph/internal/config"
	"github.com/muograph/muograph/internal/fsutil"
	"github.com/muograph/muograph/internal/monitoring"
	"github.com/muograph/muograph/internal/units"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/font"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// Plotter renders figures using a plot theme and writes them through a
// filesystem.
type Plotter struct {
	cfg *config.PlotConfig
	fs  fsutil.FileSystem
}

// NewPlotter returns a Plotter. A nil cfg uses the built-in theme and a nil
// fs writes to the local disk.
func NewPlotter(cfg *config.PlotConfig, fs fsutil.FileSystem) *Plotter {
	if cfg == nil {
		cfg = config.DefaultPlotConfig()
	}
	if fs == nil {
		fs = fsutil.OSFileSystem{}
	}
	return &Plotter{cfg: cfg, fs: fs}
}

// Config returns the plot theme.
func (p *Plotter) Config() *config.PlotConfig { return p.cfg }

// Figure is a rendered-on-demand image made of one or more plots.
type Figure struct {
	Width, Height vg.Length
	// Path is where the figure was saved, empty when it was not.
	Path string

	draw func(dc draw.Canvas)
}

// WriteTo renders the figure as PNG.
func (f *Figure) WriteTo(w io.Writer) (int64, error) {
	img := vgimg.New(f.Width, f.Height)
	f.draw(draw.New(img))
	return vgimg.PngCanvas{Canvas: img}.WriteTo(w)
}

// PNG renders the figure into memory.
func (f *Figure) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// save writes f to name, adding a .png extension when name has none.
func (p *Plotter) save(f *Figure, name string) error {
	if filepath.Ext(name) == "" {
		name += ".png"
	}
	if dir := filepath.Dir(name); dir != "." {
		if err := p.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create figure directory: %w", err)
		}
	}
	w, err := p.fs.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := f.WriteTo(w); err != nil {
		w.Close()
		return fmt.Errorf("render %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	f.Path = name
	monitoring.Debugf("saved figure %s", name)
	return nil
}

// newPlot returns an empty plot styled with the theme font sizes.
func (p *Plotter) newPlot(title, xlabel, ylabel string) *plot.Plot {
	pl := plot.New()
	pl.Title.Text = title
	pl.Title.TextStyle.Font.Size = vg.Points(p.cfg.GetTitleSize())
	pl.X.Label.Text = xlabel
	pl.Y.Label.Text = ylabel
	label := vg.Points(p.cfg.GetLabelSize())
	pl.X.Label.TextStyle.Font.Size = label
	pl.Y.Label.TextStyle.Font.Size = label
	tick := vg.Points(p.cfg.GetFontSize() - 2)
	pl.X.Tick.Label.Font.Size = tick
	pl.Y.Tick.Label.Font.Size = tick
	pl.Legend.TextStyle.Font.Size = tick
	return pl
}

// textStyle returns a centred style for text drawn directly on a canvas.
func (p *Plotter) textStyle(size float64) draw.TextStyle {
	return draw.TextStyle{
		Color:   color.Black,
		Font:    font.From(plot.DefaultFont, vg.Points(size)),
		XAlign:  draw.XCenter,
		YAlign:  draw.YTop,
		Handler: plot.DefaultTextHandler,
	}
}

// colormap returns the theme colormap, reversed when reverse is set.
func (p *Plotter) colormap(override string, reverse bool) (*Colormap, error) {
	name := p.cfg.GetCmap()
	if override != "" {
		name = override
	}
	if reverse {
		if base, ok := strings.CutSuffix(name, "_r"); ok {
			name = base
		} else {
			name += "_r"
		}
	}
	return NewColormap(name)
}

// unit is the distance unit shown on axes.
func (p *Plotter) unit() string { return p.cfg.GetDistanceUnit() }

// dist converts a length in millimetres to the display unit.
func (p *Plotter) dist(mm float64) float64 { return units.ConvertDistance(mm, p.unit()) }

// dists converts lengths in millimetres to the display unit.
func (p *Plotter) dists(mm []float64) []float64 {
	out := make([]float64, len(mm))
	for i, v := range mm {
		out[i] = p.dist(v)
	}
	return out
}

// axisLabel returns e.g. "Voxel x location [mm]".
func (p *Plotter) axisLabel(prefix, axis string) string {
	return fmt.Sprintf("%s%s location [%s]", prefix, axis, p.unit())
}

// region returns the sub-canvas of dc spanning offsets (x0, y0) to (x1, y1)
// from its lower-left corner.
func region(dc draw.Canvas, x0, y0, x1, y1 vg.Length) draw.Canvas {
	return draw.Canvas{
		Canvas: dc.Canvas,
		Rectangle: vg.Rectangle{
			Min: vg.Point{X: dc.Min.X + x0, Y: dc.Min.Y + y0},
			Max: vg.Point{X: dc.Min.X + x1, Y: dc.Min.Y + y1},
		},
	}
}

// MinPanel is the smallest edge a map panel is drawn with. Below it the axes
// and colour bar leave the data area no room.
const MinPanel = 2.5 * vg.Inch

// ErrScale is returned for a figure scale that is not a finite number.
var ErrScale = errors.New("plotting: invalid figure scale")

// figScale returns scale, or def when scale is not positive.
func figScale(scale, def float64) (float64, error) {
	switch {
	case math.IsNaN(scale) || math.IsInf(scale, 0):
		return 0, fmt.Errorf("%w: %g", ErrScale, scale)
	case scale <= 0:
		return def, nil
	}
	return scale, nil
}

// atLeast grows w and h by a common factor until the shorter side is m.
func atLeast(w, h, m vg.Length) (vg.Length, vg.Length) {
	if s := min(w, h); s > 0 && s < m {
		return w * m / s, h * m / s
	}
	return w, h
}
