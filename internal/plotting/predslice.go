package plotting

import (
	"fmt"
	"image/color"
	"math"
	"strings"

	"github.com/muograph/muograph/internal/ndarray"
	"github.com/muograph/muograph/internal/volume"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Default labels for voxel predictions.
const (
	DefaultPredLabel = "Scattering density"
	DefaultPredUnit  = "[a.u]"
)

// SliceOptions configures PredSlice.
type SliceOptions struct {
	// Dim is the axis sliced through. Callers usually pass volume.Z.
	Dim int
	// Selection picks the slices to average; nil means all of them.
	Selection *Selection
	Title     string
	PredLabel string
	PredUnit  string
	// Scale sizes the figure, 7 when zero.
	Scale float64
	// Cmap overrides the theme colormap.
	Cmap    string
	Reverse bool
	// NoProjections drops the 1D projections above and right of the map.
	NoProjections bool
	// Reference draws a red line at this value on both projections.
	Reference *float64
	// VMinMax fixes the colour range instead of the slice min/max.
	VMinMax *[2]float64
	// Figname, when set, is the prefix of the saved file.
	Figname string
}

func (o SliceOptions) labels() (label, unit string) {
	label, unit = o.PredLabel, o.PredUnit
	if label == "" {
		label = DefaultPredLabel
	}
	if unit == "" {
		unit = DefaultPredUnit
	}
	return label, unit
}

// sliceGrid adapts a 2D map to plotter.GridXYZ. Columns of the heat map are
// rows of m.
type sliceGrid struct {
	m      *ndarray.Dense
	xs, ys []float64
}

func (g sliceGrid) Dims() (c, r int)   { return g.m.Dim(0), g.m.Dim(1) }
func (g sliceGrid) Z(c, r int) float64 { return g.m.At(c, r) }
func (g sliceGrid) X(c int) float64    { return g.xs[c] }
func (g sliceGrid) Y(r int) float64    { return g.ys[r] }

// widen returns a non-empty range around lo..hi.
func widen(lo, hi float64) (float64, float64) {
	if hi > lo {
		return lo, hi
	}
	return lo - 0.5, hi + 0.5
}

// heatMap returns the map of m on plane, clipped to [vmin, vmax].
func (p *Plotter) heatMap(voi *volume.Volume, plane Plane, m *ndarray.Dense, cm *Colormap, vmin, vmax float64) *plotter.HeatMap {
	grid := sliceGrid{
		m:  m,
		xs: p.dists(voi.Centers(plane.Axes[0])),
		ys: p.dists(voi.Centers(plane.Axes[1])),
	}
	hm := plotter.NewHeatMap(grid, cm.Palette(255))
	hm.Min, hm.Max = vmin, vmax
	colors := hm.Palette.Colors()
	hm.Underflow, hm.Overflow = colors[0], colors[len(colors)-1]
	return hm
}

// setPlaneLimits fixes the axes of pl to the VOI bounds on plane.
func (p *Plotter) setPlaneLimits(pl *plot.Plot, voi *volume.Volume, plane Plane) {
	lo, hi := voi.XYZMin(), voi.XYZMax()
	pl.X.Min, pl.X.Max = p.dist(lo[plane.Axes[0]]), p.dist(hi[plane.Axes[0]])
	pl.Y.Min, pl.Y.Max = p.dist(lo[plane.Axes[1]]), p.dist(hi[plane.Axes[1]])
}

// colorBar returns a vertical colour bar plot for cm.
func (p *Plotter) colorBar(cm *Colormap, label string) *plot.Plot {
	cb := p.newPlot("", "", label)
	cb.HideX()
	cb.Add(&plotter.ColorBar{ColorMap: cm, Vertical: true})
	return cb
}

type yErrXYs struct {
	plotter.XYs
	plotter.YErrors
}

type xErrXYs struct {
	plotter.XYs
	plotter.XErrors
}

// PredSlice draws the mean of the selected slices of preds as a 2D map, with
// optional 1D projections and a colour bar. uncs may be nil; when given it
// adds error bars to the projections.
func (p *Plotter) PredSlice(voi *volume.Volume, preds, uncs *ndarray.Dense, opts SliceOptions) (*Figure, error) {
	plane, err := PlaneFor(opts.Dim)
	if err != nil {
		return nil, err
	}
	scale, err := figScale(opts.Scale, 7)
	if err != nil {
		return nil, err
	}
	if err := checkVolume(voi, preds); err != nil {
		return nil, err
	}
	if uncs != nil && !ndarray.SameShape(preds, uncs) {
		return nil, fmt.Errorf("uncertainties shape %v does not match predictions %v", uncs.Shape(), preds.Shape())
	}
	sel := FullRange(voi, opts.Dim)
	if opts.Selection != nil {
		sel = *opts.Selection
	}
	m, err := Slice2D(opts.Dim, preds, sel)
	if err != nil {
		return nil, err
	}
	lo, hi, err := SliceCoords(opts.Dim, voi, sel)
	if err != nil {
		return nil, err
	}
	cm, err := p.colormap(opts.Cmap, opts.Reverse)
	if err != nil {
		return nil, err
	}
	vmin, vmax := m.Min(), m.Max()
	if opts.VMinMax != nil {
		vmin, vmax = opts.VMinMax[0], opts.VMinMax[1]
	}
	vmin, vmax = widen(vmin, vmax)
	cm.SetRange(vmin, vmax)

	predLabel, predUnit := opts.labels()
	label := strings.TrimSpace(predLabel + " " + predUnit)
	title := opts.Title
	if title == "" {
		title = fmt.Sprintf("Voxel predictions\nfor volume slice %s ∈ [%.0f, %.0f] %s",
			plane.SliceLabel(), p.dist(lo), p.dist(hi), p.unit())
	}

	mainPlot := p.newPlot("", p.axisLabel("Voxel ", plane.XLabel()), p.axisLabel("Voxel ", plane.YLabel()))
	mainPlot.Add(p.heatMap(voi, plane, m, cm, vmin, vmax))
	p.setPlaneLimits(mainPlot, voi, plane)
	cb := p.colorBar(cm, label)

	var top, right *plot.Plot
	if !opts.NoProjections {
		var um *ndarray.Dense
		if uncs != nil {
			if um, err = Slice2D(opts.Dim, uncs, sel); err != nil {
				return nil, err
			}
		}
		if top, right, err = p.projectionPlots(voi, plane, m, um, label, opts.Reference); err != nil {
			return nil, err
		}
	}

	fw, fh := FigSize(voi, 1, 1, plane.Axes, scale)
	w, h := atLeast(vg.Length(fw)*vg.Inch, vg.Length(fh)*vg.Inch, MinPanel)
	cbWidth, titleHeight := 1.2*vg.Inch, 0.9*vg.Inch
	proj := 0.22 * min(w, h)
	titleStyle := p.textStyle(p.cfg.GetTitleSize())

	fig := &Figure{
		Width:  w + cbWidth,
		Height: h + titleHeight,
		draw: func(dc draw.Canvas) {
			dc.FillText(titleStyle, vg.Point{X: dc.Min.X + w/2, Y: dc.Max.Y - 0.1*vg.Inch}, title)
			if top == nil {
				mainPlot.Draw(region(dc, 0, 0, w, h))
			} else {
				mainPlot.Draw(region(dc, 0, 0, w-proj, h-proj))
				top.Draw(region(dc, 0, h-proj, w-proj, h))
				right.Draw(region(dc, w-proj, 0, w, h-proj))
			}
			cb.Draw(region(dc, w+0.1*vg.Inch, 0.1*h, w+cbWidth, 0.8*h))
		},
	}
	if opts.Figname != "" {
		if err := p.save(fig, opts.Figname+"_"+plane.Name+"_view.png"); err != nil {
			return nil, err
		}
	}
	return fig, nil
}

// projectionPlots builds the projection of m onto its first plane axis (shown
// above the map) and onto its second (shown on the right). um holds matching
// uncertainties or is nil.
func (p *Plotter) projectionPlots(voi *volume.Volume, plane Plane, m, um *ndarray.Dense, label string, ref *float64) (top, right *plot.Plot, err error) {
	alongX, alongY, err := projections(m)
	if err != nil {
		return nil, nil, err
	}
	xs := p.dists(voi.Centers(plane.Axes[0]))
	ys := p.dists(voi.Centers(plane.Axes[1]))

	top = p.newPlot("", "", label)
	right = p.newPlot("", label, "")
	top.HideX()
	right.HideY()

	topPts := make(plotter.XYs, len(xs))
	for i := range xs {
		topPts[i] = plotter.XY{X: xs[i], Y: alongX[i]}
	}
	rightPts := make(plotter.XYs, len(ys))
	for i := range ys {
		rightPts[i] = plotter.XY{X: alongY[i], Y: ys[i]}
	}

	if um == nil {
		for _, pair := range []struct {
			pl  *plot.Plot
			pts plotter.XYs
		}{{top, topPts}, {right, rightPts}} {
			s, err := plotter.NewScatter(pair.pts)
			if err != nil {
				return nil, nil, err
			}
			s.GlyphStyle.Shape = draw.CircleGlyph{}
			s.GlyphStyle.Radius = vg.Points(2)
			pair.pl.Add(s)
		}
	} else {
		uX, uY, err := projections(um)
		if err != nil {
			return nil, nil, err
		}
		yErr := make(plotter.YErrors, len(uX))
		for i, u := range uX {
			yErr[i].Low, yErr[i].High = u, u
		}
		xErr := make(plotter.XErrors, len(uY))
		for i, u := range uY {
			xErr[i].Low, xErr[i].High = u, u
		}
		yb, err := plotter.NewYErrorBars(yErrXYs{XYs: topPts, YErrors: yErr})
		if err != nil {
			return nil, nil, err
		}
		xb, err := plotter.NewXErrorBars(xErrXYs{XYs: rightPts, XErrors: xErr})
		if err != nil {
			return nil, nil, err
		}
		top.Add(yb)
		right.Add(xb)
	}

	if ref != nil {
		red := color.NRGBA{R: 255, A: 128}
		hline, err := plotter.NewLine(plotter.XYs{{X: xs[0], Y: *ref}, {X: xs[len(xs)-1], Y: *ref}})
		if err != nil {
			return nil, nil, err
		}
		hline.Color = red
		vline, err := plotter.NewLine(plotter.XYs{{X: *ref, Y: ys[0]}, {X: *ref, Y: ys[len(ys)-1]}})
		if err != nil {
			return nil, nil, err
		}
		vline.Color = red
		top.Add(hline)
		right.Add(vline)

		lo, hi := projectionLimits(alongX, alongY, *ref)
		top.Y.Min, top.Y.Max = lo, hi
		right.X.Min, right.X.Max = lo, hi
	}

	bounds := [2][2]float64{}
	vlo, vhi := voi.XYZMin(), voi.XYZMax()
	for i, axis := range plane.Axes {
		bounds[i] = [2]float64{p.dist(vlo[axis]), p.dist(vhi[axis])}
	}
	top.X.Min, top.X.Max = bounds[0][0], bounds[0][1]
	right.Y.Min, right.Y.Max = bounds[1][0], bounds[1][1]
	return top, right, nil
}

// projectionLimits is the value range shared by both projections when a
// reference is drawn: [min*0.98, max*1.02], where the maximum includes ref.
// The factors scale towards zero for negative values.
func projectionLimits(alongX, alongY []float64, ref float64) (lo, hi float64) {
	lo = math.Min(floats.Min(alongX), floats.Min(alongY))
	hi = math.Max(math.Max(floats.Max(alongX), floats.Max(alongY)), ref)
	return widen(lo*0.98, hi*1.02)
}
