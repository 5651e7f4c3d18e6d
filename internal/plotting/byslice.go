package plotting

import (
	"fmt"
	"math"
	"strings"

	"github.com/muograph/muograph/internal/ndarray"
	"github.com/muograph/muograph/internal/volume"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// BySliceOptions configures PredBySlice.
type BySliceOptions struct {
	Dim int
	// Selection restricts the slices drawn; nil means all of them.
	Selection *Selection
	// NCols is the number of grid columns, the theme value when zero.
	NCols int
	// NSlicePerPlot consecutive slices are averaged into each panel, 1 when zero.
	NSlicePerPlot int
	// Title is the figure title, "Voxels predictions" when empty.
	Title     string
	PredLabel string
	PredUnit  string
	// Scale sizes each panel, the theme value when zero.
	Scale   float64
	Cmap    string
	Reverse bool
	Figname string
}

// SliceGroup is one panel of a PredBySlice grid.
type SliceGroup struct {
	Selection Selection
	Map       *ndarray.Dense
	Lo, Hi    float64
}

// SliceGroups splits sel into consecutive groups of n slices and averages
// each one. The number of selected slices must be divisible by n.
func SliceGroups(voi *volume.Volume, preds *ndarray.Dense, dim int, sel Selection, n int) ([]SliceGroup, error) {
	if n <= 0 {
		return nil, fmt.Errorf("slices per plot must be positive, got %d", n)
	}
	if sel.Len()%n != 0 {
		return nil, fmt.Errorf("%d slices cannot be split into groups of %d", sel.Len(), n)
	}
	groups := make([]SliceGroup, 0, sel.Len()/n)
	for start := sel.Start; start <= sel.End; start += n {
		g := Span(start, start+n-1)
		m, err := Slice2D(dim, preds, g)
		if err != nil {
			return nil, err
		}
		lo, hi, err := SliceCoords(dim, voi, g)
		if err != nil {
			return nil, err
		}
		groups = append(groups, SliceGroup{Selection: g, Map: m, Lo: lo, Hi: hi})
	}
	return groups, nil
}

// PredBySlice draws a grid of 2D maps, one per group of NSlicePerPlot
// slices, sharing a colour scale.
func (p *Plotter) PredBySlice(voi *volume.Volume, preds *ndarray.Dense, opts BySliceOptions) (*Figure, error) {
	plane, err := PlaneFor(opts.Dim)
	if err != nil {
		return nil, err
	}
	if err := checkVolume(voi, preds); err != nil {
		return nil, err
	}
	scale, err := figScale(opts.Scale, p.cfg.GetScale())
	if err != nil {
		return nil, err
	}
	sel := FullRange(voi, opts.Dim)
	if opts.Selection != nil {
		sel = *opts.Selection
		if err := checkSelection(sel, preds.Dim(opts.Dim)); err != nil {
			return nil, err
		}
	}
	nslice := max(opts.NSlicePerPlot, 1)
	groups, err := SliceGroups(voi, preds, opts.Dim, sel, nslice)
	if err != nil {
		return nil, err
	}
	ncols := opts.NCols
	if ncols <= 0 {
		ncols = p.cfg.GetNCols()
	}
	nrows, _, err := GridRows(len(groups), ncols)
	if err != nil {
		return nil, err
	}

	vmin, vmax := preds.Min(), preds.Max()
	if nslice > 1 {
		vmin, vmax = math.Inf(1), math.Inf(-1)
		for _, g := range groups {
			vmin, vmax = min(vmin, g.Map.Min()), max(vmax, g.Map.Max())
		}
	}
	vmin, vmax = widen(vmin, vmax)
	cm, err := p.colormap(opts.Cmap, opts.Reverse)
	if err != nil {
		return nil, err
	}
	cm.SetRange(vmin, vmax)

	xlabel := fmt.Sprintf("%s [%s]", plane.XLabel(), p.unit())
	ylabel := fmt.Sprintf("%s [%s]", plane.YLabel(), p.unit())
	panels := make([]*plot.Plot, len(groups))
	for i, g := range groups {
		title := fmt.Sprintf("%s ∈ [%.0f,%.0f] %s", plane.SliceLabel(), p.dist(g.Lo), p.dist(g.Hi), p.unit())
		pl := p.newPlot(title, "", "")
		pl.Title.TextStyle.Font.Size = vg.Points(p.cfg.GetFontSize() - 1)
		if i%ncols == 0 {
			pl.Y.Label.Text = ylabel
		}
		if i >= len(groups)-ncols {
			pl.X.Label.Text = xlabel
		}
		pl.Add(p.heatMap(voi, plane, g.Map, cm, vmin, vmax))
		p.setPlaneLimits(pl, voi, plane)
		panels[i] = pl
	}

	label := opts.PredLabel
	if label == "" {
		label = DefaultPredLabel
	}
	cb := p.colorBar(cm, strings.TrimSpace(label+" "+opts.PredUnit))
	title := opts.Title
	if title == "" {
		title = "Voxels predictions"
	}
	title += fmt.Sprintf("\nvoxel size = %g %s", p.dist(voi.VoxelWidth), p.unit())

	fw, fh := FigSize(voi, nrows, ncols, plane.Axes, scale)
	tw, th := atLeast(vg.Length(fw)*vg.Inch/vg.Length(ncols), vg.Length(fh)*vg.Inch/vg.Length(nrows), MinPanel)
	w, h := tw*vg.Length(ncols), th*vg.Length(nrows)
	cbWidth, titleHeight := 1.2*vg.Inch, 0.9*vg.Inch
	titleStyle := p.textStyle(p.cfg.GetTitleSize())
	tiles := draw.Tiles{
		Rows: nrows,
		Cols: ncols,
		PadX: vg.Millimeter,
		PadY: vg.Millimeter,
	}

	fig := &Figure{
		Width:  w + cbWidth,
		Height: h + titleHeight,
		draw: func(dc draw.Canvas) {
			dc.FillText(titleStyle, vg.Point{X: dc.Min.X + w/2, Y: dc.Max.Y - 0.1*vg.Inch}, title)
			grid := region(dc, 0, 0, w, h)
			for i, pl := range panels {
				pl.Draw(tiles.At(grid, i%ncols, i/ncols))
			}
			cb.Draw(region(dc, w+0.1*vg.Inch, 0.15*h, w+cbWidth, 0.85*h))
		},
	}
	if opts.Figname != "" {
		if err := p.save(fig, opts.Figname+"_"+plane.Name+"_view_slice.png"); err != nil {
			return nil, err
		}
	}
	return fig, nil
}
