package plotting

import (
	"fmt"

	"github.com/muograph/muograph/internal/volume"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// Limits is an axis range.
type Limits [2]float64

// VoxelGrid draws the voxel boundaries of voi seen on the plane of dim onto
// pl, creating a plot when pl is nil. Each boundary only spans the VOI
// extent. Nil limits default to the VOI bounds widened by two voxels.
func (p *Plotter) VoxelGrid(dim int, voi *volume.Volume, pl *plot.Plot, xlim, ylim *Limits) (*plot.Plot, error) {
	plane, err := PlaneFor(dim)
	if err != nil {
		return nil, err
	}
	ax, ay := plane.Axes[0], plane.Axes[1]
	lo, hi := voi.XYZMin(), voi.XYZMax()
	pad := 2 * voi.VoxelWidth
	if xlim == nil {
		xlim = &Limits{lo[ax] - pad, hi[ax] + pad}
	}
	if ylim == nil {
		ylim = &Limits{lo[ay] - pad, hi[ay] + pad}
	}
	if pl == nil {
		pl = p.newPlot("", "", "")
	}
	pl.X.Label.Text = fmt.Sprintf("%s [%s]", plane.XLabel(), p.unit())
	pl.Y.Label.Text = fmt.Sprintf("%s [%s]", plane.YLabel(), p.unit())

	style := plotter.DefaultLineStyle
	style.Color = withAlpha(SeriesColors(p.cfg.GetColors(), 1)[0], 0.5)
	var segments []plotter.XYs
	for _, x := range voi.Edges(ax) {
		segments = append(segments, plotter.XYs{
			{X: p.dist(x), Y: p.dist(lo[ay])},
			{X: p.dist(x), Y: p.dist(hi[ay])},
		})
	}
	for _, y := range voi.Edges(ay) {
		segments = append(segments, plotter.XYs{
			{X: p.dist(lo[ax]), Y: p.dist(y)},
			{X: p.dist(hi[ax]), Y: p.dist(y)},
		})
	}
	for _, seg := range segments {
		l, err := plotter.NewLine(seg)
		if err != nil {
			return nil, err
		}
		l.LineStyle = style
		pl.Add(l)
	}
	pl.X.Min, pl.X.Max = p.dist(xlim[0]), p.dist(xlim[1])
	pl.Y.Min, pl.Y.Max = p.dist(ylim[0]), p.dist(ylim[1])
	return pl, nil
}

// VoxelGridFigure wraps VoxelGrid in a figure sized like the plane and saves
// it to figname when set.
func (p *Plotter) VoxelGridFigure(dim int, voi *volume.Volume, figname string) (*Figure, error) {
	pl, err := p.VoxelGrid(dim, voi, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	plane, _ := PlaneFor(dim)
	pl.Title.Text = fmt.Sprintf("Voxel grid, %s view", plane.Name)
	fw, fh := FigSize(voi, 1, 1, plane.Axes, p.cfg.GetScale())
	fig := &Figure{
		Width:  vg.Length(fw) * vg.Inch,
		Height: vg.Length(fh) * vg.Inch,
		draw:   func(dc draw.Canvas) { pl.Draw(dc) },
	}
	if figname != "" {
		if err := p.save(fig, figname+"_"+plane.Name+"_grid.png"); err != nil {
			return nil, err
		}
	}
	return fig, nil
}
