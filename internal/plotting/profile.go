package plotting

import (
	"fmt"

	"github.com/muograph/muograph/internal/ndarray"
	"github.com/muograph/muograph/internal/volume"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// ProfileOptions configures Profile1D.
type ProfileOptions struct {
	// Labels name each series; missing entries fall back to the profile mean.
	Labels []string
	// YLabel defaults to "value".
	YLabel  string
	Title   string
	Figname string
}

// Series is one averaged profile along an axis.
type Series struct {
	Label string
	X, Y  []float64
}

// Profiles averages each 3D array over the axes other than dim and pairs the
// result with the voxel centres along dim. A nil voi gives one unit voxel
// per element.
func Profiles(data []*ndarray.Dense, labels []string, voi *volume.Volume, dim int) ([]Series, *volume.Volume, error) {
	if _, err := PlaneFor(dim); err != nil {
		return nil, nil, err
	}
	if len(data) == 0 {
		return nil, nil, fmt.Errorf("no data to profile")
	}
	if voi == nil {
		if data[0].Rank() != 3 {
			return nil, nil, fmt.Errorf("profile needs a 3D array, got shape %v", data[0].Shape())
		}
		voi = volume.Unit(data[0].Dim(0), data[0].Dim(1), data[0].Dim(2))
	}
	centers := voi.Centers(dim)
	out := make([]Series, len(data))
	for i, d := range data {
		if err := checkVolume(voi, d); err != nil {
			return nil, nil, fmt.Errorf("series %d: %w", i, err)
		}
		y, err := Profile(d, dim)
		if err != nil {
			return nil, nil, err
		}
		label := fmt.Sprintf("Mean = %.3f", stat.Mean(y, nil))
		if i < len(labels) && labels[i] != "" {
			label = labels[i]
		}
		out[i] = Series{Label: label, X: centers, Y: y}
	}
	return out, voi, nil
}

// Profile1D plots the profile of each array along dim, one colour per array.
func (p *Plotter) Profile1D(data []*ndarray.Dense, voi *volume.Volume, dim int, opts ProfileOptions) (*Figure, error) {
	series, _, err := Profiles(data, opts.Labels, voi, dim)
	if err != nil {
		return nil, err
	}
	ylabel := opts.YLabel
	if ylabel == "" {
		ylabel = "value"
	}
	axis := volume.AxisNames[dim]
	pl := p.newPlot(opts.Title, fmt.Sprintf("%s [%s]", axis, p.unit()), ylabel)
	colors := SeriesColors(p.cfg.GetColors(), len(series))
	for i, s := range series {
		pts := make(plotter.XYs, len(s.X))
		for j := range s.X {
			pts[j] = plotter.XY{X: p.dist(s.X[j]), Y: s.Y[j]}
		}
		sc, err := plotter.NewScatter(pts)
		if err != nil {
			return nil, err
		}
		sc.GlyphStyle = draw.GlyphStyle{
			Color:  withAlpha(colors[i], 0.8),
			Radius: vg.Points(4),
			Shape:  draw.PlusGlyph{},
		}
		pl.Add(sc)
		pl.Legend.Add(s.Label, sc)
	}
	pl.Legend.Top = true
	pl.Legend.XOffs = -10
	pl.Legend.YOffs = -10

	w, h := p.cfg.GetHistSize()
	fig := &Figure{
		Width:  vg.Length(w) * vg.Inch,
		Height: vg.Length(h) * vg.Inch,
		draw:   func(dc draw.Canvas) { pl.Draw(dc) },
	}
	if opts.Figname != "" {
		if err := p.save(fig, opts.Figname+"_"+axis+".png"); err != nil {
			return nil, err
		}
	}
	return fig, nil
}
