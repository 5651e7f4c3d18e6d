package plotting

import (
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/muograph/muograph/internal/ndarray"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
)

// HistOptions configures Pred1D.
type HistOptions struct {
	// Title defaults to "Voxel-wise predictions".
	Title string
	// XLabel defaults to "Density predition [a.u]".
	XLabel string
	// NBins defaults to the theme value.
	NBins int
	Log   bool
	// Figname, when set, is the saved file name (".png" added if it has no
	// extension).
	Figname string
}

// Histogram counts values into nbins equal-width bins spanning [lo, hi].
// The last bin includes hi. Values outside the range are ignored. When lo
// equals hi the range is widened by 0.5 on both sides.
func Histogram(values []float64, nbins int, lo, hi float64) (edges, counts []float64, err error) {
	if nbins <= 0 {
		return nil, nil, fmt.Errorf("number of bins must be positive, got %d", nbins)
	}
	if math.IsNaN(lo) || math.IsNaN(hi) || hi < lo {
		return nil, nil, fmt.Errorf("invalid histogram range [%g, %g]", lo, hi)
	}
	lo, hi = widen(lo, hi)
	edges = make([]float64, nbins+1)
	floats.Span(edges, lo, hi)
	dividers := append([]float64(nil), edges...)
	dividers[nbins] = math.Nextafter(hi, math.Inf(1))

	x := make([]float64, 0, len(values))
	for _, v := range values {
		if v >= lo && v <= hi {
			x = append(x, v)
		}
	}
	sort.Float64s(x)
	counts = stat.Histogram(nil, dividers, x, nil)
	return edges, counts, nil
}

// SigmaValues returns the values strictly within one standard deviation of
// their mean, along with that mean and deviation.
func SigmaValues(preds *ndarray.Dense) (inside []float64, mean, std float64) {
	mean, std = preds.Mean(), preds.Std()
	inside = preds.Filter(func(v float64) bool { return v > mean-std && v < mean+std })
	return inside, mean, std
}

func histBins(edges, counts []float64) []plotter.HistogramBin {
	bins := make([]plotter.HistogramBin, len(counts))
	for i, c := range counts {
		bins[i] = plotter.HistogramBin{Min: edges[i], Max: edges[i+1], Weight: c}
	}
	return bins
}

// Pred1D draws the distribution of every voxel prediction, the mean and the
// part of the distribution within one standard deviation of it.
func (p *Plotter) Pred1D(preds *ndarray.Dense, opts HistOptions) (*Figure, error) {
	if preds.Len() == 0 {
		return nil, fmt.Errorf("no predictions to histogram")
	}
	nbins := opts.NBins
	if nbins <= 0 {
		nbins = p.cfg.GetNBins()
	}
	title, xlabel := opts.Title, opts.XLabel
	if title == "" {
		title = "Voxel-wise predictions"
	}
	if xlabel == "" {
		xlabel = "Density predition [a.u]"
	}

	lo, hi := preds.Min(), preds.Max()
	edges, all, err := Histogram(preds.Data(), nbins, lo, hi)
	if err != nil {
		return nil, err
	}
	inside, mean, std := SigmaValues(preds)
	_, sigma, err := Histogram(inside, nbins, lo, hi)
	if err != nil {
		return nil, err
	}

	colors := SeriesColors(p.cfg.GetColors(), 3)
	pl := p.newPlot(title, xlabel, "Frequency")
	step := &plotter.Histogram{
		Bins:      histBins(edges, all),
		Width:     edges[1] - edges[0],
		LineStyle: plotter.DefaultLineStyle,
		LogY:      opts.Log,
	}
	step.LineStyle.Color = colors[0]
	band := &plotter.Histogram{
		Bins:      histBins(edges, sigma),
		Width:     edges[1] - edges[0],
		FillColor: withAlpha(colors[2], 0.3),
		LogY:      opts.Log,
	}
	pl.Add(plotter.NewGrid(), step, band)

	ymin, ymax := 0.0, floats.Max(all)
	if opts.Log {
		ymin = 0.5 * smallestPositive(all, sigma)
		pl.Y.Scale = plot.LogScale{}
		pl.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	}
	meanLine, err := plotter.NewLine(plotter.XYs{{X: mean, Y: ymin}, {X: mean, Y: ymax}})
	if err != nil {
		return nil, err
	}
	meanLine.Color = colors[1]
	meanLine.Width = vg.Points(1.5)
	pl.Add(meanLine)
	pl.Y.Min = ymin

	pl.Legend.Add(fmt.Sprintf("Mean = %.3f", mean), meanLine)
	pl.Legend.Add(fmt.Sprintf("σ = %.3f", std), band)
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
		if err := p.save(fig, opts.Figname); err != nil {
			return nil, err
		}
	}
	return fig, nil
}

func smallestPositive(sets ...[]float64) float64 {
	low := math.Inf(1)
	for _, s := range sets {
		for _, v := range s {
			if v > 0 && v < low {
				low = v
			}
		}
	}
	if math.IsInf(low, 1) {
		return 1
	}
	return low
}

func withAlpha(c color.Color, a float64) color.Color {
	r, g, b, _ := c.RGBA()
	alpha := uint8(math.Round(a * 255))
	return color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: alpha}
}
