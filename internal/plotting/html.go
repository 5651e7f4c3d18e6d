package plotting

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/muograph/muograph/internal/ndarray"
	"github.com/muograph/muograph/internal/volume"
)

// HTMLOptions sets up the page around an interactive chart.
type HTMLOptions struct {
	// AssetsHost serves the echarts scripts; the go-echarts CDN when empty.
	AssetsHost string
	Theme      string
	Width      string
	Height     string
}

func (o HTMLOptions) init(title string) opts.Initialization {
	in := opts.Initialization{
		PageTitle:  title,
		Theme:      o.Theme,
		Width:      o.Width,
		Height:     o.Height,
		AssetsHost: o.AssetsHost,
	}
	if in.Width == "" {
		in.Width = "900px"
	}
	if in.Height == "" {
		in.Height = "720px"
	}
	return in
}

func categories(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = fmt.Sprintf("%.4g", v)
	}
	return out
}

// SliceHeatmapHTML renders the mean of the selected slices as an interactive
// heat map.
func (p *Plotter) SliceHeatmapHTML(w io.Writer, voi *volume.Volume, preds *ndarray.Dense, dim int, sel Selection, ho HTMLOptions) error {
	plane, err := PlaneFor(dim)
	if err != nil {
		return err
	}
	if err := checkVolume(voi, preds); err != nil {
		return err
	}
	m, err := Slice2D(dim, preds, sel)
	if err != nil {
		return err
	}
	lo, hi, err := SliceCoords(dim, voi, sel)
	if err != nil {
		return err
	}
	cm, err := p.colormap("", false)
	if err != nil {
		return err
	}

	data := make([]opts.HeatMapData, 0, m.Len())
	for i := 0; i < m.Dim(0); i++ {
		for j := 0; j < m.Dim(1); j++ {
			data = append(data, opts.HeatMapData{Value: [3]interface{}{i, j, m.At(i, j)}})
		}
	}
	vmin, vmax := widen(m.Min(), m.Max())
	title := fmt.Sprintf("%s view", plane.Name)
	hm := charts.NewHeatMap()
	hm.SetGlobalOptions(
		charts.WithInitializationOpts(ho.init("Voxel predictions "+title)),
		charts.WithTitleOpts(opts.Title{
			Title:    "Voxel predictions, " + title,
			Subtitle: fmt.Sprintf("%s ∈ [%.0f, %.0f] %s", plane.SliceLabel(), p.dist(lo), p.dist(hi), p.unit()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:         "category",
			Name:         fmt.Sprintf("%s [%s]", plane.XLabel(), p.unit()),
			NameLocation: "middle",
			NameGap:      30,
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:         "category",
			Data:         categories(p.dists(voi.Centers(plane.Axes[1]))),
			Name:         fmt.Sprintf("%s [%s]", plane.YLabel(), p.unit()),
			NameLocation: "middle",
			NameGap:      50,
		}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(vmin),
			Max:        float32(vmax),
			Orient:     "vertical",
			Right:      "0",
			Top:        "middle",
			InRange:    &opts.VisualMapInRange{Color: cm.Hexes(10)},
		}),
	)
	hm.SetXAxis(categories(p.dists(voi.Centers(plane.Axes[0])))).
		AddSeries("predictions", data)
	return hm.Render(w)
}

// HistogramHTML renders the distribution of preds as an interactive bar
// chart.
func (p *Plotter) HistogramHTML(w io.Writer, preds *ndarray.Dense, nbins int, ho HTMLOptions) error {
	if preds.Len() == 0 {
		return fmt.Errorf("no predictions to histogram")
	}
	if nbins <= 0 {
		nbins = p.cfg.GetNBins()
	}
	edges, counts, err := Histogram(preds.Data(), nbins, preds.Min(), preds.Max())
	if err != nil {
		return err
	}
	inside, mean, std := SigmaValues(preds)
	_, sigma, err := Histogram(inside, nbins, preds.Min(), preds.Max())
	if err != nil {
		return err
	}
	centers := make([]float64, nbins)
	all := make([]opts.BarData, nbins)
	band := make([]opts.BarData, nbins)
	for i := range counts {
		centers[i] = (edges[i] + edges[i+1]) / 2
		all[i] = opts.BarData{Value: counts[i]}
		band[i] = opts.BarData{Value: sigma[i]}
	}
	colors := p.cfg.GetColors()

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(ho.init("Voxel-wise predictions")),
		charts.WithTitleOpts(opts.Title{
			Title:    "Voxel-wise predictions",
			Subtitle: fmt.Sprintf("Mean = %.3f, σ = %.3f, %d voxels", mean, std, preds.Len()),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Prediction", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Frequency"}),
	)
	bar.SetXAxis(categories(centers)).
		AddSeries("all voxels", all, charts.WithItemStyleOpts(opts.ItemStyle{Color: colors[0%len(colors)]})).
		AddSeries("within 1σ", band, charts.WithItemStyleOpts(opts.ItemStyle{Color: colors[2%len(colors)], Opacity: opts.Float(0.5)})).
		SetSeriesOptions(charts.WithBarChartOpts(opts.BarChart{BarGap: "-100%"}))
	return bar.Render(w)
}

// ProfileHTML renders profiles along dim as an interactive line chart.
func (p *Plotter) ProfileHTML(w io.Writer, series []Series, dim int, ylabel string, ho HTMLOptions) error {
	if _, err := PlaneFor(dim); err != nil {
		return err
	}
	if len(series) == 0 {
		return fmt.Errorf("no series to plot")
	}
	if ylabel == "" {
		ylabel = "value"
	}
	colors := p.cfg.GetColors()
	axis := volume.AxisNames[dim]

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(ho.init("Profile along "+axis)),
		charts.WithTitleOpts(opts.Title{Title: "Profile along " + axis}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: fmt.Sprintf("%s [%s]", axis, p.unit()), NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: ylabel, Scale: opts.Bool(true)}),
	)
	line.SetXAxis(categories(p.dists(series[0].X)))
	for i, s := range series {
		data := make([]opts.LineData, len(s.Y))
		for j, v := range s.Y {
			data[j] = opts.LineData{Value: v}
		}
		line.AddSeries(s.Label, data,
			charts.WithLineChartOpts(opts.LineChart{Symbol: "cross", SymbolSize: 10, ShowSymbol: opts.Bool(true)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: colors[i%len(colors)]}),
		)
	}
	return line.Render(w)
}
