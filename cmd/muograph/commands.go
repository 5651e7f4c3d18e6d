package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/muograph/muograph/internal/catalog"
	"github.com/muograph/muograph/internal/config"
	"github.com/muograph/muograph/internal/monitoring"
	"github.com/muograph/muograph/internal/ndarray"
	"github.com/muograph/muograph/internal/persist"
	"github.com/muograph/muograph/internal/plotting"
	"github.com/muograph/muograph/internal/security"
	"github.com/muograph/muograph/internal/timeutil"
	"github.com/muograph/muograph/internal/version"
	"github.com/muograph/muograph/internal/volume"
)

func versionString() string { return version.String() }

// optFloat is a float flag that remembers whether it was given.
type optFloat struct {
	v   float64
	set bool
}

func (f *optFloat) String() string {
	if !f.set {
		return ""
	}
	return strconv.FormatFloat(f.v, 'g', -1, 64)
}

func (f *optFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.v, f.set = v, true
	return nil
}

// common holds the flags shared by the plotting commands.
type common struct {
	configPath  string
	outDir      string
	name        string
	catalogPath string
	verbose     bool
	voi         voiOverrides
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "plot theme file (.json, .yaml or .toml)")
	fs.StringVar(&c.outDir, "out", ".", "output directory")
	fs.StringVar(&c.name, "name", "", "figure file prefix (default: input file name)")
	fs.StringVar(&c.catalogPath, "catalog", "", "SQLite catalog recording this run")
	fs.BoolVar(&c.verbose, "v", false, "verbose logging")
	fs.Var(&c.voi.position, "voi-pos", "override the volume centre, x,y,z in mm")
	fs.Var(&c.voi.dimension, "voi-dim", "override the volume size, x,y,z in mm")
	fs.Float64Var(&c.voi.voxelWidth, "voxel-width", 0, "override the voxel width in mm")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

// session is everything a plotting command needs once flags are parsed.
type session struct {
	plotter *plotting.Plotter
	recon   *Reconstruction
	rec     *recorder
	input   string
	prefix  string
}

func loadTheme(path string) (*config.PlotConfig, error) {
	if path == "" {
		return config.DefaultPlotConfig(), nil
	}
	return config.LoadPlotConfig(path)
}

func (c *common) open(fs *flag.FlagSet, command string) (*session, error) {
	monitoring.SetVerbose(c.verbose)
	if fs.NArg() != 1 {
		fmt.Fprintf(fs.Output(), "%s: expected one reconstruction file, got %d arguments\n", command, fs.NArg())
		return nil, errUsage
	}
	input := fs.Arg(0)

	theme, err := loadTheme(c.configPath)
	if err != nil {
		return nil, err
	}
	store, err := persist.NewStore(c.outDir, nil)
	if err != nil {
		return nil, err
	}
	recon, err := loadRecon(store, input, c.voi)
	if err != nil {
		return nil, err
	}
	name := c.name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}
	rec, err := openRecorder(c.catalogPath, command)
	if err != nil {
		return nil, err
	}
	return &session{
		plotter: plotting.NewPlotter(theme, nil),
		recon:   recon,
		rec:     rec,
		input:   input,
		prefix:  filepath.Join(c.outDir, security.SanitizeName(name)),
	}, nil
}

// selection converts -start/-end into a slice selection; negative values
// are unset and both unset selects every slice.
func selection(start, end int) *plotting.Selection {
	var sel plotting.Selection
	switch {
	case start < 0 && end < 0:
		return nil
	case end < 0:
		sel = plotting.At(start)
	case start < 0:
		sel = plotting.Span(0, end)
	default:
		sel = plotting.Span(start, end)
	}
	return &sel
}

func (s *session) figure(fig *plotting.Figure, stdout io.Writer, detail string) {
	fmt.Fprintln(stdout, fig.Path)
	s.rec.artifact("figure", fig.Path, detail)
}

func runSlice(args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("slice", stderr)
	var c common
	c.register(fs)
	dim := fs.Int("dim", volume.Z, "axis sliced through: 0 (x), 1 (y) or 2 (z)")
	start := fs.Int("start", -1, "first slice index (default: all slices)")
	end := fs.Int("end", -1, "last slice index, inclusive (default: start)")
	title := fs.String("title", "", "figure title")
	label := fs.String("label", plotting.DefaultPredLabel, "colour bar label")
	unit := fs.String("unit", plotting.DefaultPredUnit, "prediction unit")
	cmap := fs.String("cmap", "", "colormap (default: theme)")
	reverse := fs.Bool("reverse", false, "reverse the colormap")
	noProj := fs.Bool("no-proj", false, "omit the 1D projections")
	scale := fs.Float64("scale", 7, "figure scale in inches")
	var ref, vmin, vmax optFloat
	fs.Var(&ref, "ref", "reference value drawn on the projections")
	fs.Var(&vmin, "vmin", "lower colour limit")
	fs.Var(&vmax, "vmax", "upper colour limit")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if vmin.set != vmax.set {
		fmt.Fprintln(stderr, "slice: -vmin and -vmax must be given together")
		return errUsage
	}

	s, err := c.open(fs, "slice")
	if err != nil {
		return err
	}
	defer func() { s.rec.finish(err) }()

	opts := plotting.SliceOptions{
		Dim:           *dim,
		Selection:     selection(*start, *end),
		Title:         *title,
		PredLabel:     *label,
		PredUnit:      *unit,
		Scale:         *scale,
		Cmap:          *cmap,
		Reverse:       *reverse,
		NoProjections: *noProj,
		Figname:       s.prefix,
	}
	if ref.set {
		opts.Reference = &ref.v
	}
	if vmin.set {
		opts.VMinMax = &[2]float64{vmin.v, vmax.v}
	}
	fig, err := s.plotter.PredSlice(s.recon.VOI, s.recon.Preds, s.recon.Uncs, opts)
	if err != nil {
		return err
	}
	s.figure(fig, stdout, fmt.Sprintf("dim=%d start=%d end=%d", *dim, *start, *end))
	return nil
}

func runSlices(args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("slices", stderr)
	var c common
	c.register(fs)
	dim := fs.Int("dim", volume.Z, "axis sliced through: 0 (x), 1 (y) or 2 (z)")
	start := fs.Int("start", -1, "first slice index (default: all slices)")
	end := fs.Int("end", -1, "last slice index, inclusive")
	nslice := fs.Int("nslice", 1, "consecutive slices averaged per panel")
	ncols := fs.Int("ncols", 0, "grid columns (default: theme)")
	title := fs.String("title", "", "figure title")
	unit := fs.String("unit", "", "prediction unit")
	cmap := fs.String("cmap", "", "colormap (default: theme)")
	reverse := fs.Bool("reverse", false, "reverse the colormap")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := c.open(fs, "slices")
	if err != nil {
		return err
	}
	defer func() { s.rec.finish(err) }()

	fig, err := s.plotter.PredBySlice(s.recon.VOI, s.recon.Preds, plotting.BySliceOptions{
		Dim:           *dim,
		Selection:     selection(*start, *end),
		NCols:         *ncols,
		NSlicePerPlot: *nslice,
		Title:         *title,
		PredUnit:      *unit,
		Cmap:          *cmap,
		Reverse:       *reverse,
		Figname:       s.prefix,
	})
	if err != nil {
		return err
	}
	s.figure(fig, stdout, fmt.Sprintf("dim=%d nslice=%d", *dim, *nslice))
	return nil
}

func runHist(args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("hist", stderr)
	var c common
	c.register(fs)
	bins := fs.Int("bins", 0, "number of bins (default: theme)")
	logY := fs.Bool("log", false, "logarithmic frequency axis")
	title := fs.String("title", "", "figure title")
	xlabel := fs.String("xlabel", "", "x axis label")
	uncs := fs.Bool("uncs", false, "histogram the uncertainties instead of the predictions")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := c.open(fs, "hist")
	if err != nil {
		return err
	}
	defer func() { s.rec.finish(err) }()

	data, suffix := s.recon.Preds, "_pred_1D"
	if *uncs {
		if s.recon.Uncs == nil {
			return fmt.Errorf("%s has no %s dataset", s.input, uncsAttr)
		}
		data, suffix = s.recon.Uncs, "_unc_1D"
	}
	fig, err := s.plotter.Pred1D(data, plotting.HistOptions{
		Title:   *title,
		XLabel:  *xlabel,
		NBins:   *bins,
		Log:     *logY,
		Figname: s.prefix + suffix,
	})
	if err != nil {
		return err
	}
	s.figure(fig, stdout, fmt.Sprintf("bins=%d log=%t", *bins, *logY))
	return nil
}

func runGrid(args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("grid", stderr)
	var c common
	c.register(fs)
	dim := fs.Int("dim", -1, "axis sliced through (default: all three views)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := c.open(fs, "grid")
	if err != nil {
		return err
	}
	defer func() { s.rec.finish(err) }()

	dims := []int{volume.Z, volume.Y, volume.X}
	if *dim >= 0 {
		dims = []int{*dim}
	}
	for _, d := range dims {
		fig, err := s.plotter.VoxelGridFigure(d, s.recon.VOI, s.prefix)
		if err != nil {
			return err
		}
		s.figure(fig, stdout, fmt.Sprintf("dim=%d", d))
	}
	return nil
}

func runProfile(args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("profile", stderr)
	var c common
	c.register(fs)
	dim := fs.Int("dim", volume.Z, "axis of the profile")
	ylabel := fs.String("ylabel", plotting.DefaultPredLabel, "y axis label")
	title := fs.String("title", "", "figure title")
	withUncs := fs.Bool("uncs", false, "also plot the uncertainty profile")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := c.open(fs, "profile")
	if err != nil {
		return err
	}
	defer func() { s.rec.finish(err) }()

	data := []*ndarray.Dense{s.recon.Preds}
	labels := []string{"predictions"}
	if *withUncs && s.recon.Uncs != nil {
		data = append(data, s.recon.Uncs)
		labels = append(labels, "uncertainties")
	}
	fig, err := s.plotter.Profile1D(data, s.recon.VOI, *dim, plotting.ProfileOptions{
		Labels:  labels,
		YLabel:  *ylabel,
		Title:   *title,
		Figname: s.prefix + "_profile",
	})
	if err != nil {
		return err
	}
	s.figure(fig, stdout, fmt.Sprintf("dim=%d", *dim))
	return nil
}

func runServe(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("serve", stderr)
	var c common
	c.register(fs)
	addr := fs.String("addr", "localhost:8080", "listen address")
	assets := fs.String("assets", "", "echarts assets host (default: public CDN)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	s, err := c.open(fs, "serve")
	if err != nil {
		return err
	}
	defer s.rec.finish(nil)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, s, *addr, *assets)
}

func runInspect(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("inspect", stderr)
	verbose := fs.Bool("v", false, "verbose logging")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	monitoring.SetVerbose(*verbose)
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "inspect: expected one attribute file")
		return errUsage
	}
	store, err := persist.NewStore("", nil)
	if err != nil {
		return err
	}
	infos, err := store.ListAttrs(fs.Arg(0))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tKIND\tSHAPE\tINFO")
	for _, in := range infos {
		kind := in.Kind
		if kind == "" {
			kind = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", in.Name, kind, in.Shape, strings.ReplaceAll(in.Info, "\n", " "))
	}
	return tw.Flush()
}

func runDemo(args []string, stdout, stderr io.Writer) (err error) {
	fs := newFlagSet("demo", stderr)
	outDir := fs.String("out", ".", "output directory")
	name := fs.String("name", "demo", "file name without extension")
	catalogPath := fs.String("catalog", "", "SQLite catalog recording this run")
	seed := fs.Uint64("seed", 1, "noise seed")
	width := fs.Float64("voxel-width", 20, "voxel width in mm")
	pos := vec3{v: [3]float64{0, 0, -1200}, set: true}
	dim := vec3{v: [3]float64{400, 400, 300}, set: true}
	fs.Var(&pos, "voi-pos", "volume centre, x,y,z in mm")
	fs.Var(&dim, "voi-dim", "volume size, x,y,z in mm")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	voi, err := volume.New(pos.v, dim.v, *width)
	if err != nil {
		return err
	}
	rec, err := openRecorder(*catalogPath, "demo")
	if err != nil {
		return err
	}
	defer func() { rec.finish(err) }()

	store, err := persist.NewStore(*outDir, nil)
	if err != nil {
		return err
	}
	recon := demoRecon(voi, *seed)
	path, err := store.SaveAttrs(recon, recon.attrs(), *outDir, security.SanitizeName(*name))
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, path)
	rec.artifact("attrs", path, voi.String())
	return nil
}

func runCatalog(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("catalog", stderr)
	dbPath := fs.String("db", "", "SQLite catalog path (required)")
	limit := fs.Int("limit", 20, "number of runs to list, 0 for all")
	runID := fs.String("run", "", "list the artifacts of this run")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *dbPath == "" {
		fmt.Fprintln(stderr, "catalog: -db is required")
		return errUsage
	}
	cat, err := catalog.Open(*dbPath)
	if err != nil {
		return err
	}
	defer cat.Close()

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	if *runID != "" {
		arts, err := cat.Artifacts(*runID)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "ID\tKIND\tPATH\tDETAIL\tCREATED")
		for _, a := range arts {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", a.ID, a.Kind, a.Path, a.Detail, timeutil.FormatStamp(a.CreatedAt))
		}
		return tw.Flush()
	}

	runs, err := cat.Runs(*limit)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "RUN\tCOMMAND\tSTATUS\tVERSION\tSTARTED\tDURATION")
	for _, r := range runs {
		duration := "-"
		if r.FinishedAt != nil {
			duration = r.FinishedAt.Sub(r.StartedAt).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, r.Command, r.Status, r.Version, timeutil.FormatStamp(r.StartedAt), duration)
	}
	return tw.Flush()
}
