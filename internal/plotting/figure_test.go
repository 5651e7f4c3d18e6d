package plotting

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/muograph/muograph/internal/config"
	"github.com/muograph/muograph/internal/fsutil"
	"github.com/muograph/muograph/internal/ndarray"
	"github.com/muograph/muograph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/vg"
)

func newTestPlotter(t *testing.T) (*Plotter, *fsutil.MemoryFileSystem) {
	t.Helper()
	fs := fsutil.NewMemoryFileSystem()
	return NewPlotter(nil, fs), fs
}

func assertSavedPNG(t *testing.T, fs *fsutil.MemoryFileSystem, fig *Figure, want string) {
	t.Helper()
	assert.Equal(t, want, fig.Path)
	data, err := fs.ReadFile(want)
	require.NoError(t, err)
	testutil.AssertPNG(t, data)
}

func TestPredSlice(t *testing.T) {
	voi := testutil.SmallVolume(t)
	preds := testutil.Ramp([3]int{4, 3, 2})
	uncs := testutil.Constant([3]int{4, 3, 2}, 2)
	ref := 150.0
	sel := At(1)

	tests := []struct {
		name string
		uncs *ndarray.Dense
		opts SliceOptions
		path string
	}{
		{"xy with uncertainties", uncs, SliceOptions{Dim: 2, Figname: "out/run", Scale: 2}, "out/run_XY_view.png"},
		{"yz single slice", nil, SliceOptions{Dim: 0, Selection: &sel, Figname: "run", Scale: 2}, "run_YZ_view.png"},
		{"xz with reference", nil, SliceOptions{Dim: 1, Reference: &ref, Reverse: true, Figname: "ref", Scale: 2}, "ref_XZ_view.png"},
		{"no projections", nil, SliceOptions{Dim: 2, NoProjections: true, VMinMax: &[2]float64{0, 100}, Figname: "flat", Scale: 2}, "flat_XY_view.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, fs := newTestPlotter(t)
			fig, err := p.PredSlice(voi, preds, tt.uncs, tt.opts)
			require.NoError(t, err)
			assertSavedPNG(t, fs, fig, tt.path)
		})
	}
}

func TestPredSliceWithoutFigname(t *testing.T) {
	p, fs := newTestPlotter(t)
	voi := testutil.SmallVolume(t)

	fig, err := p.PredSlice(voi, testutil.Constant([3]int{4, 3, 2}, 1), nil, SliceOptions{Dim: 2, Scale: 1})
	require.NoError(t, err)
	assert.Empty(t, fig.Path)
	assert.False(t, fs.Exists("_XY_view.png"))

	data, err := fig.PNG()
	require.NoError(t, err)
	testutil.AssertPNG(t, data)
}

func TestSmallScalesRender(t *testing.T) {
	voi := testutil.SmallVolume(t)
	preds := testutil.Ramp([3]int{4, 3, 2})
	uncs := testutil.Constant([3]int{4, 3, 2}, 1)
	ref := 10.0

	for _, scale := range []float64{0.1, 0.5, 1, 1.5} {
		p, _ := newTestPlotter(t)
		fig, err := p.PredSlice(voi, preds, uncs, SliceOptions{Dim: 2, Scale: scale, Reference: &ref})
		require.NoError(t, err, "scale %g", scale)
		assert.GreaterOrEqual(t, fig.Height, MinPanel, "scale %g", scale)
		data, err := fig.PNG()
		require.NoError(t, err, "scale %g", scale)
		testutil.AssertPNG(t, data)

		fig, err = p.PredBySlice(voi, preds, BySliceOptions{Dim: 0, NCols: 3, Scale: scale})
		require.NoError(t, err, "scale %g", scale)
		data, err = fig.PNG()
		require.NoError(t, err, "scale %g", scale)
		testutil.AssertPNG(t, data)
	}
}

func TestNonFiniteScale(t *testing.T) {
	p, _ := newTestPlotter(t)
	voi := testutil.SmallVolume(t)
	preds := testutil.Ramp([3]int{4, 3, 2})

	for _, scale := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := p.PredSlice(voi, preds, nil, SliceOptions{Dim: 2, Scale: scale})
		assert.ErrorIs(t, err, ErrScale)
		_, err = p.PredBySlice(voi, preds, BySliceOptions{Dim: 2, Scale: scale})
		assert.ErrorIs(t, err, ErrScale)
	}
}

func TestAtLeast(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH vg.Length
	}{
		{4 * vg.Inch, 3 * vg.Inch, 4 * vg.Inch, 3 * vg.Inch},
		{2 * vg.Inch, 1 * vg.Inch, 5 * vg.Inch, 2.5 * vg.Inch},
		{1 * vg.Inch, 2 * vg.Inch, 2.5 * vg.Inch, 5 * vg.Inch},
		{2.5 * vg.Inch, 2.5 * vg.Inch, 2.5 * vg.Inch, 2.5 * vg.Inch},
	}
	for _, tc := range tests {
		w, h := atLeast(tc.w, tc.h, MinPanel)
		assert.InDelta(t, float64(tc.wantW), float64(w), 1e-9)
		assert.InDelta(t, float64(tc.wantH), float64(h), 1e-9)
	}
}

func TestProjectionLimits(t *testing.T) {
	tests := []struct {
		name           string
		alongX, alongY []float64
		ref            float64
		lo, hi         float64
	}{
		{"reference inside", []float64{1, 2}, []float64{1.5, 3}, 2, 0.98, 3.06},
		{"reference above", []float64{1, 2}, []float64{1.5, 3}, 10, 0.98, 10.2},
		{"reference below does not lower the minimum", []float64{1, 2}, []float64{1.5, 3}, 0, 0.98, 3.06},
		{"negative values scale towards zero", []float64{-2, -1}, []float64{-1.5}, -3, -1.96, -1.02},
		{"flat", []float64{0}, []float64{0}, 0, -0.5, 0.5},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lo, hi := projectionLimits(tc.alongX, tc.alongY, tc.ref)
			assert.InDelta(t, tc.lo, lo, 1e-9)
			assert.InDelta(t, tc.hi, hi, 1e-9)
		})
	}
}

func TestPredSliceErrors(t *testing.T) {
	p, _ := newTestPlotter(t)
	voi := testutil.SmallVolume(t)
	preds := testutil.Ramp([3]int{4, 3, 2})
	bad := At(5)

	_, err := p.PredSlice(voi, preds, nil, SliceOptions{Dim: 3})
	assert.True(t, errors.Is(err, ErrInvalidDim))

	_, err = p.PredSlice(voi, preds, nil, SliceOptions{Dim: 2, Selection: &bad})
	assert.True(t, errors.Is(err, ErrSliceRange))

	_, err = p.PredSlice(voi, testutil.Ramp([3]int{2, 2, 2}), nil, SliceOptions{Dim: 2})
	assert.Error(t, err)

	_, err = p.PredSlice(voi, preds, testutil.Ramp([3]int{4, 3, 1}), SliceOptions{Dim: 2})
	assert.Error(t, err)

	_, err = p.PredSlice(voi, preds, nil, SliceOptions{Dim: 2, Cmap: "rainbow"})
	assert.Error(t, err)
}

func TestSliceGroups(t *testing.T) {
	voi := testutil.SmallVolume(t)
	preds := testutil.Ramp([3]int{4, 3, 2})

	groups, err := SliceGroups(voi, preds, 0, FullRange(voi, 0), 2)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, Span(0, 1), groups[0].Selection)
	assert.Equal(t, Span(2, 3), groups[1].Selection)
	assert.InDelta(t, -20, groups[0].Lo, 1e-9)
	assert.InDelta(t, 0, groups[0].Hi, 1e-9)
	assert.InDelta(t, 250, groups[1].Map.At(0, 0), 1e-9)

	_, err = SliceGroups(voi, preds, 0, FullRange(voi, 0), 3)
	assert.Error(t, err)
	_, err = SliceGroups(voi, preds, 0, FullRange(voi, 0), 0)
	assert.Error(t, err)
}

func TestPredBySlice(t *testing.T) {
	voi := testutil.SmallVolume(t)
	preds := testutil.Ramp([3]int{4, 3, 2})

	tests := []struct {
		name string
		opts BySliceOptions
		path string
	}{
		{"one slice per plot", BySliceOptions{Dim: 2, Figname: "slices/run", Scale: 1}, "slices/run_XY_view_slice.png"},
		{"grouped slices", BySliceOptions{Dim: 0, NSlicePerPlot: 2, NCols: 1, Figname: "grouped", Scale: 1}, "grouped_YZ_view_slice.png"},
		{"more columns than plots", BySliceOptions{Dim: 1, NCols: 4, Title: "Density", PredUnit: "[a.u]", Figname: "wide", Scale: 1}, "wide_XZ_view_slice.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, fs := newTestPlotter(t)
			fig, err := p.PredBySlice(voi, preds, tt.opts)
			require.NoError(t, err)
			assertSavedPNG(t, fs, fig, tt.path)
		})
	}
}

func TestPredBySliceIndivisible(t *testing.T) {
	p, _ := newTestPlotter(t)
	voi := testutil.SmallVolume(t)

	_, err := p.PredBySlice(voi, testutil.Ramp([3]int{4, 3, 2}), BySliceOptions{Dim: 0, NSlicePerPlot: 3})
	assert.Error(t, err)
}

func TestHistogram(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		nbins  int
		lo, hi float64
		edges  []float64
		counts []float64
	}{
		{"last bin closed", []float64{0, 1, 2, 3, 4}, 4, 0, 4, []float64{0, 1, 2, 3, 4}, []float64{1, 1, 1, 2}},
		{"out of range ignored", []float64{-1, 0.5, 1.5, 9}, 2, 0, 2, []float64{0, 1, 2}, []float64{1, 1}},
		{"degenerate range", []float64{1, 1, 1}, 2, 1, 1, []float64{0.5, 1, 1.5}, []float64{0, 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edges, counts, err := Histogram(tt.values, tt.nbins, tt.lo, tt.hi)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.edges, edges, approx); diff != "" {
				t.Errorf("edges mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.counts, counts); diff != "" {
				t.Errorf("counts mismatch (-want +got):\n%s", diff)
			}
		})
	}

	_, _, err := Histogram([]float64{1}, 0, 0, 1)
	assert.Error(t, err)
	_, _, err = Histogram([]float64{1}, 2, 1, 0)
	assert.Error(t, err)
}

func TestSigmaValues(t *testing.T) {
	preds, err := ndarray.FromSlice([]float64{1, 2, 3, 4, 5}, 5)
	require.NoError(t, err)

	inside, mean, std := SigmaValues(preds)
	assert.InDelta(t, 3, mean, 1e-12)
	assert.InDelta(t, 1.5811388300841898, std, 1e-12)
	if diff := cmp.Diff([]float64{2, 3, 4}, inside); diff != "" {
		t.Errorf("inside mismatch (-want +got):\n%s", diff)
	}
}

func TestPred1D(t *testing.T) {
	preds := testutil.Ramp([3]int{4, 3, 2})

	tests := []struct {
		name string
		opts HistOptions
		path string
	}{
		{"linear", HistOptions{Figname: "hist/preds"}, "hist/preds.png"},
		{"log scale", HistOptions{Figname: "log.png", Log: true, NBins: 10}, "log.png"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, fs := newTestPlotter(t)
			fig, err := p.Pred1D(preds, tt.opts)
			require.NoError(t, err)
			assertSavedPNG(t, fs, fig, tt.path)
		})
	}

	p, _ := newTestPlotter(t)
	fig, err := p.Pred1D(testutil.Constant([3]int{2, 2, 2}, 4), HistOptions{Log: true})
	require.NoError(t, err)
	data, err := fig.PNG()
	require.NoError(t, err)
	testutil.AssertPNG(t, data)
}

func TestVoxelGrid(t *testing.T) {
	p, _ := newTestPlotter(t)
	voi := testutil.SmallVolume(t)

	pl, err := p.VoxelGrid(2, voi, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, -40.0, pl.X.Min)
	assert.Equal(t, 40.0, pl.X.Max)
	assert.Equal(t, -35.0, pl.Y.Min)
	assert.Equal(t, 35.0, pl.Y.Max)
	assert.Equal(t, "x [mm]", pl.X.Label.Text)
	assert.Equal(t, "y [mm]", pl.Y.Label.Text)

	pl, err = p.VoxelGrid(0, voi, pl, &Limits{-100, 100}, &Limits{-200, 0})
	require.NoError(t, err)
	assert.Equal(t, -100.0, pl.X.Min)
	assert.Equal(t, 0.0, pl.Y.Max)
	assert.Equal(t, "z [mm]", pl.Y.Label.Text)

	_, err = p.VoxelGrid(4, voi, nil, nil, nil)
	assert.True(t, errors.Is(err, ErrInvalidDim))
}

func TestVoxelGridFigure(t *testing.T) {
	p, fs := newTestPlotter(t)
	fig, err := p.VoxelGridFigure(1, testutil.SmallVolume(t), "grid")
	require.NoError(t, err)
	assertSavedPNG(t, fs, fig, "grid_XZ_grid.png")
}

func TestProfiles(t *testing.T) {
	data := []*ndarray.Dense{
		testutil.Ramp([3]int{4, 3, 2}),
		testutil.Constant([3]int{4, 3, 2}, 2),
	}

	series, voi, err := Profiles(data, []string{"ramp"}, nil, 2)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, "ramp", series[0].Label)
	assert.Equal(t, "Mean = 2.000", series[1].Label)
	if diff := cmp.Diff([]float64{-0.5, 0.5}, series[0].X); diff != "" {
		t.Errorf("centres mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{160, 161}, series[0].Y, approx); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, [3]int{4, 3, 2}, voi.NVox())

	_, _, err = Profiles(nil, nil, nil, 2)
	assert.Error(t, err)
	_, _, err = Profiles(data, nil, testutil.SmallVolume(t), 7)
	assert.True(t, errors.Is(err, ErrInvalidDim))
	_, _, err = Profiles([]*ndarray.Dense{testutil.Ramp([3]int{2, 2, 2})}, nil, testutil.SmallVolume(t), 0)
	assert.Error(t, err)
}

func TestProfile1D(t *testing.T) {
	p, fs := newTestPlotter(t)
	voi := testutil.SmallVolume(t)
	data := []*ndarray.Dense{testutil.Ramp([3]int{4, 3, 2}), testutil.Constant([3]int{4, 3, 2}, 100)}

	fig, err := p.Profile1D(data, voi, 0, ProfileOptions{Labels: []string{"ramp", "flat"}, Title: "Profiles", Figname: "prof"})
	require.NoError(t, err)
	assertSavedPNG(t, fs, fig, "prof_x.png")
}

func TestPlotterUnits(t *testing.T) {
	unit := "cm"
	p := NewPlotter(&config.PlotConfig{DistanceUnit: &unit}, fsutil.NewMemoryFileSystem())

	assert.Equal(t, 10.0, p.dist(100))
	assert.Equal(t, "Voxel x location [cm]", p.axisLabel("Voxel ", "x"))

	pl, err := p.VoxelGrid(2, testutil.SmallVolume(t), nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, -4.0, pl.X.Min)
	assert.True(t, strings.HasSuffix(pl.X.Label.Text, "[cm]"))
}

func TestSaveMkdirError(t *testing.T) {
	fs := fsutil.NewMemoryFileSystem()
	fs.MkdirErr = errors.New("read-only")
	p := NewPlotter(nil, fs)

	_, err := p.VoxelGridFigure(2, testutil.SmallVolume(t), "plots/grid")
	assert.Error(t, err)
}
