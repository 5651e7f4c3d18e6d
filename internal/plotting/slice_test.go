package plotting

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/muograph/muograph/internal/ndarray"
	"github.com/muograph/muograph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestSelection(t *testing.T) {
	assert.Equal(t, "3", At(3).String())
	assert.Equal(t, "1:4", Span(1, 4).String())
	assert.Equal(t, 4, Span(1, 4).Len())
	assert.True(t, At(2).Single())
	assert.False(t, Span(2, 3).Single())

	voi := testutil.SmallVolume(t)
	assert.Equal(t, Span(0, 2), FullRange(voi, 1))
}

func TestSlice2D(t *testing.T) {
	preds := testutil.Ramp([3]int{4, 3, 2})

	tests := []struct {
		name  string
		dim   int
		sel   Selection
		shape []int
		at    func(i, j int) float64
	}{
		{"single z slice", 2, At(1), []int{4, 3}, func(i, j int) float64 { return float64(100*i+10*j) + 1 }},
		{"mean of z slices", 2, Span(0, 1), []int{4, 3}, func(i, j int) float64 { return float64(100*i+10*j) + 0.5 }},
		{"single x slice", 0, At(2), []int{3, 2}, func(j, k int) float64 { return float64(200 + 10*j + k) }},
		{"mean of y slices", 1, Span(1, 2), []int{4, 2}, func(i, k int) float64 { return float64(100*i+k) + 15 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Slice2D(tt.dim, preds, tt.sel)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.shape, m.Shape()); diff != "" {
				t.Fatalf("shape mismatch (-want +got):\n%s", diff)
			}
			for i := 0; i < tt.shape[0]; i++ {
				for j := 0; j < tt.shape[1]; j++ {
					assert.InDelta(t, tt.at(i, j), m.At(i, j), 1e-9, "(%d, %d)", i, j)
				}
			}
		})
	}
}

func TestSlice2DErrors(t *testing.T) {
	preds := testutil.Ramp([3]int{4, 3, 2})

	_, err := Slice2D(3, preds, At(0))
	assert.True(t, errors.Is(err, ErrInvalidDim))

	for _, sel := range []Selection{At(2), Span(-1, 0), Span(1, 0)} {
		_, err := Slice2D(2, preds, sel)
		assert.True(t, errors.Is(err, ErrSliceRange), "selection %s: got %v", sel, err)
	}

	flat := ndarray.New(4, 3)
	_, err = Slice2D(0, flat, At(0))
	assert.Error(t, err)
}

func TestSliceCoords(t *testing.T) {
	voi := testutil.SmallVolume(t)

	tests := []struct {
		name   string
		dim    int
		sel    Selection
		lo, hi float64
	}{
		{"first z voxel", 2, At(0), -110, -100},
		{"second z voxel", 2, At(1), -100, -90},
		{"all z voxels", 2, Span(0, 1), -110, -90},
		{"middle x voxels", 0, Span(1, 2), -10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lo, hi, err := SliceCoords(tt.dim, voi, tt.sel)
			require.NoError(t, err)
			assert.InDelta(t, tt.lo, lo, 1e-9)
			assert.InDelta(t, tt.hi, hi, 1e-9)
		})
	}

	_, _, err := SliceCoords(2, voi, At(2))
	assert.True(t, errors.Is(err, ErrSliceRange))
	_, _, err = SliceCoords(-1, voi, At(0))
	assert.True(t, errors.Is(err, ErrInvalidDim))
}

func TestProfile(t *testing.T) {
	preds := testutil.Ramp([3]int{4, 3, 2})

	tests := []struct {
		dim  int
		want []float64
	}{
		{0, []float64{10.5, 110.5, 210.5, 310.5}},
		{1, []float64{150.5, 160.5, 170.5}},
		{2, []float64{160, 161}},
	}
	for _, tt := range tests {
		got, err := Profile(preds, tt.dim)
		require.NoError(t, err)
		if diff := cmp.Diff(tt.want, got, approx); diff != "" {
			t.Errorf("Profile(dim=%d) mismatch (-want +got):\n%s", tt.dim, diff)
		}
	}

	_, err := Profile(preds, 5)
	assert.True(t, errors.Is(err, ErrInvalidDim))
}

func TestProjections(t *testing.T) {
	m, err := ndarray.FromSlice([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)

	alongX, alongY, err := projections(m)
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{2, 5}, alongX, approx); diff != "" {
		t.Errorf("alongX mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{2.5, 3.5, 4.5}, alongY, approx); diff != "" {
		t.Errorf("alongY mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckVolume(t *testing.T) {
	voi := testutil.SmallVolume(t)
	assert.NoError(t, checkVolume(voi, testutil.Ramp([3]int{4, 3, 2})))
	assert.Error(t, checkVolume(voi, testutil.Ramp([3]int{4, 3, 3})))
	assert.Error(t, checkVolume(voi, ndarray.New(4, 3)))
}
