package plotting

import (
	"errors"
	"testing"

	"github.com/muograph/muograph/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaneFor(t *testing.T) {
	tests := []struct {
		dim  int
		name string
		axes [2]int
	}{
		{0, "YZ", [2]int{1, 2}},
		{1, "XZ", [2]int{0, 2}},
		{2, "XY", [2]int{0, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := PlaneFor(tt.dim)
			require.NoError(t, err)
			assert.Equal(t, tt.name, p.Name)
			assert.Equal(t, tt.axes, p.Axes)
			assert.Equal(t, tt.dim, p.Dim)
		})
	}

	for _, dim := range []int{-1, 3} {
		_, err := PlaneFor(dim)
		assert.True(t, errors.Is(err, ErrInvalidDim), "dim %d: got %v", dim, err)
	}
}

func TestPlaneLabels(t *testing.T) {
	p, err := PlaneFor(1)
	require.NoError(t, err)
	assert.Equal(t, "y", p.SliceLabel())
	assert.Equal(t, "x", p.XLabel())
	assert.Equal(t, "z", p.YLabel())
}

func TestGridRows(t *testing.T) {
	tests := []struct {
		name          string
		nplots, ncols int
		nrows, extra  int
		wantErr       bool
	}{
		{"partial last row", 10, 4, 3, 2, false},
		{"full rows", 8, 4, 2, 0, false},
		{"single plot", 1, 4, 1, 3, false},
		{"no plots", 0, 4, 0, 0, false},
		{"zero columns", 3, 0, 0, 0, true},
		{"negative plots", -1, 2, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nrows, extra, err := GridRows(tt.nplots, tt.ncols)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.nrows, nrows)
			assert.Equal(t, tt.extra, extra)
		})
	}
}

func TestFigSize(t *testing.T) {
	voi := testutil.SmallVolume(t)

	w, h := FigSize(voi, 1, 1, [2]int{0, 1}, 2)
	assert.InDelta(t, 2.5, w, 1e-12)
	assert.InDelta(t, 2.0, h, 1e-12)

	// 40 mm wide against 20 mm tall: the height ratio shrinks to 0.5.
	w, h = FigSize(voi, 2, 3, [2]int{0, 2}, 1)
	assert.InDelta(t, 3*1.25, w, 1e-12)
	assert.InDelta(t, 2*0.75, h, 1e-12)
}
