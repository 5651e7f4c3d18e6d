package plotting

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/plot/palette"
)

func rgba(c color.Color) [4]uint32 {
	r, g, b, a := c.RGBA()
	return [4]uint32{r >> 8, g >> 8, b >> 8, a >> 8}
}

func TestNewColormap(t *testing.T) {
	for _, name := range []string{"jet", "viridis", "gray", "coolwarm", "hot", "jet_r", "viridis_r"} {
		t.Run(name, func(t *testing.T) {
			cm, err := NewColormap(name)
			require.NoError(t, err)
			assert.Equal(t, name, cm.Name())
			assert.Equal(t, 0.0, cm.Min())
			assert.Equal(t, 1.0, cm.Max())
			assert.Equal(t, 1.0, cm.Alpha())
		})
	}

	_, err := NewColormap("rainbow")
	assert.Error(t, err)
}

func TestColormapAt(t *testing.T) {
	gray, err := NewColormap("gray")
	require.NoError(t, err)

	c, err := gray.At(0)
	require.NoError(t, err)
	assert.Equal(t, [4]uint32{0, 0, 0, 255}, rgba(c))

	c, err = gray.At(1)
	require.NoError(t, err)
	assert.Equal(t, [4]uint32{255, 255, 255, 255}, rgba(c))

	gray.SetRange(10, 20)
	c, err = gray.At(15)
	require.NoError(t, err)
	assert.Equal(t, [4]uint32{128, 128, 128, 255}, rgba(c))

	tests := []struct {
		v    float64
		want error
	}{
		{9, palette.ErrUnderflow},
		{21, palette.ErrOverflow},
		{math.NaN(), palette.ErrNaN},
	}
	for _, tt := range tests {
		_, err := gray.At(tt.v)
		assert.True(t, errors.Is(err, tt.want), "At(%v) = %v, want %v", tt.v, err, tt.want)
	}
}

func TestColormapReversed(t *testing.T) {
	gray, err := NewColormap("gray_r")
	require.NoError(t, err)
	c, err := gray.At(0)
	require.NoError(t, err)
	assert.Equal(t, [4]uint32{255, 255, 255, 255}, rgba(c))

	jet, err := NewColormap("jet")
	require.NoError(t, err)
	jetR, err := NewColormap("jet_r")
	require.NoError(t, err)
	if diff := cmp.Diff(jet.Hexes(9)[0], jetR.Hexes(9)[8]); diff != "" {
		t.Errorf("reversed end colour mismatch (-want +got):\n%s", diff)
	}
}

func TestColormapAlpha(t *testing.T) {
	hot, err := NewColormap("hot")
	require.NoError(t, err)
	hot.SetAlpha(0)
	c, err := hot.At(0.5)
	require.NoError(t, err)
	_, _, _, a := c.RGBA()
	assert.Zero(t, a)

	assert.Panics(t, func() { hot.SetAlpha(1.5) })
}

func TestColormapPaletteAndHexes(t *testing.T) {
	gray, err := NewColormap("gray")
	require.NoError(t, err)

	colors := gray.Palette(5).Colors()
	require.Len(t, colors, 5)
	assert.Equal(t, [4]uint32{0, 0, 0, 255}, rgba(colors[0]))
	assert.Equal(t, [4]uint32{255, 255, 255, 255}, rgba(colors[4]))

	if diff := cmp.Diff([]string{"#000000", "#ffffff"}, gray.Hexes(2)); diff != "" {
		t.Errorf("Hexes mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, gray.Hexes(1), 1)
}

func TestSeriesColors(t *testing.T) {
	got := SeriesColors([]string{"#ff0000", "#00ff00"}, 3)
	require.Len(t, got, 3)
	assert.Equal(t, [4]uint32{255, 0, 0, 255}, rgba(got[0]))
	assert.Equal(t, [4]uint32{0, 255, 0, 255}, rgba(got[1]))
	assert.Equal(t, rgba(got[0]), rgba(got[2]))

	hues := SeriesColors(nil, 4)
	require.Len(t, hues, 4)
	assert.NotEqual(t, rgba(hues[0]), rgba(hues[1]))

	fallback := SeriesColors([]string{"not a colour"}, 2)
	require.Len(t, fallback, 2)
	assert.Equal(t, rgba(SeriesColors(nil, 2)[1]), rgba(fallback[1]))

	assert.Nil(t, SeriesColors([]string{"#ffffff"}, 0))
}
