// Package plotting turns 3D voxel-wise predictions attached to a volume of
// interest into 2D slice maps, 1D projections and histograms, rendered as PNG
// figures with gonum/plot or as interactive HTML with go-echarts.
package plotting

import (
	"errors"
	"fmt"

	"github.com/muograph/muograph/internal/volume"
)

var (
	// ErrInvalidDim is returned when a slicing axis is not 0, 1 or 2.
	ErrInvalidDim = errors.New("plotting: dim must be 0, 1 or 2")
	// ErrSliceRange is returned when a voxel slice selection falls outside the volume.
	ErrSliceRange = errors.New("plotting: slice out of range")
)

// Plane describes the 2D view obtained by slicing along one axis.
type Plane struct {
	Name string // "XY", "XZ" or "YZ"
	// Axes are the volume axes drawn horizontally and vertically.
	Axes [2]int
	// Dim is the axis that is sliced through.
	Dim int
}

// SliceLabel returns the name of the sliced axis ("x", "y" or "z").
func (p Plane) SliceLabel() string { return volume.AxisNames[p.Dim] }

// XLabel returns the name of the horizontal axis.
func (p Plane) XLabel() string { return volume.AxisNames[p.Axes[0]] }

// YLabel returns the name of the vertical axis.
func (p Plane) YLabel() string { return volume.AxisNames[p.Axes[1]] }

var planes = [3]Plane{
	{Name: "YZ", Axes: [2]int{1, 2}, Dim: 0},
	{Name: "XZ", Axes: [2]int{0, 2}, Dim: 1},
	{Name: "XY", Axes: [2]int{0, 1}, Dim: 2},
}

// PlaneFor returns the plane seen when slicing along dim.
func PlaneFor(dim int) (Plane, error) {
	if dim < 0 || dim > 2 {
		return Plane{}, fmt.Errorf("%w: got %d", ErrInvalidDim, dim)
	}
	return planes[dim], nil
}

// GridRows returns the number of rows needed to lay out nplots subplots on
// ncols columns, and how many cells of the last row stay empty.
func GridRows(nplots, ncols int) (nrows, extra int, err error) {
	if ncols <= 0 {
		return 0, 0, fmt.Errorf("ncols must be positive, got %d", ncols)
	}
	if nplots < 0 {
		return 0, 0, fmt.Errorf("nplots must not be negative, got %d", nplots)
	}
	nrows, rem := nplots/ncols, nplots%ncols
	if rem > 0 {
		nrows++
		extra = ncols - rem
	}
	return nrows, extra, nil
}

// FigSize returns the figure width and height in inches for an nrows x ncols
// grid of subplots showing the volume axes dims. The longer of the two
// extents is normalised to 1 and each side gets a fixed 0.25 margin.
func FigSize(voi *volume.Volume, nrows, ncols int, dims [2]int, scale float64) (w, h float64) {
	d := voi.DXYZ()
	dx, dy := d[dims[0]], d[dims[1]]
	rx, ry := min(dx/dy, 1), min(dy/dx, 1)
	return scale * float64(ncols) * (rx + 0.25), scale * float64(nrows) * (ry + 0.25)
}
