// Package volume describes the voxelized volume of interest (VOI) that the
// voxel-wise predictions are attached to. All lengths are in millimetres.
package volume

import (
	"fmt"
	"math"
)

// Axis indices.
const (
	X = 0
	Y = 1
	Z = 2
)

// AxisNames maps an axis index to its label.
var AxisNames = [3]string{"x", "y", "z"}

// Volume is an axis-aligned box split into cubic voxels of width VoxelWidth.
type Volume struct {
	Position   [3]float64 // centre
	Dimension  [3]float64 // full extent along each axis
	VoxelWidth float64
}

// New validates and returns a Volume. Each dimension must be a positive
// integer multiple of the voxel width.
func New(position, dimension [3]float64, voxelWidth float64) (*Volume, error) {
	if !(voxelWidth > 0) {
		return nil, fmt.Errorf("voxel width must be positive, got %g", voxelWidth)
	}
	for i, d := range dimension {
		if !(d > 0) {
			return nil, fmt.Errorf("%s dimension must be positive, got %g", AxisNames[i], d)
		}
		n := d / voxelWidth
		if math.Abs(n-math.Round(n)) > 1e-6*math.Max(1, n) {
			return nil, fmt.Errorf("%s dimension %g is not a multiple of voxel width %g", AxisNames[i], d, voxelWidth)
		}
	}
	return &Volume{Position: position, Dimension: dimension, VoxelWidth: voxelWidth}, nil
}

// Unit returns the volume used when predictions come without geometry: centred
// on the origin with one unit-wide voxel per array element.
func Unit(nx, ny, nz int) *Volume {
	return &Volume{
		Dimension:  [3]float64{float64(nx), float64(ny), float64(nz)},
		VoxelWidth: 1,
	}
}

// XYZMin returns the lower corner.
func (v *Volume) XYZMin() [3]float64 {
	var out [3]float64
	for i := range out {
		out[i] = v.Position[i] - v.Dimension[i]/2
	}
	return out
}

// XYZMax returns the upper corner.
func (v *Volume) XYZMax() [3]float64 {
	var out [3]float64
	for i := range out {
		out[i] = v.Position[i] + v.Dimension[i]/2
	}
	return out
}

// DXYZ returns the extent along each axis.
func (v *Volume) DXYZ() [3]float64 { return v.Dimension }

// NVox returns the number of voxels along each axis.
func (v *Volume) NVox() [3]int {
	var out [3]int
	for i, d := range v.Dimension {
		out[i] = int(math.Round(d / v.VoxelWidth))
	}
	return out
}

// Edges returns the NVox()[axis]+1 voxel boundaries along axis.
func (v *Volume) Edges(axis int) []float64 {
	n := v.NVox()[axis]
	lo := v.XYZMin()[axis]
	out := make([]float64, n+1)
	for i := range out {
		out[i] = lo + float64(i)*v.VoxelWidth
	}
	return out
}

// VoxelEdge returns the lower and upper boundary of voxel i along axis.
func (v *Volume) VoxelEdge(axis, i int) (lo, hi float64, err error) {
	if axis < 0 || axis > 2 {
		return 0, 0, fmt.Errorf("axis %d out of range", axis)
	}
	if n := v.NVox()[axis]; i < 0 || i >= n {
		return 0, 0, fmt.Errorf("voxel %d out of range [0, %d) along %s", i, n, AxisNames[axis])
	}
	lo = v.XYZMin()[axis] + float64(i)*v.VoxelWidth
	return lo, lo + v.VoxelWidth, nil
}

// Centers returns the voxel centres along axis.
func (v *Volume) Centers(axis int) []float64 {
	edges := v.Edges(axis)
	out := make([]float64, len(edges)-1)
	for i := range out {
		out[i] = (edges[i] + edges[i+1]) / 2
	}
	return out
}

// String summarises the geometry for logs and CLI output.
func (v *Volume) String() string {
	n := v.NVox()
	return fmt.Sprintf("VOI centre=%v size=%v voxel=%g mm (%dx%dx%d voxels)",
		v.Position, v.Dimension, v.VoxelWidth, n[0], n[1], n[2])
}
