// Package ndarray implements the dense row-major float64 arrays that carry
// voxel-wise predictions and their uncertainties.
package ndarray

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrShape is returned when data and shape disagree or a dimension is not positive.
	ErrShape = errors.New("ndarray: bad shape")
	// ErrAxis is returned for an axis outside [0, Rank).
	ErrAxis = errors.New("ndarray: axis out of range")
	// ErrIndex is returned for an index or index range outside an axis.
	ErrIndex = errors.New("ndarray: index out of range")
)

// Dense is a row-major N-dimensional array of float64. The last axis varies
// fastest, so a voxel array of shape (nx, ny, nz) stores element (i, j, k) at
// i*ny*nz + j*nz + k.
type Dense struct {
	shape []int
	data  []float64
}

// New returns a zero-filled array of the given shape. It panics on a
// non-positive dimension, as gonum's constructors do.
func New(shape ...int) *Dense {
	n, err := volume(shape)
	if err != nil {
		panic(err)
	}
	return &Dense{shape: append([]int(nil), shape...), data: make([]float64, n)}
}

// FromSlice wraps data with the given shape. The slice is used as the backing
// store without copying.
func FromSlice(data []float64, shape ...int) (*Dense, error) {
	n, err := volume(shape)
	if err != nil {
		return nil, err
	}
	if n != len(data) {
		return nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrShape, shape, n, len(data))
	}
	return &Dense{shape: append([]int(nil), shape...), data: data}, nil
}

func volume(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("%w: empty shape", ErrShape)
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("%w: non-positive dimension in %v", ErrShape, shape)
		}
		n *= d
	}
	return n, nil
}

// Shape returns a copy of the array dimensions.
func (a *Dense) Shape() []int { return append([]int(nil), a.shape...) }

// Rank returns the number of dimensions.
func (a *Dense) Rank() int { return len(a.shape) }

// Len returns the number of elements.
func (a *Dense) Len() int { return len(a.data) }

// Data returns the backing slice in row-major order.
func (a *Dense) Data() []float64 { return a.data }

// Dim returns the size of one axis.
func (a *Dense) Dim(axis int) int { return a.shape[axis] }

func (a *Dense) offset(idx []int) int {
	if len(idx) != len(a.shape) {
		panic(fmt.Sprintf("ndarray: %d indices for rank %d", len(idx), len(a.shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= a.shape[i] {
			panic(fmt.Sprintf("ndarray: index %v out of range for shape %v", idx, a.shape))
		}
		off = off*a.shape[i] + v
	}
	return off
}

// At returns the element at idx. It panics when idx is out of range.
func (a *Dense) At(idx ...int) float64 { return a.data[a.offset(idx)] }

// Set stores v at idx. It panics when idx is out of range.
func (a *Dense) Set(v float64, idx ...int) { a.data[a.offset(idx)] = v }

// Clone returns a deep copy.
func (a *Dense) Clone() *Dense {
	return &Dense{shape: a.Shape(), data: append([]float64(nil), a.data...)}
}

// SameShape reports whether a and b have identical dimensions.
func SameShape(a, b *Dense) bool {
	if len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	return true
}

// Min returns the smallest element.
func (a *Dense) Min() float64 { return floats.Min(a.data) }

// Max returns the largest element.
func (a *Dense) Max() float64 { return floats.Max(a.data) }

// Sum returns the sum of all elements.
func (a *Dense) Sum() float64 { return floats.Sum(a.data) }

// Mean returns the mean of all elements.
func (a *Dense) Mean() float64 { return stat.Mean(a.data, nil) }

// Std returns the unbiased (N-1) standard deviation of all elements.
func (a *Dense) Std() float64 { return stat.StdDev(a.data, nil) }

// split returns the sizes before, along and after axis.
func (a *Dense) split(axis int) (outer, n, inner int, err error) {
	if axis < 0 || axis >= len(a.shape) {
		return 0, 0, 0, fmt.Errorf("%w: axis %d for rank %d", ErrAxis, axis, len(a.shape))
	}
	outer, inner = 1, 1
	for _, d := range a.shape[:axis] {
		outer *= d
	}
	for _, d := range a.shape[axis+1:] {
		inner *= d
	}
	return outer, a.shape[axis], inner, nil
}

func dropAxis(shape []int, axis int) []int {
	out := make([]int, 0, len(shape)-1)
	out = append(out, shape[:axis]...)
	return append(out, shape[axis+1:]...)
}

// MeanAxis returns the mean along axis, dropping that axis. The array must
// have rank of at least 2.
func (a *Dense) MeanAxis(axis int) (*Dense, error) {
	outer, n, inner, err := a.split(axis)
	if err != nil {
		return nil, err
	}
	if len(a.shape) < 2 {
		return nil, fmt.Errorf("%w: cannot reduce a rank 1 array along an axis", ErrAxis)
	}
	out := make([]float64, outer*inner)
	for o := 0; o < outer; o++ {
		base := o * n * inner
		dst := out[o*inner : (o+1)*inner]
		for k := 0; k < n; k++ {
			floats.Add(dst, a.data[base+k*inner:base+(k+1)*inner])
		}
	}
	floats.Scale(1/float64(n), out)
	return &Dense{shape: dropAxis(a.shape, axis), data: out}, nil
}

// Narrow returns a copy of the indices start..end (inclusive) along axis.
func (a *Dense) Narrow(axis, start, end int) (*Dense, error) {
	outer, n, inner, err := a.split(axis)
	if err != nil {
		return nil, err
	}
	if start < 0 || end >= n || start > end {
		return nil, fmt.Errorf("%w: [%d, %d] on axis %d of size %d", ErrIndex, start, end, axis, n)
	}
	width := end - start + 1
	out := make([]float64, 0, outer*width*inner)
	for o := 0; o < outer; o++ {
		base := o * n * inner
		out = append(out, a.data[base+start*inner:base+(end+1)*inner]...)
	}
	shape := a.Shape()
	shape[axis] = width
	return &Dense{shape: shape, data: out}, nil
}

// Index returns a copy of the sub-array at i along axis, dropping that axis.
// The array must have rank of at least 2.
func (a *Dense) Index(axis, i int) (*Dense, error) {
	if len(a.shape) < 2 {
		return nil, fmt.Errorf("%w: cannot index a rank 1 array along an axis", ErrAxis)
	}
	sub, err := a.Narrow(axis, i, i)
	if err != nil {
		return nil, err
	}
	sub.shape = dropAxis(sub.shape, axis)
	return sub, nil
}

// Matrix returns a rank 2 array as a gonum matrix with rows along axis 0.
func (a *Dense) Matrix() (*mat.Dense, error) {
	if len(a.shape) != 2 {
		return nil, fmt.Errorf("%w: Matrix needs rank 2, got shape %v", ErrShape, a.shape)
	}
	return mat.NewDense(a.shape[0], a.shape[1], append([]float64(nil), a.data...)), nil
}

// Filter returns the elements, in row-major order, for which keep is true.
func (a *Dense) Filter(keep func(v float64) bool) []float64 {
	var out []float64
	for _, v := range a.data {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}

// Fill sets every element to fn(idx), visiting indices in row-major order.
// The idx slice is reused between calls.
func (a *Dense) Fill(fn func(idx []int) float64) {
	idx := make([]int, len(a.shape))
	for off := range a.data {
		a.data[off] = fn(idx)
		for ax := len(idx) - 1; ax >= 0; ax-- {
			idx[ax]++
			if idx[ax] < a.shape[ax] {
				break
			}
			idx[ax] = 0
		}
	}
}
