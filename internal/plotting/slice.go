package plotting

import (
	"fmt"

	"github.com/muograph/muograph/internal/ndarray"
	"github.com/muograph/muograph/internal/volume"
)

// Selection picks voxel slices along the sliced axis: Start..End inclusive.
// A single slice has Start == End.
type Selection struct {
	Start, End int
}

// At selects the single slice i.
func At(i int) Selection { return Selection{Start: i, End: i} }

// Span selects slices i..j inclusive.
func Span(i, j int) Selection { return Selection{Start: i, End: j} }

// Len returns the number of selected slices.
func (s Selection) Len() int { return s.End - s.Start + 1 }

// Single reports whether one slice is selected.
func (s Selection) Single() bool { return s.Start == s.End }

func (s Selection) String() string {
	if s.Single() {
		return fmt.Sprintf("%d", s.Start)
	}
	return fmt.Sprintf("%d:%d", s.Start, s.End)
}

// FullRange selects every slice of voi along dim.
func FullRange(voi *volume.Volume, dim int) Selection {
	return Span(0, voi.NVox()[dim]-1)
}

func checkSelection(sel Selection, n int) error {
	if sel.Start < 0 || sel.End >= n || sel.Start > sel.End {
		return fmt.Errorf("%w: %s on an axis of %d voxels", ErrSliceRange, sel, n)
	}
	return nil
}

// Slice2D reduces the rank 3 preds to the 2D map of the selected slices
// along dim: the slice itself for a single index, the voxel-wise mean of the
// slices otherwise. Rows of the result follow the first plane axis and columns
// the second.
func Slice2D(dim int, preds *ndarray.Dense, sel Selection) (*ndarray.Dense, error) {
	if _, err := PlaneFor(dim); err != nil {
		return nil, err
	}
	if preds.Rank() != 3 {
		return nil, fmt.Errorf("predictions must be 3D, got shape %v", preds.Shape())
	}
	if err := checkSelection(sel, preds.Dim(dim)); err != nil {
		return nil, err
	}
	if sel.Single() {
		return preds.Index(dim, sel.Start)
	}
	narrowed, err := preds.Narrow(dim, sel.Start, sel.End)
	if err != nil {
		return nil, err
	}
	return narrowed.MeanAxis(dim)
}

// SliceCoords returns the position range covered by the selection along dim:
// the lower edge of its first voxel and the upper edge of its last voxel.
func SliceCoords(dim int, voi *volume.Volume, sel Selection) (lo, hi float64, err error) {
	if _, err := PlaneFor(dim); err != nil {
		return 0, 0, err
	}
	if err := checkSelection(sel, voi.NVox()[dim]); err != nil {
		return 0, 0, err
	}
	lo, _, err = voi.VoxelEdge(dim, sel.Start)
	if err != nil {
		return 0, 0, err
	}
	_, hi, err = voi.VoxelEdge(dim, sel.End)
	return lo, hi, err
}

// Profile averages a rank 3 array over the two axes other than dim, giving
// one value per voxel along dim.
func Profile(data *ndarray.Dense, dim int) ([]float64, error) {
	if _, err := PlaneFor(dim); err != nil {
		return nil, err
	}
	if data.Rank() != 3 {
		return nil, fmt.Errorf("profile needs a 3D array, got shape %v", data.Shape())
	}
	reduced := data
	// reduce the higher axis first so the lower index stays valid
	for axis := 2; axis >= 0; axis-- {
		if axis == dim {
			continue
		}
		var err error
		if reduced, err = reduced.MeanAxis(axis); err != nil {
			return nil, err
		}
	}
	return append([]float64(nil), reduced.Data()...), nil
}

// projections returns the 2D map averaged over its columns (one value per
// row, along the first plane axis) and over its rows (one value per column,
// along the second plane axis).
func projections(m *ndarray.Dense) (alongX, alongY []float64, err error) {
	rows, err := m.MeanAxis(1)
	if err != nil {
		return nil, nil, err
	}
	cols, err := m.MeanAxis(0)
	if err != nil {
		return nil, nil, err
	}
	return rows.Data(), cols.Data(), nil
}

// checkVolume verifies that preds covers exactly the voxels of voi.
func checkVolume(voi *volume.Volume, preds *ndarray.Dense) error {
	if preds.Rank() != 3 {
		return fmt.Errorf("predictions must be 3D, got shape %v", preds.Shape())
	}
	n := voi.NVox()
	for i := range n {
		if preds.Dim(i) != n[i] {
			return fmt.Errorf("predictions shape %v does not match volume voxels %v", preds.Shape(), n)
		}
	}
	return nil
}
