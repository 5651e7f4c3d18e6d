package main

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/muograph/muograph/internal/ndarray"
	"github.com/muograph/muograph/internal/persist"
	"github.com/muograph/muograph/internal/volume"
)

// Dataset names of a reconstruction file.
const (
	predsAttr    = "xyz_voxel_preds"
	uncsAttr     = "xyz_voxel_pred_uncs"
	voiPosAttr   = "voi_position"
	voiDimAttr   = "voi_dimension"
	voiVoxelAttr = "voi_voxel_width"
)

// Reconstruction is the voxel-wise output of a scattering density
// reconstruction together with the volume it was computed on.
type Reconstruction struct {
	Preds      *ndarray.Dense `attr:"xyz_voxel_preds"`
	Uncs       *ndarray.Dense `attr:"xyz_voxel_pred_uncs"`
	Position   []float64      `attr:"voi_position"`
	Dimension  []float64      `attr:"voi_dimension"`
	VoxelWidth float64        `attr:"voi_voxel_width"`

	VOI *volume.Volume
}

// vec3 is a flag value written as "x,y,z".
type vec3 struct {
	v   [3]float64
	set bool
}

func (f *vec3) String() string {
	if !f.set {
		return ""
	}
	return fmt.Sprintf("%g,%g,%g", f.v[0], f.v[1], f.v[2])
}

func (f *vec3) Set(s string) error {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return fmt.Errorf("want x,y,z, got %q", s)
	}
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return fmt.Errorf("invalid coordinate %q: %w", p, err)
		}
		f.v[i] = v
	}
	f.set = true
	return nil
}

// voiOverrides replace the volume stored in a reconstruction file.
type voiOverrides struct {
	position   vec3
	dimension  vec3
	voxelWidth float64
}

func toVec3(name string, s []float64) ([3]float64, error) {
	if len(s) != 3 {
		return [3]float64{}, fmt.Errorf("%s must hold 3 values, got %d", name, len(s))
	}
	return [3]float64{s[0], s[1], s[2]}, nil
}

// loadRecon reads a reconstruction file. Uncertainties and the volume are
// optional; without any volume information the predictions get one unit
// voxel per element.
func loadRecon(store *persist.Store, path string, ov voiOverrides) (*Reconstruction, error) {
	infos, err := store.ListAttrs(path)
	if err != nil {
		return nil, err
	}
	present := map[string]bool{}
	for _, in := range infos {
		present[in.Name] = true
	}
	if !present[predsAttr] {
		return nil, fmt.Errorf("%s has no %s dataset", path, predsAttr)
	}
	attrs := []string{predsAttr}
	for _, a := range []string{uncsAttr, voiPosAttr, voiDimAttr, voiVoxelAttr} {
		if present[a] {
			attrs = append(attrs, a)
		}
	}

	r := &Reconstruction{}
	if err := store.LoadAttrs(r, attrs, path, ""); err != nil {
		return nil, err
	}
	if r.Preds.Rank() != 3 {
		return nil, fmt.Errorf("%s must be 3D, got shape %v", predsAttr, r.Preds.Shape())
	}
	if r.Uncs != nil && !ndarray.SameShape(r.Preds, r.Uncs) {
		return nil, fmt.Errorf("%s shape %v does not match predictions %v", uncsAttr, r.Uncs.Shape(), r.Preds.Shape())
	}
	if err := r.resolveVOI(ov); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reconstruction) resolveVOI(ov voiOverrides) error {
	n := r.Preds.Shape()
	haveFile := r.Position != nil && r.Dimension != nil && r.VoxelWidth > 0
	if !haveFile && !ov.position.set && !ov.dimension.set && ov.voxelWidth == 0 {
		r.VOI = volume.Unit(n[0], n[1], n[2])
		return nil
	}

	var pos, dim [3]float64
	width := r.VoxelWidth
	var err error
	if r.Position != nil {
		if pos, err = toVec3(voiPosAttr, r.Position); err != nil {
			return err
		}
	}
	if r.Dimension != nil {
		if dim, err = toVec3(voiDimAttr, r.Dimension); err != nil {
			return err
		}
	}
	if ov.position.set {
		pos = ov.position.v
	}
	if ov.dimension.set {
		dim = ov.dimension.v
	}
	if ov.voxelWidth > 0 {
		width = ov.voxelWidth
	}
	if width > 0 && dim == ([3]float64{}) {
		dim = [3]float64{float64(n[0]) * width, float64(n[1]) * width, float64(n[2]) * width}
	}

	voi, err := volume.New(pos, dim, width)
	if err != nil {
		return fmt.Errorf("invalid volume of interest: %w", err)
	}
	if voi.NVox() != [3]int(n) {
		return fmt.Errorf("volume %v voxels does not match predictions shape %v", voi.NVox(), n)
	}
	r.VOI = voi
	r.Position = voi.Position[:]
	r.Dimension = voi.Dimension[:]
	r.VoxelWidth = voi.VoxelWidth
	return nil
}

// demoRecon builds a synthetic reconstruction: a low density background
// with a dense block and a lighter cavity, plus Gaussian noise.
func demoRecon(voi *volume.Volume, seed uint64) *Reconstruction {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	n := voi.NVox()
	cx, cy, cz := voi.Centers(volume.X), voi.Centers(volume.Y), voi.Centers(volume.Z)
	lo, hi := voi.XYZMin(), voi.XYZMax()
	span := func(axis int, f float64) float64 { return lo[axis] + f*(hi[axis]-lo[axis]) }

	preds := ndarray.New(n[0], n[1], n[2])
	uncs := ndarray.New(n[0], n[1], n[2])
	preds.Fill(func(idx []int) float64 {
		x, y, z := cx[idx[0]], cy[idx[1]], cz[idx[2]]
		v := 0.1
		switch {
		case x > span(0, 0.2) && x < span(0, 0.45) && y > span(1, 0.3) && y < span(1, 0.7) && z > span(2, 0.3) && z < span(2, 0.7):
			v = 1.0
		case math.Hypot(x-span(0, 0.7), y-span(1, 0.5)) < 0.12*(hi[0]-lo[0]) && z > span(2, 0.2):
			v = 0.03
		}
		v += 0.02 * rng.NormFloat64()
		uncs.Set(0.01+0.1*math.Abs(v), idx...)
		return v
	})
	return &Reconstruction{
		Preds:      preds,
		Uncs:       uncs,
		Position:   voi.Position[:],
		Dimension:  voi.Dimension[:],
		VoxelWidth: voi.VoxelWidth,
		VOI:        voi,
	}
}

func (r *Reconstruction) attrs() []string {
	attrs := []string{predsAttr}
	if r.Uncs != nil {
		attrs = append(attrs, uncsAttr)
	}
	return append(attrs, voiPosAttr, voiDimAttr, voiVoxelAttr)
}
