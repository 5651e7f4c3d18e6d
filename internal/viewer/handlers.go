package viewer

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/muograph/muograph/internal/httputil"
	"github.com/muograph/muograph/internal/monitoring"
	"github.com/muograph/muograph/internal/ndarray"
	"github.com/muograph/muograph/internal/plotting"
	"github.com/muograph/muograph/internal/volume"
)

// Stats summarises the voxel predictions.
type Stats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// Summary is the /api/volume payload.
type Summary struct {
	Name             string     `json:"name"`
	Shape            [3]int     `json:"shape"`
	VoxelWidth       float64    `json:"voxel_width"`
	Position         [3]float64 `json:"position"`
	Dimension        [3]float64 `json:"dimension"`
	XYZMin           [3]float64 `json:"xyz_min"`
	XYZMax           [3]float64 `json:"xyz_max"`
	Predictions      Stats      `json:"predictions"`
	HasUncertainties bool       `json:"has_uncertainties"`
}

// Summary describes the served reconstruction.
func (s *Server) Summary() Summary {
	voi, p := s.cfg.VOI, s.cfg.Preds
	stats := Stats{Min: p.Min(), Max: p.Max(), Mean: p.Mean()}
	if p.Len() > 1 {
		stats.Std = p.Std()
	}
	return Summary{
		Name:             s.cfg.Name,
		Shape:            voi.NVox(),
		VoxelWidth:       voi.VoxelWidth,
		Position:         voi.Position,
		Dimension:        voi.Dimension,
		XYZMin:           voi.XYZMin(),
		XYZMax:           voi.XYZMax(),
		Predictions:      stats,
		HasUncertainties: s.cfg.Uncs != nil,
	}
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.MethodNotAllowed(w)
		return false
	}
	return true
}

// request parameters shared by the slice routes: dim defaults to z and the
// selection to every slice; end defaults to start.
func (s *Server) sliceParams(r *http.Request) (int, plotting.Selection, error) {
	dim, err := httputil.IntParam(r, "dim", volume.Z)
	if err != nil {
		return 0, plotting.Selection{}, err
	}
	if _, err := plotting.PlaneFor(dim); err != nil {
		return 0, plotting.Selection{}, err
	}
	sel := plotting.FullRange(s.cfg.VOI, dim)
	start, hasStart, err := httputil.OptionalIntParam(r, "start")
	if err != nil {
		return 0, plotting.Selection{}, err
	}
	end, hasEnd, err := httputil.OptionalIntParam(r, "end")
	if err != nil {
		return 0, plotting.Selection{}, err
	}
	switch {
	case hasStart && hasEnd:
		sel = plotting.Span(start, end)
	case hasStart:
		sel = plotting.At(start)
	case hasEnd:
		sel = plotting.Span(0, end)
	}
	return dim, sel, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httputil.NotFound(w, "no such page: "+r.URL.Path)
		return
	}
	if !allowGet(w, r) {
		return
	}
	type planeLink struct {
		Dim        int
		Name, Axis string
	}
	var planes []planeLink
	for _, dim := range []int{volume.Z, volume.Y, volume.X} {
		pl, _ := plotting.PlaneFor(dim)
		planes = append(planes, planeLink{Dim: dim, Name: pl.Name, Axis: volume.AxisNames[dim]})
	}
	data := struct {
		Summary
		Stats
		Planes []planeLink
	}{Summary: s.Summary(), Planes: planes}
	data.Stats = data.Summary.Predictions

	httputil.WriteHTML(w, func(out io.Writer) error {
		return indexTmpl.Execute(out, data)
	})
}

func (s *Server) handleSlice(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	dim, sel, err := s.sliceParams(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.WriteHTML(w, func(out io.Writer) error {
		return s.cfg.Plotter.SliceHeatmapHTML(out, s.cfg.VOI, s.cfg.Preds, dim, sel, s.cfg.HTML)
	})
}

func (s *Server) handleSlicePNG(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	dim, sel, err := s.sliceParams(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	fig, err := s.cfg.Plotter.PredSlice(s.cfg.VOI, s.cfg.Preds, s.cfg.Uncs, plotting.SliceOptions{Dim: dim, Selection: &sel})
	if err != nil {
		writePlotError(w, err)
		return
	}
	var buf bytes.Buffer
	if _, err := fig.WriteTo(&buf); err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if _, err := buf.WriteTo(w); err != nil {
		monitoring.Logf("failed to write png response: %v", err)
	}
}

func (s *Server) handleHist(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	bins, err := httputil.IntParam(r, "bins", 0)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if bins < 0 || bins > 10000 {
		httputil.BadRequest(w, "bins must be between 0 (theme default) and 10000")
		return
	}
	httputil.WriteHTML(w, func(out io.Writer) error {
		return s.cfg.Plotter.HistogramHTML(out, s.cfg.Preds, bins, s.cfg.HTML)
	})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	dim, err := httputil.IntParam(r, "dim", volume.Z)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	data, labels := s.profileData()
	series, _, err := plotting.Profiles(data, labels, s.cfg.VOI, dim)
	if err != nil {
		writePlotError(w, err)
		return
	}
	httputil.WriteHTML(w, func(out io.Writer) error {
		return s.cfg.Plotter.ProfileHTML(out, series, dim, plotting.DefaultPredLabel, s.cfg.HTML)
	})
}

func (s *Server) profileData() ([]*ndarray.Dense, []string) {
	data := []*ndarray.Dense{s.cfg.Preds}
	labels := []string{"predictions"}
	if s.cfg.Uncs != nil {
		data = append(data, s.cfg.Uncs)
		labels = append(labels, "uncertainties")
	}
	return data, labels
}

func (s *Server) handleVolume(w http.ResponseWriter, r *http.Request) {
	if !allowGet(w, r) {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.Summary())
}

func writePlotError(w http.ResponseWriter, err error) {
	if errors.Is(err, plotting.ErrInvalidDim) || errors.Is(err, plotting.ErrSliceRange) {
		httputil.BadRequest(w, err.Error())
		return
	}
	httputil.InternalServerError(w, err.Error())
}
