// Package viewer serves interactive charts of one loaded reconstruction.
package viewer

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/muograph/muograph/internal/monitoring"
	"github.com/muograph/muograph/internal/ndarray"
	"github.com/muograph/muograph/internal/plotting"
	"github.com/muograph/muograph/internal/volume"
)

//go:embed index.html
var indexFS embed.FS

var indexTmpl = template.Must(template.ParseFS(indexFS, "index.html"))

// Config describes the reconstruction to serve.
type Config struct {
	Address string
	// Name labels the reconstruction, usually its file name.
	Name  string
	VOI   *volume.Volume
	Preds *ndarray.Dense
	// Uncs are optional per-voxel uncertainties.
	Uncs    *ndarray.Dense
	Plotter *plotting.Plotter
	HTML    plotting.HTMLOptions
}

// Server is the viewer HTTP server.
type Server struct {
	cfg    Config
	server *http.Server
}

// NewServer validates cfg and builds the server. A nil Plotter uses the
// default theme.
func NewServer(cfg Config) (*Server, error) {
	if cfg.VOI == nil || cfg.Preds == nil {
		return nil, errors.New("viewer needs a volume and predictions")
	}
	if cfg.Preds.Rank() != 3 || [3]int(cfg.Preds.Shape()) != cfg.VOI.NVox() {
		return nil, fmt.Errorf("predictions shape %v does not match volume %v", cfg.Preds.Shape(), cfg.VOI.NVox())
	}
	if cfg.Uncs != nil && !ndarray.SameShape(cfg.Preds, cfg.Uncs) {
		return nil, fmt.Errorf("uncertainties shape %v does not match predictions %v", cfg.Uncs.Shape(), cfg.Preds.Shape())
	}
	if cfg.Plotter == nil {
		cfg.Plotter = plotting.NewPlotter(nil, nil)
	}
	if cfg.Name == "" {
		cfg.Name = "reconstruction"
	}
	s := &Server{cfg: cfg}
	s.server = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the routes of the viewer.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/slice", s.handleSlice)
	mux.HandleFunc("/slice.png", s.handleSlicePNG)
	mux.HandleFunc("/hist", s.handleHist)
	mux.HandleFunc("/profile", s.handleProfile)
	mux.HandleFunc("/api/volume", s.handleVolume)
	return mux
}

// Start listens on the configured address and serves until ctx is
// cancelled. It returns once the server has stopped.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting viewer on http://%s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down viewer...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("viewer shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			monitoring.Logf("viewer force close error: %v", err)
		}
	}
	<-errc
	monitoring.Logf("viewer stopped")
	return nil
}
