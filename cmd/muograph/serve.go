package main

import (
	"context"
	"path/filepath"

	"github.com/muograph/muograph/internal/plotting"
	"github.com/muograph/muograph/internal/viewer"
)

func newViewer(s *session, addr, assets string) (*viewer.Server, error) {
	return viewer.NewServer(viewer.Config{
		Address: addr,
		Name:    filepath.Base(s.input),
		VOI:     s.recon.VOI,
		Preds:   s.recon.Preds,
		Uncs:    s.recon.Uncs,
		Plotter: s.plotter,
		HTML:    plotting.HTMLOptions{AssetsHost: assets},
	})
}

// serve runs the viewer until ctx is cancelled.
func serve(ctx context.Context, s *session, addr, assets string) error {
	srv, err := newViewer(s, addr, assets)
	if err != nil {
		return err
	}
	s.rec.artifact("viewer", "http://"+addr, filepath.Base(s.input))
	return srv.Start(ctx)
}
