package main

import (
	"log"

	"github.com/muograph/muograph/internal/catalog"
)

// recorder logs a command's outputs to the catalog. The zero value records
// nothing so commands run without -catalog unchanged.
type recorder struct {
	cat   *catalog.Catalog
	runID string
}

func openRecorder(path, command string) (*recorder, error) {
	if path == "" {
		return &recorder{}, nil
	}
	cat, err := catalog.Open(path)
	if err != nil {
		return nil, err
	}
	id, err := cat.BeginRun(command)
	if err != nil {
		cat.Close()
		return nil, err
	}
	return &recorder{cat: cat, runID: id}, nil
}

func (r *recorder) artifact(kind, path, detail string) {
	if r.cat == nil || path == "" {
		return
	}
	if _, err := r.cat.RecordArtifact(r.runID, kind, path, detail); err != nil {
		log.Printf("catalog: failed to record %s: %v", path, err)
	}
}

// finish closes the run with the command's outcome.
func (r *recorder) finish(runErr error) {
	if r.cat == nil {
		return
	}
	if err := r.cat.FinishRun(r.runID, runErr); err != nil {
		log.Printf("catalog: failed to finish run %s: %v", r.runID, err)
	}
	if err := r.cat.Close(); err != nil {
		log.Printf("catalog: close: %v", err)
	}
}
