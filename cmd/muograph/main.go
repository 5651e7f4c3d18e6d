package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// errUsage marks a command line error that has already been reported.
var errUsage = errors.New("usage error")

type command struct {
	name    string
	summary string
	run     func(args []string, stdout, stderr io.Writer) error
}

func commands() []command {
	return []command{
		{"slice", "Plot the mean of a range of voxel slices with 1D projections", runSlice},
		{"slices", "Plot every slice (or group of slices) along an axis on a grid", runSlices},
		{"hist", "Plot the distribution of voxel-wise predictions", runHist},
		{"grid", "Plot the voxel grid of the volume of interest", runGrid},
		{"profile", "Plot mean profiles of predictions along an axis", runProfile},
		{"serve", "Serve interactive charts of a reconstruction over HTTP", runServe},
		{"inspect", "List the datasets of an attribute file", runInspect},
		{"demo", "Write a synthetic reconstruction file", runDemo},
		{"catalog", "List recorded runs and their artifacts", runCatalog},
	}
}

// run executes the CLI and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	log.SetOutput(stderr)
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	name, rest := args[0], args[1:]
	switch name {
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "muograph version %s\n", versionString())
		return 0
	case "help", "-h", "-help", "--help":
		printUsage(stdout)
		return 0
	}
	for _, c := range commands() {
		if c.name != name {
			continue
		}
		if err := c.run(rest, stdout, stderr); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return 0
			}
			if !errors.Is(err, errUsage) {
				fmt.Fprintf(stderr, "Error: %v\n", err)
			}
			return 1
		}
		return 0
	}
	fmt.Fprintf(stderr, "Unknown command: %s\n\n", name)
	printUsage(stderr)
	return 1
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `muograph - voxel plots and attribute files for muon scattering tomography

Usage: muograph <command> [options] [file.hdf5]

Commands:
`)
	for _, c := range commands() {
		fmt.Fprintf(w, "  %-9s %s\n", c.name, c.summary)
	}
	fmt.Fprint(w, `  version   Show muograph version
  help      Show this help message

Reconstruction files hold the datasets xyz_voxel_preds, optionally
xyz_voxel_pred_uncs, and the volume of interest as voi_position,
voi_dimension and voi_voxel_width. The -voi-pos, -voi-dim and -voxel-width
flags override the stored volume.

Common Flags:
  -config <file>    Plot theme (.json, .yaml or .toml)
  -out <dir>        Output directory (default: .)
  -name <prefix>    Figure file prefix (default: input file name)
  -catalog <db>     Record the run and its outputs in a SQLite catalog
  -v                Verbose logging

Examples:
  muograph demo -out data
  muograph slice -dim 2 -start 3 -end 6 -out figs data/demo.hdf5
  muograph slices -dim 2 -nslice 3 data/demo.hdf5
  muograph serve -addr :8080 data/demo.hdf5
  muograph catalog -db runs.db
`)
}
