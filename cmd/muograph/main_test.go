package main

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/muograph/muograph/internal/catalog"
	"github.com/muograph/muograph/internal/ndarray"
	"github.com/muograph/muograph/internal/persist"
	"github.com/muograph/muograph/internal/plotting"
	"github.com/muograph/muograph/internal/testutil"
	"github.com/muograph/muograph/internal/volume"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		code   int
		stdout string
		stderr string
	}{
		{name: "no args", args: nil, code: 1, stderr: "Usage: muograph"},
		{name: "help", args: []string{"help"}, code: 0, stdout: "Commands:"},
		{name: "version", args: []string{"version"}, code: 0, stdout: "muograph version"},
		{name: "unknown", args: []string{"frobnicate"}, code: 1, stderr: "Unknown command: frobnicate"},
		{name: "bad flag", args: []string{"slice", "-nope"}, code: 1, stderr: "flag provided but not defined"},
		{name: "missing input", args: []string{"hist"}, code: 1, stderr: "expected one reconstruction file"},
		{name: "subcommand help", args: []string{"grid", "-h"}, code: 0, stderr: "-dim"},
		{name: "catalog without db", args: []string{"catalog"}, code: 1, stderr: "-db is required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, tc.args...)
			assert.Equal(t, tc.code, code)
			if tc.stdout != "" {
				assert.Contains(t, stdout, tc.stdout)
			}
			if tc.stderr != "" {
				assert.Contains(t, stderr, tc.stderr)
			}
		})
	}
}

func TestUsageListsEveryCommand(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)
	for _, c := range commands() {
		assert.Contains(t, buf.String(), "  "+c.name+" ")
	}
}

func writeDemo(t *testing.T, dir string, extra ...string) string {
	t.Helper()
	args := append([]string{"demo", "-out", dir, "-voi-dim", "100,80,60", "-voxel-width", "20"}, extra...)
	code, stdout, stderr := runCLI(t, args...)
	require.Equal(t, 0, code, stderr)
	path := strings.TrimSpace(stdout)
	require.Equal(t, filepath.Join(dir, "demo.hdf5"), path)
	return path
}

func TestDemoThenPlot(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	input := writeDemo(t, dir, "-catalog", db)
	figs := filepath.Join(dir, "figs")

	tests := []struct {
		args  []string
		files []string
	}{
		{[]string{"slice", "-start", "1"}, []string{"demo_XY_view.png"}},
		{[]string{"slice", "-dim", "0", "-ref", "0.1", "-vmin", "0", "-vmax", "1", "-name", "ref run"}, []string{"ref_run_YZ_view.png"}},
		{[]string{"slices"}, []string{"demo_XY_view_slice.png"}},
		{[]string{"hist", "-bins", "10", "-log"}, []string{"demo_pred_1D.png"}},
		{[]string{"hist", "-uncs"}, []string{"demo_unc_1D.png"}},
		{[]string{"grid"}, []string{"demo_XY_grid.png", "demo_XZ_grid.png", "demo_YZ_grid.png"}},
		{[]string{"profile", "-dim", "2", "-uncs"}, []string{"demo_profile_z.png"}},
	}
	for _, tc := range tests {
		t.Run(strings.Join(tc.args, " "), func(t *testing.T) {
			args := append(append([]string{}, tc.args...), "-out", figs, "-catalog", db, input)
			code, stdout, stderr := runCLI(t, args...)
			require.Equal(t, 0, code, stderr)
			for _, f := range tc.files {
				path := filepath.Join(figs, f)
				assert.Contains(t, stdout, path)
				data, err := os.ReadFile(path)
				require.NoError(t, err)
				testutil.AssertPNG(t, data)
			}
		})
	}

	cat, err := catalog.Open(db)
	require.NoError(t, err)
	defer cat.Close()
	runs, err := cat.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, len(tests)+1)
	for _, r := range runs {
		assert.Equal(t, catalog.StatusOK, r.Status, r.Command)
	}
	demo := runs[len(runs)-1]
	assert.Equal(t, "demo", demo.Command)
	arts, err := cat.Artifacts(demo.ID)
	require.NoError(t, err)
	require.Len(t, arts, 1)
	assert.Equal(t, input, arts[0].Path)

	code, stdout, _ := runCLI(t, "catalog", "-db", db, "-limit", "3")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "RUN")
	assert.Equal(t, 4, strings.Count(stdout, "\n"))

	code, stdout, _ = runCLI(t, "catalog", "-db", db, "-run", demo.ID)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, input)
}

func TestFailedRunIsRecorded(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "runs.db")
	input := writeDemo(t, dir)

	code, _, stderr := runCLI(t, "slice", "-start", "9", "-out", dir, "-catalog", db, input)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "slice out of range")

	cat, err := catalog.Open(db)
	require.NoError(t, err)
	defer cat.Close()
	runs, err := cat.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, catalog.StatusFailed, runs[0].Status)
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	input := writeDemo(t, dir)

	code, stdout, stderr := runCLI(t, "inspect", input)
	require.Equal(t, 0, code, stderr)
	for _, name := range []string{predsAttr, uncsAttr, voiPosAttr, voiDimAttr, voiVoxelAttr} {
		assert.Contains(t, stdout, name)
	}
	assert.Contains(t, stdout, "[5 4 3]")
	assert.Regexp(t, predsAttr+`\s+array\s+\[5 4 3\]`, stdout)

	code, _, _ = runCLI(t, "inspect", filepath.Join(dir, "missing.hdf5"))
	assert.Equal(t, 1, code)
}

type predsOnly struct {
	Preds *ndarray.Dense `attr:"xyz_voxel_preds"`
}

func savePreds(t *testing.T, dir string, shape ...int) string {
	t.Helper()
	store, err := persist.NewStore(dir, nil)
	require.NoError(t, err)
	path, err := store.SaveAttrs(predsOnly{Preds: ndarray.New(shape...)}, []string{predsAttr}, dir, "bare")
	require.NoError(t, err)
	return path
}

func TestLoadRecon(t *testing.T) {
	dir := t.TempDir()
	bare := savePreds(t, dir, 4, 3, 2)
	store, err := persist.NewStore("", nil)
	require.NoError(t, err)

	r, err := loadRecon(store, bare, voiOverrides{})
	require.NoError(t, err)
	assert.Equal(t, volume.Unit(4, 3, 2), r.VOI)
	assert.Nil(t, r.Uncs)

	r, err = loadRecon(store, bare, voiOverrides{voxelWidth: 10})
	require.NoError(t, err)
	want := &volume.Volume{Dimension: [3]float64{40, 30, 20}, VoxelWidth: 10}
	if diff := cmp.Diff(want, r.VOI); diff != "" {
		t.Errorf("volume mismatch (-want +got):\n%s", diff)
	}

	ov := voiOverrides{voxelWidth: 10}
	require.NoError(t, ov.position.Set("0,0,-100"))
	require.NoError(t, ov.dimension.Set("40,30,20"))
	r, err = loadRecon(store, bare, ov)
	require.NoError(t, err)
	assert.Equal(t, [3]float64{-20, -15, -110}, r.VOI.XYZMin())

	bad := voiOverrides{voxelWidth: 5}
	require.NoError(t, bad.dimension.Set("40,30,20"))
	_, err = loadRecon(store, bare, bad)
	assert.Error(t, err)

	flat := savePreds(t, t.TempDir(), 24)
	_, err = loadRecon(store, flat, voiOverrides{})
	assert.Error(t, err)
}

func TestLoadReconRoundTrip(t *testing.T) {
	dir := t.TempDir()
	input := writeDemo(t, dir)
	store, err := persist.NewStore("", nil)
	require.NoError(t, err)

	r, err := loadRecon(store, input, voiOverrides{})
	require.NoError(t, err)
	want, err := volume.New([3]float64{0, 0, -1200}, [3]float64{100, 80, 60}, 20)
	require.NoError(t, err)
	assert.Equal(t, want, r.VOI)
	require.NotNil(t, r.Uncs)
	assert.True(t, ndarray.SameShape(r.Preds, r.Uncs))

	again := demoRecon(want, 1)
	if diff := cmp.Diff(again.Preds.Data(), r.Preds.Data()); diff != "" {
		t.Errorf("demo predictions mismatch (-want +got):\n%s", diff)
	}
}

func TestSelection(t *testing.T) {
	tests := []struct {
		start, end int
		want       *plotting.Selection
	}{
		{-1, -1, nil},
		{2, -1, &plotting.Selection{Start: 2, End: 2}},
		{-1, 3, &plotting.Selection{Start: 0, End: 3}},
		{1, 4, &plotting.Selection{Start: 1, End: 4}},
	}
	for _, tc := range tests {
		if diff := cmp.Diff(tc.want, selection(tc.start, tc.end)); diff != "" {
			t.Errorf("selection(%d, %d) mismatch (-want +got):\n%s", tc.start, tc.end, diff)
		}
	}
}

func TestVec3Flag(t *testing.T) {
	var v vec3
	assert.Equal(t, "", v.String())
	require.NoError(t, v.Set("1, 2.5,-3"))
	assert.Equal(t, [3]float64{1, 2.5, -3}, v.v)
	assert.Equal(t, "1,2.5,-3", v.String())

	assert.Error(t, v.Set("1,2"))
	assert.Error(t, v.Set("1,b,3"))
}

func TestRecorderWithoutCatalog(t *testing.T) {
	r, err := openRecorder("", "slice")
	require.NoError(t, err)
	r.artifact("figure", "x.png", "")
	r.finish(errors.New("ignored"))
}

func TestServeViewer(t *testing.T) {
	dir := t.TempDir()
	input := writeDemo(t, dir)

	fs := newFlagSet("serve", &bytes.Buffer{})
	var c common
	c.register(fs)
	require.NoError(t, fs.Parse([]string{"-out", dir, input}))
	s, err := c.open(fs, "serve")
	require.NoError(t, err)
	defer s.rec.finish(nil)

	srv, err := newViewer(s, "localhost:0", "")
	require.NoError(t, err)
	rec := testutil.NewTestRecorder()
	srv.Handler().ServeHTTP(rec, testutil.NewTestRequest("GET", "/api/volume"))
	testutil.AssertStatusCode(t, rec.Code, 200)
	assert.Contains(t, rec.Body.String(), `"name":"demo.hdf5"`)
}
