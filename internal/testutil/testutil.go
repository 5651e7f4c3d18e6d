// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/muograph/muograph/internal/ndarray"
	"github.com/muograph/muograph/internal/volume"
)

// pngMagic is the signature every PNG file starts with.
var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertPNG fails the test unless data holds a PNG image.
func AssertPNG(t testing.TB, data []byte) {
	t.Helper()
	if !IsPNG(data) {
		t.Errorf("data is not a PNG image (%d bytes)", len(data))
	}
}

// IsPNG reports whether data starts with the PNG signature.
func IsPNG(data []byte) bool { return bytes.HasPrefix(data, pngMagic) }

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// SmallVolume returns a 4x3x2 voxel volume of 10 mm voxels centred on
// (0, 0, -100).
func SmallVolume(t testing.TB) *volume.Volume {
	t.Helper()
	v, err := volume.New([3]float64{0, 0, -100}, [3]float64{40, 30, 20}, 10)
	if err != nil {
		t.Fatalf("volume.New: %v", err)
	}
	return v
}

// Ramp returns an array of shape n where voxel (i, j, k) holds
// 100*i + 10*j + k.
func Ramp(n [3]int) *ndarray.Dense {
	a := ndarray.New(n[0], n[1], n[2])
	a.Fill(func(idx []int) float64 {
		return float64(100*idx[0] + 10*idx[1] + idx[2])
	})
	return a
}

// Constant returns an array of shape n filled with v.
func Constant(n [3]int, v float64) *ndarray.Dense {
	a := ndarray.New(n[0], n[1], n[2])
	a.Fill(func([]int) float64 { return v })
	return a
}
