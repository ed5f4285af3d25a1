// Package testutil provides shared test utilities and fixtures.
//
// Besides the HTTP assertion helpers it builds synthetic detection
// sequences (straight swimmers, stationary cells, zig-zag paths) used by
// the tracking, kinematics and pipeline tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/you112ef/Sky-CASA/internal/casa/l1detections"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// XY is a pixel-space centroid used to describe fixtures.
type XY struct{ X, Y float64 }

// DefaultArea is the area given to fixture detections.
const DefaultArea = 12.0

// Path returns one detection per consecutive frame starting at frame
// start, one frame per point.
func Path(start int, points ...XY) []l1detections.Frame {
	frames := make([]l1detections.Frame, len(points))
	for i, p := range points {
		frames[i] = l1detections.Frame{
			Index:      start + i,
			Detections: []l1detections.Detection{{X: p.X, Y: p.Y, Area: DefaultArea}},
		}
	}
	return frames
}

// StraightLine returns n points starting at (x0, y0) moving by (dx, dy)
// each frame.
func StraightLine(n int, x0, y0, dx, dy float64) []XY {
	pts := make([]XY, n)
	for i := range pts {
		pts[i] = XY{X: x0 + float64(i)*dx, Y: y0 + float64(i)*dy}
	}
	return pts
}

// Stationary returns n copies of (x, y).
func Stationary(n int, x, y float64) []XY {
	return StraightLine(n, x, y, 0, 0)
}

// ZigZag returns n points advancing dx per frame along x while
// alternating ±amp around y0.
func ZigZag(n int, x0, y0, dx, amp float64) []XY {
	pts := make([]XY, n)
	for i := range pts {
		y := y0 + amp
		if i%2 == 1 {
			y = y0 - amp
		}
		pts[i] = XY{X: x0 + float64(i)*dx, Y: y}
	}
	return pts
}

// Merge combines per-object frame sequences into one sequence ordered by
// frame index. Detections sharing a frame keep the order of paths.
func Merge(paths ...[]l1detections.Frame) []l1detections.Frame {
	byIndex := map[int][]l1detections.Detection{}
	var order []int
	for _, frames := range paths {
		for _, f := range frames {
			if _, ok := byIndex[f.Index]; !ok {
				order = append(order, f.Index)
			}
			byIndex[f.Index] = append(byIndex[f.Index], f.Detections...)
		}
	}
	slices.Sort(order)
	out := make([]l1detections.Frame, 0, len(order))
	for _, idx := range order {
		out = append(out, l1detections.Frame{Index: idx, Detections: byIndex[idx]})
	}
	return out
}
