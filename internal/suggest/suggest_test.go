package suggest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CollabBoard/internal/state"
)

func stroke(pts ...state.Point) state.Element {
	e := state.Element{ID: "s", Type: state.Pencil, Style: state.DefaultStyle(), Version: 4, Points: pts}
	e.FitPoints()
	return e
}

func square(side float64) []state.Point {
	var pts []state.Point
	corners := []state.Point{{X: 0, Y: 0}, {X: side, Y: 0}, {X: side, Y: side}, {X: 0, Y: side}}
	for i := range corners {
		a, b := corners[i], corners[(i+1)%4]
		for k := 0; k < 5; k++ {
			t := float64(k) / 5
			pts = append(pts, state.Point{X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t})
		}
	}
	return append(pts, state.Point{X: 2, Y: 1})
}

func circle(r float64, n int) []state.Point {
	pts := make([]state.Point, 0, n+1)
	for i := 0; i <= n; i++ {
		a := 2 * math.Pi * float64(i) / float64(n)
		pts = append(pts, state.Point{X: r + r*math.Cos(a), Y: r + r*math.Sin(a)})
	}
	return pts
}

func TestClosedLoopIsCandidate(t *testing.T) {
	var pts []state.Point
	for i := 0; i < 10; i++ {
		pts = append(pts, state.Point{X: float64(i), Y: float64(i)})
	}
	pts = append(pts, state.Point{X: 0, Y: 0})
	assert.True(t, IsCandidate(stroke(pts...)))
}

func TestNotCandidate(t *testing.T) {
	short := stroke(state.Point{}, state.Point{X: 1}, state.Point{})
	assert.False(t, IsCandidate(short), "too few points")

	var open []state.Point
	for i := 0; i < 20; i++ {
		open = append(open, state.Point{X: float64(i) * 10})
	}
	assert.False(t, IsCandidate(stroke(open...)), "ends too far apart")

	rect := state.Element{ID: "r", Type: state.Rectangle, Points: circle(10, 20)}
	assert.False(t, IsCandidate(rect), "only pencil strokes")
}

func TestSuggestTarget(t *testing.T) {
	typ, ok := Suggest(stroke(square(100)...))
	require.True(t, ok)
	assert.Equal(t, state.Rectangle, typ)

	typ, ok = Suggest(stroke(circle(50, 32)...))
	require.True(t, ok)
	assert.Equal(t, state.Ellipse, typ)
}

func TestCleanupFitsBoundingBox(t *testing.T) {
	el := stroke(square(100)...)
	el.StrokeColor = "#1971c2"
	out := Cleanup(el, state.Rectangle)

	assert.Equal(t, "s", out.ID)
	assert.Equal(t, state.Rectangle, out.Type)
	assert.Nil(t, out.Points)
	assert.Equal(t, state.Rect{X: 0, Y: 0, W: 100, H: 100}, state.Rect{X: out.X, Y: out.Y, W: out.Width, H: out.Height})
	assert.Equal(t, "#1971c2", out.StrokeColor)
	assert.Equal(t, int64(5), out.Version)
	assert.Len(t, el.Points, 21, "input is not modified")
}

func TestCleanupRejectsBadInput(t *testing.T) {
	el := stroke(square(10)...)
	assert.Equal(t, el, Cleanup(el, state.Line))

	rect := state.Element{ID: "r", Type: state.Rectangle, Width: 5}
	assert.Equal(t, rect, Cleanup(rect, state.Ellipse))
}
