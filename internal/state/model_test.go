package state

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectHelpers(t *testing.T) {
	r := Rect{X: 10, Y: 10, W: -5, H: 20}.Normalize()
	assert.Equal(t, Rect{X: 5, Y: 10, W: 5, H: 20}, r)
	assert.True(t, r.Contains(Point{X: 5, Y: 30}))
	assert.False(t, r.Contains(Point{X: 4.9, Y: 15}))
	assert.True(t, r.Expand(1).Contains(Point{X: 4.5, Y: 15}))

	o := Rect{X: 9, Y: 29, W: 10, H: 10}
	assert.Equal(t, Rect{X: 5, Y: 10, W: 14, H: 29}, r.Union(o))
}

func TestBoundsOf(t *testing.T) {
	_, ok := BoundsOf(nil)
	assert.False(t, ok)

	r, ok := BoundsOf([]Point{{X: 3, Y: -1}, {X: -2, Y: 4}, {X: 0, Y: 0}})
	assert.True(t, ok)
	assert.Equal(t, Rect{X: -2, Y: -1, W: 5, H: 5}, r)
}

func TestDistToSegment(t *testing.T) {
	a, b := Point{X: 0, Y: 0}, Point{X: 10, Y: 0}
	assert.InDelta(t, 3, DistToSegment(Point{X: 5, Y: 3}, a, b), 1e-9)
	assert.InDelta(t, 5, DistToSegment(Point{X: 13, Y: 4}, a, b), 1e-9)
	assert.InDelta(t, 5, DistToSegment(Point{X: 3, Y: 4}, a, a), 1e-9)
	assert.True(t, math.IsInf(DistToPolyline(Point{}, nil), 1))
	assert.InDelta(t, 1, DistToPolyline(Point{X: 10, Y: 6}, []Point{{0, 0}, {10, 0}, {10, 5}}), 1e-9)
}

func TestElementBoundsAndTranslate(t *testing.T) {
	line := Element{ID: "l", Type: Line, X: 10, Y: 10, Width: -10, Height: 5}
	assert.Equal(t, Rect{X: 0, Y: 10, W: 10, H: 5}, line.Bounds())
	assert.Equal(t, Point{X: 0, Y: 15}, line.End())

	pen := Element{ID: "p", Type: Pencil, Points: []Point{{1, 1}, {4, 5}}}
	pen.FitPoints()
	assert.Equal(t, Rect{X: 1, Y: 1, W: 3, H: 4}, pen.Bounds())

	clone := pen.Clone()
	pen.Translate(10, -1)
	assert.Equal(t, []Point{{11, 0}, {14, 4}}, pen.Points)
	assert.Equal(t, 11.0, pen.X)
	assert.Equal(t, []Point{{1, 1}, {4, 5}}, clone.Points, "clone must not share points")
}

func TestValidate(t *testing.T) {
	e := Element{ID: "a", Type: Ellipse, Style: DefaultStyle()}
	assert.NoError(t, e.Validate())

	e.Width = math.NaN()
	assert.ErrorIs(t, e.Validate(), ErrNotFinite)

	p := Element{ID: "p", Type: Pencil, Points: []Point{{X: math.Inf(1)}}}
	assert.ErrorIs(t, p.Validate(), ErrNotFinite)
}

func TestDiffAndCopyFields(t *testing.T) {
	a := Element{ID: "a", Type: Rectangle, X: 1, Style: DefaultStyle(), Version: 1}
	b := a
	b.X = 2
	b.StrokeColor = "#ff0000"
	b.Version = 9

	f := Diff(a, b)
	assert.Equal(t, FieldGeometry|FieldStrokeColor, f)

	c := a
	c.Opacity = 0.5
	c.CopyFields(b, f)
	assert.Equal(t, 2.0, c.X)
	assert.Equal(t, "#ff0000", c.StrokeColor)
	assert.Equal(t, 0.5, c.Opacity, "fields outside the mask are untouched")
	assert.Equal(t, int64(1), c.Version)
}

func TestClockTickAndUpdate(t *testing.T) {
	c := NewClock("s")
	assert.Equal(t, Stamp{Lamport: 1, Site: "s"}, c.Tick())
	c.Update(10)
	c.Update(3)
	assert.Equal(t, uint64(11), c.Tick().Lamport)
	assert.True(t, Stamp{Lamport: 2, Site: "a"}.Less(Stamp{Lamport: 2, Site: "b"}))
	assert.NotEqual(t, NewSiteID(), NewSiteID())
}
