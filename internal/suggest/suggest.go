// Package suggest spots closed freehand strokes that look like a rectangle or
// an ellipse and replaces them with the clean shape on request.
package suggest

import (
	"math"

	"CollabBoard/internal/state"
)

const (
	MinPoints = 10
	// ClosureDistance is the largest start-to-end gap of a closed stroke.
	ClosureDistance = 30.0
	// cornerReach is how close, relative to the shorter bbox side, the stroke
	// must pass by every bbox corner to read as a rectangle.
	cornerReach = 0.15
)

// IsCandidate reports whether el is a closed pencil stroke.
func IsCandidate(el state.Element) bool {
	if el.Type != state.Pencil || len(el.Points) < MinPoints {
		return false
	}
	return state.Dist(el.Points[0], el.Points[len(el.Points)-1]) < ClosureDistance
}

// Suggest returns the shape el should become. Strokes that pass near all four
// corners of their bounding box become rectangles, the rest ellipses.
func Suggest(el state.Element) (state.ElementType, bool) {
	if !IsCandidate(el) {
		return "", false
	}
	r, _ := state.BoundsOf(el.Points)
	short := math.Min(r.W, r.H)
	if short <= 0 {
		return "", false
	}
	reach := cornerReach * short
	corners := []state.Point{
		{X: r.X, Y: r.Y}, {X: r.X + r.W, Y: r.Y},
		{X: r.X + r.W, Y: r.Y + r.H}, {X: r.X, Y: r.Y + r.H},
	}
	for _, c := range corners {
		if state.DistToPolyline(c, el.Points) > reach {
			return state.Ellipse, true
		}
	}
	return state.Rectangle, true
}

// Cleanup turns a pencil stroke into a target shape fitted to the stroke's
// bounding box. The id and style are kept and the version goes up. Anything
// that is not a pencil stroke, or a target other than rectangle or ellipse,
// comes back unchanged.
func Cleanup(el state.Element, target state.ElementType) state.Element {
	if el.Type != state.Pencil || len(el.Points) == 0 {
		return el
	}
	if target != state.Rectangle && target != state.Ellipse {
		return el
	}
	r, _ := state.BoundsOf(el.Points)
	out := el.Clone()
	out.Type = target
	out.X, out.Y, out.Width, out.Height = r.X, r.Y, r.W, r.H
	out.Points = nil
	out.Version++
	return out
}
