// Package camera maps between screen pixels and world coordinates.
package camera

import "math"

const (
	MinZoom = 0.1
	MaxZoom = 10.0
)

// Camera is the viewport over the infinite canvas.
// A world point w is drawn at screen position (w + offset) * zoom.
type Camera struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Zoom float64 `json:"zoom"`
}

// New returns a camera at the origin with zoom 1.
func New() *Camera {
	return &Camera{Zoom: 1}
}

// Reset puts the camera back at the origin with zoom 1.
func (c *Camera) Reset() {
	*c = Camera{Zoom: 1}
}

// Pan moves the view by a screen-space delta. The delta is divided by the zoom
// so the canvas follows the pointer at any zoom level.
func (c *Camera) Pan(dx, dy float64) {
	c.X += dx / c.Zoom
	c.Y += dy / c.Zoom
}

// ZoomAt multiplies the zoom by (1+delta), clamped to [MinZoom, MaxZoom], and
// keeps the world point under the screen anchor (sx, sy) where it was.
func (c *Camera) ZoomAt(delta, sx, sy float64) {
	oldZoom := c.Zoom
	newZoom := clamp(oldZoom*(1+delta), MinZoom, MaxZoom)

	wx, wy := c.ScreenToWorld(sx, sy)
	c.Zoom = newZoom
	c.X = sx/newZoom - wx
	c.Y = sy/newZoom - wy
}

// ScreenToWorld converts a screen position to world coordinates.
func (c Camera) ScreenToWorld(sx, sy float64) (float64, float64) {
	return sx/c.Zoom - c.X, sy/c.Zoom - c.Y
}

// WorldToScreen converts a world position to screen coordinates.
func (c Camera) WorldToScreen(wx, wy float64) (float64, float64) {
	return (wx + c.X) * c.Zoom, (wy + c.Y) * c.Zoom
}

// VisibleBounds returns the world-space rectangle covered by a w×h viewport
// as (minX, minY, maxX, maxY).
func (c Camera) VisibleBounds(w, h float64) (float64, float64, float64, float64) {
	minX, minY := c.ScreenToWorld(0, 0)
	maxX, maxY := c.ScreenToWorld(w, h)
	return minX, minY, maxX, maxY
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
