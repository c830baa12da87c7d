// Package export writes the board out as PNG or PDF.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"time"

	"CollabBoard/internal/camera"
	"CollabBoard/internal/render"
	"CollabBoard/internal/state"
)

// Margin is the world-space padding kept around the exported elements.
const Margin = 20.0

var ErrEmptyBoard = errors.New("board has no elements to export")

// Extent returns the union of the element bounds grown by Margin.
func Extent(elements []state.Element) (state.Rect, bool) {
	if len(elements) == 0 {
		return state.Rect{}, false
	}
	r := elements[0].Bounds()
	for _, el := range elements[1:] {
		r = r.Union(el.Bounds())
	}
	return r.Expand(Margin), true
}

// Board renders every element of scene at zoom 1, cropped to its extent and
// without grid or presence overlays.
func Board(scene render.Scene, opts ...render.Option) (*image.RGBA, error) {
	ext, ok := Extent(scene.GetAll())
	if !ok {
		return nil, ErrEmptyBoard
	}
	cam := &camera.Camera{X: -ext.X, Y: -ext.Y, Zoom: 1}
	opts = append(opts, render.WithGridMode(render.GridNone))
	r := render.New(scene, nil, cam, opts...)
	return r.Frame(int(ext.W+0.5), int(ext.H+0.5), time.Now()), nil
}

// PNG encodes img to w.
func PNG(w io.Writer, img image.Image) error {
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}
