package tools

import "CollabBoard/internal/state"

const (
	// Screen-pixel tolerances, divided by zoom before hit-testing.
	eraserBoxTolerance     = 5.0
	eraserSegmentTolerance = 10.0
	selectSegmentTolerance = 6.0
)

// HitTest returns the topmost element under p. Boxes hit when p lies in their
// bounds grown by boxTol; lines, arrows and strokes hit when p is within
// segTol of their path.
func HitTest(elements []state.Element, p state.Point, boxTol, segTol float64) (state.Element, bool) {
	for i := len(elements) - 1; i >= 0; i-- {
		if hits(elements[i], p, boxTol, segTol) {
			return elements[i], true
		}
	}
	return state.Element{}, false
}

func hits(el state.Element, p state.Point, boxTol, segTol float64) bool {
	switch {
	case el.Type == state.Pencil:
		return state.DistToPolyline(p, el.Points) <= segTol
	case el.Type.IsSegment():
		return state.DistToSegment(p, el.Start(), el.End()) <= segTol
	default:
		return el.Bounds().Expand(boxTol).Contains(p)
	}
}

// Eraser removes the topmost element under the pointer, repeating while the
// button is held.
type Eraser struct {
	ctx     *Context
	erasing bool
}

// NewEraser returns an eraser tool.
func NewEraser(ctx *Context) *Eraser {
	return &Eraser{ctx: ctx}
}

func (t *Eraser) OnPointerDown(ev PointerEvent) {
	t.erasing = true
	t.eraseAt(ev.World)
}

func (t *Eraser) OnPointerMove(ev PointerEvent) {
	if t.erasing {
		t.eraseAt(ev.World)
	}
}

func (t *Eraser) OnPointerUp(PointerEvent) { t.erasing = false }

func (t *Eraser) OnKeyDown(ev KeyEvent) {
	if ev.Key == KeyEscape {
		t.erasing = false
	}
}

func (t *Eraser) OnDeactivate() { t.erasing = false }

func (t *Eraser) eraseAt(p state.Point) {
	z := t.ctx.zoom()
	hit, ok := HitTest(t.ctx.Store.GetAll(), p, eraserBoxTolerance/z, eraserSegmentTolerance/z)
	if ok {
		t.ctx.Store.Remove(hit.ID)
	}
}
