package tools

import (
	"log"
	"math"

	"CollabBoard/internal/state"
)

// Shape draws rectangles, ellipses, diamonds, lines and arrows by dragging
// from an anchor.
type Shape struct {
	ctx     *Context
	typ     state.ElementType
	id      string
	anchor  state.Point
	drawing bool
}

// NewShape returns a shape tool for typ.
func NewShape(ctx *Context, typ state.ElementType) *Shape {
	return &Shape{ctx: ctx, typ: typ}
}

func (t *Shape) OnPointerDown(ev PointerEvent) {
	if t.drawing {
		t.finish()
	}
	t.id = t.ctx.newID()
	t.anchor = ev.World
	el := state.Element{
		ID:       t.id,
		Type:     t.typ,
		X:        ev.World.X,
		Y:        ev.World.Y,
		Style:    t.ctx.style(),
		AuthorID: t.ctx.Author,
	}
	if err := t.ctx.Store.Set(el); err != nil {
		log.Printf("[TOOLS] Could not start %s: %v", t.typ, err)
		return
	}
	t.drawing = true
}

func (t *Shape) OnPointerMove(ev PointerEvent) {
	if !t.drawing {
		return
	}
	el, ok := t.ctx.Store.Get(t.id)
	if !ok {
		t.reset()
		return
	}
	w := ev.World.X - t.anchor.X
	h := ev.World.Y - t.anchor.Y
	if t.typ.IsSegment() {
		el.X, el.Y = t.anchor.X, t.anchor.Y
		el.Width, el.Height = w, h
	} else {
		el.X = math.Min(ev.World.X, t.anchor.X)
		el.Y = math.Min(ev.World.Y, t.anchor.Y)
		el.Width, el.Height = math.Abs(w), math.Abs(h)
	}
	el.Version++
	if err := t.ctx.Store.Set(el); err != nil {
		log.Printf("[TOOLS] Could not resize %s: %v", t.id, err)
	}
}

func (t *Shape) OnPointerUp(PointerEvent) {
	if t.drawing {
		t.finish()
	}
}

func (t *Shape) OnKeyDown(ev KeyEvent) {
	if ev.Key == KeyEscape {
		t.discard()
	}
}

func (t *Shape) OnDeactivate() { t.discard() }

// finish commits the element, dropping it if it never got any size.
func (t *Shape) finish() {
	if el, ok := t.ctx.Store.Get(t.id); ok && el.Width == 0 && el.Height == 0 {
		t.ctx.Store.Remove(t.id)
	}
	t.reset()
}

func (t *Shape) discard() {
	if t.drawing {
		t.ctx.Store.Remove(t.id)
	}
	t.reset()
}

func (t *Shape) reset() {
	t.drawing = false
	t.id = ""
}

// Freehand draws pencil strokes.
type Freehand struct {
	ctx     *Context
	id      string
	drawing bool
}

// NewFreehand returns a pencil tool.
func NewFreehand(ctx *Context) *Freehand {
	return &Freehand{ctx: ctx}
}

func (t *Freehand) OnPointerDown(ev PointerEvent) {
	if t.drawing {
		t.finish()
	}
	t.id = t.ctx.newID()
	el := state.Element{
		ID:       t.id,
		Type:     state.Pencil,
		Style:    t.ctx.style(),
		AuthorID: t.ctx.Author,
		Points:   []state.Point{ev.World},
	}
	el.FitPoints()
	if err := t.ctx.Store.Set(el); err != nil {
		log.Printf("[TOOLS] Could not start stroke: %v", err)
		return
	}
	t.drawing = true
}

func (t *Freehand) OnPointerMove(ev PointerEvent) {
	if !t.drawing {
		return
	}
	el, ok := t.ctx.Store.Get(t.id)
	if !ok {
		t.reset()
		return
	}
	if n := len(el.Points); n > 0 && el.Points[n-1] == ev.World {
		return
	}
	el.Points = append(el.Points, ev.World)
	el.FitPoints()
	el.Version++
	if err := t.ctx.Store.Set(el); err != nil {
		log.Printf("[TOOLS] Could not extend stroke %s: %v", t.id, err)
	}
}

func (t *Freehand) OnPointerUp(PointerEvent) {
	if t.drawing {
		t.finish()
	}
}

func (t *Freehand) OnKeyDown(ev KeyEvent) {
	if ev.Key == KeyEscape {
		t.discard()
	}
}

func (t *Freehand) OnDeactivate() { t.discard() }

func (t *Freehand) finish() {
	el, ok := t.ctx.Store.Get(t.id)
	t.reset()
	if !ok {
		return
	}
	// A click without movement still leaves a dot.
	if t.ctx.OnCommit != nil {
		t.ctx.OnCommit(el)
	}
}

func (t *Freehand) discard() {
	if t.drawing {
		t.ctx.Store.Remove(t.id)
	}
	t.reset()
}

func (t *Freehand) reset() {
	t.drawing = false
	t.id = ""
}
