package tools

import (
	"log"

	"CollabBoard/internal/state"
)

// Selection picks, drags and deletes elements.
type Selection struct {
	ctx      *Context
	selected string
	dragging bool
	last     state.Point
}

// NewSelection returns a selection tool.
func NewSelection(ctx *Context) *Selection {
	return &Selection{ctx: ctx}
}

// Selected returns the selected element ids.
func (t *Selection) Selected() []string {
	if t.selected == "" {
		return nil
	}
	return []string{t.selected}
}

func (t *Selection) OnPointerDown(ev PointerEvent) {
	t.last = ev.World
	hit, ok := HitTest(t.ctx.Store.GetAll(), ev.World, 0, selectSegmentTolerance/t.ctx.zoom())
	if !ok {
		t.clear()
		return
	}
	t.selected = hit.ID
	t.dragging = true
	t.ctx.setSelection(t.Selected())
	if t.ctx.OnStyleSnapshot != nil {
		t.ctx.OnStyleSnapshot(hit.Style)
	}
}

func (t *Selection) OnPointerMove(ev PointerEvent) {
	if !t.dragging || t.selected == "" {
		return
	}
	el, ok := t.ctx.Store.Get(t.selected)
	if !ok {
		t.clear()
		return
	}
	dx, dy := ev.World.X-t.last.X, ev.World.Y-t.last.Y
	if dx == 0 && dy == 0 {
		return
	}
	el.Translate(dx, dy)
	el.Version++
	if err := t.ctx.Store.Set(el); err != nil {
		log.Printf("[TOOLS] Could not move %s: %v", el.ID, err)
		return
	}
	t.last = ev.World
}

func (t *Selection) OnPointerUp(PointerEvent) { t.dragging = false }

func (t *Selection) OnKeyDown(ev KeyEvent) {
	switch ev.Key {
	case KeyDelete, KeyBackspace:
		if t.selected != "" {
			t.ctx.Store.Remove(t.selected)
			t.clear()
		}
	case KeyEscape:
		t.clear()
	}
}

func (t *Selection) OnDeactivate() { t.clear() }

// Prune drops the selection if its element is no longer live.
func (t *Selection) Prune() {
	if t.selected == "" {
		return
	}
	if _, ok := t.ctx.Store.Get(t.selected); !ok {
		t.clear()
	}
}

func (t *Selection) clear() {
	t.selected = ""
	t.dragging = false
	t.ctx.setSelection(nil)
}

// StyleChange is a partial style update; nil fields are left alone.
type StyleChange struct {
	StrokeColor     *string
	BackgroundColor *string
	StrokeWidth     *float64
	Roughness       *float64
	Opacity         *float64
}

// Empty reports whether c changes nothing.
func (c StyleChange) Empty() bool {
	return c.StrokeColor == nil && c.BackgroundColor == nil &&
		c.StrokeWidth == nil && c.Roughness == nil && c.Opacity == nil
}

// Apply returns s with c's fields set.
func (c StyleChange) Apply(s state.Style) state.Style {
	if c.StrokeColor != nil {
		s.StrokeColor = *c.StrokeColor
	}
	if c.BackgroundColor != nil {
		s.BackgroundColor = *c.BackgroundColor
	}
	if c.StrokeWidth != nil {
		s.StrokeWidth = *c.StrokeWidth
	}
	if c.Roughness != nil {
		s.Roughness = *c.Roughness
	}
	if c.Opacity != nil {
		s.Opacity = *c.Opacity
	}
	return s
}

// ApplyStyle applies c to every live element in ids as one transaction and
// returns how many changed.
func ApplyStyle(store *state.Store, ids []string, c StyleChange) (int, error) {
	if c.Empty() || len(ids) == 0 {
		return 0, nil
	}
	n := 0
	var firstErr error
	err := store.Transact(func(tx *state.Tx) {
		for _, id := range ids {
			el, ok := tx.Get(id)
			if !ok {
				continue
			}
			next := c.Apply(el.Style)
			if next == el.Style {
				continue
			}
			el.Style = next
			el.Version++
			if err := tx.Set(el); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			n++
		}
	})
	if err != nil {
		return n, err
	}
	return n, firstErr
}
