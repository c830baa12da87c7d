package tools

import (
	"log"
	"strings"

	"CollabBoard/internal/state"
)

const DefaultFontSize = 20.0

// Text places text elements through the host's text input surface.
type Text struct {
	ctx     *Context
	editing bool
	id      string
	anchor  state.Point
}

// NewText returns a text tool.
func NewText(ctx *Context) *Text {
	return &Text{ctx: ctx}
}

// Editing reports whether a text session is open.
func (t *Text) Editing() bool { return t.editing }

func (t *Text) OnPointerDown(ev PointerEvent) {
	if t.editing {
		t.commit()
		return
	}
	if t.ctx.TextInput == nil {
		return
	}
	t.editing = true
	t.id = t.ctx.newID()
	t.anchor = ev.World
	t.ctx.TextInput.Open(ev.ScreenX, ev.ScreenY, t.ctx.style().StrokeColor)
}

func (t *Text) OnPointerMove(PointerEvent) {}
func (t *Text) OnPointerUp(PointerEvent)   {}

func (t *Text) OnKeyDown(ev KeyEvent) {
	if !t.editing {
		return
	}
	switch ev.Key {
	case KeyEscape:
		t.close()
	case KeyReturn, KeyEnter:
		if !ev.Shift {
			t.commit()
		}
	}
}

// OnBlur commits when the input surface loses focus.
func (t *Text) OnBlur() { t.commit() }

func (t *Text) OnDeactivate() { t.commit() }

func (t *Text) commit() {
	if !t.editing {
		return
	}
	text := strings.TrimSpace(t.ctx.TextInput.Text())
	if text != "" {
		w, h := t.ctx.TextInput.Size()
		z := t.ctx.zoom()
		style := t.ctx.style()
		style.BackgroundColor = "transparent"
		style.Roughness = 0
		el := state.Element{
			ID:       t.id,
			Type:     state.Text,
			X:        t.anchor.X,
			Y:        t.anchor.Y,
			Width:    w / z,
			Height:   h / z,
			Style:    style,
			AuthorID: t.ctx.Author,
			Text:     text,
			FontSize: DefaultFontSize,
		}
		if err := t.ctx.Store.Set(el); err != nil {
			log.Printf("[TOOLS] Could not place text: %v", err)
		}
	}
	t.close()
}

func (t *Text) close() {
	if t.editing {
		t.ctx.TextInput.Close()
	}
	t.editing = false
	t.id = ""
}
