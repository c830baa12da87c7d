package tools

import (
	"fmt"
	"time"

	"CollabBoard/internal/state"
)

// Manager owns one instance of every tool and routes events to the active one.
type Manager struct {
	ctx    *Context
	tools  map[Kind]Tool
	kind   Kind
	active Tool
}

// NewManager builds every tool over ctx. The selection tool starts active.
func NewManager(ctx *Context) *Manager {
	m := &Manager{ctx: ctx, tools: make(map[Kind]Tool, len(Kinds))}
	for _, k := range Kinds {
		m.tools[k] = newTool(ctx, k)
	}
	m.kind = KindSelect
	m.active = m.tools[KindSelect]
	return m
}

func newTool(ctx *Context, k Kind) Tool {
	switch k {
	case KindSelect:
		return NewSelection(ctx)
	case KindRectangle:
		return NewShape(ctx, state.Rectangle)
	case KindEllipse:
		return NewShape(ctx, state.Ellipse)
	case KindDiamond:
		return NewShape(ctx, state.Diamond)
	case KindLine:
		return NewShape(ctx, state.Line)
	case KindArrow:
		return NewShape(ctx, state.Arrow)
	case KindPencil:
		return NewFreehand(ctx)
	case KindEraser:
		return NewEraser(ctx)
	case KindText:
		return NewText(ctx)
	case KindLaser:
		return NewLaser(ctx)
	}
	return nil
}

// SetActive deactivates the current tool and activates k.
func (m *Manager) SetActive(k Kind) error {
	t, ok := m.tools[k]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTool, k)
	}
	if k == m.kind {
		return nil
	}
	m.active.OnDeactivate()
	m.kind, m.active = k, t
	return nil
}

// Active returns the active tool kind.
func (m *Manager) Active() Kind { return m.kind }

// Tool returns the instance for k, or nil.
func (m *Manager) Tool(k Kind) Tool { return m.tools[k] }

// Selection returns the selection tool.
func (m *Manager) Selection() *Selection {
	return m.tools[KindSelect].(*Selection)
}

func (m *Manager) PointerDown(ev PointerEvent) { m.active.OnPointerDown(ev) }
func (m *Manager) PointerMove(ev PointerEvent) { m.active.OnPointerMove(ev) }
func (m *Manager) PointerUp(ev PointerEvent)   { m.active.OnPointerUp(ev) }
func (m *Manager) KeyDown(ev KeyEvent)         { m.active.OnKeyDown(ev) }

// Tick forwards the animation clock to the active tool.
func (m *Manager) Tick(now time.Time) {
	if t, ok := m.active.(Ticker); ok {
		t.Tick(now)
	}
}

// Blur tells the active tool that keyboard focus left the board.
func (m *Manager) Blur() {
	if b, ok := m.active.(Blurrer); ok {
		b.OnBlur()
	}
}

// Close deactivates the active tool.
func (m *Manager) Close() {
	m.active.OnDeactivate()
}
