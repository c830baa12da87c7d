// Package tools holds the input state machines that turn pointer and key
// events into element and presence mutations. Exactly one tool is active at a
// time; events reach it already translated to world coordinates.
package tools

import (
	"errors"
	"time"

	"CollabBoard/internal/camera"
	"CollabBoard/internal/presence"
	"CollabBoard/internal/state"
)

var ErrUnknownTool = errors.New("unknown tool")

// Kind names a tool.
type Kind string

const (
	KindSelect    Kind = "select"
	KindRectangle Kind = "rectangle"
	KindEllipse   Kind = "ellipse"
	KindDiamond   Kind = "diamond"
	KindLine      Kind = "line"
	KindArrow     Kind = "arrow"
	KindPencil    Kind = "pencil"
	KindEraser    Kind = "eraser"
	KindText      Kind = "text"
	KindLaser     Kind = "laser"
)

// Kinds lists every tool in toolbar order.
var Kinds = []Kind{
	KindSelect, KindRectangle, KindEllipse, KindDiamond, KindLine,
	KindArrow, KindPencil, KindEraser, KindText, KindLaser,
}

// Button is a pointer button.
type Button int

const (
	ButtonPrimary Button = iota
	ButtonSecondary
	ButtonMiddle
)

// PointerEvent carries the pointer position in world and screen space.
type PointerEvent struct {
	World   state.Point
	ScreenX float64
	ScreenY float64
	Button  Button
}

// Key names, matching the host toolkit's key names.
const (
	KeyEscape    = "Escape"
	KeyDelete    = "Delete"
	KeyBackspace = "BackSpace"
	KeyReturn    = "Return"
	KeyEnter     = "KP_Enter"
)

// KeyEvent is a key press with its modifiers.
type KeyEvent struct {
	Key   string
	Shift bool
	Ctrl  bool
}

// Tool is the state machine behind one toolbar entry.
type Tool interface {
	OnPointerDown(ev PointerEvent)
	OnPointerMove(ev PointerEvent)
	OnPointerUp(ev PointerEvent)
	OnKeyDown(ev KeyEvent)
	// OnDeactivate must leave no in-progress element, open text session or
	// stale presence field behind.
	OnDeactivate()
}

// Ticker is implemented by tools that animate.
type Ticker interface {
	Tick(now time.Time)
}

// Blurrer is implemented by tools that react to losing keyboard focus.
type Blurrer interface {
	OnBlur()
}

// TextInput is the host's text editing surface.
type TextInput interface {
	// Open shows an empty editor with its top-left corner at the screen
	// position, drawing text in color.
	Open(screenX, screenY float64, color string)
	Text() string
	// Size returns the editor size in screen pixels.
	Size() (w, h float64)
	Close()
}

// Context is what tools act on.
type Context struct {
	Store    *state.Store
	Presence *presence.Channel
	Camera   *camera.Camera
	// Style returns the style new elements take.
	Style  func() state.Style
	Author string

	TextInput TextInput

	// OnStyleSnapshot receives the style of an element the user picked, so
	// the style panel can follow it.
	OnStyleSnapshot func(state.Style)
	// OnCommit receives finished freehand strokes.
	OnCommit func(state.Element)

	Now   func() time.Time
	NewID func() string
}

func (c *Context) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Context) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return state.NewElementID()
}

func (c *Context) style() state.Style {
	if c.Style != nil {
		return c.Style()
	}
	return state.DefaultStyle()
}

func (c *Context) zoom() float64 {
	if c.Camera == nil || c.Camera.Zoom <= 0 {
		return 1
	}
	return c.Camera.Zoom
}

func (c *Context) setSelection(ids []string) {
	if c.Presence != nil {
		c.Presence.SetSelection(ids)
	}
}

func (c *Context) setLaser(pts []presence.LaserPoint) {
	if c.Presence != nil {
		c.Presence.SetLaser(pts)
	}
}
