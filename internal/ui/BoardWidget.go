package ui

import (
	"image"
	"sync/atomic"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"CollabBoard/internal/board"
	"CollabBoard/internal/presence"
	"CollabBoard/internal/state"
	"CollabBoard/internal/tools"
)

const frameInterval = time.Second / 60

// wheelStep converts fyne scroll deltas into browser-style wheel deltas.
const wheelStep = 10

// BoardWidget shows the session's frames and feeds it pointer and key input.
type BoardWidget struct {
	widget.BaseWidget
	session *board.Session
	input   *TextInput
	raster  *canvas.Raster

	scale float32
	down  bool
	lastX float64
	lastY float64
	dirty atomic.Bool

	stopObserve  func()
	stopPresence func()
	stop         chan struct{}
}

var _ fyne.Widget = (*BoardWidget)(nil)
var _ fyne.Draggable = (*BoardWidget)(nil)
var _ fyne.Scrollable = (*BoardWidget)(nil)
var _ fyne.Focusable = (*BoardWidget)(nil)
var _ desktop.Mouseable = (*BoardWidget)(nil)
var _ desktop.Hoverable = (*BoardWidget)(nil)
var _ desktop.Keyable = (*BoardWidget)(nil)

// NewBoardWidget wires session to a raster and starts the frame ticker.
func NewBoardWidget(session *board.Session, input *TextInput) *BoardWidget {
	b := &BoardWidget{
		session: session,
		input:   input,
		scale:   1,
		stop:    make(chan struct{}),
	}
	b.raster = canvas.NewRaster(b.frame)
	b.raster.SetMinSize(fyne.NewSize(300, 300))
	b.ExtendBaseWidget(b)

	input.scale = func() float32 { return b.scale }
	input.onKey = func(ev tools.KeyEvent) {
		session.KeyDown(ev)
		b.changed()
	}
	input.onBlur = func() {
		session.Blur()
		b.changed()
	}
	input.onClose = func() {
		if c := fyne.CurrentApp().Driver().CanvasForObject(b); c != nil {
			c.Focus(b)
		}
	}

	b.stopObserve = session.Store.Observe(func(state.Event) { b.dirty.Store(true) })
	b.stopPresence = session.Presence.OnChange(func(presence.Change) { b.dirty.Store(true) })
	b.dirty.Store(true)
	go b.tick()
	return b
}

func (b *BoardWidget) frame(w, h int) image.Image {
	if width := b.Size().Width; width > 0 {
		b.scale = float32(w) / width
	}
	return b.session.Frame(w, h)
}

// tick refreshes the raster when something changed or a laser is fading.
func (b *BoardWidget) tick() {
	t := time.NewTicker(frameInterval)
	defer t.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-t.C:
			fyne.Do(func() {
				if b.dirty.Swap(false) || b.session.Tool() == tools.KindLaser || lasersVisible(b.session.Presence.States()) {
					b.raster.Refresh()
				}
			})
		}
	}
}

func lasersVisible(states map[string]presence.Record) bool {
	for _, rec := range states {
		if len(rec.Laser) > 0 {
			return true
		}
	}
	return false
}

func (b *BoardWidget) changed() { b.dirty.Store(true) }

// Stop ends the ticker and detaches from the session.
func (b *BoardWidget) Stop() {
	select {
	case <-b.stop:
		return
	default:
	}
	close(b.stop)
	b.stopObserve()
	b.stopPresence()
}

func (b *BoardWidget) pixels(p fyne.Position) (float64, float64) {
	return float64(p.X * b.scale), float64(p.Y * b.scale)
}

func button(mb desktop.MouseButton) tools.Button {
	switch mb {
	case desktop.MouseButtonSecondary:
		return tools.ButtonSecondary
	case desktop.MouseButtonTertiary:
		return tools.ButtonMiddle
	}
	return tools.ButtonPrimary
}

func (b *BoardWidget) MouseDown(e *desktop.MouseEvent) {
	x, y := b.pixels(e.Position)
	b.down = true
	b.lastX, b.lastY = x, y
	b.session.PointerDown(x, y, button(e.Button))
	if !b.input.IsOpen() {
		if c := fyne.CurrentApp().Driver().CanvasForObject(b); c != nil {
			c.Focus(b)
		}
	}
	b.changed()
}

func (b *BoardWidget) MouseUp(e *desktop.MouseEvent) {
	if !b.down {
		return
	}
	b.down = false
	x, y := b.pixels(e.Position)
	b.session.PointerUp(x, y, button(e.Button))
	b.changed()
}

func (b *BoardWidget) Dragged(e *fyne.DragEvent) {
	x, y := b.pixels(e.Position)
	b.lastX, b.lastY = x, y
	b.session.PointerMove(x, y)
	b.changed()
}

// DragEnd finishes a gesture whose button was released outside the board.
func (b *BoardWidget) DragEnd() {
	if !b.down {
		return
	}
	b.down = false
	b.session.PointerUp(b.lastX, b.lastY, tools.ButtonPrimary)
	b.changed()
}

func (b *BoardWidget) MouseIn(e *desktop.MouseEvent) { b.MouseMoved(e) }

func (b *BoardWidget) MouseMoved(e *desktop.MouseEvent) {
	x, y := b.pixels(e.Position)
	b.session.PointerMove(x, y)
	b.changed()
}

func (b *BoardWidget) MouseOut() {
	b.session.PointerLeave()
	b.changed()
}

func (b *BoardWidget) Scrolled(e *fyne.ScrollEvent) {
	x, y := b.pixels(e.Position)
	b.session.Scroll(x, y, -float64(e.Scrolled.DY)*wheelStep)
	b.changed()
}

func (b *BoardWidget) FocusGained() {}

func (b *BoardWidget) FocusLost() {
	if b.input.IsOpen() {
		return
	}
	b.session.Blur()
}

func (b *BoardWidget) TypedRune(rune)           {}
func (b *BoardWidget) TypedKey(*fyne.KeyEvent) {}

func (b *BoardWidget) KeyDown(e *fyne.KeyEvent) {
	b.session.KeyDown(keyEvent(e.Name))
	b.changed()
}

func (b *BoardWidget) KeyUp(e *fyne.KeyEvent) {
	b.session.KeyUp(string(e.Name))
}

// Redraw schedules a new frame.
func (b *BoardWidget) Redraw() { b.changed() }

func (b *BoardWidget) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(b.raster)
}
