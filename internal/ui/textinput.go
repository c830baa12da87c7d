package ui

import (
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"CollabBoard/internal/tools"
)

// Smallest editor size, so the placeholder and caret fit.
const (
	textInputMinWidth  = 160
	textInputMinHeight = 40
)

func currentModifiers() fyne.KeyModifier {
	if app := fyne.CurrentApp(); app != nil {
		if d, ok := app.Driver().(desktop.Driver); ok {
			return d.CurrentKeyModifiers()
		}
	}
	return 0
}

func keyEvent(name fyne.KeyName) tools.KeyEvent {
	mods := currentModifiers()
	return tools.KeyEvent{
		Key:   string(name),
		Shift: mods&fyne.KeyModifierShift != 0,
		Ctrl:  mods&(fyne.KeyModifierControl|fyne.KeyModifierSuper) != 0,
	}
}

// textEntry is a multi-line entry that hands Escape and Enter to the board.
type textEntry struct {
	widget.Entry
	input *TextInput
}

func (e *textEntry) TypedKey(k *fyne.KeyEvent) {
	ev := keyEvent(k.Name)
	switch k.Name {
	case fyne.KeyEscape:
		e.input.key(ev)
		return
	case fyne.KeyReturn, fyne.KeyEnter:
		if !ev.Shift {
			e.input.key(ev)
			return
		}
	}
	e.Entry.TypedKey(k)
}

func (e *textEntry) FocusLost() {
	e.Entry.FocusLost()
	e.input.blur()
}

// TextInput is the editor the text tool opens over the board. Positions are
// in raster pixels and converted to canvas units with the board's scale.
type TextInput struct {
	entry   *textEntry
	scale   func() float32
	onKey   func(tools.KeyEvent)
	onBlur  func()
	onClose func()
	open    bool
	closing bool
}

// NewTextInput returns a hidden editor.
func NewTextInput() *TextInput {
	t := &TextInput{scale: func() float32 { return 1 }}
	t.entry = &textEntry{input: t}
	t.entry.MultiLine = true
	t.entry.Wrapping = fyne.TextWrapOff
	t.entry.OnChanged = func(string) { t.entry.Resize(t.fit()) }
	t.entry.ExtendBaseWidget(t.entry)
	t.entry.Hide()
	return t
}

// fit measures the typed text and returns the editor size that holds it.
func (t *TextInput) fit() fyne.Size {
	size := theme.TextSize()
	lines := strings.Split(t.entry.Text, "\n")
	var w float32
	for _, l := range lines {
		if m := fyne.MeasureText(l, size, t.entry.TextStyle); m.Width > w {
			w = m.Width
		}
	}
	line := fyne.MeasureText("M", size, t.entry.TextStyle)
	pad := 2 * theme.InnerPadding()
	// One spare character of width keeps the caret from scrolling the line.
	return fyne.NewSize(
		max(w+line.Width+pad, textInputMinWidth),
		max(line.Height*float32(len(lines))+pad, textInputMinHeight),
	)
}

// Widget returns the entry to place in an overlay container.
func (t *TextInput) Widget() fyne.CanvasObject { return t.entry }

// Open implements tools.TextInput. The entry draws in the theme colour;
// the element takes the stroke colour when placed.
func (t *TextInput) Open(screenX, screenY float64, _ string) {
	s := t.scale()
	t.entry.SetText("")
	t.entry.SetPlaceHolder("Type, Enter to place")
	t.entry.Move(fyne.NewPos(float32(screenX)/s, float32(screenY)/s))
	t.entry.Resize(t.fit())
	t.entry.Show()
	t.open = true
	if c := fyne.CurrentApp().Driver().CanvasForObject(t.entry); c != nil {
		c.Focus(t.entry)
	}
}

// Text implements tools.TextInput.
func (t *TextInput) Text() string { return t.entry.Text }

// Size implements tools.TextInput, in raster pixels. It is the size of the
// typed text, not of the last layout.
func (t *TextInput) Size() (w, h float64) {
	s := float64(t.scale())
	sz := t.fit()
	return float64(sz.Width) * s, float64(sz.Height) * s
}

// Close implements tools.TextInput.
func (t *TextInput) Close() {
	if !t.open {
		return
	}
	t.open = false
	t.closing = true
	t.entry.Hide()
	if t.onClose != nil {
		t.onClose()
	}
	t.closing = false
}

// IsOpen reports whether the editor is showing.
func (t *TextInput) IsOpen() bool { return t.open }

func (t *TextInput) key(ev tools.KeyEvent) {
	if t.onKey != nil {
		t.onKey(ev)
	}
}

func (t *TextInput) blur() {
	if !t.open || t.closing {
		return
	}
	if t.onBlur != nil {
		t.onBlur()
	}
}
