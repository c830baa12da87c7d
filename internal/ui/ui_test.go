package ui

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CollabBoard/internal/board"
	"CollabBoard/internal/presence"
	"CollabBoard/internal/state"
	"CollabBoard/internal/tools"
)

func newBoard(t *testing.T) (*BoardWidget, *TextInput) {
	t.Helper()
	test.NewTempApp(t)
	input := NewTextInput()
	s := board.NewSession(board.Options{SiteID: "site", User: presence.User{Name: "Ada", Color: "#1971c2"}}, input)
	b := NewBoardWidget(s, input)
	w := test.NewWindow(container.NewStack(b, container.NewWithoutLayout(input.Widget())))
	w.Resize(fyne.NewSize(400, 300))
	t.Cleanup(func() {
		b.Stop()
		w.Close()
	})
	return b, input
}

func press(b *BoardWidget, x, y float32) {
	ev := &desktop.MouseEvent{Button: desktop.MouseButtonPrimary}
	ev.Position = fyne.NewPos(x, y)
	b.MouseDown(ev)
	b.MouseUp(ev)
}

func TestTextEntryPlacesElementOnEnter(t *testing.T) {
	b, input := newBoard(t)
	require.NoError(t, b.session.SetTool(tools.KindText))

	press(b, 40, 50)
	require.True(t, input.IsOpen())

	input.entry.SetText("hello")
	input.entry.TypedKey(&fyne.KeyEvent{Name: fyne.KeyReturn})

	assert.False(t, input.IsOpen())
	all := b.session.Store.GetAll()
	require.Len(t, all, 1)
	assert.Equal(t, state.Text, all[0].Type)
	assert.Equal(t, "hello", all[0].Text)
	assert.Equal(t, 40.0, all[0].X)
}

func TestTextEntryEscapeDiscards(t *testing.T) {
	b, input := newBoard(t)
	require.NoError(t, b.session.SetTool(tools.KindText))

	press(b, 10, 10)
	input.entry.SetText("draft")
	input.entry.TypedKey(&fyne.KeyEvent{Name: fyne.KeyEscape})

	assert.False(t, input.IsOpen())
	assert.Empty(t, b.session.Store.GetAll())
}

func TestShortcutSwitchesTool(t *testing.T) {
	b, _ := newBoard(t)
	b.KeyDown(&fyne.KeyEvent{Name: fyne.KeyR})
	assert.Equal(t, tools.KindRectangle, b.session.Tool())
}

func TestDragDrawsRectangle(t *testing.T) {
	b, _ := newBoard(t)
	require.NoError(t, b.session.SetTool(tools.KindRectangle))

	down := &desktop.MouseEvent{Button: desktop.MouseButtonPrimary}
	down.Position = fyne.NewPos(10, 10)
	b.MouseDown(down)
	b.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(70, 50)}})
	b.DragEnd()

	all := b.session.Store.GetAll()
	require.Len(t, all, 1)
	assert.Equal(t, state.Rectangle, all[0].Type)
	assert.Equal(t, 60.0, all[0].Width)
	assert.Equal(t, 40.0, all[0].Height)
}

func TestToolLabels(t *testing.T) {
	assert.Equal(t, "Select (V)", toolLabel(tools.KindSelect))
	assert.Equal(t, "Laser (K)", toolLabel(tools.KindLaser))
}

func TestTextEntryGrowsWithContent(t *testing.T) {
	b, input := newBoard(t)
	require.NoError(t, b.session.SetTool(tools.KindText))
	press(b, 20, 20)
	require.True(t, input.IsOpen())

	input.entry.SetText("hi")
	shortW, shortH := input.Size()
	assert.InDelta(t, input.entry.Size().Width, float32(shortW)/b.scale, 0.01)

	input.entry.SetText("a considerably longer line than the editor starts with\nand\nmore lines")
	longW, longH := input.Size()
	assert.Greater(t, longW, shortW)
	assert.Greater(t, longH, shortH)
	assert.InDelta(t, input.entry.Size().Width, float32(longW)/b.scale, 0.01, "editor follows its text")

	input.entry.TypedKey(&fyne.KeyEvent{Name: fyne.KeyReturn})
	all := b.session.Store.GetAll()
	require.Len(t, all, 1)
	assert.InDelta(t, longW/b.session.Camera.Zoom, all[0].Width, 0.001)
}

func TestExportCurrentView(t *testing.T) {
	b, _ := newBoard(t)
	require.NoError(t, b.session.Store.Set(state.Element{ID: "r", Type: state.Rectangle, X: 10, Y: 10, Width: 40, Height: 30, Style: state.DefaultStyle()}))
	frame := b.session.Renderer.Frame(120, 90, time.Now())

	var buf bytes.Buffer
	require.NoError(t, writeExport(&buf, b.session, formatView))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, frame.Bounds(), img.Bounds())
	assert.Equal(t, ".png", exportExtension(formatView))
}
