package tools

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CollabBoard/internal/camera"
	"CollabBoard/internal/presence"
	"CollabBoard/internal/state"
)

type fakeInput struct {
	open   bool
	text   string
	w, h   float64
	x, y   float64
	color  string
	closed int
}

func (f *fakeInput) Open(x, y float64, color string) {
	f.open, f.x, f.y, f.color, f.text = true, x, y, color, ""
}
func (f *fakeInput) Text() string             { return f.text }
func (f *fakeInput) Size() (float64, float64) { return f.w, f.h }
func (f *fakeInput) Close()                   { f.open = false; f.closed++ }

type fixture struct {
	store *state.Store
	pres  *presence.Channel
	cam   *camera.Camera
	input *fakeInput
	ctx   *Context
	clock time.Time
	ids   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: state.NewStore("local"),
		pres:  presence.NewChannel("local", presence.User{Name: "me", Color: "#000000"}),
		cam:   camera.New(),
		input: &fakeInput{},
		clock: time.UnixMilli(1_000_000),
	}
	f.ctx = &Context{
		Store:     f.store,
		Presence:  f.pres,
		Camera:    f.cam,
		Author:    "me",
		TextInput: f.input,
		Now:       func() time.Time { return f.clock },
		NewID: func() string {
			f.ids++
			return fmt.Sprintf("el%d", f.ids)
		},
	}
	return f
}

func at(x, y float64) PointerEvent {
	return PointerEvent{World: state.Point{X: x, Y: y}, ScreenX: x, ScreenY: y}
}

func TestShapeNormalizesBoxes(t *testing.T) {
	f := newFixture(t)
	tool := NewShape(f.ctx, state.Rectangle)
	tool.OnPointerDown(at(100, 100))
	tool.OnPointerMove(at(40, 70))
	tool.OnPointerUp(at(40, 70))

	el, ok := f.store.Get("el1")
	require.True(t, ok)
	assert.Equal(t, state.Rect{X: 40, Y: 70, W: 60, H: 30}, state.Rect{X: el.X, Y: el.Y, W: el.Width, H: el.Height})
	assert.Equal(t, "me", el.AuthorID)
}

func TestLineKeepsSignedVector(t *testing.T) {
	f := newFixture(t)
	tool := NewShape(f.ctx, state.Arrow)
	tool.OnPointerDown(at(10, 10))
	tool.OnPointerMove(at(0, 30))
	tool.OnPointerUp(at(0, 30))

	el, _ := f.store.Get("el1")
	assert.Equal(t, 10.0, el.X)
	assert.Equal(t, -10.0, el.Width)
	assert.Equal(t, 20.0, el.Height)
}

func TestShapeVersionGrowsWhileDragging(t *testing.T) {
	f := newFixture(t)
	tool := NewShape(f.ctx, state.Ellipse)
	tool.OnPointerDown(at(0, 0))
	v0 := f.store.Version("el1")
	tool.OnPointerMove(at(5, 5))
	tool.OnPointerMove(at(9, 9))
	assert.Greater(t, f.store.Version("el1"), v0+1)
}

func TestShapeZeroSizeDiscarded(t *testing.T) {
	f := newFixture(t)
	tool := NewShape(f.ctx, state.Diamond)
	tool.OnPointerDown(at(5, 5))
	tool.OnPointerUp(at(5, 5))
	assert.Equal(t, 0, f.store.Len())
}

func TestShapeEscapeDiscards(t *testing.T) {
	f := newFixture(t)
	tool := NewShape(f.ctx, state.Rectangle)
	tool.OnPointerDown(at(0, 0))
	tool.OnPointerMove(at(50, 50))
	tool.OnKeyDown(KeyEvent{Key: KeyEscape})
	assert.Equal(t, 0, f.store.Len())

	// Further moves are ignored.
	tool.OnPointerMove(at(80, 80))
	assert.Equal(t, 0, f.store.Len())
}

func TestFreehandDedupsAndCommits(t *testing.T) {
	f := newFixture(t)
	var committed []state.Element
	f.ctx.OnCommit = func(el state.Element) { committed = append(committed, el) }
	tool := NewFreehand(f.ctx)

	tool.OnPointerDown(at(0, 0))
	tool.OnPointerMove(at(0, 0))
	tool.OnPointerMove(at(10, 5))
	tool.OnPointerMove(at(10, 5))
	tool.OnPointerMove(at(-4, 20))
	tool.OnPointerUp(at(-4, 20))

	el, ok := f.store.Get("el1")
	require.True(t, ok)
	assert.Equal(t, []state.Point{{X: 0, Y: 0}, {X: 10, Y: 5}, {X: -4, Y: 20}}, el.Points)
	assert.Equal(t, state.Rect{X: -4, Y: 0, W: 14, H: 20}, el.Bounds())
	assert.Equal(t, -4.0, el.X)
	require.Len(t, committed, 1)
	assert.Equal(t, "el1", committed[0].ID)
}

func TestFreehandSinglePointCommitted(t *testing.T) {
	f := newFixture(t)
	var committed []state.Element
	f.ctx.OnCommit = func(el state.Element) { committed = append(committed, el) }
	tool := NewFreehand(f.ctx)
	tool.OnPointerDown(at(3, 3))
	tool.OnPointerUp(at(3, 3))

	require.Equal(t, 1, f.store.Len())
	el := f.store.GetAll()[0]
	assert.Equal(t, state.Pencil, el.Type)
	assert.Equal(t, []state.Point{{X: 3, Y: 3}}, el.Points)
	require.Len(t, committed, 1)
	assert.Equal(t, el.ID, committed[0].ID)
}

func TestFreehandDeactivateDiscards(t *testing.T) {
	f := newFixture(t)
	tool := NewFreehand(f.ctx)
	tool.OnPointerDown(at(0, 0))
	tool.OnPointerMove(at(1, 1))
	tool.OnDeactivate()
	assert.Equal(t, 0, f.store.Len())
}

func TestEraserBoxTolerance(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(state.Element{ID: "r", Type: state.Rectangle, X: 10, Y: 10, Width: 40, Height: 40, Style: state.DefaultStyle()}))
	tool := NewEraser(f.ctx)

	tool.OnPointerDown(at(200, 200))
	tool.OnPointerUp(at(200, 200))
	assert.Equal(t, 1, f.store.Len())

	tool.OnPointerDown(at(8, 8))
	tool.OnPointerUp(at(8, 8))
	assert.Equal(t, 0, f.store.Len())
}

func TestEraserToleranceScalesWithZoom(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(state.Element{ID: "r", Type: state.Rectangle, X: 10, Y: 10, Width: 40, Height: 40, Style: state.DefaultStyle()}))
	f.cam.Zoom = 2
	tool := NewEraser(f.ctx)
	tool.OnPointerDown(at(6, 6))
	assert.Equal(t, 1, f.store.Len(), "4 world units is 8 px at zoom 2")
	tool.OnPointerMove(at(8, 8))
	assert.Equal(t, 0, f.store.Len())
}

func TestEraserRemovesTopmostOnlyAndRepeatsWhileHeld(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"a", "b"} {
		require.NoError(t, f.store.Set(state.Element{ID: id, Type: state.Rectangle, Width: 20, Height: 20, Style: state.DefaultStyle()}))
	}
	stroke := state.Element{ID: "s", Type: state.Pencil, Style: state.DefaultStyle(), Points: []state.Point{{X: 100, Y: 0}, {X: 100, Y: 100}}}
	stroke.FitPoints()
	require.NoError(t, f.store.Set(stroke))

	tool := NewEraser(f.ctx)
	tool.OnPointerDown(at(10, 10))
	_, ok := f.store.Get("b")
	assert.False(t, ok, "topmost goes first")
	_, ok = f.store.Get("a")
	assert.True(t, ok)

	tool.OnPointerMove(at(108, 50))
	_, ok = f.store.Get("s")
	assert.False(t, ok, "stroke erased by segment proximity")

	tool.OnPointerUp(at(108, 50))
	tool.OnPointerMove(at(10, 10))
	_, ok = f.store.Get("a")
	assert.True(t, ok, "released eraser does nothing")
}

func TestSelectionDragAndDelete(t *testing.T) {
	f := newFixture(t)
	st := state.DefaultStyle()
	st.StrokeColor = "#e03131"
	require.NoError(t, f.store.Set(state.Element{ID: "r", Type: state.Rectangle, X: 0, Y: 0, Width: 20, Height: 20, Style: st}))
	var picked *state.Style
	f.ctx.OnStyleSnapshot = func(s state.Style) { picked = &s }
	tool := NewSelection(f.ctx)

	tool.OnPointerDown(at(5, 5))
	assert.Equal(t, []string{"r"}, f.pres.Local().Selection)
	require.NotNil(t, picked)
	assert.Equal(t, "#e03131", picked.StrokeColor)

	v := f.store.Version("r")
	tool.OnPointerMove(at(15, 25))
	tool.OnPointerUp(at(15, 25))
	el, _ := f.store.Get("r")
	assert.Equal(t, 10.0, el.X)
	assert.Equal(t, 20.0, el.Y)
	assert.Greater(t, el.Version, v)

	tool.OnKeyDown(KeyEvent{Key: KeyBackspace})
	assert.Equal(t, 0, f.store.Len())
	assert.Empty(t, f.pres.Local().Selection)
}

func TestSelectionMovesStrokePoints(t *testing.T) {
	f := newFixture(t)
	stroke := state.Element{ID: "s", Type: state.Pencil, Style: state.DefaultStyle(), Points: []state.Point{{X: 0, Y: 0}, {X: 30, Y: 0}}}
	stroke.FitPoints()
	require.NoError(t, f.store.Set(stroke))
	tool := NewSelection(f.ctx)

	tool.OnPointerDown(at(15, 4))
	tool.OnPointerMove(at(20, 14))
	el, _ := f.store.Get("s")
	assert.Equal(t, []state.Point{{X: 5, Y: 10}, {X: 35, Y: 10}}, el.Points)
}

func TestSelectionMissClears(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(state.Element{ID: "r", Type: state.Rectangle, Width: 20, Height: 20, Style: state.DefaultStyle()}))
	tool := NewSelection(f.ctx)
	tool.OnPointerDown(at(5, 5))
	tool.OnPointerUp(at(5, 5))
	tool.OnPointerDown(at(500, 500))
	assert.Nil(t, tool.Selected())
	assert.Empty(t, f.pres.Local().Selection)
}

func TestSelectionDeactivateClearsPresence(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(state.Element{ID: "r", Type: state.Rectangle, Width: 20, Height: 20, Style: state.DefaultStyle()}))
	m := NewManager(f.ctx)
	m.PointerDown(at(5, 5))
	require.NotEmpty(t, f.pres.Local().Selection)
	require.NoError(t, m.SetActive(KindPencil))
	assert.Empty(t, f.pres.Local().Selection)
}

func TestTextCommitOnSecondClick(t *testing.T) {
	f := newFixture(t)
	f.cam.Zoom = 2
	tool := NewText(f.ctx)
	tool.OnPointerDown(PointerEvent{World: state.Point{X: 5, Y: 6}, ScreenX: 50, ScreenY: 60})
	require.True(t, f.input.open)
	assert.Equal(t, 50.0, f.input.x)

	f.input.text = "  hello  "
	f.input.w, f.input.h = 120, 48
	tool.OnPointerDown(at(99, 99))

	assert.False(t, f.input.open)
	el, ok := f.store.Get("el1")
	require.True(t, ok)
	assert.Equal(t, "hello", el.Text)
	assert.Equal(t, 60.0, el.Width)
	assert.Equal(t, 24.0, el.Height)
	assert.Equal(t, 5.0, el.X)
	assert.Equal(t, DefaultFontSize, el.FontSize)
	assert.Equal(t, 0.0, el.Roughness)
	assert.Equal(t, "transparent", el.BackgroundColor)
}

func TestTextKeys(t *testing.T) {
	f := newFixture(t)
	tool := NewText(f.ctx)

	tool.OnPointerDown(at(0, 0))
	f.input.text = "draft"
	tool.OnKeyDown(KeyEvent{Key: KeyEscape})
	assert.False(t, f.input.open)
	assert.Equal(t, 0, f.store.Len(), "escape discards")

	tool.OnPointerDown(at(0, 0))
	f.input.text = "line"
	tool.OnKeyDown(KeyEvent{Key: KeyReturn, Shift: true})
	assert.True(t, tool.Editing(), "shift+enter keeps editing")
	tool.OnKeyDown(KeyEvent{Key: KeyReturn})
	assert.False(t, tool.Editing())
	assert.Equal(t, 1, f.store.Len())
}

func TestTextBlurAndDeactivateCommit(t *testing.T) {
	f := newFixture(t)
	tool := NewText(f.ctx)

	tool.OnPointerDown(at(0, 0))
	f.input.text = "a"
	tool.OnBlur()
	assert.Equal(t, 1, f.store.Len())

	tool.OnPointerDown(at(0, 0))
	f.input.text = "   "
	tool.OnDeactivate()
	assert.Equal(t, 1, f.store.Len(), "blank text is dropped")
	assert.False(t, f.input.open)
}

func TestLaserWindowAndDecay(t *testing.T) {
	f := newFixture(t)
	tool := NewLaser(f.ctx)

	tool.OnPointerDown(at(0, 0))
	for i := 1; i < 30; i++ {
		f.clock = f.clock.Add(10 * time.Millisecond)
		tool.OnPointerMove(at(float64(i), 0))
	}
	laser := f.pres.Local().Laser
	require.Len(t, laser, LaserWindow)
	assert.Equal(t, 29.0, laser[len(laser)-1].X)
	assert.Equal(t, 0, f.store.Len(), "laser never touches the store")

	tool.OnPointerUp(at(29, 0))
	tool.Tick(f.clock.Add(100 * time.Millisecond))
	assert.NotEmpty(t, f.pres.Local().Laser)

	tool.Tick(f.clock.Add(time.Second))
	assert.Nil(t, f.pres.Local().Laser)
}

func TestLaserHeldStaysAnimated(t *testing.T) {
	f := newFixture(t)
	tool := NewLaser(f.ctx)
	tool.OnPointerDown(at(0, 0))
	tool.Tick(f.clock.Add(time.Second))
	// Points aged out but the button is held.
	tool.OnPointerMove(at(1, 1))
	assert.Len(t, f.pres.Local().Laser, 1)

	tool.OnDeactivate()
	assert.Nil(t, f.pres.Local().Laser)
}

func TestManagerSwitchDeactivates(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.ctx)
	assert.Equal(t, KindSelect, m.Active())

	require.NoError(t, m.SetActive(KindRectangle))
	m.PointerDown(at(0, 0))
	m.PointerMove(at(10, 10))
	require.Equal(t, 1, f.store.Len())

	require.NoError(t, m.SetActive(KindEllipse))
	assert.Equal(t, 0, f.store.Len(), "in-progress shape is discarded")

	assert.ErrorIs(t, m.SetActive("spray"), ErrUnknownTool)
	assert.Equal(t, KindEllipse, m.Active())
}

func TestManagerTickAndBlurReachActiveTool(t *testing.T) {
	f := newFixture(t)
	m := NewManager(f.ctx)
	require.NoError(t, m.SetActive(KindText))
	m.PointerDown(at(0, 0))
	f.input.text = "x"
	m.Blur()
	assert.Equal(t, 1, f.store.Len())

	require.NoError(t, m.SetActive(KindLaser))
	m.PointerDown(at(0, 0))
	m.PointerUp(at(0, 0))
	m.Tick(f.clock.Add(time.Second))
	assert.Nil(t, f.pres.Local().Laser)
}

func TestApplyStyle(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Set(state.Element{ID: "a", Type: state.Rectangle, Style: state.DefaultStyle()}))
	require.NoError(t, f.store.Set(state.Element{ID: "b", Type: state.Ellipse, Style: state.DefaultStyle()}))
	var events int
	cancel := f.store.Observe(func(state.Event) { events++ })
	defer cancel()

	color := "#2f9e44"
	width := 4.0
	n, err := ApplyStyle(f.store, []string{"a", "b", "gone"}, StyleChange{StrokeColor: &color, StrokeWidth: &width})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, events, "one transaction")

	a, _ := f.store.Get("a")
	assert.Equal(t, color, a.StrokeColor)
	assert.Equal(t, 4.0, a.StrokeWidth)
	assert.Equal(t, 1.0, a.Roughness)

	n, err = ApplyStyle(f.store, []string{"a"}, StyleChange{StrokeColor: &color})
	require.NoError(t, err)
	assert.Equal(t, 0, n, "unchanged style is not rewritten")
}

func TestHitTestSegments(t *testing.T) {
	line := state.Element{ID: "l", Type: state.Line, X: 0, Y: 0, Width: 100, Height: 0}
	_, ok := HitTest([]state.Element{line}, state.Point{X: 50, Y: 5}, 0, 6)
	assert.True(t, ok)
	_, ok = HitTest([]state.Element{line}, state.Point{X: 50, Y: 7}, 0, 6)
	assert.False(t, ok)
}
