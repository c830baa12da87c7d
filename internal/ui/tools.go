package ui

import (
	"fmt"
	"image/color"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"CollabBoard/internal/board"
	"CollabBoard/internal/render"
	"CollabBoard/internal/state"
	"CollabBoard/internal/tools"
)

var strokePalette = []string{"#1e1e1e", "#e03131", "#2f9e44", "#1971c2", "#f08c00"}

var fillOptions = []string{"transparent", "#ffc9c9", "#b2f2bb", "#a5d8ff", "#ffec99"}

var toolKeys = map[tools.Kind]string{
	tools.KindSelect:    "V",
	tools.KindRectangle: "R",
	tools.KindEllipse:   "O",
	tools.KindDiamond:   "D",
	tools.KindLine:      "L",
	tools.KindArrow:     "A",
	tools.KindPencil:    "P",
	tools.KindEraser:    "E",
	tools.KindText:      "T",
	tools.KindLaser:     "K",
}

func toolLabel(k tools.Kind) string {
	name := string(k)
	return fmt.Sprintf("%s (%s)", strings.ToUpper(name[:1])+name[1:], toolKeys[k])
}

type colorSwatch struct {
	widget.BaseWidget
	Hex      string
	OnTapped func(string)
}

func newColorSwatch(hex string, tapped func(string)) *colorSwatch {
	s := &colorSwatch{Hex: hex, OnTapped: tapped}
	s.ExtendBaseWidget(s)
	return s
}

func (s *colorSwatch) CreateRenderer() fyne.WidgetRenderer {
	c, _ := render.ParseColor(s.Hex)
	rect := canvas.NewRectangle(c)
	rect.SetMinSize(fyne.NewSize(28, 28))

	border := canvas.NewRectangle(color.Transparent)
	border.StrokeColor = color.Gray{Y: 150}
	border.StrokeWidth = 1

	return widget.NewSimpleRenderer(container.NewStack(rect, border))
}

func (s *colorSwatch) Tapped(_ *fyne.PointEvent) {
	if s.OnTapped != nil {
		s.OnTapped(s.Hex)
	}
}

// Toolbar is the tool picker and style panel.
type Toolbar struct {
	session *board.Session
	byLabel map[string]tools.Kind

	toolGroup *widget.RadioGroup
	swatches  []fyne.CanvasObject
	fill      *widget.Select
	width     *widget.Slider
	roughness *widget.Slider
	opacity   *widget.Slider
	syncing   bool

	OnExport func()
}

// NewToolbar builds the toolbar for session.
func NewToolbar(session *board.Session, redraw func()) *Toolbar {
	t := &Toolbar{session: session, byLabel: make(map[string]tools.Kind)}

	labels := make([]string, 0, len(tools.Kinds))
	for _, k := range tools.Kinds {
		l := toolLabel(k)
		labels = append(labels, l)
		t.byLabel[l] = k
	}
	t.toolGroup = widget.NewRadioGroup(labels, func(l string) {
		if t.syncing {
			return
		}
		if k, ok := t.byLabel[l]; ok {
			session.SetTool(k)
			redraw()
		}
	})
	t.toolGroup.Horizontal = true
	t.toolGroup.Required = true
	t.toolGroup.SetSelected(toolLabel(session.Tool()))

	apply := func(c tools.StyleChange) {
		if t.syncing {
			return
		}
		if err := session.SetStyle(c); err != nil {
			fyne.LogError("style change failed", err)
		}
		redraw()
	}

	for _, hex := range strokePalette {
		t.swatches = append(t.swatches, newColorSwatch(hex, func(h string) {
			apply(tools.StyleChange{StrokeColor: &h})
		}))
	}

	t.fill = widget.NewSelect(fillOptions, func(v string) {
		apply(tools.StyleChange{BackgroundColor: &v})
	})
	t.width = widget.NewSlider(1, 20)
	t.width.OnChanged = func(v float64) { apply(tools.StyleChange{StrokeWidth: &v}) }
	t.roughness = widget.NewSlider(0, 3)
	t.roughness.Step = 0.5
	t.roughness.OnChanged = func(v float64) { apply(tools.StyleChange{Roughness: &v}) }
	t.opacity = widget.NewSlider(0.1, 1)
	t.opacity.Step = 0.1
	t.opacity.OnChanged = func(v float64) { apply(tools.StyleChange{Opacity: &v}) }
	t.Sync(session.Style())

	session.OnStyleChange(func(st state.Style) { t.Sync(st) })
	session.OnToolChange(func(k tools.Kind) { t.SetTool(k) })

	return t
}

// Sync shows st without applying it to the selection.
func (t *Toolbar) Sync(st state.Style) {
	t.syncing = true
	defer func() { t.syncing = false }()
	t.fill.SetSelected(st.BackgroundColor)
	t.width.SetValue(st.StrokeWidth)
	t.roughness.SetValue(st.Roughness)
	t.opacity.SetValue(st.Opacity)
}

// SetTool reflects a tool switch made by a keyboard shortcut.
func (t *Toolbar) SetTool(k tools.Kind) {
	t.syncing = true
	defer func() { t.syncing = false }()
	t.toolGroup.SetSelected(toolLabel(k))
}

func sized(w float32, o fyne.CanvasObject) fyne.CanvasObject {
	return container.New(layout.NewGridWrapLayout(fyne.NewSize(w, 35)), o)
}

// Object lays the toolbar out as two rows.
func (t *Toolbar) Object(grid *widget.Select, look *widget.Select, redraw func()) fyne.CanvasObject {
	actions := widget.NewToolbar(
		widget.NewToolbarAction(theme.ContentUndoIcon(), func() {
			t.session.Undo()
			redraw()
		}),
		widget.NewToolbarAction(theme.ContentRedoIcon(), func() {
			t.session.Redo()
			redraw()
		}),
		widget.NewToolbarAction(theme.ZoomFitIcon(), func() {
			t.session.Camera.Reset()
			redraw()
		}),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.DocumentSaveIcon(), func() {
			if t.OnExport != nil {
				t.OnExport()
			}
		}),
	)

	styleRow := container.NewHBox(
		widget.NewLabel("Stroke:"),
		container.NewHBox(t.swatches...),
		widget.NewLabel("Fill:"),
		t.fill,
		widget.NewLabel("Width:"),
		sized(120, t.width),
		widget.NewLabel("Rough:"),
		sized(100, t.roughness),
		widget.NewLabel("Opacity:"),
		sized(100, t.opacity),
		layout.NewSpacer(),
		widget.NewLabel("Grid:"),
		grid,
		look,
	)
	return container.NewVBox(
		container.NewHBox(actions, widget.NewSeparator(), t.toolGroup),
		styleRow,
	)
}
