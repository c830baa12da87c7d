package state

import (
	"errors"
	"fmt"
	"math"
)

// ElementType names the kind of drawable object.
type ElementType string

const (
	Rectangle ElementType = "rectangle"
	Ellipse   ElementType = "ellipse"
	Diamond   ElementType = "diamond"
	Line      ElementType = "line"
	Arrow     ElementType = "arrow"
	Pencil    ElementType = "pencil"
	Text      ElementType = "text"
)

var (
	ErrMissingID   = errors.New("element has no id")
	ErrUnknownType = errors.New("unknown element type")
	ErrNotFinite   = errors.New("element has non-finite geometry")
)

// Valid reports whether t is one of the known element types.
func (t ElementType) Valid() bool {
	switch t {
	case Rectangle, Ellipse, Diamond, Line, Arrow, Pencil, Text:
		return true
	}
	return false
}

// IsBox reports whether elements of this type keep a normalized,
// non-negative width and height.
func (t ElementType) IsBox() bool {
	switch t {
	case Rectangle, Ellipse, Diamond, Text:
		return true
	}
	return false
}

// IsSegment reports whether hit-testing should use distance to the stroke
// rather than the bounding box.
func (t ElementType) IsSegment() bool {
	return t == Line || t == Arrow || t == Pencil
}

// Style holds the visual properties shared by every element.
type Style struct {
	StrokeColor     string  `json:"stroke_color"`
	BackgroundColor string  `json:"background_color"`
	StrokeWidth     float64 `json:"stroke_width"`
	Roughness       float64 `json:"roughness"`
	Opacity         float64 `json:"opacity"`
}

// DefaultStyle is the style new elements start with.
func DefaultStyle() Style {
	return Style{
		StrokeColor:     "#000000",
		BackgroundColor: "transparent",
		StrokeWidth:     2,
		Roughness:       1,
		Opacity:         1,
	}
}

// Element is one drawable object in the shared scene.
type Element struct {
	ID       string      `json:"id"`
	Type     ElementType `json:"type"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Width    float64     `json:"width"`
	Height   float64     `json:"height"`
	Style
	Version  int64   `json:"version"`
	// Site is the replica whose write holds the register at Version. Two
	// sites can write the same version, so (Version, Site) names a value.
	Site     string  `json:"-"`
	AuthorID string  `json:"author_id"`
	Points   []Point `json:"points,omitempty"`
	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
}

// Clone returns a deep copy of e.
func (e Element) Clone() Element {
	if e.Points != nil {
		pts := make([]Point, len(e.Points))
		copy(pts, e.Points)
		e.Points = pts
	}
	return e
}

// Validate checks that e can be stored and drawn.
func (e Element) Validate() error {
	if e.ID == "" {
		return ErrMissingID
	}
	if !e.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	for _, v := range []float64{e.X, e.Y, e.Width, e.Height, e.StrokeWidth, e.Roughness, e.Opacity, e.FontSize} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s", ErrNotFinite, e.ID)
		}
	}
	for _, p := range e.Points {
		if !p.finite() {
			return fmt.Errorf("%w: %s", ErrNotFinite, e.ID)
		}
	}
	return nil
}

// Bounds returns the normalized world-space bounding box of e.
func (e Element) Bounds() Rect {
	if e.Type == Pencil && len(e.Points) > 0 {
		r, _ := BoundsOf(e.Points)
		return r
	}
	return Rect{X: e.X, Y: e.Y, W: e.Width, H: e.Height}.Normalize()
}

// Translate moves e by (dx, dy). Pencil strokes shift every point.
func (e *Element) Translate(dx, dy float64) {
	if e.Type == Pencil {
		for i := range e.Points {
			e.Points[i].X += dx
			e.Points[i].Y += dy
		}
	}
	e.X += dx
	e.Y += dy
}

// FitPoints sets the geometry of a pencil stroke to the bbox of its points.
func (e *Element) FitPoints() {
	if r, ok := BoundsOf(e.Points); ok {
		e.X, e.Y, e.Width, e.Height = r.X, r.Y, r.W, r.H
	}
}

// Start and End return the endpoints of a line or arrow.
func (e Element) Start() Point { return Point{X: e.X, Y: e.Y} }
func (e Element) End() Point   { return Point{X: e.X + e.Width, Y: e.Y + e.Height} }

// Field is a bitmask naming groups of element fields.
type Field uint16

const (
	FieldType Field = 1 << iota
	FieldGeometry
	FieldPoints
	FieldStrokeColor
	FieldBackgroundColor
	FieldStrokeWidth
	FieldRoughness
	FieldOpacity
	FieldText
	FieldFontSize
)

// FieldStyle covers every style field.
const FieldStyle = FieldStrokeColor | FieldBackgroundColor | FieldStrokeWidth | FieldRoughness | FieldOpacity

// Diff returns the fields that differ between a and b. ID, Version, Site and
// AuthorID are identity/bookkeeping and never reported.
func Diff(a, b Element) Field {
	var f Field
	if a.Type != b.Type {
		f |= FieldType
	}
	if a.X != b.X || a.Y != b.Y || a.Width != b.Width || a.Height != b.Height {
		f |= FieldGeometry
	}
	if !pointsEqual(a.Points, b.Points) {
		f |= FieldPoints
	}
	if a.StrokeColor != b.StrokeColor {
		f |= FieldStrokeColor
	}
	if a.BackgroundColor != b.BackgroundColor {
		f |= FieldBackgroundColor
	}
	if a.StrokeWidth != b.StrokeWidth {
		f |= FieldStrokeWidth
	}
	if a.Roughness != b.Roughness {
		f |= FieldRoughness
	}
	if a.Opacity != b.Opacity {
		f |= FieldOpacity
	}
	if a.Text != b.Text {
		f |= FieldText
	}
	if a.FontSize != b.FontSize {
		f |= FieldFontSize
	}
	return f
}

// CopyFields copies the fields named by f from src into e.
func (e *Element) CopyFields(src Element, f Field) {
	if f&FieldType != 0 {
		e.Type = src.Type
	}
	if f&FieldGeometry != 0 {
		e.X, e.Y, e.Width, e.Height = src.X, src.Y, src.Width, src.Height
	}
	if f&FieldPoints != 0 {
		e.Points = src.Clone().Points
	}
	if f&FieldStrokeColor != 0 {
		e.StrokeColor = src.StrokeColor
	}
	if f&FieldBackgroundColor != 0 {
		e.BackgroundColor = src.BackgroundColor
	}
	if f&FieldStrokeWidth != 0 {
		e.StrokeWidth = src.StrokeWidth
	}
	if f&FieldRoughness != 0 {
		e.Roughness = src.Roughness
	}
	if f&FieldOpacity != 0 {
		e.Opacity = src.Opacity
	}
	if f&FieldText != 0 {
		e.Text = src.Text
	}
	if f&FieldFontSize != 0 {
		e.FontSize = src.FontSize
	}
}

func pointsEqual(a, b []Point) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// OpType is the kind of replicated operation.
type OpType string

const (
	OpSet    OpType = "set"
	OpRemove OpType = "remove"
)

// Op is one replicated mutation. Element is nil for removals.
type Op struct {
	Type    OpType   `json:"type"`
	Target  string   `json:"target"`
	Element *Element `json:"element,omitempty"`
	Version int64    `json:"version"`
	Site    string   `json:"site"`
	Order   Stamp    `json:"order"`
}
