// Package render draws the scene: background, grid, elements, laser trails,
// selections and remote cursors, into an RGBA frame.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"CollabBoard/internal/camera"
	"CollabBoard/internal/presence"
	"CollabBoard/internal/state"
)

var ErrRenderPanic = errors.New("panic while drawing element")

// Theme selects the background palette.
type Theme int

const (
	ThemeLight Theme = iota
	ThemeDark
)

// ParseTheme maps "light"/"dark" to a Theme.
func ParseTheme(s string) (Theme, bool) {
	switch strings.ToLower(s) {
	case "light", "":
		return ThemeLight, true
	case "dark":
		return ThemeDark, true
	}
	return ThemeLight, false
}

func (t Theme) String() string {
	if t == ThemeDark {
		return "dark"
	}
	return "light"
}

// GridMode selects the background grid.
type GridMode int

const (
	GridLines GridMode = iota
	GridDots
	GridNone
)

// ParseGridMode maps "lines"/"dots"/"none" to a GridMode.
func ParseGridMode(s string) (GridMode, bool) {
	switch strings.ToLower(s) {
	case "lines", "":
		return GridLines, true
	case "dots":
		return GridDots, true
	case "none", "off":
		return GridNone, true
	}
	return GridLines, false
}

func (g GridMode) String() string {
	switch g {
	case GridDots:
		return "dots"
	case GridNone:
		return "none"
	}
	return "lines"
}

const (
	// GridSize is the base world spacing of the grid.
	GridSize = 40.0

	DefaultLaserLifetime = 800 * time.Millisecond
	TextLineHeight       = 1.2

	laserWidth       = 4.0
	selectionPadding = 6.0
	selectionDash    = 5.0
	selectionWidth   = 1.5
)

var (
	lightBackground = color.NRGBA{R: 0xf8, G: 0xf9, B: 0xfa, A: 0xff}
	darkBackground  = color.NRGBA{R: 0x12, G: 0x12, B: 0x12, A: 0xff}
	lightGrid       = color.NRGBA{R: 0xdd, G: 0xdd, B: 0xdd, A: 0xff}
	darkGrid        = color.NRGBA{R: 0x2a, G: 0x2a, B: 0x2a, A: 0xff}
	accent          = color.NRGBA{R: 0x69, G: 0x65, B: 0xdb, A: 0xff}
	laserColor      = color.NRGBA{R: 0xff, A: 0xff}
	white           = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Scene is the element source, in z-order.
type Scene interface {
	GetAll() []state.Element
}

// Peers is the presence source.
type Peers interface {
	ClientID() string
	States() map[string]presence.Record
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithGenerator replaces the default rough generator.
func WithGenerator(g Generator) Option {
	return func(r *Renderer) { r.gen = g }
}

// WithTheme sets the initial theme.
func WithTheme(t Theme) Option {
	return func(r *Renderer) { r.theme = t }
}

// WithGridMode sets the initial grid mode.
func WithGridMode(g GridMode) Option {
	return func(r *Renderer) { r.grid = g }
}

// WithLaserLifetime sets how long laser points stay visible.
func WithLaserLifetime(d time.Duration) Option {
	return func(r *Renderer) { r.laserLifetime = d }
}

// Renderer draws frames of the scene. Frame must be called from one
// goroutine; Snapshot may be called from any.
type Renderer struct {
	scene Scene
	peers Peers
	cam   *camera.Camera

	gen           Generator
	cache         *Cache
	canvas        *Canvas
	theme         Theme
	grid          GridMode
	laserLifetime time.Duration

	back *image.RGBA
	// failed remembers the version each broken element last failed at, so a
	// fault is logged once per version rather than once per frame.
	failed map[string]int64

	mu    sync.Mutex
	front *image.RGBA
}

// New returns a renderer over scene and peers viewed through cam.
func New(scene Scene, peers Peers, cam *camera.Camera, opts ...Option) *Renderer {
	r := &Renderer{
		scene:         scene,
		peers:         peers,
		cam:           cam,
		gen:           NewRoughGenerator(uint64(time.Now().UnixNano())),
		cache:         NewCache(),
		canvas:        newCanvas(sharedFaces),
		laserLifetime: DefaultLaserLifetime,
		failed:        make(map[string]int64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetTheme switches the background palette.
func (r *Renderer) SetTheme(t Theme) { r.theme = t }

// Theme returns the current theme.
func (r *Renderer) Theme() Theme { return r.theme }

// SetGridMode switches the grid style.
func (r *Renderer) SetGridMode(g GridMode) { r.grid = g }

// GridMode returns the current grid style.
func (r *Renderer) GridMode() GridMode { return r.grid }

// Cache exposes the drawable cache.
func (r *Renderer) Cache() *Cache { return r.cache }

// Frame renders a w×h frame at time now and returns it. The returned image
// stays valid until the next call to Frame.
func (r *Renderer) Frame(w, h int, now time.Time) *image.RGBA {
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if r.back == nil || r.back.Bounds().Dx() != w || r.back.Bounds().Dy() != h {
		r.back = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	cam := *r.cam
	c := r.canvas
	c.reset(r.back, cam)

	if r.theme == ThemeDark {
		c.Clear(darkBackground)
	} else {
		c.Clear(lightBackground)
	}
	r.drawGrid(c, cam, float64(w), float64(h))

	c.SetWorld(true)
	elements := r.scene.GetAll()
	live := make(map[string]struct{}, len(elements))
	byID := make(map[string]state.Element, len(elements))
	for _, el := range elements {
		live[el.ID] = struct{}{}
		byID[el.ID] = el
		if err := r.drawElement(c, el); err != nil {
			if v, seen := r.failed[el.ID]; !seen || v != el.Version {
				log.Printf("[RENDER] Skipping element %s: %v", el.ID, err)
				r.failed[el.ID] = el.Version
			}
		}
	}
	for id := range r.failed {
		if _, ok := live[id]; !ok {
			delete(r.failed, id)
		}
	}
	r.cache.Prune(live)

	var states map[string]presence.Record
	var self string
	if r.peers != nil {
		states = r.peers.States()
		self = r.peers.ClientID()
	}
	r.drawLasers(c, states, now, cam.Zoom)
	r.drawSelections(c, states, self, byID, cam.Zoom)

	c.SetWorld(false)
	r.drawCursors(c, states, self)

	r.mu.Lock()
	r.front, r.back = r.back, r.front
	front := r.front
	r.mu.Unlock()
	return front
}

// Snapshot returns a copy of the last completed frame, or nil before the
// first frame.
func (r *Renderer) Snapshot() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.front == nil {
		return nil
	}
	cp := image.NewRGBA(r.front.Bounds())
	copy(cp.Pix, r.front.Pix)
	return cp
}

func (r *Renderer) drawElement(c *Canvas, el state.Element) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrRenderPanic, p)
		}
	}()
	if el.Type == state.Text {
		return drawText(c, el)
	}
	d, ok := r.cache.Get(el)
	if !ok {
		d, err = r.gen.Generate(el)
		if err != nil {
			return err
		}
		r.cache.Put(el, d)
	}
	c.DrawDrawable(d)
	return nil
}

func drawText(c *Canvas, el state.Element) error {
	if err := el.Validate(); err != nil {
		return err
	}
	size := el.FontSize
	if size <= 0 {
		size = 20
	}
	col := withOpacity(mustColor(el.StrokeColor, color.NRGBA{A: 255}), el.Opacity)
	c.DrawText(state.Point{X: el.X, Y: el.Y}, strings.Split(el.Text, "\n"), size, size*TextLineHeight, col)
	return nil
}

// GridStep returns the world spacing of grid lines at zoom: GridSize scaled by
// a power of two so the on-screen spacing lies in [GridSize, 2*GridSize).
func GridStep(zoom float64) float64 {
	if zoom <= 0 || math.IsNaN(zoom) || math.IsInf(zoom, 0) {
		return GridSize
	}
	step := GridSize
	for step*zoom < GridSize {
		step *= 2
	}
	for step*zoom >= 2*GridSize {
		step /= 2
	}
	return step
}

func (r *Renderer) drawGrid(c *Canvas, cam camera.Camera, w, h float64) {
	if r.grid == GridNone {
		return
	}
	col := lightGrid
	if r.theme == ThemeDark {
		col = darkGrid
	}
	step := GridStep(cam.Zoom)
	minX, minY, maxX, maxY := cam.VisibleBounds(w, h)
	startX := math.Floor(minX/step) * step
	startY := math.Floor(minY/step) * step

	switch r.grid {
	case GridLines:
		for x := startX; x <= maxX; x += step {
			sx, _ := cam.WorldToScreen(x, 0)
			c.FillRect(state.Rect{X: math.Round(sx), Y: 0, W: 1, H: h}, col)
		}
		for y := startY; y <= maxY; y += step {
			_, sy := cam.WorldToScreen(0, y)
			c.FillRect(state.Rect{X: 0, Y: math.Round(sy), W: w, H: 1}, col)
		}
	case GridDots:
		for x := startX; x <= maxX; x += step {
			for y := startY; y <= maxY; y += step {
				sx, sy := cam.WorldToScreen(x, y)
				c.FillRect(state.Rect{X: math.Round(sx) - 1, Y: math.Round(sy) - 1, W: 2, H: 2}, col)
			}
		}
	}
}

// LaserOpacity returns the opacity of a laser point of the given age.
func LaserOpacity(age, lifetime time.Duration) float64 {
	if lifetime <= 0 || age >= lifetime {
		return 0
	}
	if age < 0 {
		return 1
	}
	return 1 - float64(age)/float64(lifetime)
}

func (r *Renderer) drawLasers(c *Canvas, states map[string]presence.Record, now time.Time, zoom float64) {
	nowMs := now.UnixMilli()
	for _, rec := range states {
		pts := rec.Laser
		for i := 1; i < len(pts); i++ {
			age := time.Duration(nowMs-pts[i].T) * time.Millisecond
			o := LaserOpacity(age, r.laserLifetime)
			if o <= 0 {
				continue
			}
			seg := []state.Point{{X: pts[i-1].X, Y: pts[i-1].Y}, {X: pts[i].X, Y: pts[i].Y}}
			c.StrokePolyline(seg, false, laserWidth*o/zoom, withOpacity(laserColor, o))
		}
	}
}

func (r *Renderer) drawSelections(c *Canvas, states map[string]presence.Record, self string, elements map[string]state.Element, zoom float64) {
	for id, rec := range states {
		if len(rec.Selection) == 0 {
			continue
		}
		col := accent
		if id != self {
			col = mustColor(rec.User.Color, accent)
		}
		for _, sel := range rec.Selection {
			el, ok := elements[sel]
			if !ok {
				continue
			}
			box := el.Bounds().Expand(selectionPadding / zoom)
			c.StrokeDashedRect(box, selectionWidth/zoom, selectionDash/zoom, col)
		}
	}
}

var cursorGlyph = []state.Point{{X: 0, Y: 0}, {X: 0, Y: 16}, {X: 4.5, Y: 12}, {X: 8, Y: 19}, {X: 10.5, Y: 18}, {X: 7, Y: 11}, {X: 12, Y: 11}}

func (r *Renderer) drawCursors(c *Canvas, states map[string]presence.Record, self string) {
	cam := c.cam
	for id, rec := range states {
		if id == self || rec.Cursor == nil {
			continue
		}
		sx, sy := cam.WorldToScreen(rec.Cursor.X, rec.Cursor.Y)
		col := mustColor(rec.User.Color, accent)
		glyph := make([]state.Point, len(cursorGlyph))
		for i, p := range cursorGlyph {
			glyph[i] = state.Point{X: sx + p.X, Y: sy + p.Y}
		}
		c.FillPolygon(glyph, col)
		c.StrokePolyline(glyph, true, 1, white)

		name := rec.User.Name
		if name == "" {
			name = id
		}
		tagW := float64(len(name)*7 + 8)
		c.FillRect(state.Rect{X: sx + 10, Y: sy + 18, W: tagW, H: 17}, col)
		c.DrawLabel(sx+14, sy+31, name, white)
	}
}
