package render

import (
	"image"
	"image/color"
	"image/draw"
	"math"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"CollabBoard/internal/camera"
	"CollabBoard/internal/state"
)

type vec struct{ x, y float64 }

// Canvas paints onto an RGBA image either in screen pixels or, after
// SetWorld(true), in world coordinates through the camera.
type Canvas struct {
	dst   *image.RGBA
	ras   *vector.Rasterizer
	cam   camera.Camera
	world bool
	faces *faceCache
}

func newCanvas(faces *faceCache) *Canvas {
	return &Canvas{ras: vector.NewRasterizer(0, 0), faces: faces}
}

func (c *Canvas) reset(dst *image.RGBA, cam camera.Camera) {
	c.dst = dst
	c.cam = cam
	c.world = false
}

// SetWorld switches between world and screen coordinates.
func (c *Canvas) SetWorld(on bool) { c.world = on }

func (c *Canvas) scale() float64 {
	if c.world {
		return c.cam.Zoom
	}
	return 1
}

func (c *Canvas) project(p state.Point) vec {
	if c.world {
		x, y := c.cam.WorldToScreen(p.X, p.Y)
		return vec{x, y}
	}
	return vec{p.X, p.Y}
}

// Clear fills the whole image with col.
func (c *Canvas) Clear(col color.Color) {
	draw.Draw(c.dst, c.dst.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

// FillRect fills an axis-aligned rect.
func (c *Canvas) FillRect(r state.Rect, col color.NRGBA) {
	a := c.project(state.Point{X: r.X, Y: r.Y})
	b := c.project(state.Point{X: r.X + r.W, Y: r.Y + r.H})
	rect := image.Rect(int(math.Floor(a.x)), int(math.Floor(a.y)), int(math.Ceil(b.x)), int(math.Ceil(b.y)))
	draw.Draw(c.dst, rect.Intersect(c.dst.Bounds()), image.NewUniform(col), image.Point{}, draw.Over)
}

// FillPolygon fills the closed polygon pts.
func (c *Canvas) FillPolygon(pts []state.Point, col color.NRGBA) {
	if len(pts) < 3 || col.A == 0 {
		return
	}
	poly := make([]vec, len(pts))
	for i, p := range pts {
		poly[i] = c.project(p)
	}
	c.fill([][]vec{poly}, col)
}

// FillCircle fills a circle of radius r (in current units).
func (c *Canvas) FillCircle(center state.Point, r float64, col color.NRGBA) {
	if col.A == 0 {
		return
	}
	cs := c.project(center)
	c.fill([][]vec{disc(cs, r*c.scale())}, col)
}

// StrokePolyline strokes pts with round joins and caps. width is in current
// units and never drops below one pixel on screen.
func (c *Canvas) StrokePolyline(pts []state.Point, closed bool, width float64, col color.NRGBA) {
	if len(pts) == 0 || col.A == 0 {
		return
	}
	hw := math.Max(width*c.scale(), 1) / 2
	screen := make([]vec, len(pts))
	for i, p := range pts {
		screen[i] = c.project(p)
	}
	c.fill(strokePolys(screen, closed, hw), col)
}

// StrokeDashedRect outlines r with a dash pattern. width and dash are in
// current units.
func (c *Canvas) StrokeDashedRect(r state.Rect, width, dash float64, col color.NRGBA) {
	r = r.Normalize()
	corners := []vec{
		c.project(state.Point{X: r.X, Y: r.Y}),
		c.project(state.Point{X: r.X + r.W, Y: r.Y}),
		c.project(state.Point{X: r.X + r.W, Y: r.Y + r.H}),
		c.project(state.Point{X: r.X, Y: r.Y + r.H}),
	}
	hw := math.Max(width*c.scale(), 1) / 2
	step := math.Max(dash*c.scale(), 1)
	var polys [][]vec
	for i := range corners {
		a, b := corners[i], corners[(i+1)%4]
		length := math.Hypot(b.x-a.x, b.y-a.y)
		if length == 0 {
			continue
		}
		ux, uy := (b.x-a.x)/length, (b.y-a.y)/length
		for t := 0.0; t < length; t += 2 * step {
			end := math.Min(t+step, length)
			p := vec{a.x + ux*t, a.y + uy*t}
			q := vec{a.x + ux*end, a.y + uy*end}
			polys = append(polys, segmentQuad(p, q, hw))
		}
	}
	c.fill(polys, col)
}

// DrawText draws each line of text with its top-left corner at p using Go
// Regular at size (scaled by zoom in world mode).
func (c *Canvas) DrawText(p state.Point, lines []string, size, lineHeight float64, col color.NRGBA) {
	px := size * c.scale()
	if px < 1 || col.A == 0 {
		return
	}
	face := c.faces.face(px)
	if face == nil {
		return
	}
	origin := c.project(p)
	ascent := float64(face.Metrics().Ascent) / 64
	step := lineHeight * c.scale()
	d := &font.Drawer{Dst: c.dst, Src: image.NewUniform(col), Face: face}
	for i, line := range lines {
		y := origin.y + ascent + float64(i)*step
		if y-ascent > float64(c.dst.Bounds().Dy()) {
			break
		}
		d.Dot = fixed.Point26_6{X: fixed.Int26_6(origin.x * 64), Y: fixed.Int26_6(y * 64)}
		d.DrawString(line)
	}
}

// DrawLabel draws s in the fixed 7x13 face with its baseline at (x, y) in
// screen pixels. It returns the advance width.
func (c *Canvas) DrawLabel(x, y float64, s string, col color.NRGBA) int {
	d := &font.Drawer{
		Dst:  c.dst,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(x), int(y)),
	}
	d.DrawString(s)
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

// DrawDrawable paints every op of d.
func (c *Canvas) DrawDrawable(d *Drawable) {
	for _, op := range d.Ops {
		switch op.Kind {
		case OpFill:
			c.FillPolygon(op.Points, op.Color)
		case OpStroke:
			c.StrokePolyline(op.Points, op.Closed, op.Width, op.Color)
		}
	}
}

// fill rasterizes screen-space polygons as one coverage pass so overlapping
// pieces of the same shape do not compound alpha.
func (c *Canvas) fill(polys [][]vec, col color.NRGBA) {
	b := c.dst.Bounds()
	w, h := b.Dx(), b.Dy()
	if w == 0 || h == 0 {
		return
	}
	c.ras.Reset(w, h)
	c.ras.DrawOp = draw.Over
	drawn := false
	for _, poly := range polys {
		poly = clipPolygon(poly, float64(w), float64(h))
		if len(poly) < 3 {
			continue
		}
		if signedArea(poly) < 0 {
			for i, j := 0, len(poly)-1; i < j; i, j = i+1, j-1 {
				poly[i], poly[j] = poly[j], poly[i]
			}
		}
		c.ras.MoveTo(float32(poly[0].x), float32(poly[0].y))
		for _, p := range poly[1:] {
			c.ras.LineTo(float32(p.x), float32(p.y))
		}
		c.ras.ClosePath()
		drawn = true
	}
	if drawn {
		c.ras.Draw(c.dst, b, image.NewUniform(col), image.Point{})
	}
}

func strokePolys(pts []vec, closed bool, hw float64) [][]vec {
	polys := make([][]vec, 0, 2*len(pts))
	n := len(pts)
	edges := n - 1
	if closed && n > 2 {
		edges = n
	}
	for i := 0; i < edges; i++ {
		a, b := pts[i], pts[(i+1)%n]
		if a == b {
			continue
		}
		polys = append(polys, segmentQuad(a, b, hw))
	}
	for _, p := range pts {
		polys = append(polys, disc(p, hw))
	}
	return polys
}

func segmentQuad(a, b vec, hw float64) []vec {
	l := math.Hypot(b.x-a.x, b.y-a.y)
	if l == 0 {
		return disc(a, hw)
	}
	nx, ny := -(b.y-a.y)/l*hw, (b.x-a.x)/l*hw
	return []vec{{a.x + nx, a.y + ny}, {b.x + nx, b.y + ny}, {b.x - nx, b.y - ny}, {a.x - nx, a.y - ny}}
}

func disc(c vec, r float64) []vec {
	n := 8
	if r > 4 {
		n = 16
	}
	if r > 32 {
		n = 48
	}
	out := make([]vec, n)
	for i := range out {
		a := 2 * math.Pi * float64(i) / float64(n)
		out[i] = vec{c.x + r*math.Cos(a), c.y + r*math.Sin(a)}
	}
	return out
}

func signedArea(poly []vec) float64 {
	var s float64
	for i := range poly {
		a, b := poly[i], poly[(i+1)%len(poly)]
		s += a.x*b.y - b.x*a.y
	}
	return s / 2
}

// clipPolygon clips poly to [0,w]x[0,h] (Sutherland-Hodgman).
func clipPolygon(poly []vec, w, h float64) []vec {
	inBounds := true
	for _, p := range poly {
		if p.x < 0 || p.y < 0 || p.x > w || p.y > h || math.IsNaN(p.x) || math.IsNaN(p.y) {
			inBounds = false
			break
		}
	}
	if inBounds {
		return poly
	}
	poly = clipEdge(poly, func(p vec) float64 { return p.x })
	poly = clipEdge(poly, func(p vec) float64 { return w - p.x })
	poly = clipEdge(poly, func(p vec) float64 { return p.y })
	poly = clipEdge(poly, func(p vec) float64 { return h - p.y })
	return poly
}

// clipEdge keeps the part of poly where dist >= 0.
func clipEdge(poly []vec, dist func(vec) float64) []vec {
	if len(poly) == 0 {
		return poly
	}
	out := make([]vec, 0, len(poly)+2)
	prev := poly[len(poly)-1]
	dp := dist(prev)
	for _, cur := range poly {
		dc := dist(cur)
		if math.IsNaN(dc) {
			return nil
		}
		if (dc >= 0) != (dp >= 0) {
			t := dp / (dp - dc)
			out = append(out, vec{prev.x + (cur.x-prev.x)*t, prev.y + (cur.y-prev.y)*t})
		}
		if dc >= 0 {
			out = append(out, cur)
		}
		prev, dp = cur, dc
	}
	return out
}

const maxFaces = 32

// faceCache holds Go Regular faces keyed by half-pixel size.
type faceCache struct {
	once  sync.Once
	font  *opentype.Font
	err   error
	mu    sync.Mutex
	faces map[int]font.Face
}

func newFaceCache() *faceCache {
	return &faceCache{faces: make(map[int]font.Face)}
}

func (fc *faceCache) face(px float64) font.Face {
	fc.once.Do(func() {
		fc.font, fc.err = opentype.Parse(goregular.TTF)
	})
	if fc.err != nil {
		return nil
	}
	key := int(math.Round(px * 2))
	fc.mu.Lock()
	defer fc.mu.Unlock()
	if f, ok := fc.faces[key]; ok {
		return f
	}
	f, err := opentype.NewFace(fc.font, &opentype.FaceOptions{
		Size:    float64(key) / 2,
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil
	}
	if len(fc.faces) >= maxFaces {
		for k, old := range fc.faces {
			old.Close()
			delete(fc.faces, k)
		}
	}
	fc.faces[key] = f
	return f
}

// MeasureText returns the width of the widest line and the total height of
// lines set at size with the given line height, in the same units as size.
func MeasureText(lines []string, size, lineHeight float64) (w, h float64) {
	if len(lines) == 0 {
		return 0, 0
	}
	face := sharedFaces.face(size)
	for _, line := range lines {
		var lw float64
		if face != nil {
			lw = float64(font.MeasureString(face, line)) / 64
		} else {
			lw = float64(len(line)) * size * 0.6
		}
		w = math.Max(w, lw)
	}
	return w, lineHeight * float64(len(lines))
}

var sharedFaces = newFaceCache()
