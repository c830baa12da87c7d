package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"math/rand/v2"
	"sync"

	"CollabBoard/internal/state"
)

var (
	ErrUnsupported = errors.New("element type has no sketch geometry")
	ErrEmptyStroke = errors.New("pencil stroke has no points")
)

// OpKind says how a DrawOp's points are painted.
type OpKind uint8

const (
	OpStroke OpKind = iota
	OpFill
)

// DrawOp is one path in world coordinates. Width is in world units and only
// applies to strokes.
type DrawOp struct {
	Kind   OpKind
	Points []state.Point
	Closed bool
	Width  float64
	Color  color.NRGBA
}

// Drawable is the generated geometry for one element.
type Drawable struct {
	Ops []DrawOp
}

// Generator turns an element into drawable geometry. Implementations may be
// stochastic; callers cache the result per element version.
type Generator interface {
	Generate(el state.Element) (*Drawable, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(el state.Element) (*Drawable, error)

func (f GeneratorFunc) Generate(el state.Element) (*Drawable, error) { return f(el) }

const (
	arrowHeadLength = 15.0
	curveSteps      = 8
)

// RoughGenerator produces hand-drawn looking geometry: every edge is drawn
// twice with endpoints jittered and the middle bowed, scaled by roughness.
type RoughGenerator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRoughGenerator returns a generator seeded with seed.
func NewRoughGenerator(seed uint64) *RoughGenerator {
	return &RoughGenerator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate implements Generator.
func (g *RoughGenerator) Generate(el state.Element) (*Drawable, error) {
	if err := el.Validate(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	stroke := withOpacity(mustColor(el.StrokeColor, color.NRGBA{A: 255}), el.Opacity)
	fill, hasFill := ParseColor(el.BackgroundColor)
	hasFill = hasFill && fill.A > 0
	fill = withOpacity(fill, el.Opacity)
	width := el.StrokeWidth
	if width <= 0 {
		width = 1
	}
	rough := math.Max(0, el.Roughness)

	d := &Drawable{}
	outline := func(pts []state.Point, closed bool) {
		passes := 2
		if rough == 0 {
			passes = 1
		}
		for i := 0; i < passes; i++ {
			d.Ops = append(d.Ops, DrawOp{Kind: OpStroke, Points: g.roughPath(pts, closed, rough), Width: width, Color: stroke})
		}
	}

	switch el.Type {
	case state.Rectangle:
		r := el.Bounds()
		poly := []state.Point{{X: r.X, Y: r.Y}, {X: r.X + r.W, Y: r.Y}, {X: r.X + r.W, Y: r.Y + r.H}, {X: r.X, Y: r.Y + r.H}}
		if hasFill {
			d.Ops = append(d.Ops, DrawOp{Kind: OpFill, Points: g.jitterAll(poly, rough*0.5), Closed: true, Color: fill})
		}
		outline(poly, true)
	case state.Diamond:
		r := el.Bounds()
		hw, hh := r.W/2, r.H/2
		poly := []state.Point{{X: r.X + hw, Y: r.Y}, {X: r.X + r.W, Y: r.Y + hh}, {X: r.X + hw, Y: r.Y + r.H}, {X: r.X, Y: r.Y + hh}}
		if hasFill {
			d.Ops = append(d.Ops, DrawOp{Kind: OpFill, Points: g.jitterAll(poly, rough*0.5), Closed: true, Color: fill})
		}
		outline(poly, true)
	case state.Ellipse:
		r := el.Bounds()
		if hasFill {
			d.Ops = append(d.Ops, DrawOp{Kind: OpFill, Points: g.ellipse(r, rough*0.5, 0), Closed: true, Color: fill})
		}
		passes := 2
		if rough == 0 {
			passes = 1
		}
		for i := 0; i < passes; i++ {
			overlap := 0.0
			if rough > 0 {
				overlap = g.rng.Float64() * 0.4
			}
			d.Ops = append(d.Ops, DrawOp{Kind: OpStroke, Points: g.ellipse(r, rough, overlap), Width: width, Color: stroke})
		}
	case state.Line:
		outline([]state.Point{el.Start(), el.End()}, false)
	case state.Arrow:
		a, b := el.Start(), el.End()
		outline([]state.Point{a, b}, false)
		angle := math.Atan2(b.Y-a.Y, b.X-a.X)
		head := []state.Point{
			b,
			{X: b.X - arrowHeadLength*math.Cos(angle-math.Pi/6), Y: b.Y - arrowHeadLength*math.Sin(angle-math.Pi/6)},
			{X: b.X - arrowHeadLength*math.Cos(angle+math.Pi/6), Y: b.Y - arrowHeadLength*math.Sin(angle+math.Pi/6)},
		}
		d.Ops = append(d.Ops, DrawOp{Kind: OpFill, Points: head, Closed: true, Color: stroke})
		d.Ops = append(d.Ops, DrawOp{Kind: OpStroke, Points: head, Closed: true, Width: width, Color: stroke})
	case state.Pencil:
		if len(el.Points) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrEmptyStroke, el.ID)
		}
		if len(el.Points) == 1 {
			d.Ops = append(d.Ops, DrawOp{Kind: OpStroke, Points: []state.Point{el.Points[0], el.Points[0]}, Width: width, Color: stroke})
			break
		}
		passes := 1
		if rough > 0 {
			passes = 2
		}
		for i := 0; i < passes; i++ {
			d.Ops = append(d.Ops, DrawOp{Kind: OpStroke, Points: g.jitterAll(el.Points, rough*0.5), Width: width, Color: stroke})
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, el.Type)
	}
	return d, nil
}

func (g *RoughGenerator) offset(max float64) float64 {
	if max == 0 {
		return 0
	}
	return (g.rng.Float64()*2 - 1) * max
}

func (g *RoughGenerator) jitterAll(pts []state.Point, amount float64) []state.Point {
	out := make([]state.Point, len(pts))
	for i, p := range pts {
		out[i] = state.Point{X: p.X + g.offset(amount), Y: p.Y + g.offset(amount)}
	}
	return out
}

// roughPath walks pts (closing the loop if asked) replacing each edge with a
// bowed, jittered curve.
func (g *RoughGenerator) roughPath(pts []state.Point, closed bool, rough float64) []state.Point {
	n := len(pts)
	if n < 2 {
		return append([]state.Point(nil), pts...)
	}
	edges := n - 1
	if closed {
		edges = n
	}
	out := make([]state.Point, 0, edges*curveSteps+1)
	for i := 0; i < edges; i++ {
		seg := g.roughLine(pts[i], pts[(i+1)%n], rough)
		if i > 0 {
			seg = seg[1:]
		}
		out = append(out, seg...)
	}
	return out
}

func (g *RoughGenerator) roughLine(a, b state.Point, rough float64) []state.Point {
	length := state.Dist(a, b)
	if rough == 0 || length == 0 {
		return []state.Point{a, b}
	}
	maxOff := 2 * rough
	if length < 200 {
		maxOff *= math.Max(length/200, 0.25)
	}
	bow := (length / 100) * rough * g.offset(1)
	nx, ny := -(b.Y-a.Y)/length, (b.X-a.X)/length

	p0 := state.Point{X: a.X + g.offset(maxOff), Y: a.Y + g.offset(maxOff)}
	p2 := state.Point{X: b.X + g.offset(maxOff), Y: b.Y + g.offset(maxOff)}
	mid := state.Point{
		X: (a.X+b.X)/2 + nx*bow + g.offset(maxOff),
		Y: (a.Y+b.Y)/2 + ny*bow + g.offset(maxOff),
	}
	out := make([]state.Point, 0, curveSteps+1)
	for i := 0; i <= curveSteps; i++ {
		t := float64(i) / curveSteps
		u := 1 - t
		out = append(out, state.Point{
			X: u*u*p0.X + 2*u*t*mid.X + t*t*p2.X,
			Y: u*u*p0.Y + 2*u*t*mid.Y + t*t*p2.Y,
		})
	}
	return out
}

// ellipse samples the ellipse inscribed in r with radial jitter. overlap
// extends the sweep past a full turn, as a hand would.
func (g *RoughGenerator) ellipse(r state.Rect, rough, overlap float64) []state.Point {
	cx, cy := r.X+r.W/2, r.Y+r.H/2
	rx, ry := r.W/2, r.H/2
	perimeter := math.Pi * (rx + ry)
	steps := int(math.Max(16, math.Min(perimeter/6, 128)))
	start := 0.0
	if rough > 0 {
		start = g.rng.Float64() * 2 * math.Pi
	}
	sweep := 2*math.Pi + overlap
	out := make([]state.Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		a := start + sweep*float64(i)/float64(steps)
		j := 1 + g.offset(rough*0.02)
		out = append(out, state.Point{X: cx + rx*j*math.Cos(a), Y: cy + ry*j*math.Sin(a)})
	}
	return out
}
