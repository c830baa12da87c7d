package tools

import (
	"time"

	"CollabBoard/internal/presence"
	"CollabBoard/internal/state"
)

const (
	LaserWindow   = 20
	LaserLifetime = 800 * time.Millisecond
)

// Laser publishes a fading pointer trail through presence. It never touches
// the element store.
type Laser struct {
	ctx      *Context
	points   []presence.LaserPoint
	drawing  bool
	animated bool
}

// NewLaser returns a laser tool.
func NewLaser(ctx *Context) *Laser {
	return &Laser{ctx: ctx}
}

func (t *Laser) OnPointerDown(ev PointerEvent) {
	t.drawing = true
	t.animated = true
	t.points = t.points[:0]
	t.add(ev.World)
}

func (t *Laser) OnPointerMove(ev PointerEvent) {
	if t.drawing {
		t.add(ev.World)
	}
}

func (t *Laser) OnPointerUp(PointerEvent) { t.drawing = false }

func (t *Laser) OnKeyDown(KeyEvent) {}

// Tick drops points older than the lifetime and clears the presence field once
// the trail is gone and the button is up.
func (t *Laser) Tick(now time.Time) {
	if !t.animated {
		return
	}
	cutoff := now.Add(-LaserLifetime).UnixMilli()
	kept := t.points[:0]
	for _, p := range t.points {
		if p.T > cutoff {
			kept = append(kept, p)
		}
	}
	pruned := len(kept) != len(t.points)
	t.points = kept
	switch {
	case len(t.points) == 0 && !t.drawing:
		t.animated = false
		t.ctx.setLaser(nil)
	case pruned:
		t.publish()
	}
}

func (t *Laser) OnDeactivate() {
	t.drawing = false
	t.animated = false
	t.points = nil
	t.ctx.setLaser(nil)
}

func (t *Laser) add(p state.Point) {
	t.points = append(t.points, presence.LaserPoint{X: p.X, Y: p.Y, T: t.ctx.now().UnixMilli()})
	t.publish()
}

func (t *Laser) publish() {
	pts := t.points
	if len(pts) > LaserWindow {
		pts = pts[len(pts)-LaserWindow:]
	}
	t.ctx.setLaser(pts)
}
