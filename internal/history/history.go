// Package history implements linear undo/redo over local store mutations.
//
// Local mutations that follow each other within the capture window collapse
// into one group, so a multi-second drag or stroke is a single undo step.
// Remote mutations are never recorded.
//
// Undo is field-level: reverting a group restores only the fields that the
// group itself changed, on top of the element's current value. Fields edited
// concurrently by other peers keep their latest value.
package history

import (
	"log"
	"sync"
	"time"

	"CollabBoard/internal/state"
)

// DefaultCaptureWindow is the gap below which local mutations coalesce.
const DefaultCaptureWindow = 500 * time.Millisecond

type delta struct {
	before *state.Element
	after  *state.Element
}

type group struct {
	ids    []string
	deltas map[string]*delta
	last   time.Time
}

func (g *group) record(ch state.Change) {
	if d, ok := g.deltas[ch.ID]; ok {
		d.after = clonePtr(ch.After)
		return
	}
	g.ids = append(g.ids, ch.ID)
	g.deltas[ch.ID] = &delta{before: clonePtr(ch.Before), after: clonePtr(ch.After)}
}

// empty reports whether every element in g ended where it started, like a
// shape created and discarded within one gesture.
func (g *group) empty() bool {
	for _, d := range g.deltas {
		if d.before != nil || d.after != nil {
			return false
		}
	}
	return true
}

// Option configures a Manager.
type Option func(*Manager)

// WithCaptureWindow sets the coalescing window.
func WithCaptureWindow(d time.Duration) Option {
	return func(m *Manager) { m.window = d }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// Manager records local store changes and replays them backwards/forwards.
type Manager struct {
	store  *state.Store
	window time.Duration
	now    func() time.Time
	cancel func()

	mu       sync.Mutex
	undo     []*group
	redo     []*group
	applying bool
	split    bool
}

// New starts recording local mutations of store.
func New(store *state.Store, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		window: DefaultCaptureWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.cancel = store.Observe(m.capture)
	return m
}

func (m *Manager) capture(ev state.Event) {
	if !ev.Local {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applying {
		return
	}
	now := m.now()
	var g *group
	if n := len(m.undo); n > 0 && !m.split && now.Sub(m.undo[n-1].last) < m.window {
		g = m.undo[n-1]
	} else {
		g = &group{deltas: make(map[string]*delta)}
		m.undo = append(m.undo, g)
	}
	m.split = false
	for _, ch := range ev.Changes {
		g.record(ch)
	}
	g.last = now
	m.redo = nil
}

// StopCapturing makes the next local mutation start a new group.
func (m *Manager) StopCapturing() {
	m.mu.Lock()
	m.split = true
	m.mu.Unlock()
}

// Undo reverts the most recent group. It returns false if there is none.
func (m *Manager) Undo() bool {
	m.mu.Lock()
	m.trimEmpty()
	n := len(m.undo)
	if n == 0 {
		m.mu.Unlock()
		return false
	}
	g := m.undo[n-1]
	m.undo = m.undo[:n-1]
	m.applying = true
	m.mu.Unlock()

	m.replay(g, true)

	m.mu.Lock()
	m.applying = false
	m.redo = append(m.redo, g)
	m.split = true
	m.mu.Unlock()
	return true
}

// Redo reapplies the most recently undone group.
func (m *Manager) Redo() bool {
	m.mu.Lock()
	n := len(m.redo)
	if n == 0 {
		m.mu.Unlock()
		return false
	}
	g := m.redo[n-1]
	m.redo = m.redo[:n-1]
	m.applying = true
	m.mu.Unlock()

	m.replay(g, false)

	m.mu.Lock()
	m.applying = false
	m.undo = append(m.undo, g)
	m.split = true
	m.mu.Unlock()
	return true
}

// replay moves every element of g from one side of the group to the other.
func (m *Manager) replay(g *group, backwards bool) {
	err := m.store.Transact(func(tx *state.Tx) {
		for i := range g.ids {
			id := g.ids[i]
			if backwards {
				id = g.ids[len(g.ids)-1-i]
			}
			d := g.deltas[id]
			from, to := d.after, d.before
			if !backwards {
				from, to = d.before, d.after
			}
			restore(tx, id, from, to)
		}
	})
	if err != nil {
		log.Printf("[HISTORY] Replay failed: %v", err)
	}
}

// restore moves id from value `from` (what the group left) to value `to`.
func restore(tx *state.Tx, id string, from, to *state.Element) {
	cur, live := tx.Get(id)
	switch {
	case from == nil && to == nil:
		return
	case to == nil:
		if live {
			tx.Remove(id)
		}
	case from == nil || !live:
		if !live && from != nil {
			// Deleted by someone else since the group ran; their delete wins.
			return
		}
		e := to.Clone()
		if live {
			e.Version = cur.Version + 1
		}
		tx.Set(e)
	default:
		mask := state.Diff(*from, *to)
		if mask == 0 {
			return
		}
		e := cur.Clone()
		e.CopyFields(*to, mask)
		e.Version = cur.Version + 1
		tx.Set(e)
	}
}

// CanUndo reports whether Undo would do anything.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trimEmpty()
	return len(m.undo) > 0
}

// trimEmpty drops no-op groups from the top of the undo stack.
func (m *Manager) trimEmpty() {
	for n := len(m.undo); n > 0 && m.undo[n-1].empty(); n-- {
		m.undo = m.undo[:n-1]
	}
}

// CanRedo reports whether Redo would do anything.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// Close stops recording.
func (m *Manager) Close() {
	if m.cancel != nil {
		m.cancel()
	}
}

func clonePtr(e *state.Element) *state.Element {
	if e == nil {
		return nil
	}
	c := e.Clone()
	return &c
}
