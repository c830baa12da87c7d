// Package state holds the replicated element store: a last-writer-wins map
// from element id to element whose merge is deterministic on every replica.
package state

import (
	"log"
	"sort"
	"sync"
)

// Change describes one id whose visible value changed. Before is nil for an
// insertion and After is nil for a removal.
type Change struct {
	ID     string
	Before *Element
	After  *Element
}

// Event is delivered to observers once per applied batch.
type Event struct {
	Local   bool
	Changes []Change
	// Ops are the replication ops produced (local) or consumed (remote).
	Ops []Op
}

// entry is the register for one id. Tombstones keep the last element so a
// later resurrection keeps its z-order and version lineage.
type entry struct {
	elem    Element
	deleted bool
	version int64
	site    string
	order   Stamp
}

// wins reports whether a write tagged (version, site) beats the entry.
func (en *entry) wins(version int64, site string) bool {
	if version != en.version {
		return version > en.version
	}
	return site > en.site
}

// Store is the replicated element store. The zero value is not usable; call
// NewStore.
type Store struct {
	site      string
	clock     *Clock
	mu        sync.RWMutex
	entries   map[string]*entry
	observers map[int]func(Event)
	nextObs   int
}

// NewStore returns an empty store for the given site id. An empty site gets a
// fresh uuid.
func NewStore(site string) *Store {
	if site == "" {
		site = NewSiteID()
	}
	return &Store{
		site:      site,
		clock:     NewClock(site),
		entries:   make(map[string]*entry),
		observers: make(map[int]func(Event)),
	}
}

// SiteID returns this replica's id.
func (s *Store) SiteID() string {
	return s.site
}

// Tx is a set of local mutations applied under one lock and delivered to
// observers as one event.
type Tx struct {
	s   *Store
	ev  *Event
	err error
}

// Get returns the live element for id, seeing earlier writes of the same tx.
func (tx *Tx) Get(id string) (Element, bool) {
	en, ok := tx.s.entries[id]
	if !ok || en.deleted {
		return Element{}, false
	}
	return en.elem.Clone(), true
}

// Set inserts or replaces the whole element for e.ID. The stored version is
// raised above any version this replica has seen for the id.
func (tx *Tx) Set(e Element) error {
	if err := e.Validate(); err != nil {
		if tx.err == nil {
			tx.err = err
		}
		return err
	}
	s := tx.s
	e = e.Clone()
	en, exists := s.entries[e.ID]
	var before *Element
	if exists {
		if e.Version <= en.version {
			e.Version = en.version + 1
		}
		if !en.deleted {
			prev := en.elem.Clone()
			before = &prev
		}
	} else {
		if e.Version <= 0 {
			e.Version = 1
		}
		en = &entry{order: s.clock.Tick()}
		s.entries[e.ID] = en
	}
	e.Site = s.site
	en.elem = e
	en.deleted = false
	en.version = e.Version
	en.site = s.site

	after := e.Clone()
	tx.ev.Changes = append(tx.ev.Changes, Change{ID: e.ID, Before: before, After: &after})
	opElem := e.Clone()
	tx.ev.Ops = append(tx.ev.Ops, Op{
		Type:    OpSet,
		Target:  e.ID,
		Element: &opElem,
		Version: e.Version,
		Site:    s.site,
		Order:   en.order,
	})
	return nil
}

// Remove tombstones id. It returns false if id is not live.
func (tx *Tx) Remove(id string) bool {
	s := tx.s
	en, ok := s.entries[id]
	if !ok || en.deleted {
		return false
	}
	prev := en.elem.Clone()
	en.deleted = true
	en.version++
	en.site = s.site
	tx.ev.Changes = append(tx.ev.Changes, Change{ID: id, Before: &prev})
	tx.ev.Ops = append(tx.ev.Ops, Op{
		Type:    OpRemove,
		Target:  id,
		Version: en.version,
		Site:    s.site,
		Order:   en.order,
	})
	return true
}

// Transact runs fn with the store locked and notifies observers once after
// it returns. It returns the first validation error fn hit, if any; writes
// that succeeded are kept.
func (s *Store) Transact(fn func(tx *Tx)) error {
	tx := &Tx{s: s, ev: &Event{Local: true}}
	func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		fn(tx)
	}()
	s.notify(*tx.ev)
	return tx.err
}

// Set inserts or replaces e as a single local mutation.
func (s *Store) Set(e Element) error {
	var err error
	s.Transact(func(tx *Tx) {
		err = tx.Set(e)
	})
	return err
}

// Remove tombstones id as a single local mutation.
func (s *Store) Remove(id string) bool {
	var removed bool
	s.Transact(func(tx *Tx) {
		removed = tx.Remove(id)
	})
	return removed
}

// Get returns the live element for id.
func (s *Store) Get(id string) (Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	en, ok := s.entries[id]
	if !ok || en.deleted {
		return Element{}, false
	}
	return en.elem.Clone(), true
}

// Version returns the highest version this replica has seen for id, live or
// tombstoned, and 0 for an unknown id.
func (s *Store) Version(id string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if en, ok := s.entries[id]; ok {
		return en.version
	}
	return 0
}

// GetAll returns every live element in z-order (bottom first).
func (s *Store) GetAll() []Element {
	s.mu.RLock()
	defer s.mu.RUnlock()
	live := make([]*entry, 0, len(s.entries))
	for _, en := range s.entries {
		if !en.deleted {
			live = append(live, en)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].order.Less(live[j].order)
	})
	out := make([]Element, len(live))
	for i, en := range live {
		out[i] = en.elem.Clone()
	}
	return out
}

// Len returns the number of live elements.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, en := range s.entries {
		if !en.deleted {
			n++
		}
	}
	return n
}

// ApplyRemote merges ops received from another replica. Ops that lose
// against the local register are dropped; applying the same op twice is a
// no-op.
func (s *Store) ApplyRemote(ops []Op) {
	ev := Event{}
	s.mu.Lock()
	for _, op := range ops {
		if ch, ok := s.merge(op); ok {
			ev.Changes = append(ev.Changes, ch)
			ev.Ops = append(ev.Ops, op)
		}
	}
	s.mu.Unlock()
	if len(ev.Changes) > 0 {
		s.notify(ev)
	}
}

// merge applies one remote op. mu must be held.
func (s *Store) merge(op Op) (Change, bool) {
	s.clock.Update(op.Order.Lamport)
	if op.Target == "" {
		log.Printf("[CRDT] Dropping op without target from site %s", op.Site)
		return Change{}, false
	}
	switch op.Type {
	case OpSet, OpRemove:
	default:
		log.Printf("[CRDT] Unknown op type %q for %s", op.Type, op.Target)
		return Change{}, false
	}
	if op.Type == OpSet {
		if op.Element == nil || op.Element.ID != op.Target {
			log.Printf("[CRDT] Dropping malformed set for %s from site %s", op.Target, op.Site)
			return Change{}, false
		}
		if err := op.Element.Validate(); err != nil {
			log.Printf("[CRDT] Dropping invalid element %s: %v", op.Target, err)
			return Change{}, false
		}
	}

	en, exists := s.entries[op.Target]
	if !exists {
		en = &entry{order: op.Order}
		s.entries[op.Target] = en
	} else {
		reordered := false
		if !op.Order.IsZero() && op.Order.Less(en.order) {
			en.order = op.Order
			reordered = true
		}
		if !en.wins(op.Version, op.Site) {
			if reordered && !en.deleted {
				cur := en.elem.Clone()
				return Change{ID: op.Target, Before: &cur, After: &cur}, true
			}
			return Change{}, false
		}
	}

	var before *Element
	if exists && !en.deleted {
		prev := en.elem.Clone()
		before = &prev
	}
	en.version = op.Version
	en.site = op.Site

	if op.Type == OpRemove {
		en.deleted = true
		if before == nil {
			// Tombstone for an id we never saw live; nothing visible changed.
			return Change{}, false
		}
		return Change{ID: op.Target, Before: before}, true
	}
	en.elem = op.Element.Clone()
	en.elem.Version = op.Version
	en.elem.Site = op.Site
	en.deleted = false
	after := en.elem.Clone()
	return Change{ID: op.Target, Before: before, After: &after}, true
}

// Snapshot returns the full register state, tombstones included, as ops that
// another replica can merge with ApplyRemote.
func (s *Store) Snapshot() []Op {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ops := make([]Op, 0, len(s.entries))
	for id, en := range s.entries {
		op := Op{Target: id, Version: en.version, Site: en.site, Order: en.order}
		if en.deleted {
			op.Type = OpRemove
		} else {
			op.Type = OpSet
			e := en.elem.Clone()
			op.Element = &e
		}
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i].Order.Less(ops[j].Order) })
	return ops
}

// Observe registers fn for every visible change batch, local or remote. The
// returned func unregisters it. fn runs on the goroutine that applied the
// batch, after the store lock is released.
func (s *Store) Observe(fn func(Event)) (cancel func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify(ev Event) {
	if len(ev.Changes) == 0 {
		return
	}
	s.mu.RLock()
	ids := make([]int, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Event), len(ids))
	for i, id := range ids {
		fns[i] = s.observers[id]
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}
