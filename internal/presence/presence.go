// Package presence carries ephemeral per-peer state: cursor, identity,
// selection and laser trail. Records are owned by one client each and are
// replaced wholesale on every update, never merged.
package presence

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"CollabBoard/internal/state"
)

var (
	ErrUnknownField = errors.New("unknown presence field")
	ErrFieldType    = errors.New("wrong value type for presence field")
)

// Field names one slot of a presence record.
type Field string

const (
	FieldCursor    Field = "cursor"
	FieldUser      Field = "user"
	FieldSelection Field = "selection"
	FieldLaser     Field = "laser"
)

// User is the identity shown next to a peer's cursor.
type User struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// LaserPoint is one captured laser position. T is unix milliseconds.
type LaserPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	T int64   `json:"t"`
}

// Record is one client's presence state. Nil/empty fields are absent.
type Record struct {
	Cursor    *state.Point `json:"cursor,omitempty"`
	User      User         `json:"user"`
	Selection []string     `json:"selection,omitempty"`
	Laser     []LaserPoint `json:"laser,omitempty"`
}

// Clone returns a deep copy of r.
func (r Record) Clone() Record {
	if r.Cursor != nil {
		c := *r.Cursor
		r.Cursor = &c
	}
	if r.Selection != nil {
		r.Selection = append([]string(nil), r.Selection...)
	}
	if r.Laser != nil {
		r.Laser = append([]LaserPoint(nil), r.Laser...)
	}
	return r
}

// Change is delivered to OnChange subscribers.
type Change struct {
	ClientID string
	Local    bool
	// Field is set for local field updates.
	Field   Field
	Removed bool
	Record  Record
}

var palette = []string{
	"#e03131", "#2f9e44", "#1971c2", "#f08c00",
	"#6741d9", "#0c8599", "#c2255c", "#5c940d",
}

// NewUser generates a session identity: a short display name and a colour.
func NewUser() User {
	return User{
		Name:  fmt.Sprintf("User %d", rand.IntN(100)),
		Color: palette[rand.IntN(len(palette))],
	}
}

type peer struct {
	rec  Record
	seen time.Time
}

// Channel holds the local record and the latest snapshot of every peer.
type Channel struct {
	clientID string
	now      func() time.Time

	mu        sync.RWMutex
	local     Record
	peers     map[string]*peer
	observers map[int]func(Change)
	nextObs   int
}

// NewChannel returns a channel for clientID with the given identity.
func NewChannel(clientID string, user User) *Channel {
	return &Channel{
		clientID:  clientID,
		now:       time.Now,
		local:     Record{User: user},
		peers:     make(map[string]*peer),
		observers: make(map[int]func(Change)),
	}
}

// SetClock replaces the time source used for liveness.
func (c *Channel) SetClock(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// ClientID returns the local client id.
func (c *Channel) ClientID() string {
	return c.clientID
}

// Local returns a copy of the local record.
func (c *Channel) Local() Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.local.Clone()
}

func (c *Channel) setLocal(f Field, mutate func(r *Record)) {
	c.mu.Lock()
	mutate(&c.local)
	rec := c.local.Clone()
	c.mu.Unlock()
	c.notify(Change{ClientID: c.clientID, Local: true, Field: f, Record: rec})
}

// SetCursor publishes the local cursor. nil clears it.
func (c *Channel) SetCursor(p *state.Point) {
	c.setLocal(FieldCursor, func(r *Record) {
		if p == nil {
			r.Cursor = nil
			return
		}
		cp := *p
		r.Cursor = &cp
	})
}

// SetUser replaces the local identity.
func (c *Channel) SetUser(u User) {
	c.setLocal(FieldUser, func(r *Record) { r.User = u })
}

// SetSelection publishes the local selection. An empty slice clears it.
func (c *Channel) SetSelection(ids []string) {
	c.setLocal(FieldSelection, func(r *Record) {
		if len(ids) == 0 {
			r.Selection = nil
			return
		}
		r.Selection = append([]string(nil), ids...)
	})
}

// SetLaser publishes the local laser trail. An empty slice clears it.
func (c *Channel) SetLaser(pts []LaserPoint) {
	c.setLocal(FieldLaser, func(r *Record) {
		if len(pts) == 0 {
			r.Laser = nil
			return
		}
		r.Laser = append([]LaserPoint(nil), pts...)
	})
}

// SetLocalField sets a field by name. A nil value clears the field.
func (c *Channel) SetLocalField(f Field, v any) error {
	switch f {
	case FieldCursor:
		switch p := v.(type) {
		case nil:
			c.SetCursor(nil)
		case *state.Point:
			c.SetCursor(p)
		case state.Point:
			c.SetCursor(&p)
		default:
			return fmt.Errorf("%w: %s got %T", ErrFieldType, f, v)
		}
	case FieldUser:
		u, ok := v.(User)
		if !ok {
			return fmt.Errorf("%w: %s got %T", ErrFieldType, f, v)
		}
		c.SetUser(u)
	case FieldSelection:
		switch ids := v.(type) {
		case nil:
			c.SetSelection(nil)
		case []string:
			c.SetSelection(ids)
		default:
			return fmt.Errorf("%w: %s got %T", ErrFieldType, f, v)
		}
	case FieldLaser:
		switch pts := v.(type) {
		case nil:
			c.SetLaser(nil)
		case []LaserPoint:
			c.SetLaser(pts)
		default:
			return fmt.Errorf("%w: %s got %T", ErrFieldType, f, v)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return nil
}

// ApplyRemote stores the latest record for a peer. Records for the local id
// are ignored: only the owner writes its record.
func (c *Channel) ApplyRemote(clientID string, rec Record) {
	if clientID == "" || clientID == c.clientID {
		return
	}
	c.mu.Lock()
	c.peers[clientID] = &peer{rec: rec.Clone(), seen: c.now()}
	c.mu.Unlock()
	c.notify(Change{ClientID: clientID, Record: rec.Clone()})
}

// Remove drops a peer's record, e.g. on disconnect.
func (c *Channel) Remove(clientID string) {
	c.mu.Lock()
	_, ok := c.peers[clientID]
	delete(c.peers, clientID)
	c.mu.Unlock()
	if ok {
		c.notify(Change{ClientID: clientID, Removed: true})
	}
}

// Expire removes peers whose record was not refreshed within timeout and
// returns their ids.
func (c *Channel) Expire(timeout time.Duration) []string {
	c.mu.Lock()
	now := c.now()
	var gone []string
	for id, p := range c.peers {
		if now.Sub(p.seen) > timeout {
			gone = append(gone, id)
			delete(c.peers, id)
		}
	}
	c.mu.Unlock()
	sort.Strings(gone)
	for _, id := range gone {
		c.notify(Change{ClientID: id, Removed: true})
	}
	return gone
}

// Peers returns a snapshot of every remote record.
func (c *Channel) Peers() map[string]Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Record, len(c.peers))
	for id, p := range c.peers {
		out[id] = p.rec.Clone()
	}
	return out
}

// States returns every known record, the local one included.
func (c *Channel) States() map[string]Record {
	out := c.Peers()
	out[c.clientID] = c.Local()
	return out
}

// OnChange registers fn for every local field update and remote change.
func (c *Channel) OnChange(fn func(Change)) (cancel func()) {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

func (c *Channel) notify(ch Change) {
	c.mu.RLock()
	ids := make([]int, 0, len(c.observers))
	for id := range c.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), len(ids))
	for i, id := range ids {
		fns[i] = c.observers[id]
	}
	c.mu.RUnlock()
	for _, fn := range fns {
		fn(ch)
	}
}
