package state

import (
	"sync"

	"github.com/google/uuid"
)

// NewSiteID returns a fresh, globally unique replica id.
func NewSiteID() string {
	return uuid.NewString()
}

// NewElementID returns a fresh element id.
func NewElementID() string {
	return uuid.NewString()
}

// Stamp is a Lamport timestamp tagged with the site that issued it.
type Stamp struct {
	Lamport uint64 `json:"lamport"`
	Site    string `json:"site"`
}

// Less orders stamps by counter, then by site id.
func (s Stamp) Less(o Stamp) bool {
	if s.Lamport != o.Lamport {
		return s.Lamport < o.Lamport
	}
	return s.Site < o.Site
}

// IsZero reports whether s was never issued.
func (s Stamp) IsZero() bool {
	return s.Lamport == 0 && s.Site == ""
}

// Clock is a Lamport clock for one site.
type Clock struct {
	site    string
	counter uint64
	mu      sync.Mutex
}

// NewClock returns a clock for the given site.
func NewClock(site string) *Clock {
	return &Clock{site: site}
}

// Tick increments the clock and returns the new stamp.
func (c *Clock) Tick() Stamp {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return Stamp{Lamport: c.counter, Site: c.site}
}

// Update moves the clock forward past a received counter.
func (c *Clock) Update(counter uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if counter > c.counter {
		c.counter = counter
	}
}
