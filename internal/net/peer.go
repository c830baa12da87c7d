package net

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gorilla/websocket"

	"CollabBoard/internal/presence"
	"CollabBoard/internal/state"
)

// Status is the connection state reported to OnStatus.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

const outboxSize = 1024

// PeerOptions tunes a Peer. Zero values take defaults.
type PeerOptions struct {
	HeartbeatInterval time.Duration
	PresenceTimeout   time.Duration
	MinBackoff        time.Duration
	MaxBackoff        time.Duration
	Dialer            *websocket.Dialer
	OnStatus          func(Status, error)
}

func (o *PeerOptions) setDefaults() {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 2 * time.Second
	}
	if o.PresenceTimeout <= 0 {
		o.PresenceTimeout = 10 * time.Second
	}
	if o.MinBackoff <= 0 {
		o.MinBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 10 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
}

// Peer replicates one store and presence channel through a hub room.
type Peer struct {
	url   string
	store *state.Store
	pres  *presence.Channel
	opts  PeerOptions
	out   chan Message
}

// NewPeer returns a peer for the room at url (ws://host:port/rooms/name).
func NewPeer(url string, store *state.Store, pres *presence.Channel, opts PeerOptions) *Peer {
	opts.setDefaults()
	return &Peer{
		url:   url,
		store: store,
		pres:  pres,
		opts:  opts,
		out:   make(chan Message, outboxSize),
	}
}

func (p *Peer) status(s Status, err error) {
	if p.opts.OnStatus != nil {
		p.opts.OnStatus(s, err)
	}
}

// enqueue queues m for the current or next connection. Frames are dropped
// when the queue is full; the snapshot sent on every connect covers them.
func (p *Peer) enqueue(m Message) {
	select {
	case p.out <- m:
	default:
		log.Printf("[PEER] Outbox full, dropping %s frame", m.Type)
	}
}

// Run connects and keeps reconnecting with exponential backoff until ctx is
// done. It always returns ctx.Err().
func (p *Peer) Run(ctx context.Context) error {
	cancelStore := p.store.Observe(func(ev state.Event) {
		if ev.Local && len(ev.Ops) > 0 {
			p.enqueue(Message{Type: MsgOps, From: p.pres.ClientID(), Ops: ev.Ops})
		}
	})
	defer cancelStore()
	cancelPres := p.pres.OnChange(func(ch presence.Change) {
		if ch.Local {
			rec := ch.Record
			p.enqueue(Message{Type: MsgPresence, From: p.pres.ClientID(), Presence: &rec})
		}
	})
	defer cancelPres()

	backoff := p.opts.MinBackoff
	for {
		p.status(StatusConnecting, nil)
		conn, _, err := p.opts.Dialer.DialContext(ctx, p.url, nil)
		if err == nil {
			log.Printf("[PEER] Connected to %s", p.url)
			p.status(StatusConnected, nil)
			backoff = p.opts.MinBackoff
			err = p.session(ctx, conn)
			p.dropPeers()
		}
		if ctx.Err() != nil {
			p.status(StatusDisconnected, nil)
			return ctx.Err()
		}
		log.Printf("[PEER] Connection to %s lost: %v (retrying in %s)", p.url, err, backoff)
		p.status(StatusDisconnected, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > p.opts.MaxBackoff {
			backoff = p.opts.MaxBackoff
		}
	}
}

func (p *Peer) hello() []Message {
	rec := p.pres.Local()
	from := p.pres.ClientID()
	return []Message{
		{Type: MsgHello, From: from},
		{Type: MsgSnapshot, From: from, Ops: p.store.Snapshot()},
		{Type: MsgPresence, From: from, Presence: &rec},
	}
}

func (p *Peer) reply() {
	rec := p.pres.Local()
	from := p.pres.ClientID()
	p.enqueue(Message{Type: MsgSnapshot, From: from, Ops: p.store.Snapshot()})
	p.enqueue(Message{Type: MsgPresence, From: from, Presence: &rec})
}

// dropPeers forgets every remote record. Without a connection nothing
// refreshes them, and the room announces who is present on reconnect.
func (p *Peer) dropPeers() {
	gone := p.pres.Peers()
	for id := range gone {
		p.pres.Remove(id)
	}
	if len(gone) > 0 {
		log.Printf("[PEER] Cleared presence of %d peers", len(gone))
	}
}

// session runs one connection and closes it. All writes happen on this
// goroutine; it returns only after the reader has stopped.
func (p *Peer) session(ctx context.Context, conn *websocket.Conn) error {
	defer conn.Close()
	conn.SetReadLimit(maxMessageSize)
	write := func(m Message) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(m)
	}
	for _, m := range p.hello() {
		if err := write(m); err != nil {
			return fmt.Errorf("send %s: %w", m.Type, err)
		}
	}

	readErr := make(chan error, 1)
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				readErr <- err
				return
			}
			var m Message
			if err := json.Unmarshal(data, &m); err != nil {
				log.Printf("[PEER] Ignoring malformed frame: %v", err)
				continue
			}
			p.handle(m)
		}
	}()
	defer func() {
		conn.Close()
		<-readDone
	}()

	heartbeat := time.NewTicker(p.opts.HeartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return ctx.Err()
		case err := <-readErr:
			return err
		case m := <-p.out:
			if err := write(m); err != nil {
				return fmt.Errorf("send %s: %w", m.Type, err)
			}
		case <-heartbeat.C:
			rec := p.pres.Local()
			if err := write(Message{Type: MsgPresence, From: p.pres.ClientID(), Presence: &rec}); err != nil {
				return fmt.Errorf("heartbeat: %w", err)
			}
			if gone := p.pres.Expire(p.opts.PresenceTimeout); len(gone) > 0 {
				log.Printf("[PEER] Presence expired for %v", gone)
			}
		}
	}
}

var errNoSender = errors.New("frame has no sender")

func (p *Peer) handle(m Message) {
	if m.From == p.pres.ClientID() {
		return
	}
	switch m.Type {
	case MsgHello:
		p.reply()
	case MsgSnapshot, MsgOps:
		p.store.ApplyRemote(m.Ops)
	case MsgPresence:
		if m.Presence == nil || m.From == "" {
			log.Printf("[PEER] Ignoring presence: %v", errNoSender)
			return
		}
		p.pres.ApplyRemote(m.From, *m.Presence)
	case MsgLeave:
		p.pres.Remove(m.From)
	default:
		log.Printf("[PEER] Ignoring unknown frame type %q", m.Type)
	}
}
