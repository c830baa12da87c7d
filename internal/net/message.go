package net

import (
	"CollabBoard/internal/presence"
	"CollabBoard/internal/state"
)

// MessageType tags every frame on the wire.
type MessageType string

const (
	// MsgHello announces a newly connected peer; others answer with their
	// snapshot and presence.
	MsgHello    MessageType = "hello"
	MsgSnapshot MessageType = "snapshot"
	MsgOps      MessageType = "ops"
	MsgPresence MessageType = "presence"
	// MsgLeave is sent by the hub when a peer's connection closes.
	MsgLeave MessageType = "leave"
)

// Message is one JSON frame.
type Message struct {
	Type     MessageType      `json:"type"`
	From     string           `json:"from,omitempty"`
	Ops      []state.Op       `json:"ops,omitempty"`
	Presence *presence.Record `json:"presence,omitempty"`
}
