// Package server defines the wire envelope and the event payload types
// exchanged between clients and the relay.
package server

import "encoding/json"

// Event names accepted from clients.
const (
	EventJoin          = "join"
	EventMessage       = "message"
	EventDirectMessage = "directMessage"
	EventTyping        = "typing"
)

// Event names emitted to clients.
const (
	EventAck     = "ack"
	EventSystem  = "system"
	EventUsers   = "users"
	EventHistory = "history"
)

// Message kinds carried in ChatMessage.Kind.
const (
	KindBroadcast = "broadcast"
	KindDirect    = "direct"
)

// Envelope frames every message on the wire as a named event with a JSON
// payload. An absent payload is legal for events whose fields all default.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JoinRequest registers the sender under a username in a room. Both fields
// are optional: an empty username falls back to a guest name derived from
// the connection id, an empty room falls back to the configured default.
type JoinRequest struct {
	Username string `json:"username,omitempty"`
	Room     string `json:"room,omitempty"`
}

// JoinAck acknowledges a join with the resolved placement.
type JoinAck struct {
	OK       bool   `json:"ok"`
	Room     string `json:"room"`
	Username string `json:"username"`
}

// MessageRequest carries a broadcast message. The room is implied by the
// sender's membership, never named by the client.
type MessageRequest struct {
	Text string `json:"text"`
}

// DirectMessageRequest carries a message for a single recipient, resolved by
// username within the sender's room.
type DirectMessageRequest struct {
	To   string `json:"toUsername"`
	Text string `json:"text"`
}

// TypingRequest signals that the sender started or stopped typing.
type TypingRequest struct {
	IsTyping bool `json:"isTyping"`
}

// ChatMessage is the outbound form of a broadcast or direct message. Ts is
// server-assigned at receipt, in Unix milliseconds. Target is set only for
// direct messages.
type ChatMessage struct {
	Username string `json:"username"`
	Text     string `json:"text"`
	Ts       int64  `json:"ts"`
	Kind     string `json:"kind"`
	Target   string `json:"target,omitempty"`
}

// SystemNotice is informational room text such as join and leave
// announcements.
type SystemNotice struct {
	Text string `json:"text"`
}

// UserList is the full member list of a room in join order, sent to every
// member on each membership change.
type UserList struct {
	Usernames []string `json:"usernames"`
}

// TypingNotice relays a typing indicator to the rest of the room.
type TypingNotice struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// HistoryReplay carries the recent broadcast messages of a room, oldest
// first, to a client that just joined.
type HistoryReplay struct {
	Messages []ChatMessage `json:"messages"`
}
