// Package server routes inbound chat events to the right recipients via the
// Router type, using the registry for presence and history state.
package server

import (
	"strings"
	"time"
)

// Emitter is the outbound side of the transport: fire-and-forget delivery of
// one event to one connection. Implementations must never block the caller
// on a slow consumer, and a failed delivery to one recipient must not affect
// the others.
type Emitter interface {
	Emit(connID, event string, payload any)
}

// Router turns one inbound event into zero or more emissions. Every method
// other than Join is a no-op when the connection is absent from the
// registry; the protocol stays tolerant of client-side ordering races, such
// as a typing event arriving before the join ack was processed.
type Router struct {
	registry *Registry
	emitter  Emitter
}

// NewRouter wires a router to its registry and outbound emitter.
func NewRouter(registry *Registry, emitter Emitter) *Router {
	return &Router{registry: registry, emitter: emitter}
}

// Join places the connection in a room and notifies the room. The ack is
// both emitted to the joiner and returned, followed on the wire by the
// updated user list and the history replay; the other members get the join
// announcement and the user list. When the join moved the connection out of
// another room, that room is notified of the departure first.
func (rt *Router) Join(connID string, req JoinRequest) JoinAck {
	res := rt.registry.Join(connID, req.Username, req.Room)

	if prev := res.Previous; prev != nil && prev.Room != res.Room {
		rt.announceLeave(*prev)
	}

	ack := JoinAck{OK: true, Room: res.Room, Username: res.Username}
	rt.emitter.Emit(connID, EventAck, ack)

	joined := SystemNotice{Text: res.Username + " has joined the room."}
	users := UserList{Usernames: usernames(res.Members)}
	for _, m := range res.Members {
		if m.ConnID != connID {
			rt.emitter.Emit(m.ConnID, EventSystem, joined)
		}
		rt.emitter.Emit(m.ConnID, EventUsers, users)
	}

	rt.emitter.Emit(connID, EventHistory, HistoryReplay{Messages: res.History})
	return ack
}

// Message broadcasts text to every member of the sender's room, the sender
// included, and records it in the room's replay buffer. Fan-out happens
// under the registry lock, so every member observes broadcasts in history
// order. Empty text and unregistered senders are silent no-ops.
func (rt *Router) Message(connID, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	roomName, username, ok := rt.registry.Lookup(connID)
	if !ok {
		return
	}

	msg := ChatMessage{
		Username: username,
		Text:     text,
		Ts:       time.Now().UnixMilli(),
		Kind:     KindBroadcast,
	}
	rt.registry.Broadcast(roomName, msg, func(m Member) {
		rt.emitter.Emit(m.ConnID, EventMessage, msg)
	})
}

// DirectMessage delivers text to the member of the sender's room registered
// under to, and echoes it to the sender. It never touches history. An
// unresolvable recipient drops the message without signalling the sender.
func (rt *Router) DirectMessage(connID, to, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	roomName, username, ok := rt.registry.Lookup(connID)
	if !ok {
		return
	}
	targetID, ok := rt.registry.ResolveUsername(roomName, to)
	if !ok {
		return
	}

	msg := ChatMessage{
		Username: username,
		Text:     text,
		Ts:       time.Now().UnixMilli(),
		Kind:     KindDirect,
		Target:   to,
	}
	rt.emitter.Emit(targetID, EventMessage, msg)
	if targetID != connID {
		rt.emitter.Emit(connID, EventMessage, msg)
	}
}

// Typing relays a typing indicator to the other members of the sender's
// room, never back to the sender.
func (rt *Router) Typing(connID string, isTyping bool) {
	roomName, username, ok := rt.registry.Lookup(connID)
	if !ok {
		return
	}

	notice := TypingNotice{Username: username, IsTyping: isTyping}
	for _, m := range rt.registry.Members(roomName) {
		if m.ConnID != connID {
			rt.emitter.Emit(m.ConnID, EventTyping, notice)
		}
	}
}

// Disconnect removes the connection from its room and notifies the
// remaining members. A connection that never joined produces no emissions.
func (rt *Router) Disconnect(connID string) {
	res, ok := rt.registry.Leave(connID)
	if !ok {
		return
	}
	rt.announceLeave(res)
}

func (rt *Router) announceLeave(res LeaveResult) {
	left := SystemNotice{Text: res.Username + " has left the room."}
	users := UserList{Usernames: usernames(res.Members)}
	for _, m := range res.Members {
		rt.emitter.Emit(m.ConnID, EventSystem, left)
		rt.emitter.Emit(m.ConnID, EventUsers, users)
	}
}
