// Package server tracks which connection is joined to which room under which
// username via the Registry type, the single source of truth for presence.
package server

import (
	"strings"
	"sync"
)

// Member pairs a connection id with the username it registered under.
type Member struct {
	ConnID   string
	Username string
}

type room struct {
	members []Member // join order
	history *historyBuffer
}

func (r *room) usernames() []string {
	names := make([]string, len(r.members))
	for i, m := range r.members {
		names[i] = m.Username
	}
	return names
}

func (r *room) memberSnapshot() []Member {
	out := make([]Member, len(r.members))
	copy(out, r.members)
	return out
}

// JoinResult reports the outcome of a join: the resolved placement, the
// updated member list of the room, and the history to replay to the joiner.
// Previous is set when the join moved the connection out of another room.
type JoinResult struct {
	Room     string
	Username string
	Members  []Member
	History  []ChatMessage
	Previous *LeaveResult
}

// LeaveResult identifies the room a connection departed and the members that
// remain there.
type LeaveResult struct {
	Room     string
	Username string
	Members  []Member
}

// Registry is the authoritative mapping from connection id to (room,
// username). All room state, including each room's history buffer, lives
// behind its lock, so compound operations such as the join move and the
// leave list recomputation are atomic with respect to concurrent readers: no
// caller ever observes a connection in two rooms, or a member list mid
// mutation.
type Registry struct {
	mu          sync.RWMutex
	rooms       map[string]*room
	roomByConn  map[string]string
	defaultRoom string
	historyCap  int
	guestPrefix string
}

// NewRegistry creates an empty registry using the room defaults of cfg.
func NewRegistry(cfg Config) *Registry {
	defaultRoom := cfg.DefaultRoom
	if defaultRoom == "" {
		defaultRoom = defaultRoomName
	}
	historyCap := cfg.HistoryCapacity
	if historyCap <= 0 {
		historyCap = defaultHistoryCapacity
	}
	guestPrefix := cfg.GuestPrefix
	if guestPrefix == "" {
		guestPrefix = defaultGuestPrefix
	}

	return &Registry{
		rooms:       make(map[string]*room),
		roomByConn:  make(map[string]string),
		defaultRoom: defaultRoom,
		historyCap:  historyCap,
		guestPrefix: guestPrefix,
	}
}

// Join registers the connection under username in roomName. The username is
// trimmed, with a guest name substituted when empty; an empty roomName falls
// back to the default room. A connection that already belongs to a room is
// moved out of it first, under the same lock acquisition.
func (reg *Registry) Join(connID, username, roomName string) JoinResult {
	username = strings.TrimSpace(username)
	if username == "" {
		username = reg.guestName(connID)
	}
	if roomName == "" {
		roomName = reg.defaultRoom
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	var previous *LeaveResult
	if departed, ok := reg.removeLocked(connID, roomName); ok {
		previous = &departed
	}

	rm := reg.rooms[roomName]
	if rm == nil {
		rm = &room{history: newHistoryBuffer(reg.historyCap)}
		reg.rooms[roomName] = rm
	}
	rm.members = append(rm.members, Member{ConnID: connID, Username: username})
	reg.roomByConn[connID] = roomName

	return JoinResult{
		Room:     roomName,
		Username: username,
		Members:  rm.memberSnapshot(),
		History:  rm.history.snapshot(),
		Previous: previous,
	}
}

// Leave removes the connection from whatever room it occupies. The second
// return value is false when the connection never joined; that case is a
// legal no-op, not an error.
func (reg *Registry) Leave(connID string) (LeaveResult, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.removeLocked(connID, "")
}

// Lookup resolves the room and username a connection registered under.
func (reg *Registry) Lookup(connID string) (roomName, username string, ok bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	roomName, ok = reg.roomByConn[connID]
	if !ok {
		return "", "", false
	}
	for _, m := range reg.rooms[roomName].members {
		if m.ConnID == connID {
			return roomName, m.Username, true
		}
	}
	return "", "", false
}

// ResolveUsername finds the connection registered under username in
// roomName. When several connections share the username, the earliest
// registration wins.
func (reg *Registry) ResolveUsername(roomName, username string) (string, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rm := reg.rooms[roomName]
	if rm == nil {
		return "", false
	}
	for _, m := range rm.members {
		if m.Username == username {
			return m.ConnID, true
		}
	}
	return "", false
}

// Members returns a snapshot of the room's members in join order.
func (reg *Registry) Members(roomName string) []Member {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rm := reg.rooms[roomName]
	if rm == nil {
		return nil
	}
	return rm.memberSnapshot()
}

// MembersOf returns the usernames of the room's members in join order.
func (reg *Registry) MembersOf(roomName string) []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rm := reg.rooms[roomName]
	if rm == nil {
		return nil
	}
	return rm.usernames()
}

// Broadcast records a broadcast message in the room's replay buffer and
// invokes deliver for each member while still holding the registry lock.
// Concurrent broadcasts therefore reach every member in the order they were
// appended to history, and a joiner's replay is always consistent with what
// the members saw. deliver must not block; Emitter delivery is non-blocking
// by contract.
func (reg *Registry) Broadcast(roomName string, msg ChatMessage, deliver func(Member)) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	rm := reg.rooms[roomName]
	if rm == nil {
		return
	}
	rm.history.append(msg)
	for _, m := range rm.members {
		deliver(m)
	}
}

// History returns the room's replay buffer contents, oldest first.
func (reg *Registry) History(roomName string) []ChatMessage {
	reg.mu.RLock()
	defer reg.mu.RUnlock()

	rm := reg.rooms[roomName]
	if rm == nil {
		return nil
	}
	return rm.history.snapshot()
}

// removeLocked detaches the connection from its room, dropping the room
// entry when it empties out. nextRoom names the room the connection is
// about to rejoin, if any: a same-room rejoin transiently empties the room
// without it ever being externally empty, and must not destroy the room
// record or its history. Callers hold the write lock.
func (reg *Registry) removeLocked(connID, nextRoom string) (LeaveResult, bool) {
	roomName, ok := reg.roomByConn[connID]
	if !ok {
		return LeaveResult{}, false
	}
	delete(reg.roomByConn, connID)

	rm := reg.rooms[roomName]
	departed := LeaveResult{Room: roomName}
	for i, m := range rm.members {
		if m.ConnID == connID {
			departed.Username = m.Username
			rm.members = append(rm.members[:i], rm.members[i+1:]...)
			break
		}
	}

	if len(rm.members) == 0 {
		if roomName != nextRoom {
			delete(reg.rooms, roomName)
		}
	} else {
		departed.Members = rm.memberSnapshot()
	}
	return departed, true
}

func (reg *Registry) guestName(connID string) string {
	suffix := connID
	if len(suffix) > 4 {
		suffix = suffix[:4]
	}
	return reg.guestPrefix + suffix
}

func usernames(members []Member) []string {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Username
	}
	return names
}
