// Package server implements the bounded replay buffer that keeps the most
// recent broadcast messages of a room.
package server

// historyBuffer is a fixed-capacity FIFO of broadcast messages. When full,
// appending evicts the oldest entry. Direct messages are never stored here.
// The buffer has no locking of its own; the owning Registry serializes
// access.
type historyBuffer struct {
	capacity int
	messages []ChatMessage
}

func newHistoryBuffer(capacity int) *historyBuffer {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &historyBuffer{capacity: capacity}
}

func (b *historyBuffer) append(msg ChatMessage) {
	if len(b.messages) == b.capacity {
		copy(b.messages, b.messages[1:])
		b.messages[len(b.messages)-1] = msg
		return
	}
	b.messages = append(b.messages, msg)
}

// snapshot returns the buffered messages oldest first. The result is a copy
// and stays valid after the registry lock is released.
func (b *historyBuffer) snapshot() []ChatMessage {
	out := make([]ChatMessage, len(b.messages))
	copy(out, b.messages)
	return out
}
