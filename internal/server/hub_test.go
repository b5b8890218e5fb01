package server

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

// newMapClient builds a client wired straight into the hub's table, without
// a network connection or pump goroutines, so delivery can be observed on
// the send channel directly.
func newMapClient(h *Hub, id string, buffer int) *Client {
	client := &Client{id: id, send: make(chan []byte, buffer)}
	h.mu.Lock()
	h.clients[id] = client
	h.mu.Unlock()
	return client
}

func TestHubEmitUnknownConnection(t *testing.T) {
	hub := NewHub()

	// Must be a silent no-op.
	hub.Emit("ghost", EventSystem, SystemNotice{Text: "hello"})
}

func TestHubEmitDeliversEnvelope(t *testing.T) {
	hub := NewHub()
	client := newMapClient(hub, "conn-1", 1)

	hub.Emit("conn-1", EventSystem, SystemNotice{Text: "hello"})

	select {
	case frame := <-client.send:
		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("Delivered frame is not a valid envelope: %v", err)
		}
		if env.Event != EventSystem {
			t.Errorf("Expected event %q, got %q", EventSystem, env.Event)
		}
		var notice SystemNotice
		if err := json.Unmarshal(env.Payload, &notice); err != nil {
			t.Fatalf("Invalid system payload: %v", err)
		}
		if notice.Text != "hello" {
			t.Errorf("Expected text %q, got %q", "hello", notice.Text)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("No frame delivered to client")
	}
}

func TestHubEmitFullBufferDropsClient(t *testing.T) {
	hub := NewHub()
	client := newMapClient(hub, "conn-1", 1)
	client.send <- []byte("occupied")

	hub.Emit("conn-1", EventSystem, SystemNotice{Text: "overflow"})

	hub.mu.RLock()
	_, stillRegistered := hub.clients["conn-1"]
	hub.mu.RUnlock()
	if stillRegistered {
		t.Error("Client with full buffer was not removed")
	}

	// The queued frame is still readable, then the channel is closed.
	<-client.send
	select {
	case _, open := <-client.send:
		if open {
			t.Error("Expected closed send channel after drop")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("Send channel was not closed after drop")
	}
}

func TestHubEmitFailureIsolatedPerRecipient(t *testing.T) {
	hub := NewHub()
	stuck := newMapClient(hub, "conn-stuck", 1)
	stuck.send <- []byte("occupied")
	healthy := newMapClient(hub, "conn-ok", 4)

	hub.Emit("conn-stuck", EventSystem, SystemNotice{Text: "x"})
	hub.Emit("conn-ok", EventSystem, SystemNotice{Text: "x"})

	select {
	case <-healthy.send:
	case <-time.After(100 * time.Millisecond):
		t.Error("Healthy client did not receive its frame")
	}
}

func TestHubConcurrentEmit(t *testing.T) {
	hub := NewHub()
	client := newMapClient(hub, "conn-1", 256)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 5; j++ {
				hub.Emit("conn-1", EventSystem, SystemNotice{Text: "concurrent"})
			}
		}()
	}
	wg.Wait()

	if got := len(client.send); got != 50 {
		t.Errorf("Expected 50 delivered frames, got %d", got)
	}
}

func TestHubRegisterNilClientIgnored(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	select {
	case hub.register <- nil:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Register channel not accepting")
	}

	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("Shutdown after nil registration failed: %v", err)
	}
}

func TestHubShutdownCompletes(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	time.Sleep(10 * time.Millisecond)

	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("Expected clean shutdown, got %v", err)
	}
}
