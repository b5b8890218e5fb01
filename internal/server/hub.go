// Package server coordinates connection registration, outbound delivery,
// and connection teardown for the relay via the Hub type.
package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// Hub owns the table of live connections keyed by connection id and
// implements Emitter on top of it. Delivery is best-effort: a client whose
// send buffer is full is dropped rather than allowed to stall emissions to
// anyone else.
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub ready to manage connections once Run is started.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register queues a client for registration. The run loop takes ownership
// and starts the client's pump goroutines.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Run is the hub's main loop, handling registration and unregistration
// until Shutdown cancels it. It should be started in its own goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAllConnections()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.mu.Lock()
			client.closed = false
			h.clients[client.id] = client
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("Client %s connected from %s. Total clients: %d", client.id, client.addr, count)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				client.closed = true
				count := len(h.clients)
				h.mu.Unlock()
				// Close the channel after releasing the lock.
				close(client.send)
				log.Printf("Client %s disconnected. Total clients: %d", client.id, count)
			} else {
				h.mu.Unlock()
			}
		}
	}
}

// Emit delivers one event to the identified connection. Unknown connection
// ids are ignored; a connection that cannot accept the message is removed.
func (h *Hub) Emit(connID, event string, payload any) {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		log.Printf("Error encoding %s event for %s: %v", event, connID, err)
		return
	}

	h.mu.RLock()
	client := h.clients[connID]
	h.mu.RUnlock()
	if client == nil {
		return
	}

	if !h.trySend(client, frame) {
		h.dropClient(client)
	}
}

func encodeEvent(event string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Payload: raw})
}

func (h *Hub) trySend(client *Client, frame []byte) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic delivering to %s: %v", client.id, r)
			sent = false
		}
	}()

	// Hold the lock during the send so the channel cannot be closed under us.
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.clients[client.id]; !ok || client.closed {
		return false
	}

	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

// dropClient removes a client that could not accept a message. The write
// pump notices the closed channel and tears the connection down, which in
// turn routes a disconnect through the read pump.
func (h *Hub) dropClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.id)
	client.closed = true
	h.mu.Unlock()

	close(client.send)
	log.Printf("Client %s removed due to full send buffer", client.id)
}

func (h *Hub) closeAllConnections() {
	log.Println("Shutting down all client connections...")

	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.Unlock()

	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				log.Printf("Error closing connection for %s: %v", client.id, err)
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown stops the run loop and waits for all client goroutines to finish
// or for the timeout to pass.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
