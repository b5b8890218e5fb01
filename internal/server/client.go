// Package server manages individual WebSocket connections, decoding inbound
// event frames for the router and pumping outbound frames back out.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client is the server-side end of one WebSocket connection. Its id is
// issued at creation and stays stable for the connection's lifetime; all
// registry state is keyed by it.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	router         *Router
	addr           string
	closed         bool
	maxMessageSize int64
}

// NewClient creates a client for an upgraded connection with a freshly
// issued connection id. The send channel is buffered so bursts of emissions
// do not block the router.
func NewClient(conn *websocket.Conn, hub *Hub, router *Router, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:             uuid.NewString(),
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		router:         router,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
	}
}

// ID returns the connection identifier issued at creation.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) readPump() {
	defer func() {
		c.router.Disconnect(c.id)
		c.hub.unregister <- c
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in readPump for %s: %v", c.id, err)
		}
	}()

	c.configureRead()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		c.dispatch(frame)
	}
}

func (c *Client) configureRead() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Error setting initial read deadline for %s: %v", c.id, err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Error setting read deadline in pong handler for %s: %v", c.id, err)
		}
		return nil
	})
}

func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Frame from %s exceeded maximum size of %d bytes", c.id, c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Client %s disconnected: %v", c.id, err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		log.Printf("Client %s connection closed: %v", c.id, err)
	default:
		log.Printf("WebSocket read error from %s: %v", c.id, err)
	}
}

// dispatch decodes one inbound frame and hands it to the matching router
// method. Malformed frames and unknown events are logged and skipped; they
// never fail the connection.
func (c *Client) dispatch(frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		log.Printf("Invalid frame from %s: %v", c.id, err)
		return
	}

	switch env.Event {
	case EventJoin:
		var req JoinRequest
		if c.decodePayload(env, &req) {
			c.router.Join(c.id, req)
		}
	case EventMessage:
		var req MessageRequest
		if c.decodePayload(env, &req) {
			c.router.Message(c.id, req.Text)
		}
	case EventDirectMessage:
		var req DirectMessageRequest
		if c.decodePayload(env, &req) {
			c.router.DirectMessage(c.id, req.To, req.Text)
		}
	case EventTyping:
		var req TypingRequest
		if c.decodePayload(env, &req) {
			c.router.Typing(c.id, req.IsTyping)
		}
	default:
		log.Printf("Unknown event %q from %s", env.Event, c.id)
	}
}

func (c *Client) decodePayload(env Envelope, dst any) bool {
	if len(env.Payload) == 0 {
		// Legal for events whose fields all default, join in particular.
		return true
	}
	if err := json.Unmarshal(env.Payload, dst); err != nil {
		log.Printf("Invalid %s payload from %s: %v", env.Event, c.id, err)
		return false
	}
	return true
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection in writePump for %s: %v", c.id, err)
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Error setting write deadline for %s: %v", c.id, err)
				return
			}
			if !ok {
				// The hub closed the channel.
				c.writeClose()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing message to %s: %v", c.id, err)
				}
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Error setting write deadline for ping to %s: %v", c.id, err)
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing ping message to %s: %v", c.id, err)
				}
				return
			}
		}
	}
}

func (c *Client) writeClose() {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		log.Printf("Error writing close message to %s: %v", c.id, err)
	}
}

// isExpectedCloseError checks if an error is expected during connection
// closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
