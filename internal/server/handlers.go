// Package server exposes the HTTP handlers: the WebSocket upgrade endpoint,
// a health check, and a built-in demo chat page.
package server

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// NewWebSocketHandler returns the upgrade handler bound to the given hub and
// router. Each accepted connection becomes a Client with a fresh connection
// id, handed to the hub for registration.
func NewWebSocketHandler(hub *Hub, router *Router) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(conn, hub, router, r.RemoteAddr)
		hub.Register(client)
	}
}

// HealthHandler responds with a plain text message indicating the server is
// running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Room relay server is running!")
}

// DemoPageHandler serves a single-page chat client that exercises the full
// event protocol: join, presence, history replay, broadcast and direct
// messages, and typing indicators.
func DemoPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, demoPage); err != nil {
		log.Printf("Error writing HTML response: %v", err)
	}
}

const demoPage = `<!DOCTYPE html>
<html>
<head>
    <title>Room Relay Demo</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; max-width: 720px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        #users { color: #555; margin: 5px 0; }
        #typing { color: #999; font-style: italic; height: 1.2em; }
        input[type="text"] { padding: 5px; margin-right: 5px; }
        button { padding: 5px 15px; cursor: pointer; }
        .system { color: gray; font-style: italic; }
        .direct { color: purple; }
    </style>
</head>
<body>
    <h1>Room Relay Demo</h1>

    <div>
        <input type="text" id="username" placeholder="Username">
        <input type="text" id="room" placeholder="Room (default: main)">
        <button onclick="join()">Join</button>
    </div>

    <div id="users"></div>
    <div id="messages"></div>
    <div id="typing"></div>

    <div>
        <input type="text" id="messageInput" placeholder="Message, or /dm user text" disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <script>
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const usersDiv = document.getElementById('users');
        const typingDiv = document.getElementById('typing');
        let ws = null;
        let typingTimer = null;

        function addLine(text, cls) {
            const div = document.createElement('div');
            if (cls) div.className = cls;
            div.textContent = text;
            messagesDiv.appendChild(div);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function emit(event, payload) {
            ws.send(JSON.stringify({event: event, payload: payload}));
        }

        function renderMessage(m) {
            if (m.kind === 'direct') {
                addLine('[dm] ' + m.username + ' -> ' + m.target + ': ' + m.text, 'direct');
            } else {
                addLine(m.username + ': ' + m.text);
            }
        }

        function join() {
            if (!ws) {
                ws = new WebSocket('ws://' + location.host + '/ws');
                ws.onopen = doJoin;
                ws.onmessage = function(e) {
                    const env = JSON.parse(e.data);
                    const p = env.payload;
                    switch (env.event) {
                        case 'ack':
                            addLine('Joined room ' + p.room + ' as ' + p.username, 'system');
                            messageInput.disabled = false;
                            sendButton.disabled = false;
                            break;
                        case 'system': addLine(p.text, 'system'); break;
                        case 'users': usersDiv.textContent = 'In room: ' + p.usernames.join(', '); break;
                        case 'history': (p.messages || []).forEach(renderMessage); break;
                        case 'message': renderMessage(p); break;
                        case 'typing':
                            typingDiv.textContent = p.isTyping ? p.username + ' is typing...' : '';
                            break;
                    }
                };
                ws.onclose = function() {
                    addLine('Disconnected', 'system');
                    messageInput.disabled = true;
                    sendButton.disabled = true;
                    ws = null;
                };
            } else {
                doJoin();
            }
        }

        function doJoin() {
            emit('join', {
                username: document.getElementById('username').value.trim(),
                room: document.getElementById('room').value.trim()
            });
        }

        function sendMessage() {
            const text = messageInput.value.trim();
            if (!text || !ws) return;
            const dm = text.match(/^\/dm\s+(\S+)\s+(.+)$/);
            if (dm) {
                emit('directMessage', {toUsername: dm[1], text: dm[2]});
            } else {
                emit('message', {text: text});
            }
            emit('typing', {isTyping: false});
            messageInput.value = '';
        }

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') { sendMessage(); return; }
            if (!ws) return;
            emit('typing', {isTyping: true});
            clearTimeout(typingTimer);
            typingTimer = setTimeout(function() { emit('typing', {isTyping: false}); }, 1500);
        });
    </script>
</body>
</html>`
