package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/bakbak-chat/bakbakgo/internal/apperr"
	"github.com/bakbak-chat/bakbakgo/internal/events"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB

	// Inbound frames waiting on the dispatch worker.
	inboundQueueSize = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for mobile app access
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan []byte

	// Inbound frames, consumed by a single dispatchPump worker so
	// frames from this connection commit in their arrival order.
	inbound chan Frame

	// UserID is the authenticated principal; set before registration,
	// never re-validated per event.
	UserID string

	// ConnID distinguishes this connection from an overtaken one
	ConnID string

	roomsMu sync.Mutex
	rooms   map[string]struct{}
}

// Frame is the inbound envelope
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readPump pumps messages from the websocket connection to the hub.
// Handlers run on the dispatch worker so storage calls and fan-out do
// not block reading the next client frame.
func (c *Client) readPump() {
	defer func() {
		close(c.inbound)
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS error: %v", err)
			}
			break
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.sendError(apperr.InvalidArg("malformed frame"))
			continue
		}

		// call:signal frames keep their arrival order through the
		// per-call queue; everything else queues for the dispatch
		// worker, which also runs frames one at a time in order.
		if frame.Event == "call:signal" {
			c.hub.calls.signal(c, frame.Data)
			continue
		}
		c.inbound <- frame
	}
}

// dispatchPump runs inbound frames one at a time. A single worker per
// connection keeps same-connection sends in their natural order.
func (c *Client) dispatchPump() {
	for frame := range c.inbound {
		c.dispatch(frame)
	}
}

// dispatch routes one inbound frame to the owning component
func (c *Client) dispatch(frame Frame) {
	ctx := context.Background()
	switch frame.Event {
	case "send-message", "message:send":
		var req SendRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			c.sendError(apperr.InvalidArg("malformed send payload"))
			return
		}
		if err := c.hub.chat.SendMessage(ctx, c.UserID, req); err != nil {
			c.sendError(err)
		}

	case "message:read", "message-read":
		var req struct {
			MessageID string `json:"messageId"`
			ChatID    string `json:"chatId,omitempty"`
		}
		// The legacy event carries a bare message id string
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			var id string
			if err := json.Unmarshal(frame.Data, &id); err != nil {
				c.sendError(apperr.InvalidArg("malformed read payload"))
				return
			}
			req.MessageID = id
		}
		if err := c.hub.chat.MarkMessageRead(ctx, c.UserID, req.MessageID, req.ChatID); err != nil {
			c.sendError(err)
		}

	case "typing:start", "typing:stop":
		var req struct {
			ChatID string `json:"chatId"`
		}
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.ChatID == "" {
			return
		}
		event := events.TypingStart
		if frame.Event == "typing:stop" {
			event = events.TypingStop
		}
		c.hub.broadcastToChatExcept(req.ChatID, c, event, events.TypingPayload{
			ChatID: req.ChatID,
			UserID: c.UserID,
		})

	case "join-room":
		chatID := decodeString(frame.Data)
		if chatID != "" {
			c.hub.JoinRoom(c, chatID)
		}

	case "leave-room":
		chatID := decodeString(frame.Data)
		if chatID != "" {
			c.hub.LeaveRoom(c, chatID)
		}

	case "call:init", "call-user":
		c.hub.calls.initiate(c, frame.Data)

	case "call:end", "end-call":
		callID := decodeString(frame.Data)
		if callID != "" {
			c.hub.calls.end(c, callID)
		}

	default:
		// Unknown events are dropped; stale clients may still emit them
	}
}

// decodeString accepts either a bare JSON string or {"chatId"/"callId": ...}
func decodeString(data json.RawMessage) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var obj struct {
		ChatID string `json:"chatId"`
		CallID string `json:"callId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.ChatID != "" {
			return obj.ChatID
		}
		return obj.CallID
	}
	return ""
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue offers data to the connection without blocking.
// Returns false when the buffer is full or the connection is gone.
func (c *Client) enqueue(data []byte) (ok bool) {
	defer func() {
		// Racing a concurrent channel close during teardown
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// sendError emits the error event with the application code attached
func (c *Client) sendError(err error) {
	var appErr *apperr.AppError
	payload := events.ErrorPayload{Code: string(apperr.CodeInternal), Message: "internal error"}
	if errors.As(err, &appErr) {
		payload = events.ErrorPayload{Code: string(appErr.Code), Message: appErr.Message}
	}
	data, merr := marshalEvent(events.Error, payload)
	if merr != nil {
		return
	}
	c.enqueue(data)
}

func (c *Client) trackRoom(chatID string) {
	c.roomsMu.Lock()
	c.rooms[chatID] = struct{}{}
	c.roomsMu.Unlock()
}

func (c *Client) untrackRoom(chatID string) {
	c.roomsMu.Lock()
	delete(c.rooms, chatID)
	c.roomsMu.Unlock()
}

func (c *Client) trackedRooms() []string {
	c.roomsMu.Lock()
	defer c.roomsMu.Unlock()
	ids := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}

// ServeWs upgrades an authenticated request to a websocket session.
// The principal id comes from the JWT middleware; admission trusts it.
func ServeWs(hub *Hub, w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println(err)
		return
	}
	client := &Client{
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, 256),
		inbound: make(chan Frame, inboundQueueSize),
		UserID:  userID,
		ConnID:  uuid.New().String(),
		rooms:   make(map[string]struct{}),
	}
	client.hub.register <- client

	go client.writePump()
	go client.dispatchPump()
	go client.readPump()
}
