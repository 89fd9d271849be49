package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/bakbak-chat/bakbakgo/internal/events"
	"github.com/bakbak-chat/bakbakgo/internal/store"
)

// Hub maintains the set of active connections, the room membership index
// and the in-flight call sessions. It is the single owner of all
// connection state; services publish through it via events.Sink.
type Hub struct {
	users        store.UserStore
	participants store.ParticipantStore

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	// userID -> latest admitted client. Last writer wins on reconnect;
	// an overtaken connection keeps its room subscriptions but no
	// longer receives single-target sends.
	clients map[string]*Client

	rooms *roomIndex
	calls *callRouter

	chat ChatService
}

// ChatService is the inbound surface the hub dispatches message events to.
// Implemented by the delivery pipeline; registered after construction so
// the service can broadcast back through the hub.
type ChatService interface {
	SendMessage(ctx context.Context, senderID string, req SendRequest) error
	MarkMessageRead(ctx context.Context, userID, messageID, chatID string) error
}

// SendRequest is the socket message:send / send-message input
type SendRequest struct {
	ChatID      string                 `json:"chatId"`
	Content     string                 `json:"content"`
	Type        string                 `json:"type,omitempty"`
	ReplyTo     string                 `json:"replyTo,omitempty"`
	Effects     map[string]interface{} `json:"effects,omitempty"`
	CardPayload map[string]interface{} `json:"cardPayload,omitempty"`
}

// NewHub creates a new Hub instance
func NewHub(users store.UserStore, participants store.ParticipantStore) *Hub {
	h := &Hub{
		users:        users,
		participants: participants,
		register:     make(chan *Client),
		unregister:   make(chan *Client),
		clients:      make(map[string]*Client),
		rooms:        newRoomIndex(),
	}
	h.calls = newCallRouter(h)
	return h
}

// SetChatService registers the delivery pipeline for inbound dispatch
func (h *Hub) SetChatService(svc ChatService) {
	h.chat = svc
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.admit(client)
		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// admit records the connection, subscribes it to every chat the user is
// an active member of, and announces presence.
func (h *Hub) admit(client *Client) {
	h.mu.Lock()
	h.clients[client.UserID] = client
	h.mu.Unlock()

	log.Printf("🔗 User connected: %s (%s)", client.UserID, client.ConnID)

	ctx := context.Background()
	if err := h.users.SetOnline(ctx, client.UserID, client.ConnID); err != nil {
		// Presence bookkeeping is best-effort
		log.Printf("Presence online write failed for %s: %v", client.UserID, err)
	}

	chatIDs, err := h.participants.ListActiveChatIDs(ctx, client.UserID)
	if err != nil {
		log.Printf("Error joining chat rooms for %s: %v", client.UserID, err)
	}
	for _, chatID := range chatIDs {
		h.rooms.join(client, chatID)
	}

	h.BroadcastAll(client.UserID, events.UserOnline, events.PresencePayload{
		UserID:    client.UserID,
		Timestamp: time.Now(),
	})
}

// remove tears the connection down. An overtaken connection (a newer one
// admitted for the same user) only drops its room subscriptions; it does
// not flip the user offline.
func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	current := h.clients[client.UserID] == client
	if current {
		delete(h.clients, client.UserID)
	}
	h.mu.Unlock()

	h.rooms.dropAll(client)
	close(client.send)

	if !current {
		return
	}

	// Only the authoritative connection tears down call state; an
	// overtaken connection's calls continue on the newer handle.
	h.calls.dropUser(client.UserID)

	log.Printf("🔌 User disconnected: %s (%s)", client.UserID, client.ConnID)

	// Best-effort: a failed offline write must not prevent teardown
	if err := h.users.SetOffline(context.Background(), client.UserID, time.Now()); err != nil {
		log.Printf("Presence offline write failed for %s: %v", client.UserID, err)
	}

	h.BroadcastAll(client.UserID, events.UserOffline, events.PresencePayload{
		UserID:    client.UserID,
		Timestamp: time.Now(),
	})
}

// IsUserOnline reports whether the user has a registered connection
func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

// ConnectedUsers returns the ids of all users with a registered connection
func (h *Hub) ConnectedUsers() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for id := range h.clients {
		ids = append(ids, id)
	}
	return ids
}

func (h *Hub) client(userID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clients[userID]
}

// SendToUser sends an event to the latest connection of a user.
// Returns false when the user has no registered connection.
func (h *Hub) SendToUser(userID, event string, payload interface{}) bool {
	client := h.client(userID)
	if client == nil {
		return false
	}
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("Error marshaling %s event: %v", event, err)
		return false
	}
	return client.enqueue(data)
}

// sendRaw delivers an already-marshaled frame to the latest connection
func (h *Hub) sendRaw(userID string, data []byte) bool {
	client := h.client(userID)
	if client == nil {
		return false
	}
	return client.enqueue(data)
}

// BroadcastToChat sends an event to every connection subscribed to a chat
func (h *Hub) BroadcastToChat(chatID, event string, payload interface{}) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("Error marshaling %s event: %v", event, err)
		return
	}
	h.rooms.broadcast(chatID, nil, data)
}

// BroadcastAll sends an event to every connection except the named user's
func (h *Hub) BroadcastAll(exceptUserID, event string, payload interface{}) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("Error marshaling %s event: %v", event, err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for userID, client := range h.clients {
		if userID == exceptUserID {
			continue
		}
		client.enqueue(data)
	}
}

// broadcastToChatExcept is used for typing and room events, which the
// acting connection should not receive back.
func (h *Hub) broadcastToChatExcept(chatID string, except *Client, event string, payload interface{}) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("Error marshaling %s event: %v", event, err)
		return
	}
	h.rooms.broadcast(chatID, except, data)
}

// JoinRoom subscribes a connection to a chat ad hoc (viewing before full
// history fetch, or an app-extension posting without full membership).
func (h *Hub) JoinRoom(client *Client, chatID string) {
	h.rooms.join(client, chatID)
	h.broadcastToChatExcept(chatID, client, events.UserJoined, events.RoomPayload{UserID: client.UserID})
}

// LeaveRoom unsubscribes a connection from a chat
func (h *Hub) LeaveRoom(client *Client, chatID string) {
	h.rooms.leave(client, chatID)
	h.broadcastToChatExcept(chatID, client, events.UserLeft, events.RoomPayload{UserID: client.UserID})
}

// wireEvent is the envelope every outbound frame uses
type wireEvent struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func marshalEvent(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(wireEvent{Event: event, Data: payload})
}
