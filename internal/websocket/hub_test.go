package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/bakbak-chat/bakbakgo/internal/events"
	"github.com/bakbak-chat/bakbakgo/internal/models"
	"github.com/bakbak-chat/bakbakgo/internal/store/memstore"
)

// newTestClient builds a client without a live connection; pumps are
// never started so outbound frames stay readable on the send channel.
func newTestClient(h *Hub, userID, connID string) *Client {
	return &Client{
		hub:    h,
		send:   make(chan []byte, 256),
		UserID: userID,
		ConnID: connID,
		rooms:  make(map[string]struct{}),
	}
}

func newTestHub(t *testing.T) (*Hub, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	return NewHub(st, st), st
}

// recvFrame reads one outbound frame or fails after a short wait
func recvFrame(t *testing.T, c *Client) wireEvent {
	t.Helper()
	select {
	case data := <-c.send:
		var frame wireEvent
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("malformed frame: %v", err)
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
		return wireEvent{}
	}
}

func drainFrames(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func TestAdmitRegistersAndJoinsRooms(t *testing.T) {
	hub, st := newTestHub(t)
	st.AddUser(&models.User{ID: "alice"})
	st.AddParticipant(&models.ChatParticipant{ChatID: "chat-1", UserID: "alice"})
	st.AddParticipant(&models.ChatParticipant{ChatID: "chat-2", UserID: "alice"})

	alice := newTestClient(hub, "alice", "conn-1")
	hub.admit(alice)

	if !hub.IsUserOnline("alice") {
		t.Fatal("alice should be online after admit")
	}
	if n := hub.rooms.subscribers("chat-1"); n != 1 {
		t.Errorf("chat-1 subscribers = %d, want 1", n)
	}
	if n := hub.rooms.subscribers("chat-2"); n != 1 {
		t.Errorf("chat-2 subscribers = %d, want 1", n)
	}
}

func TestAdmitAnnouncesPresence(t *testing.T) {
	hub, st := newTestHub(t)
	st.AddUser(&models.User{ID: "alice"})
	st.AddUser(&models.User{ID: "bob"})

	bob := newTestClient(hub, "bob", "conn-b")
	hub.admit(bob)
	drainFrames(bob)

	alice := newTestClient(hub, "alice", "conn-a")
	hub.admit(alice)

	frame := recvFrame(t, bob)
	if frame.Event != events.UserOnline {
		t.Errorf("event = %q, want %q", frame.Event, events.UserOnline)
	}
}

func TestRemoveFlipsOffline(t *testing.T) {
	hub, st := newTestHub(t)
	st.AddUser(&models.User{ID: "alice"})

	alice := newTestClient(hub, "alice", "conn-1")
	hub.admit(alice)
	hub.remove(alice)

	if hub.IsUserOnline("alice") {
		t.Fatal("alice should be offline after remove")
	}
}

func TestReconnectLastWriterWins(t *testing.T) {
	hub, st := newTestHub(t)
	st.AddUser(&models.User{ID: "alice"})

	first := newTestClient(hub, "alice", "conn-1")
	second := newTestClient(hub, "alice", "conn-2")
	hub.admit(first)
	hub.admit(second)

	// The stale connection's teardown must not flip alice offline
	hub.remove(first)
	if !hub.IsUserOnline("alice") {
		t.Fatal("alice went offline on stale disconnect")
	}
	if hub.client("alice") != second {
		t.Fatal("latest connection lost on stale disconnect")
	}

	hub.remove(second)
	if hub.IsUserOnline("alice") {
		t.Fatal("alice still online after current disconnect")
	}
}

func TestSendToUserReachesLatestConnection(t *testing.T) {
	hub, st := newTestHub(t)
	st.AddUser(&models.User{ID: "alice"})

	first := newTestClient(hub, "alice", "conn-1")
	second := newTestClient(hub, "alice", "conn-2")
	hub.admit(first)
	hub.admit(second)
	drainFrames(first)
	drainFrames(second)

	if !hub.SendToUser("alice", "ping", map[string]string{"x": "y"}) {
		t.Fatal("SendToUser returned false for online user")
	}

	frame := recvFrame(t, second)
	if frame.Event != "ping" {
		t.Errorf("event = %q, want ping", frame.Event)
	}
	select {
	case <-first.send:
		t.Fatal("stale connection received a single-target send")
	default:
	}
}

func TestSendToUserOfflineReturnsFalse(t *testing.T) {
	hub, _ := newTestHub(t)
	if hub.SendToUser("ghost", "ping", nil) {
		t.Fatal("SendToUser returned true for offline user")
	}
}

func TestBroadcastToChatOnlySubscribers(t *testing.T) {
	hub, st := newTestHub(t)
	st.AddUser(&models.User{ID: "alice"})
	st.AddUser(&models.User{ID: "bob"})
	st.AddParticipant(&models.ChatParticipant{ChatID: "chat-1", UserID: "alice"})

	alice := newTestClient(hub, "alice", "conn-a")
	bob := newTestClient(hub, "bob", "conn-b")
	hub.admit(alice)
	hub.admit(bob)
	drainFrames(alice)
	drainFrames(bob)

	hub.BroadcastToChat("chat-1", "chat-event", map[string]string{"k": "v"})

	frame := recvFrame(t, alice)
	if frame.Event != "chat-event" {
		t.Errorf("event = %q", frame.Event)
	}
	select {
	case <-bob.send:
		t.Fatal("non-subscriber received chat broadcast")
	default:
	}
}

func TestRoomIndexDropAll(t *testing.T) {
	hub, st := newTestHub(t)
	st.AddUser(&models.User{ID: "alice"})
	st.AddParticipant(&models.ChatParticipant{ChatID: "chat-1", UserID: "alice"})
	st.AddParticipant(&models.ChatParticipant{ChatID: "chat-2", UserID: "alice"})

	alice := newTestClient(hub, "alice", "conn-1")
	hub.admit(alice)
	hub.remove(alice)

	if n := hub.rooms.subscribers("chat-1"); n != 0 {
		t.Errorf("chat-1 subscribers after remove = %d, want 0", n)
	}
	if n := hub.rooms.subscribers("chat-2"); n != 0 {
		t.Errorf("chat-2 subscribers after remove = %d, want 0", n)
	}
}

func TestJoinAndLeaveRoomAdHoc(t *testing.T) {
	hub, st := newTestHub(t)
	st.AddUser(&models.User{ID: "alice"})

	alice := newTestClient(hub, "alice", "conn-1")
	hub.admit(alice)

	hub.JoinRoom(alice, "chat-9")
	if n := hub.rooms.subscribers("chat-9"); n != 1 {
		t.Fatalf("subscribers after join = %d, want 1", n)
	}

	hub.LeaveRoom(alice, "chat-9")
	if n := hub.rooms.subscribers("chat-9"); n != 0 {
		t.Fatalf("subscribers after leave = %d, want 0", n)
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	c := &Client{send: make(chan []byte, 1), rooms: make(map[string]struct{})}
	if !c.enqueue([]byte("one")) {
		t.Fatal("first enqueue should succeed")
	}
	if c.enqueue([]byte("two")) {
		t.Fatal("enqueue on full buffer should drop, not block")
	}
}
