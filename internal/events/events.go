// Package events defines the outbound event vocabulary of the realtime
// core and the payload shapes clients receive. Mobile clients were
// migrated between two message-received shapes; both are still emitted at
// the boundary from the single internal payload (see NewMessage /
// CompactMessage).
package events

// Event names on the wire
const (
	// Presence
	UserOnline  = "user-online"
	UserOffline = "user-offline"

	// Rooms
	UserJoined = "user-joined"
	UserLeft   = "user-left"

	// Messages. NewMessageEvent is the legacy shape, MessageReceive the
	// shape the current mobile client listens for.
	NewMessageEvent  = "new-message"
	MessageReceive   = "message:receive"
	MessageEdited    = "message:edited"
	MessageDeleted   = "message:deleted"
	MessageRestored  = "message:restored"
	MessageReaction  = "message:reaction"
	MessageRead      = "message:read"
	TypingStart      = "typing:start"
	TypingStop       = "typing:stop"

	// Calls
	IncomingCall  = "incoming:call"
	CallInitiated = "call:initiated"
	CallFailed    = "call:failed"
	CallSignal    = "call:signal"
	CallEnded     = "call:ended"

	// Pins
	ChatPinned   = "chat:pin"
	ChatUnpinned = "chat:unpin"

	// Errors
	Error = "error"
)

// Sink is the outbound fan-out surface the services publish through.
// Implemented by the websocket hub.
type Sink interface {
	// BroadcastToChat delivers to every connection subscribed to the chat.
	// Failures in one chat's fan-out never affect another chat.
	BroadcastToChat(chatID, event string, payload interface{})
	// SendToUser delivers to the latest admitted connection of a user.
	// Returns false when the user has no registered connection.
	SendToUser(userID, event string, payload interface{}) bool
	// BroadcastAll delivers to every connection except the named user's.
	BroadcastAll(exceptUserID, event string, payload interface{})
}

// NopSink discards all events; used where fan-out is optional
type NopSink struct{}

func (NopSink) BroadcastToChat(chatID, event string, payload interface{})  {}
func (NopSink) SendToUser(userID, event string, payload interface{}) bool { return false }
func (NopSink) BroadcastAll(exceptUserID, event string, payload interface{}) {}
