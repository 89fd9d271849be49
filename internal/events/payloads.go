package events

import (
	"time"

	"github.com/bakbak-chat/bakbakgo/internal/models"
)

// ReplyRef is the embedded reply-target preview
type ReplyRef struct {
	ID      string         `json:"id"`
	Content string         `json:"content"`
	Sender  models.UserRef `json:"sender"`
}

// MessagePayload is the full message shape emitted as the legacy
// new-message event and returned by the REST send/history endpoints.
type MessagePayload struct {
	ID           string               `json:"id"`
	ChatID       string               `json:"chatId"`
	Sender       models.UserRef       `json:"sender"`
	Content      string               `json:"content"`
	Type         models.MessageType   `json:"type"`
	Status       models.MessageStatus `json:"status"`
	ReplyTo      *ReplyRef            `json:"replyTo"`
	FileURL      string               `json:"fileUrl,omitempty"`
	FileName     string               `json:"fileName,omitempty"`
	FileSize     int64                `json:"fileSize,omitempty"`
	ThumbnailURL string               `json:"thumbnailUrl,omitempty"`
	CardPayload  models.JSONB         `json:"cardPayload,omitempty"`
	Effects      models.JSONB         `json:"effects,omitempty"`
	IsEdited     bool                 `json:"isEdited"`
	EditedAt     *time.Time           `json:"editedAt,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
}

// CompactMessagePayload is the message:receive shape. It carries the same
// semantic content as MessagePayload in the flattened form the current
// mobile client expects.
type CompactMessagePayload struct {
	ID          string             `json:"id"`
	ChatID      string             `json:"chatId"`
	SenderID    string             `json:"senderId"`
	Content     string             `json:"content"`
	Type        models.MessageType `json:"type"`
	CreatedAt   string             `json:"createdAt"`
	CardPayload models.JSONB       `json:"cardPayload,omitempty"`
	Effects     models.JSONB       `json:"effects,omitempty"`
}

// NewMessagePayload builds the legacy shape from a message with its
// sender and reply-target resolved.
func NewMessagePayload(m *models.Message) MessagePayload {
	p := MessagePayload{
		ID:           m.ID,
		ChatID:       m.ChatID,
		Content:      m.Content,
		Type:         m.Type,
		Status:       m.Status,
		FileURL:      m.FileURL,
		FileName:     m.FileName,
		FileSize:     m.FileSize,
		ThumbnailURL: m.ThumbnailURL,
		CardPayload:  m.CardPayload,
		Effects:      m.Effects,
		IsEdited:     m.IsEdited,
		EditedAt:     m.EditedAt,
		CreatedAt:    m.CreatedAt,
	}
	if m.Sender != nil {
		p.Sender = m.Sender.Ref()
	} else {
		p.Sender = models.UserRef{ID: m.SenderID}
	}
	if m.RepliedMessage != nil {
		ref := ReplyRef{ID: m.RepliedMessage.ID, Content: m.RepliedMessage.Content}
		if m.RepliedMessage.Sender != nil {
			ref.Sender = m.RepliedMessage.Sender.Ref()
		} else {
			ref.Sender = models.UserRef{ID: m.RepliedMessage.SenderID}
		}
		p.ReplyTo = &ref
	}
	return p
}

// Compact converts the legacy shape into the message:receive shape.
// The two must stay semantically identical; only the framing differs.
func (p MessagePayload) Compact() CompactMessagePayload {
	return CompactMessagePayload{
		ID:          p.ID,
		ChatID:      p.ChatID,
		SenderID:    p.Sender.ID,
		Content:     p.Content,
		Type:        p.Type,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339Nano),
		CardPayload: p.CardPayload,
		Effects:     p.Effects,
	}
}

// PresencePayload announces a principal going online or offline
type PresencePayload struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// TypingPayload relays typing start/stop inside a chat
type TypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}

// ReadPayload announces a read-set update
type ReadPayload struct {
	ChatID    string    `json:"chatId"`
	MessageID string    `json:"messageId"`
	UserID    string    `json:"userId"`
	ReadAt    time.Time `json:"readAt"`
}

// EditedPayload announces an in-window content edit
type EditedPayload struct {
	MessageID string     `json:"messageId"`
	ChatID    string     `json:"chatId"`
	Content   string     `json:"content"`
	IsEdited  bool       `json:"isEdited"`
	EditedAt  *time.Time `json:"editedAt"`
}

// DeletedPayload announces a soft delete (unsend)
type DeletedPayload struct {
	MessageID string    `json:"messageId"`
	ChatID    string    `json:"chatId"`
	DeletedAt time.Time `json:"deletedAt"`
}

// RestoredPayload announces a restore out of recently-deleted
type RestoredPayload struct {
	MessageID  string    `json:"messageId"`
	ChatID     string    `json:"chatId"`
	RestoredAt time.Time `json:"restoredAt"`
}

// ReactionPayload always carries authoritative totals, never deltas,
// so clients cannot drift on missed events.
type ReactionPayload struct {
	MessageID string         `json:"messageId"`
	ChatID    string         `json:"chatId"`
	Emoji     string         `json:"emoji"`
	UserID    string         `json:"userId"`
	Action    string         `json:"action"` // "added" | "removed"
	Counts    map[string]int `json:"counts"`
}

// RoomPayload announces ad hoc join/leave of a chat room
type RoomPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username,omitempty"`
}

// PinPayload confirms a pin state change to the acting user's sessions
type PinPayload struct {
	ChatID   string     `json:"chatId"`
	Pinned   bool       `json:"pinned"`
	PinnedAt *time.Time `json:"pinnedAt,omitempty"`
}

// ErrorPayload is the error event shape for socket operations
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
