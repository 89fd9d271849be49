package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// MessageType classifies message content
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeVideo    MessageType = "video"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeFile     MessageType = "file"
	MessageTypeSystem   MessageType = "system"
	MessageTypeLocation MessageType = "location"
)

// MessageStatus is the delivery status of a message
type MessageStatus string

const (
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
)

// StringList is a JSONB-backed string slice (per-reader read-set)
type StringList []string

// Scan implements sql.Scanner interface
func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal StringList value: %v", value)
	}
	return json.Unmarshal(bytes, s)
}

// Value implements driver.Valuer interface
func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal(s)
}

// Contains reports whether id is in the list
func (s StringList) Contains(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Message represents a chat message
type Message struct {
	ID       string        `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ChatID   string        `gorm:"type:uuid;index:idx_messages_chat_created" json:"chatId"`
	SenderID string        `gorm:"type:uuid" json:"senderId"`
	Content  string        `gorm:"type:text" json:"content"`
	Type     MessageType   `gorm:"type:varchar(16);default:'text'" json:"type"`
	Status   MessageStatus `gorm:"type:varchar(16);default:'sent'" json:"status"`
	ReplyTo  *string       `gorm:"type:uuid" json:"replyTo,omitempty"`

	// Media attachment metadata
	FileURL      string `json:"fileUrl,omitempty"`
	FileName     string `json:"fileName,omitempty"`
	FileSize     int64  `json:"fileSize,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`

	// Optional location metadata
	LocationLat   *float64 `json:"locationLat,omitempty"`
	LocationLng   *float64 `json:"locationLng,omitempty"`
	LocationTitle string   `gorm:"size:255" json:"locationTitle,omitempty"`

	// Optional ephemeral effect tag (e.g. confetti)
	Effects JSONB `gorm:"type:jsonb" json:"effects,omitempty"`

	// Optional rich card payload from a trusted extension
	CardPayload JSONB `gorm:"type:jsonb" json:"cardPayload,omitempty"`

	IsEdited bool       `gorm:"default:false" json:"isEdited"`
	EditedAt *time.Time `json:"editedAt,omitempty"`

	// Soft delete (unsend); content is cleared when set
	IsDeleted bool       `gorm:"default:false" json:"isDeleted"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	// ReadBy is the per-reader read-set, idempotent by construction
	ReadBy StringList `gorm:"type:jsonb" json:"readBy,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_messages_chat_created" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	Sender         *User    `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	RepliedMessage *Message `gorm:"foreignKey:ReplyTo" json:"repliedMessage,omitempty"`
}

// TableName specifies the table name for Message model
func (Message) TableName() string {
	return "messages"
}

// MessageReaction is a (message, user, emoji) triple, unique per triple.
// Reapplying the same emoji removes it (toggle).
type MessageReaction struct {
	ID        string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	MessageID string    `gorm:"type:uuid;uniqueIndex:idx_reactions_msg_user_emoji" json:"messageId"`
	UserID    string    `gorm:"type:uuid;uniqueIndex:idx_reactions_msg_user_emoji" json:"userId"`
	Emoji     string    `gorm:"size:32;uniqueIndex:idx_reactions_msg_user_emoji" json:"emoji"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for MessageReaction model
func (MessageReaction) TableName() string {
	return "message_reactions"
}
