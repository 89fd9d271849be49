package models

import (
	"time"
)

// ChatType discriminates one-to-one and group conversations
type ChatType string

const (
	ChatTypeDirect ChatType = "direct"
	ChatTypeGroup  ChatType = "group"
)

// ParticipantRole is the role of a member inside a chat
type ParticipantRole string

const (
	RoleAdmin     ParticipantRole = "admin"
	RoleModerator ParticipantRole = "moderator"
	RoleMember    ParticipantRole = "member"
)

// Chat represents a conversation (direct or group)
type Chat struct {
	ID               string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Type             ChatType   `gorm:"type:varchar(16);default:'direct'" json:"type"`
	Title            string     `gorm:"size:100" json:"title,omitempty"`
	GroupDescription string     `gorm:"size:500" json:"groupDescription,omitempty"`
	GroupAvatar      string     `json:"groupAvatar,omitempty"`
	CreatedBy        string     `json:"createdBy,omitempty"`
	LastMessageAt    *time.Time `json:"lastMessageAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	Participants []ChatParticipant `gorm:"foreignKey:ChatID" json:"participants,omitempty"`
}

// TableName specifies the table name for Chat model
func (Chat) TableName() string {
	return "chats"
}

// ChatParticipant is the per-(user, chat) membership record.
// A row with LeftAt == nil is an active membership; every write to a chat
// is authorized against that.
type ChatParticipant struct {
	ID       string          `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ChatID   string          `gorm:"type:uuid;uniqueIndex:idx_chat_participants_chat_user" json:"chatId"`
	UserID   string          `gorm:"type:uuid;uniqueIndex:idx_chat_participants_chat_user" json:"userId"`
	Role     ParticipantRole `gorm:"type:varchar(16);default:'member'" json:"role"`
	JoinedAt time.Time       `gorm:"autoCreateTime" json:"joinedAt"`
	LeftAt   *time.Time      `json:"leftAt,omitempty"`
	IsMuted  bool            `gorm:"default:false" json:"isMuted"`

	// UnreadCount is only ever moved by atomic increments and resets;
	// history fetches recompute it rather than trusting drift.
	UnreadCount       int        `gorm:"default:0" json:"unreadCount"`
	LastReadMessageID *string    `gorm:"type:uuid" json:"lastReadMessageId,omitempty"`
	LastReadAt        *time.Time `json:"lastReadAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName specifies the table name for ChatParticipant model
func (ChatParticipant) TableName() string {
	return "chat_participants"
}

// Active reports whether the membership has not been left
func (p *ChatParticipant) Active() bool {
	return p.LeftAt == nil
}

// ChatPin marks a chat pinned by a user, unique per (user, chat)
type ChatPin struct {
	ID       string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID   string    `gorm:"type:uuid;uniqueIndex:idx_chat_pins_user_chat" json:"userId"`
	ChatID   string    `gorm:"type:uuid;uniqueIndex:idx_chat_pins_user_chat" json:"chatId"`
	PinnedAt time.Time `gorm:"autoCreateTime" json:"pinnedAt"`
}

// TableName specifies the table name for ChatPin model
func (ChatPin) TableName() string {
	return "chat_pins"
}
