package models

import (
	"time"
)

// ChatSummary is a persisted digest of a chat's recent messages.
// Newest row wins on read.
type ChatSummary struct {
	ID           string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ChatID       string    `gorm:"type:uuid;index:idx_chat_summaries_chat_created" json:"chatId"`
	SummaryText  string    `gorm:"type:text" json:"summaryText"`
	ModelVersion string    `gorm:"size:64" json:"modelVersion,omitempty"`
	CreatedAt    time.Time `gorm:"index:idx_chat_summaries_chat_created" json:"createdAt"`
}

// TableName specifies the table name for ChatSummary model
func (ChatSummary) TableName() string {
	return "chat_summaries"
}
