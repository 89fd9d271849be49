package models

import (
	"time"

	"gorm.io/datatypes"
)

// RetentionItemType names the kind of soft-deleted item a record snapshots
type RetentionItemType string

const (
	RetentionItemMessage RetentionItemType = "message"
	RetentionItemChat    RetentionItemType = "chat"
)

// RetentionRecord snapshots a soft-deleted item for the recovery window.
// A record moves active -> (restored | expired-purge | permanently-deleted)
// and never leaves a terminal state.
type RetentionRecord struct {
	ID       string            `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ItemType RetentionItemType `gorm:"type:varchar(32);index:idx_recently_deleted_user_type" json:"itemType"`
	ItemID   string            `gorm:"type:uuid" json:"itemId"`
	UserID   string            `gorm:"type:uuid;index:idx_recently_deleted_user_type" json:"userId"`
	ChatID   *string           `gorm:"type:uuid" json:"chatId,omitempty"`

	DeletedAt time.Time `json:"deletedAt"`
	ExpiryAt  time.Time `gorm:"index" json:"expiryAt"`

	// Payload is the full pre-delete snapshot required for restore
	Payload datatypes.JSON `gorm:"type:jsonb" json:"payload,omitempty"`

	PermanentlyDeleted   bool       `gorm:"default:false" json:"permanentlyDeleted"`
	PermanentlyDeletedAt *time.Time `json:"permanentlyDeletedAt,omitempty"`
	RestoredAt           *time.Time `json:"restoredAt,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for RetentionRecord model
func (RetentionRecord) TableName() string {
	return "recently_deleted"
}

// ActiveAt reports whether the record is still restorable at now.
// Expiry is evaluated on read so the sweep and the restore path can
// never race into inconsistent outcomes.
func (r *RetentionRecord) ActiveAt(now time.Time) bool {
	return !r.PermanentlyDeleted && r.RestoredAt == nil && r.ExpiryAt.After(now)
}
