package models

import (
	"time"
)

// User represents an authenticated principal
// Standardized: Go (PascalCase) -> DB (snake_case) -> JSON (camelCase)
type User struct {
	ID             string     `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	CountryCode    string     `gorm:"size:5;uniqueIndex:idx_users_phone" json:"countryCode"`
	Phone          string     `gorm:"size:20;uniqueIndex:idx_users_phone" json:"phone"`
	Name           string     `gorm:"size:100" json:"name,omitempty"`
	Bio            string     `gorm:"size:500" json:"bio,omitempty"`
	ProfilePicture string     `json:"profilePicture,omitempty"`
	IsVerified     bool       `gorm:"default:false" json:"isVerified"`
	IsOnline       bool       `gorm:"default:false" json:"isOnline"`
	LastSeen       *time.Time `json:"lastSeen,omitempty"`
	// ConnectionID is the id of the latest admitted socket.
	// Last writer wins on reconnect.
	ConnectionID *string `gorm:"column:socket_id" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}

// UserRef is the sender shape embedded in delivered message payloads
type UserRef struct {
	ID             string `json:"id"`
	Name           string `json:"name,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// Ref returns the display fields resolved for fan-out payloads
func (u *User) Ref() UserRef {
	return UserRef{ID: u.ID, Name: u.Name, ProfilePicture: u.ProfilePicture}
}
