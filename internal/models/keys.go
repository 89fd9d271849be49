package models

import (
	"time"
)

// IdentityKey is a principal's long-term public identity key plus the
// current signed prekey. Re-publishing overwrites the row (key rotation).
type IdentityKey struct {
	UserID         string `gorm:"primaryKey;type:uuid" json:"userId"`
	RegistrationID int    `json:"registrationId"`
	PublicKey      string `gorm:"type:text;not null" json:"publicKey"`

	SignedPreKeyID        int    `json:"signedPreKeyId"`
	SignedPreKey          string `gorm:"type:text;not null" json:"signedPreKey"`
	SignedPreKeySignature string `gorm:"type:text;not null" json:"signedPreKeySignature"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for IdentityKey model
func (IdentityKey) TableName() string {
	return "identity_keys"
}

// OneTimePreKey is a consume-once public key. A row is handed to at most
// one bundle fetch and removed from the pool in the same operation.
type OneTimePreKey struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UserID    string    `gorm:"type:uuid;index" json:"userId"`
	KeyID     int       `json:"keyId"`
	PublicKey string    `gorm:"type:text;not null" json:"publicKey"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName specifies the table name for OneTimePreKey model
func (OneTimePreKey) TableName() string {
	return "one_time_pre_keys"
}

// SignedPreKeyInfo is the signed prekey shape served inside a bundle
type SignedPreKeyInfo struct {
	KeyID     int    `json:"keyId"`
	PublicKey string `json:"publicKey"`
	Signature string `json:"signature"`
}

// OneTimePreKeyInfo is the one-time prekey shape served inside a bundle
type OneTimePreKeyInfo struct {
	KeyID     int    `json:"keyId"`
	PublicKey string `json:"publicKey"`
}

// PreKeyBundle is what a peer fetches to start a session. OneTimePreKey is
// nil when the pool is exhausted; the peer falls back to the signed prekey.
type PreKeyBundle struct {
	UserID         string             `json:"userId"`
	RegistrationID int                `json:"registrationId"`
	IdentityKey    string             `json:"identityKey"`
	SignedPreKey   SignedPreKeyInfo   `json:"signedPreKey"`
	OneTimePreKey  *OneTimePreKeyInfo `json:"oneTimePreKey"`
}
