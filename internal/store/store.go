package store

import (
	"context"
	"time"

	"github.com/bakbak-chat/bakbakgo/internal/models"
)

// Lookup methods return (nil, nil) when the row does not exist; a non-nil
// error always means the storage call itself failed.

type UserStore interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	// SetOnline records the latest connection id; last writer wins.
	SetOnline(ctx context.Context, id, connectionID string) error
	SetOffline(ctx context.Context, id string, lastSeen time.Time) error
}

type ChatStore interface {
	GetChat(ctx context.Context, id string) (*models.Chat, error)
	ListChatsForUser(ctx context.Context, userID string) ([]models.Chat, error)
	TouchLastMessageAt(ctx context.Context, chatID string, at time.Time) error
	PinChat(ctx context.Context, userID, chatID string) (*models.ChatPin, error)
	UnpinChat(ctx context.Context, userID, chatID string) error
	ListPinnedChatIDs(ctx context.Context, userID string) ([]string, error)
}

type ParticipantStore interface {
	GetParticipant(ctx context.Context, chatID, userID string) (*models.ChatParticipant, error)
	ListActiveChatIDs(ctx context.Context, userID string) ([]string, error)
	ListActiveParticipants(ctx context.Context, chatID string) ([]models.ChatParticipant, error)
	// IncrementUnread bumps every active member except the sender by one,
	// as a single atomic statement.
	IncrementUnread(ctx context.Context, chatID, exceptUserID string) error
	ResetUnread(ctx context.Context, chatID, userID string, lastReadMessageID *string, at time.Time) error
}

type MessageStore interface {
	CreateMessage(ctx context.Context, m *models.Message) error
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	// GetMessageWithRelations preloads sender and reply-target for fan-out.
	GetMessageWithRelations(ctx context.Context, id string) (*models.Message, error)
	// ListMessages pages newest-first; before narrows to older messages.
	ListMessages(ctx context.Context, chatID string, limit, offset int, before *time.Time) ([]models.Message, int64, error)
	ListRecentMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error)
	UpdateMessageContent(ctx context.Context, id, content string, editedAt time.Time) error
	// MarkChatRead flips every unread message from other senders to read.
	MarkChatRead(ctx context.Context, chatID, readerID string) error
	// AddMessageReader adds the reader to the message read-set; idempotent.
	AddMessageReader(ctx context.Context, id, readerID string) error
	SoftDeleteMessage(ctx context.Context, id string, at time.Time) error
	RestoreMessage(ctx context.Context, id string, snapshot *models.Message) error
	HardDeleteMessage(ctx context.Context, id string) error
}

type ReactionStore interface {
	FindReaction(ctx context.Context, messageID, userID, emoji string) (*models.MessageReaction, error)
	AddReaction(ctx context.Context, r *models.MessageReaction) error
	RemoveReaction(ctx context.Context, id string) error
	ReactionCounts(ctx context.Context, messageID string) (map[string]int, error)
}

type RetentionStore interface {
	CreateRetentionRecord(ctx context.Context, r *models.RetentionRecord) error
	// GetRetentionRecord returns the non-purged record for an item, if any.
	GetRetentionRecord(ctx context.Context, itemID string, itemType models.RetentionItemType, userID string) (*models.RetentionRecord, error)
	ListActiveRetention(ctx context.Context, userID string, now time.Time) ([]models.RetentionRecord, error)
	MarkRestored(ctx context.Context, recordID string, at time.Time) error
	MarkPermanentlyDeleted(ctx context.Context, recordID string, at time.Time) error
	ListExpiredRetention(ctx context.Context, now time.Time, limit int) ([]models.RetentionRecord, error)
}

type KeyStore interface {
	// SaveKeyBundle upserts the identity row and replaces the one-time pool.
	SaveKeyBundle(ctx context.Context, identity *models.IdentityKey, oneTime []models.OneTimePreKey) error
	AddOneTimePreKeys(ctx context.Context, userID string, keys []models.OneTimePreKey) error
	GetIdentityKey(ctx context.Context, userID string) (*models.IdentityKey, error)
	// PopOneTimePreKey removes and returns one key atomically; (nil, nil)
	// when the pool is exhausted. Concurrent pops never return the same key.
	PopOneTimePreKey(ctx context.Context, userID string) (*models.OneTimePreKey, error)
	CountOneTimePreKeys(ctx context.Context, userID string) (int64, error)
}

type SummaryStore interface {
	CreateSummary(ctx context.Context, s *models.ChatSummary) error
	LatestSummary(ctx context.Context, chatID string) (*models.ChatSummary, error)
}

// Store is the full persistence contract of the realtime core
type Store interface {
	UserStore
	ChatStore
	ParticipantStore
	MessageStore
	ReactionStore
	RetentionStore
	KeyStore
	SummaryStore
}
