package store

import (
	"context"
	"errors"
	"time"

	"github.com/bakbak-chat/bakbakgo/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on PostgreSQL via GORM
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates the persistent store
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

var _ Store = (*GormStore)(nil)

// --- users ---

func (s *GormStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *GormStore) SetOnline(ctx context.Context, id, connectionID string) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_online": true,
			"socket_id": connectionID,
		}).Error
}

func (s *GormStore) SetOffline(ctx context.Context, id string, lastSeen time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_online": false,
			"last_seen": lastSeen,
			"socket_id": gorm.Expr("NULL"),
		}).Error
}

// --- chats ---

func (s *GormStore) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	var chat models.Chat
	err := s.db.WithContext(ctx).First(&chat, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *GormStore) ListChatsForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	var chats []models.Chat
	err := s.db.WithContext(ctx).
		Joins("JOIN chat_participants cp ON cp.chat_id = chats.id").
		Where("cp.user_id = ? AND cp.left_at IS NULL", userID).
		Preload("Participants", "left_at IS NULL").
		Preload("Participants.User").
		Order("chats.last_message_at DESC NULLS LAST").
		Find(&chats).Error
	return chats, err
}

func (s *GormStore) TouchLastMessageAt(ctx context.Context, chatID string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Chat{}).Where("id = ?", chatID).
		UpdateColumn("last_message_at", at).Error
}

func (s *GormStore) PinChat(ctx context.Context, userID, chatID string) (*models.ChatPin, error) {
	var pin models.ChatPin
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND chat_id = ?", userID, chatID).First(&pin).Error
	if err == nil {
		return &pin, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	pin = models.ChatPin{UserID: userID, ChatID: chatID, PinnedAt: time.Now()}
	if err := s.db.WithContext(ctx).Create(&pin).Error; err != nil {
		return nil, err
	}
	return &pin, nil
}

func (s *GormStore) UnpinChat(ctx context.Context, userID, chatID string) error {
	return s.db.WithContext(ctx).
		Where("user_id = ? AND chat_id = ?", userID, chatID).
		Delete(&models.ChatPin{}).Error
}

func (s *GormStore) ListPinnedChatIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.ChatPin{}).
		Where("user_id = ?", userID).Pluck("chat_id", &ids).Error
	return ids, err
}

// --- participants ---

func (s *GormStore) GetParticipant(ctx context.Context, chatID, userID string) (*models.ChatParticipant, error) {
	var p models.ChatParticipant
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatID, userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *GormStore) ListActiveChatIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	err := s.db.WithContext(ctx).Model(&models.ChatParticipant{}).
		Where("user_id = ? AND left_at IS NULL", userID).
		Pluck("chat_id", &ids).Error
	return ids, err
}

func (s *GormStore) ListActiveParticipants(ctx context.Context, chatID string) ([]models.ChatParticipant, error) {
	var out []models.ChatParticipant
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND left_at IS NULL", chatID).Find(&out).Error
	return out, err
}

func (s *GormStore) IncrementUnread(ctx context.Context, chatID, exceptUserID string) error {
	// Single UPDATE so concurrent sends never lose increments
	return s.db.WithContext(ctx).Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id <> ? AND left_at IS NULL", chatID, exceptUserID).
		UpdateColumn("unread_count", gorm.Expr("unread_count + ?", 1)).Error
}

func (s *GormStore) ResetUnread(ctx context.Context, chatID, userID string, lastReadMessageID *string, at time.Time) error {
	updates := map[string]interface{}{
		"unread_count": 0,
		"last_read_at": at,
	}
	if lastReadMessageID != nil {
		updates["last_read_message_id"] = *lastReadMessageID
	}
	return s.db.WithContext(ctx).Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Updates(updates).Error
}

// --- messages ---

func (s *GormStore) CreateMessage(ctx context.Context, m *models.Message) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *GormStore) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *GormStore) GetMessageWithRelations(ctx context.Context, id string) (*models.Message, error) {
	var m models.Message
	err := s.db.WithContext(ctx).
		Preload("Sender").
		Preload("RepliedMessage").
		Preload("RepliedMessage.Sender").
		First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *GormStore) ListMessages(ctx context.Context, chatID string, limit, offset int, before *time.Time) ([]models.Message, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ?", chatID)
	if before != nil {
		query = query.Where("created_at < ?", *before)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var messages []models.Message
	err := query.
		Preload("Sender").
		Preload("RepliedMessage").
		Preload("RepliedMessage.Sender").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&messages).Error
	return messages, total, err
}

func (s *GormStore) ListRecentMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.WithContext(ctx).
		Where("chat_id = ? AND is_deleted = false", chatID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	return messages, err
}

func (s *GormStore) UpdateMessageContent(ctx context.Context, id, content string, editedAt time.Time) error {
	return s.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"content":   content,
			"is_edited": true,
			"edited_at": editedAt,
		}).Error
}

func (s *GormStore) MarkChatRead(ctx context.Context, chatID, readerID string) error {
	return s.db.WithContext(ctx).Model(&models.Message{}).
		Where("chat_id = ? AND sender_id <> ? AND status <> ?", chatID, readerID, models.StatusRead).
		UpdateColumn("status", models.StatusRead).Error
}

func (s *GormStore) AddMessageReader(ctx context.Context, id, readerID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m models.Message
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&m, "id = ?", id).Error
		if err != nil {
			return err
		}
		if m.ReadBy.Contains(readerID) {
			return nil
		}
		return tx.Model(&models.Message{}).Where("id = ?", id).
			Updates(map[string]interface{}{
				"read_by": append(m.ReadBy, readerID),
				"status":  models.StatusRead,
			}).Error
	})
}

func (s *GormStore) SoftDeleteMessage(ctx context.Context, id string, at time.Time) error {
	// Content is cleared in the same statement for privacy
	return s.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted": true,
			"deleted_at": at,
			"content":    "",
		}).Error
}

func (s *GormStore) RestoreMessage(ctx context.Context, id string, snapshot *models.Message) error {
	return s.db.WithContext(ctx).Model(&models.Message{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted":    false,
			"deleted_at":    gorm.Expr("NULL"),
			"content":       snapshot.Content,
			"file_url":      snapshot.FileURL,
			"file_name":     snapshot.FileName,
			"file_size":     snapshot.FileSize,
			"thumbnail_url": snapshot.ThumbnailURL,
		}).Error
}

func (s *GormStore) HardDeleteMessage(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.Message{}, "id = ?", id).Error
}

// --- reactions ---

func (s *GormStore) FindReaction(ctx context.Context, messageID, userID, emoji string) (*models.MessageReaction, error) {
	var r models.MessageReaction
	err := s.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ? AND emoji = ?", messageID, userID, emoji).
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *GormStore) AddReaction(ctx context.Context, r *models.MessageReaction) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *GormStore) RemoveReaction(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&models.MessageReaction{}, "id = ?", id).Error
}

func (s *GormStore) ReactionCounts(ctx context.Context, messageID string) (map[string]int, error) {
	var rows []struct {
		Emoji string
		N     int
	}
	err := s.db.WithContext(ctx).Model(&models.MessageReaction{}).
		Select("emoji, COUNT(*) AS n").
		Where("message_id = ?", messageID).
		Group("emoji").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Emoji] = row.N
	}
	return counts, nil
}

// --- retention ---

func (s *GormStore) CreateRetentionRecord(ctx context.Context, r *models.RetentionRecord) error {
	return s.db.WithContext(ctx).Create(r).Error
}

func (s *GormStore) GetRetentionRecord(ctx context.Context, itemID string, itemType models.RetentionItemType, userID string) (*models.RetentionRecord, error) {
	var r models.RetentionRecord
	err := s.db.WithContext(ctx).
		Where("item_id = ? AND item_type = ? AND user_id = ? AND permanently_deleted = false",
			itemID, itemType, userID).
		Order("deleted_at DESC").
		First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *GormStore) ListActiveRetention(ctx context.Context, userID string, now time.Time) ([]models.RetentionRecord, error) {
	var out []models.RetentionRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND permanently_deleted = false AND restored_at IS NULL AND expiry_at > ?", userID, now).
		Order("deleted_at DESC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) MarkRestored(ctx context.Context, recordID string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.RetentionRecord{}).
		Where("id = ?", recordID).
		UpdateColumn("restored_at", at).Error
}

func (s *GormStore) MarkPermanentlyDeleted(ctx context.Context, recordID string, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.RetentionRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]interface{}{
			"permanently_deleted":    true,
			"permanently_deleted_at": at,
		}).Error
}

func (s *GormStore) ListExpiredRetention(ctx context.Context, now time.Time, limit int) ([]models.RetentionRecord, error) {
	var out []models.RetentionRecord
	err := s.db.WithContext(ctx).
		Where("permanently_deleted = false AND restored_at IS NULL AND expiry_at < ?", now).
		Order("expiry_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// --- keys ---

func (s *GormStore) SaveKeyBundle(ctx context.Context, identity *models.IdentityKey, oneTime []models.OneTimePreKey) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			UpdateAll: true,
		}).Create(identity).Error
		if err != nil {
			return err
		}
		// Publishing rotates the pool: old one-time keys are discarded
		if err := tx.Delete(&models.OneTimePreKey{}, "user_id = ?", identity.UserID).Error; err != nil {
			return err
		}
		if len(oneTime) == 0 {
			return nil
		}
		return tx.Create(&oneTime).Error
	})
}

func (s *GormStore) AddOneTimePreKeys(ctx context.Context, userID string, keys []models.OneTimePreKey) error {
	if len(keys) == 0 {
		return nil
	}
	for i := range keys {
		keys[i].UserID = userID
	}
	return s.db.WithContext(ctx).Create(&keys).Error
}

func (s *GormStore) GetIdentityKey(ctx context.Context, userID string) (*models.IdentityKey, error) {
	var k models.IdentityKey
	err := s.db.WithContext(ctx).First(&k, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *GormStore) PopOneTimePreKey(ctx context.Context, userID string) (*models.OneTimePreKey, error) {
	// DELETE of a row selected FOR UPDATE SKIP LOCKED: two concurrent
	// fetches can never pop the same key.
	var key models.OneTimePreKey
	tx := s.db.WithContext(ctx).Raw(`
		DELETE FROM one_time_pre_keys
		WHERE id = (
			SELECT id FROM one_time_pre_keys
			WHERE user_id = ?
			ORDER BY key_id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id, user_id, key_id, public_key, created_at`, userID).Scan(&key)
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		return nil, nil
	}
	return &key, nil
}

func (s *GormStore) CountOneTimePreKeys(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.OneTimePreKey{}).
		Where("user_id = ?", userID).Count(&n).Error
	return n, err
}

// --- summaries ---

func (s *GormStore) CreateSummary(ctx context.Context, sum *models.ChatSummary) error {
	return s.db.WithContext(ctx).Create(sum).Error
}

func (s *GormStore) LatestSummary(ctx context.Context, chatID string) (*models.ChatSummary, error) {
	var sum models.ChatSummary
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		First(&sum).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sum, nil
}
