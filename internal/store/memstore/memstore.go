// Package memstore is an in-memory Store used by service tests and by
// local development without PostgreSQL. It mirrors the semantics of the
// GORM store, including atomic unread increments and consume-once prekey
// pops.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bakbak-chat/bakbakgo/internal/models"
	"github.com/bakbak-chat/bakbakgo/internal/store"
)

// Store keeps every table as a map guarded by one mutex. Fine for tests;
// contention is not a concern at this scale.
type Store struct {
	mu sync.Mutex

	users        map[string]*models.User
	chats        map[string]*models.Chat
	participants map[string]*models.ChatParticipant // by participant id
	pins         map[string]*models.ChatPin
	messages     map[string]*models.Message
	reactions    map[string]*models.MessageReaction
	retention    map[string]*models.RetentionRecord
	identities   map[string]*models.IdentityKey // by user id
	oneTimeKeys  map[string][]models.OneTimePreKey
	summaries    []models.ChatSummary
}

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		users:        make(map[string]*models.User),
		chats:        make(map[string]*models.Chat),
		participants: make(map[string]*models.ChatParticipant),
		pins:         make(map[string]*models.ChatPin),
		messages:     make(map[string]*models.Message),
		reactions:    make(map[string]*models.MessageReaction),
		retention:    make(map[string]*models.RetentionRecord),
		identities:   make(map[string]*models.IdentityKey),
		oneTimeKeys:  make(map[string][]models.OneTimePreKey),
	}
}

var _ store.Store = (*Store)(nil)

// Seed helpers used by tests

func (s *Store) AddUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	s.users[u.ID] = u
}

func (s *Store) AddChat(c *models.Chat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	s.chats[c.ID] = c
}

func (s *Store) AddParticipant(p *models.ChatParticipant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	s.participants[p.ID] = p
}

// --- users ---

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (s *Store) SetOnline(ctx context.Context, id, connectionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsOnline = true
		cid := connectionID
		u.ConnectionID = &cid
	}
	return nil
}

func (s *Store) SetOffline(ctx context.Context, id string, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[id]; ok {
		u.IsOnline = false
		u.LastSeen = &lastSeen
		u.ConnectionID = nil
	}
	return nil
}

// --- chats ---

func (s *Store) GetChat(ctx context.Context, id string) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *Store) ListChatsForUser(ctx context.Context, userID string) ([]models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Chat
	for _, p := range s.participants {
		if p.UserID != userID || p.LeftAt != nil {
			continue
		}
		if c, ok := s.chats[p.ChatID]; ok {
			cp := *c
			for _, q := range s.participants {
				if q.ChatID == c.ID && q.LeftAt == nil {
					qc := *q
					if u, ok := s.users[q.UserID]; ok {
						uc := *u
						qc.User = &uc
					}
					cp.Participants = append(cp.Participants, qc)
				}
			}
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := out[i].LastMessageAt, out[j].LastMessageAt
		if ti == nil {
			return false
		}
		if tj == nil {
			return true
		}
		return ti.After(*tj)
	})
	return out, nil
}

func (s *Store) TouchLastMessageAt(ctx context.Context, chatID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.chats[chatID]; ok {
		t := at
		c.LastMessageAt = &t
	}
	return nil
}

func (s *Store) PinChat(ctx context.Context, userID, chatID string) (*models.ChatPin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pins {
		if p.UserID == userID && p.ChatID == chatID {
			cp := *p
			return &cp, nil
		}
	}
	pin := &models.ChatPin{ID: uuid.New().String(), UserID: userID, ChatID: chatID, PinnedAt: time.Now()}
	s.pins[pin.ID] = pin
	cp := *pin
	return &cp, nil
}

func (s *Store) UnpinChat(ctx context.Context, userID, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.pins {
		if p.UserID == userID && p.ChatID == chatID {
			delete(s.pins, id)
		}
	}
	return nil
}

func (s *Store) ListPinnedChatIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, p := range s.pins {
		if p.UserID == userID {
			ids = append(ids, p.ChatID)
		}
	}
	return ids, nil
}

// --- participants ---

func (s *Store) GetParticipant(ctx context.Context, chatID, userID string) (*models.ChatParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p.ChatID == chatID && p.UserID == userID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) ListActiveChatIDs(ctx context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for _, p := range s.participants {
		if p.UserID == userID && p.LeftAt == nil {
			ids = append(ids, p.ChatID)
		}
	}
	return ids, nil
}

func (s *Store) ListActiveParticipants(ctx context.Context, chatID string) ([]models.ChatParticipant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatParticipant
	for _, p := range s.participants {
		if p.ChatID == chatID && p.LeftAt == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *Store) IncrementUnread(ctx context.Context, chatID, exceptUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p.ChatID == chatID && p.UserID != exceptUserID && p.LeftAt == nil {
			p.UnreadCount++
		}
	}
	return nil
}

func (s *Store) ResetUnread(ctx context.Context, chatID, userID string, lastReadMessageID *string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p.ChatID == chatID && p.UserID == userID {
			p.UnreadCount = 0
			t := at
			p.LastReadAt = &t
			if lastReadMessageID != nil {
				id := *lastReadMessageID
				p.LastReadMessageID = &id
			}
		}
	}
	return nil
}

// --- messages ---

func (s *Store) CreateMessage(ctx context.Context, m *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.Status == "" {
		m.Status = models.StatusSent
	}
	cp := *m
	s.messages[m.ID] = &cp
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *Store) GetMessageWithRelations(ctx context.Context, id string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	if u, ok := s.users[m.SenderID]; ok {
		uc := *u
		cp.Sender = &uc
	}
	if m.ReplyTo != nil {
		if rm, ok := s.messages[*m.ReplyTo]; ok {
			rc := *rm
			if ru, ok := s.users[rm.SenderID]; ok {
				ruc := *ru
				rc.Sender = &ruc
			}
			cp.RepliedMessage = &rc
		}
	}
	return &cp, nil
}

func (s *Store) ListMessages(ctx context.Context, chatID string, limit, offset int, before *time.Time) ([]models.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []models.Message
	for _, m := range s.messages {
		if m.ChatID != chatID {
			continue
		}
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		cp := *m
		if u, ok := s.users[m.SenderID]; ok {
			uc := *u
			cp.Sender = &uc
		}
		all = append(all, cp)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (s *Store) ListRecentMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	msgs, _, err := s.ListMessages(ctx, chatID, limit, 0, nil)
	if err != nil {
		return nil, err
	}
	out := msgs[:0]
	for _, m := range msgs {
		if !m.IsDeleted {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) UpdateMessageContent(ctx context.Context, id, content string, editedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[id]; ok {
		m.Content = content
		m.IsEdited = true
		t := editedAt
		m.EditedAt = &t
	}
	return nil
}

func (s *Store) MarkChatRead(ctx context.Context, chatID, readerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.messages {
		if m.ChatID == chatID && m.SenderID != readerID && m.Status != models.StatusRead {
			m.Status = models.StatusRead
		}
	}
	return nil
}

func (s *Store) AddMessageReader(ctx context.Context, id, readerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[id]; ok {
		if !m.ReadBy.Contains(readerID) {
			m.ReadBy = append(m.ReadBy, readerID)
		}
		m.Status = models.StatusRead
	}
	return nil
}

func (s *Store) SoftDeleteMessage(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[id]; ok {
		m.IsDeleted = true
		t := at
		m.DeletedAt = &t
		m.Content = ""
	}
	return nil
}

func (s *Store) RestoreMessage(ctx context.Context, id string, snapshot *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.messages[id]; ok {
		m.IsDeleted = false
		m.DeletedAt = nil
		m.Content = snapshot.Content
		m.FileURL = snapshot.FileURL
		m.FileName = snapshot.FileName
		m.FileSize = snapshot.FileSize
		m.ThumbnailURL = snapshot.ThumbnailURL
	}
	return nil
}

func (s *Store) HardDeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
	return nil
}

// --- reactions ---

func (s *Store) FindReaction(ctx context.Context, messageID, userID, emoji string) (*models.MessageReaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.reactions {
		if r.MessageID == messageID && r.UserID == userID && r.Emoji == emoji {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *Store) AddReaction(ctx context.Context, r *models.MessageReaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	cp := *r
	s.reactions[r.ID] = &cp
	return nil
}

func (s *Store) RemoveReaction(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.reactions, id)
	return nil
}

func (s *Store) ReactionCounts(ctx context.Context, messageID string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]int)
	for _, r := range s.reactions {
		if r.MessageID == messageID {
			counts[r.Emoji]++
		}
	}
	return counts, nil
}

// --- retention ---

func (s *Store) CreateRetentionRecord(ctx context.Context, r *models.RetentionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	cp := *r
	s.retention[r.ID] = &cp
	return nil
}

func (s *Store) GetRetentionRecord(ctx context.Context, itemID string, itemType models.RetentionItemType, userID string) (*models.RetentionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.RetentionRecord
	for _, r := range s.retention {
		if r.ItemID == itemID && r.ItemType == itemType && r.UserID == userID && !r.PermanentlyDeleted {
			if latest == nil || r.DeletedAt.After(latest.DeletedAt) {
				latest = r
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (s *Store) ListActiveRetention(ctx context.Context, userID string, now time.Time) ([]models.RetentionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RetentionRecord
	for _, r := range s.retention {
		if r.UserID == userID && r.ActiveAt(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeletedAt.After(out[j].DeletedAt) })
	return out, nil
}

func (s *Store) MarkRestored(ctx context.Context, recordID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.retention[recordID]; ok {
		t := at
		r.RestoredAt = &t
	}
	return nil
}

func (s *Store) MarkPermanentlyDeleted(ctx context.Context, recordID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.retention[recordID]; ok {
		r.PermanentlyDeleted = true
		t := at
		r.PermanentlyDeletedAt = &t
	}
	return nil
}

func (s *Store) ListExpiredRetention(ctx context.Context, now time.Time, limit int) ([]models.RetentionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RetentionRecord
	for _, r := range s.retention {
		if !r.PermanentlyDeleted && r.RestoredAt == nil && r.ExpiryAt.Before(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiryAt.Before(out[j].ExpiryAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// --- keys ---

func (s *Store) SaveKeyBundle(ctx context.Context, identity *models.IdentityKey, oneTime []models.OneTimePreKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *identity
	s.identities[identity.UserID] = &cp
	pool := make([]models.OneTimePreKey, len(oneTime))
	copy(pool, oneTime)
	s.oneTimeKeys[identity.UserID] = pool
	return nil
}

func (s *Store) AddOneTimePreKeys(ctx context.Context, userID string, keys []models.OneTimePreKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		k.UserID = userID
		s.oneTimeKeys[userID] = append(s.oneTimeKeys[userID], k)
	}
	return nil
}

func (s *Store) GetIdentityKey(ctx context.Context, userID string) (*models.IdentityKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.identities[userID]
	if !ok {
		return nil, nil
	}
	cp := *k
	return &cp, nil
}

func (s *Store) PopOneTimePreKey(ctx context.Context, userID string) (*models.OneTimePreKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pool := s.oneTimeKeys[userID]
	if len(pool) == 0 {
		return nil, nil
	}
	key := pool[0]
	s.oneTimeKeys[userID] = pool[1:]
	return &key, nil
}

func (s *Store) CountOneTimePreKeys(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.oneTimeKeys[userID])), nil
}

// --- summaries ---

func (s *Store) CreateSummary(ctx context.Context, sum *models.ChatSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sum.ID == "" {
		sum.ID = uuid.New().String()
	}
	if sum.CreatedAt.IsZero() {
		sum.CreatedAt = time.Now()
	}
	s.summaries = append(s.summaries, *sum)
	return nil
}

func (s *Store) LatestSummary(ctx context.Context, chatID string) (*models.ChatSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.ChatSummary
	for i := range s.summaries {
		sum := &s.summaries[i]
		if sum.ChatID != chatID {
			continue
		}
		if latest == nil || sum.CreatedAt.After(latest.CreatedAt) {
			latest = sum
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}
