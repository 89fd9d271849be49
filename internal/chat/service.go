package chat

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/bakbak-chat/bakbakgo/internal/apperr"
	"github.com/bakbak-chat/bakbakgo/internal/config"
	"github.com/bakbak-chat/bakbakgo/internal/events"
	"github.com/bakbak-chat/bakbakgo/internal/models"
	"github.com/bakbak-chat/bakbakgo/internal/store"
	"github.com/bakbak-chat/bakbakgo/internal/websocket"
)

// Service is the message delivery pipeline. It owns membership checks,
// persistence ordering and realtime fan-out for every message operation,
// whether the request arrived over the socket or REST.
type Service struct {
	store store.Store
	sink  events.Sink

	editWindow      time.Duration
	retentionWindow time.Duration
	pageSize        int
}

func NewService(st store.Store, sink events.Sink, cfg *config.Config) *Service {
	return &Service{
		store:           st,
		sink:            sink,
		editWindow:      cfg.Messaging.EditWindow,
		retentionWindow: cfg.Retention.Window,
		pageSize:        cfg.Messaging.HistoryPageSize,
	}
}

// requireParticipant loads the caller's active membership row
func (s *Service) requireParticipant(ctx context.Context, chatID, userID string) (*models.ChatParticipant, error) {
	p, err := s.store.GetParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, apperr.Internal("failed to check chat membership", err)
	}
	if p == nil || !p.Active() {
		return nil, apperr.ErrNotParticipant
	}
	return p, nil
}

// SendMessage persists a message and fans it out to the chat room.
// Persist happens before broadcast so no client ever sees a message
// that could be lost.
func (s *Service) SendMessage(ctx context.Context, senderID string, req websocket.SendRequest) error {
	_, err := s.Send(ctx, senderID, req)
	return err
}

// Send is SendMessage returning the created payload, for the REST mirror.
func (s *Service) Send(ctx context.Context, senderID string, req websocket.SendRequest) (*events.MessagePayload, error) {
	if strings.TrimSpace(req.Content) == "" && req.CardPayload == nil {
		return nil, apperr.ErrEmptyContent
	}
	if req.ChatID == "" {
		return nil, apperr.InvalidArg("chatId is required")
	}
	if _, err := s.requireParticipant(ctx, req.ChatID, senderID); err != nil {
		return nil, err
	}

	msgType := models.MessageType(req.Type)
	if msgType == "" {
		msgType = models.MessageTypeText
	}

	msg := &models.Message{
		ChatID:   req.ChatID,
		SenderID: senderID,
		Content:  req.Content,
		Type:     msgType,
		Status:   models.StatusSent,
		Effects:  models.JSONB(req.Effects),
	}
	if req.CardPayload != nil {
		msg.CardPayload = models.JSONB(req.CardPayload)
	}

	if req.ReplyTo != "" {
		target, err := s.store.GetMessage(ctx, req.ReplyTo)
		if err != nil {
			return nil, apperr.Internal("failed to resolve reply target", err)
		}
		// Cross-chat replies are rejected, not silently dropped
		if target == nil || target.ChatID != req.ChatID {
			return nil, apperr.ErrReplyNotFound
		}
		msg.ReplyTo = &req.ReplyTo
	}

	if err := s.store.CreateMessage(ctx, msg); err != nil {
		return nil, apperr.Internal("failed to save message", err)
	}
	if err := s.store.TouchLastMessageAt(ctx, req.ChatID, msg.CreatedAt); err != nil {
		return nil, apperr.Internal("failed to update chat activity", err)
	}
	// One atomic statement; never a per-member loop
	if err := s.store.IncrementUnread(ctx, req.ChatID, senderID); err != nil {
		return nil, apperr.Internal("failed to update unread counters", err)
	}

	full, err := s.store.GetMessageWithRelations(ctx, msg.ID)
	if err != nil || full == nil {
		return nil, apperr.Internal("failed to load saved message", err)
	}

	payload := events.NewMessagePayload(full)
	// Both shapes go out for every message; older clients listen on
	// new-message, current ones on message:receive.
	s.sink.BroadcastToChat(req.ChatID, events.NewMessageEvent, payload)
	s.sink.BroadcastToChat(req.ChatID, events.MessageReceive, payload.Compact())
	return &payload, nil
}

// HistoryPage is one page of chat history, oldest first within the page
type HistoryPage struct {
	Messages []events.MessagePayload `json:"messages"`
	Total    int64                   `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"pageSize"`
}

// GetHistory returns one page of messages and, as a side effect, marks
// the fetched chat read for the caller. Fetching history is the read
// acknowledgment; there is no separate bulk-read call.
func (s *Service) GetHistory(ctx context.Context, userID, chatID string, page int) (*HistoryPage, error) {
	if _, err := s.requireParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}

	msgs, total, err := s.store.ListMessages(ctx, chatID, s.pageSize, (page-1)*s.pageSize, nil)
	if err != nil {
		return nil, apperr.Internal("failed to fetch messages", err)
	}

	// Stored newest-first for paging; presented in chronological order
	out := make([]events.MessagePayload, len(msgs))
	for i := range msgs {
		out[len(msgs)-1-i] = events.NewMessagePayload(&msgs[i])
	}

	if err := s.store.MarkChatRead(ctx, chatID, userID); err != nil {
		return nil, apperr.Internal("failed to mark messages read", err)
	}
	var lastReadID *string
	if len(out) > 0 {
		id := out[len(out)-1].ID
		lastReadID = &id
	}
	if err := s.store.ResetUnread(ctx, chatID, userID, lastReadID, time.Now()); err != nil {
		return nil, apperr.Internal("failed to reset unread counter", err)
	}

	return &HistoryPage{Messages: out, Total: total, Page: page, PageSize: s.pageSize}, nil
}

// EditMessage rewrites content within the edit window. Only the sender
// may edit, and only while the message is neither deleted nor stale.
func (s *Service) EditMessage(ctx context.Context, userID, messageID, content string) (*events.EditedPayload, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.ErrEmptyContent
	}
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, apperr.Internal("failed to load message", err)
	}
	if msg == nil {
		return nil, apperr.ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return nil, apperr.ErrNotMessageOwner
	}
	if msg.IsDeleted {
		return nil, apperr.ErrMessageDeleted
	}
	if time.Since(msg.CreatedAt) > s.editWindow {
		return nil, apperr.ErrEditWindowExpired
	}

	editedAt := time.Now()
	if err := s.store.UpdateMessageContent(ctx, messageID, content, editedAt); err != nil {
		return nil, apperr.Internal("failed to edit message", err)
	}

	payload := events.EditedPayload{
		MessageID: messageID,
		ChatID:    msg.ChatID,
		Content:   content,
		IsEdited:  true,
		EditedAt:  &editedAt,
	}
	s.sink.BroadcastToChat(msg.ChatID, events.MessageEdited, payload)
	return &payload, nil
}

// ToggleReaction adds or removes the (message, user, emoji) triple and
// broadcasts the resulting authoritative counts.
func (s *Service) ToggleReaction(ctx context.Context, userID, messageID, emoji string) (*events.ReactionPayload, error) {
	if strings.TrimSpace(emoji) == "" {
		return nil, apperr.ErrInvalidEmoji
	}
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, apperr.Internal("failed to load message", err)
	}
	if msg == nil || msg.IsDeleted {
		return nil, apperr.ErrMessageNotFound
	}
	if _, err := s.requireParticipant(ctx, msg.ChatID, userID); err != nil {
		return nil, err
	}

	existing, err := s.store.FindReaction(ctx, messageID, userID, emoji)
	if err != nil {
		return nil, apperr.Internal("failed to look up reaction", err)
	}

	action := "added"
	if existing != nil {
		if err := s.store.RemoveReaction(ctx, existing.ID); err != nil {
			return nil, apperr.Internal("failed to remove reaction", err)
		}
		action = "removed"
	} else {
		r := &models.MessageReaction{MessageID: messageID, UserID: userID, Emoji: emoji}
		if err := s.store.AddReaction(ctx, r); err != nil {
			return nil, apperr.Internal("failed to add reaction", err)
		}
	}

	counts, err := s.store.ReactionCounts(ctx, messageID)
	if err != nil {
		return nil, apperr.Internal("failed to aggregate reactions", err)
	}

	payload := events.ReactionPayload{
		MessageID: messageID,
		ChatID:    msg.ChatID,
		Emoji:     emoji,
		UserID:    userID,
		Action:    action,
		Counts:    counts,
	}
	s.sink.BroadcastToChat(msg.ChatID, events.MessageReaction, payload)
	return &payload, nil
}

// MarkMessageRead records a single-message read receipt. Re-reads are
// no-ops; no second event goes out for a reader already in the set.
func (s *Service) MarkMessageRead(ctx context.Context, userID, messageID, chatID string) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return apperr.Internal("failed to load message", err)
	}
	if msg == nil {
		return apperr.ErrMessageNotFound
	}
	if chatID == "" {
		chatID = msg.ChatID
	}
	if msg.ChatID != chatID {
		return apperr.ErrMessageNotFound
	}
	if _, err := s.requireParticipant(ctx, chatID, userID); err != nil {
		return err
	}
	// Own messages are born read
	if msg.SenderID == userID || msg.ReadBy.Contains(userID) {
		return nil
	}

	if err := s.store.AddMessageReader(ctx, messageID, userID); err != nil {
		return apperr.Internal("failed to record read receipt", err)
	}

	s.sink.BroadcastToChat(chatID, events.MessageRead, events.ReadPayload{
		ChatID:    chatID,
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    time.Now(),
	})
	return nil
}

// UnsendMessage soft-deletes a message and creates the recently-deleted
// record that makes it restorable for the retention window. The snapshot
// is taken before the delete clears content.
func (s *Service) UnsendMessage(ctx context.Context, userID, messageID string) error {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return apperr.Internal("failed to load message", err)
	}
	if msg == nil {
		return apperr.ErrMessageNotFound
	}
	if msg.SenderID != userID {
		return apperr.ErrNotMessageOwner
	}
	if msg.IsDeleted {
		return apperr.ErrMessageDeleted
	}

	snapshot, err := json.Marshal(msg)
	if err != nil {
		return apperr.Internal("failed to snapshot message", err)
	}

	now := time.Now()
	record := &models.RetentionRecord{
		ItemType:  models.RetentionItemMessage,
		ItemID:    msg.ID,
		UserID:    userID,
		ChatID:    &msg.ChatID,
		DeletedAt: now,
		ExpiryAt:  now.Add(s.retentionWindow),
		Payload:   datatypes.JSON(snapshot),
	}
	if err := s.store.CreateRetentionRecord(ctx, record); err != nil {
		return apperr.Internal("failed to record deletion", err)
	}
	if err := s.store.SoftDeleteMessage(ctx, msg.ID, now); err != nil {
		return apperr.Internal("failed to delete message", err)
	}

	s.sink.BroadcastToChat(msg.ChatID, events.MessageDeleted, events.DeletedPayload{
		MessageID: msg.ID,
		ChatID:    msg.ChatID,
		DeletedAt: now,
	})
	return nil
}

// ChatListItem is one entry of a user's chat list
type ChatListItem struct {
	Chat        models.Chat `json:"chat"`
	UnreadCount int         `json:"unreadCount"`
	Pinned      bool        `json:"pinned"`
}

// ListChats returns the user's chats with unread counters and pin state.
// Pinned chats sort first, then by most recent activity.
func (s *Service) ListChats(ctx context.Context, userID string) ([]ChatListItem, error) {
	chats, err := s.store.ListChatsForUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list chats", err)
	}
	pinnedIDs, err := s.store.ListPinnedChatIDs(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to list pins", err)
	}
	pinned := make(map[string]bool, len(pinnedIDs))
	for _, id := range pinnedIDs {
		pinned[id] = true
	}

	items := make([]ChatListItem, 0, len(chats))
	for _, c := range chats {
		item := ChatListItem{Chat: c, Pinned: pinned[c.ID]}
		p, err := s.store.GetParticipant(ctx, c.ID, userID)
		if err != nil {
			return nil, apperr.Internal("failed to load membership", err)
		}
		if p != nil {
			item.UnreadCount = p.UnreadCount
		}
		items = append(items, item)
	}

	sortChatList(items)
	return items, nil
}

func sortChatList(items []ChatListItem) {
	lastActivity := func(it ChatListItem) time.Time {
		if it.Chat.LastMessageAt != nil {
			return *it.Chat.LastMessageAt
		}
		return it.Chat.CreatedAt
	}
	// Insertion sort; chat lists are small
	for i := 1; i < len(items); i++ {
		for j := i; j > 0; j-- {
			a, b := items[j-1], items[j]
			swap := false
			if a.Pinned != b.Pinned {
				swap = b.Pinned
			} else {
				swap = lastActivity(b).After(lastActivity(a))
			}
			if !swap {
				break
			}
			items[j-1], items[j] = b, a
		}
	}
}

// PinChat pins a chat for this user only. Idempotent.
func (s *Service) PinChat(ctx context.Context, userID, chatID string) (*events.PinPayload, error) {
	chat, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, apperr.Internal("failed to load chat", err)
	}
	if chat == nil {
		return nil, apperr.ErrChatNotFound
	}
	if _, err := s.requireParticipant(ctx, chatID, userID); err != nil {
		return nil, err
	}
	pin, err := s.store.PinChat(ctx, userID, chatID)
	if err != nil {
		return nil, apperr.Internal("failed to pin chat", err)
	}
	payload := events.PinPayload{ChatID: chatID, Pinned: true, PinnedAt: &pin.PinnedAt}
	s.sink.SendToUser(userID, events.ChatPinned, payload)
	return &payload, nil
}

// UnpinChat removes the user's pin. Idempotent.
func (s *Service) UnpinChat(ctx context.Context, userID, chatID string) (*events.PinPayload, error) {
	if err := s.store.UnpinChat(ctx, userID, chatID); err != nil {
		return nil, apperr.Internal("failed to unpin chat", err)
	}
	payload := events.PinPayload{ChatID: chatID, Pinned: false}
	s.sink.SendToUser(userID, events.ChatUnpinned, payload)
	return &payload, nil
}

var _ websocket.ChatService = (*Service)(nil)
