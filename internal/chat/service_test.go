package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bakbak-chat/bakbakgo/internal/apperr"
	"github.com/bakbak-chat/bakbakgo/internal/config"
	"github.com/bakbak-chat/bakbakgo/internal/events"
	"github.com/bakbak-chat/bakbakgo/internal/models"
	"github.com/bakbak-chat/bakbakgo/internal/store/memstore"
	"github.com/bakbak-chat/bakbakgo/internal/websocket"
)

type sinkEvent struct {
	target  string
	event   string
	payload interface{}
}

// captureSink records fan-out instead of delivering it
type captureSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (s *captureSink) BroadcastToChat(chatID, event string, payload interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{target: "chat:" + chatID, event: event, payload: payload})
}

func (s *captureSink) SendToUser(userID, event string, payload interface{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{target: "user:" + userID, event: event, payload: payload})
	return true
}

func (s *captureSink) BroadcastAll(exceptUserID, event string, payload interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sinkEvent{target: "all", event: event, payload: payload})
}

func (s *captureSink) byEvent(event string) []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sinkEvent
	for _, e := range s.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func testConfig() *config.Config {
	return &config.Config{
		Messaging: config.MessagingConfig{
			EditWindow:      15 * time.Minute,
			HistoryPageSize: 50,
		},
		Retention: config.RetentionConfig{
			Window:        30 * 24 * time.Hour,
			SweepInterval: time.Hour,
		},
	}
}

// newTestService seeds one chat with the given members
func newTestService(t *testing.T, memberIDs ...string) (*Service, *memstore.Store, *captureSink, string) {
	t.Helper()
	st := memstore.New()
	chat := &models.Chat{Type: models.ChatTypeGroup, Title: "test chat"}
	st.AddChat(chat)
	for _, id := range memberIDs {
		st.AddUser(&models.User{ID: id, Name: "user " + id})
		st.AddParticipant(&models.ChatParticipant{ChatID: chat.ID, UserID: id})
	}
	sink := &captureSink{}
	return NewService(st, sink, testConfig()), st, sink, chat.ID
}

func TestSendMessagePersistsBeforeBroadcast(t *testing.T) {
	svc, st, sink, chatID := newTestService(t, "alice", "bob")
	ctx := context.Background()

	payload, err := svc.Send(ctx, "alice", websocket.SendRequest{ChatID: chatID, Content: "hello"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if payload.ID == "" {
		t.Fatal("expected message id")
	}

	stored, err := st.GetMessage(ctx, payload.ID)
	if err != nil || stored == nil {
		t.Fatalf("message not persisted: %v", err)
	}
	if stored.Content != "hello" {
		t.Errorf("content = %q, want %q", stored.Content, "hello")
	}

	legacy := sink.byEvent(events.NewMessageEvent)
	compact := sink.byEvent(events.MessageReceive)
	if len(legacy) != 1 || len(compact) != 1 {
		t.Fatalf("fan-out = %d legacy, %d compact, want 1 and 1", len(legacy), len(compact))
	}
}

func TestSendMessageDualShapesAgree(t *testing.T) {
	svc, _, sink, chatID := newTestService(t, "alice", "bob")

	if _, err := svc.Send(context.Background(), "alice", websocket.SendRequest{ChatID: chatID, Content: "same content"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	legacy := sink.byEvent(events.NewMessageEvent)[0].payload.(events.MessagePayload)
	compact := sink.byEvent(events.MessageReceive)[0].payload.(events.CompactMessagePayload)

	if legacy.ID != compact.ID {
		t.Errorf("id mismatch: %s vs %s", legacy.ID, compact.ID)
	}
	if legacy.Content != compact.Content {
		t.Errorf("content mismatch: %q vs %q", legacy.Content, compact.Content)
	}
	if legacy.Sender.ID != compact.SenderID {
		t.Errorf("sender mismatch: %s vs %s", legacy.Sender.ID, compact.SenderID)
	}
	if legacy.ChatID != compact.ChatID {
		t.Errorf("chat mismatch: %s vs %s", legacy.ChatID, compact.ChatID)
	}
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	svc, _, _, chatID := newTestService(t, "alice", "bob")

	_, err := svc.Send(context.Background(), "mallory", websocket.SendRequest{ChatID: chatID, Content: "hi"})
	if apperr.CodeOf(err) != apperr.CodePermissionDenied {
		t.Fatalf("code = %v, want permission denied", apperr.CodeOf(err))
	}
}

func TestSendMessageRejectsEmptyContent(t *testing.T) {
	svc, _, _, chatID := newTestService(t, "alice")

	_, err := svc.Send(context.Background(), "alice", websocket.SendRequest{ChatID: chatID, Content: "   "})
	if apperr.CodeOf(err) != apperr.CodeInvalidArgument {
		t.Fatalf("code = %v, want invalid argument", apperr.CodeOf(err))
	}
}

func TestSendMessageRejectsCrossChatReply(t *testing.T) {
	svc, st, _, chatID := newTestService(t, "alice", "bob")
	ctx := context.Background()

	other := &models.Chat{Type: models.ChatTypeGroup, Title: "other"}
	st.AddChat(other)
	st.AddParticipant(&models.ChatParticipant{ChatID: other.ID, UserID: "alice"})

	target, err := svc.Send(ctx, "alice", websocket.SendRequest{ChatID: other.ID, Content: "target"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	_, err = svc.Send(ctx, "alice", websocket.SendRequest{ChatID: chatID, Content: "reply", ReplyTo: target.ID})
	if apperr.CodeOf(err) != apperr.CodeInvalidArgument {
		t.Fatalf("code = %v, want invalid argument for cross-chat reply", apperr.CodeOf(err))
	}
}

func TestUnreadCountersAcrossSenders(t *testing.T) {
	svc, st, _, chatID := newTestService(t, "alice", "bob", "carol")
	ctx := context.Background()

	// alice sends 2, bob sends 1
	for _, m := range []struct{ sender, text string }{
		{"alice", "one"}, {"alice", "two"}, {"bob", "three"},
	} {
		if _, err := svc.Send(ctx, m.sender, websocket.SendRequest{ChatID: chatID, Content: m.text}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	want := map[string]int{"alice": 1, "bob": 2, "carol": 3}
	for userID, count := range want {
		p, err := st.GetParticipant(ctx, chatID, userID)
		if err != nil || p == nil {
			t.Fatalf("GetParticipant(%s): %v", userID, err)
		}
		if p.UnreadCount != count {
			t.Errorf("unread[%s] = %d, want %d", userID, p.UnreadCount, count)
		}
	}
}

func TestGetHistoryMarksChatRead(t *testing.T) {
	svc, st, _, chatID := newTestService(t, "alice", "bob")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Send(ctx, "alice", websocket.SendRequest{ChatID: chatID, Content: "msg"}); err != nil {
			t.Fatalf("Send: %v", err)
		}
	}

	page, err := svc.GetHistory(ctx, "bob", chatID, 1)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(page.Messages) != 3 || page.Total != 3 {
		t.Fatalf("page = %d messages (total %d), want 3", len(page.Messages), page.Total)
	}

	// Chronological order within the page
	for i := 1; i < len(page.Messages); i++ {
		if page.Messages[i].CreatedAt.Before(page.Messages[i-1].CreatedAt) {
			t.Fatal("history page not in chronological order")
		}
	}

	// Fetching is the read acknowledgment
	p, err := st.GetParticipant(ctx, chatID, "bob")
	if err != nil || p == nil {
		t.Fatalf("GetParticipant: %v", err)
	}
	if p.UnreadCount != 0 {
		t.Errorf("unread after fetch = %d, want 0", p.UnreadCount)
	}
}

func TestGetHistoryDeniedForNonParticipant(t *testing.T) {
	svc, _, _, chatID := newTestService(t, "alice")

	_, err := svc.GetHistory(context.Background(), "mallory", chatID, 1)
	if apperr.CodeOf(err) != apperr.CodePermissionDenied {
		t.Fatalf("code = %v, want permission denied", apperr.CodeOf(err))
	}
}

func TestEditMessageWithinWindow(t *testing.T) {
	svc, st, sink, chatID := newTestService(t, "alice", "bob")
	ctx := context.Background()

	msg, err := svc.Send(ctx, "alice", websocket.SendRequest{ChatID: chatID, Content: "typo"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if _, err := svc.EditMessage(ctx, "alice", msg.ID, "fixed"); err != nil {
		t.Fatalf("EditMessage: %v", err)
	}

	stored, _ := st.GetMessage(ctx, msg.ID)
	if stored.Content != "fixed" || !stored.IsEdited {
		t.Errorf("stored = %q (edited=%v), want fixed/true", stored.Content, stored.IsEdited)
	}
	if got := sink.byEvent(events.MessageEdited); len(got) != 1 {
		t.Errorf("edited events = %d, want 1", len(got))
	}
}

func TestEditMessageRejectsAfterWindow(t *testing.T) {
	svc, st, _, chatID := newTestService(t, "alice")
	ctx := context.Background()

	old := &models.Message{
		ChatID:    chatID,
		SenderID:  "alice",
		Content:   "stale",
		Type:      models.MessageTypeText,
		CreatedAt: time.Now().Add(-16 * time.Minute),
	}
	if err := st.CreateMessage(ctx, old); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}

	_, err := svc.EditMessage(ctx, "alice", old.ID, "too late")
	if apperr.CodeOf(err) != apperr.CodeWindowExpired {
		t.Fatalf("code = %v, want window expired", apperr.CodeOf(err))
	}

	stored, _ := st.GetMessage(ctx, old.ID)
	if stored.Content != "stale" {
		t.Errorf("content changed despite expired window: %q", stored.Content)
	}
}

func TestEditMessageRejectsNonOwner(t *testing.T) {
	svc, _, _, chatID := newTestService(t, "alice", "bob")
	ctx := context.Background()

	msg, err := svc.Send(ctx, "alice", websocket.SendRequest{ChatID: chatID, Content: "mine"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	_, err = svc.EditMessage(ctx, "bob", msg.ID, "hijack")
	if apperr.CodeOf(err) != apperr.CodePermissionDenied {
		t.Fatalf("code = %v, want permission denied", apperr.CodeOf(err))
	}
}

func TestToggleReactionDoubleToggleRemoves(t *testing.T) {
	svc, _, _, chatID := newTestService(t, "alice", "bob")
	ctx := context.Background()

	msg, err := svc.Send(ctx, "alice", websocket.SendRequest{ChatID: chatID, Content: "react to me"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	first, err := svc.ToggleReaction(ctx, "bob", msg.ID, "👍")
	if err != nil {
		t.Fatalf("ToggleReaction: %v", err)
	}
	if first.Action != "added" || first.Counts["👍"] != 1 {
		t.Errorf("first toggle = %s counts=%v, want added/1", first.Action, first.Counts)
	}

	second, err := svc.ToggleReaction(ctx, "bob", msg.ID, "👍")
	if err != nil {
		t.Fatalf("ToggleReaction: %v", err)
	}
	if second.Action != "removed" || second.Counts["👍"] != 0 {
		t.Errorf("second toggle = %s counts=%v, want removed/0", second.Action, second.Counts)
	}
}

func TestToggleReactionCountsAreAuthoritative(t *testing.T) {
	svc, _, _, chatID := newTestService(t, "alice", "bob", "carol")
	ctx := context.Background()

	msg, err := svc.Send(ctx, "alice", websocket.SendRequest{ChatID: chatID, Content: "popular"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if _, err := svc.ToggleReaction(ctx, "bob", msg.ID, "❤️"); err != nil {
		t.Fatalf("ToggleReaction: %v", err)
	}
	last, err := svc.ToggleReaction(ctx, "carol", msg.ID, "❤️")
	if err != nil {
		t.Fatalf("ToggleReaction: %v", err)
	}
	if last.Counts["❤️"] != 2 {
		t.Errorf("counts = %v, want 2 hearts", last.Counts)
	}
}

func TestMarkMessageReadIsIdempotent(t *testing.T) {
	svc, st, sink, chatID := newTestService(t, "alice", "bob")
	ctx := context.Background()

	msg, err := svc.Send(ctx, "alice", websocket.SendRequest{ChatID: chatID, Content: "read me"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := svc.MarkMessageRead(ctx, "bob", msg.ID, ""); err != nil {
		t.Fatalf("MarkMessageRead: %v", err)
	}
	if err := svc.MarkMessageRead(ctx, "bob", msg.ID, ""); err != nil {
		t.Fatalf("MarkMessageRead (repeat): %v", err)
	}

	stored, _ := st.GetMessage(ctx, msg.ID)
	seen := 0
	for _, id := range stored.ReadBy {
		if id == "bob" {
			seen++
		}
	}
	if seen != 1 {
		t.Errorf("bob appears %d times in read-set, want 1", seen)
	}
	// Re-reads emit no second event
	if got := sink.byEvent(events.MessageRead); len(got) != 1 {
		t.Errorf("read events = %d, want 1", len(got))
	}
}

func TestMarkMessageReadOwnMessageNoop(t *testing.T) {
	svc, _, sink, chatID := newTestService(t, "alice", "bob")
	ctx := context.Background()

	msg, err := svc.Send(ctx, "alice", websocket.SendRequest{ChatID: chatID, Content: "own"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := svc.MarkMessageRead(ctx, "alice", msg.ID, ""); err != nil {
		t.Fatalf("MarkMessageRead: %v", err)
	}
	if got := sink.byEvent(events.MessageRead); len(got) != 0 {
		t.Errorf("read events for own message = %d, want 0", len(got))
	}
}

func TestUnsendMessageCreatesRetentionRecord(t *testing.T) {
	svc, st, sink, chatID := newTestService(t, "alice", "bob")
	ctx := context.Background()

	msg, err := svc.Send(ctx, "alice", websocket.SendRequest{ChatID: chatID, Content: "regret"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	if err := svc.UnsendMessage(ctx, "alice", msg.ID); err != nil {
		t.Fatalf("UnsendMessage: %v", err)
	}

	stored, _ := st.GetMessage(ctx, msg.ID)
	if !stored.IsDeleted {
		t.Fatal("message not soft-deleted")
	}
	if stored.Content != "" {
		t.Errorf("content not cleared on delete: %q", stored.Content)
	}

	record, err := st.GetRetentionRecord(ctx, msg.ID, models.RetentionItemMessage, "alice")
	if err != nil || record == nil {
		t.Fatalf("retention record missing: %v", err)
	}
	if !record.ActiveAt(time.Now()) {
		t.Error("fresh retention record should be active")
	}
	if len(record.Payload) == 0 {
		t.Error("retention snapshot empty")
	}

	if got := sink.byEvent(events.MessageDeleted); len(got) != 1 {
		t.Errorf("deleted events = %d, want 1", len(got))
	}
}

func TestUnsendMessageRejectsNonOwner(t *testing.T) {
	svc, _, _, chatID := newTestService(t, "alice", "bob")
	ctx := context.Background()

	msg, err := svc.Send(ctx, "alice", websocket.SendRequest{ChatID: chatID, Content: "mine"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	err = svc.UnsendMessage(ctx, "bob", msg.ID)
	if apperr.CodeOf(err) != apperr.CodePermissionDenied {
		t.Fatalf("code = %v, want permission denied", apperr.CodeOf(err))
	}
}

func TestListChatsPinnedFirst(t *testing.T) {
	svc, st, _, chatID := newTestService(t, "alice")
	ctx := context.Background()

	// A newer, unpinned chat
	recent := &models.Chat{Type: models.ChatTypeGroup, Title: "recent"}
	st.AddChat(recent)
	st.AddParticipant(&models.ChatParticipant{ChatID: recent.ID, UserID: "alice"})
	if _, err := svc.Send(ctx, "alice", websocket.SendRequest{ChatID: recent.ID, Content: "bump"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if _, err := svc.PinChat(ctx, "alice", chatID); err != nil {
		t.Fatalf("PinChat: %v", err)
	}

	items, err := svc.ListChats(ctx, "alice")
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("chats = %d, want 2", len(items))
	}
	if items[0].Chat.ID != chatID || !items[0].Pinned {
		t.Errorf("pinned chat not first: got %s pinned=%v", items[0].Chat.ID, items[0].Pinned)
	}
}

func TestPinUnknownChatNotFound(t *testing.T) {
	svc, _, _, _ := newTestService(t, "alice")

	_, err := svc.PinChat(context.Background(), "alice", "no-such-chat")
	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("code = %v, want not found", apperr.CodeOf(err))
	}
}

func TestPinChatIdempotent(t *testing.T) {
	svc, _, _, chatID := newTestService(t, "alice")
	ctx := context.Background()

	if _, err := svc.PinChat(ctx, "alice", chatID); err != nil {
		t.Fatalf("PinChat: %v", err)
	}
	if _, err := svc.PinChat(ctx, "alice", chatID); err != nil {
		t.Fatalf("PinChat (repeat): %v", err)
	}
	if _, err := svc.UnpinChat(ctx, "alice", chatID); err != nil {
		t.Fatalf("UnpinChat: %v", err)
	}
	if _, err := svc.UnpinChat(ctx, "alice", chatID); err != nil {
		t.Fatalf("UnpinChat (repeat): %v", err)
	}
}
