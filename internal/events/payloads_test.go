package events

import (
	"testing"
	"time"

	"github.com/bakbak-chat/bakbakgo/internal/models"
)

func TestNewMessagePayloadResolvesRelations(t *testing.T) {
	created := time.Now()
	m := &models.Message{
		ID:       "m1",
		ChatID:   "c1",
		SenderID: "alice",
		Content:  "hi",
		Type:     models.MessageTypeText,
		Status:   models.StatusSent,
		Sender:   &models.User{ID: "alice", Name: "Alice"},
		RepliedMessage: &models.Message{
			ID:       "m0",
			Content:  "earlier",
			SenderID: "bob",
			Sender:   &models.User{ID: "bob", Name: "Bob"},
		},
		CreatedAt: created,
	}

	p := NewMessagePayload(m)
	if p.Sender.Name != "Alice" {
		t.Errorf("sender name = %q", p.Sender.Name)
	}
	if p.ReplyTo == nil || p.ReplyTo.ID != "m0" || p.ReplyTo.Sender.Name != "Bob" {
		t.Errorf("replyTo = %+v", p.ReplyTo)
	}
}

func TestNewMessagePayloadFallsBackToSenderID(t *testing.T) {
	p := NewMessagePayload(&models.Message{ID: "m1", SenderID: "alice"})
	if p.Sender.ID != "alice" {
		t.Errorf("sender id = %q, want alice", p.Sender.ID)
	}
}

func TestCompactCarriesSameContent(t *testing.T) {
	created := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	p := MessagePayload{
		ID:        "m1",
		ChatID:    "c1",
		Sender:    models.UserRef{ID: "alice"},
		Content:   "hello",
		Type:      models.MessageTypeText,
		CreatedAt: created,
		Effects:   models.JSONB{"confetti": true},
	}

	c := p.Compact()
	if c.ID != p.ID || c.ChatID != p.ChatID || c.Content != p.Content {
		t.Errorf("compact = %+v", c)
	}
	if c.SenderID != "alice" {
		t.Errorf("senderId = %q", c.SenderID)
	}
	if c.CreatedAt != created.Format(time.RFC3339Nano) {
		t.Errorf("createdAt = %q", c.CreatedAt)
	}
	if c.Effects["confetti"] != true {
		t.Errorf("effects lost in compaction: %v", c.Effects)
	}
}
