package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/bakbak-chat/bakbakgo/internal/models"
)

// Summarizer condenses a window of chat messages into a short digest.
type Summarizer interface {
	Summarize(ctx context.Context, msgs []models.Message, maxWords int) (string, error)
	ModelVersion() string
}

// LocalSummarizer is the zero-dependency fallback provider. It produces
// a headline-style digest from the most recent messages so the endpoint
// works without an API key.
type LocalSummarizer struct{}

func NewLocalSummarizer() *LocalSummarizer {
	return &LocalSummarizer{}
}

func (s *LocalSummarizer) ModelVersion() string {
	return "local/v1"
}

func (s *LocalSummarizer) Summarize(ctx context.Context, msgs []models.Message, maxWords int) (string, error) {
	if len(msgs) == 0 {
		return "No recent messages to summarize.", nil
	}

	senders := make(map[string]struct{})
	var words []string
	// The window arrives newest first; walk it oldest first so the
	// digest reads chronologically.
	for i := len(msgs) - 1; i >= 0; i-- {
		m := &msgs[i]
		if m.IsDeleted || m.Type != models.MessageTypeText {
			continue
		}
		name := m.SenderID
		if m.Sender != nil && m.Sender.Name != "" {
			name = m.Sender.Name
		}
		senders[name] = struct{}{}
		words = append(words, strings.Fields(m.Content)...)
	}

	if len(words) > maxWords {
		words = words[len(words)-maxWords:]
	}
	digest := strings.Join(words, " ")
	if digest == "" {
		digest = "Mostly media and attachments."
	}
	return fmt.Sprintf("%d messages from %d participant(s): %s", len(msgs), len(senders), digest), nil
}
