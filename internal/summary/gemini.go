package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/bakbak-chat/bakbakgo/internal/models"
)

// GeminiSummarizer produces chat digests with Google Gemini via the
// official SDK.
type GeminiSummarizer struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
}

// NewGeminiSummarizer creates a Gemini-backed summarizer
func NewGeminiSummarizer(ctx context.Context, apiKey, modelName string) (*GeminiSummarizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is empty")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	if modelName == "" {
		modelName = "gemini-3-flash-preview"
	}

	return &GeminiSummarizer{
		client:    client,
		model:     client.GenerativeModel(modelName),
		modelName: modelName,
	}, nil
}

// Close closes the client connection
func (s *GeminiSummarizer) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

func (s *GeminiSummarizer) ModelVersion() string {
	return "gemini/" + s.modelName
}

func (s *GeminiSummarizer) Summarize(ctx context.Context, msgs []models.Message, maxWords int) (string, error) {
	if len(msgs) == 0 {
		return "No recent messages to summarize.", nil
	}

	var transcript strings.Builder
	// The window arrives newest first; the transcript reads top-down
	for i := len(msgs) - 1; i >= 0; i-- {
		m := &msgs[i]
		if m.IsDeleted {
			continue
		}
		name := m.SenderID
		if m.Sender != nil && m.Sender.Name != "" {
			name = m.Sender.Name
		}
		content := m.Content
		if m.Type != models.MessageTypeText {
			content = fmt.Sprintf("[%s message]", m.Type)
		}
		fmt.Fprintf(&transcript, "%s: %s\n", name, content)
	}

	prompt := fmt.Sprintf(
		"Summarize the following chat conversation in at most %d words. "+
			"Mention who said what only when it matters. Respond with the summary text only.\n\n%s",
		maxWords, transcript.String())

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}

	var fullText string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			fullText += string(txt)
		}
	}
	return strings.TrimSpace(fullText), nil
}
