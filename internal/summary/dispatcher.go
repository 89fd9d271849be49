package summary

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bakbak-chat/bakbakgo/internal/apperr"
	"github.com/bakbak-chat/bakbakgo/internal/config"
	"github.com/bakbak-chat/bakbakgo/internal/models"
	"github.com/bakbak-chat/bakbakgo/internal/store"
)

const (
	// queueKey is the Redis list summarization jobs travel through
	queueKey = "bakbak:summary:jobs"

	// defaultSummaryWindow is used when the request names no limit
	defaultSummaryWindow = 100

	// maxSummaryWindow caps how many recent messages feed one digest
	maxSummaryWindow = 500

	// ModeInline runs the job synchronously and returns the digest.
	ModeInline = "inline"

	// ModeQueued enqueues the job; the caller polls the read endpoint.
	ModeQueued = "queued"
)

// job is the queued summarization request
type job struct {
	ChatID      string    `json:"chatId"`
	Limit       int       `json:"limit"`
	RequestedBy string    `json:"requestedBy"`
	RequestedAt time.Time `json:"requestedAt"`
}

// clampWindow normalizes a caller-supplied message limit
func clampWindow(limit int) int {
	if limit <= 0 {
		return defaultSummaryWindow
	}
	if limit > maxSummaryWindow {
		return maxSummaryWindow
	}
	return limit
}

// Dispatcher routes summarization requests either inline or through a
// Redis-backed queue, per the caller's requested mode. Without
// REDIS_URL every request runs inline regardless of mode; a queue push
// failure also degrades to inline rather than failing the request.
type Dispatcher struct {
	store      store.Store
	summarizer Summarizer
	maxWords   int

	rdb *redis.Client
}

func NewDispatcher(st store.Store, sum Summarizer, cfg *config.Config) *Dispatcher {
	d := &Dispatcher{
		store:      st,
		summarizer: sum,
		maxWords:   cfg.Summarizer.MaxWords,
	}
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			log.Printf("⚠️ Invalid REDIS_URL, summarization will run inline: %v", err)
		} else {
			d.rdb = redis.NewClient(opts)
			log.Println("✅ Summary queue connected to Redis")
		}
	}
	return d
}

// Result is the response to a summarization request
type Result struct {
	Queued  bool                `json:"queued"`
	Summary *models.ChatSummary `json:"summary,omitempty"`
}

// Request asks for a fresh digest over the chat's most recent limit
// messages. Membership is enforced; summaries never leak across chat
// boundaries. Mode defaults to inline; queued mode needs a Redis queue
// and silently degrades to inline without one.
func (d *Dispatcher) Request(ctx context.Context, userID, chatID string, limit int, mode string) (*Result, error) {
	p, err := d.store.GetParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, apperr.Internal("failed to check chat membership", err)
	}
	if p == nil || !p.Active() {
		return nil, apperr.ErrNotParticipant
	}
	limit = clampWindow(limit)

	if mode == ModeQueued && d.rdb != nil {
		payload, err := json.Marshal(job{ChatID: chatID, Limit: limit, RequestedBy: userID, RequestedAt: time.Now()})
		if err == nil {
			if err := d.rdb.LPush(ctx, queueKey, payload).Err(); err == nil {
				return &Result{Queued: true}, nil
			}
			log.Println("⚠️ Summary queue push failed, running inline")
		}
	}

	summary, err := d.summarize(ctx, chatID, limit)
	if err != nil {
		return nil, err
	}
	return &Result{Summary: summary}, nil
}

// Latest returns the newest stored digest for a chat
func (d *Dispatcher) Latest(ctx context.Context, userID, chatID string) (*models.ChatSummary, error) {
	p, err := d.store.GetParticipant(ctx, chatID, userID)
	if err != nil {
		return nil, apperr.Internal("failed to check chat membership", err)
	}
	if p == nil || !p.Active() {
		return nil, apperr.ErrNotParticipant
	}
	s, err := d.store.LatestSummary(ctx, chatID)
	if err != nil {
		return nil, apperr.Internal("failed to load summary", err)
	}
	if s == nil {
		return nil, apperr.NotFound("no summary available")
	}
	return s, nil
}

// summarize runs the provider over the recent window and persists the result
func (d *Dispatcher) summarize(ctx context.Context, chatID string, limit int) (*models.ChatSummary, error) {
	msgs, err := d.store.ListRecentMessages(ctx, chatID, limit)
	if err != nil {
		return nil, apperr.Internal("failed to load messages", err)
	}

	text, err := d.summarizer.Summarize(ctx, msgs, d.maxWords)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeUnavailable, "summarization failed", err)
	}

	summary := &models.ChatSummary{
		ChatID:       chatID,
		SummaryText:  text,
		ModelVersion: d.summarizer.ModelVersion(),
	}
	if err := d.store.CreateSummary(ctx, summary); err != nil {
		return nil, apperr.Internal("failed to save summary", err)
	}
	return summary, nil
}

// RunWorker drains the Redis queue until the context is canceled.
// No-op when the dispatcher runs inline.
func (d *Dispatcher) RunWorker(ctx context.Context) {
	if d.rdb == nil {
		return
	}
	log.Println("🚀 Summary worker started")
	for {
		if ctx.Err() != nil {
			log.Println("Summary worker stopped")
			return
		}
		res, err := d.rdb.BRPop(ctx, 5*time.Second, queueKey).Result()
		if err != nil {
			if err == redis.Nil {
				continue
			}
			if ctx.Err() != nil {
				log.Println("Summary worker stopped")
				return
			}
			log.Printf("⚠️ Summary queue read failed: %v", err)
			time.Sleep(time.Second)
			continue
		}
		// BRPop returns [key, value]
		if len(res) != 2 {
			continue
		}
		var j job
		if err := json.Unmarshal([]byte(res[1]), &j); err != nil {
			log.Printf("⚠️ Dropping malformed summary job: %v", err)
			continue
		}
		if _, err := d.summarize(ctx, j.ChatID, clampWindow(j.Limit)); err != nil {
			log.Printf("⚠️ Summary job for chat %s failed: %v", j.ChatID, err)
		}
	}
}

// Close releases the queue connection if one exists
func (d *Dispatcher) Close() error {
	if d.rdb != nil {
		return d.rdb.Close()
	}
	return nil
}
