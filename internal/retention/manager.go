package retention

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/bakbak-chat/bakbakgo/internal/apperr"
	"github.com/bakbak-chat/bakbakgo/internal/config"
	"github.com/bakbak-chat/bakbakgo/internal/events"
	"github.com/bakbak-chat/bakbakgo/internal/models"
	"github.com/bakbak-chat/bakbakgo/internal/store"
)

// sweepBatchSize caps how many expired records one sweep pass purges
const sweepBatchSize = 200

// Manager owns the recently-deleted lifecycle: listing, restore,
// permanent delete and the background purge of expired records.
type Manager struct {
	store store.Store
	sink  events.Sink

	sweepInterval time.Duration
}

func NewManager(st store.Store, sink events.Sink, cfg *config.Config) *Manager {
	return &Manager{
		store:         st,
		sink:          sink,
		sweepInterval: cfg.Retention.SweepInterval,
	}
}

// List returns the caller's restorable items, newest deletion first.
// Expiry is checked against the clock on read, so a record the sweeper
// has not purged yet is still excluded once past its window.
func (m *Manager) List(ctx context.Context, userID string) ([]models.RetentionRecord, error) {
	records, err := m.store.ListActiveRetention(ctx, userID, time.Now())
	if err != nil {
		return nil, apperr.Internal("failed to list recently deleted", err)
	}
	return records, nil
}

// Restore brings a soft-deleted message back from its snapshot and
// closes the retention record. Only the deleting user may restore, and
// only inside the retention window.
func (m *Manager) Restore(ctx context.Context, userID, itemID string) (*events.RestoredPayload, error) {
	record, err := m.store.GetRetentionRecord(ctx, itemID, models.RetentionItemMessage, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load retention record", err)
	}
	if record == nil || record.RestoredAt != nil {
		return nil, apperr.ErrRetentionNotFound
	}
	now := time.Now()
	if !record.ActiveAt(now) {
		return nil, apperr.ErrRetentionExpired
	}

	var snapshot models.Message
	if err := json.Unmarshal(record.Payload, &snapshot); err != nil {
		return nil, apperr.Internal("corrupt retention snapshot", err)
	}

	if err := m.store.RestoreMessage(ctx, itemID, &snapshot); err != nil {
		return nil, apperr.Internal("failed to restore message", err)
	}
	if err := m.store.MarkRestored(ctx, record.ID, now); err != nil {
		return nil, apperr.Internal("failed to close retention record", err)
	}

	payload := events.RestoredPayload{
		MessageID:  itemID,
		ChatID:     snapshot.ChatID,
		RestoredAt: now,
	}
	m.sink.BroadcastToChat(snapshot.ChatID, events.MessageRestored, payload)
	return &payload, nil
}

// PermanentDelete purges an item ahead of its expiry on user request.
// Terminal; no event goes to the chat since the soft delete already did.
func (m *Manager) PermanentDelete(ctx context.Context, userID, itemID string) error {
	record, err := m.store.GetRetentionRecord(ctx, itemID, models.RetentionItemMessage, userID)
	if err != nil {
		return apperr.Internal("failed to load retention record", err)
	}
	if record == nil {
		return apperr.ErrRetentionNotFound
	}
	if record.PermanentlyDeleted || record.RestoredAt != nil {
		return apperr.ErrRetentionNotFound
	}

	if err := m.store.HardDeleteMessage(ctx, itemID); err != nil {
		return apperr.Internal("failed to purge message", err)
	}
	if err := m.store.MarkPermanentlyDeleted(ctx, record.ID, time.Now()); err != nil {
		return apperr.Internal("failed to close retention record", err)
	}
	return nil
}

// RunSweeper purges expired records until the context is canceled.
// Runs one pass immediately so a restart does not wait a full interval.
func (m *Manager) RunSweeper(ctx context.Context) {
	log.Printf("🧹 Retention sweeper started (interval %s)", m.sweepInterval)
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	m.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("Retention sweeper stopped")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

// sweep purges one batch of expired records. Failures on individual
// records are logged and skipped so one bad row cannot wedge the sweep.
func (m *Manager) sweep(ctx context.Context) {
	records, err := m.store.ListExpiredRetention(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		log.Printf("⚠️ Retention sweep query failed: %v", err)
		return
	}
	purged := 0
	for _, record := range records {
		if record.ItemType == models.RetentionItemMessage {
			if err := m.store.HardDeleteMessage(ctx, record.ItemID); err != nil {
				log.Printf("⚠️ Failed to purge message %s: %v", record.ItemID, err)
				continue
			}
		}
		if err := m.store.MarkPermanentlyDeleted(ctx, record.ID, time.Now()); err != nil {
			log.Printf("⚠️ Failed to close retention record %s: %v", record.ID, err)
			continue
		}
		purged++
	}
	if purged > 0 {
		log.Printf("🧹 Retention sweep purged %d expired item(s)", purged)
	}
}
