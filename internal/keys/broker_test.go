package keys

import (
	"context"
	"sync"
	"testing"

	"github.com/bakbak-chat/bakbakgo/internal/apperr"
	"github.com/bakbak-chat/bakbakgo/internal/models"
	"github.com/bakbak-chat/bakbakgo/internal/store/memstore"
)

func publishTestBundle(t *testing.T, b *Broker, userID string, oneTimeCount int) {
	t.Helper()
	req := PublishRequest{
		RegistrationID: 42,
		IdentityKey:    "identity-" + userID,
		SignedPreKey: models.SignedPreKeyInfo{
			KeyID:     1,
			PublicKey: "signed-" + userID,
			Signature: "sig-" + userID,
		},
	}
	for i := 0; i < oneTimeCount; i++ {
		req.OneTimePreKeys = append(req.OneTimePreKeys, models.OneTimePreKeyInfo{
			KeyID:     i + 1,
			PublicKey: "otk-" + userID,
		})
	}
	if err := b.Publish(context.Background(), userID, req); err != nil {
		t.Fatalf("Publish: %v", err)
	}
}

func TestFetchBundleConsumesOneTimeKey(t *testing.T) {
	b := NewBroker(memstore.New())
	ctx := context.Background()
	publishTestBundle(t, b, "alice", 2)

	bundle, err := b.FetchBundle(ctx, "alice")
	if err != nil {
		t.Fatalf("FetchBundle: %v", err)
	}
	if bundle.IdentityKey != "identity-alice" {
		t.Errorf("identity = %q", bundle.IdentityKey)
	}
	if bundle.OneTimePreKey == nil {
		t.Fatal("expected a one-time prekey")
	}

	n, err := b.Count(ctx, "alice")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Errorf("pool after fetch = %d, want 1", n)
	}
}

func TestFetchBundleExhaustedPoolStillServes(t *testing.T) {
	b := NewBroker(memstore.New())
	ctx := context.Background()
	publishTestBundle(t, b, "alice", 1)

	if _, err := b.FetchBundle(ctx, "alice"); err != nil {
		t.Fatalf("FetchBundle: %v", err)
	}

	// Pool empty; the bundle still serves identity and signed prekey
	bundle, err := b.FetchBundle(ctx, "alice")
	if err != nil {
		t.Fatalf("FetchBundle (exhausted): %v", err)
	}
	if bundle.OneTimePreKey != nil {
		t.Error("expected nil one-time prekey on exhausted pool")
	}
	if bundle.SignedPreKey.PublicKey != "signed-alice" {
		t.Errorf("signed prekey = %q", bundle.SignedPreKey.PublicKey)
	}
}

func TestFetchBundleUnknownUser(t *testing.T) {
	b := NewBroker(memstore.New())

	_, err := b.FetchBundle(context.Background(), "nobody")
	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("code = %v, want not found", apperr.CodeOf(err))
	}
}

func TestConcurrentFetchesNeverShareAKey(t *testing.T) {
	b := NewBroker(memstore.New())
	ctx := context.Background()

	const poolSize = 20
	const fetchers = 40
	publishTestBundle(t, b, "alice", poolSize)

	var wg sync.WaitGroup
	results := make(chan *models.OneTimePreKeyInfo, fetchers)
	for i := 0; i < fetchers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			bundle, err := b.FetchBundle(ctx, "alice")
			if err != nil {
				t.Errorf("FetchBundle: %v", err)
				return
			}
			results <- bundle.OneTimePreKey
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[int]bool)
	served := 0
	for otk := range results {
		if otk == nil {
			continue
		}
		if seen[otk.KeyID] {
			t.Fatalf("one-time prekey %d served twice", otk.KeyID)
		}
		seen[otk.KeyID] = true
		served++
	}
	if served != poolSize {
		t.Errorf("served %d keys, want exactly %d", served, poolSize)
	}
}

func TestRepublishRotatesPool(t *testing.T) {
	b := NewBroker(memstore.New())
	ctx := context.Background()

	publishTestBundle(t, b, "alice", 5)
	publishTestBundle(t, b, "alice", 2)

	n, err := b.Count(ctx, "alice")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("pool after republish = %d, want 2 (replaced, not appended)", n)
	}
}

func TestReplenishAppends(t *testing.T) {
	b := NewBroker(memstore.New())
	ctx := context.Background()

	publishTestBundle(t, b, "alice", 2)

	err := b.Replenish(ctx, "alice", []models.OneTimePreKeyInfo{
		{KeyID: 100, PublicKey: "fresh-1"},
		{KeyID: 101, PublicKey: "fresh-2"},
	})
	if err != nil {
		t.Fatalf("Replenish: %v", err)
	}

	n, _ := b.Count(ctx, "alice")
	if n != 4 {
		t.Errorf("pool after replenish = %d, want 4", n)
	}
}

func TestReplenishRequiresPublishedIdentity(t *testing.T) {
	b := NewBroker(memstore.New())

	err := b.Replenish(context.Background(), "nobody", []models.OneTimePreKeyInfo{{KeyID: 1, PublicKey: "k"}})
	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("code = %v, want not found", apperr.CodeOf(err))
	}
}

func TestPublishRejectsIncompleteBundle(t *testing.T) {
	b := NewBroker(memstore.New())

	err := b.Publish(context.Background(), "alice", PublishRequest{IdentityKey: "only-identity"})
	if apperr.CodeOf(err) != apperr.CodeInvalidArgument {
		t.Fatalf("code = %v, want invalid argument", apperr.CodeOf(err))
	}
}
