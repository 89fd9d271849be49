package keys

import (
	"context"

	"github.com/bakbak-chat/bakbakgo/internal/apperr"
	"github.com/bakbak-chat/bakbakgo/internal/models"
	"github.com/bakbak-chat/bakbakgo/internal/store"
)

// Broker stores and serves prekey bundles. Key material is opaque here;
// the server never inspects or uses it, it only brokers distribution.
type Broker struct {
	store store.KeyStore
}

func NewBroker(st store.KeyStore) *Broker {
	return &Broker{store: st}
}

// PublishRequest is a full bundle upload, as produced by the client on
// registration or key rotation.
type PublishRequest struct {
	RegistrationID int                        `json:"registrationId"`
	IdentityKey    string                     `json:"identityKey"`
	SignedPreKey   models.SignedPreKeyInfo    `json:"signedPreKey"`
	OneTimePreKeys []models.OneTimePreKeyInfo `json:"oneTimePreKeys"`
}

// Publish replaces the user's bundle: identity and signed prekey are
// upserted, the one-time pool is replaced wholesale.
func (b *Broker) Publish(ctx context.Context, userID string, req PublishRequest) error {
	if req.IdentityKey == "" || req.SignedPreKey.PublicKey == "" || req.SignedPreKey.Signature == "" {
		return apperr.InvalidArg("incomplete key bundle")
	}

	identity := &models.IdentityKey{
		UserID:                userID,
		RegistrationID:        req.RegistrationID,
		PublicKey:             req.IdentityKey,
		SignedPreKeyID:        req.SignedPreKey.KeyID,
		SignedPreKey:          req.SignedPreKey.PublicKey,
		SignedPreKeySignature: req.SignedPreKey.Signature,
	}
	oneTime := make([]models.OneTimePreKey, 0, len(req.OneTimePreKeys))
	for _, k := range req.OneTimePreKeys {
		if k.PublicKey == "" {
			return apperr.InvalidArg("one-time prekey missing public key")
		}
		oneTime = append(oneTime, models.OneTimePreKey{
			UserID:    userID,
			KeyID:     k.KeyID,
			PublicKey: k.PublicKey,
		})
	}

	if err := b.store.SaveKeyBundle(ctx, identity, oneTime); err != nil {
		return apperr.Internal("failed to save key bundle", err)
	}
	return nil
}

// FetchBundle serves a session-start bundle for the target user. The
// one-time prekey is consumed by this fetch; two concurrent fetches
// never receive the same one. An exhausted pool is not an error.
func (b *Broker) FetchBundle(ctx context.Context, targetUserID string) (*models.PreKeyBundle, error) {
	identity, err := b.store.GetIdentityKey(ctx, targetUserID)
	if err != nil {
		return nil, apperr.Internal("failed to load identity key", err)
	}
	if identity == nil {
		return nil, apperr.ErrBundleNotFound
	}

	bundle := &models.PreKeyBundle{
		UserID:         identity.UserID,
		RegistrationID: identity.RegistrationID,
		IdentityKey:    identity.PublicKey,
		SignedPreKey: models.SignedPreKeyInfo{
			KeyID:     identity.SignedPreKeyID,
			PublicKey: identity.SignedPreKey,
			Signature: identity.SignedPreKeySignature,
		},
	}

	oneTime, err := b.store.PopOneTimePreKey(ctx, targetUserID)
	if err != nil {
		return nil, apperr.Internal("failed to consume one-time prekey", err)
	}
	if oneTime != nil {
		bundle.OneTimePreKey = &models.OneTimePreKeyInfo{
			KeyID:     oneTime.KeyID,
			PublicKey: oneTime.PublicKey,
		}
	}
	return bundle, nil
}

// Replenish appends fresh one-time prekeys without touching the identity
// row or the existing pool.
func (b *Broker) Replenish(ctx context.Context, userID string, infos []models.OneTimePreKeyInfo) error {
	if len(infos) == 0 {
		return apperr.InvalidArg("no prekeys supplied")
	}
	identity, err := b.store.GetIdentityKey(ctx, userID)
	if err != nil {
		return apperr.Internal("failed to load identity key", err)
	}
	if identity == nil {
		return apperr.ErrBundleNotFound
	}

	keys := make([]models.OneTimePreKey, 0, len(infos))
	for _, k := range infos {
		if k.PublicKey == "" {
			return apperr.InvalidArg("one-time prekey missing public key")
		}
		keys = append(keys, models.OneTimePreKey{UserID: userID, KeyID: k.KeyID, PublicKey: k.PublicKey})
	}
	if err := b.store.AddOneTimePreKeys(ctx, userID, keys); err != nil {
		return apperr.Internal("failed to add prekeys", err)
	}
	return nil
}

// Count reports the remaining one-time pool size, for client-side
// replenish decisions.
func (b *Broker) Count(ctx context.Context, userID string) (int64, error) {
	n, err := b.store.CountOneTimePreKeys(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("failed to count prekeys", err)
	}
	return n, nil
}
