package piprapaywebhook

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/promptstudio-ai/promptstudio-backend/pkg/redis"
)

// IdempotencyGuard suppresses duplicate deliveries of the same raw payload.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// BodyDigest identifies a delivery by the SHA-256 of its exact raw bytes.
func BodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// CheckAndMark returns true when the digest was already seen within the TTL.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, digest string) (bool, error) {
	if digest == "" {
		return false, errors.New("digest is required")
	}
	key := g.store.IdempotencyKey(g.scope, digest)
	set, err := g.store.SetNX(ctx, key, "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release frees the digest so the provider's retry can be processed after a
// failed attempt.
func (g *IdempotencyGuard) Release(ctx context.Context, digest string) error {
	if digest == "" {
		return errors.New("digest is required")
	}
	key := g.store.IdempotencyKey(g.scope, digest)
	return g.store.Del(ctx, key)
}
