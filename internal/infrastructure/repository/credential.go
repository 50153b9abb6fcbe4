package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/amirfarid/guardpost/internal/domain"
	"github.com/amirfarid/guardpost/internal/service"
)

const credentialKeyPrefix = "cred:"

// CredentialCache stores live credentials in redis keyed by public code.
// The key's TTL is the credential's remaining lifetime, making eviction
// the primary expiry enforcement; the signature check provides the
// cryptographic backstop.
type CredentialCache struct {
	rdb *redis.Client
}

func NewCredentialCache(rdb *redis.Client) *CredentialCache {
	return &CredentialCache{rdb: rdb}
}

// Put registers a credential under its public code. SETNX guarantees a
// public code is globally unique while it is live; a collision surfaces
// as ErrCodeExists so the caller can regenerate.
func (c *CredentialCache) Put(ctx context.Context, cred domain.Credential, ttl time.Duration) error {
	payload, err := json.Marshal(cred)
	if err != nil {
		return err
	}

	ok, err := c.rdb.SetNX(ctx, credentialKeyPrefix+cred.Code, payload, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return service.ErrCodeExists
	}
	return nil
}

func (c *CredentialCache) Get(ctx context.Context, code string) (domain.Credential, error) {
	payload, err := c.rdb.Get(ctx, credentialKeyPrefix+code).Result()
	if err == redis.Nil {
		return domain.Credential{}, domain.ErrCredentialNotFound
	}
	if err != nil {
		return domain.Credential{}, err
	}

	var cred domain.Credential
	if err := json.Unmarshal([]byte(payload), &cred); err != nil {
		// an unreadable entry is as good as no entry, fail closed
		return domain.Credential{}, domain.ErrCredentialNotFound
	}
	return cred, nil
}

func (c *CredentialCache) Delete(ctx context.Context, code string) error {
	return c.rdb.Del(ctx, credentialKeyPrefix+code).Err()
}
