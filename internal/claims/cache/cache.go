// Package cache accelerates claim reads.
//
// The registry store stays the source of truth; cache entries hold marshaled
// responses keyed per claim or per account and are invalidated precisely by
// the service when a write lands. All layers are best-effort: a miss or a
// backend error only costs a store read.
package cache

import (
	"context"
	"time"

	id "vitae/pkg/domain"
)

// Cache defines the interface for caching.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

const keyPrefix = "vitae:v1:"

// DetailKey returns the cache key for a single claim's full details.
func DetailKey(fingerprint id.Fingerprint) string {
	return keyPrefix + "detail:" + fingerprint.String()
}

// ResumeKey returns the cache key for an account's assembled resume.
func ResumeKey(account id.AccountID) string {
	return keyPrefix + "resume:" + account.String()
}
