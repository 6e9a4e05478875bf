//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vitae/internal/claims/cache"
	id "vitae/pkg/domain"
	"vitae/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.RedisCache
	ctx   context.Context
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = cache.NewRedisCache(s.redis.Client)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisCacheSuite) TestRoundTrip() {
	key := cache.DetailKey(id.DeriveFingerprint(id.NewAccountID(), []byte("welded the hull of the Arctic Tern")))

	_, found := s.cache.Get(s.ctx, key)
	s.False(found)

	s.Require().NoError(s.cache.Set(s.ctx, key, []byte(`{"visible":true}`), time.Minute))

	val, found := s.cache.Get(s.ctx, key)
	s.Require().True(found)
	s.Equal([]byte(`{"visible":true}`), val)
}

func (s *RedisCacheSuite) TestDelete() {
	key := cache.ResumeKey(id.NewAccountID())
	s.Require().NoError(s.cache.Set(s.ctx, key, []byte("resume"), time.Minute))

	s.Require().NoError(s.cache.Delete(s.ctx, key))

	_, found := s.cache.Get(s.ctx, key)
	s.False(found)
}

func (s *RedisCacheSuite) TestTTLEviction() {
	key := cache.DetailKey(id.DeriveFingerprint(id.NewAccountID(), []byte("short-lived entry")))
	s.Require().NoError(s.cache.Set(s.ctx, key, []byte("v"), 50*time.Millisecond))

	time.Sleep(90 * time.Millisecond)

	_, found := s.cache.Get(s.ctx, key)
	s.False(found)
}

// TestClearLeavesForeignKeysAlone checks Clear only sweeps the registry's
// key prefix, since the Redis database may be shared.
func (s *RedisCacheSuite) TestClearLeavesForeignKeysAlone() {
	registryKey := cache.DetailKey(id.DeriveFingerprint(id.NewAccountID(), []byte("ours")))
	s.Require().NoError(s.cache.Set(s.ctx, registryKey, []byte("ours"), time.Minute))
	s.Require().NoError(s.redis.Client.Set(s.ctx, "othersvc:session:1", "theirs", time.Minute).Err())

	s.Require().NoError(s.cache.Clear(s.ctx))

	_, found := s.cache.Get(s.ctx, registryKey)
	s.False(found)

	val, err := s.redis.Client.Get(s.ctx, "othersvc:session:1").Result()
	s.Require().NoError(err)
	s.Equal("theirs", val)
}

// TestLayeredPromotesSlowHits seeds only Redis, as if another instance
// populated it, and checks a read lands the value in the local layer.
func (s *RedisCacheSuite) TestLayeredPromotesSlowHits() {
	local := cache.NewMemoryCache(time.Minute, 10*time.Minute)
	layered := cache.NewLayered(local, s.cache)
	key := cache.DetailKey(id.DeriveFingerprint(id.NewAccountID(), []byte("promoted entry")))

	s.Require().NoError(s.cache.Set(s.ctx, key, []byte("shared"), time.Minute))

	val, found := layered.Get(s.ctx, key)
	s.Require().True(found)
	s.Equal([]byte("shared"), val)

	promoted, found := local.Get(s.ctx, key)
	s.Require().True(found)
	s.Equal([]byte("shared"), promoted)
}
