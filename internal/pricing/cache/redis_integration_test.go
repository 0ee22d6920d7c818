//go:build integration

package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"bullion/internal/metal"
	"bullion/internal/pricing"
	"bullion/internal/pricing/cache"
	"bullion/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *cache.RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = cache.NewRedisCache(s.redis.Client)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestQuoteRoundTrip() {
	ctx := context.Background()
	q := &pricing.Quote{
		Metal:        metal.Gold,
		Purity:       750,
		PricePerGram: decimal.RequireFromString("46.7793"),
		ResolvedAt:   time.Now().UTC().Truncate(time.Second),
		Source:       pricing.TierBackup,
		Trend:        pricing.Trend{Label: pricing.TrendRising, PercentDelta: decimal.RequireFromString("0.75")},
	}
	key := pricing.CacheKey(q.Metal, q.Purity)

	s.Require().NoError(s.cache.Set(ctx, key, q, time.Minute))
	found, ok, err := s.cache.Get(ctx, key)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.True(q.PricePerGram.Equal(found.PricePerGram))
	s.Equal(q.Source, found.Source)
	s.Equal(pricing.TrendRising, found.Trend.Label)
	s.True(q.ResolvedAt.Equal(found.ResolvedAt))

	ttl, err := s.redis.Client.TTL(ctx, key).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisCacheSuite) TestMiss() {
	_, ok, err := s.cache.Get(context.Background(), "prices:SILVER:800")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisCacheSuite) TestDeletePrefixLeavesForeignKeys() {
	ctx := context.Background()
	for _, p := range []metal.Purity{999, 750, 585} {
		s.Require().NoError(s.cache.Set(ctx, pricing.CacheKey(metal.Gold, p), &pricing.Quote{}, time.Minute))
	}
	s.Require().NoError(s.redis.Client.Set(ctx, "ratelimit:primary", "1", time.Minute).Err())

	s.Require().NoError(s.cache.DeletePrefix(ctx, pricing.CacheKeyPrefix()))

	n, err := s.redis.Client.Exists(ctx, pricing.CacheKey(metal.Gold, 999), pricing.CacheKey(metal.Gold, 750)).Result()
	s.Require().NoError(err)
	s.Zero(n)
	n, err = s.redis.Client.Exists(ctx, "ratelimit:primary").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}
