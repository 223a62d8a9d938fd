package opportunity

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"opportunity-matcher/internal/common/logger"
	"opportunity-matcher/internal/common/metrics"
	"opportunity-matcher/internal/matching"
)

const CacheKey = "opportunities:candidates"

// CachedSource serves candidates from redis for ttl and falls back to the
// wrapped source on a miss. Cache failures never fail a lookup.
type CachedSource struct {
	source matching.CandidateSource
	client redis.Cmdable
	key    string
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedSource(source matching.CandidateSource, client redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedSource {
	return &CachedSource{
		source: source,
		client: client,
		key:    CacheKey,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "opportunity", "cache": CacheKey}),
	}
}

func (s *CachedSource) Candidates(ctx context.Context) ([]matching.OpportunityCandidate, error) {
	if cached, ok := s.lookup(ctx); ok {
		return cached, nil
	}

	candidates, err := s.source.Candidates(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := json.Marshal(candidates)
	if err == nil {
		err = s.client.Set(ctx, s.key, raw, s.ttl).Err()
	}
	if err != nil {
		s.logger.Warn("failed to cache candidates", map[string]interface{}{"error": err.Error()})
	}
	return candidates, nil
}

func (s *CachedSource) lookup(ctx context.Context) ([]matching.OpportunityCandidate, bool) {
	raw, err := s.client.Get(ctx, s.key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		metrics.OpportunityCacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	case err != nil:
		metrics.OpportunityCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("candidate cache unavailable", map[string]interface{}{"error": err.Error()})
		return nil, false
	}

	var candidates []matching.OpportunityCandidate
	if err := json.Unmarshal(raw, &candidates); err != nil {
		metrics.OpportunityCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("discarding unreadable cached candidates", map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	metrics.OpportunityCacheLookups.WithLabelValues("hit").Inc()
	return candidates, true
}

// Invalidate drops the cached list so the next lookup reloads it.
func (s *CachedSource) Invalidate(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}
