package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/suPer8Hu/relaychat/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const flightTimeout = 15 * time.Second

// Cache stores rendered search context by key.
type Cache interface {
	GetSearch(ctx context.Context, key string) (string, bool, error)
	SetSearch(ctx context.Context, key, value string, ttl time.Duration) error
}

// CachedSearcher fronts a Searcher with a shared cache and collapses
// concurrent lookups of the same query into one upstream call.
type CachedSearcher struct {
	next  Searcher
	cache Cache
	ttl   time.Duration
	group singleflight.Group
}

func NewCachedSearcher(next Searcher, cache Cache, ttl time.Duration) *CachedSearcher {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedSearcher{next: next, cache: cache, ttl: ttl}
}

func cacheKey(query string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:])
}

func (s *CachedSearcher) Search(ctx context.Context, query string) (string, error) {
	key := cacheKey(query)

	if s.cache != nil {
		v, ok, err := s.cache.GetSearch(ctx, key)
		if err != nil {
			log.Warn().Err(err).Str("component", "search").Msg("search cache read failed")
		} else if ok {
			metrics.SearchRequestsTotal.WithLabelValues("hit").Inc()
			return v, nil
		}
	}

	// the flight is shared, so one caller going away must not fail the rest
	ch := s.group.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flightTimeout)
		defer cancel()
		return s.next.Search(fctx, query)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	if res.Err != nil {
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
		return "", res.Err
	}
	text := res.Val.(string)
	metrics.SearchRequestsTotal.WithLabelValues("miss").Inc()

	if s.cache != nil && text != "" {
		if err := s.cache.SetSearch(ctx, key, text, s.ttl); err != nil {
			log.Warn().Err(err).Str("component", "search").Msg("search cache write failed")
		}
	}
	return text, nil
}
