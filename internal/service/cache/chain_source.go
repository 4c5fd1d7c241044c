package cache

import (
	"context"
	"encoding/json"
	"time"

	"NiftyPulse/internal/domain/models"
	drepo "NiftyPulse/internal/domain/repository"
	applogger "NiftyPulse/pkg/logger"
)

// CachedChainSource fronts an OptionChainSource so that consumers within one
// cycle share a single upstream call. Cache failures fall through to upstream.
type CachedChainSource struct {
	next   drepo.OptionChainSource
	cache  BytesCache
	ttl    time.Duration
	logger *applogger.Logger
}

func NewCachedChainSource(next drepo.OptionChainSource, cache BytesCache, ttl time.Duration, logger *applogger.Logger) *CachedChainSource {
	if logger == nil {
		logger = applogger.Nop()
	}
	return &CachedChainSource{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (c *CachedChainSource) OptionChain(ctx context.Context, key string) (*models.OptionChain, error) {
	if b, ok, err := c.cache.GetBytes(ctx, key); err != nil {
		c.logger.Warn("chain cache read failed", applogger.String("key", key), applogger.Error(err))
	} else if ok {
		var chain models.OptionChain
		if err := json.Unmarshal(b, &chain); err == nil {
			return &chain, nil
		}
	}
	chain, err := c.next.OptionChain(ctx, key)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(chain); err == nil {
		if err := c.cache.SetBytes(ctx, key, b, c.ttl); err != nil {
			c.logger.Warn("chain cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return chain, nil
}

var _ drepo.OptionChainSource = (*CachedChainSource)(nil)
