package maintenance

import (
	"context"
	"fmt"

	"github.com/platinummonkey/pantry/pkg/observability"
)

// InactiveTokenDeleter removes tokens whose owner has been deactivated and
// returns the deleted keys
type InactiveTokenDeleter interface {
	DeleteInactiveUserTokens(ctx context.Context) ([]string, error)
}

// TokenReaper deletes tokens bound to inactive users. Lookups already reject
// them; reaping keeps the table and the token caches small.
type TokenReaper struct {
	tokens  InactiveTokenDeleter
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewTokenReaper creates a reaper. Pass the caching token store so cached
// entries are dropped together with the rows.
func NewTokenReaper(tokens InactiveTokenDeleter, metrics *observability.Metrics, logger *observability.Logger) *TokenReaper {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &TokenReaper{tokens: tokens, metrics: metrics, logger: logger}
}

// Run performs one pass and returns the number of deleted tokens
func (r *TokenReaper) Run(ctx context.Context) (int, error) {
	keys, err := r.tokens.DeleteInactiveUserTokens(ctx)
	if r.metrics != nil && len(keys) > 0 {
		r.metrics.TokensReapedTotal.Add(float64(len(keys)))
	}
	if err != nil {
		return len(keys), fmt.Errorf("failed to reap tokens: %w", err)
	}

	if len(keys) > 0 {
		r.logger.WithField("count", len(keys)).Info("reaped tokens of inactive users")
	} else {
		r.logger.Debug("no tokens to reap")
	}
	return len(keys), nil
}
