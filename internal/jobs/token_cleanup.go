// Package jobs hosts background maintenance loops.
package jobs

import (
	"context"
	"log"
	"time"
)

type expiredTokenDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// TokenReaper periodically purges session-token rows whose signature has
// long expired, so revocation checks don't scan dead sessions forever.
type TokenReaper struct {
	tokens   expiredTokenDeleter
	ttl      time.Duration
	interval time.Duration
}

func NewTokenReaper(tokens expiredTokenDeleter, ttl, interval time.Duration) *TokenReaper {
	return &TokenReaper{
		tokens:   tokens,
		ttl:      ttl,
		interval: interval,
	}
}

// Start runs the reaper loop until ctx is cancelled.
func (r *TokenReaper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.runOnce(ctx)
			}
		}
	}()
}

func (r *TokenReaper) runOnce(ctx context.Context) {
	purged, err := r.tokens.DeleteExpired(ctx, time.Now().Add(-r.ttl))
	if err != nil {
		log.Printf("Token cleanup failed: %v", err)
		return
	}
	if purged > 0 {
		log.Printf("Token cleanup removed %d expired sessions", purged)
	}
}
