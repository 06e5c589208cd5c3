package worker

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/livesync"
	"github.com/spec-kit/repair-desk/pkg/util/retry"
)

// StartStreamRecovery resubscribes the cache whenever its ticket stream ends
// in an error, backing off between attempts that fail again. The previous
// list stays visible, marked stale, until a resubscription syncs. The
// returned channel is closed once the worker has stopped.
func StartStreamRecovery(ctx context.Context, cache *livesync.Cache, policy retry.Policy, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if cache == nil {
		close(done)
		return done
	}

	changed := make(chan struct{}, 1)
	unwatch := cache.Watch(func(livesync.View) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	policy.Retryable = func(err error) bool { return !errors.Is(err, livesync.ErrNotOpen) }

	go func() {
		defer close(done)
		defer unwatch()
		for {
			select {
			case <-ctx.Done():
				return
			case <-changed:
			}
			if cache.State() != livesync.StateErrored {
				continue
			}

			logger.Warn("ticket stream errored; resubscribing", zap.Error(cache.StreamErr()))
			err := retry.Do(ctx, policy, func(ctx context.Context) error {
				if err := cache.Resubscribe(); err != nil {
					return err
				}
				err := awaitSettled(ctx, cache, changed)
				if err != nil {
					logger.Warn("ticket stream resubscription failed", zap.Error(err))
				}
				return err
			})
			switch {
			case err == nil:
				logger.Info("ticket stream recovered")
			case ctx.Err() != nil:
				return
			default:
				logger.Error("ticket stream recovery gave up", zap.Error(err))
				return
			}
		}
	}()
	return done
}

// awaitSettled waits until a fresh subscription either syncs or errors.
func awaitSettled(ctx context.Context, cache *livesync.Cache, changed <-chan struct{}) error {
	for {
		switch cache.State() {
		case livesync.StateSynced:
			return nil
		case livesync.StateErrored:
			return cache.StreamErr()
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}
