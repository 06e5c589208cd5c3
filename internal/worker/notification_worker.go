package worker

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/service"
	"github.com/spec-kit/repair-desk/pkg/util/retry"
)

// StartNotificationWorker runs the notification service in the background,
// resubscribing with backoff when the change feed fails. The returned channel
// is closed once the worker has stopped.
func StartNotificationWorker(ctx context.Context, notificationService *service.NotificationService, logger *zap.Logger) <-chan struct{} {
	done := make(chan struct{})
	if notificationService == nil {
		close(done)
		return done
	}

	policy := retry.Policy{
		MaxAttempts:     math.MaxInt32,
		InitialInterval: time.Second,
		MaxInterval:     30 * time.Second,
	}

	go func() {
		defer close(done)
		err := retry.Do(ctx, policy, func(ctx context.Context) error {
			err := notificationService.Run(ctx)
			if err != nil {
				logger.Warn("notification worker subscription failed", zap.Error(err))
			}
			return err
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("notification worker stopped", zap.Error(err))
		}
	}()
	return done
}
