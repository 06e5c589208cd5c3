package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/repair-desk/internal/config"
	"github.com/spec-kit/repair-desk/internal/events"
	"github.com/spec-kit/repair-desk/internal/service"
)

func TestNotificationWorker_LogsFeedEvents(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)
	feed := events.NewInMemoryFeed()
	svc := service.NewNotificationService(feed, logger, config.NotificationConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	done := StartNotificationWorker(ctx, svc, logger)

	require.Eventually(t, func() bool {
		_ = feed.Publish(ctx, events.Event{Type: events.EventTicketCreated, TicketKey: "k", TicketID: "PE-JUL24-001"})
		return logs.FilterMessage("TicketCreated").Len() > 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
}
