package handlers

import (
	"bufio"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-desk/internal/livesync"
)

// StreamHandler pushes the live ticket list as Server-Sent Events.
type StreamHandler struct {
	cache     *livesync.Cache
	logger    *zap.Logger
	keepAlive time.Duration
}

// NewStreamHandler constructs handler. keepAlive <= 0 disables comment pings.
func NewStreamHandler(cache *livesync.Cache, logger *zap.Logger, keepAlive time.Duration) *StreamHandler {
	return &StreamHandler{cache: cache, logger: logger, keepAlive: keepAlive}
}

// Stream GET /tickets/stream. One "snapshot" event is written for the current
// view and again for every change. Bursts collapse to the latest view.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	encode := c.App().Config().JSONEncoder
	views := make(chan livesync.View, 1)
	unwatch := h.cache.Watch(func(v livesync.View) { latest(views, v) })
	latest(views, h.cache.View())

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unwatch()

		var ping <-chan time.Time
		if h.keepAlive > 0 {
			ticker := time.NewTicker(h.keepAlive)
			defer ticker.Stop()
			ping = ticker.C
		}

		for {
			select {
			case v := <-views:
				if err := writeSnapshot(w, encode, v); err != nil {
					h.logger.Debug("ticket stream closed", zap.Error(err))
					return
				}
			case <-ping:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

// latest replaces whatever is buffered in ch with v.
func latest(ch chan livesync.View, v livesync.View) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

func writeSnapshot(w *bufio.Writer, encode utils.JSONMarshal, v livesync.View) error {
	payload, err := encode(listResponse(v))
	if err != nil {
		return err
	}
	if _, err := w.WriteString("event: snapshot\ndata: "); err != nil {
		return err
	}
	if _, err := w.Write(payload); err != nil {
		return err
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return err
	}
	return w.Flush()
}
