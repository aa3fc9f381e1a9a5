package cdp

import (
	"context"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// heartbeat pings the transport every interval until the handler closes.
// A failed ping is a connection loss: pending commands fail and the
// transport is closed so the receive loop exits.
func (h *Handler) heartbeat(conn Conn, p pinger, interval time.Duration) {
	defer h.loops.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-h.closedCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), h.cfg.CommandTimeout)
			err := p.Ping(ctx)
			cancel()

			if err == nil {
				h.log.Debug("heartbeat ok")
				continue
			}
			if h.closing.Load() {
				return
			}
			h.log.Warn("heartbeat failed", zap.Error(err))
			h.terminate(&NetworkError{Op: "ping", Addr: h.address(), Err: err})
			_ = conn.Close(websocket.StatusGoingAway, "heartbeat failed")
			return
		}
	}
}
