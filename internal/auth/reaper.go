package auth

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Reaper evicts sessions that authenticated but never progressed to game
// selection within the idle timeout. Closing uses ReasonAccessFailed so an
// idle kick is distinguishable from an explicit rejection. Client-initiated
// disconnects are handled synchronously by session teardown; the reaper is
// only the backstop for abandoned handshakes.
type Reaper struct {
	ctrl    *Controller
	timeout time.Duration
	log     *zap.Logger
}

func NewReaper(ctrl *Controller, timeout time.Duration, log *zap.Logger) *Reaper {
	return &Reaper{ctrl: ctrl, timeout: timeout, log: log}
}

// Run sweeps at half the idle timeout until ctx is cancelled. Iteration
// tolerates concurrent removal of entries by normal logout.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.timeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reaper) sweep() {
	now := time.Now()
	r.ctrl.EachSession(func(account string, client Client) {
		if client.Progressed() {
			return
		}
		if now.Sub(client.ConnectedAt()) <= r.timeout {
			return
		}
		r.log.Info("kicking idle session",
			zap.String("account", account),
			zap.Duration("age", now.Sub(client.ConnectedAt())),
		)
		client.Disconnect(ReasonAccessFailed)
		// Teardown normally deregisters; do it here too in case the
		// entry was registered after the connection already closed.
		r.ctrl.RemoveClient(account, client)
	})
}
