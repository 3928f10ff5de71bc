package handler

import (
	"github.com/l1jgo/login/internal/net"
	"github.com/l1jgo/login/internal/net/packet"
	"go.uber.org/zap"
)

// HandleQuit processes a client-initiated disconnect. Session teardown
// deregisters the account synchronously; the reaper is never needed here.
func HandleQuit(sess *net.Session, r *packet.Reader, deps *Deps) {
	deps.Log.Debug("client quit", zap.Uint64("session", sess.ID))
	sess.Close()
}
