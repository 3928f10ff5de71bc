package handler

import (
	"context"
	"time"

	"github.com/l1jgo/login/internal/auth"
	"github.com/l1jgo/login/internal/net"
	"github.com/l1jgo/login/internal/net/packet"
	"go.uber.org/zap"
)

// HandleRequestPlay processes game-server selection.
// Format: [opcode][C server id]
// On success the session leaves the reaper's reach and the client carries
// the play half of the session key to the game server.
func HandleRequestPlay(sess *net.Session, r *packet.Reader, deps *Deps) {
	serverID := int(r.ReadC())

	link, ok := deps.Servers.Link(serverID)
	if !ok {
		sendPlayFail(sess, auth.ReasonSystemError)
		return
	}

	current, _ := link.PlayerCount()
	if def, exists := deps.Servers.Definition(serverID); exists &&
		def.MaxPlayers > 0 && current >= def.MaxPlayers && sess.AccessLevel() <= 0 {
		sendPlayFail(sess, auth.ReasonServerOverloaded)
		return
	}

	if sess.LastServer() != serverID {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := deps.Controller.UpdateLastServer(ctx, sess.Account(), serverID); err != nil {
			// Not fatal; the preference just won't stick.
			deps.Log.Warn("could not set last server",
				zap.String("account", sess.Account()), zap.Error(err))
		}
		sess.SetLastServer(serverID)
	}

	sess.SetState(packet.StateGameSelected)

	key := sess.SessionKey()
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_PLAY_OK)
	w.WriteD(key.PlayOK1)
	w.WriteD(key.PlayOK2)
	w.WriteC(byte(serverID))
	sess.Send(w.Bytes())

	deps.Log.Info("play granted",
		zap.String("account", sess.Account()),
		zap.Int("server", serverID),
	)
}

// sendPlayFail rejects the selection without dropping the session, so the
// client can pick another server.
func sendPlayFail(sess *net.Session, reason auth.DisconnectReason) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_PLAY_FAIL)
	w.WriteC(byte(reason))
	sess.Send(w.Bytes())
}
