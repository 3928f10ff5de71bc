package handler

import (
	"github.com/l1jgo/login/internal/auth"
	"github.com/l1jgo/login/internal/config"
	"github.com/l1jgo/login/internal/gameserver"
	"github.com/l1jgo/login/internal/metrics"
	"github.com/l1jgo/login/internal/net"
	"github.com/l1jgo/login/internal/net/packet"
	"github.com/l1jgo/login/internal/scripting"
	"go.uber.org/zap"
)

// Deps holds shared dependencies injected into all packet handlers.
type Deps struct {
	Controller *auth.Controller
	Bans       *auth.BanTracker
	Servers    *gameserver.Table
	Scripting  *scripting.Engine
	Metrics    *metrics.Metrics
	Config     *config.Config
	Log        *zap.Logger
}

// RegisterAll registers all packet handlers into the registry.
func RegisterAll(reg *packet.Registry, deps *Deps) {
	reg.Register(packet.C_OPCODE_AUTH_LOGIN,
		[]packet.SessionState{packet.StateConnected},
		func(sess any, r *packet.Reader) {
			HandleAuthLogin(sess.(*net.Session), r, deps)
		},
	)

	authStates := []packet.SessionState{packet.StateAuthenticated}

	reg.Register(packet.C_OPCODE_SERVER_LIST, authStates,
		func(sess any, r *packet.Reader) {
			HandleServerList(sess.(*net.Session), r, deps)
		},
	)
	reg.Register(packet.C_OPCODE_REQUEST_PLAY, authStates,
		func(sess any, r *packet.Reader) {
			HandleRequestPlay(sess.(*net.Session), r, deps)
		},
	)

	reg.Register(packet.C_OPCODE_QUIT,
		[]packet.SessionState{
			packet.StateConnected, packet.StateAuthenticated, packet.StateGameSelected,
		},
		func(sess any, r *packet.Reader) {
			HandleQuit(sess.(*net.Session), r, deps)
		},
	)
}
