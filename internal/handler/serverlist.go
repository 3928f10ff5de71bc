package handler

import (
	"github.com/l1jgo/login/internal/net"
	"github.com/l1jgo/login/internal/net/packet"
)

// HandleServerList sends the registered game servers with live status.
// Format: [C opcode][C count][C last server]
// then per server: [C id][S name][S host][D port][C up][H players][H max]
func HandleServerList(sess *net.Session, r *packet.Reader, deps *Deps) {
	defs := deps.Servers.Definitions()

	w := packet.NewWriterWithOpcode(packet.S_OPCODE_SERVER_LIST)
	w.WriteC(byte(len(defs)))
	w.WriteC(byte(sess.LastServer()))

	for _, def := range defs {
		w.WriteC(byte(def.ID))
		w.WriteS(def.Name)
		w.WriteS(def.Host)
		w.WriteD(int32(def.Port))

		if link, ok := deps.Servers.Link(def.ID); ok {
			current, _ := link.PlayerCount()
			w.WriteC(1)
			w.WriteH(uint16(current))
		} else {
			w.WriteC(0)
			w.WriteH(0)
		}
		w.WriteH(uint16(def.MaxPlayers))
	}

	sess.Send(w.Bytes())
}
