package gameserver

import (
	gonet "net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/l1jgo/login/internal/auth"
	"github.com/l1jgo/login/internal/net"
	"github.com/l1jgo/login/internal/net/packet"
	"go.uber.org/zap"
)

const linkWriteTimeout = 10 * time.Second

// Link is one connected game-server process. It tracks the set of accounts
// that server reports as online and answers the presence oracle. A link
// that never completed its auth frame is skipped by presence queries.
type Link struct {
	conn gonet.Conn

	serverID atomic.Int32
	authed   atomic.Bool

	mu       sync.RWMutex
	accounts map[string]struct{}

	players    atomic.Int32
	maxPlayers atomic.Int32

	writeMu sync.Mutex

	table *Table
	log   *zap.Logger
}

func newLink(conn gonet.Conn, table *Table, log *zap.Logger) *Link {
	return &Link{
		conn:     conn,
		accounts: make(map[string]struct{}),
		table:    table,
		log:      log.With(zap.String("link", conn.RemoteAddr().String())),
	}
}

// IsAuthenticated reports whether the link completed its auth frame.
func (l *Link) IsAuthenticated() bool {
	return l.authed.Load()
}

// ServerID returns the registered id, or 0 before authentication.
func (l *Link) ServerID() int {
	return int(l.serverID.Load())
}

// HasAccount reports whether the game server claims the account is online.
func (l *Link) HasAccount(login string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.accounts[login]
	return ok
}

// PlayerCount returns the last reported current/max player counts.
func (l *Link) PlayerCount() (current, max int) {
	return int(l.players.Load()), int(l.maxPlayers.Load())
}

// serve runs the link's read loop until the connection drops.
func (l *Link) serve() {
	defer func() {
		l.conn.Close()
		if l.authed.Load() {
			l.table.unregister(l)
		}
		l.log.Info("game server link closed", zap.Int("server", l.ServerID()))
	}()

	for {
		payload, err := net.ReadFrame(l.conn)
		if err != nil {
			return
		}
		if len(payload) == 0 {
			continue
		}

		r := packet.NewReader(payload)
		switch payload[0] {
		case packet.GS_OPCODE_AUTH_REQUEST:
			l.handleAuth(r)
		case packet.GS_OPCODE_PLAYERS_IN_GAME:
			l.handlePlayersInGame(r)
		case packet.GS_OPCODE_PLAYER_IN:
			l.setAccount(r.ReadS(), true)
		case packet.GS_OPCODE_PLAYER_OUT:
			l.setAccount(r.ReadS(), false)
		case packet.GS_OPCODE_PLAYER_AUTH_REQ:
			l.handlePlayerAuth(r)
		case packet.GS_OPCODE_STATUS:
			l.players.Store(int32(r.ReadH()))
			l.maxPlayers.Store(int32(r.ReadH()))
		default:
			l.log.Debug("unknown link opcode", zap.Uint8("opcode", payload[0]))
		}
	}
}

func (l *Link) handleAuth(r *packet.Reader) {
	id := int(r.ReadC())
	key := r.ReadS()

	ok := l.table.authenticate(l, id, key)
	if ok {
		l.serverID.Store(int32(id))
		l.authed.Store(true)
		l.log.Info("game server link authenticated", zap.Int("server", id))
	} else {
		l.log.Warn("game server link auth rejected", zap.Int("server", id))
	}

	w := packet.NewWriterWithOpcode(packet.GS_OPCODE_AUTH_RESPONSE)
	if ok {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
	l.send(w.RawBytes())

	if !ok {
		l.conn.Close()
	}
}

// handlePlayersInGame replaces the whole online set with the reported one.
func (l *Link) handlePlayersInGame(r *packet.Reader) {
	count := int(r.ReadH())
	accounts := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		accounts[r.ReadS()] = struct{}{}
	}

	l.mu.Lock()
	l.accounts = accounts
	l.mu.Unlock()
}

func (l *Link) setAccount(login string, online bool) {
	if login == "" {
		return
	}
	l.mu.Lock()
	if online {
		l.accounts[login] = struct{}{}
	} else {
		delete(l.accounts, login)
	}
	l.mu.Unlock()
}

// handlePlayerAuth validates a session key the game server received on
// handoff against the one this process assigned at login.
func (l *Link) handlePlayerAuth(r *packet.Reader) {
	login := r.ReadS()
	key := auth.SessionKey{
		LoginOK1: r.ReadD(),
		LoginOK2: r.ReadD(),
		PlayOK1:  r.ReadD(),
		PlayOK2:  r.ReadD(),
	}

	ok := l.authed.Load() && l.table.validator != nil &&
		l.table.validator.ValidateSessionKey(login, key)

	w := packet.NewWriterWithOpcode(packet.GS_OPCODE_PLAYER_AUTH_RESP)
	w.WriteS(login)
	if ok {
		w.WriteC(1)
	} else {
		w.WriteC(0)
	}
	l.send(w.RawBytes())
}

func (l *Link) send(data []byte) {
	l.writeMu.Lock()
	defer l.writeMu.Unlock()
	l.conn.SetWriteDeadline(time.Now().Add(linkWriteTimeout))
	if err := net.WriteFrame(l.conn, data); err != nil {
		l.log.Debug("link write error", zap.Error(err))
	}
}
