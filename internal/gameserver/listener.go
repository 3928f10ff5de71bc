package gameserver

import (
	gonet "net"

	"go.uber.org/zap"
)

// Listener accepts game-server link connections. Links speak plaintext
// frames; the port is expected to face the internal network only.
type Listener struct {
	listener gonet.Listener
	table    *Table
	log      *zap.Logger
	closeCh  chan struct{}
}

func NewListener(bindAddr string, table *Table, log *zap.Logger) (*Listener, error) {
	ln, err := gonet.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return &Listener{
		listener: ln,
		table:    table,
		log:      log,
		closeCh:  make(chan struct{}),
	}, nil
}

// AcceptLoop runs in its own goroutine; each link gets a serve goroutine.
func (ln *Listener) AcceptLoop() {
	for {
		conn, err := ln.listener.Accept()
		if err != nil {
			select {
			case <-ln.closeCh:
				return
			default:
			}
			ln.log.Error("link accept failed", zap.Error(err))
			continue
		}

		ln.log.Info("game server link connected", zap.String("addr", conn.RemoteAddr().String()))
		link := newLink(conn, ln.table, ln.log)
		go link.serve()
	}
}

// Shutdown stops accepting new links.
func (ln *Listener) Shutdown() {
	close(ln.closeCh)
	ln.listener.Close()
}

// Addr returns the listener's address.
func (ln *Listener) Addr() gonet.Addr {
	return ln.listener.Addr()
}
