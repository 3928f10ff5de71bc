package net

import (
	"net"
	"sync/atomic"

	"github.com/l1jgo/login/internal/auth"
	"github.com/l1jgo/login/internal/net/packet"
	"go.uber.org/zap"
)

// Server accepts client TCP connections and creates Sessions. Banned
// addresses are rejected at accept time, before any credential exchange.
type Server struct {
	listener net.Listener
	nextID   atomic.Uint64
	cfg      SessionConfig
	registry *packet.Registry
	keys     *auth.KeyCache
	banned   func(address string) bool
	onClose  func(*Session)
	log      *zap.Logger
	closeCh  chan struct{}
}

func NewServer(bindAddr string, cfg SessionConfig, reg *packet.Registry, keys *auth.KeyCache, banned func(string) bool, onClose func(*Session), log *zap.Logger) (*Server, error) {
	ln, err := net.Listen("tcp", bindAddr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: ln,
		cfg:      cfg,
		registry: reg,
		keys:     keys,
		banned:   banned,
		onClose:  onClose,
		log:      log,
		closeCh:  make(chan struct{}),
	}, nil
}

// AcceptLoop runs in its own goroutine. It accepts connections, applies the
// address-ban gate, and starts sessions with a pooled RSA pair and a fresh
// Blowfish key.
func (s *Server) AcceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.closeCh:
				return // server shutting down
			default:
			}
			s.log.Error("accept failed", zap.Error(err))
			continue
		}

		host, _, splitErr := net.SplitHostPort(conn.RemoteAddr().String())
		if splitErr != nil {
			host = conn.RemoteAddr().String()
		}
		if s.banned != nil && s.banned(host) {
			s.log.Info("rejected connection from banned address", zap.String("address", host))
			conn.Close()
			continue
		}

		bfKey, err := s.keys.SessionBlowfishKey()
		if err != nil {
			s.log.Error("session key generation failed", zap.Error(err))
			conn.Close()
			continue
		}

		id := s.nextID.Add(1)
		sess := NewSession(conn, id, s.cfg, s.registry, s.onClose, s.log)
		if err := sess.Start(s.keys.KeyPair(), bfKey); err != nil {
			s.log.Warn("session start failed", zap.Uint64("session", id), zap.Error(err))
			continue
		}

		s.log.Info("client connected",
			zap.Uint64("session", id),
			zap.String("ip", sess.IP),
		)
	}
}

// Shutdown stops accepting new connections.
func (s *Server) Shutdown() {
	close(s.closeCh)
	s.listener.Close()
}

// Addr returns the listener's address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
