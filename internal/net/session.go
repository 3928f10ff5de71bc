package net

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/l1jgo/login/internal/auth"
	"github.com/l1jgo/login/internal/net/packet"
	"go.uber.org/zap"
)

// Session represents a single client connection. Network I/O runs in
// dedicated goroutines; inbound packets are dispatched inline from the
// read goroutine, so each client authenticates on its own goroutine.
type Session struct {
	ID   uint64
	conn net.Conn

	cipher *Cipher
	state  atomic.Int32 // packet.SessionState stored as int32
	mu     sync.Mutex   // protects conn writes

	OutQueue chan []byte // writer goroutine reads from here

	IP          string // host:port of the remote end
	Addr        string // host only, used for ban bookkeeping
	connectedAt time.Time

	dataMu      sync.RWMutex
	account     string
	accessLevel int
	lastServer  int
	sessionKey  auth.SessionKey

	keyPair     *auth.KeyPair
	blowfishKey []byte

	registry *packet.Registry
	onClose  func(*Session)

	closeCh   chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool

	// Per-second packet rate limiter (readLoop goroutine only, no lock needed)
	pktPerSec  int   // max packets/sec (0 = unlimited)
	pktCount   int   // packets received this second
	pktResetAt int64 // unix second of last counter reset

	writeTimeout time.Duration

	log *zap.Logger
}

type SessionConfig struct {
	OutQueueSize     int
	PacketsPerSecond int
	WriteTimeout     time.Duration
}

func NewSession(conn net.Conn, id uint64, cfg SessionConfig, reg *packet.Registry, onClose func(*Session), log *zap.Logger) *Session {
	host, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		host = conn.RemoteAddr().String()
	}
	s := &Session{
		ID:           id,
		conn:         conn,
		OutQueue:     make(chan []byte, cfg.OutQueueSize),
		IP:           conn.RemoteAddr().String(),
		Addr:         host,
		connectedAt:  time.Now(),
		registry:     reg,
		onClose:      onClose,
		closeCh:      make(chan struct{}),
		pktPerSec:    cfg.PacketsPerSecond,
		writeTimeout: cfg.WriteTimeout,
		log:          log.With(zap.Uint64("session", id)),
	}
	s.state.Store(int32(packet.StateConnected))
	return s
}

func (s *Session) State() packet.SessionState {
	return packet.SessionState(s.state.Load())
}

func (s *Session) SetState(st packet.SessionState) {
	s.state.Store(int32(st))
}

// Start sends the plaintext init packet carrying the RSA modulus and the
// session Blowfish key, arms the cipher, and launches the reader and
// writer goroutines.
func (s *Session) Start(keyPair *auth.KeyPair, blowfishKey []byte) error {
	s.keyPair = keyPair
	s.blowfishKey = blowfishKey

	w := packet.NewWriterWithOpcode(packet.S_OPCODE_INIT)
	w.WriteD(int32(s.ID))
	w.WriteD(packet.InitProtocolRevision)
	w.WriteH(uint16(len(keyPair.Modulus)))
	w.WriteBytes(keyPair.Modulus)
	w.WriteH(uint16(len(blowfishKey)))
	w.WriteBytes(blowfishKey)

	s.mu.Lock()
	err := WriteFrame(s.conn, w.RawBytes())
	s.mu.Unlock()
	if err != nil {
		s.Close()
		return fmt.Errorf("send init packet: %w", err)
	}

	cipher, err := NewCipher(blowfishKey)
	if err != nil {
		s.Close()
		return err
	}
	s.cipher = cipher

	go s.readLoop()
	go s.writeLoop()
	return nil
}

// KeyPair returns the RSA pair assigned for this session's handshake.
func (s *Session) KeyPair() *auth.KeyPair {
	return s.keyPair
}

func (s *Session) Account() string {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.account
}

func (s *Session) SetAccount(account string, accessLevel, lastServer int) {
	s.dataMu.Lock()
	s.account = account
	s.accessLevel = accessLevel
	s.lastServer = lastServer
	s.dataMu.Unlock()
}

func (s *Session) AccessLevel() int {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.accessLevel
}

func (s *Session) LastServer() int {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.lastServer
}

func (s *Session) SetLastServer(id int) {
	s.dataMu.Lock()
	s.lastServer = id
	s.dataMu.Unlock()
}

func (s *Session) SessionKey() auth.SessionKey {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	return s.sessionKey
}

func (s *Session) SetSessionKey(key auth.SessionKey) {
	s.dataMu.Lock()
	s.sessionKey = key
	s.dataMu.Unlock()
}

func (s *Session) ConnectedAt() time.Time {
	return s.connectedAt
}

// Progressed reports whether the session moved past authentication.
func (s *Session) Progressed() bool {
	st := s.State()
	return st == packet.StateGameSelected || st == packet.StateDisconnecting
}

// Send enqueues a packet for the writer goroutine. Non-blocking: a full
// queue disconnects the slow client (backpressure).
func (s *Session) Send(data []byte) {
	if s.closed.Load() {
		return
	}
	select {
	case s.OutQueue <- data:
	default:
		s.log.Warn("output queue full, dropping slow connection")
		s.Close()
	}
}

// Disconnect sends the fail reason synchronously (unless ReasonNone) and
// closes the session. Safe to call from any goroutine, repeatedly.
func (s *Session) Disconnect(reason auth.DisconnectReason) {
	if s.closed.Load() {
		return
	}
	if reason != auth.ReasonNone {
		w := packet.NewWriterWithOpcode(packet.S_OPCODE_LOGIN_FAIL)
		w.WriteC(byte(reason))
		s.writePacket(w.Bytes())
	}
	s.Close()
}

// Close gracefully shuts down the session.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		s.SetState(packet.StateDisconnecting)
		close(s.closeCh)
		s.conn.Close()
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// readLoop reads frames, decrypts them, and dispatches them inline. One
// goroutine per connection; a handler blocking on the credential store
// blocks only this client.
func (s *Session) readLoop() {
	defer s.Close()

	for {
		select {
		case <-s.closeCh:
			return
		default:
		}

		payload, err := ReadFrame(s.conn)
		if err != nil {
			if !s.closed.Load() {
				s.log.Debug("read error", zap.Error(err))
			}
			return
		}

		decrypted := s.cipher.Decrypt(payload)

		// Per-second packet rate limiter
		if s.pktPerSec > 0 {
			now := time.Now().Unix()
			if now != s.pktResetAt {
				s.pktCount = 0
				s.pktResetAt = now
			}
			s.pktCount++
			if s.pktCount > s.pktPerSec {
				s.log.Warn("packet rate exceeded, dropping connection", zap.Int("pps", s.pktCount))
				return
			}
		}

		if err := s.registry.Dispatch(s, s.State(), decrypted); err != nil {
			s.log.Warn("dispatch failed", zap.Error(err))
			return
		}
	}
}

// writeLoop reads packets from OutQueue, encrypts them, and writes them as
// framed data to the TCP connection.
func (s *Session) writeLoop() {
	defer s.Close()

	for {
		select {
		case data := <-s.OutQueue:
			if !s.writePacket(data) {
				return
			}
		case <-s.closeCh:
			return
		}
	}
}

// writePacket encrypts and writes a single framed packet. Returns true on
// success.
func (s *Session) writePacket(data []byte) bool {
	if s.cipher == nil {
		return false
	}
	encrypted := make([]byte, len(data))
	copy(encrypted, data)
	s.cipher.Encrypt(encrypted)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	if err := WriteFrame(s.conn, encrypted); err != nil {
		if !s.closed.Load() {
			s.log.Debug("write error", zap.Error(err))
		}
		return false
	}
	return true
}
