package handler

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"time"

	"github.com/l1jgo/login/internal/auth"
	"github.com/l1jgo/login/internal/net"
	"github.com/l1jgo/login/internal/net/packet"
	"go.uber.org/zap"
)

const checkinTimeout = 5 * time.Second

// HandleAuthLogin processes the credential packet:
// [opcode][H block length][RSA-encrypted block: login\0password\0]
// The block is decrypted with the session's pooled key pair.
func HandleAuthLogin(sess *net.Session, r *packet.Reader, deps *Deps) {
	addr := sess.Addr

	// The accept-time gate already rejected banned addresses, but a ban
	// may have landed since this connection was made.
	if deps.Bans.IsBanned(addr) {
		deps.Metrics.RecordResult(auth.AddressBanned.String())
		deps.Log.Info("login attempt from banned address", zap.String("address", addr))
		sess.Disconnect(auth.ReasonAddressBlocked)
		return
	}

	blockLen := int(r.ReadH())
	block := r.ReadBytes(blockLen)

	credentials, err := rsa.DecryptPKCS1v15(rand.Reader, sess.KeyPair().Private, block)
	if err != nil {
		deps.Log.Warn("credential block decrypt failed",
			zap.Uint64("session", sess.ID), zap.Error(err))
		sess.Disconnect(auth.ReasonSystemError)
		return
	}

	login, password, ok := splitCredentials(credentials)
	if !ok {
		sess.Disconnect(auth.ReasonSystemError)
		return
	}
	login = strings.ToLower(login)

	ctx, cancel := context.WithTimeout(context.Background(), checkinTimeout)
	defer cancel()

	account, err := deps.Controller.Credentials().Verify(ctx, addr, login, password)
	if err != nil {
		deps.Metrics.RecordResult(auth.InvalidPassword.String())
		sess.Disconnect(auth.ReasonUserOrPassWrong)
		return
	}

	if allow, reason := deps.Scripting.AllowLogin(login, addr, account.AccessLevel); !allow {
		deps.Log.Info("login vetoed by policy script",
			zap.String("account", login), zap.String("reason", reason))
		sess.Disconnect(auth.ReasonAccessFailed)
		return
	}

	sess.SetAccount(login, account.AccessLevel, account.LastServer)

	result := deps.Controller.Checkin(ctx, sess, addr, account)
	deps.Metrics.RecordResult(result.String())

	switch result {
	case auth.AuthSuccess:
		key := deps.Controller.AssignSessionKey(login, sess)
		sess.SetSessionKey(key)
		sess.SetState(packet.StateAuthenticated)
		sendLoginOk(sess, key)
		deps.Scripting.OnAuthSuccess(login, addr)
		deps.Log.Info("login success",
			zap.String("account", login), zap.String("ip", addr))
	case auth.AlreadyOnLS:
		sess.Disconnect(auth.ReasonAccountInUse)
	case auth.AlreadyOnGS:
		sess.Disconnect(auth.ReasonAccountInWorld)
	case auth.AccountBanned:
		deps.Log.Info("banned account attempted login", zap.String("account", login))
		sess.Disconnect(auth.ReasonAccountSuspended)
	default:
		sess.Disconnect(auth.ReasonUserOrPassWrong)
	}
}

// splitCredentials parses the decrypted block: login and password as
// null-terminated byte strings.
func splitCredentials(block []byte) (login, password string, ok bool) {
	i := bytes.IndexByte(block, 0)
	if i <= 0 {
		return "", "", false
	}
	rest := block[i+1:]
	j := bytes.IndexByte(rest, 0)
	if j < 0 {
		j = len(rest)
	}
	return string(block[:i]), string(rest[:j]), true
}

// sendLoginOk echoes the login half of the session key.
// Format: [C opcode][D loginOK1][D loginOK2]
func sendLoginOk(sess *net.Session, key auth.SessionKey) {
	w := packet.NewWriterWithOpcode(packet.S_OPCODE_LOGIN_OK)
	w.WriteD(key.LoginOK1)
	w.WriteD(key.LoginOK2)
	sess.Send(w.Bytes())
}
