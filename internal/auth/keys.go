package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"fmt"
	mrand "math/rand"
)

const (
	rsaKeyBits      = 1024
	blowfishKeyLen  = 16
	sessionKeyWords = 4
)

// KeyPair is one slot of the pre-generated RSA pool. Pairs are immutable
// after startup and shared read-only across connections.
type KeyPair struct {
	Private *rsa.PrivateKey
	// Modulus is the public modulus as big-endian bytes, sent to the
	// client in the init packet.
	Modulus []byte
}

// KeyCache holds a fixed pool of RSA key pairs generated once at startup,
// avoiding per-connection key generation cost. Symmetric session keys are
// never pooled.
type KeyCache struct {
	pairs []*KeyPair
}

func NewKeyCache(poolSize int) (*KeyCache, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("keypair pool size must be positive, got %d", poolSize)
	}
	pairs := make([]*KeyPair, poolSize)
	for i := range pairs {
		priv, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
		if err != nil {
			return nil, fmt.Errorf("generate rsa keypair %d: %w", i, err)
		}
		pairs[i] = &KeyPair{
			Private: priv,
			Modulus: priv.N.Bytes(),
		}
	}
	return &KeyCache{pairs: pairs}, nil
}

// KeyPair returns a pool slot chosen uniformly at random.
func (c *KeyCache) KeyPair() *KeyPair {
	return c.pairs[mrand.Intn(len(c.pairs))]
}

// PoolSize returns the number of cached pairs.
func (c *KeyCache) PoolSize() int {
	return len(c.pairs)
}

// SessionBlowfishKey generates a fresh symmetric key for one connection's
// frame cipher.
func (c *KeyCache) SessionBlowfishKey() ([]byte, error) {
	key := make([]byte, blowfishKeyLen)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate blowfish key: %w", err)
	}
	return key, nil
}

// NewSessionKey generates a fresh random 4-tuple session key.
func NewSessionKey() SessionKey {
	var buf [sessionKeyWords * 4]byte
	// crypto/rand never fails on supported platforms; fall back to zero
	// words would bind a guessable key, so panic instead.
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("session key entropy unavailable: %v", err))
	}
	return SessionKey{
		LoginOK1: int32(binary.LittleEndian.Uint32(buf[0:4])),
		LoginOK2: int32(binary.LittleEndian.Uint32(buf[4:8])),
		PlayOK1:  int32(binary.LittleEndian.Uint32(buf[8:12])),
		PlayOK2:  int32(binary.LittleEndian.Uint32(buf[12:16])),
	}
}
