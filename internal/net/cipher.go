package net

import (
	"fmt"

	"golang.org/x/crypto/blowfish"
)

// Cipher encrypts frame payloads with Blowfish in 8-byte blocks. Every
// session gets a fresh key from the issuer; the init packet itself travels
// in plaintext before the cipher is armed. Payloads are always padded to a
// multiple of the block size by the packet writer.
type Cipher struct {
	block *blowfish.Cipher
}

func NewCipher(key []byte) (*Cipher, error) {
	block, err := blowfish.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init blowfish: %w", err)
	}
	return &Cipher{block: block}, nil
}

// Encrypt encrypts data in place. len(data) must be a multiple of 8; a
// trailing partial block is left as-is.
func (c *Cipher) Encrypt(data []byte) []byte {
	for i := 0; i+blowfish.BlockSize <= len(data); i += blowfish.BlockSize {
		c.block.Encrypt(data[i:i+blowfish.BlockSize], data[i:i+blowfish.BlockSize])
	}
	return data
}

// Decrypt decrypts data in place, mirroring Encrypt.
func (c *Cipher) Decrypt(data []byte) []byte {
	for i := 0; i+blowfish.BlockSize <= len(data); i += blowfish.BlockSize {
		c.block.Decrypt(data[i:i+blowfish.BlockSize], data[i:i+blowfish.BlockSize])
	}
	return data
}
