// Package auth — sealing GitHub tokens at rest.
//
// WHY SEAL AND NOT HASH?
// A password only ever needs to be compared, so it can be hashed. A GitHub
// token has to be sent back to GitHub on every call, so it must be
// recoverable. We encrypt it instead, with NaCl secretbox
// (XSalsa20 + Poly1305): the box is both confidential and authenticated, so
// a modified row fails to open instead of yielding a garbage token.
//
// KEY DERIVATION:
// The 32-byte box key is derived from the session secret with HKDF-SHA256
// and a fixed info string, so one configured secret serves both the JWT
// signer and the sealer without the two ever sharing key material.
//
// Sealed format:
//
//	nonce (24 bytes) || secretbox(token)
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	nonceSize = 24
	sealInfo  = "ghdash token seal"
)

// ErrUnseal means a sealed value was truncated, tampered with, or sealed
// under a different secret.
var ErrUnseal = errors.New("auth: cannot open sealed token")

// Sealer encrypts tokens before they are stored.
type Sealer struct {
	key [32]byte
}

// NewSealer derives the sealing key from secret (at least 16 characters).
func NewSealer(secret string) (*Sealer, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: session secret must be at least 16 characters")
	}

	s := &Sealer{}
	kdf := hkdf.New(sha256.New, []byte(secret), nil, []byte(sealInfo))
	if _, err := io.ReadFull(kdf, s.key[:]); err != nil {
		return nil, fmt.Errorf("auth: deriving seal key: %w", err)
	}
	return s, nil
}

// Seal encrypts plaintext under a fresh random nonce.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("auth: generating nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.key), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceSize+secretbox.Overhead {
		return nil, ErrUnseal
	}
	var nonce [nonceSize]byte
	copy(nonce[:], sealed[:nonceSize])

	plaintext, ok := secretbox.Open(nil, sealed[nonceSize:], &nonce, &s.key)
	if !ok {
		return nil, ErrUnseal
	}
	return plaintext, nil
}
