package security

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var (
	// ErrEmptyPassphrase is returned by NewSealer for an empty passphrase.
	ErrEmptyPassphrase = errors.New("encryption passphrase is empty")
	// ErrSealedData is returned when sealed data is malformed or fails authentication
	// (wrong passphrase or tampering).
	ErrSealedData = errors.New("sealed data is invalid or the passphrase is wrong")
)

var sealMagic = []byte("mss1")

const (
	saltLen      = 16
	argonTime    = 2
	argonMemory  = 19 * 1024
	argonThreads = 1
)

// Sealer encrypts stored session snapshots with a key derived from a passphrase
// (argon2id, per-message salt) using XChaCha20-Poly1305.
type Sealer struct {
	passphrase []byte
}

// NewSealer returns a Sealer for passphrase.
func NewSealer(passphrase []byte) (*Sealer, error) {
	if len(passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}
	p := make([]byte, len(passphrase))
	copy(p, passphrase)
	return &Sealer{passphrase: p}, nil
}

// Seal returns magic || salt || nonce || ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("seal: salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(s.key(salt))
	if err != nil {
		return nil, fmt.Errorf("seal: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("seal: nonce: %w", err)
	}
	out := make([]byte, 0, len(sealMagic)+saltLen+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, sealMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, sealMagic), nil
}

// Open reverses Seal. Any failure is reported as ErrSealedData.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	if !bytes.HasPrefix(sealed, sealMagic) {
		return nil, ErrSealedData
	}
	rest := sealed[len(sealMagic):]
	if len(rest) < saltLen+chacha20poly1305.NonceSizeX {
		return nil, ErrSealedData
	}
	salt, rest := rest[:saltLen], rest[saltLen:]
	nonce, ciphertext := rest[:chacha20poly1305.NonceSizeX], rest[chacha20poly1305.NonceSizeX:]
	aead, err := chacha20poly1305.NewX(s.key(salt))
	if err != nil {
		return nil, ErrSealedData
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, sealMagic)
	if err != nil {
		return nil, ErrSealedData
	}
	return plaintext, nil
}

func (s *Sealer) key(salt []byte) []byte {
	return argon2.IDKey(s.passphrase, salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}
