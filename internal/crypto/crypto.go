// internal/crypto/crypto.go (argon2id + AES-GCM)
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/hkdf"
)

const (
	idLength  = 32
	saltSize  = 16
	nonceSize = 12 // GCM standard nonce size
	keySize   = 32 // AES-256
)

var (
	keysInfo    = []byte("secret-share/keys/v1")
	verifyLabel = []byte("secret-share/verify/v1")
)

// ErrAuthentication is returned when the passphrase does not match the
// sealed message. It is the only signal of a wrong passphrase.
var ErrAuthentication = errors.New("authentication failed")

// Params are the argon2id cost parameters.
type Params struct {
	Time    uint32 `yaml:"time"`
	Memory  uint32 `yaml:"memory"` // KiB
	Threads uint8  `yaml:"threads"`
}

func DefaultParams() Params {
	return Params{
		Time:    1,
		Memory:  64 * 1024,
		Threads: 4,
	}
}

// Sealed is everything needed to recover a message given the passphrase.
// None of its fields are secret.
type Sealed struct {
	Ciphertext []byte
	Salt       []byte
	Nonce      []byte
	Verifier   []byte
}

type Engine struct {
	params Params
	random io.Reader
}

func New(params Params) *Engine {
	return &Engine{
		params: params,
		random: rand.Reader,
	}
}

// GenerateID returns a URL-safe token with 256 bits of entropy.
func GenerateID() (string, error) {
	b := make([]byte, idLength)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("id generation failed: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Seal encrypts plaintext under a key derived from passphrase and a fresh salt.
func (e *Engine) Seal(passphrase, plaintext []byte) (*Sealed, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(e.random, salt); err != nil {
		return nil, fmt.Errorf("salt generation failed: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(e.random, nonce); err != nil {
		return nil, fmt.Errorf("nonce generation failed: %w", err)
	}

	encKey, verKey, err := e.deriveKeys(passphrase, salt)
	if err != nil {
		return nil, err
	}
	defer zero(encKey)
	defer zero(verKey)

	gcm, err := newGCM(encKey)
	if err != nil {
		return nil, err
	}

	return &Sealed{
		Ciphertext: gcm.Seal(nil, nonce, plaintext, salt),
		Salt:       salt,
		Nonce:      nonce,
		Verifier:   verifier(verKey),
	}, nil
}

// Open returns the plaintext, or ErrAuthentication if passphrase is wrong.
func (e *Engine) Open(passphrase []byte, s *Sealed) ([]byte, error) {
	if len(s.Nonce) != nonceSize {
		return nil, fmt.Errorf("malformed nonce: %d bytes", len(s.Nonce))
	}

	encKey, verKey, err := e.deriveKeys(passphrase, s.Salt)
	if err != nil {
		return nil, err
	}
	defer zero(encKey)
	defer zero(verKey)

	if !hmac.Equal(verifier(verKey), s.Verifier) {
		return nil, ErrAuthentication
	}

	gcm, err := newGCM(encKey)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, s.Nonce, s.Ciphertext, s.Salt)
	if err != nil {
		return nil, ErrAuthentication
	}

	return plaintext, nil
}

// Verify reports whether passphrase matches the sealed verifier without
// decrypting anything.
func (e *Engine) Verify(passphrase []byte, s *Sealed) bool {
	encKey, verKey, err := e.deriveKeys(passphrase, s.Salt)
	if err != nil {
		return false
	}
	defer zero(encKey)
	defer zero(verKey)

	return hmac.Equal(verifier(verKey), s.Verifier)
}

// Waste performs a key derivation whose result is thrown away, so that a
// lookup miss costs about as much as a passphrase check.
func (e *Engine) Waste(passphrase []byte) {
	salt := make([]byte, saltSize)
	encKey, verKey, err := e.deriveKeys(passphrase, salt)
	if err != nil {
		return
	}
	zero(encKey)
	zero(verKey)
}

func (e *Engine) deriveKeys(passphrase, salt []byte) (encKey, verKey []byte, err error) {
	master := argon2.IDKey(passphrase, salt, e.params.Time, e.params.Memory, e.params.Threads, keySize)
	defer zero(master)

	keys := make([]byte, 2*keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, salt, keysInfo), keys); err != nil {
		return nil, nil, fmt.Errorf("key expansion failed: %w", err)
	}

	return keys[:keySize], keys[keySize:], nil
}

func verifier(key []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(verifyLabel)
	return mac.Sum(nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher creation failed: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("GCM creation failed: %w", err)
	}

	return gcm, nil
}

func zero(b []byte) {
	clear(b)
}
