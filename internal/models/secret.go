package models

import "time"

// Secret is an encrypted message at rest. It never holds the plaintext or
// the passphrase.
type Secret struct {
	ID         string    `json:"id"`
	Ciphertext []byte    `json:"-"`
	Salt       []byte    `json:"-"`
	Nonce      []byte    `json:"-"`
	Verifier   []byte    `json:"-"`
	Attempts   int       `json:"attempts"` // wrong passphrases left before the secret burns
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// LiveAt reports whether the secret can still be opened at now.
func (s *Secret) LiveAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
