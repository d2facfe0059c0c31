package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"secret.share/internal/models"
)

var (
	ErrNotFound    = errors.New("secret not found")
	ErrExpired     = fmt.Errorf("%w: secret has expired", ErrNotFound)
	ErrAuthFailed  = errors.New("secret verification failed")
	ErrIDExhausted = errors.New("could not allocate a free secret id")
)

// maxIDAttempts bounds id regeneration on collision in Put.
const maxIDAttempts = 5

// VerifyFunc decides, inside a repository's atomic section, whether the
// caller may consume the secret.
type VerifyFunc func(secret *models.Secret) bool

// Store is the keyed repository of encrypted secrets. Every operation on a
// single id is atomic; operations on distinct ids do not serialize.
type Store interface {
	// Put assigns a fresh id to secret, stores it and returns the id.
	Put(ctx context.Context, secret *models.Secret) (string, error)
	// TakeIfLive removes and returns the secret if it exists and now is
	// before its expiry. Expired secrets are removed and reported as
	// ErrExpired.
	TakeIfLive(ctx context.Context, id string, now time.Time) (*models.Secret, error)
	// TakeIfVerified behaves like TakeIfLive but consumes the secret only
	// when verify returns true. Otherwise one attempt is spent, the secret
	// is removed once none remain, and ErrAuthFailed is returned.
	TakeIfVerified(ctx context.Context, id string, now time.Time, verify VerifyFunc) (*models.Secret, error)
	// Sweep removes every secret expired at now.
	Sweep(ctx context.Context, now time.Time) (int, error)
	Close() error
}

func alwaysValid(*models.Secret) bool { return true }
