package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"

	"secret.share/internal/clock"
	"secret.share/internal/crypto"
	"secret.share/internal/models"
	"secret.share/internal/policy"
	"secret.share/internal/store"
)

// ErrGenericFailure is the only error Open reports for a secret that cannot
// be disclosed, whatever the cause.
var ErrGenericFailure = errors.New("Message not found or invalid passphrase") //nolint:staticcheck // shown to users verbatim

// Reason records why an Open failed. It is for logs only and never leaves
// the engine.
type Reason int

const (
	ReasonNotFound Reason = iota + 1
	ReasonExpired
	ReasonAuthFailure
)

func (r Reason) String() string {
	switch r {
	case ReasonNotFound:
		return "not found"
	case ReasonExpired:
		return "expired"
	case ReasonAuthFailure:
		return "invalid passphrase"
	default:
		return "unknown"
	}
}

type Engine struct {
	store    store.Store
	clock    clock.Clock
	crypto   *crypto.Engine
	attempts int
}

type Option func(*Engine)

// WithCryptoParams sets the key derivation cost.
func WithCryptoParams(p crypto.Params) Option {
	return func(e *Engine) {
		e.crypto = crypto.New(p)
	}
}

// WithAttempts sets how many wrong passphrases a secret survives. One, the
// default, burns the secret on the first wrong passphrase.
func WithAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.attempts = n
		}
	}
}

func NewEngine(st store.Store, clk clock.Clock, opts ...Option) *Engine {
	e := &Engine{
		store:    st,
		clock:    clk,
		crypto:   crypto.New(crypto.DefaultParams()),
		attempts: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Share encrypts message under passphrase and stores it for ttl. It returns
// the id of the new secret, or a *policy.Violation when the input is
// rejected.
func (e *Engine) Share(ctx context.Context, message, passphrase []byte, ttl time.Duration) (string, error) {
	log := clog.FromContext(ctx)

	if err := policy.Validate(message, passphrase, ttl); err != nil {
		log.Debugf("share rejected: %v", err)
		return "", err
	}

	sealed, err := e.crypto.Seal(passphrase, message)
	if err != nil {
		log.Errorf("failed to encrypt message: %v", err)
		return "", fmt.Errorf("encrypt message: %w", err)
	}

	now := e.clock.Now()
	secret := &models.Secret{
		Ciphertext: sealed.Ciphertext,
		Salt:       sealed.Salt,
		Nonce:      sealed.Nonce,
		Verifier:   sealed.Verifier,
		Attempts:   e.attempts,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}

	id, err := e.store.Put(ctx, secret)
	if err != nil {
		log.Errorf("failed to save secret: %v", err)
		return "", fmt.Errorf("save secret: %w", err)
	}

	log.With("secret", id).Infof("secret shared, expires at %s", secret.ExpiresAt.Format(time.RFC3339))

	return id, nil
}

// Open discloses and consumes the secret. Unknown, expired, consumed and
// wrong-passphrase cases all return ErrGenericFailure.
func (e *Engine) Open(ctx context.Context, id string, passphrase []byte) ([]byte, error) {
	log := clog.FromContext(ctx).With("secret", id)

	verify := func(secret *models.Secret) bool {
		return e.crypto.Verify(passphrase, sealedOf(secret))
	}

	secret, err := e.store.TakeIfVerified(ctx, id, e.clock.Now(), verify)
	if err == nil {
		plaintext, err := e.crypto.Open(passphrase, sealedOf(secret))
		switch {
		case err == nil:
			log.Info("secret opened")
			return plaintext, nil
		case errors.Is(err, crypto.ErrAuthentication):
			// The verifier matched but the ciphertext did not; the record
			// is already consumed.
			log.Errorf("secret failed authentication after verification")
			return nil, ErrGenericFailure
		default:
			log.Errorf("failed to decrypt secret: %v", err)
			return nil, fmt.Errorf("decrypt secret: %w", err)
		}
	}

	var reason Reason
	switch {
	case errors.Is(err, store.ErrExpired):
		reason = ReasonExpired
	case errors.Is(err, store.ErrNotFound):
		reason = ReasonNotFound
	case errors.Is(err, store.ErrAuthFailed):
		reason = ReasonAuthFailure
	default:
		log.Errorf("failed to load secret: %v", err)
		return nil, fmt.Errorf("load secret: %w", err)
	}

	// No passphrase check ran, pay for one anyway so a miss is not
	// distinguishable by latency.
	if reason != ReasonAuthFailure {
		e.crypto.Waste(passphrase)
	}

	log.Debugf("open failed: %s", reason)
	return nil, ErrGenericFailure
}

func sealedOf(secret *models.Secret) *crypto.Sealed {
	return &crypto.Sealed{
		Ciphertext: secret.Ciphertext,
		Salt:       secret.Salt,
		Nonce:      secret.Nonce,
		Verifier:   secret.Verifier,
	}
}
