// redis.go
package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"secret.share/internal/crypto"
	"secret.share/internal/models"
)

var _ Store = (*RedisStore)(nil)

type RedisStore struct {
	client *redis.Client
	newID  func() (string, error)
}

func NewRedisStore(options *redis.Options) (*RedisStore, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisStore{client: client, newID: crypto.GenerateID}, nil
}

func (r *RedisStore) Put(ctx context.Context, secret *models.Secret) (string, error) {
	// Redis only needs the TTL to reclaim memory; liveness is decided by
	// ExpiresAt against the caller's clock.
	ttl := secret.ExpiresAt.Sub(secret.CreatedAt)
	if ttl <= 0 {
		return "", ErrExpired
	}

	for range maxIDAttempts {
		id, err := r.newID()
		if err != nil {
			return "", err
		}

		stored := *secret
		stored.ID = id
		data, err := encode(&stored)
		if err != nil {
			return "", err
		}

		ok, err := r.client.SetNX(ctx, secretKey(id), data, ttl).Result()
		if err != nil {
			return "", err
		}
		if ok {
			secret.ID = id
			return id, nil
		}
	}

	return "", ErrIDExhausted
}

func (r *RedisStore) TakeIfLive(ctx context.Context, id string, now time.Time) (*models.Secret, error) {
	data, err := r.client.GetDel(ctx, secretKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	secret, err := decode(data)
	if err != nil {
		return nil, err
	}

	if !secret.LiveAt(now) {
		return nil, ErrExpired
	}

	return secret, nil
}

func (r *RedisStore) TakeIfVerified(ctx context.Context, id string, now time.Time, verify VerifyFunc) (*models.Secret, error) {
	key := secretKey(id)
	var taken *models.Secret

	// The sealed fields never change under an id, so one verification
	// serves every retry of the transaction.
	var verified *bool
	check := func(secret *models.Secret) bool {
		if verified == nil {
			ok := verify(secret)
			verified = &ok
		}
		return *verified
	}

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return ErrNotFound
			}
			return err
		}

		secret, err := decode(data)
		if err != nil {
			return err
		}

		if !secret.LiveAt(now) {
			if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			}); err != nil {
				return err
			}
			return ErrExpired
		}

		if check(secret) {
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			taken = secret
			return nil
		}

		secret.Attempts--
		newData, err := encode(secret)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if secret.Attempts <= 0 {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, newData, redis.KeepTTL)
			}
			return nil
		})
		if err != nil {
			return err
		}
		return ErrAuthFailed
	}

	// A conflict means another opener changed the record first. Retry until
	// the outcome is settled so contention never surfaces as an error.
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		err := r.client.Watch(ctx, txf, key)
		switch {
		case err == nil:
			return taken, nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return nil, err
		}
	}
}

// Sweep is a no-op: keys carry a Redis TTL matching their lifetime.
func (r *RedisStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	return 0, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Helpers

func secretKey(id string) string {
	return "secret:" + id
}

func encode(secret *models.Secret) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(secret); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*models.Secret, error) {
	var secret models.Secret
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&secret); err != nil {
		return nil, err
	}
	return &secret, nil
}
