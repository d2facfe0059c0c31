package store

import (
	"context"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"secret.share/internal/crypto"
	"secret.share/internal/models"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

const shardCount = 64

// entry guards a single secret. Lock order is entry, then shard.
type entry struct {
	mu     sync.Mutex
	secret *models.Secret
	gone   bool
}

type shard struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

// MemoryStore keeps secrets for the lifetime of the process. The id space
// is split into shards so that unrelated ids rarely share a lock, and
// verification only ever holds the lock of the id being opened.
type MemoryStore struct {
	shards [shardCount]*shard
	newID  func() (string, error)
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{newID: crypto.GenerateID}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	return s
}

func (s *MemoryStore) shardFor(id string) *shard {
	return s.shards[xxhash.Sum64String(id)%shardCount]
}

func (s *MemoryStore) Put(ctx context.Context, secret *models.Secret) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !secret.ExpiresAt.After(secret.CreatedAt) {
		return "", ErrExpired
	}

	for range maxIDAttempts {
		id, err := s.newID()
		if err != nil {
			return "", err
		}

		sh := s.shardFor(id)
		sh.mu.Lock()
		if _, taken := sh.entries[id]; taken {
			sh.mu.Unlock()
			continue
		}
		stored := *secret
		stored.ID = id
		sh.entries[id] = &entry{secret: &stored}
		sh.mu.Unlock()

		secret.ID = id
		return id, nil
	}

	return "", ErrIDExhausted
}

func (s *MemoryStore) TakeIfLive(ctx context.Context, id string, now time.Time) (*models.Secret, error) {
	return s.TakeIfVerified(ctx, id, now, alwaysValid)
}

func (s *MemoryStore) TakeIfVerified(ctx context.Context, id string, now time.Time, verify VerifyFunc) (*models.Secret, error) {
	sh := s.shardFor(id)

	sh.mu.RLock()
	e, ok := sh.entries[id]
	sh.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.gone {
		return nil, ErrNotFound
	}

	if !e.secret.LiveAt(now) {
		s.remove(sh, id, e)
		return nil, ErrExpired
	}

	if !verify(e.secret) {
		e.secret.Attempts--
		if e.secret.Attempts <= 0 {
			s.remove(sh, id, e)
		}
		return nil, ErrAuthFailed
	}

	s.remove(sh, id, e)
	taken := *e.secret
	return &taken, nil
}

// remove must be called with e.mu held.
func (s *MemoryStore) remove(sh *shard, id string, e *entry) {
	e.gone = true

	sh.mu.Lock()
	if sh.entries[id] == e {
		delete(sh.entries, id)
	}
	sh.mu.Unlock()
}

func (s *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	removed := 0

	for _, sh := range s.shards {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		sh.mu.RLock()
		candidates := make(map[string]*entry, len(sh.entries))
		for id, e := range sh.entries {
			candidates[id] = e
		}
		sh.mu.RUnlock()

		for id, e := range candidates {
			e.mu.Lock()
			if !e.gone && !e.secret.LiveAt(now) {
				s.remove(sh, id, e)
				removed++
			}
			e.mu.Unlock()
		}
	}

	return removed, nil
}

// Len reports the number of stored secrets, expired ones included.
func (s *MemoryStore) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

func (s *MemoryStore) Close() error {
	for _, sh := range s.shards {
		sh.mu.Lock()
		clear(sh.entries)
		sh.mu.Unlock()
	}
	return nil
}
