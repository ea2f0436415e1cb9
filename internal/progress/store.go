package progress

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/kalambet/careerpath/internal/roadmap"
)

// Store owns the in-memory completion map of every key it has seen and
// writes each change through to a CompletionRepository.
//
// Persistence is best-effort. Malformed data loads as an empty map that is
// kept and overwritten by the next change. A failed read also yields an empty
// map, but nothing is cached or written for that key until a read succeeds,
// so data still held by the repository is never clobbered. Failed writes are
// logged while the in-memory map keeps the change.
// Operations on the same key are serialized by a per-key mutex, so concurrent
// toggles never lose an update; different keys never contend.
type Store struct {
	repo   CompletionRepository
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
	maps  map[string]CompletionMap
}

// NewStore creates a Store backed by repo.
func NewStore(repo CompletionRepository) *Store {
	return &Store{
		repo:   repo,
		logger: slog.Default(),
		locks:  make(map[string]*sync.Mutex),
		maps:   make(map[string]CompletionMap),
	}
}

// WithLogger replaces the logger used for persistence warnings.
func (s *Store) WithLogger(l *slog.Logger) *Store {
	s.logger = l
	return s
}

func (s *Store) keyLock(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// loadLocked returns the cached map for key, reading it from the repository
// on first access. ok is false when the repository could not be read; the
// returned empty map is then not cached. The caller must hold the key lock.
func (s *Store) loadLocked(ctx context.Context, key string) (m CompletionMap, ok bool) {
	s.mu.Lock()
	m, cached := s.maps[key]
	s.mu.Unlock()
	if cached {
		return m, true
	}

	m, err := s.repo.Load(ctx, key)
	switch {
	case errors.Is(err, ErrMalformed):
		s.logger.Warn("completion map malformed, starting empty", "key", key, "error", err)
		m = make(CompletionMap)
	case err != nil:
		s.logger.Warn("completion map unavailable", "key", key, "error", err)
		return make(CompletionMap), false
	}

	s.mu.Lock()
	s.maps[key] = m
	s.mu.Unlock()
	return m, true
}

func (s *Store) replaceLocked(key string, m CompletionMap) {
	s.mu.Lock()
	s.maps[key] = m
	s.mu.Unlock()
}

// Load returns a copy of the completion map for key.
func (s *Store) Load(ctx context.Context, key string) CompletionMap {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()
	m, _ := s.loadLocked(ctx, key)
	return m.Clone()
}

// Toggle flips the done flag of k, persists the full map and returns a copy
// of the updated map.
func (s *Store) Toggle(ctx context.Context, key string, k roadmap.SkillKey) CompletionMap {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	current, ok := s.loadLocked(ctx, key)
	next := current.Clone()
	next[k] = !next[k]
	if !ok {
		s.logger.Warn("completion change not saved, repository unreadable", "key", key)
		return next
	}
	s.replaceLocked(key, next)
	s.persist(ctx, key, next)
	return next.Clone()
}

// Mark sets the done flag of k explicitly. Unlike Toggle it is idempotent.
func (s *Store) Mark(ctx context.Context, key string, k roadmap.SkillKey, done bool) CompletionMap {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	current, ok := s.loadLocked(ctx, key)
	if current[k] == done {
		return current.Clone()
	}
	next := current.Clone()
	next[k] = done
	if !ok {
		s.logger.Warn("completion change not saved, repository unreadable", "key", key)
		return next
	}
	s.replaceLocked(key, next)
	s.persist(ctx, key, next)
	return next.Clone()
}

// Reset clears both the in-memory and the persisted map for key.
func (s *Store) Reset(ctx context.Context, key string) {
	l := s.keyLock(key)
	l.Lock()
	defer l.Unlock()

	s.replaceLocked(key, make(CompletionMap))
	if err := s.repo.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete persisted completion map", "key", key, "error", err)
	}
}

func (s *Store) persist(ctx context.Context, key string, m CompletionMap) {
	if err := s.repo.Save(ctx, key, m); err != nil {
		s.logger.Warn("failed to persist completion map", "key", key, "error", err)
	}
}
