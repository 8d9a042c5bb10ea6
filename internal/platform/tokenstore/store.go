package tokenstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/riskibarqy/judging-portal/internal/domain/session"
)

// Store holds the live token pair in memory and writes every change through
// to the configured repository. Memory is authoritative: a failed write still
// updates the in-memory pair so logout is never blocked by persistence.
type Store struct {
	mu   sync.RWMutex
	pair *session.TokenPair
	repo session.Repository
}

// Open seeds the store from repo. A repository holding only one of the two
// tokens yields an empty store.
func Open(ctx context.Context, repo session.Repository) (*Store, error) {
	s := &Store{repo: repo}
	if repo == nil {
		return s, nil
	}

	pair, ok, err := repo.Load(ctx)
	if err != nil {
		return s, fmt.Errorf("load persisted session: %w", err)
	}
	if ok && pair.Validate() == nil {
		s.pair = &pair
	}

	return s, nil
}

func (s *Store) Get() (session.TokenPair, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pair == nil {
		return session.TokenPair{}, false
	}
	return *s.pair, true
}

// Set replaces the pair; nil clears it.
func (s *Store) Set(ctx context.Context, pair *session.TokenPair) error {
	s.mu.Lock()
	if pair == nil {
		s.pair = nil
	} else {
		cp := *pair
		s.pair = &cp
	}
	s.mu.Unlock()

	if s.repo == nil {
		return nil
	}
	if pair == nil {
		if err := s.repo.Clear(ctx); err != nil {
			return fmt.Errorf("clear persisted session: %w", err)
		}
		return nil
	}
	if err := s.repo.Save(ctx, *pair); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}
