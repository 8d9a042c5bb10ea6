package memory

import (
	"context"
	"sync"

	"github.com/riskibarqy/judging-portal/internal/domain/session"
)

// SessionRepository keeps the token pair for the lifetime of the process.
type SessionRepository struct {
	mu   sync.RWMutex
	pair *session.TokenPair
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{}
}

func (r *SessionRepository) Load(_ context.Context) (session.TokenPair, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.pair == nil {
		return session.TokenPair{}, false, nil
	}

	return *r.pair, true, nil
}

func (r *SessionRepository) Save(_ context.Context, pair session.TokenPair) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pair = &pair
	return nil
}

func (r *SessionRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pair = nil
	return nil
}
