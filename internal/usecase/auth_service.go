package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sourcegraph/conc"

	"github.com/riskibarqy/judging-portal/internal/domain/session"
	"github.com/riskibarqy/judging-portal/internal/platform/logging"
)

// TokenStore holds the live token pair.
type TokenStore interface {
	Get() (session.TokenPair, bool)
	Set(ctx context.Context, pair *session.TokenPair) error
}

// TokenIssuer covers the backend calls that need no bearer token.
type TokenIssuer interface {
	ObtainTokens(ctx context.Context, creds session.Credentials) (session.TokenPair, error)
	Logout(ctx context.Context, pair session.TokenPair) error
}

// Navigator sends the user to the login view.
type Navigator interface {
	RedirectToLogin(ctx context.Context, reason string)
}

// SessionListener runs after the session is installed or cleared.
type SessionListener func(ctx context.Context)

type AuthServiceConfig struct {
	LogoutNotifyTimeout time.Duration
}

// AuthService is the single writer of the session. Views read snapshots via
// State; the request executor reports refresh outcomes via ReplaceAccess and
// Expire.
type AuthService struct {
	mu    sync.Mutex
	stMu  sync.RWMutex
	state session.State

	store     TokenStore
	decoder   session.Decoder
	issuer    TokenIssuer
	navigator Navigator
	validate  *validator.Validate
	logger    *logging.Logger

	notifyTimeout time.Duration
	notifications conc.WaitGroup

	lsMu      sync.RWMutex
	listeners []SessionListener
}

func NewAuthService(
	store TokenStore,
	decoder session.Decoder,
	issuer TokenIssuer,
	navigator Navigator,
	validate *validator.Validate,
	logger *logging.Logger,
	cfg AuthServiceConfig,
) *AuthService {
	if logger == nil {
		logger = logging.Default()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.LogoutNotifyTimeout <= 0 {
		cfg.LogoutNotifyTimeout = 5 * time.Second
	}

	s := &AuthService{
		store:         store,
		decoder:       decoder,
		issuer:        issuer,
		navigator:     navigator,
		validate:      validate,
		logger:        logger,
		notifyTimeout: cfg.LogoutNotifyTimeout,
	}
	s.recompute()
	return s
}

// State returns the current session snapshot.
func (s *AuthService) State() session.State {
	s.stMu.RLock()
	defer s.stMu.RUnlock()

	out := s.state
	if out.Identity != nil {
		identity := *out.Identity
		out.Identity = &identity
	}
	return out
}

func (s *AuthService) Tokens() (session.TokenPair, bool) {
	return s.store.Get()
}

// OnSessionChange registers listeners that run after every login, logout and
// expiry, so per-user view state never outlives the session it was built for.
// Access token refreshes do not trigger them.
func (s *AuthService) OnSessionChange(listeners ...SessionListener) {
	s.lsMu.Lock()
	defer s.lsMu.Unlock()
	s.listeners = append(s.listeners, listeners...)
}

// SignIn exchanges credentials for a token pair and logs in with it.
func (s *AuthService) SignIn(ctx context.Context, creds session.Credentials) (session.State, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AuthService.SignIn")
	defer span.End()

	creds.Username = strings.TrimSpace(creds.Username)
	if err := s.validate.StructCtx(ctx, creds); err != nil {
		return s.State(), fmt.Errorf("%w: username and password are required", ErrInvalidInput)
	}

	pair, err := s.issuer.ObtainTokens(ctx, creds)
	if err != nil {
		s.logger.WarnContext(ctx, "sign in failed", "username", creds.Username, "error", err)
		return s.State(), fmt.Errorf("obtain tokens: %w", err)
	}

	state := s.Login(ctx, pair)
	if !state.LoggedIn {
		return state, fmt.Errorf("%w: issued access token could not be decoded", ErrUnauthorized)
	}
	s.logger.InfoContext(ctx, "signed in", "username", state.Identity.Username, "judge", state.Identity.IsJudge, "player", state.Identity.IsPlayer)
	return state, nil
}

// Login installs pair as the live session. The session counts as logged in
// only when the access token decodes.
func (s *AuthService) Login(ctx context.Context, pair session.TokenPair) session.State {
	s.mu.Lock()
	if err := s.store.Set(ctx, &pair); err != nil {
		s.logger.WarnContext(ctx, "persist session failed", "error", err)
	}
	s.recompute()
	state := s.State()
	s.mu.Unlock()

	s.sessionChanged(ctx)
	return state
}

// Logout notifies the backend in the background and clears the session
// without waiting for the notification.
func (s *AuthService) Logout(ctx context.Context) {
	s.mu.Lock()
	pair, ok := s.store.Get()
	if ok && s.issuer != nil {
		notifyCtx := context.WithoutCancel(ctx)
		s.notifications.Go(func() {
			s.notifyLogout(notifyCtx, pair)
		})
	}
	s.clearLocked(ctx)
	s.mu.Unlock()

	s.sessionChanged(ctx)
	s.redirect(ctx, "logout")
}

// Expire ends the session without notifying the backend when it still holds
// refresh. The executor calls it when that refresh token is rejected; a
// session installed by a later login is left alone and Expire reports false.
func (s *AuthService) Expire(ctx context.Context, refresh, reason string) bool {
	s.mu.Lock()
	pair, ok := s.store.Get()
	if !ok || pair.Refresh != refresh {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "ignoring expiry of a replaced session", "reason", reason)
		return false
	}
	s.clearLocked(ctx)
	s.mu.Unlock()

	s.logger.WarnContext(ctx, "session expired", "reason", reason)
	s.sessionChanged(ctx)
	s.redirect(ctx, reason)
	return true
}

// ReplaceAccess swaps in a refreshed access token and keeps the refresh token.
// The token is dropped when the session no longer holds refresh, since it
// was minted for a session that has since been replaced.
func (s *AuthService) ReplaceAccess(ctx context.Context, refresh, access string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	pair, ok := s.store.Get()
	if !ok {
		return ErrNotLoggedIn
	}
	if pair.Refresh != refresh {
		return ErrSessionReplaced
	}
	next := pair.WithAccess(access)
	if err := s.store.Set(ctx, &next); err != nil {
		s.logger.WarnContext(ctx, "persist refreshed session failed", "error", err)
	}
	s.recompute()
	return nil
}

// RequireRole gates a view on the logged-in identity.
func (s *AuthService) RequireRole(role session.Role) (session.Identity, error) {
	state := s.State()
	if !state.LoggedIn || state.Identity == nil {
		return session.Identity{}, ErrNotLoggedIn
	}
	if !state.Identity.HasRole(role) {
		return *state.Identity, fmt.Errorf("%w: %s role required", ErrForbidden, role)
	}
	return *state.Identity, nil
}

// Wait blocks until pending logout notifications finish.
func (s *AuthService) Wait() {
	if recovered := s.notifications.WaitAndRecover(); recovered != nil {
		s.logger.Error("logout notification panicked", "panic", recovered.String())
	}
}

func (s *AuthService) notifyLogout(ctx context.Context, pair session.TokenPair) {
	ctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()

	if err := s.issuer.Logout(ctx, pair); err != nil {
		s.logger.WarnContext(ctx, "server logout notification failed", "error", err)
	}
}

func (s *AuthService) sessionChanged(ctx context.Context) {
	s.lsMu.RLock()
	listeners := append([]SessionListener(nil), s.listeners...)
	s.lsMu.RUnlock()

	for _, listener := range listeners {
		listener(ctx)
	}
}

func (s *AuthService) clearLocked(ctx context.Context) {
	if err := s.store.Set(ctx, nil); err != nil {
		s.logger.WarnContext(ctx, "clear persisted session failed", "error", err)
	}
	s.recompute()
}

func (s *AuthService) recompute() {
	next := session.State{}
	if pair, ok := s.store.Get(); ok && s.decoder != nil {
		identity, err := s.decoder.Decode(pair.Access)
		if err != nil {
			s.logger.Warn("access token could not be decoded", "error", err)
		} else {
			next.LoggedIn = true
			next.Identity = &identity
		}
	}

	s.stMu.Lock()
	s.state = next
	s.stMu.Unlock()
}

func (s *AuthService) redirect(ctx context.Context, reason string) {
	if s.navigator != nil {
		s.navigator.RedirectToLogin(ctx, reason)
	}
}
