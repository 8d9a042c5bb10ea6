package httpapi

import (
	"context"
	"sync"
	"time"

	"github.com/riskibarqy/judging-portal/internal/platform/logging"
)

// LoginRedirect is a pending request to show the login view.
type LoginRedirect struct {
	Path   string    `json:"path"`
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

// LoginNavigator records redirects to the login view so the next session
// query can report them to the client.
type LoginNavigator struct {
	mu        sync.Mutex
	loginPath string
	pending   *LoginRedirect
	logger    *logging.Logger
	now       func() time.Time
}

func NewLoginNavigator(loginPath string, logger *logging.Logger) *LoginNavigator {
	if logger == nil {
		logger = logging.Default()
	}
	if loginPath == "" {
		loginPath = "/login"
	}
	return &LoginNavigator{loginPath: loginPath, logger: logger, now: time.Now}
}

func (n *LoginNavigator) RedirectToLogin(ctx context.Context, reason string) {
	n.mu.Lock()
	n.pending = &LoginRedirect{Path: n.loginPath, Reason: reason, At: n.now()}
	n.mu.Unlock()

	n.logger.InfoContext(ctx, "redirecting to login", "reason", reason, "path", n.loginPath)
}

func (n *LoginNavigator) Pending() (LoginRedirect, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pending == nil {
		return LoginRedirect{}, false
	}
	return *n.pending, true
}

// Clear forgets the pending redirect once the user has signed in again.
func (n *LoginNavigator) Clear() {
	n.mu.Lock()
	n.pending = nil
	n.mu.Unlock()
}

func (n *LoginNavigator) LoginPath() string {
	return n.loginPath
}
