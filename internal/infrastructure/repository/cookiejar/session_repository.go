package cookiejar

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/riskibarqy/judging-portal/internal/domain/session"
)

const (
	CookieAccess  = "access"
	CookieRefresh = "refresh"
)

// SessionRepository persists the token pair as two Set-Cookie lines in a
// file, one per token. Both cookies are Secure and HttpOnly.
type SessionRepository struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

func NewSessionRepository(fs afero.Fs, path string) *SessionRepository {
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &SessionRepository{fs: fs, path: path}
}

func (r *SessionRepository) Load(_ context.Context) (session.TokenPair, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	raw, err := afero.ReadFile(r.fs, r.path)
	if errors.Is(err, os.ErrNotExist) {
		return session.TokenPair{}, false, nil
	}
	if err != nil {
		return session.TokenPair{}, false, fmt.Errorf("read cookie file: %w", err)
	}

	var pair session.TokenPair
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		cookie, err := http.ParseSetCookie(line)
		if err != nil {
			return session.TokenPair{}, false, fmt.Errorf("parse cookie file: %w", err)
		}
		switch cookie.Name {
		case CookieAccess:
			pair.Access = cookie.Value
		case CookieRefresh:
			pair.Refresh = cookie.Value
		}
	}
	if err := scanner.Err(); err != nil {
		return session.TokenPair{}, false, fmt.Errorf("scan cookie file: %w", err)
	}

	if pair.Validate() != nil {
		return session.TokenPair{}, false, nil
	}
	return pair, true, nil
}

func (r *SessionRepository) Save(_ context.Context, pair session.TokenPair) error {
	if err := pair.Validate(); err != nil {
		return fmt.Errorf("save cookie file: %w", err)
	}

	var buf bytes.Buffer
	for _, c := range Cookies(pair) {
		// String drops bytes a cookie cannot carry, so refuse them up front.
		if err := c.Valid(); err != nil {
			return fmt.Errorf("save cookie file: %s token: %w", c.Name, err)
		}
		buf.WriteString(c.String())
		buf.WriteByte('\n')
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if dir := filepath.Dir(r.path); dir != "." {
		if err := r.fs.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create cookie dir: %w", err)
		}
	}

	tmp := r.path + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := r.fs.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace cookie file: %w", err)
	}

	return nil
}

func (r *SessionRepository) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.fs.Remove(r.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cookie file: %w", err)
	}
	return nil
}

// Cookies renders the pair the way the backend expects to receive it.
func Cookies(pair session.TokenPair) []*http.Cookie {
	return []*http.Cookie{
		newCookie(CookieAccess, pair.Access),
		newCookie(CookieRefresh, pair.Refresh),
	}
}

func newCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	}
}
