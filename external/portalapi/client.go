package portalapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/riskibarqy/judging-portal/internal/domain/session"
	"github.com/riskibarqy/judging-portal/internal/infrastructure/repository/cookiejar"
	"github.com/riskibarqy/judging-portal/internal/platform/id"
	"github.com/riskibarqy/judging-portal/internal/platform/logging"
	"github.com/riskibarqy/judging-portal/internal/platform/resilience"
	"github.com/riskibarqy/judging-portal/internal/usecase"
)

const (
	pathToken        = "/api/token/"
	pathTokenRefresh = "/api/token/refresh/"
	pathLogout       = "/api/logout"
	pathSubmissions  = "/api/submissions"
	pathSolutions    = "/player/solutions/"
	pathDownload     = "/api/download"

	maxJSONBody = 4 << 20
)

var errPortalTransient = crerr.New("portal backend transient failure")

type ClientConfig struct {
	HTTPClient     *http.Client
	BaseURL        string
	Timeout        time.Duration
	Logger         *logging.Logger
	IDs            id.Generator
	CircuitBreaker resilience.CircuitBreakerConfig
}

// Client talks to the judging backend. Its own methods cover the endpoints
// that need no bearer token; authenticated calls go through an Executor.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	logger         *logging.Logger
	ids            id.Generator
	breaker        *resilience.CircuitBreaker
	circuitEnabled bool
}

func NewClient(cfg ClientConfig) *Client {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 30 * time.Second
	}

	ids := cfg.IDs
	if ids == nil {
		ids = id.NewUUIDGenerator()
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.CircuitBreaker)
	breaker := resilience.NewCircuitBreaker("portal-backend", breakerCfg, func(name string, from, to resilience.CircuitState) {
		logger.Warn("circuit breaker state changed", "breaker", name, "from", from, "to", to)
	})

	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		logger:         logger,
		ids:            ids,
		breaker:        breaker,
		circuitEnabled: breakerCfg.Enabled,
	}
}

// Timeout bounds a single backend call.
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// ObtainTokens exchanges credentials for a token pair.
func (c *Client) ObtainTokens(ctx context.Context, creds session.Credentials) (session.TokenPair, error) {
	var decoded tokenResponse
	status, err := c.postJSON(ctx, pathToken, tokenRequest{Username: creds.Username, Password: creds.Password}, &decoded)
	if err != nil {
		if status == http.StatusUnauthorized || status == http.StatusBadRequest {
			return session.TokenPair{}, fmt.Errorf("%w: %v", usecase.ErrInvalidCredentials, err)
		}
		return session.TokenPair{}, err
	}

	pair := session.TokenPair{Access: decoded.Access, Refresh: decoded.Refresh}
	if err := pair.Validate(); err != nil {
		return session.TokenPair{}, crerr.Wrap(err, "invalid token response")
	}
	return pair, nil
}

// RefreshAccess trades a refresh token for a new access token. A rejection by
// the backend is reported as ErrUnauthorized.
func (c *Client) RefreshAccess(ctx context.Context, refresh string) (string, error) {
	var decoded refreshResponse
	status, err := c.postJSON(ctx, pathTokenRefresh, refreshRequest{Refresh: refresh}, &decoded)
	if err != nil {
		if status >= 400 && status < 500 {
			return "", fmt.Errorf("%w: refresh rejected: %v", usecase.ErrUnauthorized, err)
		}
		return "", err
	}
	if strings.TrimSpace(decoded.Access) == "" {
		return "", fmt.Errorf("%w: refresh response carries no access token", usecase.ErrUnauthorized)
	}
	return decoded.Access, nil
}

// Logout tells the backend to drop its session. The tokens travel as the
// cookies the backend issued.
func (c *Client) Logout(ctx context.Context, pair session.TokenPair) error {
	req, err := c.newRequest(ctx, http.MethodPost, pathLogout, nil, nil)
	if err != nil {
		return err
	}
	for _, cookie := range cookiejar.Cookies(pair) {
		req.AddCookie(cookie)
	}

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("logout returned status=%d", resp.StatusCode)
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload, target any) (int, error) {
	encoded, err := sonic.Marshal(payload)
	if err != nil {
		return 0, crerr.Wrap(err, "marshal request")
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(encoded), header)
	if err != nil {
		return 0, err
	}

	resp, err := c.do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read response body: %v", errPortalTransient, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("%s returned status=%d body=%s", path, resp.StatusCode, abbreviateBody(raw))
	}
	if err := sonic.Unmarshal(raw, target); err != nil {
		return resp.StatusCode, crerr.Wrapf(err, "decode %s response", path)
	}
	return resp.StatusCode, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, header http.Header) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, buildURL(c.baseURL, path), body)
	if err != nil {
		return nil, crerr.Wrap(err, "build request")
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	if requestID := id.MustNewID(c.ids); requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}
	return req, nil
}

// do sends req through the circuit breaker. Transport failures and 5xx
// responses count as breaker failures and surface as
// ErrDependencyUnavailable; the caller owns the body of any returned response.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if c.circuitEnabled {
		if err := c.breaker.Allow(); err != nil {
			c.logger.WarnContext(ctx, "portal backend circuit breaker rejected request", "state", c.breaker.State(), "path", req.URL.Path)
			return nil, fmt.Errorf("%w: judging backend is temporarily unavailable: %w", usecase.ErrDependencyUnavailable, err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isContextError(ctx.Err()) {
			c.recordOutcome(nil)
			return nil, ctx.Err()
		}
		transient := fmt.Errorf("%w: send %s %s: %v", errPortalTransient, req.Method, req.URL.Path, err)
		c.recordOutcome(transient)
		return nil, fmt.Errorf("%w: %w", usecase.ErrDependencyUnavailable, transient)
	}

	if resp.StatusCode >= 500 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		_ = resp.Body.Close()
		transient := fmt.Errorf("%w: %s %s status=%d body=%s", errPortalTransient, req.Method, req.URL.Path, resp.StatusCode, abbreviateBody(raw))
		c.recordOutcome(transient)
		return nil, fmt.Errorf("%w: %w", usecase.ErrDependencyUnavailable, transient)
	}

	c.recordOutcome(nil)
	return resp, nil
}

func (c *Client) recordOutcome(err error) {
	if !c.circuitEnabled {
		return
	}
	c.breaker.Record(err != nil && isCircuitFailure(err))
}

func encodeQuery(path string, query url.Values) string {
	if len(query) == 0 {
		return path
	}
	return path + "?" + query.Encode()
}
