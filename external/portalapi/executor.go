package portalapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/riskibarqy/judging-portal/internal/domain/session"
	"github.com/riskibarqy/judging-portal/internal/platform/logging"
	"github.com/riskibarqy/judging-portal/internal/platform/resilience"
	"github.com/riskibarqy/judging-portal/internal/usecase"
)

// Session is the auth context the executor reads tokens from and reports
// refresh outcomes to. Both reports name the refresh token they concern and
// are ignored once the session holds a different one.
type Session interface {
	Tokens() (session.TokenPair, bool)
	ReplaceAccess(ctx context.Context, refresh, access string) error
	Expire(ctx context.Context, refresh, reason string) bool
}

// Request describes one authenticated backend call. Body is a factory so the
// request can be replayed after a refresh.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Header      http.Header
	ContentType string
	Body        func() (io.Reader, error)
}

// Executor attaches the bearer token to every request and recovers once from
// a 401 by refreshing the access token. Concurrent refreshes of the same
// refresh token share one backend call, which runs to completion even when
// the request that started it is cancelled.
type Executor struct {
	client  *Client
	session Session
	logger  *logging.Logger
	metrics *Metrics
	flight  resilience.SingleFlight[string]
}

func NewExecutor(client *Client, sess Session, metrics *Metrics, logger *logging.Logger) *Executor {
	if logger == nil {
		logger = logging.Default()
	}
	return &Executor{
		client:  client,
		session: sess,
		logger:  logger,
		metrics: metrics,
	}
}

// Do returns the 2xx response of req; the caller closes its body. Non-2xx
// answers are mapped onto usecase errors.
func (e *Executor) Do(ctx context.Context, req Request) (*http.Response, error) {
	pair, ok := e.session.Tokens()
	if !ok {
		e.metrics.request(OutcomeNotLoggedIn)
		return nil, usecase.ErrNotLoggedIn
	}

	resp, err := e.send(ctx, req, pair.Access)
	if err != nil {
		e.metrics.request(transportOutcome(err))
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return e.finish(ctx, req, resp, OutcomeOK)
	}
	drain(resp.Body)

	access, err := e.refresh(ctx, pair)
	if err != nil {
		return nil, err
	}

	resp, err = e.send(ctx, req, access)
	if err != nil {
		e.metrics.request(transportOutcome(err))
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp.Body)
		e.metrics.request(OutcomeUnauthorized)
		e.logger.WarnContext(ctx, "backend rejected refreshed access token", "method", req.Method, "path", req.Path)
		return nil, fmt.Errorf("%w: %s %s rejected after token refresh", usecase.ErrUnauthorized, req.Method, req.Path)
	}
	return e.finish(ctx, req, resp, OutcomeRetried)
}

// refresh obtains a usable access token after stale was rejected.
func (e *Executor) refresh(ctx context.Context, stale session.TokenPair) (string, error) {
	current, ok := e.session.Tokens()
	if !ok {
		e.metrics.request(OutcomeSessionEnded)
		return "", fmt.Errorf("%w: session ended while request was in flight", usecase.ErrSessionExpired)
	}
	if current.Refresh != stale.Refresh {
		e.metrics.request(OutcomeSessionEnded)
		return "", fmt.Errorf("%w: logged in again while request was in flight", usecase.ErrSessionReplaced)
	}
	if current.Access != stale.Access {
		e.metrics.refresh(RefreshReused)
		return current.Access, nil
	}

	access, err, shared := e.flight.DoDetached(ctx, stale.Refresh, e.client.Timeout(), func(ctx context.Context) (string, error) {
		access, err := e.client.RefreshAccess(ctx, stale.Refresh)
		if err != nil {
			return "", e.refreshFailed(ctx, stale, err)
		}
		if err := e.session.ReplaceAccess(ctx, stale.Refresh, access); err != nil {
			e.metrics.refresh(RefreshFailed)
			return "", err
		}
		e.metrics.refresh(RefreshSuccess)
		e.logger.InfoContext(ctx, "access token refreshed", "refresh_fp", fingerprint(stale.Refresh))
		return access, nil
	})
	if err != nil {
		if !isContextError(err) && !isDependencyError(err) {
			e.metrics.request(OutcomeSessionEnded)
		} else {
			e.metrics.request(transportOutcome(err))
		}
		return "", err
	}
	if shared {
		e.logger.DebugContext(ctx, "joined in-flight token refresh", "refresh_fp", fingerprint(stale.Refresh))
	}
	return access, nil
}

// refreshFailed ends the session when the backend rejected the refresh token.
// Outages and cancellation leave the session intact.
func (e *Executor) refreshFailed(ctx context.Context, stale session.TokenPair, err error) error {
	if isContextError(err) || isDependencyError(err) {
		e.metrics.refresh(RefreshFailed)
		e.logger.WarnContext(ctx, "token refresh did not complete", "refresh_fp", fingerprint(stale.Refresh), "error", err)
		return err
	}

	e.metrics.refresh(RefreshRejected)
	if !e.session.Expire(ctx, stale.Refresh, "refresh token rejected") {
		e.logger.InfoContext(ctx, "refresh token rejected after a new login, keeping session", "refresh_fp", fingerprint(stale.Refresh))
		return fmt.Errorf("%w: %v", usecase.ErrSessionReplaced, err)
	}
	e.metrics.forcedLogout()
	e.logger.WarnContext(ctx, "refresh token rejected, ending session", "refresh_fp", fingerprint(stale.Refresh), "error", err)
	return fmt.Errorf("%w: %v", usecase.ErrSessionExpired, err)
}

func (e *Executor) send(ctx context.Context, req Request, access string) (*http.Response, error) {
	var body io.Reader
	if req.Body != nil {
		b, err := req.Body()
		if err != nil {
			return nil, fmt.Errorf("build request body: %w", err)
		}
		body = b
	}

	header := req.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if req.ContentType != "" {
		header.Set("Content-Type", req.ContentType)
	}
	header.Set("Authorization", "Bearer "+access)

	httpReq, err := e.client.newRequest(ctx, req.Method, encodeQuery(req.Path, req.Query), body, header)
	if err != nil {
		return nil, err
	}
	return e.client.do(httpReq)
}

func (e *Executor) finish(ctx context.Context, req Request, resp *http.Response, outcome string) (*http.Response, error) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		e.metrics.request(outcome)
		return resp, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	_ = resp.Body.Close()
	e.metrics.request(OutcomeBackendStatus)

	detail := fmt.Sprintf("%s %s status=%d body=%s", req.Method, req.Path, resp.StatusCode, abbreviateBody(raw))
	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", usecase.ErrInvalidInput, detail)
	case http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s", usecase.ErrForbidden, detail)
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", usecase.ErrNotFound, detail)
	default:
		e.logger.WarnContext(ctx, "unexpected backend status", "method", req.Method, "path", req.Path, "status_code", resp.StatusCode)
		return nil, fmt.Errorf("unexpected backend response: %s", detail)
	}
}

func isDependencyError(err error) bool {
	return stderrors.Is(err, usecase.ErrDependencyUnavailable)
}

func transportOutcome(err error) string {
	if stderrors.Is(err, resilience.ErrCircuitOpen) {
		return OutcomeCircuitOpen
	}
	return OutcomeTransport
}
