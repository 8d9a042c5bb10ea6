package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/riskibarqy/judging-portal/external/portalapi"
	"github.com/riskibarqy/judging-portal/internal/config"
	"github.com/riskibarqy/judging-portal/internal/domain/session"
	"github.com/riskibarqy/judging-portal/internal/domain/solution"
	"github.com/riskibarqy/judging-portal/internal/domain/submission"
	"github.com/riskibarqy/judging-portal/internal/infrastructure/account/jwtclaims"
	"github.com/riskibarqy/judging-portal/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/judging-portal/internal/infrastructure/repository/cookiejar"
	"github.com/riskibarqy/judging-portal/internal/infrastructure/repository/memory"
	redisrepo "github.com/riskibarqy/judging-portal/internal/infrastructure/repository/redis"
	"github.com/riskibarqy/judging-portal/internal/interfaces/httpapi"
	"github.com/riskibarqy/judging-portal/internal/observability"
	basecache "github.com/riskibarqy/judging-portal/internal/platform/cache"
	"github.com/riskibarqy/judging-portal/internal/platform/logging"
	"github.com/riskibarqy/judging-portal/internal/platform/resilience"
	"github.com/riskibarqy/judging-portal/internal/platform/tokenstore"
	"github.com/riskibarqy/judging-portal/internal/usecase"
)

// Overrides replaces process-level collaborators. Zero values select the
// production ones.
type Overrides struct {
	Fs         afero.Fs
	HTTPClient *http.Client
	Registry   *prometheus.Registry
}

// App owns the HTTP server and everything that must be released with it.
type App struct {
	Server *http.Server

	auth    *usecase.AuthService
	logger  *logging.Logger
	closers []func() error
}

func New(ctx context.Context, cfg config.Config, logger *logging.Logger, overrides Overrides) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	fs := overrides.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	registry := overrides.Registry
	if registry == nil {
		registry = observability.NewMetricsRegistry(cfg)
	}

	a := &App{logger: logger}

	sessionRepo, err := a.sessionRepository(ctx, cfg, fs)
	if err != nil {
		return nil, err
	}
	store, err := tokenstore.Open(ctx, sessionRepo)
	if err != nil {
		// Open still returns an empty store.
		logger.Warn("persisted session unusable, starting logged out", "driver", cfg.TokenStoreDriver, "error", err)
	}

	validate := validator.New()

	client := portalapi.NewClient(portalapi.ClientConfig{
		HTTPClient: overrides.HTTPClient,
		BaseURL:    cfg.PortalAPIBaseURL,
		Timeout:    cfg.PortalAPITimeout,
		Logger:     logger.Named("portalapi"),
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.PortalCircuitEnabled,
			FailureThreshold: cfg.PortalCircuitFailureCount,
			OpenTimeout:      cfg.PortalCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.PortalCircuitHalfOpenMaxReq,
		},
	})

	var registerer prometheus.Registerer
	var gatherer prometheus.Gatherer
	if registry != nil {
		registerer = registry
		gatherer = registry
	}

	navigator := httpapi.NewLoginNavigator(cfg.PortalLoginPath, logger)
	auth := usecase.NewAuthService(store, jwtclaims.NewDecoder(), client, navigator, validate, logger, usecase.AuthServiceConfig{
		LogoutNotifyTimeout: cfg.LogoutNotifyTimeout,
	})
	a.auth = auth

	executor := portalapi.NewExecutor(client, auth, portalapi.NewMetrics(registerer), logger.Named("executor"))
	api := portalapi.NewAPI(executor)

	var submissions submission.Repository = api
	if cfg.CacheEnabled {
		submissions = cache.NewSubmissionRepository(api, basecache.NewStore[[]submission.Submission](cfg.CacheTTL))
	}

	limits := solution.Limits{
		DescriptionMin:     cfg.SubmissionDescriptionMin,
		MaxCodeFiles:       cfg.SubmissionMaxCodeFiles,
		MaxAdditionalFiles: cfg.SubmissionMaxAdditionalFiles,
	}

	judging := usecase.NewJudgingService(submissions, logger)
	solutions := usecase.NewSolutionService(api, limits, validate, logger)
	auth.OnSessionChange(judging.Reset, solutions.Reset)

	handler := httpapi.NewHandler(
		auth,
		judging,
		solutions,
		usecase.NewDownloadService(api, submissions, fs, usecase.DownloadServiceConfig{
			Dir:     cfg.DownloadDir,
			Workers: cfg.DownloadWorkers,
		}, logger),
		navigator,
		validate,
		logger,
		httpapi.HandlerConfig{MaxUploadBytes: cfg.MaxUploadBytes},
	)
	router := httpapi.NewRouter(handler, auth, logger, httpapi.RouterConfig{
		ServiceName:        cfg.ServiceName,
		SwaggerEnabled:     cfg.SwaggerEnabled,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:            gatherer,
	})

	a.Server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	state := auth.State()
	logger.Info("portal wired",
		"token_store", cfg.TokenStoreDriver,
		"backend", cfg.PortalAPIBaseURL,
		"cache_enabled", cfg.CacheEnabled,
		"logged_in", state.LoggedIn,
	)

	return a, nil
}

func (a *App) sessionRepository(ctx context.Context, cfg config.Config, fs afero.Fs) (session.Repository, error) {
	switch cfg.TokenStoreDriver {
	case config.TokenStoreMemory:
		return memory.NewSessionRepository(), nil
	case config.TokenStoreRedis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		a.closers = append(a.closers, client.Close)
		return redisrepo.NewSessionRepository(client, cfg.RedisKeyPrefix), nil
	case config.TokenStoreCookieFile, "":
		return cookiejar.NewSessionRepository(fs, cfg.TokenCookieFile), nil
	default:
		return nil, fmt.Errorf("unsupported token store driver %q", cfg.TokenStoreDriver)
	}
}

// Shutdown stops accepting requests, waits for pending backend logout
// notifications and releases external clients.
func (a *App) Shutdown(ctx context.Context) error {
	var firstErr error
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if a.auth != nil {
		a.auth.Wait()
	}
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("release dependency failed", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
