package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/riskibarqy/judging-portal/internal/platform/logging"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PortalAPIBaseURL != "http://localhost:8000" {
		t.Fatalf("unexpected portal base url: %q", cfg.PortalAPIBaseURL)
	}
	if cfg.PortalLoginPath != "/login" {
		t.Fatalf("unexpected login path: %q", cfg.PortalLoginPath)
	}
	if cfg.TokenStoreDriver != TokenStoreCookieFile || cfg.TokenCookieFile == "" {
		t.Fatalf("unexpected token store: %q %q", cfg.TokenStoreDriver, cfg.TokenCookieFile)
	}
	if !cfg.PortalCircuitEnabled || cfg.PortalCircuitFailureCount != 5 || cfg.PortalCircuitOpenTimeout != 15*time.Second {
		t.Fatalf("unexpected circuit defaults: %+v", cfg)
	}
	if cfg.SubmissionDescriptionMin != 10 || cfg.SubmissionMaxCodeFiles != 5 || cfg.SubmissionMaxAdditionalFiles != 5 {
		t.Fatalf("unexpected submission limits: %+v", cfg)
	}
	if cfg.LogoutNotifyTimeout != 5*time.Second || cfg.CacheTTL != 30*time.Second {
		t.Fatalf("unexpected timeouts: logout=%s cache=%s", cfg.LogoutNotifyTimeout, cfg.CacheTTL)
	}
	if cfg.LogLevel != logging.LevelInfo {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}
}

func TestLoad_PortalBaseURLValidation(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	t.Run("trailing slash trimmed", func(t *testing.T) {
		t.Setenv("PORTAL_API_BASE_URL", "https://judge.example.com/ ")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if cfg.PortalAPIBaseURL != "https://judge.example.com" {
			t.Fatalf("unexpected base url: %q", cfg.PortalAPIBaseURL)
		}
	})

	t.Run("scheme required", func(t *testing.T) {
		t.Setenv("PORTAL_API_BASE_URL", "judge.example.com")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for base url without scheme")
		}
	})

	t.Run("login path must be absolute", func(t *testing.T) {
		t.Setenv("PORTAL_API_BASE_URL", "")
		t.Setenv("PORTAL_LOGIN_PATH", "login")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for relative login path")
		}
	})
}

func TestLoad_TokenStoreDriver(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("TOKEN_STORE_DRIVER", "sqlite")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for unknown driver")
		}
	})

	t.Run("redis requires addr", func(t *testing.T) {
		t.Setenv("TOKEN_STORE_DRIVER", "redis")
		t.Setenv("REDIS_ADDR", "")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error when TOKEN_STORE_DRIVER=redis without REDIS_ADDR")
		}
	})

	t.Run("redis with addr", func(t *testing.T) {
		t.Setenv("TOKEN_STORE_DRIVER", "Redis")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("REDIS_DB", "2")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if cfg.TokenStoreDriver != TokenStoreRedis || cfg.RedisDB != 2 || cfg.RedisKeyPrefix != "judging-portal:session" {
			t.Fatalf("unexpected redis config: %+v", cfg)
		}
	})
}

func TestLoad_CircuitValidation(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	t.Run("failure count", func(t *testing.T) {
		t.Setenv("PORTAL_CIRCUIT_FAILURE_COUNT", "0")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for zero failure count")
		}
	})

	t.Run("open timeout", func(t *testing.T) {
		t.Setenv("PORTAL_CIRCUIT_FAILURE_COUNT", "")
		t.Setenv("PORTAL_CIRCUIT_OPEN_TIMEOUT", "-1s")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for negative open timeout")
		}
	})
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_UptraceDSNFromOTLPHeaders(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", `uptrace-dsn="https://token@api.uptrace.dev/1"`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.UptraceDSN != "https://token@api.uptrace.dev/1" {
		t.Fatalf("unexpected dsn: %q", cfg.UptraceDSN)
	}
}

func TestLoad_DefaultsByEnv(t *testing.T) {
	t.Run("prod disables swagger by default", func(t *testing.T) {
		t.Setenv("APP_ENV", EnvProd)
		t.Setenv("SWAGGER_ENABLED", "")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if cfg.SwaggerEnabled {
			t.Fatalf("expected SwaggerEnabled=false in prod by default")
		}
	})

	t.Run("dev enables swagger by default", func(t *testing.T) {
		t.Setenv("APP_ENV", EnvDev)
		t.Setenv("SWAGGER_ENABLED", "")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if !cfg.SwaggerEnabled {
			t.Fatalf("expected SwaggerEnabled=true in dev by default")
		}
	})
}

func TestLoad_PprofDefaultsAddrWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("PPROF_ENABLED", "true")
	t.Setenv("PPROF_ADDR", "  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PprofAddr != ":6060" {
		t.Fatalf("expected default pprof addr :6060, got %q", cfg.PprofAddr)
	}
}

func TestLoad_PyroscopeAppNameDefaultsToServiceName(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("APP_SERVICE_NAME", "judging-portal-test")
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "http://localhost:4040")
	t.Setenv("PYROSCOPE_APP_NAME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PyroscopeAppName != "judging-portal-test" {
		t.Fatalf("unexpected pyroscope app name: %q", cfg.PyroscopeAppName)
	}
}

func TestLoad_SubmissionLimits(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	t.Run("custom", func(t *testing.T) {
		t.Setenv("SUBMISSION_DESCRIPTION_MIN", "20")
		t.Setenv("SUBMISSION_MAX_CODE_FILES", "3")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if cfg.SubmissionDescriptionMin != 20 || cfg.SubmissionMaxCodeFiles != 3 {
			t.Fatalf("unexpected limits: %+v", cfg)
		}
	})

	t.Run("zero rejected", func(t *testing.T) {
		t.Setenv("SUBMISSION_MAX_ADDITIONAL_FILES", "0")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for zero additional file limit")
		}
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("PORTAL_LOGIN_PATH=/signin\nAPP_SERVICE_NAME=from-file\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("APP_SERVICE_NAME", "from-env")
	t.Setenv("PORTAL_LOGIN_PATH", "")
	if err := os.Unsetenv("PORTAL_LOGIN_PATH"); err != nil {
		t.Fatalf("unset: %v", err)
	}

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load dotenv: %v", err)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PortalLoginPath != "/signin" {
		t.Fatalf("expected value from file, got %q", cfg.PortalLoginPath)
	}
	if cfg.ServiceName != "from-env" {
		t.Fatalf("process environment must win over the file, got %q", cfg.ServiceName)
	}

	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Fatalf("missing file must be ignored, got %v", err)
	}
}
