package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/riskibarqy/judging-portal/internal/platform/logging"
)

const (
	TokenStoreCookieFile = "cookiefile"
	TokenStoreRedis      = "redis"
	TokenStoreMemory     = "memory"
)

// Config stores runtime configuration for the portal.
type Config struct {
	AppEnv             string
	ServiceName        string
	ServiceVersion     string
	HTTPAddr           string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	LogLevel           logging.Level
	LogConsole         bool
	CORSAllowedOrigins []string
	SwaggerEnabled     bool

	PortalAPIBaseURL            string
	PortalAPITimeout            time.Duration
	PortalLoginPath             string
	PortalCircuitEnabled        bool
	PortalCircuitFailureCount   int
	PortalCircuitOpenTimeout    time.Duration
	PortalCircuitHalfOpenMaxReq int

	TokenStoreDriver string
	TokenCookieFile  string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisKeyPrefix   string

	CacheEnabled        bool
	CacheTTL            time.Duration
	LogoutNotifyTimeout time.Duration

	DownloadDir     string
	DownloadWorkers int
	MaxUploadBytes  int64

	SubmissionDescriptionMin     int
	SubmissionMaxCodeFiles       int
	SubmissionMaxAdditionalFiles int

	MetricsEnabled             bool
	PprofEnabled               bool
	PprofAddr                  string
	UptraceEnabled             bool
	UptraceDSN                 string
	PyroscopeEnabled           bool
	PyroscopeServerAddress     string
	PyroscopeAppName           string
	PyroscopeAuthToken         string
	PyroscopeBasicAuthUser     string
	PyroscopeBasicAuthPassword string
	PyroscopeUploadRate        time.Duration
}

// LoadDotEnv reads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	swaggerDefault := "true"
	if appEnv == EnvProd {
		swaggerDefault = "false"
	}
	swaggerEnabled, err := strconv.ParseBool(getEnv("SWAGGER_ENABLED", swaggerDefault))
	if err != nil {
		return Config{}, fmt.Errorf("parse SWAGGER_ENABLED: %w", err)
	}

	readTimeout, err := getEnvAsDuration("APP_READ_TIMEOUT", "15s")
	if err != nil {
		return Config{}, err
	}
	writeTimeout, err := getEnvAsDuration("APP_WRITE_TIMEOUT", "60s")
	if err != nil {
		return Config{}, err
	}
	logConsole, err := strconv.ParseBool(getEnv("APP_LOG_CONSOLE", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse APP_LOG_CONSOLE: %w", err)
	}

	portalBaseURL := strings.TrimRight(strings.TrimSpace(getEnv("PORTAL_API_BASE_URL", "http://localhost:8000")), "/")
	if !strings.HasPrefix(portalBaseURL, "http://") && !strings.HasPrefix(portalBaseURL, "https://") {
		return Config{}, fmt.Errorf("PORTAL_API_BASE_URL must be an http(s) URL, got %q", portalBaseURL)
	}
	portalTimeout, err := getEnvAsDuration("PORTAL_API_TIMEOUT", "30s")
	if err != nil {
		return Config{}, err
	}
	loginPath := strings.TrimSpace(getEnv("PORTAL_LOGIN_PATH", "/login"))
	if !strings.HasPrefix(loginPath, "/") {
		return Config{}, fmt.Errorf("PORTAL_LOGIN_PATH must start with /, got %q", loginPath)
	}

	circuitEnabled, err := strconv.ParseBool(getEnv("PORTAL_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PORTAL_CIRCUIT_ENABLED: %w", err)
	}
	circuitFailureCount, err := getEnvAsInt("PORTAL_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse PORTAL_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if circuitFailureCount < 1 {
		return Config{}, fmt.Errorf("PORTAL_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	circuitOpenTimeout, err := getEnvAsDuration("PORTAL_CIRCUIT_OPEN_TIMEOUT", "15s")
	if err != nil {
		return Config{}, err
	}
	circuitHalfOpenMaxReq, err := getEnvAsInt("PORTAL_CIRCUIT_HALF_OPEN_MAX_REQ", 1)
	if err != nil {
		return Config{}, fmt.Errorf("parse PORTAL_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if circuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("PORTAL_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	driver := strings.ToLower(strings.TrimSpace(getEnv("TOKEN_STORE_DRIVER", TokenStoreCookieFile)))
	switch driver {
	case TokenStoreCookieFile, TokenStoreRedis, TokenStoreMemory:
	default:
		return Config{}, fmt.Errorf("invalid TOKEN_STORE_DRIVER %q: valid values are %s, %s, %s", driver, TokenStoreCookieFile, TokenStoreRedis, TokenStoreMemory)
	}
	redisAddr := strings.TrimSpace(getEnv("REDIS_ADDR", ""))
	if driver == TokenStoreRedis && redisAddr == "" {
		return Config{}, fmt.Errorf("REDIS_ADDR is required when TOKEN_STORE_DRIVER=redis")
	}
	redisDB, err := getEnvAsInt("REDIS_DB", 0)
	if err != nil {
		return Config{}, fmt.Errorf("parse REDIS_DB: %w", err)
	}
	if redisDB < 0 {
		return Config{}, fmt.Errorf("REDIS_DB must be >= 0")
	}

	cacheEnabled, err := strconv.ParseBool(getEnv("CACHE_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_ENABLED: %w", err)
	}
	cacheTTL, err := getEnvAsDuration("CACHE_TTL", "30s")
	if err != nil {
		return Config{}, err
	}
	logoutNotifyTimeout, err := getEnvAsDuration("LOGOUT_NOTIFY_TIMEOUT", "5s")
	if err != nil {
		return Config{}, err
	}

	downloadWorkers, err := getEnvAsInt("DOWNLOAD_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse DOWNLOAD_WORKERS: %w", err)
	}
	if downloadWorkers < 1 {
		return Config{}, fmt.Errorf("DOWNLOAD_WORKERS must be >= 1")
	}
	maxUploadBytes, err := getEnvAsInt("MAX_UPLOAD_BYTES", 64<<20)
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_UPLOAD_BYTES: %w", err)
	}
	if maxUploadBytes <= 0 {
		return Config{}, fmt.Errorf("MAX_UPLOAD_BYTES must be > 0")
	}

	descriptionMin, err := getEnvAsInt("SUBMISSION_DESCRIPTION_MIN", 10)
	if err != nil {
		return Config{}, fmt.Errorf("parse SUBMISSION_DESCRIPTION_MIN: %w", err)
	}
	maxCodeFiles, err := getEnvAsInt("SUBMISSION_MAX_CODE_FILES", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse SUBMISSION_MAX_CODE_FILES: %w", err)
	}
	maxAdditionalFiles, err := getEnvAsInt("SUBMISSION_MAX_ADDITIONAL_FILES", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse SUBMISSION_MAX_ADDITIONAL_FILES: %w", err)
	}
	if descriptionMin < 1 || maxCodeFiles < 1 || maxAdditionalFiles < 1 {
		return Config{}, fmt.Errorf("SUBMISSION_* limits must be >= 1")
	}

	metricsEnabled, err := strconv.ParseBool(getEnv("METRICS_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse METRICS_ENABLED: %w", err)
	}

	pprofEnabled, err := strconv.ParseBool(getEnv("PPROF_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PPROF_ENABLED: %w", err)
	}
	pprofAddr := strings.TrimSpace(getEnv("PPROF_ADDR", ":6060"))
	if pprofEnabled && pprofAddr == "" {
		return Config{}, fmt.Errorf("PPROF_ADDR is required when PPROF_ENABLED=true")
	}

	uptraceEnabled, err := strconv.ParseBool(getEnv("UPTRACE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse UPTRACE_ENABLED: %w", err)
	}
	uptraceDSN := strings.TrimSpace(getEnv("UPTRACE_DSN", ""))
	if uptraceDSN == "" {
		uptraceDSN = parseUptraceDSNFromOTLPHeaders(getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""))
	}
	if uptraceEnabled && uptraceDSN == "" {
		return Config{}, fmt.Errorf("UPTRACE_DSN is required when UPTRACE_ENABLED=true")
	}

	pyroscopeEnabled, err := strconv.ParseBool(getEnv("PYROSCOPE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PYROSCOPE_ENABLED: %w", err)
	}
	pyroscopeServerAddress := strings.TrimSpace(getEnv("PYROSCOPE_SERVER_ADDRESS", ""))
	if pyroscopeEnabled && pyroscopeServerAddress == "" {
		return Config{}, fmt.Errorf("PYROSCOPE_SERVER_ADDRESS is required when PYROSCOPE_ENABLED=true")
	}
	pyroscopeUploadRate, err := getEnvAsDuration("PYROSCOPE_UPLOAD_RATE", "15s")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:             appEnv,
		ServiceName:        getEnv("APP_SERVICE_NAME", "judging-portal"),
		ServiceVersion:     getEnv("APP_SERVICE_VERSION", "dev"),
		HTTPAddr:           getEnv("APP_HTTP_ADDR", "127.0.0.1:8080"),
		ReadTimeout:        readTimeout,
		WriteTimeout:       writeTimeout,
		LogLevel:           logging.ParseLevel(getEnv("APP_LOG_LEVEL", "info")),
		LogConsole:         logConsole,
		CORSAllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173")),
		SwaggerEnabled:     swaggerEnabled,

		PortalAPIBaseURL:            portalBaseURL,
		PortalAPITimeout:            portalTimeout,
		PortalLoginPath:             loginPath,
		PortalCircuitEnabled:        circuitEnabled,
		PortalCircuitFailureCount:   circuitFailureCount,
		PortalCircuitOpenTimeout:    circuitOpenTimeout,
		PortalCircuitHalfOpenMaxReq: circuitHalfOpenMaxReq,

		TokenStoreDriver: driver,
		TokenCookieFile:  strings.TrimSpace(getEnv("TOKEN_COOKIE_FILE", ".judging-portal/cookies")),
		RedisAddr:        redisAddr,
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          redisDB,
		RedisKeyPrefix:   strings.TrimSpace(getEnv("REDIS_KEY_PREFIX", "judging-portal:session")),

		CacheEnabled:        cacheEnabled,
		CacheTTL:            cacheTTL,
		LogoutNotifyTimeout: logoutNotifyTimeout,

		DownloadDir:     strings.TrimSpace(getEnv("DOWNLOAD_DIR", "downloads")),
		DownloadWorkers: downloadWorkers,
		MaxUploadBytes:  int64(maxUploadBytes),

		SubmissionDescriptionMin:     descriptionMin,
		SubmissionMaxCodeFiles:       maxCodeFiles,
		SubmissionMaxAdditionalFiles: maxAdditionalFiles,

		MetricsEnabled:             metricsEnabled,
		PprofEnabled:               pprofEnabled,
		PprofAddr:                  pprofAddr,
		UptraceEnabled:             uptraceEnabled,
		UptraceDSN:                 uptraceDSN,
		PyroscopeEnabled:           pyroscopeEnabled,
		PyroscopeServerAddress:     pyroscopeServerAddress,
		PyroscopeAuthToken:         strings.TrimSpace(getEnv("PYROSCOPE_AUTH_TOKEN", "")),
		PyroscopeBasicAuthUser:     strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_USER", "")),
		PyroscopeBasicAuthPassword: strings.TrimSpace(getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")),
		PyroscopeUploadRate:        pyroscopeUploadRate,
	}
	cfg.PyroscopeAppName = strings.TrimSpace(getEnv("PYROSCOPE_APP_NAME", cfg.ServiceName))
	if len(cfg.CORSAllowedOrigins) == 0 {
		return Config{}, fmt.Errorf("CORS_ALLOWED_ORIGINS cannot be empty")
	}
	if cfg.TokenStoreDriver == TokenStoreCookieFile && cfg.TokenCookieFile == "" {
		return Config{}, fmt.Errorf("TOKEN_COOKIE_FILE is required when TOKEN_STORE_DRIVER=cookiefile")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

// getEnvAsDuration parses a positive duration.
func getEnvAsDuration(key, fallback string) (time.Duration, error) {
	out, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if out <= 0 {
		return 0, fmt.Errorf("%s must be > 0", key)
	}
	return out, nil
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item == "" {
			continue
		}
		out = append(out, item)
	}

	return out
}

func parseUptraceDSNFromOTLPHeaders(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}

	items := strings.Split(raw, ",")
	for _, item := range items {
		parts := strings.SplitN(strings.TrimSpace(item), "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(parts[0]), "uptrace-dsn") {
			value := strings.TrimSpace(parts[1])
			return strings.Trim(value, "\"'")
		}
	}

	return ""
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	value := strings.ToLower(strings.TrimSpace(v))
	switch value {
	case EnvDev, EnvStage, EnvProd:
		return value, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
