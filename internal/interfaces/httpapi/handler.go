package httpapi

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/riskibarqy/judging-portal/internal/platform/logging"
	"github.com/riskibarqy/judging-portal/internal/usecase"
)

const maxJSONBody = 1 << 20

var requestJSON = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	DisallowUnknownFields:  true,
}.Froze()

type Handler struct {
	authService     *usecase.AuthService
	judgingService  *usecase.JudgingService
	solutionService *usecase.SolutionService
	downloadService *usecase.DownloadService
	navigator       *LoginNavigator
	logger          *logging.Logger
	validator       *validator.Validate
	maxUploadBytes  int64
}

type HandlerConfig struct {
	MaxUploadBytes int64
}

func NewHandler(
	authService *usecase.AuthService,
	judgingService *usecase.JudgingService,
	solutionService *usecase.SolutionService,
	downloadService *usecase.DownloadService,
	navigator *LoginNavigator,
	validate *validator.Validate,
	logger *logging.Logger,
	cfg HandlerConfig,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	if validate == nil {
		validate = validator.New()
	}
	if navigator == nil {
		navigator = NewLoginNavigator("", logger)
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 64 << 20
	}

	return &Handler{
		authService:     authService,
		judgingService:  judgingService,
		solutionService: solutionService,
		downloadService: downloadService,
		navigator:       navigator,
		logger:          logger,
		validator:       validate,
		maxUploadBytes:  cfg.MaxUploadBytes,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	writeLoginAwareError(ctx, w, err, h.navigator.LoginPath())
}

// decodeJSON reads a bounded JSON body. An empty body leaves dst untouched.
func (h *Handler) decodeJSON(ctx context.Context, r *http.Request, dst any) error {
	_, span := startSpan(ctx, "httpapi.Handler.decodeJSON")
	defer span.End()

	decoder := requestJSON.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := decoder.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	ctx, span := startSpan(ctx, "httpapi.Handler.validateRequest")
	defer span.End()

	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}

	return nil
}
