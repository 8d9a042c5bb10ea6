package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sort"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/judging-portal/internal/domain/solution"
	"github.com/riskibarqy/judging-portal/internal/usecase"
)

const (
	googleAPIVersion = "2.0"
	errorDomain      = "judging-portal"
)

type googleResponseEnvelope struct {
	APIVersion string           `json:"apiVersion"`
	Data       any              `json:"data,omitempty"`
	Error      *googleErrorBody `json:"error,omitempty"`
}

type googleErrorBody struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Status  string            `json:"status"`
	Errors  []googleErrorItem `json:"errors,omitempty"`
}

type googleErrorItem struct {
	Domain       string `json:"domain"`
	Reason       string `json:"reason"`
	Message      string `json:"message"`
	Location     string `json:"location,omitempty"`
	LocationType string `json:"locationType,omitempty"`
}

type mappedError struct {
	HTTPStatus    int
	Reason        string
	Status        string
	LoginRequired bool
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	ctx, span := startSpan(ctx, "httpapi.writeJSON")
	defer span.End()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = sonic.ConfigDefault.NewEncoder(w).Encode(payload)
}

func writeSuccess(ctx context.Context, w http.ResponseWriter, status int, data any) {
	ctx, span := startSpan(ctx, "httpapi.writeSuccess")
	defer span.End()

	writeJSON(ctx, w, status, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Data:       data,
	})
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	ctx, span := startSpan(ctx, "httpapi.writeError")
	defer span.End()

	mapped := mapError(ctx, err)
	writeJSON(ctx, w, mapped.HTTPStatus, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    mapped.HTTPStatus,
			Message: err.Error(),
			Status:  mapped.Status,
			Errors:  errorItems(err, mapped),
		},
	})
}

// writeLoginAwareError points the client at the login view when err ended or
// lacks a session.
func writeLoginAwareError(ctx context.Context, w http.ResponseWriter, err error, loginPath string) {
	if mapError(ctx, err).LoginRequired && loginPath != "" {
		w.Header().Set("Location", loginPath)
	}
	writeError(ctx, w, err)
}

func writeInternalError(ctx context.Context, w http.ResponseWriter) {
	ctx, span := startSpan(ctx, "httpapi.writeInternalError")
	defer span.End()

	const msg = "internal server error"

	writeJSON(ctx, w, http.StatusInternalServerError, googleResponseEnvelope{
		APIVersion: googleAPIVersion,
		Error: &googleErrorBody{
			Code:    http.StatusInternalServerError,
			Message: msg,
			Status:  "INTERNAL",
			Errors: []googleErrorItem{
				{
					Domain:  errorDomain,
					Reason:  "internalError",
					Message: msg,
				},
			},
		},
	})
}

func errorItems(err error, mapped mappedError) []googleErrorItem {
	var verr *solution.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) == 0 {
		return []googleErrorItem{
			{
				Domain:  errorDomain,
				Reason:  mapped.Reason,
				Message: err.Error(),
			},
		}
	}

	names := make([]string, 0, len(verr.Fields))
	for name := range verr.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	items := make([]googleErrorItem, 0, len(names))
	for _, name := range names {
		items = append(items, googleErrorItem{
			Domain:       errorDomain,
			Reason:       "invalidField",
			Message:      verr.Fields[name],
			Location:     name,
			LocationType: "field",
		})
	}
	return items
}

func mapError(ctx context.Context, err error) mappedError {
	_, span := startSpan(ctx, "httpapi.mapError")
	defer span.End()

	switch {
	case errors.Is(err, usecase.ErrSessionExpired):
		return mappedError{
			HTTPStatus:    http.StatusUnauthorized,
			Reason:        "sessionExpired",
			Status:        "UNAUTHENTICATED",
			LoginRequired: true,
		}
	case errors.Is(err, usecase.ErrNotLoggedIn):
		return mappedError{
			HTTPStatus:    http.StatusUnauthorized,
			Reason:        "loginRequired",
			Status:        "UNAUTHENTICATED",
			LoginRequired: true,
		}
	case errors.Is(err, usecase.ErrInvalidCredentials):
		return mappedError{
			HTTPStatus: http.StatusUnauthorized,
			Reason:     "invalidCredentials",
			Status:     "UNAUTHENTICATED",
		}
	case errors.Is(err, usecase.ErrUnauthorized):
		return mappedError{
			HTTPStatus: http.StatusUnauthorized,
			Reason:     "unauthorized",
			Status:     "UNAUTHENTICATED",
		}
	case errors.Is(err, usecase.ErrForbidden):
		return mappedError{
			HTTPStatus: http.StatusForbidden,
			Reason:     "forbidden",
			Status:     "PERMISSION_DENIED",
		}
	case errors.Is(err, usecase.ErrSessionReplaced),
		errors.Is(err, solution.ErrSubmitInProgress):
		return mappedError{
			HTTPStatus: http.StatusConflict,
			Reason:     "aborted",
			Status:     "ABORTED",
		}
	case errors.Is(err, usecase.ErrInvalidTransition),
		errors.Is(err, usecase.ErrNotJudgeable):
		return mappedError{
			HTTPStatus: http.StatusConflict,
			Reason:     "failedPrecondition",
			Status:     "FAILED_PRECONDITION",
		}
	case errors.Is(err, usecase.ErrInvalidInput),
		errors.Is(err, solution.ErrUnsupportedFile):
		return mappedError{
			HTTPStatus: http.StatusBadRequest,
			Reason:     "invalidInput",
			Status:     "INVALID_ARGUMENT",
		}
	case errors.Is(err, usecase.ErrNotFound):
		return mappedError{
			HTTPStatus: http.StatusNotFound,
			Reason:     "notFound",
			Status:     "NOT_FOUND",
		}
	case errors.Is(err, usecase.ErrDependencyUnavailable):
		return mappedError{
			HTTPStatus: http.StatusServiceUnavailable,
			Reason:     "dependencyUnavailable",
			Status:     "UNAVAILABLE",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return mappedError{
			HTTPStatus: http.StatusGatewayTimeout,
			Reason:     "deadlineExceeded",
			Status:     "DEADLINE_EXCEEDED",
		}
	default:
		return mappedError{
			HTTPStatus: http.StatusInternalServerError,
			Reason:     "internalError",
			Status:     "INTERNAL",
		}
	}
}
