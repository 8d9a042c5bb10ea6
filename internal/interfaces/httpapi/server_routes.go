package httpapi

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/riskibarqy/judging-portal/internal/domain/session"
)

func registerSystemRoutes(mux *http.ServeMux, handler *Handler, cfg RouterConfig) {
	mux.HandleFunc("GET /healthz", handler.Healthz)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{}))
	}
	if !cfg.SwaggerEnabled {
		return
	}

	mux.HandleFunc("GET /openapi.yaml", handler.OpenAPI)
	mux.HandleFunc("GET /docs", handler.SwaggerUI)
	mux.HandleFunc("GET /docs/", handler.SwaggerUI)
}

func registerSessionRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /v1/session", handler.GetSession)
	mux.HandleFunc("POST /v1/session/login", handler.Login)
	mux.HandleFunc("POST /v1/session/logout", handler.Logout)
}

func registerJudgingRoutes(mux *http.ServeMux, handler *Handler, gate RoleGate) {
	judge := func(next http.HandlerFunc) http.Handler {
		return RequireRole(gate, session.RoleJudge, handler.navigator.LoginPath(), next)
	}

	mux.Handle("GET /v1/judging", judge(handler.GetReview))
	mux.Handle("POST /v1/judging/refresh", judge(handler.RefreshReview))
	mux.Handle("POST /v1/judging/questions/{questionID}/select", judge(handler.SelectQuestion))
	mux.Handle("POST /v1/judging/submissions/{submissionID}/select", judge(handler.SelectSubmission))
	mux.Handle("POST /v1/judging/submissions/{submissionID}/download", judge(handler.DownloadSubmission))
	mux.Handle("PUT /v1/judging/draft", judge(handler.UpdateDraft))
	mux.Handle("POST /v1/judging/cancel", judge(handler.CancelReview))
	mux.Handle("POST /v1/judging/decision", judge(handler.Decide))
	mux.Handle("GET /v1/files", judge(handler.GetFile))
}

func registerSolutionRoutes(mux *http.ServeMux, handler *Handler, gate RoleGate) {
	player := func(next http.HandlerFunc) http.Handler {
		return RequireRole(gate, session.RolePlayer, handler.navigator.LoginPath(), next)
	}

	mux.HandleFunc("GET /v1/solutions/options", handler.GetSolutionOptions)
	mux.Handle("GET /v1/problems/{problemID}/solutions/draft", player(handler.GetSolutionDraft))
	mux.Handle("PUT /v1/problems/{problemID}/solutions/draft", player(handler.UpdateSolutionDraft))
	mux.Handle("POST /v1/problems/{problemID}/solutions/draft/files", player(handler.AttachSolutionFiles))
	mux.Handle("DELETE /v1/problems/{problemID}/solutions/draft/files/{category}/{index}", player(handler.RemoveSolutionFile))
	mux.Handle("POST /v1/problems/{problemID}/solutions", player(handler.SubmitSolution))
}
