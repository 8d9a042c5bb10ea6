package httpapi

import (
	"fmt"
	"net/http"

	"github.com/riskibarqy/judging-portal/internal/domain/submission"
	"github.com/riskibarqy/judging-portal/internal/usecase"
)

type draftRequest struct {
	Score    string `json:"score" validate:"max=32"`
	Feedback string `json:"feedback" validate:"max=10000"`
}

type decisionRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetReview")
	defer span.End()

	view, err := h.judgingService.Load(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "load submissions failed", "error", err)
		h.writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, view)
}

func (h *Handler) RefreshReview(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RefreshReview")
	defer span.End()

	view, err := h.judgingService.Refresh(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "refresh submissions failed", "error", err)
		h.writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, view)
}

func (h *Handler) SelectQuestion(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SelectQuestion")
	defer span.End()

	questionID := r.PathValue("questionID")
	if _, err := h.judgingService.Load(ctx); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	view, err := h.judgingService.SelectQuestion(questionID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, view)
}

func (h *Handler) SelectSubmission(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SelectSubmission")
	defer span.End()

	view, err := h.judgingService.SelectSubmission(r.PathValue("submissionID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, view)
}

func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UpdateDraft")
	defer span.End()

	var req draftRequest
	if err := h.decodeJSON(ctx, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	view, err := h.judgingService.UpdateDraft(usecase.Draft{Score: req.Score, Feedback: req.Feedback})
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, view)
}

func (h *Handler) CancelReview(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.CancelReview")
	defer span.End()

	view, err := h.judgingService.Cancel()
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, view)
}

func (h *Handler) Decide(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Decide")
	defer span.End()

	var req decisionRequest
	if err := h.decodeJSON(ctx, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	status, err := submission.ParseStatus(req.Status)
	if err != nil || !status.IsDecision() {
		h.writeError(ctx, w, fmt.Errorf("%w: status must be approved or rejected", usecase.ErrInvalidInput))
		return
	}

	judge, _ := identityFromContext(ctx)
	view, err := h.judgingService.Decide(ctx, status)
	if err != nil {
		h.logger.WarnContext(ctx, "judge submission failed", "judge", judge.Username, "status", status, "error", err)
		h.writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, view)
}

func (h *Handler) DownloadSubmission(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.DownloadSubmission")
	defer span.End()

	submissionID := r.PathValue("submissionID")
	result, err := h.downloadService.DownloadSubmission(ctx, submissionID)
	if err != nil {
		h.logger.WarnContext(ctx, "download submission failed", "submission_id", submissionID, "error", err)
		h.writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}
