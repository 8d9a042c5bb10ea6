package httpapi

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/valyala/bytebufferpool"

	"github.com/riskibarqy/judging-portal/internal/domain/solution"
	"github.com/riskibarqy/judging-portal/internal/usecase"
)

type draftFieldsRequest struct {
	Language    *string `json:"language"`
	Description *string `json:"description"`
}

type submitResponse struct {
	Notification usecase.Notification `json:"notification"`
}

func (h *Handler) GetSolutionOptions(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetSolutionOptions")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, h.solutionService.Options())
}

func (h *Handler) GetSolutionDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetSolutionDraft")
	defer span.End()

	draft, err := h.solutionService.Draft(r.PathValue("problemID"))
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, draft)
}

func (h *Handler) UpdateSolutionDraft(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UpdateSolutionDraft")
	defer span.End()

	problemID := r.PathValue("problemID")
	var req draftFieldsRequest
	if err := h.decodeJSON(ctx, r, &req); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	form, err := h.solutionService.Form(problemID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if req.Language != nil {
		form.SetLanguage(*req.Language)
	}
	if req.Description != nil {
		form.SetDescription(*req.Description)
	}

	h.writeDraft(ctx, w, problemID)
}

func (h *Handler) AttachSolutionFiles(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AttachSolutionFiles")
	defer span.End()

	problemID := r.PathValue("problemID")
	form, err := h.solutionService.Form(problemID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if err := h.applyMultipart(ctx, w, r, form); err != nil {
		h.writeError(ctx, w, err)
		return
	}

	h.writeDraft(ctx, w, problemID)
}

func (h *Handler) RemoveSolutionFile(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RemoveSolutionFile")
	defer span.End()

	problemID := r.PathValue("problemID")
	category, err := solution.ParseCategory(r.PathValue("category"))
	if err != nil {
		h.writeError(ctx, w, fmt.Errorf("%w: %v", usecase.ErrInvalidInput, err))
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		h.writeError(ctx, w, fmt.Errorf("%w: file index must be a number", usecase.ErrInvalidInput))
		return
	}

	form, err := h.solutionService.Form(problemID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if err := form.RemoveFile(category, index); err != nil {
		h.writeError(ctx, w, fmt.Errorf("%w: %v", usecase.ErrNotFound, err))
		return
	}

	h.writeDraft(ctx, w, problemID)
}

// SubmitSolution applies an optional multipart body to the draft and
// submits it.
func (h *Handler) SubmitSolution(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.SubmitSolution")
	defer span.End()

	problemID := r.PathValue("problemID")
	form, err := h.solutionService.Form(problemID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := h.applyMultipart(ctx, w, r, form); err != nil {
			h.writeError(ctx, w, err)
			return
		}
	}

	notification, err := h.solutionService.Submit(ctx, problemID)
	if err != nil {
		player, _ := identityFromContext(ctx)
		h.logger.WarnContext(ctx, "submit solution failed", "problem_id", problemID, "player", player.Username, "error", err)
		h.writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusCreated, submitResponse{Notification: notification})
}

func (h *Handler) writeDraft(ctx context.Context, w http.ResponseWriter, problemID string) {
	draft, err := h.solutionService.Draft(problemID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, draft)
}

// applyMultipart copies language, description and files from a multipart
// body into form. File parts are named after their category.
func (h *Handler) applyMultipart(ctx context.Context, w http.ResponseWriter, r *http.Request, form *solution.Form) error {
	_, span := startSpan(ctx, "httpapi.Handler.applyMultipart")
	defer span.End()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("%w: upload exceeds %d bytes", usecase.ErrInvalidInput, tooLarge.Limit)
		}
		return fmt.Errorf("%w: invalid multipart body: %v", usecase.ErrInvalidInput, err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	if values, ok := r.MultipartForm.Value["language"]; ok && len(values) > 0 {
		form.SetLanguage(values[0])
	}
	if values, ok := r.MultipartForm.Value["description"]; ok && len(values) > 0 {
		form.SetDescription(values[0])
	}

	for _, category := range solution.Categories {
		headers := r.MultipartForm.File[string(category)]
		if len(headers) == 0 {
			continue
		}
		files := make([]solution.File, 0, len(headers))
		for _, header := range headers {
			file, err := readUpload(header)
			if err != nil {
				return fmt.Errorf("%w: read %s: %v", usecase.ErrInvalidInput, header.Filename, err)
			}
			files = append(files, file)
		}
		if err := form.AddFiles(category, files...); err != nil {
			return err
		}
	}
	return nil
}

func readUpload(header *multipart.FileHeader) (solution.File, error) {
	src, err := header.Open()
	if err != nil {
		return solution.File{}, err
	}
	defer src.Close()

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)
	if _, err := buf.ReadFrom(src); err != nil {
		return solution.File{}, err
	}

	return solution.File{
		Name: header.Filename,
		Data: append([]byte(nil), buf.B...),
	}, nil
}
