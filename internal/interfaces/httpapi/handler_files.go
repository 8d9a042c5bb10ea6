package httpapi

import (
	"io"
	"mime"
	"net/http"
)

// GetFile streams one submitted file through the portal session.
func (h *Handler) GetFile(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetFile")
	defer span.End()

	filePath := r.URL.Query().Get("path")
	file, err := h.downloadService.Open(ctx, filePath)
	if err != nil {
		h.logger.WarnContext(ctx, "open submitted file failed", "path", filePath, "error", err)
		h.writeError(ctx, w, err)
		return
	}
	defer file.Body.Close()

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, file.Body); err != nil {
		h.logger.WarnContext(ctx, "stream submitted file interrupted", "path", filePath, "error", err)
	}
}
