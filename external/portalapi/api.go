package portalapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"

	"github.com/riskibarqy/judging-portal/internal/domain/solution"
	"github.com/riskibarqy/judging-portal/internal/domain/submission"
	"github.com/riskibarqy/judging-portal/internal/usecase"
)

// API exposes the authenticated backend endpoints.
type API struct {
	exec *Executor
}

func NewAPI(exec *Executor) *API {
	return &API{exec: exec}
}

// List fetches every submission visible to the judge.
func (a *API) List(ctx context.Context) ([]submission.Submission, error) {
	resp, err := a.exec.Do(ctx, Request{Method: http.MethodGet, Path: pathSubmissions})
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxJSONBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read submissions: %v", usecase.ErrDependencyUnavailable, err)
	}

	var envelope submissionsEnvelope
	if err := sonic.Unmarshal(raw, &envelope); err != nil {
		return nil, crerr.Wrap(err, "decode submissions")
	}

	out := make([]submission.Submission, 0, len(envelope.Submissions))
	for _, item := range envelope.Submissions {
		mapped, err := item.toDomain()
		if err != nil {
			return nil, crerr.Wrapf(err, "decode submission id=%s", item.ID)
		}
		out = append(out, mapped)
	}
	return out, nil
}

// Judge records a verdict for one submission.
func (a *API) Judge(ctx context.Context, submissionID string, decision submission.Decision) error {
	encoded, err := sonic.Marshal(judgeRequest{
		Status:   string(decision.Status),
		Score:    decision.Score,
		Feedback: decision.Feedback,
	})
	if err != nil {
		return crerr.Wrap(err, "marshal judge request")
	}

	resp, err := a.exec.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        pathSubmissions + "/" + url.PathEscape(submissionID) + "/judge/",
		ContentType: "application/json",
		Body:        func() (io.Reader, error) { return bytes.NewReader(encoded), nil },
	})
	if err != nil {
		return fmt.Errorf("judge submission id=%s: %w", submissionID, err)
	}
	drain(resp.Body)
	return nil
}

// SubmitSolution uploads a validated form as multipart. File fields are named
// file_<category>_<index> with the index counted over the whole upload list.
func (a *API) SubmitSolution(ctx context.Context, snap solution.Snapshot) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	contentType, err := writeSolution(buf, snap)
	if err != nil {
		return err
	}

	resp, err := a.exec.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        pathSolutions,
		ContentType: contentType,
		Body:        func() (io.Reader, error) { return bytes.NewReader(buf.B), nil },
	})
	if err != nil {
		return fmt.Errorf("submit solution problem=%s: %w", snap.ProblemID, err)
	}
	drain(resp.Body)
	return nil
}

func writeSolution(w io.Writer, snap solution.Snapshot) (string, error) {
	mw := multipart.NewWriter(w)
	fields := [][2]string{
		{"problemId", snap.ProblemID},
		{"language", snap.Language},
		{"description", snap.Description},
	}
	for _, f := range fields {
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return "", crerr.Wrapf(err, "write field %s", f[0])
		}
	}
	for i, file := range snap.Files {
		part, err := mw.CreateFormFile(solution.FieldName(file, i), file.Name)
		if err != nil {
			return "", crerr.Wrapf(err, "create part for %s", file.Name)
		}
		if _, err := part.Write(file.Data); err != nil {
			return "", crerr.Wrapf(err, "write part for %s", file.Name)
		}
	}
	if err := mw.Close(); err != nil {
		return "", crerr.Wrap(err, "close multipart writer")
	}
	return mw.FormDataContentType(), nil
}

// Download streams a submitted file. The caller closes the returned body.
func (a *API) Download(ctx context.Context, filePath string) (io.ReadCloser, string, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return nil, "", fmt.Errorf("%w: file path is required", usecase.ErrInvalidInput)
	}
	if !strings.HasPrefix(filePath, "/") {
		filePath = "/" + filePath
	}

	resp, err := a.exec.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   pathDownload + filePath,
		Header: http.Header{"Accept": []string{"*/*"}},
	})
	if err != nil {
		return nil, "", fmt.Errorf("download %s: %w", filePath, err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return resp.Body, contentType, nil
}
