package portalapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/judging-portal/internal/domain/session"
	"github.com/riskibarqy/judging-portal/internal/domain/solution"
	"github.com/riskibarqy/judging-portal/internal/domain/submission"
	"github.com/riskibarqy/judging-portal/internal/platform/logging"
	"github.com/riskibarqy/judging-portal/internal/usecase"
)

func newTestAPI(t *testing.T, handler http.Handler) (*API, *Client) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient(ClientConfig{HTTPClient: srv.Client(), BaseURL: srv.URL, Logger: logging.NewNop()})
	exec := NewExecutor(client, newFakeSession("A1", "R1"), nil, logging.NewNop())
	return NewAPI(exec), client
}

func TestAPI_ListDecodesSubmissions(t *testing.T) {
	t.Parallel()

	api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/submissions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"submissions":[{
			"id": 12,
			"player_name": "bob",
			"submitted_at": "2026-10-01T08:30:00.123456Z",
			"status": "pending",
			"score": null,
			"feedback": null,
			"files": [{"id": 3, "file": "/media/solutions/main.go", "uploaded_at": "2026-10-01T08:30:00Z"}],
			"question": {"question_id": 7, "domain": "Algorithms", "problem_title": "Two Sum", "difficulty_level": "easy"},
			"special_notes": "uses a hash map"
		}]}`)
	}))

	items, err := api.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one submission, got %d", len(items))
	}
	got := items[0]
	if got.ID != "12" || got.Question.QuestionID != "7" || got.Status != submission.StatusPending {
		t.Fatalf("unexpected submission: %+v", got)
	}
	if got.Score != nil || got.Feedback != nil {
		t.Fatalf("expected null score and feedback, got %+v", got)
	}
	if len(got.Files) != 1 || got.Files[0].FilePath != "/media/solutions/main.go" || got.Files[0].ID != "3" {
		t.Fatalf("unexpected files: %+v", got.Files)
	}
	if got.SubmittedAt.IsZero() || got.SpecialNotes != "uses a hash map" {
		t.Fatalf("unexpected metadata: %+v", got)
	}
}

func TestAPI_JudgeSendsDecision(t *testing.T) {
	t.Parallel()

	var received, path atomic.Value
	api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		var body judgeRequest
		if err := sonic.Unmarshal(raw, &body); err != nil {
			t.Errorf("decode judge body: %v", err)
		}
		received.Store(body)
		w.WriteHeader(http.StatusOK)
	}))

	score := 87.5
	err := api.Judge(context.Background(), "12", submission.Decision{
		Status:   submission.StatusApproved,
		Score:    &score,
		Feedback: "clean solution",
	})
	if err != nil {
		t.Fatalf("judge: %v", err)
	}
	if got, _ := path.Load().(string); got != "/api/submissions/12/judge/" {
		t.Fatalf("unexpected path %q", got)
	}
	body, _ := received.Load().(judgeRequest)
	if body.Status != "approved" || body.Score == nil || *body.Score != 87.5 || body.Feedback != "clean solution" {
		t.Fatalf("unexpected judge body: %+v", body)
	}
}

func TestAPI_SubmitSolutionWritesMultipart(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path != "/player/solutions/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("problemId") != "p-1" || r.FormValue("language") != "go" || r.FormValue("description") != "twelve chars" {
			t.Errorf("unexpected fields: %+v", r.MultipartForm.Value)
		}
		for _, field := range []string{"file_code_0", "file_documentation_1"} {
			if _, ok := r.MultipartForm.File[field]; !ok {
				t.Errorf("missing file field %s: %+v", field, r.MultipartForm.File)
			}
		}
		w.WriteHeader(http.StatusCreated)
	}))

	err := api.SubmitSolution(context.Background(), solution.Snapshot{
		ProblemID:   "p-1",
		Language:    "go",
		Description: "twelve chars",
		Files: []solution.File{
			{Name: "main.go", Category: solution.CategoryCode, Data: []byte("package main")},
			{Name: "README.md", Category: solution.CategoryDocumentation, Data: []byte("# notes")},
		},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("expected exactly one multipart POST, got %d", got)
	}
}

func TestAPI_DownloadStreamsBody(t *testing.T) {
	t.Parallel()

	api, _ := newTestAPI(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/download/media/solutions/main.go" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/x-go")
		_, _ = io.WriteString(w, "package main")
	}))

	body, contentType, err := api.Download(context.Background(), "/media/solutions/main.go")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer body.Close()
	raw, _ := io.ReadAll(body)
	if string(raw) != "package main" || contentType != "text/x-go" {
		t.Fatalf("unexpected download %q %q", raw, contentType)
	}

	if _, _, err := api.Download(context.Background(), " "); !errors.Is(err, usecase.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty path, got %v", err)
	}
}

func TestClient_ObtainTokensAndLogout(t *testing.T) {
	t.Parallel()

	var logoutCookies atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token/", func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(raw), `"password":"secret"`) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"access":"A1","refresh":"R1"}`)
	})
	mux.HandleFunc("POST /api/logout", func(w http.ResponseWriter, r *http.Request) {
		access, _ := r.Cookie("access")
		refresh, _ := r.Cookie("refresh")
		if access != nil && refresh != nil {
			logoutCookies.Store(access.Value + "/" + refresh.Value)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	_, client := newTestAPI(t, mux)

	pair, err := client.ObtainTokens(context.Background(), session.Credentials{Username: "alice", Password: "secret"})
	if err != nil {
		t.Fatalf("obtain tokens: %v", err)
	}
	if pair.Access != "A1" || pair.Refresh != "R1" {
		t.Fatalf("unexpected pair: %+v", pair)
	}

	_, err = client.ObtainTokens(context.Background(), session.Credentials{Username: "alice", Password: "wrong"})
	if !errors.Is(err, usecase.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	if err := client.Logout(context.Background(), pair); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if got, _ := logoutCookies.Load().(string); got != "A1/R1" {
		t.Fatalf("expected logout to carry both cookies, got %q", got)
	}
}
