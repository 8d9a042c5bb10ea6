package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/riskibarqy/judging-portal/internal/domain/submission"
	submissionmock "github.com/riskibarqy/judging-portal/internal/mocks/domain/submission"
	"github.com/riskibarqy/judging-portal/internal/platform/logging"
)

func sampleSubmissions() []submission.Submission {
	q1 := submission.Question{QuestionID: "q1", Domain: "Algorithms", ProblemTitle: "Two Sum"}
	q2 := submission.Question{QuestionID: "q2", Domain: "Web", ProblemTitle: "REST API"}
	return []submission.Submission{
		{ID: "s1", PlayerName: "bob", Status: submission.StatusPending, Question: q1},
		{ID: "s2", PlayerName: "carol", Status: submission.StatusApproved, Question: q1},
		{ID: "s3", PlayerName: "dave", Status: submission.StatusPending, Question: q2},
	}
}

func loadedJudging(t *testing.T) (*JudgingService, *submissionmock.Repository) {
	t.Helper()

	repo := submissionmock.NewRepository(t)
	repo.On("List", mock.Anything).Return(sampleSubmissions(), nil).Once()

	service := NewJudgingService(repo, logging.NewNop())
	view, err := service.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if view.State != ReviewProblemList || len(view.Questions) != 2 {
		t.Fatalf("unexpected initial view: %+v", view)
	}
	return service, repo
}

func TestJudgingService_SelectThenCancelHasNoSideEffects(t *testing.T) {
	t.Parallel()

	service, _ := loadedJudging(t)

	view, err := service.SelectQuestion("q1")
	if err != nil {
		t.Fatalf("select question: %v", err)
	}
	if view.State != ReviewSubmissionList || len(view.Submissions) != 2 {
		t.Fatalf("unexpected submission list: %+v", view)
	}

	if _, err := service.SelectSubmission("s1"); err != nil {
		t.Fatalf("select submission: %v", err)
	}
	if _, err := service.UpdateDraft(Draft{Score: "90", Feedback: "nice"}); err != nil {
		t.Fatalf("update draft: %v", err)
	}

	view, err = service.Cancel()
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if view.State != ReviewSubmissionList || view.SelectedQuestion == nil || view.SelectedQuestion.QuestionID != "q1" {
		t.Fatalf("expected submission list for q1, got %+v", view)
	}
	if view.SelectedSubmission != nil || view.Draft != (Draft{}) {
		t.Fatalf("cancel must clear selection and draft, got %+v", view)
	}
}

func TestJudgingService_OnlyPendingIsJudgeable(t *testing.T) {
	t.Parallel()

	service, _ := loadedJudging(t)
	if _, err := service.SelectQuestion("q1"); err != nil {
		t.Fatalf("select question: %v", err)
	}

	if _, err := service.SelectSubmission("s2"); !errors.Is(err, ErrNotJudgeable) {
		t.Fatalf("expected ErrNotJudgeable, got %v", err)
	}
	if _, err := service.SelectSubmission("s3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("submission of another question must not open, got %v", err)
	}
	if _, err := service.Cancel(); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestJudgingService_DecideJudgesAndRefetches(t *testing.T) {
	t.Parallel()

	service, repo := loadedJudging(t)
	judged := sampleSubmissions()
	judged[0].Status = submission.StatusApproved

	repo.On("Judge", mock.Anything, "s1", mock.MatchedBy(func(d submission.Decision) bool {
		return d.Status == submission.StatusApproved && d.Score != nil && *d.Score == 92.5 && d.Feedback == "great"
	})).Return(nil).Once()
	repo.On("List", mock.Anything).Return(judged, nil).Once()

	mustSelect(t, service, "q1", "s1")
	if _, err := service.UpdateDraft(Draft{Score: " 92.5 ", Feedback: "great"}); err != nil {
		t.Fatalf("update draft: %v", err)
	}

	view, err := service.Decide(context.Background(), submission.StatusApproved)
	if err != nil {
		t.Fatalf("decide: %v", err)
	}
	if view.State != ReviewSubmissionList || view.SelectedSubmission != nil || view.Draft != (Draft{}) {
		t.Fatalf("expected reset submission list, got %+v", view)
	}
	if view.Submissions[0].Status != submission.StatusApproved {
		t.Fatalf("expected refetched status, got %+v", view.Submissions[0])
	}
}

func TestJudgingService_DecideFailureKeepsDraft(t *testing.T) {
	t.Parallel()

	service, repo := loadedJudging(t)
	repo.On("Judge", mock.Anything, "s1", mock.Anything).Return(ErrDependencyUnavailable).Once()

	mustSelect(t, service, "q1", "s1")
	if _, err := service.UpdateDraft(Draft{Score: "40", Feedback: "missing tests"}); err != nil {
		t.Fatalf("update draft: %v", err)
	}

	view, err := service.Decide(context.Background(), submission.StatusRejected)
	if !errors.Is(err, ErrDependencyUnavailable) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if view.State != ReviewSubmissionDetail || view.Draft.Feedback != "missing tests" || view.Error == "" {
		t.Fatalf("expected detail view with draft and error, got %+v", view)
	}
}

func TestJudgingService_DecideRejectsBadScoreWithoutCall(t *testing.T) {
	t.Parallel()

	service, _ := loadedJudging(t)
	mustSelect(t, service, "q1", "s1")

	for _, score := range []string{"abc", "101", "-1"} {
		if _, err := service.UpdateDraft(Draft{Score: score}); err != nil {
			t.Fatalf("update draft: %v", err)
		}
		if _, err := service.Decide(context.Background(), submission.StatusApproved); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("score %q: expected ErrInvalidInput, got %v", score, err)
		}
	}
}

func TestJudgingService_LoadFailureRecordsError(t *testing.T) {
	t.Parallel()

	repo := submissionmock.NewRepository(t)
	repo.On("List", mock.Anything).Return(nil, ErrDependencyUnavailable).Once()
	repo.On("List", mock.Anything).Return(sampleSubmissions(), nil).Once()
	service := NewJudgingService(repo, logging.NewNop())

	view, err := service.Load(context.Background())
	if !errors.Is(err, ErrDependencyUnavailable) || view.Error == "" || view.Loaded {
		t.Fatalf("unexpected failed load: %+v err=%v", view, err)
	}

	view, err = service.Refresh(context.Background())
	if err != nil || !view.Loaded || view.Error != "" {
		t.Fatalf("unexpected retry: %+v err=%v", view, err)
	}
}

func TestJudgingService_ResetForgetsPreviousJudge(t *testing.T) {
	t.Parallel()

	service, repo := loadedJudging(t)
	if _, err := service.SelectQuestion("q1"); err != nil {
		t.Fatalf("select question: %v", err)
	}
	if _, err := service.SelectSubmission("s1"); err != nil {
		t.Fatalf("select submission: %v", err)
	}

	service.Reset(context.Background())
	view := service.View()
	if view.State != ReviewProblemList || view.Loaded || len(view.Questions) != 0 || view.SelectedSubmission != nil {
		t.Fatalf("expected empty problem list after reset, got %+v", view)
	}

	repo.On("List", mock.Anything).Return(sampleSubmissions()[:1], nil).Once()
	view, err := service.Load(context.Background())
	if err != nil {
		t.Fatalf("load after reset: %v", err)
	}
	if !view.Loaded || len(view.Questions) != 1 {
		t.Fatalf("load after reset must refetch, got %+v", view)
	}
}

func TestJudgingService_ResetDiscardsInFlightFetch(t *testing.T) {
	t.Parallel()

	listing := make(chan struct{})
	release := make(chan struct{})
	repo := submissionmock.NewRepository(t)
	repo.On("List", mock.Anything).Run(func(mock.Arguments) {
		close(listing)
		<-release
	}).Return(sampleSubmissions(), nil).Once()
	service := NewJudgingService(repo, logging.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := service.Load(context.Background())
		done <- err
	}()
	<-listing
	service.Reset(context.Background())
	close(release)

	if err := <-done; !errors.Is(err, ErrSessionReplaced) {
		t.Fatalf("expected ErrSessionReplaced, got %v", err)
	}
	if view := service.View(); view.Loaded || len(view.Questions) != 0 {
		t.Fatalf("stale submissions were stored: %+v", view)
	}
}

func TestParseScore(t *testing.T) {
	t.Parallel()

	if v, err := ParseScore(""); v != nil || err != nil {
		t.Fatalf("empty score must be null, got %v %v", v, err)
	}
	if v, err := ParseScore("100"); err != nil || *v != 100 {
		t.Fatalf("unexpected parse: %v %v", v, err)
	}
	if _, err := ParseScore("NaN"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("NaN must be rejected, got %v", err)
	}
}

func mustSelect(t *testing.T, service *JudgingService, questionID, submissionID string) {
	t.Helper()
	if _, err := service.SelectQuestion(questionID); err != nil {
		t.Fatalf("select question: %v", err)
	}
	if _, err := service.SelectSubmission(submissionID); err != nil {
		t.Fatalf("select submission: %v", err)
	}
}
