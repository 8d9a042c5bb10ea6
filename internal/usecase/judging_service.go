package usecase

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/riskibarqy/judging-portal/internal/domain/submission"
	"github.com/riskibarqy/judging-portal/internal/platform/logging"
)

type ReviewState string

const (
	ReviewProblemList      ReviewState = "problem_list"
	ReviewSubmissionList   ReviewState = "submission_list"
	ReviewSubmissionDetail ReviewState = "submission_detail"
)

// Draft is the judge's unsent score and feedback. Score is kept as typed.
type Draft struct {
	Score    string `json:"score"`
	Feedback string `json:"feedback"`
}

// ReviewView is a snapshot of the review flow for rendering.
type ReviewView struct {
	State              ReviewState             `json:"state"`
	Loaded             bool                    `json:"loaded"`
	Questions          []submission.Question   `json:"questions"`
	SelectedQuestion   *submission.Question    `json:"selected_question"`
	Submissions        []submission.Submission `json:"submissions"`
	SelectedSubmission *submission.Submission  `json:"selected_submission"`
	Draft              Draft                   `json:"draft"`
	Error              string                  `json:"error,omitempty"`
}

type invalidator interface {
	Invalidate(ctx context.Context)
}

// JudgingService drives the problem list, submission list and submission
// detail views of one judge.
type JudgingService struct {
	mu     sync.Mutex
	repo   submission.Repository
	logger *logging.Logger

	state              ReviewState
	loaded             bool
	submissions        []submission.Submission
	selectedQuestion   string
	selectedSubmission string
	draft              Draft
	lastErr            string
	// generation advances on Reset; fetches started before it are discarded.
	generation uint64
}

func NewJudgingService(repo submission.Repository, logger *logging.Logger) *JudgingService {
	if logger == nil {
		logger = logging.Default()
	}
	return &JudgingService{
		repo:   repo,
		logger: logger,
		state:  ReviewProblemList,
	}
}

// Load fetches submissions on first use; later calls return the held view.
func (s *JudgingService) Load(ctx context.Context) (ReviewView, error) {
	s.mu.Lock()
	loaded := s.loaded
	s.mu.Unlock()
	if loaded {
		return s.View(), nil
	}
	return s.fetch(ctx, false)
}

// Refresh refetches submissions bypassing any cache.
func (s *JudgingService) Refresh(ctx context.Context) (ReviewView, error) {
	return s.fetch(ctx, true)
}

func (s *JudgingService) fetch(ctx context.Context, bypassCache bool) (ReviewView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JudgingService.fetch")
	defer span.End()

	if inv, ok := s.repo.(invalidator); ok && bypassCache {
		inv.Invalidate(ctx)
	}

	s.mu.Lock()
	generation := s.generation
	s.mu.Unlock()

	items, err := s.repo.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.generation != generation {
		return s.viewLocked(), fmt.Errorf("%w: session changed while submissions were loading", ErrSessionReplaced)
	}
	if err != nil {
		s.lastErr = "Failed to fetch submissions"
		return s.viewLocked(), fmt.Errorf("list submissions: %w", err)
	}

	if s.loaded {
		for _, item := range submission.Regressions(s.submissions, items) {
			s.logger.WarnContext(ctx, "submission status regressed after refetch", "submission_id", item.ID, "status", item.Status)
		}
	}
	s.submissions = items
	s.loaded = true
	s.lastErr = ""

	if s.selectedSubmission != "" {
		if _, ok := s.findLocked(s.selectedSubmission); !ok {
			s.selectedSubmission = ""
			s.draft = Draft{}
			s.state = ReviewSubmissionList
		}
	}
	return s.viewLocked(), nil
}

// SelectQuestion opens the submission list of a question from any state and
// drops the selected submission with its draft.
func (s *JudgingService) SelectQuestion(questionID string) (ReviewView, error) {
	questionID = strings.TrimSpace(questionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		return s.viewLocked(), fmt.Errorf("%w: submissions are not loaded", ErrInvalidTransition)
	}
	found := false
	for _, q := range submission.DistinctQuestions(s.submissions) {
		if q.QuestionID == questionID {
			found = true
			break
		}
	}
	if !found {
		return s.viewLocked(), fmt.Errorf("%w: question=%s", ErrNotFound, questionID)
	}

	s.selectedQuestion = questionID
	s.selectedSubmission = ""
	s.draft = Draft{}
	s.state = ReviewSubmissionList
	return s.viewLocked(), nil
}

// SelectSubmission opens a pending submission of the selected question for
// judging.
func (s *JudgingService) SelectSubmission(submissionID string) (ReviewView, error) {
	submissionID = strings.TrimSpace(submissionID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != ReviewSubmissionList {
		return s.viewLocked(), fmt.Errorf("%w: select submission from %s", ErrInvalidTransition, s.state)
	}
	item, ok := s.findLocked(submissionID)
	if !ok || item.Question.QuestionID != s.selectedQuestion {
		return s.viewLocked(), fmt.Errorf("%w: submission=%s", ErrNotFound, submissionID)
	}
	if !item.Judgeable() {
		return s.viewLocked(), fmt.Errorf("%w: submission=%s status=%s", ErrNotJudgeable, submissionID, item.Status)
	}

	s.selectedSubmission = submissionID
	s.draft = Draft{}
	s.state = ReviewSubmissionDetail
	return s.viewLocked(), nil
}

// UpdateDraft stores the score and feedback typed into the detail form.
func (s *JudgingService) UpdateDraft(draft Draft) (ReviewView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != ReviewSubmissionDetail {
		return s.viewLocked(), fmt.Errorf("%w: no submission is open", ErrInvalidTransition)
	}
	s.draft = draft
	return s.viewLocked(), nil
}

// Cancel leaves the detail view without judging.
func (s *JudgingService) Cancel() (ReviewView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != ReviewSubmissionDetail {
		return s.viewLocked(), fmt.Errorf("%w: cancel from %s", ErrInvalidTransition, s.state)
	}
	s.selectedSubmission = ""
	s.draft = Draft{}
	s.state = ReviewSubmissionList
	return s.viewLocked(), nil
}

// Decide records a verdict for the open submission, refetches the list and
// returns to the submission list. A failed judge call keeps the detail view
// and draft.
func (s *JudgingService) Decide(ctx context.Context, status submission.Status) (ReviewView, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.JudgingService.Decide")
	defer span.End()

	s.mu.Lock()
	if s.state != ReviewSubmissionDetail {
		view := s.viewLocked()
		s.mu.Unlock()
		return view, fmt.Errorf("%w: no submission is open", ErrInvalidTransition)
	}
	submissionID := s.selectedSubmission
	draft := s.draft
	s.mu.Unlock()

	score, err := ParseScore(draft.Score)
	if err != nil {
		return s.View(), err
	}
	decision := submission.Decision{Status: status, Score: score, Feedback: draft.Feedback}
	if err := decision.Validate(); err != nil {
		return s.View(), fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.repo.Judge(ctx, submissionID, decision); err != nil {
		s.mu.Lock()
		s.lastErr = "Failed to judge submission"
		view := s.viewLocked()
		s.mu.Unlock()
		return view, fmt.Errorf("judge submission: %w", err)
	}
	s.logger.InfoContext(ctx, "submission judged", "submission_id", submissionID, "status", status, "scored", score != nil)

	s.mu.Lock()
	if s.selectedSubmission == submissionID {
		s.selectedSubmission = ""
		s.draft = Draft{}
		s.state = ReviewSubmissionList
	}
	s.mu.Unlock()

	view, err := s.fetch(ctx, true)
	if err != nil {
		return view, fmt.Errorf("refresh after judgment: %w", err)
	}
	return view, nil
}

// Reset returns to an unloaded problem list and drops cached submissions, so
// the next Load fetches for whoever is logged in now.
func (s *JudgingService) Reset(ctx context.Context) {
	s.mu.Lock()
	s.generation++
	s.state = ReviewProblemList
	s.loaded = false
	s.submissions = nil
	s.selectedQuestion = ""
	s.selectedSubmission = ""
	s.draft = Draft{}
	s.lastErr = ""
	s.mu.Unlock()

	if inv, ok := s.repo.(invalidator); ok {
		inv.Invalidate(ctx)
	}
}

// View returns the current snapshot.
func (s *JudgingService) View() ReviewView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *JudgingService) viewLocked() ReviewView {
	view := ReviewView{
		State:     s.state,
		Loaded:    s.loaded,
		Questions: submission.DistinctQuestions(s.submissions),
		Draft:     s.draft,
		Error:     s.lastErr,
	}
	if s.selectedQuestion != "" {
		view.Submissions = submission.ForQuestion(s.submissions, s.selectedQuestion)
		for _, q := range view.Questions {
			if q.QuestionID == s.selectedQuestion {
				q := q
				view.SelectedQuestion = &q
				break
			}
		}
	}
	if item, ok := s.findLocked(s.selectedSubmission); ok {
		view.SelectedSubmission = &item
	}
	return view
}

func (s *JudgingService) findLocked(submissionID string) (submission.Submission, bool) {
	if submissionID == "" {
		return submission.Submission{}, false
	}
	for _, item := range s.submissions {
		if item.ID == submissionID {
			return item, true
		}
	}
	return submission.Submission{}, false
}

// ParseScore reads the free-text score input. Empty input means no score.
func ParseScore(raw string) (*float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, fmt.Errorf("%w: score %q is not a number", ErrInvalidInput, raw)
	}
	if v < submission.MinScore || v > submission.MaxScore {
		return nil, fmt.Errorf("%w: score must be between %d and %d", ErrInvalidInput, submission.MinScore, submission.MaxScore)
	}
	return &v, nil
}
