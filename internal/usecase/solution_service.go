package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"

	"github.com/riskibarqy/judging-portal/internal/domain/solution"
	"github.com/riskibarqy/judging-portal/internal/platform/logging"
)

const (
	MessageSubmitSuccess = "Your solution has been submitted successfully."
	MessageSubmitFailure = "Failed to submit solution. Please try again."
)

// SolutionSubmitter uploads a packaged solution.
type SolutionSubmitter interface {
	SubmitSolution(ctx context.Context, snap solution.Snapshot) error
}

type Notification struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Variant     string `json:"variant,omitempty"`
}

// SolutionService keeps one draft form per problem and submits it.
type SolutionService struct {
	mu        sync.Mutex
	submitter SolutionSubmitter
	limits    solution.Limits
	validate  *validator.Validate
	logger    *logging.Logger
	forms     map[string]*solution.Form
}

func NewSolutionService(submitter SolutionSubmitter, limits solution.Limits, validate *validator.Validate, logger *logging.Logger) *SolutionService {
	if logger == nil {
		logger = logging.Default()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SolutionService{
		submitter: submitter,
		limits:    limits,
		validate:  validate,
		logger:    logger,
		forms:     make(map[string]*solution.Form),
	}
}

// Form returns the draft form of a problem, creating it on first use.
func (s *SolutionService) Form(problemID string) (*solution.Form, error) {
	problemID = strings.TrimSpace(problemID)
	if problemID == "" {
		return nil, fmt.Errorf("%w: problem id is required", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	form, ok := s.forms[problemID]
	if !ok {
		form = solution.NewForm(problemID, s.limits, s.validate)
		s.forms[problemID] = form
	}
	return form, nil
}

// Submit validates and uploads the draft of a problem. Validation failures
// never reach the network, and only one submit per form runs at a time. On
// success the form is reset unless it was edited during the upload; on
// upload failure it is kept for another attempt.
func (s *SolutionService) Submit(ctx context.Context, problemID string) (Notification, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SolutionService.Submit")
	defer span.End()

	form, err := s.Form(problemID)
	if err != nil {
		return Notification{}, err
	}

	snap, err := form.BeginSubmit()
	if err != nil {
		var verr *solution.ValidationError
		switch {
		case errors.Is(err, solution.ErrSubmitInProgress):
			return Notification{}, fmt.Errorf("problem=%s: %w", problemID, err)
		case errors.As(err, &verr):
			return Notification{}, fmt.Errorf("%w: %w", ErrInvalidInput, verr)
		default:
			return Notification{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}

	var total int64
	for _, f := range snap.Files {
		total += f.Size()
	}

	if err := s.submitter.SubmitSolution(ctx, snap); err != nil {
		form.FinishSubmit(false)
		s.logger.WarnContext(ctx, "submit solution failed",
			"problem_id", snap.ProblemID,
			"files", len(snap.Files),
			"size", humanize.Bytes(uint64(total)),
			"error", err,
		)
		return Notification{Title: "Error", Description: MessageSubmitFailure, Variant: "destructive"},
			fmt.Errorf("submit solution: %w", err)
	}

	if !form.FinishSubmit(true) {
		s.logger.InfoContext(ctx, "form edited during upload, keeping edits", "problem_id", snap.ProblemID)
	}
	s.logger.InfoContext(ctx, "solution submitted",
		"problem_id", snap.ProblemID,
		"language", snap.Language,
		"files", len(snap.Files),
		"size", humanize.Bytes(uint64(total)),
	)
	return Notification{Title: "Success", Description: MessageSubmitSuccess}, nil
}

// Reset drops every draft form.
func (s *SolutionService) Reset(context.Context) {
	s.mu.Lock()
	s.forms = make(map[string]*solution.Form)
	s.mu.Unlock()
}

// FileSummary describes an attached file for display.
type FileSummary struct {
	Name     string            `json:"name"`
	Category solution.Category `json:"category"`
	Size     string            `json:"size"`
}

type FormView struct {
	ProblemID   string        `json:"problem_id"`
	Language    string        `json:"language"`
	Description string        `json:"description"`
	Files       []FileSummary `json:"files"`
}

// Draft describes the held form of a problem.
func (s *SolutionService) Draft(problemID string) (FormView, error) {
	form, err := s.Form(problemID)
	if err != nil {
		return FormView{}, err
	}
	snap := form.Snapshot()

	files := make([]FileSummary, 0, len(snap.Files))
	for _, f := range snap.Files {
		files = append(files, FileSummary{Name: f.Name, Category: f.Category, Size: humanize.Bytes(uint64(f.Size()))})
	}
	return FormView{
		ProblemID:   snap.ProblemID,
		Language:    snap.Language,
		Description: snap.Description,
		Files:       files,
	}, nil
}

// FormOptions lists what the form accepts.
type FormOptions struct {
	Languages  []solution.Language            `json:"languages"`
	Extensions map[solution.Category][]string `json:"extensions"`
	Limits     solution.Limits                `json:"limits"`
}

func (s *SolutionService) Options() FormOptions {
	ext := make(map[solution.Category][]string, len(solution.Categories))
	for _, c := range solution.Categories {
		ext[c] = solution.AcceptedExtensions(c)
	}
	return FormOptions{
		Languages:  append([]solution.Language(nil), solution.Languages...),
		Extensions: ext,
		Limits:     solution.NormalizeLimits(s.limits),
	}
}
