package submission

import (
	"fmt"
	"time"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func ParseStatus(v string) (Status, error) {
	switch Status(v) {
	case StatusPending, StatusApproved, StatusRejected:
		return Status(v), nil
	default:
		return "", fmt.Errorf("unknown submission status %q", v)
	}
}

// CanTransitionTo reports whether a judgment may move a submission from s to
// next. Judged submissions never return to pending.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusPending && (next == StatusApproved || next == StatusRejected)
}

// IsDecision reports whether s is a verdict a judge may record.
func (s Status) IsDecision() bool {
	return s == StatusApproved || s == StatusRejected
}

type Question struct {
	QuestionID      string `json:"question_id"`
	Domain          string `json:"domain"`
	ProblemTitle    string `json:"problem_title"`
	DifficultyLevel string `json:"difficulty_level"`
}

type SubmittedFile struct {
	ID         string    `json:"id"`
	FilePath   string    `json:"file"`
	UploadedAt time.Time `json:"uploaded_at"`
}

type Submission struct {
	ID           string          `json:"id"`
	PlayerName   string          `json:"player_name"`
	SubmittedAt  time.Time       `json:"submitted_at"`
	Status       Status          `json:"status"`
	Score        *float64        `json:"score"`
	Feedback     *string         `json:"feedback"`
	Files        []SubmittedFile `json:"files"`
	Question     Question        `json:"question"`
	SpecialNotes string          `json:"special_notes"`
}

// Judgeable reports whether the submission may be opened for judging.
func (s Submission) Judgeable() bool {
	return s.Status == StatusPending
}

// Decision is the body recorded by the judge endpoint.
type Decision struct {
	Status   Status   `json:"status"`
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
}

const (
	MinScore = 0
	MaxScore = 100
)

func (d Decision) Validate() error {
	if !d.Status.IsDecision() {
		return fmt.Errorf("decision status must be approved or rejected, got %q", d.Status)
	}
	if d.Score != nil && (*d.Score < MinScore || *d.Score > MaxScore) {
		return fmt.Errorf("score must be between %d and %d", MinScore, MaxScore)
	}

	return nil
}

// DistinctQuestions returns the questions referenced by items, deduplicated by
// question id in first-seen order.
func DistinctQuestions(items []Submission) []Question {
	seen := make(map[string]struct{}, len(items))
	out := make([]Question, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.Question.QuestionID]; ok {
			continue
		}
		seen[item.Question.QuestionID] = struct{}{}
		out = append(out, item.Question)
	}

	return out
}

// ForQuestion filters items down to submissions of one question, keeping order.
func ForQuestion(items []Submission, questionID string) []Submission {
	out := make([]Submission, 0)
	for _, item := range items {
		if item.Question.QuestionID == questionID {
			out = append(out, item)
		}
	}

	return out
}

// Regressions lists submissions whose status moved backwards between two
// fetches of the list.
func Regressions(before, after []Submission) []Submission {
	prev := make(map[string]Status, len(before))
	for _, item := range before {
		prev[item.ID] = item.Status
	}

	var out []Submission
	for _, item := range after {
		old, ok := prev[item.ID]
		if !ok || old == item.Status {
			continue
		}
		if !old.CanTransitionTo(item.Status) {
			out = append(out, item)
		}
	}

	return out
}
