package portalapi

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"

	"github.com/riskibarqy/judging-portal/internal/domain/submission"
)

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

type judgeRequest struct {
	Status   string   `json:"status"`
	Score    *float64 `json:"score"`
	Feedback string   `json:"feedback"`
}

type submissionsEnvelope struct {
	Submissions []submissionDTO `json:"submissions"`
}

// wireID accepts both numeric and string identifiers.
type wireID string

func (id *wireID) UnmarshalJSON(raw []byte) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		*id = ""
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := sonic.Unmarshal(raw, &s); err != nil {
			return err
		}
		*id = wireID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(raw), 64); err != nil {
		return err
	}
	*id = wireID(raw)
	return nil
}

type questionDTO struct {
	QuestionID      wireID `json:"question_id"`
	Domain          string `json:"domain"`
	ProblemTitle    string `json:"problem_title"`
	DifficultyLevel string `json:"difficulty_level"`
}

type fileDTO struct {
	ID         wireID `json:"id"`
	File       string `json:"file"`
	UploadedAt string `json:"uploaded_at"`
}

type submissionDTO struct {
	ID           wireID      `json:"id"`
	PlayerName   string      `json:"player_name"`
	SubmittedAt  string      `json:"submitted_at"`
	Status       string      `json:"status"`
	Score        *float64    `json:"score"`
	Feedback     *string     `json:"feedback"`
	Files        []fileDTO   `json:"files"`
	Question     questionDTO `json:"question"`
	SpecialNotes *string     `json:"special_notes"`
}

func (d submissionDTO) toDomain() (submission.Submission, error) {
	status, err := submission.ParseStatus(strings.ToLower(strings.TrimSpace(d.Status)))
	if err != nil {
		return submission.Submission{}, err
	}

	files := make([]submission.SubmittedFile, 0, len(d.Files))
	for _, f := range d.Files {
		files = append(files, submission.SubmittedFile{
			ID:         string(f.ID),
			FilePath:   f.File,
			UploadedAt: parseWireTime(f.UploadedAt),
		})
	}

	notes := ""
	if d.SpecialNotes != nil {
		notes = *d.SpecialNotes
	}

	return submission.Submission{
		ID:          string(d.ID),
		PlayerName:  d.PlayerName,
		SubmittedAt: parseWireTime(d.SubmittedAt),
		Status:      status,
		Score:       d.Score,
		Feedback:    d.Feedback,
		Files:       files,
		Question: submission.Question{
			QuestionID:      string(d.Question.QuestionID),
			Domain:          d.Question.Domain,
			ProblemTitle:    d.Question.ProblemTitle,
			DifficultyLevel: d.Question.DifficultyLevel,
		},
		SpecialNotes: notes,
	}, nil
}

var wireTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
}

func parseWireTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range wireTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
