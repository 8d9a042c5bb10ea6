package solution

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrSubmitInProgress = errors.New("a submission of this form is already in progress")
)

const (
	MessageLanguageRequired = "Please select a programming language"
	MessageLanguageUnknown  = "Please select a supported programming language"
	MessageProblemRequired  = "Problem id is required"
	MessageCodeFileRequired = "You must upload at least one code file"
)

// ValidationError carries one message per invalid form field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid solution form: " + strings.Join(parts, "; ")
}

type fields struct {
	ProblemID   string `validate:"required"`
	Language    string
	Description string
}

// Form is the participant's draft solution. Files are kept in one list whose
// order decides the multipart field index; changing a category moves that
// category's files to the end.
type Form struct {
	mu       sync.Mutex
	validate *validator.Validate
	limits   Limits

	problemID   string
	language    string
	description string
	files       []File

	// revision counts edits; a successful submit only clears the form when
	// nothing changed since BeginSubmit.
	revision   uint64
	submitting bool
	submitRev  uint64
}

func NewForm(problemID string, limits Limits, validate *validator.Validate) *Form {
	if validate == nil {
		validate = validator.New()
	}
	return &Form{
		validate:  validate,
		limits:    NormalizeLimits(limits),
		problemID: problemID,
	}
}

func (f *Form) SetLanguage(language string) {
	f.mu.Lock()
	f.language = strings.TrimSpace(language)
	f.revision++
	f.mu.Unlock()
}

func (f *Form) SetDescription(description string) {
	f.mu.Lock()
	f.description = description
	f.revision++
	f.mu.Unlock()
}

// AddFiles attaches files to category. The documentation slot is replaced by
// the newest file; other categories append and drop anything past their cap.
// A batch containing a file with a foreign extension is rejected whole.
func (f *Form) AddFiles(category Category, files ...File) error {
	if _, err := ParseCategory(string(category)); err != nil {
		return err
	}
	for _, file := range files {
		if !category.Accepts(file.Name) {
			return fmt.Errorf("%w: %s is not accepted as %s", ErrUnsupportedFile, file.Name, category)
		}
	}
	if len(files) == 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	incoming := make([]File, 0, len(files))
	for _, file := range files {
		file.Category = category
		incoming = append(incoming, file)
	}

	var group []File
	if limit := f.limits.MaxFiles(category); limit == 1 {
		group = incoming[len(incoming)-1:]
	} else {
		group = append(f.filesOfLocked(category), incoming...)
		if len(group) > limit {
			group = group[:limit]
		}
	}
	f.replaceGroupLocked(category, group)
	return nil
}

// RemoveFile drops the index-th file of category.
func (f *Form) RemoveFile(category Category, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	group := f.filesOfLocked(category)
	if index < 0 || index >= len(group) {
		return fmt.Errorf("no %s file at index %d", category, index)
	}
	group = append(group[:index], group[index+1:]...)
	f.replaceGroupLocked(category, group)
	return nil
}

// Files returns the attachments in upload order.
func (f *Form) Files() []File {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]File(nil), f.files...)
}

func (f *Form) FilesOf(category Category) []File {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filesOfLocked(category)
}

// Validate checks the form without touching the network.
func (f *Form) Validate() error {
	return f.check(f.Snapshot())
}

// BeginSubmit validates the form and marks it as being submitted. The returned
// snapshot is what gets uploaded; a second BeginSubmit fails with
// ErrSubmitInProgress until FinishSubmit is called.
func (f *Form) BeginSubmit() (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.submitting {
		return Snapshot{}, ErrSubmitInProgress
	}
	snap := f.snapshotLocked()
	if err := f.check(snap); err != nil {
		return Snapshot{}, err
	}
	f.submitting = true
	f.submitRev = f.revision
	return snap, nil
}

// FinishSubmit ends the submit started by BeginSubmit. After a successful
// upload the form is cleared unless it was edited in the meantime; it reports
// whether the clear happened.
func (f *Form) FinishSubmit(uploaded bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitting = false
	if !uploaded || f.revision != f.submitRev {
		return false
	}
	f.resetLocked()
	return true
}

func (f *Form) check(snap Snapshot) error {
	problems := make(map[string]string)

	if err := f.validate.Struct(fields{ProblemID: snap.ProblemID}); err != nil {
		problems["problemId"] = MessageProblemRequired
	}
	if snap.Language == "" {
		problems["language"] = MessageLanguageRequired
	} else if err := f.validate.Var(snap.Language, languageTag); err != nil {
		problems["language"] = MessageLanguageUnknown
	}
	if err := f.validate.Var(snap.Description, fmt.Sprintf("min=%d", f.limits.DescriptionMin)); err != nil {
		problems["description"] = fmt.Sprintf("Description must be at least %d characters", f.limits.DescriptionMin)
	}

	hasCode := false
	for _, file := range snap.Files {
		if file.Category == CategoryCode {
			hasCode = true
			break
		}
	}
	if !hasCode {
		problems["files"] = MessageCodeFileRequired
	}

	if len(problems) > 0 {
		return &ValidationError{Fields: problems}
	}
	return nil
}

// Snapshot is an immutable copy of the form used for packaging.
type Snapshot struct {
	ProblemID   string
	Language    string
	Description string
	Files       []File
}

func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

func (f *Form) snapshotLocked() Snapshot {
	return Snapshot{
		ProblemID:   f.problemID,
		Language:    f.language,
		Description: f.description,
		Files:       append([]File(nil), f.files...),
	}
}

// Reset clears every field except the problem id.
func (f *Form) Reset() {
	f.mu.Lock()
	f.resetLocked()
	f.mu.Unlock()
}

func (f *Form) resetLocked() {
	f.language = ""
	f.description = ""
	f.files = nil
	f.revision++
}

func (f *Form) Limits() Limits {
	return f.limits
}

func (f *Form) filesOfLocked(category Category) []File {
	out := make([]File, 0, len(f.files))
	for _, file := range f.files {
		if file.Category == category {
			out = append(out, file)
		}
	}
	return out
}

func (f *Form) replaceGroupLocked(category Category, group []File) {
	next := make([]File, 0, len(f.files)+len(group))
	for _, file := range f.files {
		if file.Category != category {
			next = append(next, file)
		}
	}
	f.files = append(next, group...)
	f.revision++
}

// FieldName is the multipart field for the index-th file of the upload list.
func FieldName(file File, index int) string {
	return fmt.Sprintf("file_%s_%d", file.Category, index)
}
