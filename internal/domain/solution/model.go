package solution

import (
	"fmt"
	"path/filepath"
	"strings"
)

type Category string

const (
	CategoryCode          Category = "code"
	CategoryDocumentation Category = "documentation"
	CategoryAdditional    Category = "additional"
)

// Categories lists file groups in the order the form renders them.
var Categories = []Category{CategoryCode, CategoryDocumentation, CategoryAdditional}

func ParseCategory(v string) (Category, error) {
	switch Category(v) {
	case CategoryCode, CategoryDocumentation, CategoryAdditional:
		return Category(v), nil
	default:
		return "", fmt.Errorf("unknown file category %q", v)
	}
}

var acceptedExtensions = map[Category][]string{
	CategoryCode:          {".js", ".ts", ".py", ".java", ".cpp", ".c", ".go", ".rs"},
	CategoryDocumentation: {".pdf", ".doc", ".docx", ".txt", ".md"},
	CategoryAdditional:    {".zip", ".rar", ".pdf", ".doc", ".docx", ".txt", ".md", ".jpg", ".png"},
}

// AcceptedExtensions returns a copy of the extensions allowed for c.
func AcceptedExtensions(c Category) []string {
	return append([]string(nil), acceptedExtensions[c]...)
}

func (c Category) Accepts(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return false
	}
	for _, accepted := range acceptedExtensions[c] {
		if ext == accepted {
			return true
		}
	}
	return false
}

type Language struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var Languages = []Language{
	{Value: "javascript", Label: "JavaScript"},
	{Value: "typescript", Label: "TypeScript"},
	{Value: "python", Label: "Python"},
	{Value: "java", Label: "Java"},
	{Value: "cpp", Label: "C++"},
	{Value: "go", Label: "Go"},
	{Value: "rust", Label: "Rust"},
}

// languageTag is the validator oneof list for Languages.
var languageTag = func() string {
	values := make([]string, 0, len(Languages))
	for _, l := range Languages {
		values = append(values, l.Value)
	}
	return "oneof=" + strings.Join(values, " ")
}()

// File is an attachment held by the form until it is uploaded or the form
// is reset.
type File struct {
	Name     string
	Category Category
	Data     []byte
}

func (f File) Size() int64 {
	return int64(len(f.Data))
}

type Limits struct {
	DescriptionMin     int `json:"description_min"`
	MaxCodeFiles       int `json:"max_code_files"`
	MaxAdditionalFiles int `json:"max_additional_files"`
}

func DefaultLimits() Limits {
	return Limits{
		DescriptionMin:     10,
		MaxCodeFiles:       5,
		MaxAdditionalFiles: 5,
	}
}

// NormalizeLimits replaces non-positive limits with the defaults.
func NormalizeLimits(l Limits) Limits {
	def := DefaultLimits()
	if l.DescriptionMin <= 0 {
		l.DescriptionMin = def.DescriptionMin
	}
	if l.MaxCodeFiles <= 0 {
		l.MaxCodeFiles = def.MaxCodeFiles
	}
	if l.MaxAdditionalFiles <= 0 {
		l.MaxAdditionalFiles = def.MaxAdditionalFiles
	}
	return l
}

// MaxFiles is the number of files the category holds at most.
func (l Limits) MaxFiles(c Category) int {
	switch c {
	case CategoryCode:
		return l.MaxCodeFiles
	case CategoryAdditional:
		return l.MaxAdditionalFiles
	default:
		return 1
	}
}
