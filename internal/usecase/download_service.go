package usecase

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/afero"

	"github.com/riskibarqy/judging-portal/internal/domain/submission"
	"github.com/riskibarqy/judging-portal/internal/platform/logging"
)

// FileFetcher streams a submitted file from the backend.
type FileFetcher interface {
	Download(ctx context.Context, filePath string) (io.ReadCloser, string, error)
}

type DownloadServiceConfig struct {
	Dir     string
	Workers int
}

// DownloadService proxies submitted files and saves whole submissions to disk.
type DownloadService struct {
	fetcher FileFetcher
	repo    submission.Repository
	fs      afero.Fs
	dir     string
	workers int
	logger  *logging.Logger
}

func NewDownloadService(fetcher FileFetcher, repo submission.Repository, fs afero.Fs, cfg DownloadServiceConfig, logger *logging.Logger) *DownloadService {
	if logger == nil {
		logger = logging.Default()
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if strings.TrimSpace(cfg.Dir) == "" {
		cfg.Dir = "downloads"
	}
	return &DownloadService{
		fetcher: fetcher,
		repo:    repo,
		fs:      fs,
		dir:     cfg.Dir,
		workers: cfg.Workers,
		logger:  logger,
	}
}

type DownloadedFile struct {
	Body        io.ReadCloser
	ContentType string
	Name        string
}

// Open starts streaming one submitted file. The caller closes Body.
func (s *DownloadService) Open(ctx context.Context, filePath string) (DownloadedFile, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return DownloadedFile{}, fmt.Errorf("%w: file path is required", ErrInvalidInput)
	}

	body, contentType, err := s.fetcher.Download(ctx, filePath)
	if err != nil {
		return DownloadedFile{}, fmt.Errorf("open submitted file: %w", err)
	}
	return DownloadedFile{Body: body, ContentType: contentType, Name: path.Base(filePath)}, nil
}

type SavedFile struct {
	FileID string `json:"file_id"`
	Path   string `json:"path"`
	Bytes  int64  `json:"bytes"`
	Size   string `json:"size"`
	Error  string `json:"error,omitempty"`
}

type DownloadResult struct {
	SubmissionID string      `json:"submission_id"`
	Dir          string      `json:"dir"`
	Files        []SavedFile `json:"files"`
	FailedCount  int         `json:"failed_count"`
}

// DownloadSubmission saves every file of a submission under
// <dir>/<submission id>/. Individual file failures are reported per file.
func (s *DownloadService) DownloadSubmission(ctx context.Context, submissionID string) (DownloadResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DownloadService.DownloadSubmission")
	defer span.End()

	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" || strings.ContainsAny(submissionID, `/\`) || submissionID == ".." {
		return DownloadResult{}, fmt.Errorf("%w: invalid submission id", ErrInvalidInput)
	}

	items, err := s.repo.List(ctx)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("list submissions: %w", err)
	}
	var target *submission.Submission
	for i := range items {
		if items[i].ID == submissionID {
			target = &items[i]
			break
		}
	}
	if target == nil {
		return DownloadResult{}, fmt.Errorf("%w: submission=%s", ErrNotFound, submissionID)
	}

	dir := filepath.Join(s.dir, submissionID)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return DownloadResult{}, fmt.Errorf("create download dir: %w", err)
	}

	names := localNames(target.Files)
	result := DownloadResult{SubmissionID: submissionID, Dir: dir}
	if len(target.Files) == 0 {
		return result, nil
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return DownloadResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		mu      sync.Mutex
		workers sync.WaitGroup
	)
	for i, file := range target.Files {
		file := file
		dst := filepath.Join(dir, names[i])
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			saved := s.saveFile(ctx, file, dst)
			mu.Lock()
			result.Files = append(result.Files, saved)
			if saved.Error != "" {
				result.FailedCount++
			}
			mu.Unlock()
		}); err != nil {
			workers.Done()
			return DownloadResult{}, fmt.Errorf("submit download to worker pool: %w", err)
		}
	}
	workers.Wait()

	sort.SliceStable(result.Files, func(i, j int) bool { return result.Files[i].Path < result.Files[j].Path })
	s.logger.InfoContext(ctx, "submission downloaded", "submission_id", submissionID, "files", len(result.Files), "failed", result.FailedCount)
	return result, nil
}

func (s *DownloadService) saveFile(ctx context.Context, file submission.SubmittedFile, dst string) SavedFile {
	saved := SavedFile{FileID: file.ID, Path: dst}

	body, _, err := s.fetcher.Download(ctx, file.FilePath)
	if err != nil {
		saved.Error = err.Error()
		s.logger.WarnContext(ctx, "download submitted file failed", "file_id", file.ID, "error", err)
		return saved
	}
	defer body.Close()

	out, err := s.fs.Create(dst)
	if err != nil {
		saved.Error = err.Error()
		return saved
	}
	n, err := io.Copy(out, body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = s.fs.Remove(dst)
		saved.Error = err.Error()
		return saved
	}

	saved.Bytes = n
	saved.Size = humanize.Bytes(uint64(n))
	return saved
}

// localNames derives a unique, path-free file name for every file.
func localNames(files []submission.SubmittedFile) []string {
	names := make([]string, len(files))
	seen := make(map[string]int, len(files))
	for i, f := range files {
		base := path.Base(strings.ReplaceAll(f.FilePath, `\`, "/"))
		if base == "." || base == "/" || base == ".." || base == "" {
			base = "file"
		}
		if n := seen[base]; n > 0 {
			prefix := f.ID
			if prefix == "" {
				prefix = fmt.Sprint(n)
			}
			names[i] = prefix + "_" + base
		} else {
			names[i] = base
		}
		seen[base]++
	}
	return names
}
