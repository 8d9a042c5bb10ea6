package cache

import (
	"context"

	"github.com/riskibarqy/judging-portal/internal/domain/submission"
	basecache "github.com/riskibarqy/judging-portal/internal/platform/cache"
)

const submissionListKey = "submission:list"

// SubmissionRepository serves the submission list from a TTL cache and drops
// it whenever a judgment is recorded.
type SubmissionRepository struct {
	next  submission.Repository
	cache *basecache.Store[[]submission.Submission]
}

func NewSubmissionRepository(next submission.Repository, cache *basecache.Store[[]submission.Submission]) *SubmissionRepository {
	return &SubmissionRepository{next: next, cache: cache}
}

func (r *SubmissionRepository) List(ctx context.Context) ([]submission.Submission, error) {
	items, err := r.cache.GetOrLoad(ctx, submissionListKey, func(ctx context.Context) ([]submission.Submission, error) {
		items, err := r.next.List(ctx)
		if err != nil {
			return nil, err
		}
		return append([]submission.Submission(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}

	return append([]submission.Submission(nil), items...), nil
}

func (r *SubmissionRepository) Judge(ctx context.Context, submissionID string, decision submission.Decision) error {
	defer r.Invalidate(ctx)
	return r.next.Judge(ctx, submissionID, decision)
}

// Invalidate forces the next List to reach the backend.
func (r *SubmissionRepository) Invalidate(ctx context.Context) {
	r.cache.Delete(ctx, submissionListKey)
}
