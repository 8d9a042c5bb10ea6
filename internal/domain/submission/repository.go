package submission

import "context"

// Repository is the backend view of submissions used by the judging flow.
type Repository interface {
	List(ctx context.Context) ([]Submission, error)
	Judge(ctx context.Context, submissionID string, decision Decision) error
}
