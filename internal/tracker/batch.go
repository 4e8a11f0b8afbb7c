package tracker

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	log "github.com/tuannvm/jira-agent-tools/internal/logging"
	"github.com/tuannvm/jira-agent-tools/internal/models"
)

// CommentResult is the outcome of commenting on one issue
type CommentResult struct {
	Key     string
	Comment *models.Comment
	Err     error
}

// CommentMany comments on every issue concurrently. Results are returned in
// input order; one failure does not stop the others.
func (s *Service) CommentMany(ctx context.Context, keys []string, text string) []CommentResult {
	results := make([]CommentResult, len(keys))
	p := pool.New().WithMaxGoroutines(s.opts.MaxConcurrency)
	for i, key := range keys {
		p.Go(func() {
			c, err := s.remote.AddComment(ctx, key, text)
			results[i] = CommentResult{Key: key, Comment: c, Err: err}
			if err != nil {
				log.Warnf("Failed to comment on %s: %v", key, err)
			}
		})
	}
	p.Wait()
	return results
}
