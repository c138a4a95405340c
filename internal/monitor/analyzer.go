package monitor

import (
	"context"
	"fmt"

	"github.com/moodmate/moodmate-backend/internal/models"
)

// PostSource reads posts from the social-media API
type PostSource interface {
	LookupUserID(ctx context.Context, username string) (string, error)
	RecentPosts(ctx context.Context, userID string, maxResults int) ([]models.Post, error)
}

// Scorer assesses post text for risk
type Scorer interface {
	Score(ctx context.Context, postID, text, createdAt string) models.Assessment
	Rescore(ctx context.Context, postID, text, createdAt string) models.Assessment
}

// Analyzer scores an account's recent posts on demand
type Analyzer struct {
	source PostSource
	scorer Scorer
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(source PostSource, scorer Scorer) *Analyzer {
	return &Analyzer{source: source, scorer: scorer}
}

// AnalyzeAccount fetches up to maxResults recent posts and scores each in fetch order.
// With rescore set, stored assessments are bypassed.
func (a *Analyzer) AnalyzeAccount(ctx context.Context, account string, maxResults int, rescore bool) ([]models.AnalyzedPost, error) {
	posts, err := fetchRecent(ctx, a.source, account, maxResults)
	if err != nil {
		return nil, err
	}

	results := make([]models.AnalyzedPost, 0, len(posts))
	for _, post := range posts {
		var assessment models.Assessment
		if rescore {
			assessment = a.scorer.Rescore(ctx, post.ID, post.Text, post.CreatedAt)
		} else {
			assessment = a.scorer.Score(ctx, post.ID, post.Text, post.CreatedAt)
		}
		results = append(results, models.AnalyzedPost{
			PostID:     post.ID,
			Date:       post.CreatedAt,
			Assessment: assessment,
		})
	}
	return results, nil
}

func fetchRecent(ctx context.Context, source PostSource, account string, maxResults int) ([]models.Post, error) {
	userID, err := source.LookupUserID(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve account %s: %w", account, err)
	}

	posts, err := source.RecentPosts(ctx, userID, maxResults)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch posts: %w", err)
	}
	return posts, nil
}
