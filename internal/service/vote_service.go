package service

import (
	"context"
	"time"

	"pettit/internal/featureflags"
	"pettit/internal/models"
	"pettit/internal/notifications"
	"pettit/internal/observability"
	"pettit/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// VoteService owns the per-post vote ledger and saver set.
type VoteService struct {
	posts  repository.PostRepository
	events eventSink
}

// NewVoteService creates a VoteService. publisher and flags may be nil.
func NewVoteService(posts repository.PostRepository, publisher notifications.Publisher, flags featureflags.Checker) *VoteService {
	return &VoteService{posts: posts, events: eventSink{publisher: publisher, flags: flags}}
}

// ApplyVote applies action for userID on postID and returns the recomputed
// score and the user's resulting vote.
func (s *VoteService) ApplyVote(ctx context.Context, postID, userID uint, action models.VoteAction) (*models.VoteResult, error) {
	if !action.Valid() {
		return nil, models.NewFieldValidationError("Invalid vote type",
			models.FieldError{Field: "voteType", Message: "voteType must be one of upvote, downvote, remove"})
	}

	span, ctx := observability.NewSpan(ctx, "vote.apply",
		observability.AttrPostID.Int64(int64(postID)),
		observability.AttrViewerID.Int64(int64(userID)),
		attribute.String("vote.action", string(action)))
	defer span.End()

	result, err := s.posts.ApplyVote(ctx, postID, userID, action)
	if err != nil {
		span.SetError(err)
		return nil, storeError(err, "Post", postID, "")
	}
	observability.VotesTotal.WithLabelValues(string(action)).Inc()

	s.events.emit(ctx, notifications.EventPostVoted, map[string]any{
		"post_id":    postID,
		"vote_score": result.VoteScore,
		"voted_at":   time.Now().UTC().Format(time.RFC3339Nano),
	})
	return result, nil
}

// ToggleSave adds or removes postID from userID's saved set and reports the
// new state.
func (s *VoteService) ToggleSave(ctx context.Context, postID, userID uint) (bool, error) {
	saved, err := s.posts.ToggleSave(ctx, postID, userID)
	if err != nil {
		return false, storeError(err, "Post", postID, "")
	}
	return saved, nil
}

// RecomputeScores rewrites every post's vote_score from the ledger, limited
// to one community when communityID is non-zero. It returns the number of
// posts rewritten.
func (s *VoteService) RecomputeScores(ctx context.Context, communityID uint) (int64, error) {
	n, err := s.posts.RecomputeVoteScores(ctx, communityID)
	if err != nil {
		return 0, models.NewInternalError(err)
	}
	return n, nil
}
