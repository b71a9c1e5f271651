package service

import (
	"context"
	"testing"

	"pettit/internal/featureflags"
	"pettit/internal/models"
	"pettit/internal/notifications"
	"pettit/internal/repository"
	"pettit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestVoteService_ApplyVote_Transitions(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	dogs := testutil.CreateCommunity(t, db, "dogs", alice.ID)
	post := testutil.CreatePost(t, db, alice.ID, dogs.ID, "first walk")

	svc := NewVoteService(repository.NewPostRepository(db), nil, nil)
	ctx := context.Background()

	steps := []struct {
		name      string
		userID    uint
		action    models.VoteAction
		wantScore int
		wantVote  models.VoteState
	}{
		{"alice upvotes", alice.ID, models.VoteActionUpvote, 1, models.VoteStateUp},
		{"bob downvotes", bob.ID, models.VoteActionDownvote, 0, models.VoteStateDown},
		{"bob switches to upvote", bob.ID, models.VoteActionUpvote, 2, models.VoteStateUp},
		{"alice toggles her upvote off", alice.ID, models.VoteActionUpvote, 1, models.VoteStateNone},
		{"alice removes again", alice.ID, models.VoteActionRemove, 1, models.VoteStateNone},
		{"bob removes", bob.ID, models.VoteActionRemove, 0, models.VoteStateNone},
	}

	for _, step := range steps {
		result, err := svc.ApplyVote(ctx, post.ID, step.userID, step.action)
		require.NoError(t, err, step.name)
		assert.Equal(t, step.wantScore, result.VoteScore, step.name)
		assert.Equal(t, step.wantVote, result.UserVote, step.name)
	}

	var stored models.Post
	require.NoError(t, db.First(&stored, post.ID).Error)
	assert.Equal(t, 0, stored.VoteScore)
}

func TestVoteService_ApplyVote_RemoveOnFreshPost(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	dogs := testutil.CreateCommunity(t, db, "dogs", alice.ID)
	post := testutil.CreatePost(t, db, alice.ID, dogs.ID, "zoomies")

	svc := NewVoteService(repository.NewPostRepository(db), nil, nil)
	result, err := svc.ApplyVote(context.Background(), post.ID, alice.ID, models.VoteActionRemove)
	require.NoError(t, err)
	assert.Equal(t, 0, result.VoteScore)
	assert.Equal(t, models.VoteStateNone, result.UserVote)
}

func TestVoteService_ApplyVote_ToggleOffIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	dogs := testutil.CreateCommunity(t, db, "dogs", alice.ID)
	post := testutil.CreatePost(t, db, alice.ID, dogs.ID, "nap time")

	svc := NewVoteService(repository.NewPostRepository(db), nil, nil)
	ctx := context.Background()

	_, err := svc.ApplyVote(ctx, post.ID, alice.ID, models.VoteActionDownvote)
	require.NoError(t, err)
	off, err := svc.ApplyVote(ctx, post.ID, alice.ID, models.VoteActionDownvote)
	require.NoError(t, err)
	again, err := svc.ApplyVote(ctx, post.ID, alice.ID, models.VoteActionRemove)
	require.NoError(t, err)

	assert.Equal(t, models.VoteResult{VoteScore: 0, UserVote: models.VoteStateNone}, *off)
	assert.Equal(t, *off, *again)

	var votes int64
	require.NoError(t, db.Model(&models.PostVote{}).Where("post_id = ?", post.ID).Count(&votes).Error)
	assert.Zero(t, votes)
}

func TestVoteService_ApplyVote_InvalidActionNeverTouchesStore(t *testing.T) {
	t.Parallel()

	svc := NewVoteService(failingPostRepo(), nil, nil)

	for _, action := range []models.VoteAction{"", "sideways", "UPVOTE"} {
		_, err := svc.ApplyVote(context.Background(), 1, 1, action)
		assertValidationError(t, err)
	}
}

func TestVoteService_ApplyVote_MissingPost(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewVoteService(repository.NewPostRepository(db), nil, nil)

	_, err := svc.ApplyVote(context.Background(), 404, 1, models.VoteActionUpvote)
	assertNotFoundError(t, err)
}

func TestVoteService_ApplyVote_PublishesWhenEnabled(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		flags string
		want  []string
	}{
		{"enabled", "event_publishing=on", []string{notifications.EventPostVoted}},
		{"disabled", "event_publishing=off", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pub := &recordingPublisher{}
			svc := NewVoteService(noopPostRepo(), pub, featureflags.NewManager(tt.flags))

			_, err := svc.ApplyVote(context.Background(), 3, 9, models.VoteActionUpvote)
			require.NoError(t, err)
			assert.Equal(t, tt.want, pub.types())
		})
	}
}

func TestVoteService_ToggleSave(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	cats := testutil.CreateCommunity(t, db, "cats", alice.ID)
	post := testutil.CreatePost(t, db, alice.ID, cats.ID, "box fort")

	svc := NewVoteService(repository.NewPostRepository(db), nil, nil)
	ctx := context.Background()

	saved, err := svc.ToggleSave(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.True(t, saved)

	saved, err = svc.ToggleSave(ctx, post.ID, alice.ID)
	require.NoError(t, err)
	assert.False(t, saved)

	_, err = svc.ToggleSave(ctx, 999, alice.ID)
	assertNotFoundError(t, err)
}

func TestVoteService_RecomputeScores(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	dogs := testutil.CreateCommunity(t, db, "dogs", alice.ID)
	cats := testutil.CreateCommunity(t, db, "cats", alice.ID)
	dogPost := testutil.CreatePost(t, db, alice.ID, dogs.ID, "fetch", testutil.WithScore(40))
	catPost := testutil.CreatePost(t, db, alice.ID, cats.ID, "loaf", testutil.WithScore(-3))

	require.NoError(t, db.Create(&models.PostVote{PostID: dogPost.ID, UserID: alice.ID, Value: 1}).Error)
	require.NoError(t, db.Create(&models.PostVote{PostID: dogPost.ID, UserID: bob.ID, Value: 1}).Error)

	svc := NewVoteService(repository.NewPostRepository(db), nil, nil)
	ctx := context.Background()

	n, err := svc.RecomputeScores(ctx, dogs.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.Equal(t, 2, storedScore(t, db, dogPost.ID))
	assert.Equal(t, -3, storedScore(t, db, catPost.ID), "other communities are untouched")

	_, err = svc.RecomputeScores(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, storedScore(t, db, catPost.ID))
}

func storedScore(t *testing.T, db *gorm.DB, postID uint) int {
	t.Helper()
	var post models.Post
	require.NoError(t, db.First(&post, postID).Error)
	return post.VoteScore
}
