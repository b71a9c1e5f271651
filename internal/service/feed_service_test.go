package service

import (
	"context"
	"testing"
	"time"

	"pettit/internal/models"
	"pettit/internal/repository"
	"pettit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func postTitles(posts []*models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

func TestFeedService_QueryFeed(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	dogs := testutil.CreateCommunity(t, db, "dogs", alice.ID)
	cats := testutil.CreateCommunity(t, db, "cats", bob.ID)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	testutil.CreatePost(t, db, alice.ID, dogs.ID, "five", testutil.WithScore(5), testutil.WithCreatedAt(base), testutil.WithTags("puppy"))
	testutil.CreatePost(t, db, alice.ID, dogs.ID, "two", testutil.WithScore(2), testutil.WithCreatedAt(base.Add(time.Hour)))
	testutil.CreatePost(t, db, bob.ID, dogs.ID, "eight", testutil.WithScore(8), testutil.WithCreatedAt(base.Add(2*time.Hour)))
	testutil.CreatePost(t, db, bob.ID, cats.ID, "cat nap", testutil.WithScore(1), testutil.WithCreatedAt(base.Add(3*time.Hour)))
	testutil.CreatePost(t, db, bob.ID, dogs.ID, "hidden", testutil.WithScore(50), testutil.Removed())

	svc := NewFeedService(repository.NewPostRepository(db), repository.NewCommunityRepository(db))
	ctx := context.Background()

	tests := []struct {
		name        string
		query       FeedQuery
		wantTitles  []string
		wantHasMore bool
	}{
		{
			name:        "community top first page",
			query:       FeedQuery{Scope: ScopeCommunity, CommunityID: dogs.ID, Sort: SortTop, Page: 1, PageSize: 2},
			wantTitles:  []string{"eight", "five"},
			wantHasMore: true,
		},
		{
			name:        "community top second page",
			query:       FeedQuery{Scope: ScopeCommunity, CommunityID: dogs.ID, Sort: SortTop, Page: 2, PageSize: 2},
			wantTitles:  []string{"two"},
			wantHasMore: false,
		},
		{
			name:        "global new",
			query:       FeedQuery{Sort: SortNew},
			wantTitles:  []string{"cat nap", "eight", "two", "five"},
			wantHasMore: false,
		},
		{
			name:        "author scope",
			query:       FeedQuery{Scope: ScopeAuthor, AuthorID: alice.ID},
			wantTitles:  []string{"two", "five"},
			wantHasMore: false,
		},
		{
			name:        "community by name",
			query:       FeedQuery{CommunityName: "  CATS "},
			wantTitles:  []string{"cat nap"},
			wantHasMore: false,
		},
		{
			name:        "name and id disagree",
			query:       FeedQuery{Scope: ScopeCommunity, CommunityID: dogs.ID, CommunityName: "cats"},
			wantTitles:  []string{},
			wantHasMore: false,
		},
		{
			name:        "tag filter",
			query:       FeedQuery{Tag: "Puppy"},
			wantTitles:  []string{"five"},
			wantHasMore: false,
		},
		{
			name:        "exactly full page",
			query:       FeedQuery{Scope: ScopeCommunity, CommunityID: dogs.ID, PageSize: 3},
			wantTitles:  []string{"eight", "two", "five"},
			wantHasMore: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.QueryFeed(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTitles, postTitles(page.Posts))
			assert.Equal(t, tt.wantHasMore, page.HasMore)
		})
	}
}

func TestFeedService_QueryFeed_SavedScope(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	dogs := testutil.CreateCommunity(t, db, "dogs", alice.ID)
	kept := testutil.CreatePost(t, db, alice.ID, dogs.ID, "kept")
	testutil.CreatePost(t, db, alice.ID, dogs.ID, "skipped")

	posts := repository.NewPostRepository(db)
	_, err := posts.ToggleSave(context.Background(), kept.ID, alice.ID)
	require.NoError(t, err)

	svc := NewFeedService(posts, repository.NewCommunityRepository(db))

	page, err := svc.QueryFeed(context.Background(), FeedQuery{Scope: ScopeSaved, ViewerID: alice.ID})
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "kept", page.Posts[0].Title)
	assert.True(t, page.Posts[0].IsSaved)
	assert.Equal(t, string(models.VoteStateNone), page.Posts[0].UserVote)

	_, err = svc.QueryFeed(context.Background(), FeedQuery{Scope: ScopeSaved})
	assertAppErrorCode(t, err, models.CodeUnauthorized)
}

func TestFeedService_QueryFeed_Errors(t *testing.T) {
	t.Parallel()

	svc := NewFeedService(failingPostRepo(), activeCommunityRepo(&models.Community{ID: 1, Name: "dogs"}))
	ctx := context.Background()

	tests := []struct {
		name  string
		query FeedQuery
	}{
		{"bad sort", FeedQuery{Sort: "random"}},
		{"bad scope", FeedQuery{Scope: "everything"}},
		{"community scope without community", FeedQuery{Scope: ScopeCommunity}},
		{"author scope without author", FeedQuery{Scope: ScopeAuthor}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.QueryFeed(ctx, tt.query)
			assertValidationError(t, err)
		})
	}
}

func TestFeedService_QueryFeed_InactiveCommunity(t *testing.T) {
	t.Parallel()

	svc := NewFeedService(failingPostRepo(), activeCommunityRepo(&models.Community{ID: 1, Name: "dogs", IsActive: false}))

	_, err := svc.QueryFeed(context.Background(), FeedQuery{CommunityName: "dogs"})
	assertNotFoundError(t, err)
}

func TestFeedService_QueryFeed_UnknownCommunityNamesIt(t *testing.T) {
	t.Parallel()

	communities := activeCommunityRepo(nil)
	communities.getByNameFn = func(_ context.Context, _ string) (*models.Community, error) {
		return nil, gorm.ErrRecordNotFound
	}
	svc := NewFeedService(failingPostRepo(), communities)

	_, err := svc.QueryFeed(context.Background(), FeedQuery{CommunityName: "Nope"})
	assertNotFoundError(t, err)
	assert.EqualError(t, err, `Community "nope" not found`)
}

func TestNormalizePaging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		page, size         int
		wantPage, wantSize int
	}{
		{0, 0, 1, DefaultPageSize},
		{-3, 5, 1, 5},
		{4, 1000, 4, MaxPageSize},
	}
	for _, tt := range tests {
		page, size := NormalizePaging(tt.page, tt.size)
		assert.Equal(t, tt.wantPage, page)
		assert.Equal(t, tt.wantSize, size)
	}
}
