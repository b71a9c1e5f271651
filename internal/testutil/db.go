// Package testutil provides shared fixtures for store-backed tests.
package testutil

import (
	"fmt"
	"testing"
	"time"

	"pettit/internal/database"
	"pettit/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewDB opens a migrated in-memory SQLite database that is closed when the
// test ends.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user named username.
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    fmt.Sprintf("%s@example.com", username),
		Verified: true,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateCommunity inserts an active community owned by creatorID together
// with the creator's admin membership, leaving member_count at 1.
func CreateCommunity(t *testing.T, db *gorm.DB, name string, creatorID uint) *models.Community {
	t.Helper()
	community := &models.Community{
		Name:        name,
		DisplayName: name,
		Description: "all about " + name,
		CreatorID:   creatorID,
		Category:    models.CategoryGeneral,
		IsActive:    true,
		MemberCount: 1,
	}
	require.NoError(t, db.Omit("Creator").Create(community).Error)
	require.NoError(t, db.Create(&models.Membership{
		UserID:      creatorID,
		CommunityID: community.ID,
		Role:        models.MembershipRoleAdmin,
		Permissions: models.DefaultPermissions(models.MembershipRoleAdmin),
		JoinedAt:    time.Now().UTC(),
		IsActive:    true,
	}).Error)
	return community
}

// PostOption customizes a post created by CreatePost.
type PostOption func(*models.Post)

// WithScore sets the stored vote score.
func WithScore(score int) PostOption {
	return func(p *models.Post) { p.VoteScore = score }
}

// WithCreatedAt sets the creation time.
func WithCreatedAt(ts time.Time) PostOption {
	return func(p *models.Post) { p.CreatedAt = ts.UTC() }
}

// WithViews sets the view count.
func WithViews(views int) PostOption {
	return func(p *models.Post) { p.Views = views }
}

// WithTags attaches tags.
func WithTags(tags ...string) PostOption {
	return func(p *models.Post) {
		for _, tag := range tags {
			p.Tags = append(p.Tags, models.PostTag{Tag: tag})
		}
	}
}

// Removed marks the post as removed by moderation.
func Removed() PostOption {
	return func(p *models.Post) { p.IsRemoved = true }
}

// CreatePost inserts an active post and bumps the community's post_count.
func CreatePost(t *testing.T, db *gorm.DB, authorID, communityID uint, title string, opts ...PostOption) *models.Post {
	t.Helper()
	post := &models.Post{
		Title:       title,
		Content:     "content of " + title,
		UserID:      authorID,
		CommunityID: communityID,
		IsActive:    true,
	}
	for _, opt := range opts {
		opt(post)
	}
	require.NoError(t, db.Omit("Author", "Community").Create(post).Error)
	require.NoError(t, db.Model(&models.Community{}).Where("id = ?", communityID).
		UpdateColumn("post_count", gorm.Expr("post_count + ?", 1)).Error)
	return post
}
