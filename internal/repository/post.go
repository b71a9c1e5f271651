package repository

import (
	"context"
	"errors"
	"time"

	"pettit/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostOrder selects the ORDER BY of a post listing.
type PostOrder string

const (
	OrderNew      PostOrder = "new"
	OrderHot      PostOrder = "hot"
	OrderTop      PostOrder = "top"
	OrderTrending PostOrder = "trending"
)

// PostQuery filters a post listing. Zero values disable a filter. Only
// active, non-removed posts are ever listed.
type PostQuery struct {
	CommunityID   uint
	AuthorID      uint
	SavedByUserID uint
	Tag           string
	Search        string
	Since         time.Time
	Order         PostOrder
	Limit         int
	Offset        int
	// ViewerID drives user_vote and is_saved; 0 is anonymous.
	ViewerID uint
}

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	List(ctx context.Context, q PostQuery) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post, tags []string) error
	UpdateModeration(ctx context.Context, id uint, updates map[string]any) error
	Delete(ctx context.Context, post *models.Post) error
	IncrementViews(ctx context.Context, id uint) error
	ApplyVote(ctx context.Context, postID, userID uint, action models.VoteAction) (*models.VoteResult, error)
	ToggleSave(ctx context.Context, postID, userID uint) (bool, error)
	AddReport(ctx context.Context, report *models.PostReport) error
	RecomputeVoteScores(ctx context.Context, communityID uint) (int64, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

const voteScoreFromLedger = "(SELECT COALESCE(SUM(post_votes.value), 0) FROM post_votes WHERE post_votes.post_id = posts.id)"

// Create inserts the post with its media and tags and bumps the community's
// post_count in the same transaction.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Author", "Community").Create(post).Error; err != nil {
			return err
		}
		return tx.Model(&models.Community{}).
			Where("id = ?", post.CommunityID).
			UpdateColumn("post_count", gorm.Expr("post_count + ?", 1)).Error
	})
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	var post models.Post
	err := r.withDetails(readDB(r.db).WithContext(ctx), viewerID).
		Where("posts.id = ?", id).
		First(&post).Error
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, q PostQuery) ([]*models.Post, error) {
	db := r.withDetails(readDB(r.db).WithContext(ctx), q.ViewerID).
		Where("posts.is_active = ? AND posts.is_removed = ?", true, false)

	if q.CommunityID != 0 {
		db = db.Where("posts.community_id = ?", q.CommunityID)
	}
	if q.AuthorID != 0 {
		db = db.Where("posts.user_id = ?", q.AuthorID)
	}
	if q.SavedByUserID != 0 {
		db = db.Where("EXISTS (SELECT 1 FROM post_saves WHERE post_saves.post_id = posts.id AND post_saves.user_id = ?)", q.SavedByUserID)
	}
	if q.Tag != "" {
		db = db.Where("EXISTS (SELECT 1 FROM post_tags WHERE post_tags.post_id = posts.id AND post_tags.tag = ?)", q.Tag)
	}
	if q.Search != "" {
		pattern := containsPattern(q.Search)
		db = db.Where(`(LOWER(posts.title) LIKE ? ESCAPE '\' OR LOWER(posts.content) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if !q.Since.IsZero() {
		db = db.Where("posts.created_at >= ?", q.Since.UTC())
	}

	var posts []*models.Post
	err := applyOrder(db, q.Order).
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

func applyOrder(db *gorm.DB, order PostOrder) *gorm.DB {
	switch order {
	case OrderHot:
		return db.Order("posts.vote_score DESC, posts.created_at DESC")
	case OrderTop:
		return db.Order("posts.vote_score DESC, posts.id DESC")
	case OrderTrending:
		return db.Order("posts.vote_score DESC, posts.views DESC, posts.comment_count DESC")
	default:
		return db.Order("posts.created_at DESC, posts.id DESC")
	}
}

// withDetails preloads the relations every post response needs and selects
// the viewer-relative user_vote and is_saved columns.
func (r *postRepository) withDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	db = db.Model(&models.Post{}).
		Preload("Author").
		Preload("Community").
		Preload("Media", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tag ASC") })

	if viewerID == 0 {
		return db.Select("posts.*, '' AS user_vote, false AS is_saved")
	}
	return db.Select(
		"posts.*, "+
			"COALESCE((SELECT CASE WHEN post_votes.value > 0 THEN 'upvote' WHEN post_votes.value < 0 THEN 'downvote' END "+
			"FROM post_votes WHERE post_votes.post_id = posts.id AND post_votes.user_id = ?), 'none') AS user_vote, "+
			"EXISTS (SELECT 1 FROM post_saves WHERE post_saves.post_id = posts.id AND post_saves.user_id = ?) AS is_saved",
		viewerID, viewerID,
	)
}

// Update writes title and content and, when tags is non-nil, replaces the tag set.
func (r *postRepository) Update(ctx context.Context, post *models.Post, tags []string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Post{}).Where("id = ?", post.ID).
			Updates(map[string]any{"title": post.Title, "content": post.Content}).Error
		if err != nil {
			return err
		}
		if tags == nil {
			return nil
		}
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.PostTag{}).Error; err != nil {
			return err
		}
		rows := make([]models.PostTag, 0, len(tags))
		for _, t := range tags {
			rows = append(rows, models.PostTag{PostID: post.ID, Tag: t})
		}
		if len(rows) > 0 {
			if err := tx.Create(&rows).Error; err != nil {
				return err
			}
		}
		post.Tags = rows
		return nil
	})
}

func (r *postRepository) UpdateModeration(ctx context.Context, id uint, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", id).Updates(updates).Error
}

// Delete removes the post and its dependent rows and decrements the
// community's post_count, floored at zero.
func (r *postRepository) Delete(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dependent := range []any{&models.PostMedia{}, &models.PostTag{}, &models.PostVote{}, &models.PostSave{}, &models.PostReport{}} {
			if err := tx.Where("post_id = ?", post.ID).Delete(dependent).Error; err != nil {
				return err
			}
		}
		res := tx.Delete(&models.Post{}, post.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(&models.Community{}).
			Where("id = ?", post.CommunityID).
			UpdateColumn("post_count", gorm.Expr("CASE WHEN post_count > 0 THEN post_count - 1 ELSE 0 END")).Error
	})
}

func (r *postRepository) IncrementViews(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + ?", 1)).Error
}

// ApplyVote moves the user between the upvoter and downvoter sets and
// recomputes vote_score from the ledger in one transaction. The post row is
// locked so concurrent votes on it serialize.
func (r *postRepository) ApplyVote(ctx context.Context, postID, userID uint, action models.VoteAction) (*models.VoteResult, error) {
	var result models.VoteResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").Where("id = ?", postID).First(&post).Error; err != nil {
			return err
		}

		current := models.VoteStateNone
		var vote models.PostVote
		lookupErr := tx.Where("post_id = ? AND user_id = ?", postID, userID).First(&vote).Error
		switch {
		case lookupErr == nil:
			current = models.VoteStateFromValue(vote.Value)
		case !errors.Is(lookupErr, gorm.ErrRecordNotFound):
			return lookupErr
		}

		next := models.NextVote(current, action)
		var err error
		switch {
		case next == models.VoteStateNone && current != models.VoteStateNone:
			err = tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostVote{}).Error
		case next != models.VoteStateNone && current == models.VoteStateNone:
			err = tx.Create(&models.PostVote{PostID: postID, UserID: userID, Value: next.Value()}).Error
		case next != current:
			err = tx.Model(&models.PostVote{}).Where("post_id = ? AND user_id = ?", postID, userID).
				Update("value", next.Value()).Error
		}
		if err != nil {
			return err
		}

		if err := tx.Model(&models.Post{}).Where("id = ?", postID).
			UpdateColumn("vote_score", gorm.Expr(voteScoreFromLedger)).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).Select("vote_score").Where("id = ?", postID).
			Scan(&result.VoteScore).Error; err != nil {
			return err
		}
		result.UserVote = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// ToggleSave adds or removes the user from the post's saver set and reports
// whether the post is now saved.
func (r *postRepository) ToggleSave(ctx context.Context, postID, userID uint) (bool, error) {
	saved := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exists int64
		if err := tx.Model(&models.Post{}).Where("id = ?", postID).Count(&exists).Error; err != nil {
			return err
		}
		if exists == 0 {
			return gorm.ErrRecordNotFound
		}

		res := tx.Where("post_id = ? AND user_id = ?", postID, userID).Delete(&models.PostSave{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		saved = true
		return tx.Create(&models.PostSave{PostID: postID, UserID: userID}).Error
	})
	return saved, err
}

func (r *postRepository) AddReport(ctx context.Context, report *models.PostReport) error {
	return r.db.WithContext(ctx).Create(report).Error
}

// RecomputeVoteScores rewrites vote_score from the ledger for every post, or
// for one community's posts when communityID is non-zero.
func (r *postRepository) RecomputeVoteScores(ctx context.Context, communityID uint) (int64, error) {
	db := r.db.WithContext(ctx).Model(&models.Post{})
	if communityID != 0 {
		db = db.Where("community_id = ?", communityID)
	} else {
		db = db.Where("1 = 1")
	}
	res := db.UpdateColumn("vote_score", gorm.Expr(voteScoreFromLedger))
	return res.RowsAffected, res.Error
}
