package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"pettit/internal/cache"
	"pettit/internal/database"
	"pettit/internal/featureflags"
	"pettit/internal/middleware"
	"pettit/internal/models"
	"pettit/internal/notifications"
	"pettit/internal/observability"
	"pettit/internal/repository"
	"pettit/internal/storage"
	"pettit/internal/validation"
)

const maxReportReasonLength = 500

// PostService manages the post lifecycle: create, edit, delete, report,
// moderate and view.
type PostService struct {
	posts          repository.PostRepository
	communities    repository.CommunityRepository
	memberships    repository.MembershipRepository
	media          storage.MediaStore
	maxUploadBytes int64
	events         eventSink
}

// CreatePostInput is a new post with its uploaded images.
type CreatePostInput struct {
	AuthorID    uint
	CommunityID uint
	Title       string
	Content     string
	Tags        []string
	Uploads     []storage.Upload
}

// UpdatePostInput edits the mutable fields of a post. Nil fields are kept.
type UpdatePostInput struct {
	ActorID uint
	PostID  uint
	Title   *string
	Content *string
	Tags    *[]string
}

// ModeratePostInput changes moderation flags. Nil fields are kept.
type ModeratePostInput struct {
	ActorID uint
	PostID  uint
	Pinned  *bool
	Locked  *bool
	Removed *bool
	Reason  string
}

// NewPostService creates a PostService. publisher and flags may be nil.
func NewPostService(
	posts repository.PostRepository,
	communities repository.CommunityRepository,
	memberships repository.MembershipRepository,
	media storage.MediaStore,
	maxUploadBytes int64,
	publisher notifications.Publisher,
	flags featureflags.Checker,
) *PostService {
	return &PostService{
		posts:          posts,
		communities:    communities,
		memberships:    memberships,
		media:          media,
		maxUploadBytes: maxUploadBytes,
		events:         eventSink{publisher: publisher, flags: flags},
	}
}

type checkedUpload struct {
	upload storage.Upload
	image  *storage.CheckedImage
}

// CreatePost validates the input, stores the uploads and inserts the post.
// Blobs written before a failed insert are deleted again.
func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	title, err := validation.PostTitle(in.Title)
	if err != nil {
		return nil, err
	}
	content, err := validation.PostContent(in.Content)
	if err != nil {
		return nil, err
	}
	tags, err := validation.PostTags(in.Tags)
	if err != nil {
		return nil, err
	}
	if in.CommunityID == 0 {
		return nil, models.NewFieldValidationError("Community is required",
			models.FieldError{Field: "subredditId", Message: "subredditId is required"})
	}
	if len(in.Uploads) > storage.MaxUploadsPerPost {
		return nil, models.NewFieldValidationError(
			fmt.Sprintf("At most %d media files are allowed", storage.MaxUploadsPerPost),
			models.FieldError{Field: "media", Message: "too many files"})
	}

	checked := make([]checkedUpload, 0, len(in.Uploads))
	for _, up := range in.Uploads {
		img, err := storage.CheckImage(up.Content, s.maxUploadBytes)
		if err != nil {
			return nil, err
		}
		checked = append(checked, checkedUpload{upload: up, image: img})
	}

	community, err := s.communities.GetByID(ctx, in.CommunityID)
	if err != nil {
		return nil, storeError(err, "Community", in.CommunityID, "")
	}
	if !community.IsActive {
		return nil, models.NewNotFoundError("Community", in.CommunityID)
	}

	post := &models.Post{
		Title:       title,
		Content:     content,
		UserID:      in.AuthorID,
		CommunityID: community.ID,
		IsActive:    true,
	}
	for _, tag := range tags {
		post.Tags = append(post.Tags, models.PostTag{Tag: tag})
	}

	var written []string
	for i, cu := range checked {
		if s.media == nil {
			return nil, models.NewInternalError(fmt.Errorf("media store is not configured"))
		}
		key := storage.ObjectKey(cu.image.Ext)
		url, err := s.media.Put(ctx, key, cu.image.MimeType, cu.upload.Content)
		if err != nil {
			s.compensate(ctx, written)
			return nil, models.NewInternalError(fmt.Errorf("store upload %d: %w", i, err))
		}
		written = append(written, key)
		post.Media = append(post.Media, models.NewPostMedia(models.ImageMedia{URL: url, StorageKey: key}, i))
	}

	if err := s.posts.Create(ctx, post); err != nil {
		s.compensate(ctx, written)
		return nil, storeError(err, "Community", in.CommunityID, "")
	}

	cache.InvalidateCommunity(ctx, community.Name)
	s.events.emit(ctx, notifications.EventPostCreated, map[string]any{
		"post_id":      post.ID,
		"author_id":    post.UserID,
		"community_id": post.CommunityID,
		"created_at":   time.Now().UTC().Format(time.RFC3339Nano),
	})

	created, err := s.posts.GetByID(ctx, post.ID, in.AuthorID)
	if err != nil {
		return nil, storeError(err, "Post", post.ID, "")
	}
	return created, nil
}

// compensate deletes blobs written for a post that was never stored.
func (s *PostService) compensate(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if err := s.media.Delete(ctx, key); err != nil {
			observability.MediaCompensations.WithLabelValues("failed").Inc()
			middleware.Logger.ErrorContext(ctx, "failed to delete orphaned upload",
				slog.String("key", key), slog.String("error", err.Error()))
			continue
		}
		observability.MediaCompensations.WithLabelValues("deleted").Inc()
	}
}

// GetPost returns the post and counts a view.
func (s *PostService) GetPost(ctx context.Context, postID, viewerID uint) (*models.Post, error) {
	post, err := s.posts.GetByID(ctx, postID, viewerID)
	if err != nil {
		return nil, storeError(err, "Post", postID, "")
	}
	if err := s.posts.IncrementViews(ctx, postID); err != nil {
		return nil, models.NewInternalError(err)
	}
	post.Views++
	return post, nil
}

// UpdatePost edits title, content or tags. Only the author may edit, and
// never while the post is locked.
func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	var title, content string
	var tags []string
	var err error
	if in.Title != nil {
		if title, err = validation.PostTitle(*in.Title); err != nil {
			return nil, err
		}
	}
	if in.Content != nil {
		if content, err = validation.PostContent(*in.Content); err != nil {
			return nil, err
		}
	}
	if in.Tags != nil {
		if tags, err = validation.PostTags(*in.Tags); err != nil {
			return nil, err
		}
	}

	post, err := s.posts.GetByID(ctx, in.PostID, in.ActorID)
	if err != nil {
		return nil, storeError(err, "Post", in.PostID, "")
	}
	if post.UserID != in.ActorID {
		return nil, models.NewForbiddenError("Not authorized to update this post")
	}
	if post.IsLocked {
		return nil, models.NewForbiddenError("This post is locked and cannot be edited")
	}

	if in.Title != nil {
		post.Title = title
	}
	if in.Content != nil {
		post.Content = content
	}
	if err := s.posts.Update(ctx, post, tags); err != nil {
		return nil, models.NewInternalError(err)
	}

	updated, err := s.posts.GetByID(ctx, post.ID, in.ActorID)
	if err != nil {
		return nil, storeError(err, "Post", post.ID, "")
	}
	return updated, nil
}

// DeletePost hard-deletes the author's post and then removes its blobs.
func (s *PostService) DeletePost(ctx context.Context, actorID, postID uint) error {
	post, err := s.posts.GetByID(ctx, postID, actorID)
	if err != nil {
		return storeError(err, "Post", postID, "")
	}
	if post.UserID != actorID {
		return models.NewForbiddenError("Not authorized to delete this post")
	}

	if err := s.posts.Delete(ctx, post); err != nil {
		return storeError(err, "Post", postID, "")
	}

	if s.media != nil {
		for _, m := range post.Media {
			if m.StorageKey == "" {
				continue
			}
			if err := s.media.Delete(ctx, m.StorageKey); err != nil {
				middleware.Logger.WarnContext(ctx, "failed to delete post media",
					slog.Uint64("post_id", uint64(postID)),
					slog.String("key", m.StorageKey),
					slog.String("error", err.Error()))
			}
		}
	}

	if post.Community != nil {
		cache.InvalidateCommunity(ctx, post.Community.Name)
	}
	s.events.emit(ctx, notifications.EventPostDeleted, map[string]any{
		"post_id":      postID,
		"community_id": post.CommunityID,
	})
	return nil
}

// ReportPost records actorID's report. Each user may report a post once.
func (s *PostService) ReportPost(ctx context.Context, actorID, postID uint, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return models.NewFieldValidationError("Report reason is required",
			models.FieldError{Field: "reason", Message: "reason is required"})
	}
	if utf8.RuneCountInString(reason) > maxReportReasonLength {
		msg := fmt.Sprintf("reason must be at most %d characters", maxReportReasonLength)
		return models.NewFieldValidationError(msg, models.FieldError{Field: "reason", Message: msg})
	}

	if _, err := s.posts.GetByID(ctx, postID, 0); err != nil {
		return storeError(err, "Post", postID, "")
	}

	err := s.posts.AddReport(ctx, &models.PostReport{PostID: postID, ReporterID: actorID, Reason: reason})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.NewConflictError("You have already reported this post")
		}
		return models.NewInternalError(err)
	}
	return nil
}

// ModeratePost pins, locks or removes a post on behalf of a member of its
// community holding canManagePosts.
func (s *PostService) ModeratePost(ctx context.Context, in ModeratePostInput) (*models.Post, error) {
	if in.Pinned == nil && in.Locked == nil && in.Removed == nil {
		return nil, models.NewValidationError("No moderation change requested")
	}

	post, err := s.posts.GetByID(ctx, in.PostID, in.ActorID)
	if err != nil {
		return nil, storeError(err, "Post", in.PostID, "")
	}

	m, err := s.memberships.Get(ctx, in.ActorID, post.CommunityID)
	if err != nil && !database.IsNotFound(err) {
		return nil, models.NewInternalError(err)
	}
	if m == nil || !m.IsActive || !m.Permissions.CanManagePosts {
		return nil, models.NewForbiddenError("Not authorized to moderate posts in this community")
	}

	updates := map[string]any{}
	if in.Pinned != nil {
		updates["is_pinned"] = *in.Pinned
	}
	if in.Locked != nil {
		updates["is_locked"] = *in.Locked
	}
	if in.Removed != nil {
		updates["is_removed"] = *in.Removed
		if *in.Removed {
			updates["removed_by_user_id"] = in.ActorID
			updates["removed_reason"] = strings.TrimSpace(in.Reason)
		} else {
			updates["removed_by_user_id"] = nil
			updates["removed_reason"] = ""
		}
	}
	if err := s.posts.UpdateModeration(ctx, post.ID, updates); err != nil {
		return nil, models.NewInternalError(err)
	}

	updated, err := s.posts.GetByID(ctx, post.ID, in.ActorID)
	if err != nil {
		return nil, storeError(err, "Post", post.ID, "")
	}
	return updated, nil
}
