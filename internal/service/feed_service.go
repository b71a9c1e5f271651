package service

import (
	"context"
	"strings"

	"pettit/internal/models"
	"pettit/internal/observability"
	"pettit/internal/repository"
	"pettit/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// FeedScope restricts a feed to one axis.
type FeedScope string

const (
	ScopeGlobal    FeedScope = "global"
	ScopeCommunity FeedScope = "community"
	ScopeAuthor    FeedScope = "author"
	ScopeSaved     FeedScope = "saved"
)

// FeedSort orders a feed.
type FeedSort string

const (
	SortNew FeedSort = "new"
	SortHot FeedSort = "hot"
	SortTop FeedSort = "top"
)

// Feed paging limits.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// FeedQuery describes one page of a feed. CommunityID and AuthorID belong to
// their scopes; CommunityName is an optional filter resolved to an ID.
// ViewerID is the requesting user, 0 when anonymous.
type FeedQuery struct {
	Scope         FeedScope
	CommunityID   uint
	AuthorID      uint
	CommunityName string
	Tag           string
	Search        string
	Sort          FeedSort
	Page          int
	PageSize      int
	ViewerID      uint
}

// FeedPage is one page of a feed. HasMore is true when the page is full,
// which does not guarantee a further item exists.
type FeedPage struct {
	Posts    []*models.Post
	Page     int
	PageSize int
	HasMore  bool
}

// FeedService is the feed query engine.
type FeedService struct {
	posts       repository.PostRepository
	communities repository.CommunityRepository
}

// NewFeedService creates a FeedService.
func NewFeedService(posts repository.PostRepository, communities repository.CommunityRepository) *FeedService {
	return &FeedService{posts: posts, communities: communities}
}

// ParseFeedSort maps a query value to a FeedSort; empty means new.
func ParseFeedSort(raw string) (FeedSort, error) {
	switch FeedSort(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SortNew:
		return SortNew, nil
	case SortHot:
		return SortHot, nil
	case SortTop:
		return SortTop, nil
	}
	return "", models.NewFieldValidationError("Invalid sort",
		models.FieldError{Field: "sort", Message: "sort must be one of new, hot, top"})
}

func (s FeedSort) order() repository.PostOrder {
	switch s {
	case SortHot:
		return repository.OrderHot
	case SortTop:
		return repository.OrderTop
	default:
		return repository.OrderNew
	}
}

// NormalizePaging applies the default page and page size and caps the size.
func NormalizePaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// QueryFeed returns one page of active, non-removed posts for q.
func (s *FeedService) QueryFeed(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	if q.Scope == "" {
		q.Scope = ScopeGlobal
	}
	sort, err := ParseFeedSort(string(q.Sort))
	if err != nil {
		return nil, err
	}
	page, pageSize := NormalizePaging(q.Page, q.PageSize)

	rq := repository.PostQuery{
		Tag:      strings.ToLower(strings.TrimSpace(q.Tag)),
		Search:   strings.TrimSpace(q.Search),
		Order:    sort.order(),
		Limit:    pageSize,
		Offset:   (page - 1) * pageSize,
		ViewerID: q.ViewerID,
	}

	switch q.Scope {
	case ScopeGlobal:
	case ScopeCommunity:
		if q.CommunityID == 0 && q.CommunityName == "" {
			return nil, models.NewValidationError("Community scope requires a community")
		}
		rq.CommunityID = q.CommunityID
	case ScopeAuthor:
		if q.AuthorID == 0 {
			return nil, models.NewValidationError("Author scope requires a user")
		}
		rq.AuthorID = q.AuthorID
	case ScopeSaved:
		if q.ViewerID == 0 {
			return nil, models.NewUnauthorizedError("Authorization required")
		}
		rq.SavedByUserID = q.ViewerID
	default:
		return nil, models.NewFieldValidationError("Invalid scope",
			models.FieldError{Field: "scope", Message: "scope must be one of global, community, author, saved"})
	}

	empty := &FeedPage{Posts: []*models.Post{}, Page: page, PageSize: pageSize}

	if q.CommunityName != "" {
		name := validation.NormalizeCommunityName(q.CommunityName)
		community, err := s.communities.GetByName(ctx, name)
		if err != nil {
			return nil, storeError(err, "Community", name, "")
		}
		if !community.IsActive {
			return nil, models.NewNamedNotFoundError("Community", name)
		}
		if rq.CommunityID != 0 && rq.CommunityID != community.ID {
			return empty, nil
		}
		rq.CommunityID = community.ID
	}

	span, ctx := observability.NewSpan(ctx, "feed.query",
		attribute.String("feed.scope", string(q.Scope)),
		attribute.String("feed.sort", string(sort)),
		attribute.Int("feed.page", page),
		observability.AttrViewerID.Int64(int64(q.ViewerID)),
	)
	defer span.End()
	defer observability.ObserveFeedQuery(string(q.Scope), string(sort))()

	posts, err := s.posts.List(ctx, rq)
	if err != nil {
		span.SetError(err)
		return nil, models.NewInternalError(err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}

	return &FeedPage{
		Posts:    posts,
		Page:     page,
		PageSize: pageSize,
		HasMore:  len(posts) == pageSize,
	}, nil
}
