package service

import (
	"context"
	"strings"

	"pettit/internal/models"
	"pettit/internal/observability"
	"pettit/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// SearchType selects which groups a search fills.
type SearchType string

const (
	SearchAll         SearchType = "all"
	SearchPosts       SearchType = "posts"
	SearchCommunities SearchType = "communities"
	SearchUsers       SearchType = "users"
)

// SearchSort orders the posts group. Relevance falls back to newest first.
type SearchSort string

const (
	SearchRelevance SearchSort = "relevance"
	SearchNew       SearchSort = "new"
	SearchTop       SearchSort = "top"
)

// Per-group result caps.
const (
	MaxSearchPosts       = 20
	MaxSearchCommunities = 10
	MaxSearchUsers       = 10
)

// SearchQuery is a multi-entity search request.
type SearchQuery struct {
	Term     string
	Type     SearchType
	Sort     SearchSort
	ViewerID uint
}

// SearchResult groups matches by entity. Groups that were not searched are
// empty, never nil.
type SearchResult struct {
	Posts       []*models.Post
	Communities []models.Community
	Users       []models.User
}

// SearchService resolves substring searches over posts, communities and users.
type SearchService struct {
	posts       repository.PostRepository
	communities repository.CommunityRepository
	users       repository.UserRepository
}

// NewSearchService creates a SearchService.
func NewSearchService(posts repository.PostRepository, communities repository.CommunityRepository, users repository.UserRepository) *SearchService {
	return &SearchService{posts: posts, communities: communities, users: users}
}

func emptySearchResult() *SearchResult {
	return &SearchResult{
		Posts:       []*models.Post{},
		Communities: []models.Community{},
		Users:       []models.User{},
	}
}

// Search runs q. A blank term returns empty groups without querying the store.
func (s *SearchService) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	term := strings.TrimSpace(q.Term)
	if term == "" {
		return emptySearchResult(), nil
	}

	searchType := SearchType(strings.ToLower(string(q.Type)))
	switch searchType {
	case "":
		searchType = SearchAll
	case SearchAll, SearchPosts, SearchCommunities, SearchUsers:
	default:
		return nil, models.NewFieldValidationError("Invalid search type",
			models.FieldError{Field: "type", Message: "type must be one of all, posts, communities, users"})
	}

	order := repository.OrderNew
	switch SearchSort(strings.ToLower(string(q.Sort))) {
	case "", SearchRelevance, SearchNew:
	case SearchTop:
		order = repository.OrderTop
	default:
		return nil, models.NewFieldValidationError("Invalid sort",
			models.FieldError{Field: "sort", Message: "sort must be one of relevance, new, top"})
	}

	span, ctx := observability.NewSpan(ctx, "search",
		attribute.String("search.type", string(searchType)))
	defer span.End()

	result := emptySearchResult()

	if searchType == SearchAll || searchType == SearchPosts {
		posts, err := s.posts.List(ctx, repository.PostQuery{
			Search:   term,
			Order:    order,
			Limit:    MaxSearchPosts,
			ViewerID: q.ViewerID,
		})
		if err != nil {
			span.SetError(err)
			return nil, models.NewInternalError(err)
		}
		if posts != nil {
			result.Posts = posts
		}
	}

	if searchType == SearchAll || searchType == SearchCommunities {
		communities, err := s.communities.Search(ctx, term, MaxSearchCommunities)
		if err != nil {
			span.SetError(err)
			return nil, models.NewInternalError(err)
		}
		if communities != nil {
			result.Communities = communities
		}
	}

	if searchType == SearchAll || searchType == SearchUsers {
		users, err := s.users.Search(ctx, term, MaxSearchUsers)
		if err != nil {
			span.SetError(err)
			return nil, models.NewInternalError(err)
		}
		if users != nil {
			result.Users = users
		}
	}

	return result, nil
}
