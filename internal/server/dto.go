package server

import (
	"time"

	"pettit/internal/models"
	"pettit/internal/service"
)

// AuthorSummary is the public face of a post's author.
type AuthorSummary struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
	Verified bool   `json:"verified"`
}

// CommunitySummary identifies the community a post belongs to.
type CommunitySummary struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// MediaItem is one attachment of a post.
type MediaItem struct {
	Type    models.MediaKind `json:"type"`
	URL     string           `json:"url"`
	Caption string           `json:"caption,omitempty"`
}

// PostSummary is the API shape of a post. UserVote is null for anonymous
// viewers.
type PostSummary struct {
	ID           uint              `json:"id"`
	Title        string            `json:"title"`
	Content      string            `json:"content"`
	Media        []MediaItem       `json:"media"`
	Author       *AuthorSummary    `json:"author"`
	Community    *CommunitySummary `json:"community"`
	CreatedAt    time.Time         `json:"createdAt"`
	VoteScore    int               `json:"voteScore"`
	CommentCount int               `json:"commentCount"`
	Views        int               `json:"views"`
	Tags         []string          `json:"tags"`
	IsPinned     bool              `json:"isPinned"`
	IsLocked     bool              `json:"isLocked"`
	IsSponsored  bool              `json:"isSponsored"`
	IsRemoved    bool              `json:"isRemoved,omitempty"`
	UserVote     *models.VoteState `json:"userVote"`
	IsSaved      bool              `json:"isSaved"`
}

// FeedPageResponse is one page of a feed.
type FeedPageResponse struct {
	Posts   []PostSummary `json:"posts"`
	Page    int           `json:"page"`
	Limit   int           `json:"limit"`
	HasMore bool          `json:"hasMore"`
}

// CommunityResponse is the API shape of a community.
type CommunityResponse struct {
	ID          uint                     `json:"id"`
	Name        string                   `json:"name"`
	DisplayName string                   `json:"displayName"`
	Description string                   `json:"description"`
	ImagePath   string                   `json:"imagePath"`
	CreatorID   uint                     `json:"creatorId"`
	MemberCount int                      `json:"memberCount"`
	PostCount   int                      `json:"postCount"`
	Category    models.CommunityCategory `json:"category"`
	IsPrivate   bool                     `json:"isPrivate"`
	CreatedAt   time.Time                `json:"createdAt"`
	IsMember    *bool                    `json:"isMember,omitempty"`
	Membership  *MembershipResponse      `json:"membership,omitempty"`
}

// MembershipResponse is the API shape of a membership.
type MembershipResponse struct {
	UserID      uint                  `json:"userId"`
	CommunityID uint                  `json:"communityId"`
	Role        models.MembershipRole `json:"role"`
	Permissions models.Permissions    `json:"permissions"`
	JoinedAt    time.Time             `json:"joinedAt"`
	User        *AuthorSummary        `json:"user,omitempty"`
	Community   *CommunitySummary     `json:"community,omitempty"`
}

// CommunityListResponse is a page of communities.
type CommunityListResponse struct {
	Communities []CommunityResponse `json:"communities"`
	Pagination  service.Pagination  `json:"pagination"`
}

// MemberListResponse is a page of memberships.
type MemberListResponse struct {
	Members    []MembershipResponse `json:"members"`
	Pagination service.Pagination   `json:"pagination"`
}

// SearchResponse groups search matches by entity.
type SearchResponse struct {
	Posts       []PostSummary       `json:"posts"`
	Communities []CommunityResponse `json:"subreddits"`
	Users       []AuthorSummary     `json:"users"`
}

func toAuthorSummary(u *models.User) *AuthorSummary {
	if u == nil {
		return nil
	}
	return &AuthorSummary{ID: u.ID, Username: u.Username, Avatar: u.Avatar, Verified: u.Verified}
}

func toCommunitySummary(c *models.Community) *CommunitySummary {
	if c == nil {
		return nil
	}
	return &CommunitySummary{ID: c.ID, Name: c.Name, DisplayName: c.DisplayName}
}

func toPostSummary(p *models.Post) PostSummary {
	media := make([]MediaItem, 0, len(p.Media))
	for _, m := range p.Media {
		v := m.Variant()
		media = append(media, MediaItem{Type: v.Kind(), URL: v.Location(), Caption: v.Label()})
	}

	out := PostSummary{
		ID:           p.ID,
		Title:        p.Title,
		Content:      p.Content,
		Media:        media,
		Author:       toAuthorSummary(p.Author),
		Community:    toCommunitySummary(p.Community),
		CreatedAt:    p.CreatedAt,
		VoteScore:    p.VoteScore,
		CommentCount: p.CommentCount,
		Views:        p.Views,
		Tags:         p.TagNames(),
		IsPinned:     p.IsPinned,
		IsLocked:     p.IsLocked,
		IsSponsored:  p.IsSponsored,
		IsRemoved:    p.IsRemoved,
		IsSaved:      p.IsSaved,
	}
	if p.UserVote != "" {
		vote := models.VoteState(p.UserVote)
		out.UserVote = &vote
	}
	return out
}

func toPostSummaries(posts []*models.Post) []PostSummary {
	out := make([]PostSummary, 0, len(posts))
	for _, p := range posts {
		out = append(out, toPostSummary(p))
	}
	return out
}

func toFeedPage(page *service.FeedPage) FeedPageResponse {
	return FeedPageResponse{
		Posts:   toPostSummaries(page.Posts),
		Page:    page.Page,
		Limit:   page.PageSize,
		HasMore: page.HasMore,
	}
}

func toCommunityResponse(c *models.Community) CommunityResponse {
	return CommunityResponse{
		ID:          c.ID,
		Name:        c.Name,
		DisplayName: c.DisplayName,
		Description: c.Description,
		ImagePath:   c.ImagePath,
		CreatorID:   c.CreatorID,
		MemberCount: c.MemberCount,
		PostCount:   c.PostCount,
		Category:    c.Category,
		IsPrivate:   c.IsPrivate,
		CreatedAt:   c.CreatedAt,
	}
}

func toCommunityResponses(items []models.Community) []CommunityResponse {
	out := make([]CommunityResponse, 0, len(items))
	for i := range items {
		out = append(out, toCommunityResponse(&items[i]))
	}
	return out
}

func toMembershipResponse(m *models.Membership) *MembershipResponse {
	if m == nil {
		return nil
	}
	return &MembershipResponse{
		UserID:      m.UserID,
		CommunityID: m.CommunityID,
		Role:        m.Role,
		Permissions: m.Permissions,
		JoinedAt:    m.JoinedAt,
		User:        toAuthorSummary(m.User),
		Community:   toCommunitySummary(m.Community),
	}
}

func toMemberListResponse(list *service.MemberList) MemberListResponse {
	members := make([]MembershipResponse, 0, len(list.Members))
	for i := range list.Members {
		members = append(members, *toMembershipResponse(&list.Members[i]))
	}
	return MemberListResponse{Members: members, Pagination: list.Pagination}
}

func toSearchResponse(r *service.SearchResult) SearchResponse {
	users := make([]AuthorSummary, 0, len(r.Users))
	for i := range r.Users {
		users = append(users, *toAuthorSummary(&r.Users[i]))
	}
	return SearchResponse{
		Posts:       toPostSummaries(r.Posts),
		Communities: toCommunityResponses(r.Communities),
		Users:       users,
	}
}
