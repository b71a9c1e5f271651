package service

import (
	"context"
	"math"
	"strings"

	"pettit/internal/cache"
	"pettit/internal/database"
	"pettit/internal/models"
	"pettit/internal/observability"
	"pettit/internal/repository"
	"pettit/internal/validation"
)

// Community listing limits.
const (
	DefaultCommunityLimit = 20
	DefaultPopularLimit   = 10
	MaxCommunityLimit     = 100
)

// CommunityService is the community catalogue.
type CommunityService struct {
	communities repository.CommunityRepository
	memberships repository.MembershipRepository
}

// CreateCommunityInput is a new community. Name is stored lowercased.
type CreateCommunityInput struct {
	CreatorID   uint                     `json:"-"`
	Name        string                   `json:"name" validate:"required,community_name"`
	DisplayName string                   `json:"displayName" validate:"trimmed_min,max=21"`
	Description string                   `json:"description" validate:"trimmed_min,max=500"`
	Category    models.CommunityCategory `json:"category" validate:"omitempty,category"`
	IsPrivate   bool                     `json:"isPrivate"`
}

// UpdateCommunityInput edits the mutable fields of a community. Nil fields
// are kept.
type UpdateCommunityInput struct {
	ActorID     uint                      `json:"-"`
	Name        string                    `json:"-"`
	DisplayName *string                   `json:"displayName" validate:"omitempty,trimmed_min,max=21"`
	Description *string                   `json:"description" validate:"omitempty,trimmed_min,max=500"`
	Category    *models.CommunityCategory `json:"category" validate:"omitempty,category"`
	IsPrivate   *bool                     `json:"isPrivate"`
	ImagePath   *string                   `json:"imagePath" validate:"omitempty,max=2048"`
}

// ListCommunitiesInput filters and pages the catalogue. A Category of "all"
// or "" disables the category filter.
type ListCommunitiesInput struct {
	Page     int
	Limit    int
	Category string
	Search   string
	Sort     string
	ViewerID uint
}

// Pagination describes a page of a counted listing.
type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

func newPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return Pagination{
		Page:    page,
		Limit:   limit,
		Total:   total,
		Pages:   pages,
		HasNext: int64(page*limit) < total,
		HasPrev: page > 1,
	}
}

// CommunityListing is a community together with the caller's membership,
// nil when the caller is anonymous or not a member.
type CommunityListing struct {
	Community  models.Community
	Membership *models.Membership
}

// CommunityList is one page of the catalogue.
type CommunityList struct {
	Items      []CommunityListing
	Pagination Pagination
}

// CommunityDetail is a community and the caller's membership status.
type CommunityDetail struct {
	Community  *models.Community
	IsMember   bool
	Membership *models.Membership
}

// MemberList is one page of a community's members.
type MemberList struct {
	Members    []models.Membership
	Pagination Pagination
}

// NewCommunityService creates a CommunityService.
func NewCommunityService(communities repository.CommunityRepository, memberships repository.MembershipRepository) *CommunityService {
	return &CommunityService{communities: communities, memberships: memberships}
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxCommunityLimit {
		return MaxCommunityLimit
	}
	return limit
}

// Create inserts the community and its creator's admin membership.
func (s *CommunityService) Create(ctx context.Context, in CreateCommunityInput) (*models.Community, error) {
	in.Name = validation.NormalizeCommunityName(in.Name)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	name := in.Name
	category := in.Category
	if category == "" {
		category = models.CategoryGeneral
	}

	if _, err := s.communities.GetByName(ctx, name); err == nil {
		return nil, models.NewConflictError("A community with this name already exists")
	} else if !database.IsNotFound(err) {
		return nil, models.NewInternalError(err)
	}

	community := &models.Community{
		Name:        name,
		DisplayName: strings.TrimSpace(in.DisplayName),
		Description: strings.TrimSpace(in.Description),
		CreatorID:   in.CreatorID,
		Category:    category,
		IsPrivate:   in.IsPrivate,
	}
	if err := s.communities.Create(ctx, community); err != nil {
		return nil, storeError(err, "Community", name, "A community with this name already exists")
	}
	observability.MembershipChanges.WithLabelValues("create").Inc()
	cache.InvalidateCommunity(ctx, name)

	created, err := s.communities.GetByName(ctx, name)
	if err != nil {
		return nil, storeError(err, "Community", name, "")
	}
	return created, nil
}

// Resolve returns the active community called name.
func (s *CommunityService) Resolve(ctx context.Context, name string) (*models.Community, error) {
	name = validation.NormalizeCommunityName(name)
	community, err := cache.Aside(ctx, cache.CommunityKey(name), cache.CommunityTTL, func(ctx context.Context) (*models.Community, error) {
		return s.communities.GetByName(ctx, name)
	})
	if err != nil {
		return nil, storeError(err, "Community", name, "")
	}
	if !community.IsActive {
		return nil, models.NewNamedNotFoundError("Community", name)
	}
	return community, nil
}

// Detail returns the community with the viewer's membership status.
func (s *CommunityService) Detail(ctx context.Context, name string, viewerID uint) (*CommunityDetail, error) {
	community, err := s.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	detail := &CommunityDetail{Community: community}
	if viewerID == 0 {
		return detail, nil
	}

	m, err := s.memberships.Get(ctx, viewerID, community.ID)
	switch {
	case err == nil && m.IsActive:
		detail.IsMember = true
		detail.Membership = m
	case err != nil && !database.IsNotFound(err):
		return nil, models.NewInternalError(err)
	}
	return detail, nil
}

func (s *CommunityService) canEdit(ctx context.Context, community *models.Community, actorID uint) (bool, error) {
	if community.CreatorID == actorID {
		return true, nil
	}
	m, err := s.memberships.Get(ctx, actorID, community.ID)
	if err != nil {
		if database.IsNotFound(err) {
			return false, nil
		}
		return false, models.NewInternalError(err)
	}
	return m.IsActive && (m.Role == models.MembershipRoleAdmin || m.Role == models.MembershipRoleModerator), nil
}

// Update edits a community on behalf of its creator or an admin or
// moderator member.
func (s *CommunityService) Update(ctx context.Context, in UpdateCommunityInput) (*models.Community, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	community, err := s.Resolve(ctx, in.Name)
	if err != nil {
		return nil, err
	}
	allowed, err := s.canEdit(ctx, community, in.ActorID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, models.NewForbiddenError("Not authorized to update this community")
	}

	updates := map[string]any{}
	if in.DisplayName != nil {
		updates["display_name"] = strings.TrimSpace(*in.DisplayName)
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}
	if in.Category != nil {
		updates["category"] = *in.Category
	}
	if in.IsPrivate != nil {
		updates["is_private"] = *in.IsPrivate
	}
	if in.ImagePath != nil {
		updates["image_path"] = strings.TrimSpace(*in.ImagePath)
	}
	if err := s.communities.Update(ctx, community.ID, updates); err != nil {
		return nil, models.NewInternalError(err)
	}
	cache.InvalidateCommunity(ctx, community.Name)

	updated, err := s.communities.GetByName(ctx, community.Name)
	if err != nil {
		return nil, storeError(err, "Community", community.Name, "")
	}
	return updated, nil
}

// Delete deactivates the community and all of its memberships. Only the
// creator may delete.
func (s *CommunityService) Delete(ctx context.Context, actorID uint, name string) error {
	community, err := s.Resolve(ctx, name)
	if err != nil {
		return err
	}
	if community.CreatorID != actorID {
		return models.NewForbiddenError("Only the creator can delete this community")
	}
	if err := s.communities.SoftDelete(ctx, community.ID); err != nil {
		return storeError(err, "Community", community.Name, "")
	}
	observability.MembershipChanges.WithLabelValues("deactivate").Inc()
	cache.InvalidateCommunity(ctx, community.Name)
	return nil
}

func parseCommunitySort(raw string) (repository.CommunitySort, error) {
	switch sort := repository.CommunitySort(strings.TrimSpace(raw)); sort {
	case "":
		return repository.CommunitySortMembers, nil
	case repository.CommunitySortMembers, repository.CommunitySortNewest, repository.CommunitySortOldest,
		repository.CommunitySortPosts, repository.CommunitySortName:
		return sort, nil
	}
	return "", models.NewFieldValidationError("Invalid sort",
		models.FieldError{Field: "sort", Message: "sort must be one of memberCount, newest, oldest, posts, name"})
}

func parseCategory(raw string) (models.CommunityCategory, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" || raw == "all" {
		return "", nil
	}
	category := models.CommunityCategory(raw)
	if !category.Valid() {
		return "", models.NewFieldValidationError("Invalid category",
			models.FieldError{Field: "category", Message: "category is not a known category"})
	}
	return category, nil
}

// List returns a page of active communities annotated with the viewer's
// membership.
func (s *CommunityService) List(ctx context.Context, in ListCommunitiesInput) (*CommunityList, error) {
	sort, err := parseCommunitySort(in.Sort)
	if err != nil {
		return nil, err
	}
	category, err := parseCategory(in.Category)
	if err != nil {
		return nil, err
	}
	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := clampLimit(in.Limit, DefaultCommunityLimit)

	items, total, err := s.communities.List(ctx, repository.CommunityQuery{
		Category: category,
		Search:   strings.TrimSpace(in.Search),
		Sort:     sort,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	listings, err := s.annotate(ctx, items, in.ViewerID)
	if err != nil {
		return nil, err
	}
	return &CommunityList{Items: listings, Pagination: newPagination(page, limit, total)}, nil
}

func (s *CommunityService) annotate(ctx context.Context, items []models.Community, viewerID uint) ([]CommunityListing, error) {
	ids := make([]uint, 0, len(items))
	for _, c := range items {
		ids = append(ids, c.ID)
	}
	byCommunity, err := s.memberships.ListForUser(ctx, viewerID, ids)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	out := make([]CommunityListing, 0, len(items))
	for _, c := range items {
		listing := CommunityListing{Community: c}
		if m, ok := byCommunity[c.ID]; ok {
			listing.Membership = &m
		}
		out = append(out, listing)
	}
	return out, nil
}

// Popular returns the communities with the most members.
func (s *CommunityService) Popular(ctx context.Context, limit int) ([]models.Community, error) {
	limit = clampLimit(limit, DefaultPopularLimit)
	items, err := cache.Aside(ctx, cache.PopularKey(limit), cache.PopularTTL, func(ctx context.Context) ([]models.Community, error) {
		items, _, err := s.communities.List(ctx, repository.CommunityQuery{Sort: repository.CommunitySortMembers, Limit: limit})
		if items == nil {
			items = []models.Community{}
		}
		return items, err
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return items, nil
}

// ByCategory returns the largest communities in category.
func (s *CommunityService) ByCategory(ctx context.Context, category string, limit int) ([]models.Community, error) {
	cat, err := parseCategory(category)
	if err != nil {
		return nil, err
	}
	items, _, err := s.communities.List(ctx, repository.CommunityQuery{
		Category: cat,
		Sort:     repository.CommunitySortMembers,
		Limit:    clampLimit(limit, DefaultCommunityLimit),
	})
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if items == nil {
		items = []models.Community{}
	}
	return items, nil
}

// Members returns a page of the community's active members, optionally
// restricted to role.
func (s *CommunityService) Members(ctx context.Context, name string, page, limit int, role models.MembershipRole) (*MemberList, error) {
	if role != "" && !role.Valid() {
		return nil, models.NewFieldValidationError("Invalid role",
			models.FieldError{Field: "role", Message: "role must be one of member, moderator, admin"})
	}
	community, err := s.Resolve(ctx, name)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	limit = clampLimit(limit, DefaultCommunityLimit)

	members, total, err := s.memberships.ListMembers(ctx, community.ID, role, limit, (page-1)*limit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if members == nil {
		members = []models.Membership{}
	}
	return &MemberList{Members: members, Pagination: newPagination(page, limit, total)}, nil
}

// UserCommunities returns a page of the active communities userID belongs
// to; each membership carries its community.
func (s *CommunityService) UserCommunities(ctx context.Context, userID uint, page, limit int) (*MemberList, error) {
	if page < 1 {
		page = 1
	}
	limit = clampLimit(limit, DefaultCommunityLimit)

	rows, total, err := s.memberships.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if rows == nil {
		rows = []models.Membership{}
	}
	return &MemberList{Members: rows, Pagination: newPagination(page, limit, total)}, nil
}
