package server

import (
	"pettit/internal/models"
	"pettit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetCommunities handles GET /api/communities
// @Summary List communities
// @Tags communities
// @Produce json
// @Param category query string false "Category, or all"
// @Param search query string false "Name, display name or description substring"
// @Param sort query string false "memberCount, createdAt or name"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} CommunityListResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /communities [get]
func (s *Server) GetCommunities(c *fiber.Ctx) error {
	page := parsePage(c, service.DefaultCommunityLimit)

	list, err := s.communityService.List(c.UserContext(), service.ListCommunitiesInput{
		Page:     page.Page,
		Limit:    page.Limit,
		Category: c.Query("category"),
		Search:   c.Query("search"),
		Sort:     c.Query("sort"),
		ViewerID: viewerID(c),
	})
	if err != nil {
		return s.respondError(c, err)
	}

	out := CommunityListResponse{
		Communities: make([]CommunityResponse, 0, len(list.Items)),
		Pagination:  list.Pagination,
	}
	for i := range list.Items {
		item := list.Items[i]
		resp := toCommunityResponse(&item.Community)
		if viewerID(c) != 0 {
			isMember := item.Membership != nil
			resp.IsMember = &isMember
			resp.Membership = toMembershipResponse(item.Membership)
		}
		out.Communities = append(out.Communities, resp)
	}
	return c.JSON(out)
}

// GetPopularCommunities handles GET /api/communities/popular
func (s *Server) GetPopularCommunities(c *fiber.Ctx) error {
	items, err := s.communityService.Popular(c.UserContext(), c.QueryInt("limit", service.DefaultPopularLimit))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"communities": toCommunityResponses(items)})
}

// GetCommunitiesByCategory handles GET /api/communities/categories/:category
func (s *Server) GetCommunitiesByCategory(c *fiber.Ctx) error {
	items, err := s.communityService.ByCategory(c.UserContext(), c.Params("category"), c.QueryInt("limit", service.DefaultCommunityLimit))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"communities": toCommunityResponses(items)})
}

// GetUserCommunities handles GET /api/communities/user/:userId
func (s *Server) GetUserCommunities(c *fiber.Ctx) error {
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}
	page := parsePage(c, service.DefaultCommunityLimit)

	list, err := s.communityService.UserCommunities(c.UserContext(), userID, page.Page, page.Limit)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(toMemberListResponse(list))
}

// GetCommunity handles GET /api/communities/:name
// @Summary Get a community
// @Description Includes the caller's membership when authenticated
// @Tags communities
// @Produce json
// @Param name path string true "Community name"
// @Success 200 {object} CommunityResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /communities/{name} [get]
func (s *Server) GetCommunity(c *fiber.Ctx) error {
	detail, err := s.communityService.Detail(c.UserContext(), communityName(c), viewerID(c))
	if err != nil {
		return s.respondError(c, err)
	}

	resp := toCommunityResponse(detail.Community)
	resp.IsMember = &detail.IsMember
	resp.Membership = toMembershipResponse(detail.Membership)
	return c.JSON(resp)
}

// GetCommunityPosts handles GET /api/communities/:name/posts
func (s *Server) GetCommunityPosts(c *fiber.Ctx) error {
	page := parsePage(c, service.DefaultPageSize)

	feed, err := s.feedService.QueryFeed(c.UserContext(), service.FeedQuery{
		Scope:         service.ScopeCommunity,
		CommunityName: communityName(c),
		Tag:           c.Query("tag"),
		Search:        c.Query("search"),
		Sort:          service.FeedSort(c.Query("sort")),
		Page:          page.Page,
		PageSize:      page.Limit,
		ViewerID:      viewerID(c),
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(toFeedPage(feed))
}

// CreateCommunity handles POST /api/communities
// @Summary Create a community
// @Description The creator becomes its first admin member
// @Tags communities
// @Accept json
// @Produce json
// @Param request body service.CreateCommunityInput true "Community"
// @Success 201 {object} CommunityResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /communities [post]
func (s *Server) CreateCommunity(c *fiber.Ctx) error {
	var req service.CreateCommunityInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	req.CreatorID = c.Locals("userID").(uint)

	community, err := s.communityService.Create(c.UserContext(), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toCommunityResponse(community))
}

// UpdateCommunity handles PUT /api/communities/:name
func (s *Server) UpdateCommunity(c *fiber.Ctx) error {
	var req service.UpdateCommunityInput
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	req.ActorID = c.Locals("userID").(uint)
	req.Name = communityName(c)

	community, err := s.communityService.Update(c.UserContext(), req)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(toCommunityResponse(community))
}

// DeleteCommunity handles DELETE /api/communities/:name
func (s *Server) DeleteCommunity(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	if err := s.communityService.Delete(c.UserContext(), userID, communityName(c)); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Community deleted"})
}

// GetCommunityMembers handles GET /api/communities/:name/members
func (s *Server) GetCommunityMembers(c *fiber.Ctx) error {
	page := parsePage(c, service.DefaultCommunityLimit)

	list, err := s.communityService.Members(c.UserContext(), communityName(c), page.Page, page.Limit,
		models.MembershipRole(c.Query("role")))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(toMemberListResponse(list))
}
