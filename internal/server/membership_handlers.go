package server

import (
	"strings"

	"pettit/internal/models"
	"pettit/internal/service"

	"github.com/gofiber/fiber/v2"
)

// resolveCommunity looks up the :name community. On failure it writes the
// error response and returns errResponseWritten.
func (s *Server) resolveCommunity(c *fiber.Ctx) (*models.Community, error) {
	community, err := s.communityService.Resolve(c.UserContext(), communityName(c))
	if err != nil {
		_ = s.respondError(c, err)
		return nil, errResponseWritten
	}
	return community, nil
}

// JoinCommunity handles POST /api/communities/:name/join
// @Summary Join a community
// @Tags memberships
// @Produce json
// @Param name path string true "Community name"
// @Success 201 {object} MembershipResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /communities/{name}/join [post]
func (s *Server) JoinCommunity(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	community, err := s.resolveCommunity(c)
	if err != nil {
		return nil
	}

	m, err := s.membershipService.Join(c.UserContext(), userID, community.ID, models.MembershipRoleMember)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMembershipResponse(m))
}

// LeaveCommunity handles POST /api/communities/:name/leave
// @Summary Leave a community
// @Tags memberships
// @Produce json
// @Param name path string true "Community name"
// @Success 200 {object} object{message=string}
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /communities/{name}/leave [post]
func (s *Server) LeaveCommunity(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	community, err := s.resolveCommunity(c)
	if err != nil {
		return nil
	}

	if err := s.membershipService.Leave(c.UserContext(), userID, community.ID); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Left community"})
}

// InviteMember handles POST /api/communities/:name/members
func (s *Server) InviteMember(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)

	var req struct {
		UserID uint   `json:"userId"`
		Role   string `json:"role"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}
	if req.UserID == 0 {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewFieldValidationError("User is required",
				models.FieldError{Field: "userId", Message: "userId is required"}))
	}

	community, err := s.resolveCommunity(c)
	if err != nil {
		return nil
	}

	role := models.MembershipRole(strings.ToLower(strings.TrimSpace(req.Role)))
	m, err := s.membershipService.Invite(c.UserContext(), actorID, req.UserID, community.ID, role)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(toMembershipResponse(m))
}

// UpdateMemberRole handles PUT /api/communities/:name/members/:userId
// @Summary Change a member's role and permissions
// @Tags memberships
// @Accept json
// @Produce json
// @Param name path string true "Community name"
// @Param userId path int true "Member user ID"
// @Param request body object{role=string,permissions=models.PermissionOverrides} true "Role change"
// @Success 200 {object} MembershipResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /communities/{name}/members/{userId} [put]
func (s *Server) UpdateMemberRole(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	var req struct {
		Role        string                      `json:"role"`
		Permissions *models.PermissionOverrides `json:"permissions"`
	}
	if err := bindJSON(c, &req); err != nil {
		return nil
	}

	community, err := s.resolveCommunity(c)
	if err != nil {
		return nil
	}

	m, err := s.membershipService.UpdateRole(c.UserContext(), service.UpdateRoleInput{
		ActorID:     actorID,
		UserID:      userID,
		CommunityID: community.ID,
		Role:        models.MembershipRole(strings.ToLower(strings.TrimSpace(req.Role))),
		Permissions: req.Permissions,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(toMembershipResponse(m))
}

// RemoveMember handles DELETE /api/communities/:name/members/:userId
func (s *Server) RemoveMember(c *fiber.Ctx) error {
	actorID := c.Locals("userID").(uint)
	userID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	community, err := s.resolveCommunity(c)
	if err != nil {
		return nil
	}

	if err := s.membershipService.Remove(c.UserContext(), actorID, userID, community.ID); err != nil {
		return s.respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
