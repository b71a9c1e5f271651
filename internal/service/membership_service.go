package service

import (
	"context"
	"errors"

	"pettit/internal/cache"
	"pettit/internal/database"
	"pettit/internal/featureflags"
	"pettit/internal/models"
	"pettit/internal/notifications"
	"pettit/internal/observability"
	"pettit/internal/repository"
)

// MembershipService is the only writer of community memberships and of
// member_count.
type MembershipService struct {
	communities repository.CommunityRepository
	memberships repository.MembershipRepository
	events      eventSink
}

// UpdateRoleInput changes a member's role and permission bundle. An empty
// Role keeps the current role; nil permission fields keep their value.
type UpdateRoleInput struct {
	ActorID     uint
	UserID      uint
	CommunityID uint
	Role        models.MembershipRole
	Permissions *models.PermissionOverrides
}

// NewMembershipService creates a MembershipService. publisher and flags may be nil.
func NewMembershipService(
	communities repository.CommunityRepository,
	memberships repository.MembershipRepository,
	publisher notifications.Publisher,
	flags featureflags.Checker,
) *MembershipService {
	return &MembershipService{
		communities: communities,
		memberships: memberships,
		events:      eventSink{publisher: publisher, flags: flags},
	}
}

func (s *MembershipService) activeCommunity(ctx context.Context, communityID uint) (*models.Community, error) {
	community, err := s.communities.GetByID(ctx, communityID)
	if err != nil {
		return nil, storeError(err, "Community", communityID, "")
	}
	if !community.IsActive {
		return nil, models.NewNotFoundError("Community", communityID)
	}
	return community, nil
}

// activeMembership returns the user's active membership or nil.
func (s *MembershipService) activeMembership(ctx context.Context, userID, communityID uint) (*models.Membership, error) {
	m, err := s.memberships.Get(ctx, userID, communityID)
	if err != nil {
		if database.IsNotFound(err) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	if !m.IsActive {
		return nil, nil
	}
	return m, nil
}

// Join adds userID to the community with role (member when empty).
func (s *MembershipService) Join(ctx context.Context, userID, communityID uint, role models.MembershipRole) (*models.Membership, error) {
	if role == "" {
		role = models.MembershipRoleMember
	}
	if !role.Valid() {
		return nil, models.NewFieldValidationError("Invalid role",
			models.FieldError{Field: "role", Message: "role must be one of member, moderator, admin"})
	}

	community, err := s.activeCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	return s.join(ctx, community, userID, role)
}

func (s *MembershipService) join(ctx context.Context, community *models.Community, userID uint, role models.MembershipRole) (*models.Membership, error) {
	// Inactive rows only remain in deactivated communities, so any row for
	// the pair counts as a duplicate.
	_, err := s.memberships.Get(ctx, userID, community.ID)
	switch {
	case err == nil:
		return nil, models.ErrDuplicateMembership
	case !database.IsNotFound(err):
		return nil, models.NewInternalError(err)
	}

	m := &models.Membership{
		UserID:      userID,
		CommunityID: community.ID,
		Role:        role,
		Permissions: models.DefaultPermissions(role),
	}
	if err := s.memberships.Join(ctx, m); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, models.ErrDuplicateMembership
		}
		return nil, models.NewInternalError(err)
	}

	observability.MembershipChanges.WithLabelValues("join").Inc()
	cache.InvalidateCommunity(ctx, community.Name)
	s.events.emit(ctx, notifications.EventCommunityJoined, map[string]any{
		"community_id": community.ID,
		"user_id":      userID,
		"role":         role,
	})
	return m, nil
}

// Leave removes userID from the community. The creator cannot leave.
func (s *MembershipService) Leave(ctx context.Context, userID, communityID uint) error {
	community, err := s.activeCommunity(ctx, communityID)
	if err != nil {
		return err
	}
	return s.leave(ctx, community, userID, "leave")
}

func (s *MembershipService) leave(ctx context.Context, community *models.Community, userID uint, change string) error {
	m, err := s.activeMembership(ctx, userID, community.ID)
	if err != nil {
		return err
	}
	if m == nil {
		return models.ErrNotAMember
	}
	if community.CreatorID == userID {
		return models.ErrCreatorCannotLeave
	}

	if err := s.memberships.Leave(ctx, m); err != nil {
		if database.IsNotFound(err) {
			return models.ErrNotAMember
		}
		return models.NewInternalError(err)
	}

	observability.MembershipChanges.WithLabelValues(change).Inc()
	cache.InvalidateCommunity(ctx, community.Name)
	s.events.emit(ctx, notifications.EventCommunityLeft, map[string]any{
		"community_id": community.ID,
		"user_id":      userID,
	})
	return nil
}

// canManageUsers reports whether actorID may administer members.
func (s *MembershipService) canManageUsers(ctx context.Context, community *models.Community, actorID uint) (bool, error) {
	if community.CreatorID == actorID {
		return true, nil
	}
	m, err := s.activeMembership(ctx, actorID, community.ID)
	if err != nil {
		return false, err
	}
	return m != nil && m.Permissions.CanManageUsers, nil
}

// UpdateRole sets the target member's role and merges permission overrides
// onto the existing bundle.
func (s *MembershipService) UpdateRole(ctx context.Context, in UpdateRoleInput) (*models.Membership, error) {
	if in.Role != "" && !in.Role.Valid() {
		return nil, models.NewFieldValidationError("Invalid role",
			models.FieldError{Field: "role", Message: "role must be one of member, moderator, admin"})
	}

	community, err := s.activeCommunity(ctx, in.CommunityID)
	if err != nil {
		return nil, err
	}

	m, err := s.activeMembership(ctx, in.UserID, community.ID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, models.ErrMembershipNotFound
	}

	allowed, err := s.canManageUsers(ctx, community, in.ActorID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, models.NewForbiddenError("Not authorized to manage members of this community")
	}
	if in.UserID == community.CreatorID {
		return nil, models.NewForbiddenError("The community creator's role cannot be changed")
	}

	if in.Role != "" {
		m.Role = in.Role
	}
	m.Permissions = m.Permissions.Merge(in.Permissions)
	if err := s.memberships.Update(ctx, m); err != nil {
		return nil, models.NewInternalError(err)
	}

	observability.MembershipChanges.WithLabelValues("role_update").Inc()
	cache.InvalidateCommunity(ctx, community.Name)
	return m, nil
}

// Invite adds userID with role on behalf of an actor holding canManageUsers.
func (s *MembershipService) Invite(ctx context.Context, actorID, userID, communityID uint, role models.MembershipRole) (*models.Membership, error) {
	if role == "" {
		role = models.MembershipRoleMember
	}
	if !role.Valid() {
		return nil, models.NewFieldValidationError("Invalid role",
			models.FieldError{Field: "role", Message: "role must be one of member, moderator, admin"})
	}

	community, err := s.activeCommunity(ctx, communityID)
	if err != nil {
		return nil, err
	}
	allowed, err := s.canManageUsers(ctx, community, actorID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, models.NewForbiddenError("Not authorized to invite members to this community")
	}
	return s.join(ctx, community, userID, role)
}

// Remove deletes userID's membership on behalf of an actor holding
// canManageUsers. The creator cannot be removed.
func (s *MembershipService) Remove(ctx context.Context, actorID, userID, communityID uint) error {
	community, err := s.activeCommunity(ctx, communityID)
	if err != nil {
		return err
	}
	allowed, err := s.canManageUsers(ctx, community, actorID)
	if err != nil {
		return err
	}
	if !allowed {
		return models.NewForbiddenError("Not authorized to remove members from this community")
	}
	if err := s.leave(ctx, community, userID, "remove"); err != nil {
		if errors.Is(err, models.ErrCreatorCannotLeave) {
			return models.NewForbiddenError("The community creator cannot be removed")
		}
		return err
	}
	return nil
}

// Reconcile recomputes member_count and post_count from the stored rows for
// one community, or every community when communityID is 0.
func (s *MembershipService) Reconcile(ctx context.Context, communityID uint) error {
	if err := s.memberships.Reconcile(ctx, communityID); err != nil {
		return models.NewInternalError(err)
	}
	observability.MembershipChanges.WithLabelValues("reconcile").Inc()
	return nil
}
