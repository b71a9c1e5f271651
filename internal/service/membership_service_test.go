package service

import (
	"context"
	"testing"

	"pettit/internal/featureflags"
	"pettit/internal/models"
	"pettit/internal/notifications"
	"pettit/internal/repository"
	"pettit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type membershipFixture struct {
	db        *gorm.DB
	svc       *MembershipService
	publisher *recordingPublisher
	creator   *models.User
	community *models.Community
}

func newMembershipFixture(t *testing.T) *membershipFixture {
	t.Helper()
	db := testutil.NewDB(t)
	creator := testutil.CreateUser(t, db, "founder")
	community := testutil.CreateCommunity(t, db, "dogs", creator.ID)
	pub := &recordingPublisher{}
	svc := NewMembershipService(
		repository.NewCommunityRepository(db),
		repository.NewMembershipRepository(db),
		pub,
		featureflags.NewManager("event_publishing=on"),
	)
	return &membershipFixture{db: db, svc: svc, publisher: pub, creator: creator, community: community}
}

func (f *membershipFixture) memberCount(t *testing.T) int {
	t.Helper()
	var c models.Community
	require.NoError(t, f.db.First(&c, f.community.ID).Error)
	return c.MemberCount
}

func TestMembershipService_JoinLeaveCounts(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()
	for i := 0; i < 9; i++ {
		u := testutil.CreateUser(t, f.db, "member"+string(rune('a'+i)))
		_, err := f.svc.Join(ctx, u.ID, f.community.ID, "")
		require.NoError(t, err)
	}
	require.Equal(t, 10, f.memberCount(t))

	newcomer := testutil.CreateUser(t, f.db, "newcomer")
	m, err := f.svc.Join(ctx, newcomer.ID, f.community.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.MembershipRoleMember, m.Role)
	assert.Equal(t, models.Permissions{}, m.Permissions)
	assert.Equal(t, 11, f.memberCount(t))

	_, err = f.svc.Join(ctx, newcomer.ID, f.community.ID, "")
	assert.ErrorIs(t, err, models.ErrDuplicateMembership)
	assertAppErrorCode(t, err, models.CodeConflict)
	assert.Equal(t, 11, f.memberCount(t))

	require.NoError(t, f.svc.Leave(ctx, newcomer.ID, f.community.ID))
	assert.Equal(t, 10, f.memberCount(t))

	err = f.svc.Leave(ctx, newcomer.ID, f.community.ID)
	assert.ErrorIs(t, err, models.ErrNotAMember)
	assert.Equal(t, 10, f.memberCount(t))

	types := f.publisher.types()
	assert.Contains(t, types, notifications.EventCommunityJoined)
	assert.Contains(t, types, notifications.EventCommunityLeft)
}

func TestMembershipService_CreatorCannotLeave(t *testing.T) {
	f := newMembershipFixture(t)

	err := f.svc.Leave(context.Background(), f.creator.ID, f.community.ID)
	assert.ErrorIs(t, err, models.ErrCreatorCannotLeave)
	assertForbiddenError(t, err)
	assert.Equal(t, 1, f.memberCount(t))
}

func TestMembershipService_JoinValidation(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()
	u := testutil.CreateUser(t, f.db, "visitor")

	_, err := f.svc.Join(ctx, u.ID, f.community.ID, "overlord")
	assertValidationError(t, err)

	_, err = f.svc.Join(ctx, u.ID, 9999, "")
	assertNotFoundError(t, err)

	require.NoError(t, f.db.Model(&models.Community{}).Where("id = ?", f.community.ID).
		Update("is_active", false).Error)
	_, err = f.svc.Join(ctx, u.ID, f.community.ID, "")
	assertNotFoundError(t, err)
}

func TestMembershipService_UpdateRoleMergesPermissions(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()
	member := testutil.CreateUser(t, f.db, "helper")
	_, err := f.svc.Join(ctx, member.ID, f.community.ID, "")
	require.NoError(t, err)

	m, err := f.svc.UpdateRole(ctx, UpdateRoleInput{
		ActorID:     f.creator.ID,
		UserID:      member.ID,
		CommunityID: f.community.ID,
		Role:        models.MembershipRoleModerator,
		Permissions: &models.PermissionOverrides{CanManagePosts: boolPtr(true)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.MembershipRoleModerator, m.Role)
	assert.Equal(t, models.Permissions{CanManagePosts: true}, m.Permissions)

	m, err = f.svc.UpdateRole(ctx, UpdateRoleInput{
		ActorID:     f.creator.ID,
		UserID:      member.ID,
		CommunityID: f.community.ID,
		Permissions: &models.PermissionOverrides{CanManageComments: boolPtr(true)},
	})
	require.NoError(t, err)
	assert.Equal(t, models.MembershipRoleModerator, m.Role)
	assert.Equal(t, models.Permissions{CanManagePosts: true, CanManageComments: true}, m.Permissions)

	var stored models.Membership
	require.NoError(t, f.db.Where("user_id = ? AND community_id = ?", member.ID, f.community.ID).First(&stored).Error)
	assert.Equal(t, m.Permissions, stored.Permissions)
	assert.Equal(t, models.MembershipRoleModerator, stored.Role)
}

func TestMembershipService_UpdateRoleAuthorization(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()
	member := testutil.CreateUser(t, f.db, "member")
	other := testutil.CreateUser(t, f.db, "other")
	outsider := testutil.CreateUser(t, f.db, "outsider")
	for _, u := range []*models.User{member, other} {
		_, err := f.svc.Join(ctx, u.ID, f.community.ID, "")
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		input UpdateRoleInput
		check func(t *testing.T, err error)
	}{
		{
			name:  "invalid role",
			input: UpdateRoleInput{ActorID: f.creator.ID, UserID: member.ID, CommunityID: f.community.ID, Role: "king"},
			check: assertValidationError,
		},
		{
			name:  "target is not a member",
			input: UpdateRoleInput{ActorID: f.creator.ID, UserID: outsider.ID, CommunityID: f.community.ID, Role: models.MembershipRoleModerator},
			check: func(t *testing.T, err error) { assert.ErrorIs(t, err, models.ErrMembershipNotFound) },
		},
		{
			name:  "actor lacks canManageUsers",
			input: UpdateRoleInput{ActorID: other.ID, UserID: member.ID, CommunityID: f.community.ID, Role: models.MembershipRoleAdmin},
			check: assertForbiddenError,
		},
		{
			name:  "creator role is fixed",
			input: UpdateRoleInput{ActorID: f.creator.ID, UserID: f.creator.ID, CommunityID: f.community.ID, Role: models.MembershipRoleMember},
			check: assertForbiddenError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.UpdateRole(ctx, tt.input)
			tt.check(t, err)
		})
	}
}

func TestMembershipService_InviteAndRemove(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()
	guest := testutil.CreateUser(t, f.db, "guest")
	plain := testutil.CreateUser(t, f.db, "plain")
	_, err := f.svc.Join(ctx, plain.ID, f.community.ID, "")
	require.NoError(t, err)

	_, err = f.svc.Invite(ctx, plain.ID, guest.ID, f.community.ID, "")
	assertForbiddenError(t, err)

	m, err := f.svc.Invite(ctx, f.creator.ID, guest.ID, f.community.ID, models.MembershipRoleModerator)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultPermissions(models.MembershipRoleModerator), m.Permissions)
	assert.Equal(t, 3, f.memberCount(t))

	assertForbiddenError(t, f.svc.Remove(ctx, plain.ID, guest.ID, f.community.ID))
	assertForbiddenError(t, f.svc.Remove(ctx, f.creator.ID, f.creator.ID, f.community.ID))

	require.NoError(t, f.svc.Remove(ctx, f.creator.ID, guest.ID, f.community.ID))
	assert.Equal(t, 2, f.memberCount(t))
	assert.ErrorIs(t, f.svc.Remove(ctx, f.creator.ID, guest.ID, f.community.ID), models.ErrNotAMember)
}

func TestMembershipService_Reconcile(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()
	testutil.CreatePost(t, f.db, f.creator.ID, f.community.ID, "a")
	testutil.CreatePost(t, f.db, f.creator.ID, f.community.ID, "b")

	require.NoError(t, f.db.Model(&models.Community{}).Where("id = ?", f.community.ID).
		Updates(map[string]any{"member_count": 40, "post_count": 0}).Error)

	require.NoError(t, f.svc.Reconcile(ctx, f.community.ID))

	var c models.Community
	require.NoError(t, f.db.First(&c, f.community.ID).Error)
	assert.Equal(t, 1, c.MemberCount)
	assert.Equal(t, 2, c.PostCount)
}
