package service

import (
	"context"
	"testing"

	"pettit/internal/models"
	"pettit/internal/repository"
	"pettit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCommunityService(db *gorm.DB) (*CommunityService, *MembershipService) {
	communities := repository.NewCommunityRepository(db)
	memberships := repository.NewMembershipRepository(db)
	return NewCommunityService(communities, memberships), NewMembershipService(communities, memberships, nil, nil)
}

func TestCommunityService_Create(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner")
	svc, _ := newCommunityService(db)
	ctx := context.Background()

	c, err := svc.Create(ctx, CreateCommunityInput{
		CreatorID:   owner.ID,
		Name:        " Golden_Retrievers ",
		DisplayName: "Goldens",
		Description: "Good dogs only",
	})
	require.NoError(t, err)
	assert.Equal(t, "golden_retrievers", c.Name)
	assert.Equal(t, models.CategoryGeneral, c.Category)
	assert.Equal(t, 1, c.MemberCount)
	assert.True(t, c.IsActive)

	detail, err := svc.Detail(ctx, "golden_retrievers", owner.ID)
	require.NoError(t, err)
	assert.True(t, detail.IsMember)
	require.NotNil(t, detail.Membership)
	assert.Equal(t, models.MembershipRoleAdmin, detail.Membership.Role)

	_, err = svc.Create(ctx, CreateCommunityInput{
		CreatorID: owner.ID, Name: "GOLDEN_RETRIEVERS", DisplayName: "again", Description: "dup",
	})
	assertAppErrorCode(t, err, models.CodeConflict)
}

func TestCommunityService_CreateValidation(t *testing.T) {
	t.Parallel()

	svc := NewCommunityService(failingCommunityRepo(), membershipsOf(nil))

	tests := []struct {
		name  string
		input CreateCommunityInput
	}{
		{"too short", CreateCommunityInput{Name: "ab", DisplayName: "d", Description: "d"}},
		{"bad characters", CreateCommunityInput{Name: "dog-lovers", DisplayName: "d", Description: "d"}},
		{"reserved", CreateCommunityInput{Name: "trending", DisplayName: "d", Description: "d"}},
		{"blank display name", CreateCommunityInput{Name: "dogs", DisplayName: "  ", Description: "d"}},
		{"blank description", CreateCommunityInput{Name: "dogs", DisplayName: "d", Description: ""}},
		{"unknown category", CreateCommunityInput{Name: "dogs", DisplayName: "d", Description: "d", Category: "plants"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.input)
			assertValidationError(t, err)
		})
	}
}

func TestCommunityService_Update(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner")
	mod := testutil.CreateUser(t, db, "mod")
	member := testutil.CreateUser(t, db, "member")
	community := testutil.CreateCommunity(t, db, "birds", owner.ID)
	svc, memberships := newCommunityService(db)
	ctx := context.Background()

	_, err := memberships.Join(ctx, mod.ID, community.ID, models.MembershipRoleModerator)
	require.NoError(t, err)
	_, err = memberships.Join(ctx, member.ID, community.ID, "")
	require.NoError(t, err)

	category := models.CategoryBirds
	updated, err := svc.Update(ctx, UpdateCommunityInput{
		ActorID: mod.ID, Name: "birds", Description: strPtr("Feathered friends"), Category: &category,
	})
	require.NoError(t, err)
	assert.Equal(t, "Feathered friends", updated.Description)
	assert.Equal(t, models.CategoryBirds, updated.Category)
	assert.Equal(t, "birds", updated.DisplayName)

	_, err = svc.Update(ctx, UpdateCommunityInput{ActorID: member.ID, Name: "birds", IsPrivate: boolPtr(true)})
	assertForbiddenError(t, err)

	_, err = svc.Update(ctx, UpdateCommunityInput{ActorID: owner.ID, Name: "birds", DisplayName: strPtr(" ")})
	assertValidationError(t, err)

	_, err = svc.Update(ctx, UpdateCommunityInput{ActorID: owner.ID, Name: "nowhere", IsPrivate: boolPtr(true)})
	assertNotFoundError(t, err)
}

func TestCommunityService_Delete(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner")
	member := testutil.CreateUser(t, db, "member")
	community := testutil.CreateCommunity(t, db, "fish", owner.ID)
	svc, memberships := newCommunityService(db)
	ctx := context.Background()
	_, err := memberships.Join(ctx, member.ID, community.ID, models.MembershipRoleAdmin)
	require.NoError(t, err)

	assertForbiddenError(t, svc.Delete(ctx, member.ID, "fish"))
	require.NoError(t, svc.Delete(ctx, owner.ID, "fish"))

	_, err = svc.Resolve(ctx, "fish")
	assertNotFoundError(t, err)

	var active int64
	require.NoError(t, db.Model(&models.Membership{}).Where("community_id = ? AND is_active = ?", community.ID, true).Count(&active).Error)
	assert.Zero(t, active)

	_, err = memberships.Join(ctx, testutil.CreateUser(t, db, "late").ID, community.ID, "")
	assertNotFoundError(t, err)
}

func TestCommunityService_ListAndPagination(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner")
	viewer := testutil.CreateUser(t, db, "viewer")
	svc, memberships := newCommunityService(db)
	ctx := context.Background()

	names := []string{"aardvarks", "beagles", "corgis", "dachshunds", "emus"}
	for i, name := range names {
		c := testutil.CreateCommunity(t, db, name, owner.ID)
		require.NoError(t, db.Model(c).Update("member_count", 10+i).Error)
	}
	beagles, err := svc.Resolve(ctx, "beagles")
	require.NoError(t, err)
	_, err = memberships.Join(ctx, viewer.ID, beagles.ID, "")
	require.NoError(t, err)

	list, err := svc.List(ctx, ListCommunitiesInput{Page: 2, Limit: 2, Sort: "name", ViewerID: viewer.ID})
	require.NoError(t, err)
	require.Len(t, list.Items, 2)
	assert.Equal(t, "corgis", list.Items[0].Community.Name)
	assert.Equal(t, "dachshunds", list.Items[1].Community.Name)
	assert.Equal(t, Pagination{Page: 2, Limit: 2, Total: 5, Pages: 3, HasNext: true, HasPrev: true}, list.Pagination)

	list, err = svc.List(ctx, ListCommunitiesInput{Limit: 2, Sort: "name", ViewerID: viewer.ID})
	require.NoError(t, err)
	assert.Nil(t, list.Items[0].Membership)
	require.NotNil(t, list.Items[1].Membership)
	assert.Equal(t, models.MembershipRoleMember, list.Items[1].Membership.Role)
	assert.False(t, list.Pagination.HasPrev)

	list, err = svc.List(ctx, ListCommunitiesInput{Category: "all", Search: "CORG"})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "corgis", list.Items[0].Community.Name)

	_, err = svc.List(ctx, ListCommunitiesInput{Sort: "loudest"})
	assertValidationError(t, err)
	_, err = svc.List(ctx, ListCommunitiesInput{Category: "plants"})
	assertValidationError(t, err)

	popular, err := svc.Popular(ctx, 2)
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, "emus", popular[0].Name)
	assert.Equal(t, "dachshunds", popular[1].Name)

	general, err := svc.ByCategory(ctx, "general", 0)
	require.NoError(t, err)
	assert.Len(t, general, 5)
	none, err := svc.ByCategory(ctx, "reptiles", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCommunityService_MembersAndUserCommunities(t *testing.T) {
	db := testutil.NewDB(t)
	owner := testutil.CreateUser(t, db, "owner")
	fan := testutil.CreateUser(t, db, "fan")
	cats := testutil.CreateCommunity(t, db, "cats", owner.ID)
	dogs := testutil.CreateCommunity(t, db, "dogs", owner.ID)
	svc, memberships := newCommunityService(db)
	ctx := context.Background()

	for _, c := range []*models.Community{cats, dogs} {
		_, err := memberships.Join(ctx, fan.ID, c.ID, "")
		require.NoError(t, err)
	}

	members, err := svc.Members(ctx, "cats", 1, 10, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), members.Pagination.Total)
	require.NotNil(t, members.Members[0].User)
	assert.Equal(t, "owner", members.Members[0].User.Username)

	admins, err := svc.Members(ctx, "cats", 1, 10, models.MembershipRoleAdmin)
	require.NoError(t, err)
	require.Len(t, admins.Members, 1)
	assert.Equal(t, owner.ID, admins.Members[0].UserID)

	_, err = svc.Members(ctx, "cats", 1, 10, "emperor")
	assertValidationError(t, err)

	mine, err := svc.UserCommunities(ctx, fan.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, mine.Members, 2)
	for _, m := range mine.Members {
		require.NotNil(t, m.Community)
		assert.Equal(t, models.MembershipRoleMember, m.Role)
	}
}
