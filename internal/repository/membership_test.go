package repository

import (
	"context"
	"errors"
	"testing"

	"pettit/internal/database"
	"pettit/internal/models"
	"pettit/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func memberCount(t *testing.T, db *gorm.DB, communityID uint) int {
	t.Helper()
	var c models.Community
	require.NoError(t, db.First(&c, communityID).Error)
	return c.MemberCount
}

func activeRows(t *testing.T, db *gorm.DB, communityID uint) int {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.Membership{}).
		Where("community_id = ? AND is_active = ?", communityID, true).Count(&n).Error)
	return int(n)
}

func TestMembershipRepository_JoinLeaveKeepsCount(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	creator := testutil.CreateUser(t, db, "creator")
	alice := testutil.CreateUser(t, db, "alice")
	c := testutil.CreateCommunity(t, db, "dogs", creator.ID)

	m := &models.Membership{UserID: alice.ID, CommunityID: c.ID, Role: models.MembershipRoleMember}
	require.NoError(t, repo.Join(ctx, m))
	assert.Equal(t, 2, memberCount(t, db, c.ID))
	assert.Equal(t, activeRows(t, db, c.ID), memberCount(t, db, c.ID))
	assert.False(t, m.JoinedAt.IsZero())

	dup := &models.Membership{UserID: alice.ID, CommunityID: c.ID, Role: models.MembershipRoleMember}
	err := repo.Join(ctx, dup)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err))
	assert.Equal(t, 2, memberCount(t, db, c.ID), "failed join must not change the count")

	got, err := repo.Get(ctx, alice.ID, c.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Leave(ctx, got))
	assert.Equal(t, 1, memberCount(t, db, c.ID))
	assert.Equal(t, activeRows(t, db, c.ID), memberCount(t, db, c.ID))

	assert.True(t, errors.Is(repo.Leave(ctx, got), gorm.ErrRecordNotFound))
	assert.Equal(t, 1, memberCount(t, db, c.ID))
}

func TestMembershipRepository_LeaveFloorsAtZero(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	creator := testutil.CreateUser(t, db, "creator")
	c := testutil.CreateCommunity(t, db, "cats", creator.ID)
	require.NoError(t, db.Model(&models.Community{}).Where("id = ?", c.ID).UpdateColumn("member_count", 0).Error)

	m, err := repo.Get(ctx, creator.ID, c.ID)
	require.NoError(t, err)
	require.NoError(t, repo.Leave(ctx, m))
	assert.Equal(t, 0, memberCount(t, db, c.ID))
}

func TestMembershipRepository_UpdateAndList(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	creator := testutil.CreateUser(t, db, "creator")
	bob := testutil.CreateUser(t, db, "bob")
	c := testutil.CreateCommunity(t, db, "birds", creator.ID)
	other := testutil.CreateCommunity(t, db, "fish", creator.ID)

	m := &models.Membership{UserID: bob.ID, CommunityID: c.ID, Role: models.MembershipRoleMember}
	require.NoError(t, repo.Join(ctx, m))

	m.Role = models.MembershipRoleModerator
	m.Permissions = models.Permissions{CanManagePosts: true}
	require.NoError(t, repo.Update(ctx, m))

	got, err := repo.Get(ctx, bob.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MembershipRoleModerator, got.Role)
	assert.True(t, got.Permissions.CanManagePosts)
	assert.False(t, got.Permissions.CanManageComments)

	members, total, err := repo.ListMembers(ctx, c.ID, "", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, members, 2)
	require.NotNil(t, members[0].User)
	assert.Equal(t, "creator", members[0].User.Username)

	mods, total, err := repo.ListMembers(ctx, c.ID, models.MembershipRoleModerator, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, mods, 1)
	assert.Equal(t, bob.ID, mods[0].UserID)

	byCommunity, err := repo.ListForUser(ctx, bob.ID, []uint{c.ID, other.ID})
	require.NoError(t, err)
	assert.Len(t, byCommunity, 1)
	assert.Contains(t, byCommunity, c.ID)

	empty, err := repo.ListForUser(ctx, 0, []uint{c.ID})
	require.NoError(t, err)
	assert.Empty(t, empty)

	mine, total, err := repo.ListByUser(ctx, creator.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, mine, 2)
	require.NotNil(t, mine[0].Community)
}

func TestMembershipRepository_Reconcile(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewMembershipRepository(db)
	ctx := context.Background()

	creator := testutil.CreateUser(t, db, "creator")
	c := testutil.CreateCommunity(t, db, "training", creator.ID)
	testutil.CreatePost(t, db, creator.ID, c.ID, "sit")
	require.NoError(t, db.Model(&models.Community{}).Where("id = ?", c.ID).
		UpdateColumns(map[string]any{"member_count": 40, "post_count": 9}).Error)

	require.NoError(t, repo.Reconcile(ctx, c.ID))

	var got models.Community
	require.NoError(t, db.First(&got, c.ID).Error)
	assert.Equal(t, 1, got.MemberCount)
	assert.Equal(t, 1, got.PostCount)
}

func TestMembershipRepository_JoinSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewMembershipRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "community_memberships"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`UPDATE "communities" SET "member_count"=member_count \+ \$1 WHERE id = \$2`).
		WithArgs(1, 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Join(context.Background(), &models.Membership{UserID: 2, CommunityID: 5, Role: models.MembershipRoleMember})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
