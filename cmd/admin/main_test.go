package main

import (
	"bytes"
	"context"
	"testing"

	"pettit/internal/models"
	"pettit/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileRepairsDriftedCounters(t *testing.T) {
	db := testutil.NewDB(t)
	alice := testutil.CreateUser(t, db, "alice")
	bob := testutil.CreateUser(t, db, "bob")
	dogs := testutil.CreateCommunity(t, db, "dogs", alice.ID)
	cats := testutil.CreateCommunity(t, db, "cats", bob.ID)
	post := testutil.CreatePost(t, db, alice.ID, dogs.ID, "walkies", testutil.WithScore(9))
	require.NoError(t, db.Create(&models.PostVote{PostID: post.ID, UserID: bob.ID, Value: -1}).Error)
	require.NoError(t, db.Model(&models.Community{}).Where("id IN ?", []uint{dogs.ID, cats.ID}).
		UpdateColumns(map[string]any{"member_count": 7, "post_count": 5}).Error)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), db, []string{"reconcile", "-community", "DOGS"}, &out))
	assert.Contains(t, out.String(), "Reconciled dogs")

	var storedDogs models.Community
	require.NoError(t, db.First(&storedDogs, dogs.ID).Error)
	assert.Equal(t, 1, storedDogs.MemberCount)
	assert.Equal(t, 1, storedDogs.PostCount)
	var storedCats models.Community
	require.NoError(t, db.First(&storedCats, cats.ID).Error)
	assert.Equal(t, 7, storedCats.MemberCount, "scoped run leaves other communities alone")

	var p models.Post
	require.NoError(t, db.First(&p, post.ID).Error)
	assert.Equal(t, -1, p.VoteScore)

	out.Reset()
	require.NoError(t, run(context.Background(), db, []string{"reconcile"}, &out))
	var reconciledCats models.Community
	require.NoError(t, db.First(&reconciledCats, cats.ID).Error)
	assert.Equal(t, 1, reconciledCats.MemberCount)
	assert.Equal(t, 0, reconciledCats.PostCount)
}

func TestRunErrors(t *testing.T) {
	db := testutil.NewDB(t)
	var out bytes.Buffer

	err := run(context.Background(), db, []string{"reconcile", "-community", "nowhere"}, &out)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeNotFound, appErr.Code)

	err = run(context.Background(), db, []string{"explode"}, &out)
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, out.String(), "Usage:")

	require.NoError(t, run(context.Background(), db, []string{"migrate"}, &out))
}
