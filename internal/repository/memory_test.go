package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/moderation"
)

func seed(t *testing.T, repo *MemoryRepository, owner, title string, state model.ModerationState) *model.Listing {
	t.Helper()
	l := &model.Listing{OwnerID: owner, Title: title, Location: "Austin", Price: 100, ModerationState: state}
	require.NoError(t, repo.CreateListing(context.Background(), l, []model.ListingImage{{ObjectKey: title + ".jpg"}}))
	return l
}

func TestMemoryRepository_Visibility(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	pending := seed(t, repo, "alice", "pending", model.StatePending)
	approved := seed(t, repo, "bob", "approved", model.StateApproved)

	got, err := repo.GetListing(ctx, pending.ID, moderation.Approved())
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = repo.GetListing(ctx, pending.ID, moderation.OwnedByOrApproved("alice"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []string{"pending.jpg"}, got.ImageRefs)

	list, err := repo.ListListings(ctx, moderation.Approved(), nil)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, approved.ID, list[0].ID)

	list, err = repo.ListListings(ctx, moderation.All(), nil)
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, approved.ID, list[0].ID, "newest first")
}

func TestMemoryRepository_Filters(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	seed(t, repo, "alice", "Sunny Loft", model.StateApproved)
	seed(t, repo, "alice", "Dark Basement", model.StateApproved)

	list, err := repo.ListListings(ctx, moderation.Approved(), &model.ListingFilters{Search: "loft"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Sunny Loft", list[0].Title)

	max := 50.0
	list, err = repo.ListListings(ctx, moderation.Approved(), &model.ListingFilters{PriceMax: &max})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMemoryRepository_CompareAndSetState(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	l := seed(t, repo, "alice", "loft", model.StatePending)

	ok, err := repo.CompareAndSetState(ctx, l.ID, model.StatePending, model.StateApproved)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.CompareAndSetState(ctx, l.ID, model.StatePending, model.StateRejected)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetListing(ctx, l.ID, moderation.All())
	require.NoError(t, err)
	assert.Equal(t, model.StateApproved, got.ModerationState)
}

func TestMemoryRepository_UpdateKeepsStateAndOwner(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	l := seed(t, repo, "alice", "loft", model.StateApproved)

	edit := *l
	edit.Title = "renamed"
	edit.OwnerID = "mallory"
	edit.ModerationState = model.StatePending
	require.NoError(t, repo.UpdateListing(ctx, &edit))

	got, err := repo.GetListing(ctx, l.ID, moderation.All())
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Title)
	assert.Equal(t, "alice", got.OwnerID)
	assert.Equal(t, model.StateApproved, got.ModerationState)
}

func TestMemoryRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	l := seed(t, repo, "alice", "loft", model.StatePending)

	keys, err := repo.DeleteListing(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"loft.jpg"}, keys)

	_, err = repo.DeleteListing(ctx, l.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
