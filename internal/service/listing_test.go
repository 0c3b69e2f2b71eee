package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/classifier"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/config"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/moderation"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/repository"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/storage"
)

var pngSignature = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func png(tag string) []byte {
	return append(append([]byte{}, pngSignature...), tag...)
}

var (
	alice = model.Owner("alice")
	bob   = model.Owner("bob")
	mod   = model.Moderator("mod")
	anon  = model.Anonymous()

	roomPhoto  = png("living-room")
	selfie     = png("selfie")
	brokenFile = png("corrupt")
)

type fixture struct {
	svc    *ListingService
	repo   *repository.MemoryRepository
	store  *storage.MemoryStore
	scorer *classifier.StaticScorer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	catalog := classifier.DefaultCatalog()
	scorer := classifier.NewStaticScorer().
		Set(roomPhoto, classifier.Uniform(catalog, 0.9)).
		Set(selfie, classifier.Uniform(catalog, 0.2)).
		Fail(brokenFile, errors.New("cannot decode image"))

	repo := repository.NewMemoryRepository()
	store := storage.NewMemoryStore("http://media.test")
	gate := classifier.NewGate(catalog, scorer, 2, logger)
	svc := NewListingService(repo, store, gate, config.UploadConfig{MaxFileBytes: 1 << 10, MaxFiles: 3}, logger)
	svc.backoff = time.Millisecond
	return &fixture{svc: svc, repo: repo, store: store, scorer: scorer}
}

func validInput() *model.ListingInput {
	return &model.ListingInput{
		Title:       "Sunny loft",
		Description: "Two bedrooms near the park",
		Price:       350000,
		Location:    "Austin",
	}
}

func (f *fixture) create(t *testing.T, owner model.Actor) *model.Listing {
	t.Helper()
	resp, err := f.svc.Create(context.Background(), owner, validInput(), []Attachment{{Filename: "front.png", Data: roomPhoto}})
	require.NoError(t, err)
	return resp.Listing
}

func TestCreate_ApprovedSubmissionStartsPending(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Create(context.Background(), alice, validInput(), []Attachment{
		{Filename: "front.png", Data: roomPhoto},
		{Filename: "uploads/kitchen.png", Data: roomPhoto},
	})
	require.NoError(t, err)

	assert.Equal(t, model.StatePending, resp.Listing.ModerationState)
	assert.Equal(t, "alice", resp.Listing.OwnerID)
	assert.True(t, resp.Verdict.Approved())
	assert.Equal(t, []string{"front.png", "kitchen.png"}, resp.Verdict.ValidImages)
	assert.Equal(t, MessagePendingModeration, resp.Message)
	require.Len(t, resp.Listing.ImageRefs, 2)
	assert.Len(t, resp.Listing.ImageURLs, 2)
	assert.Equal(t, resp.Listing.ImageRefs, f.store.Keys())

	images, err := f.repo.ListingImages(context.Background(), resp.Listing.ID)
	require.NoError(t, err)
	require.Len(t, images, 2)
	assert.Equal(t, "image/png", images[0].ContentType)
	assert.InDelta(t, 0.9, images[0].RealEstateScore, 1e-9)
	assert.Len(t, images[0].Scores.Slice(), classifier.DefaultCatalog().Len())
}

func TestCreate_RejectedSubmissionPersistsNothing(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), alice, validInput(), []Attachment{
		{Filename: "front.png", Data: roomPhoto},
		{Filename: "me.png", Data: selfie},
		{Filename: "bad.png", Data: brokenFile},
	})

	var rejected *model.SubmissionRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, model.SubmissionRejected, rejected.Verdict.Status)
	assert.Equal(t, []string{"me.png", "bad.png"}, rejected.Verdict.RejectedFilenames)
	assert.Equal(t, "Detected 2 invalid images: me.png, bad.png.", rejected.Verdict.Message)

	all, err := f.repo.ListListings(context.Background(), moderation.All(), nil)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Empty(t, f.store.Keys())
}

func TestCreate_NoImagesIsRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), alice, validInput(), nil)

	var rejected *model.SubmissionRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, classifier.MessageNoImages, rejected.Verdict.Message)
}

func TestCreate_InputValidation(t *testing.T) {
	lat := 91.0
	tests := []struct {
		name        string
		actor       model.Actor
		mutate      func(*model.ListingInput)
		attachments []Attachment
		wantErr     error
	}{
		{"Anonymous", anon, nil, nil, model.ErrUnauthenticated},
		{"Missing title", alice, func(in *model.ListingInput) { in.Title = "  " }, nil, model.ErrValidation},
		{"Negative price", alice, func(in *model.ListingInput) { in.Price = -1 }, nil, model.ErrValidation},
		{"Latitude out of range", alice, func(in *model.ListingInput) { in.Latitude = &lat }, nil, model.ErrValidation},
		{"Not an image", alice, nil, []Attachment{{Filename: "doc.txt", Data: []byte("hello world")}}, model.ErrValidation},
		{"Too large", alice, nil, []Attachment{{Filename: "big.png", Data: png(string(make([]byte, 2<<10)))}}, model.ErrValidation},
		{"Too many", alice, nil, []Attachment{{Data: roomPhoto}, {Data: roomPhoto}, {Data: roomPhoto}, {Data: roomPhoto}}, model.ErrValidation},
		{"Empty file", alice, nil, []Attachment{{Filename: "zero.png"}}, model.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			if tt.mutate != nil {
				tt.mutate(in)
			}
			_, err := f.svc.Create(context.Background(), tt.actor, in, tt.attachments)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, f.scorer.Calls(), "gate must not run")
		})
	}
}

func TestValidate(t *testing.T) {
	f := newFixture(t)
	eval, err := f.svc.Validate(context.Background(), []Attachment{{Filename: "front.png", Data: roomPhoto}})
	require.NoError(t, err)
	assert.True(t, eval.Verdict.Approved())
	assert.Equal(t, classifier.MessageAllValid, eval.Verdict.Message)
	require.Len(t, eval.Images, 1)
	assert.True(t, eval.Images[0].Accepted())
	assert.Empty(t, f.store.Keys())
}

func TestGet_Visibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	_, err := f.svc.Get(ctx, anon, l.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = f.svc.Get(ctx, bob, l.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	got, err := f.svc.Get(ctx, alice, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)

	_, err = f.svc.Get(ctx, mod, l.ID)
	require.NoError(t, err)

	_, err = f.svc.Approve(ctx, mod, l.ID)
	require.NoError(t, err)
	got, err = f.svc.Get(ctx, anon, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateApproved, got.ModerationState)

	_, err = f.svc.Get(ctx, anon, 9999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestList_Views(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	pending := f.create(t, alice)
	approved := f.create(t, bob)
	_, err := f.svc.Approve(ctx, mod, approved.ID)
	require.NoError(t, err)

	ids := func(resp *model.ListingsResponse) []int64 {
		out := []int64{}
		for _, l := range resp.Results {
			out = append(out, l.ID)
		}
		return out
	}

	resp, err := f.svc.List(ctx, anon, &model.ListingQuery{})
	require.NoError(t, err)
	assert.Equal(t, []int64{approved.ID}, ids(resp))

	resp, err = f.svc.List(ctx, alice, &model.ListingQuery{Mine: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{pending.ID}, ids(resp))

	resp, err = f.svc.List(ctx, alice, &model.ListingQuery{Admin: true})
	require.NoError(t, err)
	assert.Equal(t, []int64{approved.ID}, ids(resp), "admin flag is ignored for non-moderators")

	resp, err = f.svc.List(ctx, mod, &model.ListingQuery{Admin: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{pending.ID, approved.ID}, ids(resp))
	assert.Equal(t, 2, resp.Total)

	min, max := 10.0, 5.0
	_, err = f.svc.List(ctx, anon, &model.ListingQuery{PriceMin: &min, PriceMax: &max})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestApprove_Permissions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	_, err := f.svc.Approve(ctx, alice, l.ID)
	assert.ErrorIs(t, err, model.ErrPermissionDenied, "owners cannot approve their own listing")
	_, err = f.svc.Reject(ctx, bob, l.ID)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)
	_, err = f.svc.Approve(ctx, anon, l.ID)
	assert.ErrorIs(t, err, model.ErrUnauthenticated)
	_, err = f.svc.Approve(ctx, mod, 9999)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestApproveReject_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	got, err := f.svc.Reject(ctx, mod, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateRejected, got.ModerationState)

	got, err = f.svc.Approve(ctx, mod, l.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateApproved, got.ModerationState)

	got, err = f.svc.Approve(ctx, mod, l.ID)
	require.NoError(t, err, "approve is idempotent")
	assert.Equal(t, model.StateApproved, got.ModerationState)
}

func TestUpdate_KeepsModerationState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)
	_, err := f.svc.Approve(ctx, mod, l.ID)
	require.NoError(t, err)

	title := "Renamed loft"
	got, err := f.svc.Update(ctx, alice, l.ID, &model.ListingPatch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed loft", got.Title)
	assert.Equal(t, model.StateApproved, got.ModerationState)
	assert.Equal(t, "alice", got.OwnerID)

	_, err = f.svc.Update(ctx, bob, l.ID, &model.ListingPatch{Title: &title})
	assert.ErrorIs(t, err, model.ErrPermissionDenied, "visible but not owned")

	_, err = f.svc.Update(ctx, mod, l.ID, &model.ListingPatch{Title: &title})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, alice, l.ID, &model.ListingPatch{})
	assert.ErrorIs(t, err, model.ErrValidation)

	blank := ""
	_, err = f.svc.Update(ctx, alice, l.ID, &model.ListingPatch{Title: &blank})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestUpdate_InvisibleIsNotFound(t *testing.T) {
	f := newFixture(t)
	l := f.create(t, alice)
	title := "hijack"
	_, err := f.svc.Update(context.Background(), bob, l.ID, &model.ListingPatch{Title: &title})
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	assert.ErrorIs(t, f.svc.Delete(ctx, bob, l.ID), model.ErrNotFound)
	assert.ErrorIs(t, f.svc.Delete(ctx, anon, l.ID), model.ErrUnauthenticated)

	require.NoError(t, f.svc.Delete(ctx, alice, l.ID))
	assert.Empty(t, f.store.Keys())
	assert.ErrorIs(t, f.svc.Delete(ctx, alice, l.ID), model.ErrNotFound)
}

func TestImages_ModeratorOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	_, err := f.svc.Images(ctx, alice, l.ID)
	assert.ErrorIs(t, err, model.ErrPermissionDenied)

	images, err := f.svc.Images(ctx, mod, l.ID)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, "front.png", images[0].Filename)
}

func TestModerate_ConcurrentTriggersStayConsistent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	l := f.create(t, alice)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.svc.Approve(ctx, mod, l.ID)
			} else {
				_, err = f.svc.Reject(ctx, mod, l.ID)
			}
			if err != nil {
				assert.ErrorIs(t, err, model.ErrStateConflict)
			}
		}()
	}
	wg.Wait()

	got, err := f.svc.Get(ctx, mod, l.ID)
	require.NoError(t, err)
	assert.Contains(t, []model.ModerationState{model.StateApproved, model.StateRejected}, got.ModerationState)
}

// racingRepo loses every compare-and-set
type racingRepo struct {
	*repository.MemoryRepository
	attempts atomic.Int32
}

func (r *racingRepo) CompareAndSetState(context.Context, int64, model.ModerationState, model.ModerationState) (bool, error) {
	r.attempts.Add(1)
	return false, nil
}

func TestModerate_GivesUpAfterBoundedRetries(t *testing.T) {
	f := newFixture(t)
	l := f.create(t, alice)

	repo := &racingRepo{MemoryRepository: f.repo}
	svc := NewListingService(repo, f.store, classifier.NewGate(classifier.DefaultCatalog(), f.scorer, 1, nil), config.UploadConfig{}, nil)
	svc.backoff = time.Millisecond

	_, err := svc.Approve(context.Background(), mod, l.ID)
	assert.ErrorIs(t, err, model.ErrStateConflict)
	assert.Equal(t, int32(stateRetries+1), repo.attempts.Load())
}
