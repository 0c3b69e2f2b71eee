package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/classifier"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/config"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/moderation"
)

// MessagePendingModeration accompanies a freshly created listing
const MessagePendingModeration = "Listing created and pending moderation."

// stateRetries bounds the reload-and-recompute loop of a moderator action
const stateRetries = 3

var errStateRace = errors.New("moderation state changed during transition")

// ListingRepository persists listings and renders visibility predicates
type ListingRepository interface {
	CreateListing(ctx context.Context, listing *model.Listing, images []model.ListingImage) error
	GetListing(ctx context.Context, id int64, pred moderation.Predicate) (*model.Listing, error)
	ListListings(ctx context.Context, pred moderation.Predicate, filters *model.ListingFilters) ([]model.Listing, error)
	UpdateListing(ctx context.Context, listing *model.Listing) error
	DeleteListing(ctx context.Context, id int64) ([]string, error)
	CompareAndSetState(ctx context.Context, id int64, from, to model.ModerationState) (bool, error)
	ListingImages(ctx context.Context, listingID int64) ([]model.ListingImage, error)
}

// ImageStore holds listing photo bytes
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// Screener runs the classification gate over a submission
type Screener interface {
	EvaluateSubmission(ctx context.Context, images []classifier.Image) classifier.Evaluation
	Catalog() *classifier.Catalog
}

// Attachment is one uploaded file of a submission
type Attachment struct {
	Filename string
	Data     []byte
}

// ListingService handles listing business logic
type ListingService struct {
	repo     ListingRepository
	images   ImageStore
	gate     Screener
	resolver *moderation.Resolver
	limits   config.UploadConfig
	logger   *slog.Logger
	backoff  time.Duration
}

// NewListingService creates a new listing service
func NewListingService(
	repo ListingRepository,
	images ImageStore,
	gate Screener,
	limits config.UploadConfig,
	logger *slog.Logger,
) *ListingService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListingService{
		repo:     repo,
		images:   images,
		gate:     gate,
		resolver: moderation.NewResolver(nil),
		limits:   limits,
		logger:   logger,
		backoff:  10 * time.Millisecond,
	}
}

// Validate screens attachments without persisting anything
func (s *ListingService) Validate(ctx context.Context, attachments []Attachment) (*classifier.Evaluation, error) {
	checked, err := s.checkAttachments(attachments)
	if err != nil {
		return nil, err
	}
	eval := s.gate.EvaluateSubmission(ctx, toGateImages(checked))
	return &eval, nil
}

// Create screens the attachments and, if every image passes, stores the
// listing in PENDING state. A rejected submission persists nothing.
func (s *ListingService) Create(ctx context.Context, actor model.Actor, input *model.ListingInput, attachments []Attachment) (*model.ListingResponse, error) {
	if !actor.Authenticated {
		return nil, model.ErrUnauthenticated
	}

	listing := &model.Listing{
		OwnerID:         actor.ID,
		Title:           strings.TrimSpace(input.Title),
		Description:     strings.TrimSpace(input.Description),
		Price:           input.Price,
		Location:        strings.TrimSpace(input.Location),
		Latitude:        input.Latitude,
		Longitude:       input.Longitude,
		ModerationState: moderation.InitialState(),
	}
	if err := validateListing(listing); err != nil {
		return nil, err
	}

	checked, err := s.checkAttachments(attachments)
	if err != nil {
		return nil, err
	}

	eval := s.gate.EvaluateSubmission(ctx, toGateImages(checked))
	if !eval.Verdict.Approved() {
		s.logger.Info("submission rejected", "owner", actor.ID, "message", eval.Verdict.Message)
		return nil, &model.SubmissionRejectedError{Verdict: eval.Verdict}
	}

	images := make([]model.ListingImage, len(checked))
	prefix := "listings/" + uuid.NewString()
	for i, att := range checked {
		res := eval.Images[i]
		images[i] = model.ListingImage{
			Position:        i,
			ObjectKey:       fmt.Sprintf("%s/%02d-%s", prefix, i, att.Filename),
			Filename:        att.Filename,
			ContentType:     att.contentType,
			RealEstateScore: res.Verdict.RealEstateScore,
			JunkScore:       res.Verdict.JunkScore,
			TopLabel:        res.Verdict.TopLabel,
			Scores:          pgvector.NewVector(toFloat32(res.Score)),
		}
	}

	if err := s.upload(ctx, checked, images); err != nil {
		return nil, err
	}
	if err := s.repo.CreateListing(ctx, listing, images); err != nil {
		s.removeObjects(ctx, objectKeys(images))
		return nil, fmt.Errorf("failed to save listing: %w", err)
	}

	s.logger.Info("listing created",
		"listing_id", listing.ID,
		"owner", actor.ID,
		"images", len(images),
		"state", listing.ModerationState,
	)
	if err := s.ImageURLs(ctx, listing); err != nil {
		return nil, err
	}
	return &model.ListingResponse{
		Listing: listing,
		Verdict: &eval.Verdict,
		Message: MessagePendingModeration,
	}, nil
}

// Get returns a single listing if the actor may see it
func (s *ListingService) Get(ctx context.Context, actor model.Actor, id int64) (*model.Listing, error) {
	listing, err := s.lookup(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.ImageURLs(ctx, listing); err != nil {
		return nil, err
	}
	return listing, nil
}

// List returns the listings visible to the actor that match the query
func (s *ListingService) List(ctx context.Context, actor model.Actor, query *model.ListingQuery) (*model.ListingsResponse, error) {
	if query.PriceMin != nil && query.PriceMax != nil && *query.PriceMin > *query.PriceMax {
		return nil, model.NewValidationError("price_min", "must not exceed price_max")
	}

	pred, rule := s.resolver.Resolve(actor, moderation.RequestContext{
		MineView:  query.Mine,
		AdminView: query.Admin,
	})
	listings, err := s.repo.ListListings(ctx, pred, query.Filters())
	if err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	for i := range listings {
		if err := s.ImageURLs(ctx, &listings[i]); err != nil {
			return nil, err
		}
	}

	s.logger.Debug("listings resolved", "actor", actor.ID, "rule", rule, "scope", pred.Scope, "results", len(listings))
	return &model.ListingsResponse{Results: listings, Total: len(listings)}, nil
}

// Update applies an edit to the editable fields of a listing. Moderation
// state and owner never change here.
func (s *ListingService) Update(ctx context.Context, actor model.Actor, id int64, patch *model.ListingPatch) (*model.Listing, error) {
	if !actor.Authenticated {
		return nil, model.ErrUnauthenticated
	}
	if patch == nil || patch.Empty() {
		return nil, model.NewValidationError("body", "no fields to update")
	}

	listing, err := s.lookup(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !moderation.CanMutate(actor, listing, moderation.OpUpdate) {
		return nil, model.ErrPermissionDenied
	}

	patch.Apply(listing)
	listing.Title = strings.TrimSpace(listing.Title)
	listing.Description = strings.TrimSpace(listing.Description)
	listing.Location = strings.TrimSpace(listing.Location)
	if err := validateListing(listing); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateListing(ctx, listing); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update listing: %w", err)
	}

	// The stored state may have moved while we edited; report what is stored.
	stored, err := s.repo.GetListing(ctx, id, moderation.All())
	if err != nil {
		return nil, fmt.Errorf("failed to reload listing: %w", err)
	}
	if stored == nil {
		return nil, model.ErrNotFound
	}
	if err := s.ImageURLs(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// Delete removes a listing and, best effort, its stored photos
func (s *ListingService) Delete(ctx context.Context, actor model.Actor, id int64) error {
	if !actor.Authenticated {
		return model.ErrUnauthenticated
	}
	listing, err := s.lookup(ctx, actor, id)
	if err != nil {
		return err
	}
	if !moderation.CanMutate(actor, listing, moderation.OpDelete) {
		return model.ErrPermissionDenied
	}

	keys, err := s.repo.DeleteListing(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete listing: %w", err)
	}
	s.removeObjects(ctx, keys)
	s.logger.Info("listing deleted", "listing_id", id, "actor", actor.ID)
	return nil
}

// Approve makes a listing publicly visible
func (s *ListingService) Approve(ctx context.Context, actor model.Actor, id int64) (*model.Listing, error) {
	return s.moderate(ctx, actor, id, moderation.TriggerApprove)
}

// Reject hides a listing from the public
func (s *ListingService) Reject(ctx context.Context, actor model.Actor, id int64) (*model.Listing, error) {
	return s.moderate(ctx, actor, id, moderation.TriggerReject)
}

// Images returns the stored photos of a listing with their gate scores.
// Moderators only.
func (s *ListingService) Images(ctx context.Context, actor model.Actor, id int64) ([]model.ListingImage, error) {
	if !actor.Authenticated {
		return nil, model.ErrUnauthenticated
	}
	if !actor.IsModerator() {
		return nil, model.ErrPermissionDenied
	}
	if _, err := s.lookup(ctx, actor, id); err != nil {
		return nil, err
	}
	images, err := s.repo.ListingImages(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load listing images: %w", err)
	}
	return images, nil
}

// ImageURLs fills listing.ImageURLs with display URLs, index-aligned with ImageRefs
func (s *ListingService) ImageURLs(ctx context.Context, listing *model.Listing) error {
	urls := make([]string, len(listing.ImageRefs))
	for i, key := range listing.ImageRefs {
		u, err := s.images.URL(ctx, key)
		if err != nil {
			return fmt.Errorf("failed to sign image url: %w", err)
		}
		urls[i] = u
	}
	listing.ImageURLs = urls
	return nil
}

func (s *ListingService) moderate(ctx context.Context, actor model.Actor, id int64, trigger moderation.Trigger) (*model.Listing, error) {
	if !actor.Authenticated {
		return nil, model.ErrUnauthenticated
	}
	if !moderation.CanMutate(actor, nil, trigger.Operation()) {
		return nil, model.ErrPermissionDenied
	}

	var result *model.Listing
	backoff := retry.WithMaxRetries(stateRetries, retry.NewConstant(s.backoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		listing, err := s.lookup(ctx, actor, id)
		if err != nil {
			return err
		}
		from := listing.ModerationState
		to, err := moderation.Transition(from, trigger)
		if err != nil {
			return err
		}
		if to != from {
			ok, err := s.repo.CompareAndSetState(ctx, id, from, to)
			if err != nil {
				return fmt.Errorf("failed to apply %s: %w", trigger, err)
			}
			if !ok {
				return retry.RetryableError(errStateRace)
			}
			listing.ModerationState = to
		}

		s.logger.Info("moderation transition",
			"listing_id", id,
			"moderator", actor.ID,
			"trigger", trigger,
			"from", from,
			"to", to,
		)
		result = listing
		return nil
	})
	if err != nil {
		if errors.Is(err, errStateRace) {
			return nil, model.ErrStateConflict
		}
		return nil, err
	}

	if err := s.ImageURLs(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// lookup fetches a listing through the detail visibility rules. Missing and
// invisible listings are indistinguishable.
func (s *ListingService) lookup(ctx context.Context, actor model.Actor, id int64) (*model.Listing, error) {
	pred, _ := s.resolver.Resolve(actor, moderation.RequestContext{Detail: true})
	listing, err := s.repo.GetListing(ctx, id, pred)
	if err != nil {
		return nil, fmt.Errorf("failed to get listing: %w", err)
	}
	if listing == nil {
		return nil, model.ErrNotFound
	}
	return listing, nil
}

func (s *ListingService) upload(ctx context.Context, checked []checkedAttachment, images []model.ListingImage) error {
	eg, egCtx := errgroup.WithContext(ctx)
	for i := range images {
		eg.Go(func() error {
			return s.images.Put(egCtx, images[i].ObjectKey, checked[i].Data, images[i].ContentType)
		})
	}
	if err := eg.Wait(); err != nil {
		s.removeObjects(ctx, objectKeys(images))
		return fmt.Errorf("failed to store images: %w", err)
	}
	return nil
}

func (s *ListingService) removeObjects(ctx context.Context, keys []string) {
	for _, key := range keys {
		if err := s.images.Delete(ctx, key); err != nil {
			s.logger.Warn("image cleanup failed", "key", key, "error", err)
		}
	}
}

type checkedAttachment struct {
	Attachment
	contentType string
}

// checkAttachments enforces upload limits and sniffs content types before
// anything reaches the gate
func (s *ListingService) checkAttachments(attachments []Attachment) ([]checkedAttachment, error) {
	if s.limits.MaxFiles > 0 && len(attachments) > s.limits.MaxFiles {
		return nil, model.NewValidationError("images", "at most %d images per submission", s.limits.MaxFiles)
	}

	checked := make([]checkedAttachment, len(attachments))
	for i, att := range attachments {
		name := cleanFilename(att.Filename, i)
		if len(att.Data) == 0 {
			return nil, model.NewValidationError("images", "%s is empty", name)
		}
		if s.limits.MaxFileBytes > 0 && int64(len(att.Data)) > s.limits.MaxFileBytes {
			return nil, model.NewValidationError("images", "%s exceeds %d bytes", name, s.limits.MaxFileBytes)
		}
		mt := mimetype.Detect(att.Data)
		if !isImage(mt) {
			return nil, model.NewValidationError("images", "%s is not an image (%s)", name, mt.String())
		}
		checked[i] = checkedAttachment{
			Attachment:  Attachment{Filename: name, Data: att.Data},
			contentType: mt.String(),
		}
	}
	return checked, nil
}

func isImage(mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return true
		}
	}
	return false
}

func cleanFilename(name string, index int) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == "" {
		return fmt.Sprintf("image-%d", index+1)
	}
	return name
}

func validateListing(l *model.Listing) error {
	switch {
	case l.Title == "":
		return model.NewValidationError("title", "is required")
	case l.Location == "":
		return model.NewValidationError("location", "is required")
	case l.Description == "":
		return model.NewValidationError("description", "is required")
	case math.IsNaN(l.Price) || math.IsInf(l.Price, 0) || l.Price < 0:
		return model.NewValidationError("price", "must be a non-negative number")
	}
	if l.Latitude != nil && (math.IsNaN(*l.Latitude) || *l.Latitude < -90 || *l.Latitude > 90) {
		return model.NewValidationError("latitude", "must be within [-90, 90]")
	}
	if l.Longitude != nil && (math.IsNaN(*l.Longitude) || *l.Longitude < -180 || *l.Longitude > 180) {
		return model.NewValidationError("longitude", "must be within [-180, 180]")
	}
	return nil
}

func toGateImages(checked []checkedAttachment) []classifier.Image {
	images := make([]classifier.Image, len(checked))
	for i, att := range checked {
		images[i] = classifier.Image{Filename: att.Filename, Data: att.Data}
	}
	return images
}

func toFloat32(score classifier.ImageScore) []float32 {
	out := make([]float32, len(score))
	for i, p := range score {
		out[i] = float32(p)
	}
	return out
}

func objectKeys(images []model.ListingImage) []string {
	keys := make([]string, len(images))
	for i, img := range images {
		keys[i] = img.ObjectKey
	}
	return keys
}
