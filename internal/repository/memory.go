package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"
	"github.com/AB-octo/Updated-Real-Estate-App/internal/moderation"
)

// MemoryRepository keeps listings in process memory. It backs tests and the
// server when no database is configured.
type MemoryRepository struct {
	mu       sync.RWMutex
	nextID   int64
	nextImg  int64
	listings map[int64]*model.Listing
	images   map[int64][]model.ListingImage
}

// NewMemoryRepository constructs an empty MemoryRepository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		listings: make(map[int64]*model.Listing),
		images:   make(map[int64][]model.ListingImage),
	}
}

// CreateListing assigns an ID and stores the listing with its images
func (m *MemoryRepository) CreateListing(_ context.Context, listing *model.Listing, images []model.ListingImage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	now := time.Now().UTC()
	listing.ID = m.nextID
	listing.CreatedAt = now
	listing.UpdatedAt = now
	listing.ImageRefs = make([]string, len(images))
	listing.PrimaryImageRef = nil

	stored := make([]model.ListingImage, len(images))
	for i, img := range images {
		m.nextImg++
		img.ID = m.nextImg
		img.ListingID = listing.ID
		img.Position = i
		img.CreatedAt = now
		stored[i] = img
		images[i] = img
		listing.ImageRefs[i] = img.ObjectKey
	}
	if len(images) > 0 {
		key := images[0].ObjectKey
		listing.PrimaryImageRef = &key
	}

	m.listings[listing.ID] = cloneListing(listing)
	m.images[listing.ID] = stored
	return nil
}

// GetListing returns a copy of the listing if pred admits it, nil otherwise
func (m *MemoryRepository) GetListing(_ context.Context, id int64, pred moderation.Predicate) (*model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.listings[id]
	if !ok || !pred.Matches(l) {
		return nil, nil
	}
	return cloneListing(l), nil
}

// ListListings returns copies of the admitted listings, newest first
func (m *MemoryRepository) ListListings(_ context.Context, pred moderation.Predicate, filters *model.ListingFilters) ([]model.Listing, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := []model.Listing{}
	for _, l := range m.listings {
		if pred.Matches(l) && matchesFilters(l, filters) {
			results = append(results, *cloneListing(l))
		}
	}
	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID > results[j].ID
	})
	return results, nil
}

// UpdateListing writes the editable fields of a listing
func (m *MemoryRepository) UpdateListing(_ context.Context, listing *model.Listing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.listings[listing.ID]
	if !ok {
		return model.ErrNotFound
	}
	stored.Title = listing.Title
	stored.Description = listing.Description
	stored.Price = listing.Price
	stored.Location = listing.Location
	stored.Latitude = listing.Latitude
	stored.Longitude = listing.Longitude
	stored.UpdatedAt = time.Now().UTC()
	listing.UpdatedAt = stored.UpdatedAt
	return nil
}

// DeleteListing removes a listing and returns its image keys
func (m *MemoryRepository) DeleteListing(_ context.Context, id int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	keys := append([]string{}, l.ImageRefs...)
	delete(m.listings, id)
	delete(m.images, id)
	return keys, nil
}

// CompareAndSetState sets the state to `to` only if it currently equals `from`
func (m *MemoryRepository) CompareAndSetState(_ context.Context, id int64, from, to model.ModerationState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.listings[id]
	if !ok || l.ModerationState != from {
		return false, nil
	}
	l.ModerationState = to
	l.UpdatedAt = time.Now().UTC()
	return true, nil
}

// ListingImages returns the stored images of a listing
func (m *MemoryRepository) ListingImages(_ context.Context, listingID int64) ([]model.ListingImage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.ListingImage{}, m.images[listingID]...), nil
}

func cloneListing(l *model.Listing) *model.Listing {
	c := *l
	c.ImageRefs = append([]string{}, l.ImageRefs...)
	c.ImageURLs = nil
	return &c
}

func matchesFilters(l *model.Listing, f *model.ListingFilters) bool {
	if f == nil {
		return true
	}
	if f.Location != nil && l.Location != *f.Location {
		return false
	}
	if f.Price != nil && l.Price != *f.Price {
		return false
	}
	if f.PriceMin != nil && l.Price < *f.PriceMin {
		return false
	}
	if f.PriceMax != nil && l.Price > *f.PriceMax {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		haystack := strings.ToLower(l.Title + "\n" + l.Location + "\n" + l.Description)
		if !strings.Contains(haystack, search) {
			return false
		}
	}
	return true
}
