package model

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

// ModerationState is the moderation lifecycle state of a listing
type ModerationState string

const (
	StatePending  ModerationState = "PENDING"
	StateApproved ModerationState = "APPROVED"
	StateRejected ModerationState = "REJECTED"
)

// Valid reports whether s is one of the known states
func (s ModerationState) Valid() bool {
	switch s {
	case StatePending, StateApproved, StateRejected:
		return true
	}
	return false
}

// Listing represents a property listing submitted by an owner
type Listing struct {
	ID              int64           `json:"id" db:"id"`
	OwnerID         string          `json:"owner" db:"owner_id"`
	Title           string          `json:"title" db:"title"`
	Description     string          `json:"description" db:"description"`
	Price           float64         `json:"price" db:"price"`
	Location        string          `json:"location" db:"location"`
	Latitude        *float64        `json:"latitude" db:"latitude"`
	Longitude       *float64        `json:"longitude" db:"longitude"`
	ModerationState ModerationState `json:"moderation_state" db:"moderation_state"`
	PrimaryImageRef *string         `json:"primary_image,omitempty" db:"primary_image_ref"`
	ImageRefs       []string        `json:"images" db:"-"`
	ImageURLs       []string        `json:"image_urls,omitempty" db:"-"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// IsApproved reports whether the listing is publicly visible
func (l *Listing) IsApproved() bool {
	return l.ModerationState == StateApproved
}

// ListingImage is one stored photo of a listing together with the
// classification that admitted it
type ListingImage struct {
	ID              int64           `json:"id" db:"id"`
	ListingID       int64           `json:"listing_id" db:"listing_id"`
	Position        int             `json:"position" db:"position"`
	ObjectKey       string          `json:"object_key" db:"object_key"`
	Filename        string          `json:"filename" db:"filename"`
	ContentType     string          `json:"content_type" db:"content_type"`
	RealEstateScore float64         `json:"real_estate_score" db:"real_estate_score"`
	JunkScore       float64         `json:"junk_score" db:"junk_score"`
	TopLabel        string          `json:"top_label" db:"top_label"`
	Scores          pgvector.Vector `json:"-" db:"scores"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

// ListingInput carries the owner-supplied fields of a new listing
type ListingInput struct {
	Title       string   `json:"title" form:"title"`
	Description string   `json:"description" form:"description"`
	Price       float64  `json:"price" form:"price"`
	Location    string   `json:"location" form:"location"`
	Latitude    *float64 `json:"latitude,omitempty" form:"latitude"`
	Longitude   *float64 `json:"longitude,omitempty" form:"longitude"`
}

// ListingPatch carries an owner or moderator edit. Nil fields are left
// unchanged; owner and moderation state are not editable.
type ListingPatch struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Location    *string  `json:"location,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

// Empty reports whether the patch changes nothing
func (p *ListingPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Price == nil &&
		p.Location == nil && p.Latitude == nil && p.Longitude == nil
}

// Apply copies the set fields onto l
func (p *ListingPatch) Apply(l *Listing) {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Price != nil {
		l.Price = *p.Price
	}
	if p.Location != nil {
		l.Location = *p.Location
	}
	if p.Latitude != nil {
		l.Latitude = p.Latitude
	}
	if p.Longitude != nil {
		l.Longitude = p.Longitude
	}
}
