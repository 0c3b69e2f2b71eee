package model

// ListingQuery represents the query string of a listing collection request
type ListingQuery struct {
	Location *string  `form:"location"`
	Price    *float64 `form:"price"`
	PriceMin *float64 `form:"price_min"`
	PriceMax *float64 `form:"price_max"`
	Search   string   `form:"search"`
	Mine     bool     `form:"mine"`
	Admin    bool     `form:"admin"`
}

// ListingFilters holds the field filters applied on top of visibility
type ListingFilters struct {
	Location *string
	Price    *float64
	PriceMin *float64
	PriceMax *float64
	Search   string
}

// Filters extracts the field filters from the query
func (q *ListingQuery) Filters() *ListingFilters {
	return &ListingFilters{
		Location: q.Location,
		Price:    q.Price,
		PriceMin: q.PriceMin,
		PriceMax: q.PriceMax,
		Search:   q.Search,
	}
}

// ListingResponse wraps a listing with the gate verdict that admitted it
type ListingResponse struct {
	Listing *Listing           `json:"listing"`
	Verdict *SubmissionVerdict `json:"verification,omitempty"`
	Message string             `json:"message,omitempty"`
}

// ListingsResponse represents a listing collection response
type ListingsResponse struct {
	Results []Listing `json:"results"`
	Total   int       `json:"total"`
}
