package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID is an opaque identifier that the backend may encode as either a JSON
// string or a JSON number. It always decodes to its string form.
type ID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decoding id: %w", err)
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decoding id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("decoding id: %w", err)
	}
	*id = ID(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

// String returns the id text.
func (id ID) String() string { return string(id) }

// Product is a catalog product as returned by the listing, search and
// product-by-id endpoints.
type Product struct {
	ID           ID       `json:"id"`
	Name         string   `json:"name"`
	Brand        string   `json:"brand"`
	Manufacturer string   `json:"manufacturer"`
	Category     string   `json:"category"`
	Ingredients  []string `json:"ingredients,omitempty"`
	Description  string   `json:"description,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
}

// FacetsResponse is the top-level response from the facets endpoint.
type FacetsResponse struct {
	Filters []FacetGroup `json:"filters"`
}

// FacetGroup holds the raw values for one facet type. Values are left
// undecoded beyond JSON because the endpoint is known to return nulls and
// numbers mixed in with strings.
type FacetGroup struct {
	FilterType string `json:"filterType"`
	Filters    []any  `json:"filters"`
}

// Favorite is one entry of the caller's favorites collection. ItemID refers
// to the product; ID is the favorite record itself, though older entries
// store the product id there instead.
type Favorite struct {
	ID           ID     `json:"id"`
	ItemID       ID     `json:"itemId"`
	Name         string `json:"name"`
	Brand        string `json:"brand"`
	Manufacturer string `json:"manufacturer"`
	Category     string `json:"category"`
	ImageURL     string `json:"imageUrl,omitempty"`
}

// Review is a rating record from the ratings service.
type Review struct {
	ID        ID        `json:"id"`
	Author    string    `json:"author"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// RatingSummary is the aggregate returned by the ratings summary endpoint.
type RatingSummary struct {
	AverageRating float64     `json:"averageRating"`
	TotalRatings  int         `json:"totalRatings"`
	Distribution  map[int]int `json:"distribution"`
}

// RatingSubmission is the body posted to the ratings endpoint.
type RatingSubmission struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// SearchQuery carries the parameters of an authenticated search. Facet
// values are comma-joined per kind by the caller.
type SearchQuery struct {
	Term         string
	Brand        string
	Category     string
	Manufacturer string
	Ingredients  string
}
