package resolver

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tayloree/shopcli/internal/api"
)

// Source names where a ProductRef's data came from.
type Source string

const (
	SourceInbound   Source = "inbound"
	SourceCache     Source = "cache"
	SourceFavorites Source = "favorites"
	SourceCanonical Source = "canonical"
)

// ProductRef is a product's identity and display fields as reconciled from
// the sources that know about it.
type ProductRef struct {
	ExternalID   string `json:"externalId"`
	NormalizedID string `json:"normalizedId"`
	Name         string `json:"name"`
	Brand        string `json:"brand"`
	Manufacturer string `json:"manufacturer"`
	Category     string `json:"category,omitempty"`
	ImageURL     string `json:"imageUrl,omitempty"`
	Source       Source `json:"source,omitempty"`
}

// Complete reports whether the fields a product view needs are all present.
func (r *ProductRef) Complete() bool {
	return r != nil && r.Name != "" && r.Brand != "" && r.Manufacturer != ""
}

// mergeFrom overwrites r's fields with the non-empty fields of other.
func (r *ProductRef) mergeFrom(other ProductRef) {
	set := func(dst *string, v string) {
		if strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&r.ExternalID, other.ExternalID)
	set(&r.NormalizedID, other.NormalizedID)
	set(&r.Name, other.Name)
	set(&r.Brand, other.Brand)
	set(&r.Manufacturer, other.Manufacturer)
	set(&r.Category, other.Category)
	set(&r.ImageURL, other.ImageURL)
	if other.Source != "" {
		r.Source = other.Source
	}
}

// FromProduct converts a canonical product.
func FromProduct(p *api.Product) ProductRef {
	return ProductRef{
		ExternalID:   string(p.ID),
		NormalizedID: NormalizeID(p.ID),
		Name:         p.Name,
		Brand:        p.Brand,
		Manufacturer: p.Manufacturer,
		Category:     p.Category,
		ImageURL:     p.ImageURL,
		Source:       SourceCanonical,
	}
}

func fromFavorite(f api.Favorite) ProductRef {
	id := f.ItemID
	if id == "" {
		id = f.ID
	}
	return ProductRef{
		ExternalID:   string(id),
		NormalizedID: NormalizeID(id),
		Name:         f.Name,
		Brand:        f.Brand,
		Manufacturer: f.Manufacturer,
		Category:     f.Category,
		ImageURL:     f.ImageURL,
		Source:       SourceFavorites,
	}
}

// NormalizeID coerces an identifier to its string form so that "42", 42 and
// 42.0 compare equal. Numbers are formatted without exponent or trailing
// zeros; strings are only trimmed. Unsupported types normalize to "".
func NormalizeID(v any) string {
	switch id := v.(type) {
	case nil:
		return ""
	case string:
		return normalizeIDString(id)
	case api.ID:
		return normalizeIDString(string(id))
	case fmt.Stringer:
		return normalizeIDString(id.String())
	case int:
		return strconv.Itoa(id)
	case int32:
		return strconv.FormatInt(int64(id), 10)
	case int64:
		return strconv.FormatInt(id, 10)
	case uint:
		return strconv.FormatUint(uint64(id), 10)
	case uint64:
		return strconv.FormatUint(id, 10)
	case float32:
		return formatFloat(float64(id))
	case float64:
		return formatFloat(id)
	default:
		return ""
	}
}

func normalizeIDString(s string) string {
	return strings.TrimSpace(s)
}

func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
