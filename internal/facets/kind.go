// Package facets holds the facet vocabulary shared by the search and
// browsing flows: facet kinds, the user's selection, and the progressive
// disclosure state of the facet drawer.
package facets

import "strings"

// Kind identifies a facet group.
type Kind string

const (
	Brand        Kind = "BRAND"
	Category     Kind = "CATEGORY"
	Manufacturer Kind = "MANUFACTURER"
	Ingredient   Kind = "INGREDIENTS"
)

// Kinds lists every facet kind in display order.
var Kinds = []Kind{Brand, Category, Manufacturer, Ingredient}

// Param returns the query parameter name used by the search endpoint.
func (k Kind) Param() string {
	switch k {
	case Brand:
		return "brand"
	case Category:
		return "category"
	case Manufacturer:
		return "manufacturer"
	case Ingredient:
		return "ingredients"
	default:
		return ""
	}
}

// Label is the human-facing name of the kind.
func (k Kind) Label() string {
	switch k {
	case Brand:
		return "Brand"
	case Category:
		return "Category"
	case Manufacturer:
		return "Manufacturer"
	case Ingredient:
		return "Ingredients"
	default:
		return string(k)
	}
}

// ParseKind accepts wire names, parameter names and common singular/plural
// spellings.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "brand", "brands":
		return Brand, true
	case "category", "categories":
		return Category, true
	case "manufacturer", "manufacturers", "maker":
		return Manufacturer, true
	case "ingredient", "ingredients":
		return Ingredient, true
	default:
		return "", false
	}
}
