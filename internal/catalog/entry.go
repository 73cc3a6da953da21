package catalog

import (
	"slices"
	"strconv"
	"strings"
)

// Entry is one pack listed on the storefront. Price is kept exactly as it
// was displayed (ex. "19.99 €"), entries are never mutated after a fetch.
type Entry struct {
	Name  string `json:"name"`
	Link  string `json:"link"`
	Price string `json:"price"`
}

// PriceValue parses the leading numeric token of the price (everything
// before the first space). A decimal comma is accepted.
func (e Entry) PriceValue() (float64, bool) {
	token, _, _ := strings.Cut(strings.TrimSpace(e.Price), " ")
	if token == "" {
		return 0, false
	}
	token = strings.ReplaceAll(token, ",", ".")
	value, err := strconv.ParseFloat(token, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func comparePrice(a, b Entry) int {
	av, aok := a.PriceValue()
	bv, bok := b.PriceValue()
	switch {
	case !aok && !bok:
		return 0
	case !aok:
		return 1
	case !bok:
		return -1
	case av < bv:
		return -1
	case av > bv:
		return 1
	}
	return 0
}

// SortByPrice returns a copy of entries sorted ascending by price. The sort
// is stable so equally priced packs keep the storefront order, and packs
// whose price can't be read go last.
func SortByPrice(entries []Entry) []Entry {
	sorted := slices.Clone(entries)
	slices.SortStableFunc(sorted, comparePrice)
	return sorted
}
