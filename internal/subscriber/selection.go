package subscriber

import (
	"packwatch/internal/facet"
	"slices"
	"strings"
)

// SignatureSeparator joins facet tokens in a signature, it is also the
// separator the storefront expects inside its `search` parameter.
const SignatureSeparator = ","

// Selection is the set of facets a subscriber filters the catalog by.
// The zero value is an empty, usable selection.
type Selection struct {
	tiers   map[facet.Tier]struct{}
	nations map[facet.Nation]struct{}
	classes map[facet.VehicleClass]struct{}
}

func NewSelection(refs ...facet.Ref) Selection {
	var s Selection
	for _, ref := range refs {
		if !s.Has(ref) {
			s.Toggle(ref)
		}
	}
	return s
}

func toggle[T comparable](set *map[T]struct{}, value T) {
	if *set == nil {
		*set = map[T]struct{}{}
	}
	if _, ok := (*set)[value]; ok {
		delete(*set, value)
		return
	}
	(*set)[value] = struct{}{}
}

// Toggle removes the facet when it is selected and adds it otherwise.
func (s *Selection) Toggle(ref facet.Ref) {
	switch v := ref.(type) {
	case facet.Tier:
		toggle(&s.tiers, v)
	case facet.Nation:
		toggle(&s.nations, v)
	case facet.VehicleClass:
		toggle(&s.classes, v)
	}
}

func (s Selection) Has(ref facet.Ref) bool {
	var ok bool
	switch v := ref.(type) {
	case facet.Tier:
		_, ok = s.tiers[v]
	case facet.Nation:
		_, ok = s.nations[v]
	case facet.VehicleClass:
		_, ok = s.classes[v]
	}
	return ok
}

func (s Selection) Len() int {
	return len(s.tiers) + len(s.nations) + len(s.classes)
}

// Refs returns the selected facets grouped by kind in declaration order.
func (s Selection) Refs() []facet.Ref {
	var out []facet.Ref
	for _, kind := range facet.Kinds {
		for _, ref := range facet.All(kind) {
			if s.Has(ref) {
				out = append(out, ref)
			}
		}
	}
	return out
}

func (s Selection) Clone() Selection {
	return NewSelection(s.Refs()...)
}

// Signature serializes the selection deterministically: the sorted tokens
// of every selected facet joined by SignatureSeparator. The order in which
// facets were toggled has no influence on it.
func (s Selection) Signature() string {
	refs := s.Refs()
	tokens := make([]string, len(refs))
	for i, ref := range refs {
		tokens[i] = ref.Token()
	}
	slices.Sort(tokens)
	return strings.Join(tokens, SignatureSeparator)
}
