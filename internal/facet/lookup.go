package facet

import (
	"fmt"
	"strings"

	"github.com/antzucaro/matchr"
)

// minimum Jaro-Winkler similarity for a name to be offered as a suggestion
const suggestThreshold = 0.7

func lookupKeys(ref Ref) []string {
	return []string{
		strings.ToLower(ref.Name()),
		strings.ToLower(ref.Token()),
		strings.TrimPrefix(ref.Token(), "wt_"),
	}
}

// Lookup resolves a facet from a human supplied name, its wire token, or the
// token without its `wt_` prefix, ignoring case. When nothing matches, the
// error suggests the most similar facet name.
func Lookup(name string) (Ref, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil, fmt.Errorf("empty facet name")
	}

	var best Ref
	bestScore := 0.0
	for _, kind := range Kinds {
		for _, ref := range All(kind) {
			for _, key := range lookupKeys(ref) {
				if key == needle {
					return ref, nil
				}
				score := matchr.JaroWinkler(needle, key, false)
				if score > bestScore {
					best = ref
					bestScore = score
				}
			}
		}
	}

	if best != nil && bestScore >= suggestThreshold {
		return nil, fmt.Errorf("unknown facet %q, did you mean %q (%s)?", name, best.Name(), best.Kind())
	}
	return nil, fmt.Errorf("unknown facet %q", name)
}
