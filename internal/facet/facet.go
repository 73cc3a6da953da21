// Package facet contains the three filter dimensions of the pack catalog and
// the tokens the storefront expects for each of them.
package facet

import (
	"fmt"
)

type Kind int

const (
	KindTier Kind = iota
	KindNation
	KindVehicleClass
)

var Kinds = []Kind{KindTier, KindNation, KindVehicleClass}

func (k Kind) String() string {
	switch k {
	case KindTier:
		return "tier"
	case KindNation:
		return "nation"
	case KindVehicleClass:
		return "vehicle class"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Ref is one selectable facet value. It is implemented only by Tier, Nation
// and VehicleClass, so a type switch over those three is exhaustive.
type Ref interface {
	Kind() Kind
	// Token is the opaque value the storefront expects in its `search` query.
	Token() string
	// Name is the human readable label.
	Name() string

	sealed()
}

type Tier int

const (
	TierI Tier = iota + 1
	TierII
	TierIII
	TierIV
	TierV
	TierVI
	TierVII
	TierVIII
)

var tierNames = [...]string{"", "I", "II", "III", "IV", "V", "VI", "VII", "VIII"}

func (t Tier) Kind() Kind { return KindTier }
func (Tier) sealed() {}

func (t Tier) Token() string {
	if t < TierI || t > TierVIII {
		return ""
	}
	return fmt.Sprintf("wt_rank%d", int(t))
}

func (t Tier) Name() string {
	if t < TierI || t > TierVIII {
		return ""
	}
	return tierNames[t]
}

type Nation int

const (
	NationUSSR Nation = iota
	NationGermany
	NationUSA
	NationBritain
	NationJapan
	NationSweden
	NationChina
	NationFrance
	NationItaly
)

var nationTokens = [...]string{
	"wt_ussr", "wt_germany", "wt_usa", "wt_britain", "wt_japan",
	"wt_sweden", "wt_china", "wt_france", "wt_italy",
}

var nationNames = [...]string{
	"USSR", "Germany", "USA", "Britain", "Japan",
	"Sweden", "China", "France", "Italy",
}

func (n Nation) Kind() Kind { return KindNation }
func (Nation) sealed() {}

func (n Nation) Token() string {
	if n < NationUSSR || n > NationItaly {
		return ""
	}
	return nationTokens[n]
}

func (n Nation) Name() string {
	if n < NationUSSR || n > NationItaly {
		return ""
	}
	return nationNames[n]
}

type VehicleClass int

const (
	ClassArmy VehicleClass = iota
	ClassAviation
	ClassFleet
	ClassHelicopter
)

var classTokens = [...]string{"wt_tanks", "wt_air", "wt_navy", "wt_helicopters"}
var classNames = [...]string{"Army", "Aviation", "Fleet", "Helicopter"}

func (c VehicleClass) Kind() Kind { return KindVehicleClass }
func (VehicleClass) sealed() {}

func (c VehicleClass) Token() string {
	if c < ClassArmy || c > ClassHelicopter {
		return ""
	}
	return classTokens[c]
}

func (c VehicleClass) Name() string {
	if c < ClassArmy || c > ClassHelicopter {
		return ""
	}
	return classNames[c]
}

// Encode returns the wire token of a facet.
func Encode(ref Ref) string {
	return ref.Token()
}

// All returns every facet of a kind in declaration order.
func All(kind Kind) []Ref {
	var out []Ref
	switch kind {
	case KindTier:
		for t := TierI; t <= TierVIII; t++ {
			out = append(out, t)
		}
	case KindNation:
		for n := NationUSSR; n <= NationItaly; n++ {
			out = append(out, n)
		}
	case KindVehicleClass:
		for c := ClassArmy; c <= ClassHelicopter; c++ {
			out = append(out, c)
		}
	}
	return out
}

var byToken = map[string]Ref{}

func init() {
	for _, kind := range Kinds {
		for _, ref := range All(kind) {
			byToken[ref.Token()] = ref
		}
	}
}

// Parse is the inverse of Encode.
func Parse(token string) (Ref, error) {
	ref, ok := byToken[token]
	if !ok {
		return nil, fmt.Errorf("unknown facet token %q", token)
	}
	return ref, nil
}
