package catalog

import "fmt"

type ChangeKind int

const (
	NewPack ChangeKind = iota
	PriceChanged
)

func (k ChangeKind) String() string {
	switch k {
	case NewPack:
		return "new"
	case PriceChanged:
		return "price_changed"
	}
	return "unknown"
}

func (k ChangeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ChangeKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "new":
		*k = NewPack
	case "price_changed":
		*k = PriceChanged
	default:
		return fmt.Errorf("unknown change kind %q", text)
	}
	return nil
}

// ChangeEvent describes how a pack differs from the previous snapshot.
// OldPrice is only set for PriceChanged.
type ChangeEvent struct {
	Kind     ChangeKind `json:"kind"`
	Entry    Entry      `json:"entry"`
	OldPrice string     `json:"old_price,omitempty"`
}

// Diff classifies every entry of current against previous, keyed by name.
// Events follow the order of current. Packs that disappeared are not
// reported, the store only alerts on additions and price changes.
func Diff(current, previous []Entry) []ChangeEvent {
	previousByName := make(map[string]Entry, len(previous))
	for _, e := range previous {
		previousByName[e.Name] = e
	}

	var events []ChangeEvent
	for _, e := range current {
		old, found := previousByName[e.Name]
		if !found {
			events = append(events, ChangeEvent{Kind: NewPack, Entry: e})
			continue
		}
		if old.Price != e.Price {
			events = append(events, ChangeEvent{
				Kind:     PriceChanged,
				Entry:    e,
				OldPrice: old.Price,
			})
		}
	}
	return events
}
