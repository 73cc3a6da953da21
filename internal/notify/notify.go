// Package notify delivers change events to subscribers.
package notify

import (
	"context"
	"errors"
	"fmt"
	"packwatch/internal/catalog"
	"strings"
)

type Notifier interface {
	Notify(ctx context.Context, subscriberId int64, events []catalog.ChangeEvent) error
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, subscriberId int64, events []catalog.ChangeEvent) error

func (f NotifierFunc) Notify(ctx context.Context, subscriberId int64, events []catalog.ChangeEvent) error {
	return f(ctx, subscriberId, events)
}

// Multi delivers to every notifier, even when some of them fail.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, subscriberId int64, events []catalog.ChangeEvent) error {
	var errs []error
	for _, n := range m {
		err := n.Notify(ctx, subscriberId, events)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// FormatEvent renders an event as a short human readable line.
func FormatEvent(e catalog.ChangeEvent) string {
	switch e.Kind {
	case catalog.NewPack:
		return fmt.Sprintf("New pack: %s for %s", e.Entry.Name, e.Entry.Price)
	case catalog.PriceChanged:
		return fmt.Sprintf("Price changed: %s %s -> %s", e.Entry.Name, e.OldPrice, e.Entry.Price)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Entry.Name)
}

// FormatEvents renders events one per paragraph, each followed by the pack
// link.
func FormatEvents(events []catalog.ChangeEvent) string {
	var b strings.Builder
	for i, e := range events {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatEvent(e))
		if e.Entry.Link != "" {
			b.WriteString("\n")
			b.WriteString(e.Entry.Link)
		}
	}
	return b.String()
}
