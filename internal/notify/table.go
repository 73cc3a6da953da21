package notify

import (
	"context"
	"fmt"
	"io"
	"packwatch/internal/catalog"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
)

// RenderEntries writes a table of catalog entries.
func RenderEntries(out io.Writer, entries []catalog.Entry) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(table.Row{"Pack", "Price", "Link"})
	for _, e := range entries {
		t.AppendRow(table.Row{e.Name, e.Price, e.Link})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// RenderEvents writes a table of change events.
func RenderEvents(out io.Writer, title string, events []catalog.ChangeEvent) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	if title != "" {
		t.SetTitle(title)
	}
	t.AppendHeader(table.Row{"Change", "Pack", "Old price", "Price", "Link"})
	for _, e := range events {
		t.AppendRow(table.Row{e.Kind.String(), e.Entry.Name, e.OldPrice, e.Entry.Price, e.Entry.Link})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// TableNotifier prints events as a table, one table per subscriber.
type TableNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewTableNotifier(out io.Writer) *TableNotifier {
	return &TableNotifier{out: out}
}

func (n *TableNotifier) Notify(_ context.Context, subscriberId int64, events []catalog.ChangeEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	RenderEvents(n.out, fmt.Sprintf("subscriber %d", subscriberId), events)
	return nil
}
