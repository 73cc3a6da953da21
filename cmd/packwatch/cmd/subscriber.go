package cmd

import (
	"fmt"
	"io"
	"os"
	"packwatch/internal/facet"
	"packwatch/internal/subscriber"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	subscriberCmd.AddCommand(subscriberToggleCmd)
	subscriberCmd.AddCommand(subscriberShowCmd)
	subscriberCmd.AddCommand(subscriberListCmd)
	rootCmd.AddCommand(subscriberCmd)
}

var subscriberCmd = &cobra.Command{
	Use:   "subscriber",
	Short: "Inspects and edits stored subscriber selections.",
}

func parseSubscriberId(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid subscriber id %q", arg)
	}
	return id, nil
}

func renderSelection(out io.Writer, id int64, sel subscriber.Selection) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetTitle(fmt.Sprintf("subscriber %d", id))
	t.AppendHeader(table.Row{"Kind", "Name", "Token"})
	for _, ref := range sel.Refs() {
		t.AppendRow(table.Row{ref.Kind().String(), ref.Name(), ref.Token()})
	}
	t.AppendFooter(table.Row{"", "signature", sel.Signature()})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

var subscriberToggleCmd = &cobra.Command{
	Use:   "toggle <subscriber id> <facet>",
	Short: "Toggles a facet (name or token) in a subscriber's selection.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseSubscriberId(args[0])
		if err != nil {
			return err
		}
		ref, err := facet.Lookup(args[1])
		if err != nil {
			return err
		}

		w, closeStore, err := newWatcher(cmd.Context(), cfg, tel)
		if err != nil {
			return err
		}
		defer closeStore()

		sel, err := w.Toggle(cmd.Context(), id, facet.Encode(ref))
		if err != nil {
			return err
		}
		renderSelection(os.Stdout, id, sel)
		return nil
	},
}

var subscriberShowCmd = &cobra.Command{
	Use:   "show <subscriber id>",
	Short: "Prints a subscriber's selection.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseSubscriberId(args[0])
		if err != nil {
			return err
		}

		store, database, err := openStore(cmd.Context(), cfg, tel)
		if err != nil {
			return err
		}
		defer database.Close()

		sel, err := store.Selection(cmd.Context(), id)
		if err != nil {
			return err
		}
		renderSelection(os.Stdout, id, sel)
		return nil
	},
}

var subscriberListCmd = &cobra.Command{
	Use:   "list",
	Short: "Prints every known subscriber.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, database, err := openStore(cmd.Context(), cfg, tel)
		if err != nil {
			return err
		}
		defer database.Close()

		ids, err := store.Subscribers(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Subscriber", "Signature"})
		for _, id := range ids {
			sel, err := store.Selection(cmd.Context(), id)
			if err != nil {
				return err
			}
			t.AppendRow(table.Row{id, sel.Signature()})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
