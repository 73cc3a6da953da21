package cmd

import (
	"fmt"
	"os"
	"packwatch/internal/facet"
	"packwatch/internal/notify"
	"packwatch/internal/subscriber"

	"github.com/spf13/cobra"
)

var (
	packsTiers      []string
	packsNations    []string
	packsClasses    []string
	packsSubscriber int64
)

func init() {
	packsCmd.Flags().StringSliceVar(&packsTiers, "tier", nil, "Tiers to include, ex. --tier III,IV")
	packsCmd.Flags().StringSliceVar(&packsNations, "nation", nil, "Nations to include, ex. --nation germany")
	packsCmd.Flags().StringSliceVar(&packsClasses, "class", nil, "Vehicle classes to include, ex. --class aviation")
	packsCmd.Flags().Int64Var(&packsSubscriber, "subscriber", 0, "Use the stored selection of a subscriber instead of the facet flags.")
	rootCmd.AddCommand(packsCmd)
}

// selectionFromNames resolves facet names (or tokens) of a single kind.
func selectionFromNames(sel *subscriber.Selection, kind facet.Kind, names []string) error {
	for _, name := range names {
		ref, err := facet.Lookup(name)
		if err != nil {
			return err
		}
		if ref.Kind() != kind {
			return fmt.Errorf("%q is a %s, not a %s", name, ref.Kind(), kind)
		}
		if !sel.Has(ref) {
			sel.Toggle(ref)
		}
	}
	return nil
}

var packsCmd = &cobra.Command{
	Use:   "packs",
	Short: "Fetches the current packs for a facet selection.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cmd.Flags().Changed("subscriber") {
			w, closeStore, err := newWatcher(ctx, cfg, tel)
			if err != nil {
				return err
			}
			defer closeStore()

			entries, err := w.Packs(ctx, packsSubscriber)
			if err != nil {
				return err
			}
			notify.RenderEntries(os.Stdout, entries)
			return nil
		}

		var sel subscriber.Selection
		err := selectionFromNames(&sel, facet.KindTier, packsTiers)
		if err != nil {
			return err
		}
		err = selectionFromNames(&sel, facet.KindNation, packsNations)
		if err != nil {
			return err
		}
		err = selectionFromNames(&sel, facet.KindVehicleClass, packsClasses)
		if err != nil {
			return err
		}

		fetcher, err := newFetcher(cfg, tel)
		if err != nil {
			return err
		}
		entries, err := fetcher.Fetch(ctx, sel.Signature())
		if err != nil {
			return err
		}
		notify.RenderEntries(os.Stdout, entries)
		return nil
	},
}
