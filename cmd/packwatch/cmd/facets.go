package cmd

import (
	"os"
	"packwatch/internal/facet"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(facetsCmd)
}

var facetsCmd = &cobra.Command{
	Use:   "facets",
	Short: "Prints every facet a subscriber can select.",
	Run: func(cmd *cobra.Command, args []string) {
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Kind", "Name", "Token"})
		for _, kind := range facet.Kinds {
			for _, ref := range facet.All(kind) {
				t.AppendRow(table.Row{kind.String(), ref.Name(), ref.Token()})
			}
			t.AppendSeparator()
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
