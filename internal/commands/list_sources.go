package sieve

import (
	"fmt"
	"io"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mwiater/sieve/internal/appconfig"
	"github.com/spf13/cobra"
)

// listSourcesCmd prints the configured sources as a table.
var listSourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg == nil || len(cfg.Sources) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sources configured.")
			return nil
		}
		renderSources(cmd.OutOrStdout(), cfg.Sources)
		return nil
	},
}

func init() {
	listCmd.AddCommand(listSourcesCmd)
}

func renderSources(out io.Writer, sources []appconfig.Source) {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Name", "Collector", "Generator", "Prompt Set", "Locator", "Enabled"})
	for _, s := range sources {
		enabled := "yes"
		if s.Disabled {
			enabled = "no"
		}
		tw.AppendRow(table.Row{s.Name, s.Collector, s.Generator, strconv.Itoa(s.BenchmarkID), s.Locator, enabled})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	fmt.Fprintln(out, tw.Render())
}
