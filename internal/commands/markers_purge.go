package sieve

import (
	"fmt"

	"github.com/mwiater/sieve/internal/dedup"
	"github.com/spf13/cobra"
)

// markersPurgeCmd removes a processed-batch marker so the batch is collected
// and processed again on the next pass.
var markersPurgeCmd = &cobra.Command{
	Use:   "purge <key>",
	Short: "Remove a processed-batch marker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg == nil {
			return fmt.Errorf("no configuration loaded")
		}
		store, err := dedup.Open(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := dedup.Purge(cmd.Context(), store, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Purged marker %s\n", args[0])
		return nil
	},
}

func init() {
	markersCmd.AddCommand(markersPurgeCmd)
}
