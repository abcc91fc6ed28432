package sieve

import "github.com/spf13/cobra"

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Group commands for displaying configuration",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Group commands for listing resources",
}

var markersCmd = &cobra.Command{
	Use:   "markers",
	Short: "Group commands for managing processed-batch markers",
}

func init() {
	rootCmd.AddCommand(showCmd, listCmd, markersCmd)
}
