package cmd

import (
	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Deduplicate the catalog",
	Long: `Clean finds and removes duplicates: photos that are near-identical,
identities with exactly matching names, and identities whose embeddings
say they are the same individual under different names.`,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
