package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "photodex",
	Short: "A CLI tool for cataloging people and dogs in a photo collection",
	Long: `Photodex ingests a photo collection, matches detected faces and bodies
to persistent identities using appearance embeddings, and keeps the
resulting catalog clean of duplicate photos and duplicate identities.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().String("catalog", "", "Catalog database file (overrides PHOTODEX_CATALOG)")
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
