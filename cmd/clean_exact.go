package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ykarpov/photodex/internal/dedupe"
)

var cleanExactCmd = &cobra.Command{
	Use:   "exact",
	Short: "Merge identities with exactly matching names",
	Long: `Merges known identities whose normalized name fields are identical
(case-insensitive, whitespace-trimmed, diacritics removed). Runs without
confirmation because the match key is exact; the lowest id survives.`,
	RunE: runCleanExact,
}

func init() {
	cleanCmd.AddCommand(cleanExactCmd)
}

func runCleanExact(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	persons, err := dedupe.MergeExactPersons(ctx, store)
	if err != nil {
		return err
	}
	dogs, err := dedupe.MergeExactDogs(ctx, store)
	if err != nil {
		return err
	}

	fmt.Printf("Merged %d duplicate persons and %d duplicate dogs\n", persons, dogs)
	return nil
}
