package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var idsCmd = &cobra.Command{
	Use:   "ids",
	Short: "Identity bookkeeping",
}

var idsBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Give unidentified detections placeholder identities",
	Long: `Older catalogs can hold detections with no identity at all. Backfill
creates an anonymous (unknown) identity for each so every detection is
countable. Locally named detections are left alone.`,
	RunE: runIdsBackfill,
}

func init() {
	rootCmd.AddCommand(idsCmd)
	idsCmd.AddCommand(idsBackfillCmd)
}

func runIdsBackfill(cmd *cobra.Command, args []string) error {
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
	persons, err := store.BackfillAnonymousPersons(ctx)
	if err != nil {
		return err
	}
	dogs, err := store.BackfillAnonymousDogs(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Backfilled %d person detections and %d dog detections\n", persons, dogs)
	return nil
}
