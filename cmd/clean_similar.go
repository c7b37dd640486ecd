package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ykarpov/photodex/internal/catalog"
	"github.com/ykarpov/photodex/internal/dedupe"
)

var cleanSimilarCmd = &cobra.Command{
	Use:   "similar",
	Short: "Find identities that look like the same individual",
	Long: `Compares every known identity's average embedding against every other.
Pairs closer than the cluster threshold are likely the same individual
filed under different names; each pair is shown for you to merge or
skip. On merge the lower id survives with the fields you choose.`,
	RunE: runCleanSimilar,
}

func init() {
	cleanCmd.AddCommand(cleanSimilarCmd)

	cleanSimilarCmd.Flags().Float64("threshold", 0, "Average-embedding distance threshold (0 = use configuration)")
}

func runCleanSimilar(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	threshold := cfg.Thresholds.Cluster
	if t := mustGetFloat64(cmd, "threshold"); t > 0 {
		threshold = t
	}

	store, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	pairs, err := dedupe.FindSimilarIdentities(ctx, store, threshold)
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		fmt.Println("No similar identities found")
		return nil
	}

	console := newConsole()
	merges := 0
	dropped := make(map[int64]bool)
	for i, pair := range pairs {
		// A member may have been merged away by an earlier pair.
		if dropped[pair.A.ID] || dropped[pair.B.ID] {
			continue
		}
		fmt.Printf("\nPair %d of %d (distance %.3f):\n", i+1, len(pairs), pair.Distance)
		fmt.Printf("  a: %s (%s), id %d\n", pair.A.FullName, pair.A.ShortName, pair.A.ID)
		fmt.Printf("  b: %s (%s), id %d\n", pair.B.FullName, pair.B.ShortName, pair.B.ID)

		fmt.Fprint(console.out, "Keep which fields? a, b, e = edit, enter = skip: ")
		var fields catalog.Person
		switch console.readLine() {
		case "a":
			fields = pair.A
		case "b":
			fields = pair.B
		case "e":
			fmt.Fprint(console.out, "Full name: ")
			fields.FullName = console.readLine()
			fmt.Fprint(console.out, "Short name: ")
			fields.ShortName = console.readLine()
			fmt.Fprint(console.out, "Notes: ")
			fields.Notes = console.readLine()
		default:
			continue
		}

		kept, err := dedupe.MergeIdentities(ctx, store, pair.A.ID, pair.B.ID, fields)
		if err != nil {
			// One failed merge rolls back that pair only.
			fmt.Printf("merge failed: %v\n", err)
			continue
		}
		fmt.Printf("Merged into id %d\n", kept)
		if kept == pair.A.ID {
			dropped[pair.B.ID] = true
		} else {
			dropped[pair.A.ID] = true
		}
		merges++
	}

	fmt.Printf("\nMerged %d identity pairs\n", merges)
	return nil
}
