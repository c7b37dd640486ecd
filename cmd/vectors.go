package cmd

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ykarpov/photodex/internal/detect"
	"github.com/ykarpov/photodex/internal/vectors"
)

var vectorsCmd = &cobra.Command{
	Use:   "vectors",
	Short: "Maintain stored face embeddings",
}

var vectorsUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Re-extract embeddings from their source images",
	Long: `Re-runs face extraction over every known identity's stored face
regions and replaces the embeddings wholesale. Use after upgrading the
detection model so old and new embeddings don't mix. Regions that can
no longer be extracted keep their prior embedding.`,
	RunE: runVectorsUpdate,
}

var vectorsOptimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Recompute average embeddings for identity clustering",
	RunE:  runVectorsOptimize,
}

func init() {
	rootCmd.AddCommand(vectorsCmd)
	vectorsCmd.AddCommand(vectorsUpdateCmd)
	vectorsCmd.AddCommand(vectorsOptimizeCmd)
}

func personBar(count int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(count,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("persons"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func runVectorsUpdate(cmd *cobra.Command, args []string) error {
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
	persons, err := store.ListPersons(ctx, true)
	if err != nil {
		return err
	}

	detector := detect.NewClient(cfg.Detector.URL, cfg.Detector.Timeout)
	bar := personBar(len(persons), "Updating embeddings")
	updated, err := vectors.Update(ctx, store, detector, func() { bar.Add(1) })
	bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("Updated embeddings for %d persons\n", updated)
	return nil
}

func runVectorsOptimize(cmd *cobra.Command, args []string) error {
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
	persons, err := store.ListPersons(ctx, true)
	if err != nil {
		return err
	}

	bar := personBar(len(persons), "Computing averages")
	written, err := vectors.Optimize(ctx, store, func() { bar.Add(1) })
	bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	fmt.Printf("Wrote %d average embeddings\n", written)
	return nil
}
