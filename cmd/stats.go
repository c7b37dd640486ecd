package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show catalog statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := store.CollectStats(cmd.Context())
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Persons\t%d (%d known)\n", stats.Persons, stats.KnownPersons)
	fmt.Fprintf(w, "Dogs\t%d (%d known)\n", stats.Dogs, stats.KnownDogs)
	fmt.Fprintf(w, "Images\t%d (%d processed)\n", stats.Images, stats.ProcessedImages)
	fmt.Fprintf(w, "Person detections\t%d\n", stats.PersonDetections)
	fmt.Fprintf(w, "Dog detections\t%d\n", stats.DogDetections)
	fmt.Fprintf(w, "Face embeddings\t%d\n", stats.FaceEncodings)
	fmt.Fprintf(w, "Average embeddings\t%d\n", stats.AverageEncodings)
	fmt.Fprintf(w, "Known persons without embeddings\t%d\n", stats.UnencodedPersons)
	if err := w.Flush(); err != nil {
		return err
	}

	if len(stats.TopEncoded) > 0 {
		fmt.Println("\nMost sampled identities:")
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		for _, ec := range stats.TopEncoded {
			fmt.Fprintf(w, "  %s (#%d)\t%d embeddings\n", ec.FullName, ec.PersonID, ec.Count)
		}
		return w.Flush()
	}
	return nil
}
