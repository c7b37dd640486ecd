package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ykarpov/photodex/internal/catalog"
	"github.com/ykarpov/photodex/internal/dedupe"
)

var cleanPhotosCmd = &cobra.Command{
	Use:   "photos",
	Short: "Find and remove near-duplicate photos",
	Long: `Hashes every catalog image with a perceptual hash and groups near
duplicates. Each group is shown for you to pick which members to remove;
at least one member always stays. Removing the files themselves is a
separate, explicitly confirmed step.

Examples:
  # Review duplicate groups, removing catalog rows only
  photodex clean photos

  # Also delete the duplicate files from disk
  photodex clean photos --delete-files`,
	RunE: runCleanPhotos,
}

func init() {
	cleanCmd.AddCommand(cleanPhotosCmd)

	cleanPhotosCmd.Flags().Int("threshold", 0, "Hash distance threshold 0-10 (0 = use configuration)")
	cleanPhotosCmd.Flags().Bool("delete-files", false, "Also delete the selected files from disk")
}

func runCleanPhotos(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	threshold := cfg.Thresholds.PhotoHash
	if t := mustGetInt(cmd, "threshold"); t > 0 {
		threshold = t
	}
	deleteFiles := mustGetBool(cmd, "delete-files")

	store, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	images, err := store.ListImages(ctx)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(images),
		progressbar.OptionSetDescription("Computing hashes"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
	groups, err := dedupe.FindDuplicatePhotos(ctx, store, threshold, func() { bar.Add(1) })
	bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Println("No duplicate photos found")
		return nil
	}

	console := newConsole()
	removedRows := 0
	for i, group := range groups {
		fmt.Printf("\nGroup %d of %d:\n", i+1, len(groups))
		w := tabwriter.NewWriter(console.out, 0, 0, 2, ' ', 0)
		for j, img := range group.Images {
			fmt.Fprintf(w, "  %d\t%s\t%d bytes\n", j+1, img.Filepath, img.FileSize)
		}
		w.Flush()

		selected := selectMembers(console, group.Images)
		if len(selected) == 0 {
			continue
		}

		removeFiles := false
		if deleteFiles {
			// File deletion is irreversible and confirmed separately
			// from the row selection.
			removeFiles = console.askYesNo(fmt.Sprintf("Also delete these %d files from disk?", len(selected)))
		}
		if err := dedupe.DeletePhotos(ctx, store, selected, removeFiles); err != nil {
			return err
		}
		removedRows += len(selected)
	}

	fmt.Printf("\nRemoved %d duplicate photos from the catalog\n", removedRows)
	return nil
}

// selectMembers asks which group members to remove, keeping at least one.
func selectMembers(console *console, images []catalog.Image) []catalog.Image {
	for {
		fmt.Fprint(console.out, "Remove which members? (comma-separated numbers, enter = keep all): ")
		input := console.readLine()
		if input == "" {
			return nil
		}

		var selected []catalog.Image
		seen := make(map[int]bool)
		valid := true
		for _, part := range strings.Split(input, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil || n < 1 || n > len(images) || seen[n] {
				valid = false
				break
			}
			seen[n] = true
			selected = append(selected, images[n-1])
		}
		if !valid {
			fmt.Fprintln(console.out, "Invalid selection, try again.")
			continue
		}
		if len(selected) == len(images) {
			fmt.Fprintln(console.out, "At least one member must remain.")
			continue
		}
		return selected
	}
}
