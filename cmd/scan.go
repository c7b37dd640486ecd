package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ykarpov/photodex/internal/catalog"
	"github.com/ykarpov/photodex/internal/config"
	"github.com/ykarpov/photodex/internal/detect"
	"github.com/ykarpov/photodex/internal/ingest"
	"github.com/ykarpov/photodex/internal/match"
	"github.com/ykarpov/photodex/internal/resolve"
	"github.com/ykarpov/photodex/internal/worker"
)

var scanCmd = &cobra.Command{
	Use:   "scan [directory]",
	Short: "Ingest a photo directory into the catalog",
	Long: `Scan walks a directory, runs detection on every image, associates faces
with bodies, and resolves each detection to an identity. Detections the
matcher cannot place are brought to you interactively.

Examples:
  # Ingest a directory
  photodex scan ~/Pictures/2024

  # Reprocess everything, consulting a reference catalog
  photodex scan --reprocess reprocess --reference ~/family.db ~/Pictures/2024`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("reprocess", "", "Policy for already-ingested images: skip, reprocess, or ask")
	scanCmd.Flags().String("reference", "", "Read-only reference catalog to consult on matcher misses")
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if ref := mustGetString(cmd, "reference"); ref != "" {
		cfg.Catalog.ReferencePath = ref
	}
	if policy := config.ReprocessPolicy(mustGetString(cmd, "reprocess")); policy != "" {
		if !policy.Valid() {
			return fmt.Errorf("invalid reprocess policy %q", policy)
		}
		cfg.Reprocess = policy
	}

	store, err := openCatalog(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	encodings, err := store.ListKnownEncodings(cmd.Context())
	if err != nil {
		return err
	}
	active := match.NewCatalog(cfg.Thresholds.FaceMatch, candidatesOf(encodings))

	var reference *catalog.Store
	var refSource match.Source
	if cfg.Catalog.ReferencePath != "" {
		reference, err = catalog.OpenReadOnly(cfg.Catalog.ReferencePath)
		if err != nil {
			return fmt.Errorf("open reference catalog: %w", err)
		}
		defer reference.Close()

		refEncodings, err := reference.ListKnownEncodings(cmd.Context())
		if err != nil {
			return err
		}
		// The reference set is larger and never grows mid-run, so it
		// gets the ANN index.
		refSource = match.NewIndex(cfg.Thresholds.FaceMatch, candidatesOf(refEncodings))
	}

	detector := detect.NewClient(cfg.Detector.URL, cfg.Detector.Timeout)

	runner := worker.NewRunner()
	var result *ingest.Result
	_, err = runner.Start(cmd.Context(), func(ctx context.Context, inbox *worker.Inbox) error {
		coordinator := resolve.NewCoordinator(resolve.Config{
			Store:           store,
			Active:          active,
			Decider:         resolve.DeciderFromAsk(inbox.Ask),
			Reference:       reference,
			ReferenceSource: refSource,
		})
		ing := ingest.New(store, detector, coordinator)

		var runErr error
		result, runErr = ing.Run(ctx, args[0], ingest.Options{
			Reprocess:        cfg.Reprocess,
			OverlapThreshold: cfg.Thresholds.Overlap,
			Ask:              inbox.Ask,
			OnProgress: func(p ingest.ProgressInfo) {
				fmt.Printf("[%d/%d] %s\n", p.Current, p.Total, p.Path)
			},
		})
		return runErr
	})
	if err != nil {
		return err
	}

	// Ctrl-C cancels the run cooperatively; committed images stay.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		if _, ok := <-sigs; ok {
			fmt.Println("\nStopping after the current image...")
			runner.Cancel()
		}
	}()

	newConsole().serve(runner.Inbox())
	err = runner.Wait()
	signal.Stop(sigs)
	close(sigs)

	if result != nil {
		fmt.Printf("\nScanned %d, processed %d, skipped %d, failed %d\n",
			result.Scanned, result.Processed, result.Skipped, result.Failed)
	}
	if err != nil && !errors.Is(err, worker.ErrRunCanceled) && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func candidatesOf(encodings []catalog.FaceEncoding) []match.Candidate {
	candidates := make([]match.Candidate, len(encodings))
	for i, e := range encodings {
		candidates[i] = match.Candidate{IdentityID: e.PersonID, Embedding: e.Encoding}
	}
	return candidates
}
