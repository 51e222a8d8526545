package datasetcmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/cardset/internal/cards"
	"github.com/lehigh-university-libraries/cardset/internal/config"
	"github.com/lehigh-university-libraries/cardset/internal/filestore"
	"github.com/lehigh-university-libraries/cardset/internal/pipeline"
	"github.com/lehigh-university-libraries/cardset/internal/runlog"
)

// LockFileName guards an output directory against concurrent exports
const LockFileName = ".cardset.lock"

// NewExportCmd creates the export command
func NewExportCmd(g *Globals) *cobra.Command {
	var (
		input       string
		imagesDir   string
		outputDir   string
		parquet     bool
		incremental bool
		exclude     []string
		runLog      string
		strict      bool
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export graded card images into a training dataset",
		Long: `Export reads card listing records, keeps the ones that carry a grade,
a grading company and exactly two images, and copies their front and back
images to {output}/{grading_company}/{grade}_{id}_{front|back}.{ext}.

A dataset_metadata.json manifest describing every exported card and the
run statistics is written to the output directory. Re-running on the same
input reproduces the same files and manifest.`,
		Example: `  # Export a scraped listing file
  cardset dataset export --input listings.json --images ./scraped --output ./dataset

  # Also write a Parquet copy of the manifest and skip two listings
  cardset dataset export --input listings.jsonl --images ./scraped --output ./dataset \
    --parquet --exclude 1234567 --exclude 7654321

  # Keep a per-record YAML log outside the dataset
  cardset dataset export --input listings.json --images ./scraped --output ./dataset --run-log runs/latest.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("input") {
				cfg.Input = input
			}
			if flags.Changed("images") {
				cfg.ImagesDir = imagesDir
			}
			if flags.Changed("output") {
				cfg.OutputDir = outputDir
			}
			if flags.Changed("parquet") {
				cfg.Parquet = parquet
			}
			if flags.Changed("incremental") {
				cfg.Incremental = incremental
			}
			if flags.Changed("exclude") {
				cfg.Exclude = exclude
			}
			if flags.Changed("run-log") {
				cfg.RunLog = runLog
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := setupLogger(cmd, cfg)
			if err != nil {
				return err
			}

			result, err := executeExport(cmd.Context(), cfg, logger, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if strict && result.Stats.Failed > 0 {
				return fmt.Errorf("%d record(s) failed to export", result.Stats.Failed)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Path to the listing records (.json, .jsonl or .parquet)")
	cmd.Flags().StringVar(&imagesDir, "images", "", "Base directory the records' image paths are relative to")
	cmd.Flags().StringVar(&outputDir, "output", "", "Dataset output directory")
	cmd.Flags().BoolVar(&parquet, "parquet", false, "Also write dataset_metadata.parquet")
	cmd.Flags().BoolVar(&incremental, "incremental", false, "Rewrite the manifest after every record")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Listing ID to skip (repeatable or comma separated)")
	cmd.Flags().StringVar(&runLog, "run-log", "", "Write a YAML log of every record's outcome to this path")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error if any record failed to export")

	return cmd
}

func executeExport(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*pipeline.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	records, err := cards.NewLoader(cfg.Input).Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}

	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	lockPath := filepath.Join(cfg.OutputDir, LockFileName)
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire output lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("output directory %s is in use by another export (lock %s)", cfg.OutputDir, lockPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("Failed to release output lock", "path", lockPath, "error", err)
		}
	}()

	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	p := pipeline.New(filestore.NewOS(), pipeline.Options{
		ImagesDir:          cfg.ImagesDir,
		OutputDir:          cfg.OutputDir,
		ExcludedListingIDs: cfg.Exclude,
		Incremental:        cfg.Incremental,
		Parquet:            cfg.Parquet,
	}, logger)

	result, runErr := p.Run(ctx, records)
	if result == nil {
		return nil, runErr
	}

	printSummary(out, result)

	if cfg.RunLog != "" {
		listingIDs := make([]string, len(records))
		for i := range records {
			listingIDs[i] = records[i].GetListingID()
		}
		meta := runlog.Meta{
			RunID:     runID,
			Input:     cfg.Input,
			ImagesDir: cfg.ImagesDir,
			OutputDir: cfg.OutputDir,
		}
		if err := runlog.Save(cfg.RunLog, meta, result, listingIDs); err != nil {
			logger.Error("Failed to save run log", "path", cfg.RunLog, "error", err)
		}
	}

	return result, runErr
}

func printSummary(out io.Writer, result *pipeline.Result) {
	s := result.Stats
	rows := [][]string{
		{"Considered", strconv.Itoa(s.Considered)},
		{"Exported", strconv.Itoa(s.Exported)},
		{"Skipped (invalid)", strconv.Itoa(s.SkippedInvalid)},
		{"Skipped (missing images)", strconv.Itoa(s.SkippedMissingImages)},
		{"Failed", strconv.Itoa(s.Failed)},
		{"Bytes copied", humanize.Bytes(uint64(result.BytesCopied))},
	}
	fmt.Fprintln(out, renderTable([]string{"Records", "Count"}, rows, tableLayout{
		title:  "Export summary",
		aligns: []columnAlignment{alignLeft, alignRight},
	}))
}
