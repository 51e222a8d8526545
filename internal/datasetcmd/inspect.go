package datasetcmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/cardset/internal/cards"
	"github.com/lehigh-university-libraries/cardset/internal/filestore"
	"github.com/lehigh-university-libraries/cardset/internal/ident"
	"github.com/lehigh-university-libraries/cardset/internal/locate"
	"github.com/lehigh-university-libraries/cardset/internal/validate"
)

// NewInspectCmd creates the inspect command
func NewInspectCmd(g *Globals) *cobra.Command {
	var input string
	var imagesDir string
	var limit int
	var exclude []string

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Show each record's eligibility and dataset id without exporting",
		Long: `Inspect loads listing records and prints, for each one, whether it would be
exported and under which id. With --images the declared image paths are also
resolved so missing files show up before a real export.`,
		Example: `  # Check the first 20 records
  cardset dataset inspect --input listings.json --limit 20

  # Also check that the images exist
  cardset dataset inspect --input listings.json --images ./scraped`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("input") || cfg.Input == "" {
				cfg.Input = input
			}
			if cmd.Flags().Changed("images") {
				cfg.ImagesDir = imagesDir
			}
			if cmd.Flags().Changed("exclude") {
				cfg.Exclude = exclude
			}
			if cfg.Input == "" {
				return fmt.Errorf("--input is required")
			}
			if _, err := setupLogger(cmd, cfg); err != nil {
				return err
			}

			loader := cards.NewLoader(cfg.Input)
			var records []cards.Record
			if limit > 0 {
				records, err = loader.LoadSample(limit)
			} else {
				records, err = loader.Load()
			}
			if err != nil {
				return fmt.Errorf("failed to load records: %w", err)
			}

			var locator *locate.Locator
			if cfg.ImagesDir != "" {
				locator = locate.New(filestore.NewOS(), cfg.ImagesDir)
			}
			executeInspect(cmd.OutOrStdout(), records, validate.New(cfg.Exclude), locator)
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Path to the listing records (.json, .jsonl or .parquet)")
	cmd.Flags().StringVar(&imagesDir, "images", "", "Resolve image paths against this directory")
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of records to inspect (0 for all)")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Listing ID to treat as excluded")

	return cmd
}

func executeInspect(out io.Writer, records []cards.Record, validator *validate.Validator, locator *locate.Locator) {
	ids := ident.NewRegistry()
	headers := []string{"#", "Listing", "Company", "Grade", "Images", "Verdict", "ID"}
	if locator != nil {
		headers = append(headers, "Files")
	}

	eligible := 0
	rows := make([][]string, 0, len(records))
	for i, record := range records {
		verdict := validator.Validate(record)
		row := []string{
			strconv.Itoa(i + 1),
			truncate(record.Label(), 24),
			record.GetCompany(),
			record.GetGrade(),
			strconv.Itoa(len(record.Images)),
			verdictText(verdict),
			"",
		}
		var located []locate.Result
		if locator != nil {
			located = locator.Locate(record)
		}
		if verdict.Eligible {
			eligible++
			// ids match an export run: records with missing images get none
			if _, notFound := locate.Resolved(located); locator == nil || notFound == nil {
				row[6] = ids.Assign(record)
			}
		}
		if locator != nil {
			row = append(row, filesText(located))
		}
		rows = append(rows, row)
	}

	fmt.Fprintln(out, renderTable(headers, rows, tableLayout{
		aligns:  []columnAlignment{alignRight},
		footer:  []string{"", "", "", "", "", fmt.Sprintf("%d eligible", eligible)},
		compact: true,
	}))
	fmt.Fprintf(out, "%d of %d records eligible for export\n", eligible, len(records))
}

func verdictText(v validate.Verdict) string {
	if v.Eligible {
		return "eligible"
	}
	return v.String()
}

func filesText(results []locate.Result) string {
	if len(results) == 0 {
		return "-"
	}
	var missing []string
	for _, r := range results {
		if !r.OK() {
			missing = append(missing, string(r.Err.Side))
		}
	}
	if len(missing) == 0 {
		return "ok"
	}
	return "missing " + strings.Join(missing, ",")
}

// truncate shortens s to maxLen runes, marking the cut with an ellipsis
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
