package datasetcmd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/cardset/internal/filestore"
	"github.com/lehigh-university-libraries/cardset/internal/manifest"
)

// NewReportCmd creates the report command
func NewReportCmd(g *Globals) *cobra.Command {
	var outputDir string
	var format string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the manifest of an exported dataset",
		Example: `  cardset dataset report --output ./dataset
  cardset dataset report --output ./dataset --format csv > dataset.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("output") || cfg.OutputDir == "" {
				cfg.OutputDir = outputDir
			}
			if cfg.OutputDir == "" {
				return fmt.Errorf("--output is required")
			}
			return executeReport(cmd.OutOrStdout(), filestore.NewOS(), cfg.OutputDir, format)
		},
	}

	cmd.Flags().StringVar(&outputDir, "output", "", "Dataset output directory holding dataset_metadata.json")
	cmd.Flags().StringVar(&format, "format", "text", "Output format: text, json or csv")

	return cmd
}

func executeReport(out io.Writer, store filestore.Store, outputDir, format string) error {
	m, err := manifest.Load(store, outputDir)
	if err != nil {
		return fmt.Errorf("failed to load manifest: %w", err)
	}

	switch format {
	case "text":
		return printTextReport(out, m)
	case "json":
		return printJSONReport(out, m)
	case "csv":
		return printCSVReport(out, m)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printTextReport(out io.Writer, m *manifest.Manifest) error {
	s := m.Stats
	fmt.Fprintln(out, renderTable(
		[]string{"Considered", "Exported", "Skipped (invalid)", "Skipped (missing images)", "Failed"},
		[][]string{{
			strconv.Itoa(s.Considered),
			strconv.Itoa(s.Exported),
			strconv.Itoa(s.SkippedInvalid),
			strconv.Itoa(s.SkippedMissingImages),
			strconv.Itoa(s.Failed),
		}},
		tableLayout{
			title:  "Statistics",
			aligns: []columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight},
		},
	))

	if len(m.Exported) == 0 {
		fmt.Fprintln(out, "No cards exported.")
		return nil
	}

	rows := make([][]string, 0, len(m.Exported))
	for _, e := range m.Exported {
		rows = append(rows, []string{
			e.ID,
			e.GradingCompany,
			e.Grade.String(),
			truncate(e.Title, 40),
			e.FrontPath,
			e.BackPath,
		})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Company", "Grade", "Title", "Front", "Back"}, rows, tableLayout{
		title:   "Exported cards",
		compact: true,
	}))

	// per-company counts
	counts := make(map[string]int)
	var companies []string
	for _, e := range m.Exported {
		if counts[e.GradingCompany] == 0 {
			companies = append(companies, e.GradingCompany)
		}
		counts[e.GradingCompany]++
	}
	byCompany := make([][]string, 0, len(companies))
	for _, c := range companies {
		byCompany = append(byCompany, []string{c, strconv.Itoa(counts[c])})
	}
	fmt.Fprintln(out, renderTable([]string{"Company", "Cards"}, byCompany, tableLayout{
		title:  "By grading company",
		aligns: []columnAlignment{alignLeft, alignRight},
		footer: []string{"Total", strconv.Itoa(len(m.Exported))},
	}))
	return nil
}

func printJSONReport(out io.Writer, m *manifest.Manifest) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(m)
}

func printCSVReport(out io.Writer, m *manifest.Manifest) error {
	writer := csv.NewWriter(out)

	header := []string{"id", "title", "card_name", "grading_company", "grade", "price", "listing_url", "listing_id", "front_path", "back_path"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, e := range m.Exported {
		row := []string{
			e.ID,
			e.Title,
			e.CardName,
			e.GradingCompany,
			e.Grade.String(),
			e.Price.String(),
			e.ListingURL,
			e.ListingID.String(),
			e.FrontPath,
			e.BackPath,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
