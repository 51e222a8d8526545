package datasetcmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/cardset/internal/exported"
	"github.com/lehigh-university-libraries/cardset/internal/filestore"
)

// NewPairsCmd creates the pairs command
func NewPairsCmd(g *Globals) *cobra.Command {
	var grade string

	cmd := &cobra.Command{
		Use:   "pairs DIR",
		Short: "List the front/back image pairs in an exported dataset",
		Example: `  cardset dataset pairs ./dataset
  cardset dataset pairs ./dataset --grade 10`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executePairs(cmd.OutOrStdout(), filestore.NewOS(), args[0], grade)
		},
	}

	cmd.Flags().StringVar(&grade, "grade", "", "Only list pairs with this grade (10 matches 10.0)")
	return cmd
}

func executePairs(out io.Writer, store filestore.Store, dir, grade string) error {
	pairs, err := exported.Scan(store, dir)
	if err != nil {
		return err
	}
	if grade != "" {
		pairs = exported.FilterGrade(pairs, grade)
	}

	rows := make([][]string, 0, len(pairs))
	for _, p := range pairs {
		rows = append(rows, []string{p.ID, p.Company, p.Grade, p.Front, p.Back})
	}
	fmt.Fprintln(out, renderTable([]string{"ID", "Company", "Grade", "Front", "Back"}, rows, tableLayout{compact: true}))
	fmt.Fprintf(out, "%d pair(s)\n", len(pairs))
	return nil
}

// NewRegradeCmd creates the regrade command
func NewRegradeCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regrade DIR ID GRADE",
		Short: "Move an exported pair to a different grade",
		Long: `Regrade renames the front and back images of the pair with the given id
so their file names carry the new grade, and updates the matching entry in
dataset_metadata.json when the manifest is present.`,
		Example: `  cardset dataset regrade ./dataset 1a2b3c4d 9.5`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeRegrade(cmd.OutOrStdout(), filestore.NewOS(), args[0], args[1], args[2])
		},
	}
	return cmd
}

func executeRegrade(out io.Writer, store filestore.Store, dir, id, grade string) error {
	pairs, err := exported.Scan(store, dir)
	if err != nil {
		return err
	}

	var matches []exported.Pair
	for _, p := range pairs {
		if p.ID == id {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return fmt.Errorf("no exported pair with id %s in %s", id, dir)
	case 1:
	default:
		return fmt.Errorf("id %s matches %d pairs in %s", id, len(matches), dir)
	}

	updated, err := exported.Regrade(store, dir, matches[0], grade)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s -> %s\n%s -> %s\n", matches[0].Front, updated.Front, matches[0].Back, updated.Back)
	return nil
}
