package cmd

import (
	"github.com/lehigh-university-libraries/cardset/internal/datasetcmd"
	"github.com/spf13/cobra"
)

func newDatasetCmd(globals *datasetcmd.Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Graded card dataset tools",
		Long: `Tools for exporting graded card images into a dataset, checking listing
records before an export, and reviewing or correcting an exported dataset.`,
	}

	cmd.AddCommand(datasetcmd.NewExportCmd(globals))
	cmd.AddCommand(datasetcmd.NewInspectCmd(globals))
	cmd.AddCommand(datasetcmd.NewReportCmd(globals))
	cmd.AddCommand(datasetcmd.NewPairsCmd(globals))
	cmd.AddCommand(datasetcmd.NewRegradeCmd(globals))

	return cmd
}
