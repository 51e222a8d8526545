package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/cardset/internal/datasetcmd"
)

func NewRootCmd() *cobra.Command {
	globals := &datasetcmd.Globals{}

	cmd := &cobra.Command{
		Use:   "cardset",
		Short: "Build graded trading card image datasets from scraped listings",
		Long: `Cardset turns scraped marketplace listings of graded trading cards into a
training dataset: front and back images organized by grading company and
grade, with a JSON manifest describing every exported card.

Settings are read from .env, an optional cardset.yaml, CARDSET_* environment
variables and flags, in increasing order of precedence.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&globals.ConfigPath, "config", "", "Path to a YAML config file (default cardset.yaml if present)")
	cmd.PersistentFlags().StringVar(&globals.LogLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&globals.LogFormat, "log-format", "", "Log format: auto, text or json")

	cmd.AddCommand(newDatasetCmd(globals))

	return cmd
}
