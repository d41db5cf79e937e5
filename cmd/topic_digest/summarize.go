package main

import (
	"github.com/spf13/cobra"

	"github.com/jonathan/topic-digest/internal/observability"
	"github.com/jonathan/topic-digest/internal/pipeline"
)

var summarizeCommand = &cobra.Command{
	Use:   "summarize <topic>",
	Short: "Analyze an existing dataset without collecting pages",
	Long: `Loads the dataset file written by a previous run for the topic, then runs the per-term
analysis and the synthesis. With --resume, terms already present in the partial-results
file are reused.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSummarizeCmd,
}

var summarizeFlags configFlags

func init() {
	summarizeFlags.register(summarizeCommand)
	rootCmd.AddCommand(summarizeCommand)
}

func runSummarizeCmd(cmd *cobra.Command, args []string) error {
	cfg, err := summarizeFlags.resolve(cmd, envLookup)
	if err != nil {
		return err
	}

	res, err := pipeline.Summarize(cmd.Context(), pipeline.RunOptions{
		Topic:      topicArg(args),
		Config:     cfg,
		Resume:     summarizeFlags.resume,
		Logger:     observability.NewLogger(cmd.ErrOrStderr(), cfg.Verbose),
		OnProgress: progressPrinter(cmd.ErrOrStderr()),
	})
	if res != nil {
		printRunSummary(cmd.OutOrStdout(), res, cfg.Verbose)
	}
	return err
}
