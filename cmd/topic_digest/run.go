package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jonathan/topic-digest/internal/observability"
	"github.com/jonathan/topic-digest/internal/pipeline"
)

var runCommand = &cobra.Command{
	Use:   "run <topic>",
	Short: "Run the full pipeline for a topic",
	Long: `Generates search terms for the topic, collects and extracts pages, saves the dataset,
analyzes every term and writes the final report.

Configuration can be loaded from a JSON or YAML file using --config. Command-line flags
override config file values; credentials are read from the environment or a .env file.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPipelineCmd,
}

var runFlags configFlags

func init() {
	runFlags.register(runCommand)
	rootCmd.AddCommand(runCommand)
}

func runPipelineCmd(cmd *cobra.Command, args []string) error {
	cfg, err := runFlags.resolve(cmd, envLookup)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cmd.ErrOrStderr(), cfg.Verbose)
	opts := pipeline.RunOptions{
		Topic:      topicArg(args),
		Config:     cfg,
		Resume:     runFlags.resume,
		Logger:     logger,
		OnProgress: progressPrinter(cmd.ErrOrStderr()),
	}

	res, err := pipeline.RunPipeline(cmd.Context(), opts)
	if res != nil {
		printRunSummary(cmd.OutOrStdout(), res, cfg.Verbose)
	}
	return err
}

// progressPrinter writes one line per progress event.
func progressPrinter(w io.Writer) pipeline.ProgressCallback {
	return func(e pipeline.ProgressEvent) {
		_, _ = fmt.Fprintf(w, "Step %d/%d: %s\n", e.Index, e.Total, e.Message)
	}
}

func printRunSummary(w io.Writer, res *pipeline.RunResult, verbose bool) {
	p := observability.NewPrinter(w)
	if verbose {
		p.PrintTerms(res.Terms)
		p.PrintCollection(res.Collection)
	}
	p.PrintDatasetStats(res.Dataset)
	p.PrintAnalysis(res.Analysis)
	p.PrintOutputs(res.Paths)
	for _, err := range res.Errors {
		_, _ = fmt.Fprintf(w, "⚠ %v\n", err)
	}
}
