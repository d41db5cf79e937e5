package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/topic-digest/internal/llm"
	"github.com/jonathan/topic-digest/internal/observability"
	"github.com/jonathan/topic-digest/internal/pipeline"
	"github.com/jonathan/topic-digest/internal/terms"
)

var termsCommand = &cobra.Command{
	Use:   "terms <topic>",
	Short: "Print the search terms generated for a topic",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTermsCmd,
}

var termsFlags configFlags

func init() {
	termsFlags.register(termsCommand)
	rootCmd.AddCommand(termsCommand)
}

func runTermsCmd(cmd *cobra.Command, args []string) error {
	cfg, err := termsFlags.resolve(cmd, envLookup)
	if err != nil {
		return err
	}
	if err := cfg.RequireCredentials(false); err != nil {
		return err
	}

	client, err := pipeline.NewGenerationClient(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	return printTerms(cmd, llm.WithTimeout(client, cfg.GenerationTimeout.Duration), topicArg(args), cfg.Terms, cfg.TokenBudgets.Terms, cfg.Verbose)
}

func printTerms(cmd *cobra.Command, client llm.Client, topic string, count, maxTokens int, verbose bool) error {
	logger := observability.NewLogger(cmd.ErrOrStderr(), verbose)
	res := terms.NewGenerator(client, maxTokens, logger).Generate(cmd.Context(), topic, count)

	if verbose {
		observability.NewPrinter(cmd.OutOrStdout()).PrintTerms(res)
		return nil
	}
	for _, t := range res.Terms {
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), t); err != nil {
			return err
		}
	}
	return nil
}
