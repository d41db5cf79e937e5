// Package main provides the topic_digest command: it researches a topic on the
// web and writes a dataset, per-term analyses and a synthesized report.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "topic_digest",
	Short: "Topic research and multi-agent digest generator",
	Long: `topic_digest expands a topic into search terms, collects and extracts web pages for each
term, saves them as a JSON dataset and runs a summarizer, analyst and organizer over every
term before synthesizing a six-section report.`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
