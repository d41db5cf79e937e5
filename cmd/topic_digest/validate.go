package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/topic-digest/internal/observability"
	"github.com/jonathan/topic-digest/internal/persist"
	"github.com/jonathan/topic-digest/internal/schemas"
)

var validateCmd = &cobra.Command{
	Use:   "validate <dataset.json>",
	Short: "Validate a dataset file against the dataset schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := args[0]

	if err := schemas.ValidateDatasetFile(path); err != nil {
		fmt.Fprintln(out, "Validation failed")
		var verr *schemas.ValidationError
		if errors.As(err, &verr) {
			for _, fe := range verr.Errors {
				fmt.Fprintf(out, "  %s: %s\n", fe.Field, fe.Message)
			}
		}
		return err
	}

	ds, err := persist.LoadDataset(path)
	if err != nil {
		fmt.Fprintln(out, "Validation failed")
		return err
	}

	fmt.Fprintln(out, "Validation passed")
	if ds.Metadata.Incomplete {
		fmt.Fprintf(out, "Extraction was interrupted; pending terms: %s\n", strings.Join(ds.Metadata.PendingTerms, ", "))
	}
	observability.NewPrinter(out).PrintDatasetStats(ds)
	return nil
}
