package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/marcq/internal/serialization"
)

// NewDetectCommand creates the detect command.
func NewDetectCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "detect <file>...",
		Short: "Detect the serialization of collection files",
		Long: `Report whether each file holds ISO 2709, MARCXML or MARC-in-JSON.
Compressed files (.gz, .zst) are decompressed before detection.

Exits with status 1 when any file is not recognized.

Example:
  marcq detect records.mrc export.xml.gz`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(rootOpts, args, cmd)
		},
	}
}

type detectResult struct {
	File   string `json:"file"`
	Format string `json:"format"`
}

func runDetect(opts *RootOptions, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	results := make([]detectResult, 0, len(files))
	unknown := 0
	for _, file := range files {
		f, err := serialization.Sniff(serialization.OpenFile(file))
		if err != nil {
			return failFile(formatter, file, err)
		}
		if f == serialization.Unknown {
			unknown++
		}
		results = append(results, detectResult{File: file, Format: f.String()})
	}

	if formatter.Format == "json" {
		if err := formatter.Success(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			fmt.Fprintf(formatter.Writer, "%s\t%s\n", r.File, r.Format)
		}
	}

	if unknown > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) not recognized", unknown))
	}
	return nil
}
