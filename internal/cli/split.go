package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/marcq/internal/serialization"
)

// SplitOptions holds flags for the split command.
type SplitOptions struct {
	*RootOptions
	OutputDir string
	To        string
}

// NewSplitCommand creates the split command.
func NewSplitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SplitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Split a collection into one file per record",
		Long: `Write every record of a collection to its own numbered file.

Records keep their source serialization unless --to is given.

Example:
  marcq split -o records/ export.xml
  marcq split -o records/ --to json export.mrc.gz`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSplit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", "", "directory for record files (required)")
	cmd.Flags().StringVarP(&opts.To, "to", "t", "", "serialization of the record files (default: source)")
	_ = cmd.MarkFlagRequired("output-dir")

	return cmd
}

type splitResult struct {
	File      string   `json:"file"`
	Format    string   `json:"format"`
	OutputDir string   `json:"output_dir"`
	Written   []string `json:"written"`
	Skipped   int      `json:"skipped"`
}

func runSplit(opts *SplitOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	to := serialization.Unknown
	if opts.To != "" {
		var err error
		if to, err = serialization.ParseFormat(opts.To); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeUsage, err, nil)
		}
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}

	res := splitResult{File: file, OutputDir: opts.OutputDir, Written: []string{}}
	from, err := eachRecord(cmd.Context(), file, func(item recordItem) error {
		logDiagnostics(logger, file, item)

		if item.Err != nil {
			logger.Warn("skipping record", "file", file, "record", item.Index, "error", item.Err)
			res.Skipped++
			return nil
		}

		target, data := serialization.Detect(item.Raw), item.Raw
		if to != serialization.Unknown && to != target {
			var err error
			if data, err = serialization.Marshal(item.Record, to); err != nil {
				return fmt.Errorf("record %d: %w", item.Index, err)
			}
			target = to
		}

		name := filepath.Join(opts.OutputDir, fmt.Sprintf("%06d%s", item.Index+1, extensions[target]))
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return err
		}
		res.Written = append(res.Written, name)
		return nil
	})
	res.Format = from.String()
	if err != nil {
		return failFile(formatter, file, err)
	}

	if formatter.Format == "json" {
		return formatter.Success(res)
	}
	fmt.Fprintf(formatter.Writer, "✓ Split %d %s record(s) into %s", len(res.Written), res.Format, res.OutputDir)
	if res.Skipped > 0 {
		fmt.Fprintf(formatter.Writer, " (%d skipped)", res.Skipped)
	}
	fmt.Fprintln(formatter.Writer)
	return nil
}
