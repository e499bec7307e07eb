package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/marcq/internal/serialization"
)

// ConvertOptions holds flags for the convert command.
type ConvertOptions struct {
	*RootOptions
	To        string
	OutputDir string
	Jobs      int
	Strict    bool
}

// NewConvertCommand creates the convert command.
func NewConvertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ConvertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "convert <file>...",
		Short: "Convert collections to another serialization",
		Long: `Convert one or more collection files to ISO 2709, MARCXML or MARC-in-JSON.

A single input without --output-dir is written to standard output. Several
inputs are converted concurrently into --output-dir, one output file per
input.

Records that cannot be decoded are skipped and counted. With --strict any
such record fails the command.

Example:
  marcq convert --to marcxml records.mrc > records.xml
  marcq convert --to json -o out/ a.mrc b.xml.gz c.json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(opts, args, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.To, "to", "t", "", "target format: iso2709, marcxml or marcjson (required)")
	cmd.Flags().StringVarP(&opts.OutputDir, "output-dir", "o", "", "directory for converted files")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", runtime.GOMAXPROCS(0), "files converted in parallel")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on records that cannot be decoded")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

type convertResult struct {
	File    string `json:"file"`
	Output  string `json:"output,omitempty"`
	From    string `json:"from"`
	To      string `json:"to"`
	Records int    `json:"records"`
	Skipped int    `json:"skipped"`
}

func runConvert(opts *ConvertOptions, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	to, err := serialization.ParseFormat(opts.To)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeUsage, err, nil)
	}

	if opts.OutputDir == "" {
		if len(files) > 1 {
			return formatter.Fail(ExitCommandError, ErrCodeUsage,
				fmt.Errorf("converting %d files requires --output-dir", len(files)), nil)
		}
		res, err := convertFile(cmd.Context(), logger, files[0], formatter.Writer, to, opts.Strict)
		if err != nil {
			return failFile(formatter, files[0], err)
		}
		formatter.VerboseLog("converted %d record(s) from %s, skipped %d", res.Records, res.From, res.Skipped)
		return nil
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}

	results := make([]convertResult, len(files))
	g, ctx := errgroup.WithContext(cmd.Context())
	if opts.Jobs > 0 {
		g.SetLimit(opts.Jobs)
	}
	for i, file := range files {
		g.Go(func() error {
			out := filepath.Join(opts.OutputDir, outputName(file, to))
			res, err := convertToFile(ctx, logger, file, out, to, opts.Strict)
			if err != nil {
				return &fileError{file: file, err: err}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		var fe *fileError
		if errors.As(err, &fe) {
			return failFile(formatter, fe.file, fe.err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(results)
	}
	for _, r := range results {
		fmt.Fprintf(formatter.Writer, "✓ %s → %s (%d record(s), %d skipped)\n", r.File, r.Output, r.Records, r.Skipped)
	}
	return nil
}

// fileError ties a conversion failure to its input file.
type fileError struct {
	file string
	err  error
}

func (e *fileError) Error() string { return e.file + ": " + e.err.Error() }
func (e *fileError) Unwrap() error { return e.err }

func convertToFile(ctx context.Context, logger *slog.Logger, in, out string, to serialization.Format, strict bool) (convertResult, error) {
	f, err := os.Create(out)
	if err != nil {
		return convertResult{}, err
	}
	res, err := convertFile(ctx, logger, in, f, to, strict)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(out)
		return convertResult{}, err
	}
	res.Output = out
	return res, nil
}

// convertFile streams the records of in to w as a collection in format to.
func convertFile(ctx context.Context, logger *slog.Logger, in string, w io.Writer, to serialization.Format, strict bool) (convertResult, error) {
	res := convertResult{File: in, To: to.String()}

	cw := newCollectionWriter(w, to)
	from, err := eachRecord(ctx, in, func(item recordItem) error {
		logDiagnostics(logger, in, item)
		if item.Err != nil {
			if strict {
				return fmt.Errorf("record %d: %w", item.Index, item.Err)
			}
			logger.Warn("skipping record", "file", in, "record", item.Index, "error", item.Err)
			res.Skipped++
			return nil
		}
		if err := cw.Write(item.Record); err != nil {
			return fmt.Errorf("record %d: %w", item.Index, err)
		}
		res.Records++
		return nil
	})
	res.From = from.String()
	if err != nil {
		return res, err
	}
	if err := cw.Close(); err != nil {
		return res, err
	}

	logger.Debug("converted file", "file", in, "from", res.From, "to", res.To, "records", res.Records, "skipped", res.Skipped)
	return res, nil
}
