package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/marcq/internal/serialization"
	"github.com/roach88/marcq/internal/store"
)

// CacheOptions holds flags shared by the cache subcommands.
type CacheOptions struct {
	*RootOptions
	Database string
	Source   string
}

// NewCacheCommand creates the cache command and its subcommands.
func NewCacheCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CacheOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local record cache",
		Long: `Store, fetch and list records in the local SQLite record cache.

Records are keyed by source and record id (the 001 control number). The
database defaults to cache.path from the config file, then to
$XDG_CACHE_HOME/marcq/records.db.`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the cache database (overrides config)")
	cmd.PersistentFlags().StringVarP(&opts.Source, "source", "s", "default", "record source")

	cmd.AddCommand(newCachePutCommand(opts))
	cmd.AddCommand(newCacheGetCommand(opts))
	cmd.AddCommand(newCacheListCommand(opts))
	cmd.AddCommand(newCacheDeleteCommand(opts))

	return cmd
}

// openStore opens the cache named by --db or the config.
func (o *CacheOptions) openStore() (*store.Store, error) {
	path := o.Database
	if path == "" {
		cfg, err := o.loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.Cache.Path
	}
	o.logger().Debug("opening record cache", "path", path)
	return store.Open(path)
}

// withStore runs fn against an open cache and closes it afterwards.
func (o *CacheOptions) withStore(formatter *OutputFormatter, fn func(*store.Store) error) error {
	s, err := o.openStore()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeCache, err, nil)
	}
	defer func() {
		if closeErr := s.Close(); closeErr != nil {
			o.logger().Error("error closing record cache", "error", closeErr)
		}
	}()
	return fn(s)
}

func newCachePutCommand(opts *CacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "put <file>...",
		Short: "Store every record of the given collections",
		Long: `Store every record of the given collections under --source. A record
already cached with the same id is replaced. Records without a 001 field
are skipped.

Example:
  marcq cache put --source fennica export.xml.gz`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCachePut(opts, args, cmd)
		},
	}
}

type cachePutResult struct {
	Source  string `json:"source"`
	Stored  int    `json:"stored"`
	Skipped int    `json:"skipped"`
}

func runCachePut(opts *CacheOptions, files []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	res := cachePutResult{Source: opts.Source}
	err := opts.withStore(formatter, func(s *store.Store) error {
		for _, file := range files {
			_, err := eachRecord(cmd.Context(), file, func(item recordItem) error {
				logDiagnostics(logger, file, item)
				if item.Err != nil {
					logger.Warn("skipping record", "file", file, "record", item.Index, "error", item.Err)
					res.Skipped++
					return nil
				}
				if store.RecordID(item.Record) == "" {
					logger.Warn("skipping record without 001", "file", file, "record", item.Index)
					res.Skipped++
					return nil
				}
				if _, err := s.Put(cmd.Context(), opts.Source, "", item.Record, serialization.Detect(item.Raw)); err != nil {
					return &cacheError{err}
				}
				res.Stored++
				return nil
			})
			if err != nil {
				var ce *cacheError
				if errors.As(err, &ce) {
					return formatter.Fail(ExitCommandError, ErrCodeCache, ce.err, nil)
				}
				return failFile(formatter, file, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if formatter.Format == "json" {
		return formatter.Success(res)
	}
	fmt.Fprintf(formatter.Writer, "✓ Stored %d record(s) in %s", res.Stored, res.Source)
	if res.Skipped > 0 {
		fmt.Fprintf(formatter.Writer, " (%d skipped)", res.Skipped)
	}
	fmt.Fprintln(formatter.Writer)
	return nil
}

// cacheError marks a failure of the cache itself while reading a file.
type cacheError struct{ err error }

func (e *cacheError) Error() string { return e.err.Error() }
func (e *cacheError) Unwrap() error { return e.err }

func newCacheGetCommand(opts *CacheOptions) *cobra.Command {
	var to string
	cmd := &cobra.Command{
		Use:   "get <record-id>",
		Short: "Print a cached record",
		Long: `Print a cached record in its stored serialization, or in --to.

Example:
  marcq cache get --source fennica 123456 --to marcxml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheGet(opts, args[0], to, cmd)
		},
	}
	cmd.Flags().StringVarP(&to, "to", "t", "", "serialization to print (default: stored format)")
	return cmd
}

type cacheEntryView struct {
	ID        string      `json:"id"`
	Source    string      `json:"source"`
	RecordID  string      `json:"record_id"`
	Format    string      `json:"format"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	Record    *recordView `json:"record,omitempty"`
}

func newCacheEntryView(e store.Entry) cacheEntryView {
	return cacheEntryView{
		ID:        e.ID,
		Source:    e.Source,
		RecordID:  e.RecordID,
		Format:    e.Format.String(),
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func runCacheGet(opts *CacheOptions, recordID, to string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	target := serialization.Unknown
	if to != "" {
		var err error
		if target, err = serialization.ParseFormat(to); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeUsage, err, nil)
		}
	}

	return opts.withStore(formatter, func(s *store.Store) error {
		e, err := s.Get(cmd.Context(), opts.Source, recordID)
		if errors.Is(err, store.ErrNotFound) {
			return formatter.Fail(ExitFailure, ErrCodeNotFound, err, nil)
		}
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeCache, err, nil)
		}

		if formatter.Format == "json" {
			view := newCacheEntryView(e)
			rv := newRecordView(1, e.Record, nil, nil)
			view.Record = &rv
			return formatter.Success(view)
		}

		if target == serialization.Unknown {
			target = e.Format
		}
		data, err := serialization.Marshal(e.Record, target)
		if err != nil {
			return formatter.Fail(ExitFailure, ErrCodeInvalidRecord, err, nil)
		}
		_, err = formatter.Writer.Write(data)
		return err
	})
}

func newCacheListCommand(opts *CacheOptions) *cobra.Command {
	var (
		limit int
		all   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached records",
		Long: `List cached records of --source (or of every source with --all),
ordered by source and record id.

Example:
  marcq cache list --source fennica --limit 20`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			source := opts.Source
			if all {
				source = ""
			}
			return runCacheList(opts, source, limit, cmd)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of records (0 = all)")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "list every source")
	return cmd
}

type cacheListResult struct {
	Total   int              `json:"total"`
	Entries []cacheEntryView `json:"entries"`
}

func runCacheList(opts *CacheOptions, source string, limit int, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	return opts.withStore(formatter, func(s *store.Store) error {
		total, err := s.Count(cmd.Context(), source)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeCache, err, nil)
		}
		entries, err := s.List(cmd.Context(), source, limit)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeCache, err, nil)
		}

		res := cacheListResult{Total: total, Entries: make([]cacheEntryView, len(entries))}
		for i, e := range entries {
			res.Entries[i] = newCacheEntryView(e)
		}

		if formatter.Format == "json" {
			return formatter.Success(res)
		}
		if total == 0 {
			fmt.Fprintln(formatter.Writer, "No records cached.")
			return nil
		}
		tw := tabwriter.NewWriter(formatter.Writer, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SOURCE\tRECORD ID\tFORMAT\tUPDATED")
		for _, e := range res.Entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Source, e.RecordID, e.Format, e.UpdatedAt.Format(time.RFC3339))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		if len(entries) < total {
			fmt.Fprintf(formatter.Writer, "(%d of %d shown)\n", len(entries), total)
		}
		return nil
	})
}

func newCacheDeleteCommand(opts *CacheOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <record-id>...",
		Short:         "Remove records from the cache",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheDelete(opts, args, cmd)
		},
	}
}

func runCacheDelete(opts *CacheOptions, ids []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	return opts.withStore(formatter, func(s *store.Store) error {
		for _, id := range ids {
			err := s.Delete(cmd.Context(), opts.Source, id)
			if errors.Is(err, store.ErrNotFound) {
				return formatter.Fail(ExitFailure, ErrCodeNotFound, err, nil)
			}
			if err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeCache, err, nil)
			}
			formatter.VerboseLog("deleted %s/%s", opts.Source, id)
		}
		if formatter.Format == "json" {
			return formatter.Success(map[string]int{"deleted": len(ids)})
		}
		fmt.Fprintf(formatter.Writer, "✓ Deleted %d record(s) from %s\n", len(ids), opts.Source)
		return nil
	})
}
