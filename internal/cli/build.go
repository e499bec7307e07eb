package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/marcq/internal/lucene"
	"github.com/roach88/marcq/internal/query"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Handler      string
	QueryFile    string
	Encode       bool
	Highlighting bool
	Spelling     bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build [search string]...",
		Short: "Build Solr parameters for a query",
		Long: `Build the Solr parameters for a single search string or for a query tree
read from a YAML document (--query-file, "-" for standard input):

  operator: AND
  queries:
    - string: kivi
      handler: Author
    - operator: NOT
      queries:
        - string: runot
          handler: Subject

Search handlers come from the search_specs section of the config file.

Example:
  marcq build --handler Title 'seitsemän veljestä'
  marcq build --query-file advanced.yaml --encode`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Handler, "handler", "", "search handler for a single search string")
	cmd.Flags().StringVarP(&opts.QueryFile, "query-file", "q", "", "YAML query document")
	cmd.Flags().BoolVar(&opts.Encode, "encode", false, "print a URL-encoded query string")
	cmd.Flags().BoolVar(&opts.Highlighting, "highlighting", false, "add hl.q (overrides config)")
	cmd.Flags().BoolVar(&opts.Spelling, "spelling", true, "add spellcheck.q (overrides config)")

	return cmd
}

func runBuild(opts *BuildOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	node, err := readQuery(opts, args, cmd.InOrStdin())
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return failFile(formatter, opts.QueryFile, err)
		}
		return formatter.Fail(ExitCommandError, ErrCodeQueryInvalid, err, nil)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err, nil)
	}
	if cmd.Flags().Changed("highlighting") {
		cfg.Builder.HighlightingQuery = opts.Highlighting
	}
	if cmd.Flags().Changed("spelling") {
		cfg.Builder.SpellingQuery = opts.Spelling
	}

	builder, err := cfg.NewQueryBuilder(opts.logger())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err, nil)
	}

	params, err := builder.Build(node)
	if err != nil {
		if lucene.IsFilterError(err) {
			return formatter.Fail(ExitFailure, ErrCodeQueryRejected, err, nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeQueryInvalid, err, nil)
	}

	switch {
	case formatter.Format == "json":
		return formatter.Success(params.Values())
	case opts.Encode:
		fmt.Fprintln(formatter.Writer, params.Encode())
	default:
		for _, name := range params.Names() {
			for _, v := range params.Get(name) {
				fmt.Fprintf(formatter.Writer, "%s=%s\n", name, v)
			}
		}
	}
	return nil
}

var (
	errNoQuery   = errors.New("no search string or --query-file given")
	errBothQuery = errors.New("a search string and --query-file are exclusive")
)

// readQuery returns the query tree from --query-file or the arguments.
func readQuery(opts *BuildOptions, args []string, stdin io.Reader) (query.Node, error) {
	if opts.QueryFile == "" {
		if len(args) == 0 {
			return nil, errNoQuery
		}
		return query.New(strings.Join(args, " "), opts.Handler), nil
	}
	if len(args) > 0 {
		return nil, errBothQuery
	}

	var (
		data []byte
		err  error
	)
	if opts.QueryFile == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(opts.QueryFile)
	}
	if err != nil {
		return nil, err
	}
	return query.ParseDocument(data)
}
