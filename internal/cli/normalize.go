package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/marcq/internal/lucene"
)

// NewNormalizeCommand creates the normalize command.
func NewNormalizeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <search string>...",
		Short: "Normalize a user search string",
		Long: `Run a search string through the configured normalizer and print the
Solr-safe result. Arguments are joined with single spaces.

Exits with status 1 when a search filter rejects the string.

Example:
  marcq normalize 'moby dick and ( whale'
  marcq normalize --format json '"fancy quotes" title:[a to z]'`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNormalize(rootOpts, strings.Join(args, " "), cmd)
		},
	}
}

type normalizeResult struct {
	Input      string `json:"input"`
	Normalized string `json:"normalized"`
	Advanced   bool   `json:"advanced"`
	Spellcheck string `json:"spellcheck"`
}

func runNormalize(opts *RootOptions, input string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	cfg, err := opts.loadConfig()
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err, nil)
	}
	n, err := cfg.NewNormalizer(opts.logger())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeConfig, err, nil)
	}

	normalized, err := n.NormalizeSearchString(input)
	if err != nil {
		var fe *lucene.FilterError
		if errors.As(err, &fe) {
			return formatter.Fail(ExitFailure, ErrCodeQueryRejected, err, map[string]string{"filter": fe.Filter})
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, err, nil)
	}

	res := normalizeResult{
		Input:      input,
		Normalized: n.FinalizeSearchString(normalized),
		Advanced:   n.ContainsAdvancedLuceneSyntax(normalized),
		Spellcheck: n.SpellcheckTerms(normalized),
	}

	if formatter.Format == "json" {
		return formatter.Success(res)
	}
	fmt.Fprintln(formatter.Writer, res.Normalized)
	formatter.VerboseLog("advanced syntax: %t", res.Advanced)
	formatter.VerboseLog("spellcheck terms: %q", res.Spellcheck)
	return nil
}
