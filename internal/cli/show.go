package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/marcq/internal/marc"
)

// ShowOptions holds flags for the show command.
type ShowOptions struct {
	*RootOptions
	Index int
	Limit int
	Tags  []string
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShowOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "show <file>",
		Short: "Print records in a readable line format",
		Long: `Print the records of a collection one field per line:

  =LDR  00000cam a2200000 a 4500
  =001  123456
  =245  10$aSeitsemän veljestä /$cAleksis Kivi.

Blank indicators print as a backslash.

Example:
  marcq show records.mrc --index 3
  marcq show export.xml --tag 245 --tag 650`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Index, "index", "i", 0, "show only the record at this 1-based position")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "stop after this many records (0 = all)")
	cmd.Flags().StringSliceVar(&opts.Tags, "tag", nil, "show only these tags (repeatable)")

	return cmd
}

type subfieldView struct {
	Code  string `json:"code"`
	Value string `json:"value"`
}

type fieldView struct {
	Tag       string         `json:"tag"`
	Value     string         `json:"value,omitempty"`
	Ind1      string         `json:"ind1,omitempty"`
	Ind2      string         `json:"ind2,omitempty"`
	Subfields []subfieldView `json:"subfields,omitempty"`
}

type recordView struct {
	Index       int         `json:"index"`
	Leader      string      `json:"leader"`
	Fields      []fieldView `json:"fields"`
	Diagnostics []string    `json:"diagnostics,omitempty"`
}

// errStop ends a collection walk early.
var errStop = errors.New("stop")

func runShow(opts *ShowOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger()

	views := []recordView{}
	_, err := eachRecord(cmd.Context(), file, func(item recordItem) error {
		if opts.Index > 0 && item.Index+1 != opts.Index {
			if item.Index+1 > opts.Index {
				return errStop
			}
			return nil
		}
		logDiagnostics(logger, file, item)
		if item.Err != nil {
			return fmt.Errorf("record %d: %w", item.Index+1, item.Err)
		}

		views = append(views, newRecordView(item.Index+1, item.Record, item.Diags, opts.Tags))
		if opts.Limit > 0 && len(views) >= opts.Limit {
			return errStop
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return failFile(formatter, file, err)
	}
	if opts.Index > 0 && len(views) == 0 {
		return formatter.Fail(ExitFailure, ErrCodeNotFound,
			fmt.Errorf("%s has no record %d", file, opts.Index), nil)
	}

	if formatter.Format == "json" {
		return formatter.Success(views)
	}
	for i, v := range views {
		if i > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		writeMnemonic(formatter.Writer, v)
		for _, d := range v.Diagnostics {
			formatter.VerboseLog("record %d: %s", v.Index, d)
		}
	}
	return nil
}

func newRecordView(index int, rec *marc.Record, diags marc.Diagnostics, tags []string) recordView {
	v := recordView{Index: index, Leader: rec.Leader(), Fields: []fieldView{}}
	if len(diags) > 0 {
		v.Diagnostics = diags.Messages()
	}
	for _, f := range rec.Fields() {
		if len(tags) > 0 && !containsString(tags, f.Tag) {
			continue
		}
		fv := fieldView{Tag: f.Tag}
		if f.Control {
			fv.Value = f.Value
		} else {
			fv.Ind1, fv.Ind2 = f.Ind1, f.Ind2
			fv.Subfields = make([]subfieldView, len(f.Subfields))
			for i, sf := range f.Subfields {
				fv.Subfields[i] = subfieldView{Code: sf.Code, Value: sf.Value}
			}
		}
		v.Fields = append(v.Fields, fv)
	}
	return v
}

func writeMnemonic(w io.Writer, v recordView) {
	fmt.Fprintf(w, "=LDR  %s\n", v.Leader)
	for _, f := range v.Fields {
		if f.Subfields == nil {
			fmt.Fprintf(w, "=%s  %s\n", f.Tag, f.Value)
			continue
		}
		var b strings.Builder
		b.WriteString(mnemonicIndicator(f.Ind1))
		b.WriteString(mnemonicIndicator(f.Ind2))
		for _, sf := range f.Subfields {
			b.WriteString("$" + sf.Code + sf.Value)
		}
		fmt.Fprintf(w, "=%s  %s\n", f.Tag, b.String())
	}
}

func mnemonicIndicator(ind string) string {
	if ind == "" || ind == " " {
		return `\`
	}
	return ind
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
