package lucene

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/unicode/norm"
)

// DefaultMaxSpellcheckWords is the word ceiling for spelling suggestions.
const DefaultMaxSpellcheckWords = 5

// Config controls a Normalizer.
type Config struct {
	// CaseSensitiveBooleans is "true", "false", "1", "0" or a
	// comma-separated list of the operators that stay case-sensitive.
	CaseSensitiveBooleans string `mapstructure:"case_sensitive_booleans"`
	CaseSensitiveRanges   bool   `mapstructure:"case_sensitive_ranges"`

	// UnicodeNormalizationForm is NFC, NFD, NFKC, NFKD, or empty/none to
	// skip Unicode normalization.
	UnicodeNormalizationForm string `mapstructure:"unicode_normalization_form"`

	// SearchFilters reject matching queries. Each entry is /pattern/flags
	// or a bare pattern.
	SearchFilters []string `mapstructure:"search_filters"`

	// MaxSpellcheckWords limits SpellcheckTerms; zero or less is unlimited.
	MaxSpellcheckWords int `mapstructure:"max_spellcheck_words"`

	// Wildcards is the wildcard mode; empty means strip.
	Wildcards WildcardMode `mapstructure:"wildcards"`
}

// DefaultConfig returns the extended pipeline defaults.
func DefaultConfig() Config {
	return Config{
		CaseSensitiveBooleans:    "true",
		CaseSensitiveRanges:      true,
		UnicodeNormalizationForm: "NFKC",
		MaxSpellcheckWords:       DefaultMaxSpellcheckWords,
		Wildcards:                WildcardsStrip,
	}
}

// BaseConfig returns settings that reproduce the plain SyntaxHelper: no
// Unicode normalization, no spelling ceiling, leading wildcards only.
func BaseConfig() Config {
	return Config{
		CaseSensitiveBooleans: "true",
		CaseSensitiveRanges:   true,
		Wildcards:             WildcardsLeading,
	}
}

// FilterError is returned when a query matches a configured search filter.
type FilterError struct {
	Filter string
	Query  string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("query %q rejected by search filter %s", e.Query, e.Filter)
}

// IsFilterError reports whether err is a FilterError.
func IsFilterError(err error) bool {
	var fe *FilterError
	return errors.As(err, &fe)
}

type searchFilter struct {
	expr string
	re   *regexp2.Regexp
}

// Normalizer runs the extended normalization pipeline.
type Normalizer struct {
	helper   *SyntaxHelper
	form     norm.Form
	hasForm  bool
	filters  []searchFilter
	maxWords int
	logger   *slog.Logger
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithLogger sets the logger used for rejected queries and ISBN rewrites.
func WithLogger(l *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = l
	}
}

// NewNormalizer validates cfg and compiles its filters.
func NewNormalizer(cfg Config, opts ...Option) (*Normalizer, error) {
	n := &Normalizer{
		helper:   NewSyntaxHelper(cfg.CaseSensitiveBooleans, cfg.CaseSensitiveRanges),
		maxWords: cfg.MaxSpellcheckWords,
		logger:   slog.Default(),
	}

	switch WildcardMode(strings.ToLower(string(cfg.Wildcards))) {
	case "", WildcardsStrip:
		n.helper.wildcards = WildcardsStrip
	case WildcardsLeading:
		n.helper.wildcards = WildcardsLeading
	default:
		return nil, fmt.Errorf("unknown wildcard mode %q", cfg.Wildcards)
	}

	n.hasForm = true
	switch strings.ToUpper(strings.TrimSpace(cfg.UnicodeNormalizationForm)) {
	case "NFC":
		n.form = norm.NFC
	case "NFD":
		n.form = norm.NFD
	case "NFKC":
		n.form = norm.NFKC
	case "NFKD":
		n.form = norm.NFKD
	case "", "NONE":
		n.hasForm = false
	default:
		return nil, fmt.Errorf("unknown unicode normalization form %q", cfg.UnicodeNormalizationForm)
	}

	for _, expr := range cfg.SearchFilters {
		re, err := CompilePattern(expr)
		if err != nil {
			return nil, fmt.Errorf("search filter: %w", err)
		}
		n.filters = append(n.filters, searchFilter{expr: expr, re: re})
	}

	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Helper returns the underlying SyntaxHelper.
func (n *Normalizer) Helper() *SyntaxHelper { return n.helper }

// NormalizeSearchString applies base normalization, Unicode normalization
// and ISBN conversion, then checks the search filters in order.
func (n *Normalizer) NormalizeSearchString(s string) (string, error) {
	s = n.helper.NormalizeSearchString(s)
	if n.hasForm {
		s = n.form.String(s)
	}
	if isbn, ok := ISBN10To13(s); ok {
		n.logger.Debug("converted ISBN-10", "from", s, "to", isbn)
		s = isbn
	}
	for _, f := range n.filters {
		if matches(f.re, s) {
			n.logger.Warn("query rejected", "filter", f.expr, "query", s)
			return "", &FilterError{Filter: f.expr, Query: s}
		}
	}
	return s, nil
}

// ContainsAdvancedLuceneSyntax delegates to the helper.
func (n *Normalizer) ContainsAdvancedLuceneSyntax(s string) bool {
	return n.helper.ContainsAdvancedLuceneSyntax(s)
}

// FinalizeSearchString escapes unquoted minus signs that follow whitespace
// or start the string, so a hyphenated term cannot negate a field. "!-" in
// the same position is the explicit negation marker and collapses to "-".
// A minus inside a word, inside quotes or already escaped is untouched.
func (n *Normalizer) FinalizeSearchString(s string) string {
	out := make([]rune, 0, len(s)+4)
	inQuotes := false
	var prev, prev2 rune
	atBoundary := func(r rune) bool { return r == 0 || unicode.IsSpace(r) }

	for _, r := range s {
		switch {
		case r == '"' && prev != '\\':
			inQuotes = !inQuotes
			out = append(out, r)
		case r == '-' && !inQuotes && prev == '!' && atBoundary(prev2):
			out[len(out)-1] = '-'
		case r == '-' && !inQuotes && atBoundary(prev):
			out = append(out, '\\', '-')
		default:
			out = append(out, r)
		}
		prev2, prev = prev, r
	}
	return string(out)
}

// SpellcheckTerms returns the plain terms of query, or "" when there are
// more words than the configured ceiling.
func (n *Normalizer) SpellcheckTerms(query string) string {
	terms := n.helper.ExtractSearchTerms(query)
	if n.maxWords > 0 && len(strings.Fields(terms)) > n.maxWords {
		return ""
	}
	return terms
}
