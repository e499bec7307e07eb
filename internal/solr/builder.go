package solr

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/roach88/marcq/internal/lucene"
	"github.com/roach88/marcq/internal/query"
)

// QueryBuilder reduces query trees to Solr parameters.
//
// Handler names are case-insensitive. A QueryBuilder is safe for
// concurrent Build calls once configured.
type QueryBuilder struct {
	specs                map[string]*SearchHandler
	exactSpecs           map[string]*SearchHandler
	normalizer           *lucene.Normalizer
	defaultDismaxHandler string
	highlighting         bool
	spelling             bool
	logger               *slog.Logger
}

// Option configures a QueryBuilder.
type Option func(*QueryBuilder)

// WithDefaultDismaxHandler sets the dismax handler for specs that name none.
func WithDefaultDismaxHandler(name string) Option {
	return func(b *QueryBuilder) {
		b.defaultDismaxHandler = name
	}
}

// WithNormalizer replaces the default normalizer, which reproduces the
// plain SyntaxHelper (lucene.BaseConfig).
func WithNormalizer(n *lucene.Normalizer) Option {
	return func(b *QueryBuilder) {
		b.normalizer = n
	}
}

// WithHighlightingQuery enables hl.q when a boost query changes q.
func WithHighlightingQuery(enable bool) Option {
	return func(b *QueryBuilder) {
		b.highlighting = enable
	}
}

// WithSpellingQuery enables spellcheck.q.
func WithSpellingQuery(enable bool) Option {
	return func(b *QueryBuilder) {
		b.spelling = enable
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *QueryBuilder) {
		b.logger = l
	}
}

// NewQueryBuilder creates a builder for the given handler specs.
func NewQueryBuilder(specs map[string]HandlerSpec, opts ...Option) (*QueryBuilder, error) {
	b := &QueryBuilder{
		specs:                make(map[string]*SearchHandler),
		exactSpecs:           make(map[string]*SearchHandler),
		defaultDismaxHandler: DefaultDismaxHandler,
		logger:               slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.normalizer == nil {
		n, err := lucene.NewNormalizer(lucene.BaseConfig(), lucene.WithLogger(b.logger))
		if err != nil {
			return nil, err
		}
		b.normalizer = n
	}

	for name, spec := range specs {
		key := strings.ToLower(name)
		if spec.ExactSettings != nil {
			h, err := NewSearchHandler(*spec.ExactSettings, b.defaultDismaxHandler)
			if err != nil {
				return nil, fmt.Errorf("handler %s exact settings: %w", name, err)
			}
			b.exactSpecs[key] = h
		}
		h, err := NewSearchHandler(spec, b.defaultDismaxHandler)
		if err != nil {
			return nil, fmt.Errorf("handler %s: %w", name, err)
		}
		b.specs[key] = h
	}
	return b, nil
}

// SetHighlightingQuery toggles hl.q.
func (b *QueryBuilder) SetHighlightingQuery(enable bool) { b.highlighting = enable }

// SetSpellingQuery toggles spellcheck.q.
func (b *QueryBuilder) SetSpellingQuery(enable bool) { b.spelling = enable }

// Normalizer returns the normalizer used for every leaf.
func (b *QueryBuilder) Normalizer() *lucene.Normalizer { return b.normalizer }

// Build reduces node to Solr parameters. node is not modified.
//
// The result always has q. Dismax handlers add qf, qt, their dismax
// parameters and fq; spellcheck.q and hl.q are added when enabled.
func (b *QueryBuilder) Build(node query.Node) (*ParamBag, error) {
	if node == nil {
		return nil, errors.New("build query: nil node")
	}
	params := NewParamBag()

	// before the main query, so it carries no added syntax
	if b.spelling {
		params.Set("spellcheck.q", b.normalizer.SpellcheckTerms(node.AllTerms()))
	}

	var s, handlerName string
	switch n := node.(type) {
	case *query.Group:
		reduced, err := b.reduce(n)
		if err != nil {
			return nil, err
		}
		s, handlerName = reduced, n.ReducedHandler()
	case *query.Query:
		normalized, err := b.normalizeLeaf(n.String)
		if err != nil {
			return nil, err
		}
		s, handlerName = normalized, n.Handler
	default:
		return nil, fmt.Errorf("build query: unsupported node %T", node)
	}
	if s == "" {
		s = "*:*"
	}

	if h := b.searchHandler(handlerName, s); h != nil {
		switch {
		case !h.HasExtendedDismax() && b.normalizer.ContainsAdvancedLuceneSyntax(s):
			s = b.advancedInnerSearchString(s, h)
			if h.HasDismax() {
				unboosted := s
				s = h.CreateBoostQueryString(s)
				// highlight on the query without the boost clauses
				if b.highlighting && unboosted != s {
					params.Set("hl.q", unboosted)
				}
			}
		case h.HasDismax():
			// edismax misses the fix in advancedInnerSearchString
			s = FixTrailingQuestionMarks(s)
			params.Set("qf", strings.Join(h.DismaxFields(), " "))
			params.Set("qt", h.DismaxHandler())
			for _, p := range h.DismaxParams() {
				params.Add(p.Name, p.Value)
			}
			if h.HasFilterQuery() {
				params.Add("fq", h.FilterQuery())
			}
		default:
			s = h.CreateSimpleQueryString(s)
		}
	}
	params.Set("q", s)

	b.logger.Debug("built query", "handler", handlerName, "q", s)
	return params, nil
}

// normalizeLeaf runs term-level normalization and the minus-sign
// finalization every leaf gets, whether top-level or grouped.
func (b *QueryBuilder) normalizeLeaf(s string) (string, error) {
	normalized, err := b.normalizer.NormalizeSearchString(s)
	if err != nil {
		return "", err
	}
	return b.normalizer.FinalizeSearchString(normalized), nil
}

func (b *QueryBuilder) reduce(node query.Node) (string, error) {
	switch n := node.(type) {
	case *query.Group:
		parts := make([]string, 0, len(n.Queries()))
		for _, child := range n.Queries() {
			s, err := b.reduce(child)
			if err != nil {
				return "", err
			}
			if s != "" {
				parts = append(parts, s)
			}
		}
		if len(parts) == 0 {
			return "", nil
		}
		s := "(" + strings.Join(parts, " "+n.Operator().String()+" ") + ")"
		if n.IsNegated() {
			s = "NOT " + s
		}
		return s, nil
	case *query.Query:
		s, err := b.normalizeLeaf(n.String)
		if err != nil {
			return "", err
		}
		if h := b.searchHandler(n.Handler, s); h != nil && s != "" {
			s = b.searchString(s, h)
		}
		return s, nil
	default:
		return "", fmt.Errorf("reduce query: unsupported node %T", node)
	}
}

// searchHandler returns the handler for name, preferring exact settings for
// quoted strings.
func (b *QueryBuilder) searchHandler(name, s string) *SearchHandler {
	if name == "" {
		return nil
	}
	name = strings.ToLower(name)
	if h, ok := b.exactSpecs[name]; ok {
		s = strings.TrimSpace(s)
		if len(s) > 1 && s[0] == '"' && s[len(s)-1] == '"' {
			return h
		}
	}
	return b.specs[name]
}

func (b *QueryBuilder) searchString(s string, h *SearchHandler) string {
	if b.normalizer.ContainsAdvancedLuceneSyntax(s) {
		return h.CreateAdvancedQueryString(FixTrailingQuestionMarks(s))
	}
	return h.CreateSimpleQueryString(s)
}

func (b *QueryBuilder) advancedInnerSearchString(s string, h *SearchHandler) string {
	// all records, restricted by the handler's filter
	if strings.TrimSpace(s) == "*:*" && h.HasFilterQuery() {
		return h.FilterQuery()
	}

	s = FixTrailingQuestionMarks(s)

	// Field-specific queries cannot be applied to the handler's fields.
	if strings.Contains(s, ":") {
		return s
	}
	return h.CreateAdvancedQueryString(s)
}

var (
	multiwordRe        = regexp2.MustCompile(`[^\s]\s+[^\s]`, regexp2.None)
	trailingQuestionRe = regexp2.MustCompile(`(^|\s|:|\()([^\s:()]+\?)(?=\s|$)`+lucene.UnquotedLookahead, regexp2.None)
)

// FixTrailingQuestionMarks rewrites every unquoted term ending in ? as
// (term?) OR (term\?), so it matches both the wildcard and a literal
// question mark. The pair is parenthesized again in a multi-word query or
// after a field colon.
func FixTrailingQuestionMarks(s string) string {
	multiword, _ := multiwordRe.MatchString(s)
	out, err := trailingQuestionRe.ReplaceFunc(s, func(m regexp2.Match) string {
		prefix := m.GroupByNumber(1).String()
		term := m.GroupByNumber(2).String()
		escaped := strings.ReplaceAll(strings.ReplaceAll(term, `\?`, "?"), "?", `\?`)
		fixed := "(" + term + ") OR (" + escaped + ")"
		if multiword || prefix == ":" {
			fixed = "(" + fixed + ")"
		}
		return prefix + fixed
	}, -1, -1)
	if err != nil {
		return s
	}
	return strings.TrimRight(out, " \t\n\r\x00\x0b")
}
