package solr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/roach88/marcq/internal/lucene"
)

// DefaultDismaxHandler is used when a spec names no dismax handler.
const DefaultDismaxHandler = "dismax"

// Param is one name/value pair of DismaxParams.
type Param struct {
	Name  string `mapstructure:"name"`
	Value string `mapstructure:"value"`
}

// Munge selects a munge value for a field, with an optional boost.
type Munge struct {
	Name   string  `mapstructure:"name"`
	Weight float64 `mapstructure:"weight"`
}

// QueryField is one clause of a handler's Lucene query template. A clause
// either names a Field with its Munges, or groups nested clauses joined by
// Join.
type QueryField struct {
	Field  string       `mapstructure:"field"`
	Munges []Munge      `mapstructure:"munges"`
	Join   string       `mapstructure:"join"`
	Weight float64      `mapstructure:"weight"`
	Group  []QueryField `mapstructure:"group"`
}

// MungeOp is one step of a custom munge: append, lowercase, uppercase or
// preg_replace.
type MungeOp struct {
	Op   string   `mapstructure:"op"`
	Args []string `mapstructure:"args"`
}

// HandlerSpec configures one search handler.
type HandlerSpec struct {
	DismaxFields  []string             `mapstructure:"dismax_fields"`
	DismaxHandler string               `mapstructure:"dismax_handler"`
	DismaxParams  []Param              `mapstructure:"dismax_params"`
	QueryFields   []QueryField         `mapstructure:"query_fields"`
	FilterQuery   string               `mapstructure:"filter_query"`
	CustomMunge   map[string][]MungeOp `mapstructure:"custom_munge"`
	// ExactSettings replaces the spec for quoted searches.
	ExactSettings *HandlerSpec `mapstructure:"exact_settings"`
}

var builtinMunges = map[string]bool{"onephrase": true, "and": true, "or": true, "identity": true}

type mungeStep struct {
	op   string
	arg  string
	re   *regexp2.Regexp
	repl string
}

// SearchHandler turns a search string into the query for one handler.
type SearchHandler struct {
	spec   HandlerSpec
	munges map[string][]mungeStep
}

// NewSearchHandler validates spec. Dismax specs without an mm parameter get
// mm=100% (dismax) or mm=0% (edismax).
func NewSearchHandler(spec HandlerSpec, defaultDismaxHandler string) (*SearchHandler, error) {
	if spec.DismaxHandler == "" {
		spec.DismaxHandler = defaultDismaxHandler
	}
	if spec.DismaxHandler == "" {
		spec.DismaxHandler = DefaultDismaxHandler
	}
	spec.DismaxParams = append([]Param(nil), spec.DismaxParams...)
	spec.ExactSettings = nil

	h := &SearchHandler{spec: spec, munges: make(map[string][]mungeStep)}
	if h.HasDismax() && !hasParam(spec.DismaxParams, "mm") {
		mm := "100%"
		if h.HasExtendedDismax() {
			mm = "0%"
		}
		h.spec.DismaxParams = append(h.spec.DismaxParams, Param{Name: "mm", Value: mm})
	}

	for name, ops := range spec.CustomMunge {
		steps, err := compileMunge(ops)
		if err != nil {
			return nil, fmt.Errorf("custom munge %s: %w", name, err)
		}
		h.munges[name] = steps
	}
	if err := h.checkMunges(spec.QueryFields); err != nil {
		return nil, err
	}
	return h, nil
}

func hasParam(params []Param, name string) bool {
	for _, p := range params {
		if p.Name == name {
			return true
		}
	}
	return false
}

func compileMunge(ops []MungeOp) ([]mungeStep, error) {
	steps := make([]mungeStep, 0, len(ops))
	for _, op := range ops {
		step := mungeStep{op: op.Op}
		switch op.Op {
		case "lowercase", "uppercase":
		case "append":
			if len(op.Args) != 1 {
				return nil, fmt.Errorf("append takes 1 argument, got %d", len(op.Args))
			}
			step.arg = op.Args[0]
		case "preg_replace":
			if len(op.Args) != 2 {
				return nil, fmt.Errorf("preg_replace takes 2 arguments, got %d", len(op.Args))
			}
			re, err := lucene.CompilePattern(op.Args[0])
			if err != nil {
				return nil, err
			}
			step.re, step.repl = re, op.Args[1]
		default:
			return nil, fmt.Errorf("unknown munge operation %q", op.Op)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (h *SearchHandler) checkMunges(fields []QueryField) error {
	for _, qf := range fields {
		if qf.Field == "" {
			if err := h.checkMunges(qf.Group); err != nil {
				return err
			}
			continue
		}
		for _, m := range qf.Munges {
			if _, ok := h.munges[m.Name]; !ok && !builtinMunges[m.Name] {
				return fmt.Errorf("query field %s: unknown munge %q", qf.Field, m.Name)
			}
		}
	}
	return nil
}

// CreateAdvancedQueryString builds the query for a string using Lucene
// syntax. Only edismax handlers wrap it in a dismax subquery.
func (h *SearchHandler) CreateAdvancedQueryString(s string) string {
	return h.createQueryString(s, true)
}

// CreateSimpleQueryString builds the query for a plain string.
func (h *SearchHandler) CreateSimpleQueryString(s string) string {
	return h.createQueryString(s, false)
}

// CreateBoostQueryString adds the bq and bf dismax parameters to s as
// optional clauses, so a Lucene query gets the same boosts.
func (h *SearchHandler) CreateBoostQueryString(s string) string {
	if !h.HasDismax() {
		return s
	}
	var boosts []string
	for _, p := range h.spec.DismaxParams {
		switch p.Name {
		case "bq":
			boosts = append(boosts, p.Value)
		case "bf":
			for _, fn := range strings.Split(p.Value, " ") {
				if fn == "" {
					continue
				}
				parts := strings.SplitN(fn, "^", 2)
				clause := `_val_:"` + strings.ReplaceAll(parts[0], `"`, `\"`) + `"`
				if len(parts) == 2 {
					clause += "^" + parts[1]
				}
				boosts = append(boosts, clause)
			}
		}
	}
	if len(boosts) == 0 {
		return s
	}
	return fmt.Sprintf("(%s) AND (*:* OR %s)", s, strings.Join(boosts, " OR "))
}

// HasDismax reports whether the handler has dismax fields.
func (h *SearchHandler) HasDismax() bool { return len(h.spec.DismaxFields) > 0 }

// HasExtendedDismax reports whether the handler uses edismax.
func (h *SearchHandler) HasExtendedDismax() bool {
	return h.HasDismax() && h.spec.DismaxHandler == "edismax"
}

// HasFilterQuery reports whether the handler has a filter query.
func (h *SearchHandler) HasFilterQuery() bool { return h.spec.FilterQuery != "" }

func (h *SearchHandler) DismaxHandler() string  { return h.spec.DismaxHandler }
func (h *SearchHandler) DismaxFields() []string { return h.spec.DismaxFields }
func (h *SearchHandler) DismaxParams() []Param  { return h.spec.DismaxParams }
func (h *SearchHandler) FilterQuery() string    { return h.spec.FilterQuery }

// Spec returns the effective spec, including defaults.
func (h *SearchHandler) Spec() HandlerSpec { return h.spec }

func (h *SearchHandler) createQueryString(s string, advanced bool) string {
	var q string
	switch {
	case (h.HasExtendedDismax() || !advanced) && h.HasDismax():
		q = h.dismaxSubquery(s)
	case len(h.spec.QueryFields) > 0:
		q = h.munge(h.spec.QueryFields, h.mungeValues(s, !advanced), "OR")
	default:
		q = s
	}
	if h.HasFilterQuery() {
		q = fmt.Sprintf("(%s) AND (%s)", q, h.spec.FilterQuery)
	}
	return "(" + q + ")"
}

func (h *SearchHandler) dismaxSubquery(s string) string {
	params := make([]string, 0, len(h.spec.DismaxParams))
	for _, p := range h.spec.DismaxParams {
		params = append(params, fmt.Sprintf("%s='%s'", p.Name, strings.ReplaceAll(p.Value, "'", `\'`)))
	}
	q := fmt.Sprintf(`{!%s qf="%s" %s}%s`,
		h.spec.DismaxHandler,
		strings.Join(h.spec.DismaxFields, " "),
		strings.Join(params, " "),
		s)
	return `_query_:"` + addSlashes(q) + `"`
}

var slashEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, `"`, `\"`, "\x00", `\0`)

func addSlashes(s string) string { return slashEscaper.Replace(s) }

func (h *SearchHandler) mungeValues(s string, split bool) map[string]string {
	values := map[string]string{"identity": s}
	if split {
		tokens := tokenize(s)
		values["onephrase"] = `"` + strings.ReplaceAll(strings.Join(tokens, " "), `"`, "") + `"`
		values["and"] = strings.Join(tokens, " AND ")
		values["or"] = strings.Join(tokens, " OR ")
	} else {
		// Probably advanced syntax; quote the phrase only when that cannot
		// break a NOT, an existing phrase or a wildcard term.
		values["and"], values["or"], values["onephrase"] = s, s, s
		if !strings.Contains(s, `"`) && !strings.Contains(s, " NOT ") &&
			strings.IndexFunc(s, isSpace) >= 0 {
			values["onephrase"] = `"` + s + `"`
		}
	}

	for name, steps := range h.munges {
		v := s
		for _, step := range steps {
			switch step.op {
			case "append":
				v += step.arg
			case "lowercase":
				v = strings.ToLower(v)
			case "uppercase":
				v = strings.ToUpper(v)
			case "preg_replace":
				if out, err := step.re.Replace(v, step.repl, -1, -1); err == nil {
					v = out
				}
			}
		}
		values[name] = v
	}
	return values
}

func (h *SearchHandler) munge(fields []QueryField, values map[string]string, joiner string) string {
	var clauses []string
	for _, qf := range fields {
		if qf.Field == "" {
			join := qf.Join
			if join == "" {
				join = "OR"
			}
			clause := "(" + h.munge(qf.Group, values, join) + ")"
			clauses = append(clauses, clause+weight(qf.Weight))
			continue
		}
		for _, m := range qf.Munges {
			clauses = append(clauses, qf.Field+":("+values[m.Name]+")"+weight(m.Weight))
		}
	}
	return strings.Join(clauses, " "+joiner+" ")
}

func weight(w float64) string {
	if w > 0 {
		return "^" + strconv.FormatFloat(w, 'f', -1, 64)
	}
	return ""
}

var (
	booleanOperators = map[string]bool{"AND": true, "OR": true, "NOT": true}
	phraseRe         = regexp2.MustCompile(`[^\s"]+|"([^"]*)"`, regexp2.None)
)

// tokenize splits s into words and quoted phrases, gluing boolean operators
// to the tokens around them. Escaped quotes stay inside their token.
func tokenize(s string) []string {
	const sub = "\x1a"
	s = strings.ReplaceAll(s, `\"`, sub)

	var phrases []string
	m, err := phraseRe.FindStringMatch(s)
	for err == nil && m != nil {
		phrases = append(phrases, strings.ReplaceAll(m.String(), sub, `\"`))
		m, err = phraseRe.FindNextMatch(m)
	}

	var tokens, token []string
	for i := 0; i < len(phrases); i++ {
		token = append(token, phrases[i])
		if i+1 < len(phrases) && booleanOperators[phrases[i+1]] {
			i++
			token = append(token, phrases[i])
			if i+1 == len(phrases) {
				tokens = append(tokens, strings.Join(token, " "))
			}
			continue
		}
		tokens = append(tokens, strings.Join(token, " "))
		token = nil
	}
	return tokens
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}
