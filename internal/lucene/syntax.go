package lucene

import (
	"strings"
	"unicode"

	"github.com/dlclark/regexp2"
)

var allBools = []string{"AND", "OR", "NOT"}

// phpSpace is the character set trimmed from both ends of intermediate
// strings.
const phpSpace = " \t\n\r\x00\x0b"

var (
	rangeRe     = regexp2.MustCompile(`(\[.+\s+TO\s+.+\])|(\{.+\s+TO\s+.+\})`, regexp2.None)
	rangeFoldRe = regexp2.MustCompile(`(\[.+\s+TO\s+.+\])|(\{.+\s+TO\s+.+\})`, regexp2.IgnoreCase)
	booleanRe   = regexp2.MustCompile(`((\s+(AND|OR|NOT)\s+)|^NOT\s+)`+UnquotedLookahead, regexp2.None)

	quotedPhraseRe = regexp2.MustCompile(`"[^"]*"`, regexp2.None)
	fieldSpecRe    = regexp2.MustCompile(`[^\s\\]:[^\s]`, regexp2.None)
	boostRe        = regexp2.MustCompile(`\^[0-9]+`, regexp2.None)

	capitalizeRes = map[string]*regexp2.Regexp{
		"AND": regexp2.MustCompile(`\s+AND\s+`+UnquotedLookahead, regexp2.IgnoreCase),
		"OR":  regexp2.MustCompile(`\s+OR\s+`+UnquotedLookahead, regexp2.IgnoreCase),
		"NOT": regexp2.MustCompile(`\s+NOT\s+`+UnquotedLookahead, regexp2.IgnoreCase),
	}
	parenNotRe = regexp2.MustCompile(`\(NOT\s+`+UnquotedLookahead, regexp2.IgnoreCase)

	capitalizeRangeRes = []*regexp2.Regexp{
		regexp2.MustCompile(`(\[)([^\]]+)\s+TO\s+([^\]]+)(\])`+UnquotedLookahead, regexp2.IgnoreCase),
		regexp2.MustCompile(`(\{)([^}]+)\s+TO\s+([^}]+)(\})`+UnquotedLookahead, regexp2.IgnoreCase),
	}
	timestampRe = regexp2.MustCompile(`[0-9]{4}-[0-9]{2}-[0-9]{2}t[0-9]{2}:[0-9]{2}:[0-9]{2}z`, regexp2.IgnoreCase)

	localParamsRe = regexp2.MustCompile(`\{!.+?\}`, regexp2.None)
	fuzzyRe       = regexp2.MustCompile(`~[^\s]*`, regexp2.None)
	boostSuffixRe = regexp2.MustCompile(`\^[^\s]*`, regexp2.None)

	caretRe      = regexp2.MustCompile(`\^`, regexp2.None)
	validBoostRe = regexp2.MustCompile(`[^^]+\^[0-9]`, regexp2.None)

	bracketRangeRes = [2][]*regexp2.Regexp{
		// case-sensitive
		{
			regexp2.MustCompile(`\[([^\[\]\s]+\s+TO\s+[^\[\]\s]+)\]`, regexp2.None),
			regexp2.MustCompile(`\{([^\{\}\s]+\s+TO\s+[^\{\}\s]+)\}`, regexp2.None),
		},
		// case-insensitive
		{
			regexp2.MustCompile(`\[([^\[\]\s]+\s+TO\s+[^\[\]\s]+)\]`, regexp2.IgnoreCase),
			regexp2.MustCompile(`\{([^\{\}\s]+\s+TO\s+[^\{\}\s]+)\}`, regexp2.IgnoreCase),
		},
	}
	strayBracketRe = regexp2.MustCompile(`(?<!\\)([\[\]\{\}])`, regexp2.None)
	bracketTokens  = strings.NewReplacer(
		"^^lbrack^^", "[", "^^rbrack^^", "]",
		"^^lbrace^^", "{", "^^rbrace^^", "}",
	)

	freeHyphenRe = regexp2.MustCompile(`(\s+[+-]+$|\s+[+-]+\s+|^[+-]+\s+)`+UnquotedLookahead, regexp2.None)
	freeSlashRe  = regexp2.MustCompile(`(\s+[\/]+\s+)`+UnquotedLookahead, regexp2.None)
	edgeSlashRe  = regexp2.MustCompile(`(\s+[\/]+$|^[\/]+\s+)`+UnquotedLookahead, regexp2.None)
	proxEndRe    = regexp2.MustCompile(`~1(\.0*)?$`, regexp2.None)
	proxRe       = regexp2.MustCompile(`~1(\.0*)?\s+`+UnquotedLookahead, regexp2.None)
	emptyParenRe = regexp2.MustCompile(`\(\s*\)`+UnquotedLookahead, regexp2.None)
	colonsRe     = regexp2.MustCompile(`:+`, regexp2.None)
	colonSpaceRe = regexp2.MustCompile(`(:[:\s]+|[:\s]+:)`+UnquotedLookahead, regexp2.None)

	// rangeSpanRe locates range expressions whose wildcards must survive
	// stripping.
	rangeSpanRe     = regexp2.MustCompile(`\[[^\[\]]+\s+TO\s+[^\[\]]+\]|\{[^{}]+\s+TO\s+[^{}]+\}`, regexp2.None)
	rangeSpanFoldRe = regexp2.MustCompile(`\[[^\[\]]+\s+TO\s+[^\[\]]+\]|\{[^{}]+\s+TO\s+[^{}]+\}`, regexp2.IgnoreCase)
	wildcardRunRe   = regexp2.MustCompile(`[*?]+`+UnquotedLookahead, regexp2.None)
)

var fancyQuotes = strings.NewReplacer(
	"«", `"`, "»", `"`,
	"‘", "'", "’", "'", "‚", "'", "‛", "'",
	"“", `"`, "”", `"`, "„", `"`, "‟", `"`,
	"‹", "'", "›", "'",
)

// WildcardMode selects how leading and trailing wildcards are handled.
type WildcardMode string

const (
	// WildcardsStrip removes leading and trailing * and ? from every term,
	// keeping range expressions, field:* and mid-term wildcards.
	WildcardsStrip WildcardMode = "strip"
	// WildcardsLeading drops a single wildcard at the very start of the
	// query and leaves everything else alone.
	WildcardsLeading WildcardMode = "leading"
)

// SyntaxHelper implements the base Lucene normalization rules.
type SyntaxHelper struct {
	boolsToCap []string
	csRanges   bool
	wildcards  WildcardMode
}

// NewSyntaxHelper creates a helper.
//
// caseSensitiveBooleans is "true" or "1" when booleans must be typed in
// upper case, "false" or "0" when any case is accepted, or a comma-separated
// list of the operators that stay case-sensitive. An empty string means
// "true".
func NewSyntaxHelper(caseSensitiveBooleans string, caseSensitiveRanges bool) *SyntaxHelper {
	return &SyntaxHelper{
		boolsToCap: boolsToCapitalize(caseSensitiveBooleans),
		csRanges:   caseSensitiveRanges,
		wildcards:  WildcardsLeading,
	}
}

func boolsToCapitalize(setting string) []string {
	switch strings.TrimSpace(setting) {
	case "false", "0":
		return allBools
	case "", "true", "1":
		return nil
	}
	sensitive := make(map[string]bool)
	for _, b := range strings.Split(setting, ",") {
		sensitive[strings.ToUpper(strings.TrimSpace(b))] = true
	}
	var out []string
	for _, b := range allBools {
		if !sensitive[b] {
			out = append(out, b)
		}
	}
	return out
}

// HasCaseSensitiveBooleans reports whether any operator must be typed in
// upper case to act as a boolean.
func (h *SyntaxHelper) HasCaseSensitiveBooleans() bool {
	return len(allBools) > len(h.boolsToCap)
}

// HasCaseSensitiveRanges reports whether the TO keyword is case-sensitive.
func (h *SyntaxHelper) HasCaseSensitiveRanges() bool { return h.csRanges }

// ContainsBooleans reports whether s uses AND, OR or NOT outside quotes.
func (h *SyntaxHelper) ContainsBooleans(s string) bool {
	return matches(booleanRe, h.CapitalizeCaseInsensitiveBooleans(s))
}

// ContainsRanges reports whether s contains a [a TO b] or {a TO b} range.
func (h *SyntaxHelper) ContainsRanges(s string) bool {
	if h.csRanges {
		return matches(rangeRe, s)
	}
	return matches(rangeFoldRe, s)
}

// ContainsAdvancedLuceneSyntax reports whether s needs the Lucene parser
// rather than a plain dismax query: field specifiers, parentheses, ranges,
// booleans, wildcards, fuzzy matches or boosts outside quoted phrases.
func (h *SyntaxHelper) ContainsAdvancedLuceneSyntax(s string) bool {
	if s == "*:*" {
		return true
	}

	// The dummy keyword keeps "title:"phrase"" looking like a field specifier.
	s = replace(quotedPhraseRe, s, "quoted")

	if matches(fieldSpecRe, s) {
		return true
	}

	stripped := strings.NewReplacer(`\(`, "", `\)`, "").Replace(s)
	if strings.Contains(stripped, "(") && strings.Contains(stripped, ")") {
		return true
	}

	if h.ContainsRanges(s) || h.ContainsBooleans(s) ||
		strings.ContainsAny(s, "*?~") {
		return true
	}

	return matches(boostRe, s)
}

// NormalizeSearchString repairs s so Solr can parse it, then capitalizes
// case-insensitive booleans and, when ranges are case-insensitive, expands
// ranges to match either case.
func (h *SyntaxHelper) NormalizeSearchString(s string) string {
	s = h.prepare(s)
	s = h.CapitalizeCaseInsensitiveBooleans(s)
	if !h.csRanges {
		s = h.CapitalizeRanges(s)
	}
	return s
}

// CapitalizeCaseInsensitiveBooleans upper-cases the operators that are not
// configured as case-sensitive.
func (h *SyntaxHelper) CapitalizeCaseInsensitiveBooleans(s string) string {
	return h.CapitalizeBooleans(s, h.boolsToCap...)
}

// CapitalizeBooleans upper-cases the given operators wherever they appear
// between whitespace outside quotes. With no operators s is returned as is.
func (h *SyntaxHelper) CapitalizeBooleans(s string, bools ...string) string {
	if bools == nil {
		return s
	}
	hasNot := false
	for _, b := range bools {
		re, ok := capitalizeRes[b]
		if !ok {
			continue
		}
		s = replace(re, s, " "+b+" ")
		hasNot = hasNot || b == "NOT"
	}
	if hasNot {
		s = replace(parenNotRe, s, "(NOT ")
	}
	return strings.Trim(s, phpSpace)
}

// CapitalizeRanges rewrites ranges so the TO keyword is upper case. Ranges
// with letters become (lower OR upper) alternatives, except timestamp
// ranges, which are upper-cased.
func (h *SyntaxHelper) CapitalizeRanges(s string) string {
	for _, re := range capitalizeRangeRes {
		s = replaceFunc(re, s, capitalizeRange)
	}
	return strings.Trim(s, phpSpace)
}

func capitalizeRange(m regexp2.Match) string {
	open := m.GroupByNumber(1).String()
	start := m.GroupByNumber(2).String()
	end := m.GroupByNumber(3).String()
	closing := m.GroupByNumber(4).String()

	hasCase := func(v string) bool { return strings.ToUpper(v) != strings.ToLower(v) }
	if !hasCase(start) && !hasCase(end) {
		return open + strings.TrimSpace(start) + " TO " + strings.TrimSpace(end) + closing
	}

	upper := open + strings.TrimSpace(strings.ToUpper(start)) + " TO " +
		strings.TrimSpace(strings.ToUpper(end)) + closing
	if matches(timestampRe, start) || matches(timestampRe, end) {
		return upper
	}
	lower := open + strings.TrimSpace(strings.ToLower(start)) + " TO " +
		strings.TrimSpace(strings.ToLower(end)) + closing
	return "(" + lower + " OR " + upper + ")"
}

// ExtractSearchTerms returns the plain words of a query: local parameters,
// fuzziness, boosts, field names and leading +/- are removed.
func (h *SyntaxHelper) ExtractSearchTerms(query string) string {
	query = replace(localParamsRe, query, "")
	query = replace(fuzzyRe, query, "")
	query = replace(boostSuffixRe, query, "")

	var (
		result        []string
		collected     []byte
		discardParens int
	)
	processQueryString(query, func(ch byte, quoted, esc bool) {
		if !quoted {
			// closing parens of a discarded field group
			if !esc && ch == ')' && discardParens > 0 {
				discardParens--
				return
			}
			if ch == ' ' && len(collected) > 0 {
				result = append(result, string(collected))
				collected = collected[:0]
				return
			}
			if !esc && ch == ':' {
				discardParens += countNonQuoted('(', string(collected))
				collected = collected[:0]
				return
			}
		}
		collected = append(collected, ch)
	})
	if len(collected) > 0 {
		result = append(result, string(collected))
	}
	for i, term := range result {
		result[i] = strings.TrimLeft(term, "+-")
	}
	return strings.Join(result, " ")
}

func (h *SyntaxHelper) prepare(s string) string {
	s = fancyQuotes.Replace(s)

	// A lone operator would be a fatal syntax error; search for the word.
	switch strings.Trim(s, phpSpace) {
	case "OR":
		return "or"
	case "AND":
		return "and"
	case "NOT":
		return "not"
	}

	stripped := s
	for _, op := range []string{"AND", "OR", "NOT", "+", "-", `"`, "&&", "||"} {
		stripped = strings.ReplaceAll(stripped, op, "")
	}
	if strings.Trim(stripped, phpSpace) == "" {
		return ""
	}

	if strings.Trim(s, phpSpace) == "*:*" {
		return ""
	}

	// order is significant
	s = h.normalizeWildcards(s)
	s = normalizeParens(s)
	s = normalizeBoosts(s)
	s = h.normalizeBracesAndBrackets(s)
	s = normalizeUnquotedText(s)
	s = normalizeColons(s)

	return strings.Trim(s, "/ ")
}

func (h *SyntaxHelper) normalizeWildcards(s string) string {
	if h.wildcards == WildcardsStrip {
		return h.stripWildcards(s)
	}
	if strings.HasPrefix(s, "*") || strings.HasPrefix(s, "?") {
		return s[1:]
	}
	return s
}

// stripWildcards removes wildcard runs at the start or end of a term.
// Runs inside range expressions, next to a field colon, escaped, inside
// quotes or in the middle of a term are kept.
func (h *SyntaxHelper) stripWildcards(s string) string {
	runes := []rune(s)
	spanRe := rangeSpanRe
	if !h.csRanges {
		spanRe = rangeSpanFoldRe
	}
	ranges := spans(spanRe, s)

	return replaceFunc(wildcardRunRe, s, func(m regexp2.Match) string {
		start, end := m.Index, m.Index+m.Length
		for _, r := range ranges {
			if start >= r[0] && end <= r[1] {
				return m.String()
			}
		}
		if start > 0 && runes[start-1] == '\\' {
			return m.String()
		}
		if end < len(runes) && runes[end] == ':' {
			return m.String()
		}

		prevBoundary := start == 0 || isTermBoundary(runes[start-1])
		nextBoundary := end == len(runes) || isTermBoundary(runes[end])
		switch {
		case !prevBoundary && !nextBoundary:
			return m.String()
		case prevBoundary && nextBoundary && start > 0 && runes[start-1] == ':':
			// field:*
			return m.String()
		}
		return ""
	})
}

func isTermBoundary(r rune) bool {
	return unicode.IsSpace(r) || strings.ContainsRune(`()":+-^~`, r)
}

func normalizeParens(s string) string {
	if countNonQuoted('(', s) != countNonQuoted(')', s) {
		return removeNonQuoted(s, '(', ')')
	}
	return s
}

// normalizeBoosts drops every ^ unless each one is followed by a digit.
func normalizeBoosts(s string) string {
	cnt := countMatches(caretRe, s)
	if cnt > 0 && cnt != countMatches(validBoostRe, s) {
		return strings.ReplaceAll(s, "^", "")
	}
	return s
}

// normalizeBracesAndBrackets escapes brackets and braces that are not part
// of a range. Valid ranges are parked behind ^^ tokens first; normalizeBoosts
// has already removed any ^ the user typed.
func (h *SyntaxHelper) normalizeBracesAndBrackets(s string) string {
	res := bracketRangeRes[0]
	if !h.csRanges {
		res = bracketRangeRes[1]
	}
	s = replace(res[0], s, "^^lbrack^^$1^^rbrack^^")
	s = replace(res[1], s, "^^lbrace^^$1^^rbrace^^")
	s = replace(strayBracketRe, s, `\$1`)
	return bracketTokens.Replace(s)
}

func normalizeUnquotedText(s string) string {
	s = replace(freeHyphenRe, s, " ")
	s = replace(freeSlashRe, s, ` "/" `)
	s = replace(edgeSlashRe, s, " ")

	// a proximity of 1 is meaningless
	s = replace(proxEndRe, s, "")
	s = replace(proxRe, s, " ")

	// empty parentheses are a fatal Solr error
	for matches(emptyParenRe, s) {
		s = replace(emptyParenRe, s, "")
	}
	return s
}

func normalizeColons(s string) string {
	s = replace(colonsRe, s, ":")
	s = replace(colonSpaceRe, s, " ")
	return strings.Trim(s, ":")
}

// processQueryString calls fn for every byte of s with the quoting and
// escaping state in effect for that byte. A backslash is itself reported as
// escaped.
func processQueryString(s string, fn func(ch byte, quoted, esc bool)) {
	quoted, escaped := false, false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\\' {
			escaped = !escaped
		}
		if !escaped && ch == '"' {
			quoted = !quoted
		}
		fn(ch, quoted, escaped)
		if ch != '\\' {
			escaped = false
		}
	}
}

func countNonQuoted(needle byte, s string) int {
	n := 0
	processQueryString(s, func(ch byte, quoted, esc bool) {
		if !quoted && !esc && ch == needle {
			n++
		}
	})
	return n
}

func removeNonQuoted(s string, needles ...byte) string {
	var b strings.Builder
	b.Grow(len(s))
	processQueryString(s, func(ch byte, quoted, esc bool) {
		if quoted || esc || !containsByte(needles, ch) {
			b.WriteByte(ch)
		}
	})
	return b.String()
}

func containsByte(set []byte, c byte) bool {
	for _, b := range set {
		if b == c {
			return true
		}
	}
	return false
}
