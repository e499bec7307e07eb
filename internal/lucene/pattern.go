package lucene

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// UnquotedLookahead is a regexp2 lookahead that succeeds only when an even
// number of double quotes follows, i.e. the position is outside a quoted
// phrase.
const UnquotedLookahead = `(?=(?>(?:(?>[^"]*)"(?>[^"]*)")*)(?>[^"]*)$)`

// Match timeouts are never set on these expressions, so regexp2 cannot
// return an error; the helpers below fall back to the input regardless.

func replace(re *regexp2.Regexp, s, repl string) string {
	out, err := re.Replace(s, repl, -1, -1)
	if err != nil {
		return s
	}
	return out
}

func replaceFunc(re *regexp2.Regexp, s string, fn func(regexp2.Match) string) string {
	out, err := re.ReplaceFunc(s, fn, -1, -1)
	if err != nil {
		return s
	}
	return out
}

func matches(re *regexp2.Regexp, s string) bool {
	ok, err := re.MatchString(s)
	return err == nil && ok
}

func countMatches(re *regexp2.Regexp, s string) int {
	n := 0
	m, err := re.FindStringMatch(s)
	for err == nil && m != nil {
		n++
		m, err = re.FindNextMatch(m)
	}
	return n
}

// spans returns the rune offsets [start, end) of every match.
func spans(re *regexp2.Regexp, s string) [][2]int {
	var out [][2]int
	m, err := re.FindStringMatch(s)
	for err == nil && m != nil {
		out = append(out, [2]int{m.Index, m.Index + m.Length})
		m, err = re.FindNextMatch(m)
	}
	return out
}

// CompilePattern compiles a search filter or munge expression. Expressions
// of the form /pattern/flags accept the flags i, m, s, x and u; anything
// else is compiled as a bare pattern.
func CompilePattern(expr string) (*regexp2.Regexp, error) {
	pattern, opts := expr, regexp2.None
	if len(expr) > 1 && expr[0] == '/' {
		if end := strings.LastIndexByte(expr, '/'); end > 0 {
			pattern = expr[1:end]
			for _, f := range expr[end+1:] {
				switch f {
				case 'i':
					opts |= regexp2.IgnoreCase
				case 'm':
					opts |= regexp2.Multiline
				case 's':
					opts |= regexp2.Singleline
				case 'x':
					opts |= regexp2.IgnorePatternWhitespace
				case 'u':
				default:
					return nil, fmt.Errorf("pattern %s: unsupported flag %q", expr, f)
				}
			}
		}
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, fmt.Errorf("pattern %s: %w", expr, err)
	}
	return re, nil
}
