package query

import (
	"errors"
	"fmt"
	"regexp"
)

// Node is a Query or a Group.
type Node interface {
	queryNode()

	// AllTerms returns every search string in the subtree joined by spaces.
	AllTerms() string
	// ContainsTerm reports whether a term occurs in the subtree.
	ContainsTerm(term string) bool
	// ReplaceTerm replaces a term everywhere in the subtree.
	ReplaceTerm(from, to string)
	// CloneNode returns a deep copy.
	CloneNode() Node
}

// Operator combines the children of a Group.
type Operator int

const (
	And Operator = iota
	Or
)

func (o Operator) String() string {
	if o == Or {
		return "OR"
	}
	return "AND"
}

// OperatorError reports an operator other than AND, OR or NOT.
type OperatorError struct {
	Value string
}

func (e *OperatorError) Error() string {
	return fmt.Sprintf("unsupported operator %q", e.Value)
}

// IsOperatorError reports whether err is an OperatorError.
func IsOperatorError(err error) bool {
	var oe *OperatorError
	return errors.As(err, &oe)
}

// ParseOperator parses AND, OR or NOT. Matching is exact and case-sensitive.
// NOT yields Or with negated set.
func ParseOperator(s string) (op Operator, negated bool, err error) {
	switch s {
	case "AND":
		return And, false, nil
	case "OR":
		return Or, false, nil
	case "NOT":
		return Or, true, nil
	default:
		return And, false, &OperatorError{Value: s}
	}
}

// Query is a leaf search term.
type Query struct {
	String   string
	Handler  string
	Operator string
}

// New creates a leaf.
func New(s, handler string) *Query {
	return &Query{String: s, Handler: handler}
}

func (*Query) queryNode() {}

// AllTerms returns the search string.
func (q *Query) AllTerms() string { return q.String }

// ContainsTerm reports whether term occurs in the search string, as a whole
// word when term is made of word characters only.
func (q *Query) ContainsTerm(term string) bool {
	return termPattern(term, false).MatchString(q.String)
}

// ReplaceTerm replaces every case-insensitive occurrence of from with to.
func (q *Query) ReplaceTerm(from, to string) {
	q.String = termPattern(from, true).ReplaceAllLiteralString(q.String, to)
}

// Clone returns a copy of q.
func (q *Query) Clone() *Query {
	c := *q
	return &c
}

// CloneNode implements Node.
func (q *Query) CloneNode() Node { return q.Clone() }

var nonWord = regexp.MustCompile(`\W`)

// termPattern matches term literally, bounded by \b unless term contains
// non-word characters.
func termPattern(term string, foldCase bool) *regexp.Regexp {
	pattern := regexp.QuoteMeta(term)
	if !nonWord.MatchString(term) {
		pattern = `\b` + pattern + `\b`
	}
	if foldCase {
		pattern = `(?i)` + pattern
	}
	return regexp.MustCompile(pattern)
}
