package query

import "strings"

// Group combines child nodes with a boolean operator.
type Group struct {
	operator       Operator
	negated        bool
	queries        []Node
	reducedHandler string
}

// NewGroup creates a group. op must be AND, OR or NOT.
func NewGroup(op string, queries []Node, reducedHandler string) (*Group, error) {
	g := &Group{queries: queries, reducedHandler: reducedHandler}
	if err := g.SetOperator(op); err != nil {
		return nil, err
	}
	return g, nil
}

func (*Group) queryNode() {}

// Operator returns AND or OR.
func (g *Group) Operator() Operator { return g.operator }

// IsNegated reports whether the group was built with NOT.
func (g *Group) IsNegated() bool { return g.negated }

// SetOperator changes the operator. NOT sets Or and marks the group negated;
// AND and OR clear the flag.
func (g *Group) SetOperator(op string) error {
	operator, negated, err := ParseOperator(op)
	if err != nil {
		return err
	}
	g.operator, g.negated = operator, negated
	return nil
}

// Queries returns the children.
func (g *Group) Queries() []Node { return g.queries }

// SetQueries replaces the children.
func (g *Group) SetQueries(queries []Node) { g.queries = queries }

// AddQuery appends a child.
func (g *Group) AddQuery(n Node) { g.queries = append(g.queries, n) }

// ReducedHandler is the handler used when every child shares one.
func (g *Group) ReducedHandler() string { return g.reducedHandler }

// SetReducedHandler sets the reduced handler.
func (g *Group) SetReducedHandler(h string) { g.reducedHandler = h }

// UnsetReducedHandler clears the reduced handler.
func (g *Group) UnsetReducedHandler() { g.reducedHandler = "" }

// AllTerms joins the terms of every child with spaces.
func (g *Group) AllTerms() string {
	terms := make([]string, 0, len(g.queries))
	for _, q := range g.queries {
		if t := q.AllTerms(); t != "" {
			terms = append(terms, t)
		}
	}
	return strings.Join(terms, " ")
}

// ContainsTerm reports whether any child contains term.
func (g *Group) ContainsTerm(term string) bool {
	for _, q := range g.queries {
		if q.ContainsTerm(term) {
			return true
		}
	}
	return false
}

// ReplaceTerm replaces a term in every child.
func (g *Group) ReplaceTerm(from, to string) {
	for _, q := range g.queries {
		q.ReplaceTerm(from, to)
	}
}

// Clone returns a deep copy of g.
func (g *Group) Clone() *Group {
	c := *g
	c.queries = make([]Node, len(g.queries))
	for i, q := range g.queries {
		c.queries[i] = q.CloneNode()
	}
	return &c
}

// CloneNode implements Node.
func (g *Group) CloneNode() Node { return g.Clone() }
