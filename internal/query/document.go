package query

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Document is the YAML form of a query tree.
//
//	operator: AND
//	queries:
//	  - string: kivi
//	    handler: Author
//	  - operator: NOT
//	    queries:
//	      - string: runot
//
// An entry with queries (or an operator and no string) is a group;
// anything else is a leaf.
type Document struct {
	String         string     `yaml:"string,omitempty"`
	Handler        string     `yaml:"handler,omitempty"`
	Operator       string     `yaml:"operator,omitempty"`
	ReducedHandler string     `yaml:"reduced_handler,omitempty"`
	Queries        []Document `yaml:"queries,omitempty"`
}

// ParseDocument decodes a YAML query tree.
func ParseDocument(data []byte) (Node, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse query document: %w", err)
	}
	return doc.Build()
}

func (d Document) isGroup() bool {
	return len(d.Queries) > 0 || (d.Operator != "" && d.String == "")
}

// Build converts the document to a tree.
func (d Document) Build() (Node, error) {
	if !d.isGroup() {
		return &Query{String: d.String, Handler: d.Handler, Operator: d.Operator}, nil
	}
	if d.String != "" {
		return nil, errors.New("query document entry has both string and queries")
	}

	children := make([]Node, 0, len(d.Queries))
	for i, child := range d.Queries {
		n, err := child.Build()
		if err != nil {
			return nil, fmt.Errorf("queries[%d]: %w", i, err)
		}
		children = append(children, n)
	}
	op := d.Operator
	if op == "" {
		op = "AND"
	}
	return NewGroup(op, children, d.ReducedHandler)
}

// ToDocument converts a tree back to its YAML form.
func ToDocument(n Node) Document {
	switch v := n.(type) {
	case *Query:
		return Document{String: v.String, Handler: v.Handler, Operator: v.Operator}
	case *Group:
		op := v.Operator().String()
		if v.IsNegated() {
			op = "NOT"
		}
		doc := Document{Operator: op, ReducedHandler: v.ReducedHandler()}
		for _, child := range v.Queries() {
			doc.Queries = append(doc.Queries, ToDocument(child))
		}
		return doc
	default:
		return Document{}
	}
}
