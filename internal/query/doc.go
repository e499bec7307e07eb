// Package query models a user search as a boolean expression tree.
//
// A tree is made of two node types:
//
//   - Query: a leaf holding a raw search string, an optional handler (the
//     field or field group it targets) and an optional operator hint.
//   - Group: an inner node combining children with AND or OR, optionally
//     negated.
//
// Node is a sealed interface. Only types in this package implement it, so a
// type switch over *Query and *Group is exhaustive:
//
//	switch n := node.(type) {
//	case *query.Query:
//	    // leaf
//	case *query.Group:
//	    // recurse into n.Queries()
//	}
//
// NOT is accepted as a group operator for compatibility with older search
// requests. It is stored as OR with the negated flag set, so Operator only
// ever reports AND or OR.
//
// Trees are built by callers, reduced once by a query builder and otherwise
// treated as read-mostly. Clone returns a deep copy for callers that need to
// rewrite terms without touching the original.
package query
