// Package solr reduces query trees to Solr request parameters.
//
// A SearchHandler turns one search string into the query for a configured
// handler: a dismax subquery, a munged Lucene query over QueryFields, or the
// string itself, optionally ANDed with a filter query. QueryBuilder walks a
// query.Node, normalizes every leaf with a lucene.Normalizer, applies the
// leaf's handler and returns a ParamBag with q and the dismax, spelling and
// highlighting parameters the handler calls for.
package solr
