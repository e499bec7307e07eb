// Package lucene normalizes user-entered search strings into Lucene syntax
// that Solr accepts without fatal parse errors.
//
// SyntaxHelper holds the base rules: balancing parentheses, dropping
// meaningless boosts and proximities, escaping stray brackets, capitalizing
// case-insensitive booleans and ranges, and extracting plain search terms.
//
// Normalizer wraps a SyntaxHelper with the extended pipeline:
//
//  1. base normalization
//  2. Unicode normalization (NFKC by default)
//  3. whole-string ISBN-10 to ISBN-13 conversion
//  4. rejection by configured search filters (*FilterError)
//
// FinalizeSearchString is a separate pass applied by the query builder once
// term-level normalization is done. It escapes unquoted minus signs that
// follow whitespace and collapses the "!-" negation marker to "-".
//
// All regular expressions use github.com/dlclark/regexp2, which supports
// the lookarounds and atomic groups the quote-parity checks rely on.
// Functions in this package are safe for concurrent use.
package lucene
