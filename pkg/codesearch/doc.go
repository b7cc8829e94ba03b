// Package codesearch provides an embeddable hybrid code search index.
//
// An [Index] combines an inverted keyword index with hash-based vector
// embeddings and ranks hybrid queries with reciprocal rank fusion. The
// index lives entirely in memory and is rebuilt from source, so there is
// nothing to persist or migrate.
//
// # Usage
//
//	idx, err := codesearch.New(codesearch.Config{}, nil)
//	if err != nil {
//	    return err
//	}
//	defer idx.Close()
//
//	err = idx.Index(ctx, "auth/login.go", codesearch.ElementFunction,
//	    "Login", loginSource)
//
//	results, err := idx.Search(ctx, "session token validation",
//	    codesearch.Options{Limit: 5})
//
// Keyword-only and semantic-only passes are available through
// [Index.SearchByKeyword] and [Index.SearchByEmbedding].
//
// # Thread Safety
//
// An Index is safe for concurrent use. Multiple independent instances
// can coexist in one process; nothing is shared between them.
package codesearch
