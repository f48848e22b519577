// Package distinctset provides exact distinct counting over streams of
// fixed-size values.
//
// An Aggregator accumulates raw elements, defers sorting and
// deduplication until it pays off, and answers Count and Values queries
// over the distinct elements seen so far. Partial aggregates can be
// merged, so streams may be split across goroutines or machines and
// combined afterwards in any order.
//
// # Quick Start
//
//	agg, _ := distinctset.New(4) // 4-byte elements, e.g. int32 keys
//	for _, v := range values {
//	    _ = agg.Append(v)
//	}
//	n, _ := agg.Count()
//
// # Parallel Aggregation
//
// Split the input, aggregate partials independently, then merge:
//
//	a.Merge(b) // a now covers both streams
//
// Merging is commutative and associative, so any merge tree yields the
// same result. The parallel package builds such trees over worker pools.
//
// # Persistence
//
// Serialize produces a compact binary state that Deserialize restores:
//
//	state, _ := agg.Serialize()
//	restored, _ := distinctset.Deserialize(state)
//
// SaveSnapshot and LoadSnapshot additionally wrap the state in a
// checksummed, optionally compressed envelope and store it in a
// blobstore.BlobStore (local filesystem, S3, MinIO, or in-memory).
//
// # Key Features
//
//   - Exact counts, no sketch error
//   - Amortized O(n log n) via deferred compaction
//   - Order-independent merge of partial aggregates
//   - Portable little-endian wire format
//   - Arena allocation for aggregation with bounded memory
//   - Roaring bitmap fast path for 32-bit keys (bitmapset package)
package distinctset
