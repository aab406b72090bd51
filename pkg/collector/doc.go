// Package collector implements the paginated full-directory scrape.
//
// The loop is strictly sequential: each request depends on the cursor
// from the previous response, so there is no parallelism within one
// run. A fixed sleep between pages respects upstream rate limits.
// Records are deduplicated by their stable external id, which makes
// re-runs naturally idempotent; partial results from an aborted run
// are safe to merge with a later complete run.
package collector
