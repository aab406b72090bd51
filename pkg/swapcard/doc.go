// Package swapcard implements the client for the event platform's
// batched GraphQL endpoint.
//
// The upstream accepts a JSON array of named operations resolved by
// persisted-query hash and returns a positional array of per-operation
// results. The people directory lives at data.view.people with
// cursor-based pagination (pageInfo.hasNextPage / pageInfo.endCursor);
// totalCount is typically only present on the initial cursor-less
// request. Responses are decoded into typed structs at this boundary;
// callers never see raw JSON trees.
package swapcard
