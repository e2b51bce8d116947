// Package hindsight retrieves historical messages from a channel's
// persistent storage tier. The storage service only hands out small
// bounded pages addressed by opaque time tokens; hindsight turns an
// arbitrary request (any count, any time range, either direction) into
// a sequence of bounded fetches and stitches the pages into one
// ordered, duplicate-free result.
//
// Typical usage looks like:
//   - Build a Query with NewQuery and its chainable methods
//   - Create a Client over a Fetcher (HTTP, Redis, Postgres, or a
//     BoltArchive of previously drained history)
//   - Call Fetch and receive either a complete Result or an error,
//     never a partial result
//
// Pagination within one query is strictly sequential since each page's
// bounds depend on the previous page. Independent queries share no
// state and may run concurrently on one Client.
package hindsight
