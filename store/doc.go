// Package store provides Redis-backed persistence for refresh-token records
// with atomic revocation and automatic expiry.
//
// # Binary encoding
//
// Records are stored as a compact versioned binary blob with the revoked
// flag at a fixed byte offset. Lua scripts parse the blob server-side and
// flip the flag in place with SETRANGE, which makes revocation a true
// compare-and-set: concurrent rotations of the same token admit exactly one
// winner.
//
// # Expiry sweep
//
// Every record key is written with a TTL equal to the token's remaining
// validity, so Redis physically deletes expired records on its own. Lookups
// additionally filter on the embedded expiry timestamp and subject-index
// entries are scrubbed lazily, so correctness never depends on sweep timing.
//
// # Architecture boundaries
//
// This package owns record persistence and the revocation primitives. It
// does NOT interpret token signatures or decide rotation policy — those
// responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import credauth or token (no upward imports).
//   - Store plaintext token values; keys are derived from a SHA-256 digest.
//   - Treat an infrastructure failure as a validation outcome.
package store
