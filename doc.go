// Package credauth is a credential-issuance engine: it issues paired
// short-lived access tokens and long-lived refresh tokens, persists
// refresh-token state in Redis, validates and rotates refresh tokens on use,
// and revokes tokens individually or per subject.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// credauth is the public surface. It exposes [Engine], [Builder], [Config],
// the [SubjectProvider] collaborator interface, and value types
// (LoginResult, TokenPair, MetricsSnapshot). Token signing lives in the
// token subpackage; refresh-record persistence lives in the store
// subpackage. Credential verification and subject registration belong to
// the caller-supplied SubjectProvider — the engine never sees a secret
// hash.
//
// # What this package must NOT do
//
//   - Expose Redis clients, store internals, or encoding details in its
//     public API.
//   - Authorize access tokens on API calls; that is the downstream
//     request-handling layer's job.
//   - Distinguish, in returned errors, why a credential or refresh token
//     was rejected.
//
// # Rotation contract
//
// Refresh is the contended path. Rotation revokes the presented record via
// an atomic compare-and-set before inserting its successor, so two
// simultaneously active tokens for one lineage cannot exist: of any set of
// concurrent refreshes with the same token, exactly one wins and the rest
// fail with [ErrRefreshInvalid].
package credauth
