// Package token issues and verifies the two token classes used by the
// credential-issuance engine: short-lived access tokens and long-lived
// rotating refresh tokens. Both are self-describing HS256 JWTs carrying the
// subject id, email, a type discriminator, and a unique token id.
//
// # Dual secrets
//
// Each token class is signed with its own secret. A leaked or forged token
// of one class can never verify as the other: verification pins both the
// signing secret and the embedded "typ" claim to the expected class.
//
// # Architecture boundaries
//
// This package owns token creation and verification only. It performs no
// I/O, never talks to the refresh-token store, and has no opinion on
// rotation or revocation — those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Access Redis or any I/O.
//   - Import credauth or store (no upward imports).
//   - Decide whether a structurally valid refresh token is still usable.
package token
