package credauth

import (
	"context"
	"time"
)

// SubjectSummary is the non-sensitive view of a subject returned to callers.
// It never carries the credential hash.
type SubjectSummary struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// SubjectProvider is the collaborator interface callers implement to
// integrate credauth with their subject database. It covers credential
// verification, lookup, and registration; secret storage and hashing stay
// entirely on the provider's side of the boundary.
//
// Contract: VerifyCredentials and FindByID return (nil, nil) on "no match" —
// a non-nil error means the provider itself failed and is reported to
// callers as [ErrProviderUnavailable]. Create returns
// [ErrDuplicateIdentifier] when the identifier is taken.
type SubjectProvider interface {
	VerifyCredentials(ctx context.Context, identifier, secret string) (*SubjectSummary, error)
	FindByID(ctx context.Context, id string) (*SubjectSummary, error)
	Create(ctx context.Context, identifier, secret string) (*SubjectSummary, error)
}

// TokenPair is one issued access/refresh pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	Subject      SubjectSummary
	AccessToken  string
	RefreshToken string
}
