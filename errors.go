package credauth

import "errors"

var (
	// ErrInvalidCredentials is returned by [Engine.Login] when the
	// identifier/secret pair does not verify. The error is identical whether
	// the identifier is unknown or the secret is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRefreshInvalid is returned by [Engine.Refresh] for every rejected
	// refresh token: forged, expired, already rotated, revoked, or presented
	// for the wrong subject. Callers cannot distinguish the cases.
	ErrRefreshInvalid = errors.New("invalid refresh token")
	// ErrMissingToken is returned by [Engine.Logout] when called with an
	// empty token value.
	ErrMissingToken = errors.New("missing refresh token")
	// ErrSubjectNotFound is returned by [Engine.Profile] when no subject
	// exists for the given id.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrDuplicateIdentifier is returned by [Engine.Register] when the
	// identifier is already taken.
	ErrDuplicateIdentifier = errors.New("identifier already registered")
	// ErrTokenConflict reports a duplicate token value at insert time. Given
	// the signing entropy this is an invariant violation, not a user-facing
	// condition.
	ErrTokenConflict = errors.New("refresh token already exists")
	// ErrStoreUnavailable wraps refresh-store infrastructure failures.
	// Retryable; never conflated with validation errors.
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrProviderUnavailable wraps subject-provider infrastructure failures.
	// Retryable; never conflated with validation errors.
	ErrProviderUnavailable = errors.New("subject provider unavailable")
	// ErrEngineNotReady is returned when an Engine method is invoked on a
	// nil or incompletely built engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)
