package credauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/credauth/credauth/store"
	"github.com/credauth/credauth/token"
)

// Engine orchestrates the token lifecycle: login issues a pair and persists
// the refresh record, refresh rotates it, logout and logout-all revoke it.
// The engine is the sole reader/writer of the store and sole user of the
// codec; it holds no mutable state of its own beyond counters, so all
// methods are safe for concurrent use.
type Engine struct {
	config   Config
	codec    *token.Codec
	store    *store.Store
	provider SubjectProvider
	audit    *auditDispatcher
	metrics  *Metrics
}

// Close flushes and stops the audit dispatcher. The engine must not be used
// afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were shed under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, subjectID string, opErr error, metadata map[string]string) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		SubjectID: subjectID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}

	e.audit.Emit(ctx, event)
}

// Login verifies identifier/secret against the subject provider and, on
// success, issues one access/refresh pair and persists the refresh record.
// Rejections are uniform: the caller cannot tell an unknown identifier from
// a wrong secret.
func (e *Engine) Login(ctx context.Context, identifier, secret string) (*LoginResult, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}

	if identifier == "" || secret == "" {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, nil)
		return nil, ErrInvalidCredentials
	}

	subject, err := e.provider.VerifyCredentials(ctx, identifier, secret)
	if err != nil {
		e.emitAudit(ctx, auditEventProviderUnavailable, false, "", err, map[string]string{
			"operation": "login",
		})
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if subject == nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, "", ErrInvalidCredentials, map[string]string{
			"identifier": identifier,
		})
		return nil, ErrInvalidCredentials
	}

	pair, err := e.issuePair(ctx, subject)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, subject.ID, nil, nil)

	return &LoginResult{
		Subject:      *subject,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Register creates a new subject through the provider collaborator. Fails
// with [ErrDuplicateIdentifier] when the identifier is taken.
func (e *Engine) Register(ctx context.Context, identifier, secret string) (*SubjectSummary, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	if identifier == "" || secret == "" {
		return nil, errors.New("identifier and secret are required")
	}

	subject, err := e.provider.Create(ctx, identifier, secret)
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentifier) {
			e.metricInc(MetricAccountDuplicate)
			e.emitAudit(ctx, auditEventAccountDuplicate, false, "", err, map[string]string{
				"identifier": identifier,
			})
			return nil, err
		}
		e.emitAudit(ctx, auditEventProviderUnavailable, false, "", err, map[string]string{
			"operation": "register",
		})
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	e.metricInc(MetricAccountCreated)
	e.emitAudit(ctx, auditEventAccountCreated, true, subject.ID, nil, nil)

	return subject, nil
}

// Refresh rotates a refresh token: the presented record is atomically
// revoked and a fresh access/refresh pair is issued in its place. Every
// rejection (forged, expired, already rotated, revoked, wrong subject)
// reads as the same [ErrRefreshInvalid].
//
// The revoke happens before the insert. If the insert then fails, the
// lineage ends and the caller re-authenticates; two simultaneously active
// tokens for one lineage can never exist.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}

	if refreshToken == "" {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	}

	claims, err := e.codec.Verify(refreshToken, token.TypeRefresh)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, "", ErrRefreshInvalid, map[string]string{
			"reason": "verification_failed",
		})
		return nil, ErrRefreshInvalid
	}

	outcome, err := e.store.RevokeActive(ctx, refreshToken, claims.UID, time.Now())
	if err != nil {
		return nil, e.storeFailure(ctx, "refresh", claims.UID, err)
	}

	switch outcome {
	case store.OutcomeRevoked:
		// This caller won the rotation.
	case store.OutcomeAlreadyRevoked:
		e.metricInc(MetricRefreshReuseDetected)
		e.emitAudit(ctx, auditEventRefreshReuse, false, claims.UID, ErrRefreshInvalid, nil)
		return nil, ErrRefreshInvalid
	default:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.UID, ErrRefreshInvalid, map[string]string{
			"reason": "no_active_record",
		})
		return nil, ErrRefreshInvalid
	}

	subject, err := e.provider.FindByID(ctx, claims.UID)
	if err != nil {
		e.emitAudit(ctx, auditEventProviderUnavailable, false, claims.UID, err, map[string]string{
			"operation": "refresh",
		})
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if subject == nil {
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshInvalid, false, claims.UID, ErrRefreshInvalid, map[string]string{
			"reason": "subject_missing",
		})
		return nil, ErrRefreshInvalid
	}

	pair, err := e.issuePair(ctx, subject)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshRotated, true, subject.ID, nil, nil)

	return pair, nil
}

// Logout revokes the record matching refreshToken. Idempotent: revoking an
// already-revoked or unknown token still succeeds. Only empty input is
// rejected, with [ErrMissingToken].
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if refreshToken == "" {
		return ErrMissingToken
	}

	if _, err := e.store.Revoke(ctx, refreshToken); err != nil {
		return e.storeFailure(ctx, "logout", "", err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, "", nil, nil)

	return nil
}

// LogoutAll revokes every active refresh record for the subject ("logout
// everywhere") and returns how many records were transitioned. A subject
// with no active records is a success with count zero.
func (e *Engine) LogoutAll(ctx context.Context, subjectID string) (int64, error) {
	if e == nil {
		return 0, ErrEngineNotReady
	}
	if subjectID == "" {
		return 0, nil
	}

	revoked, err := e.store.RevokeAllForSubject(ctx, subjectID, time.Now())
	if err != nil {
		return 0, e.storeFailure(ctx, "logout_all", subjectID, err)
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, subjectID, nil, map[string]string{
		"revoked": fmt.Sprintf("%d", revoked),
	})

	return revoked, nil
}

// Profile reads the subject summary through the provider collaborator.
func (e *Engine) Profile(ctx context.Context, subjectID string) (*SubjectSummary, error) {
	if e == nil || e.provider == nil {
		return nil, ErrEngineNotReady
	}
	if subjectID == "" {
		return nil, ErrSubjectNotFound
	}

	subject, err := e.provider.FindByID(ctx, subjectID)
	if err != nil {
		e.emitAudit(ctx, auditEventProviderUnavailable, false, subjectID, err, map[string]string{
			"operation": "profile",
		})
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if subject == nil {
		return nil, ErrSubjectNotFound
	}

	return subject, nil
}

// issuePair signs a fresh access/refresh pair for the subject and persists
// the refresh record.
func (e *Engine) issuePair(ctx context.Context, subject *SubjectSummary) (*TokenPair, error) {
	access, _, err := e.codec.IssueAccess(subject.ID, subject.Email)
	if err != nil {
		return nil, err
	}

	refresh, claims, err := e.codec.IssueRefresh(subject.ID, subject.Email)
	if err != nil {
		return nil, err
	}

	err = e.store.Insert(ctx, refresh, subject.ID, claims.IssuedAt.Time, claims.ExpiresAt.Time)
	if errors.Is(err, store.ErrConflict) {
		// Token values carry a fresh jti; a collision means the invariant
		// broke, not that the user did anything wrong.
		e.emitAudit(ctx, auditEventStoreUnavailable, false, subject.ID, err, map[string]string{
			"reason": "token_conflict",
		})
		return nil, fmt.Errorf("%w: %v", ErrTokenConflict, err)
	}
	if err != nil {
		return nil, e.storeFailure(ctx, "insert", subject.ID, err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
	}, nil
}

func (e *Engine) storeFailure(ctx context.Context, operation, subjectID string, err error) error {
	e.metricInc(MetricStoreUnavailable)
	e.emitAudit(ctx, auditEventStoreUnavailable, false, subjectID, err, map[string]string{
		"operation": operation,
	})
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
