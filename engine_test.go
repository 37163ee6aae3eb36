package credauth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/credauth/credauth/token"
	"github.com/redis/go-redis/v9"
)

type mockSubjectProvider struct {
	mu           sync.RWMutex
	byID         map[string]SubjectSummary
	byIdentifier map[string]string
	secrets      map[string]string
	failing      bool
}

func newMockProvider() *mockSubjectProvider {
	return &mockSubjectProvider{
		byID:         map[string]SubjectSummary{},
		byIdentifier: map[string]string{},
		secrets:      map[string]string{},
	}
}

func (m *mockSubjectProvider) seed(id, identifier, secret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[id] = SubjectSummary{ID: id, Email: identifier, CreatedAt: time.Now()}
	m.byIdentifier[identifier] = id
	m.secrets[id] = secret
}

func (m *mockSubjectProvider) VerifyCredentials(_ context.Context, identifier, secret string) (*SubjectSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failing {
		return nil, errors.New("provider down")
	}
	id, ok := m.byIdentifier[identifier]
	if !ok || m.secrets[id] != secret {
		return nil, nil
	}
	summary := m.byID[id]
	return &summary, nil
}

func (m *mockSubjectProvider) FindByID(_ context.Context, id string) (*SubjectSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failing {
		return nil, errors.New("provider down")
	}
	summary, ok := m.byID[id]
	if !ok {
		return nil, nil
	}
	return &summary, nil
}

func (m *mockSubjectProvider) Create(_ context.Context, identifier, secret string) (*SubjectSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, errors.New("provider down")
	}
	if _, taken := m.byIdentifier[identifier]; taken {
		return nil, ErrDuplicateIdentifier
	}
	id := "subject-" + identifier
	summary := SubjectSummary{ID: id, Email: identifier, CreatedAt: time.Now()}
	m.byID[id] = summary
	m.byIdentifier[identifier] = id
	m.secrets[id] = secret
	return &summary, nil
}

func engineTestConfig() Config {
	cfg := DefaultConfig()
	cfg.Tokens.AccessSecret = []byte("access-secret-for-tests")
	cfg.Tokens.RefreshSecret = []byte("refresh-secret-for-tests")
	cfg.Tokens.Issuer = "credauth-test"
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, provider SubjectProvider) (*Engine, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithProvider(provider).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, mr
}

func testCodec(t *testing.T, cfg Config) *token.Codec {
	t.Helper()

	codec, err := token.NewCodec(token.Config{
		AccessTTL:     cfg.Tokens.AccessTTL,
		RefreshTTL:    cfg.Tokens.RefreshTTL,
		AccessSecret:  cfg.Tokens.AccessSecret,
		RefreshSecret: cfg.Tokens.RefreshSecret,
		Issuer:        cfg.Tokens.Issuer,
	})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return codec
}

func TestLoginIssuesDecodableTokenPair(t *testing.T) {
	cfg := engineTestConfig()
	provider := newMockProvider()
	provider.seed("subject-1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, cfg, provider)

	result, err := engine.Login(context.Background(), "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if result.Subject.ID != "subject-1" || result.Subject.Email != "alice@example.com" {
		t.Fatalf("unexpected subject summary: %+v", result.Subject)
	}

	codec := testCodec(t, cfg)

	access, err := codec.Verify(result.AccessToken, token.TypeAccess)
	if err != nil {
		t.Fatalf("access token did not verify: %v", err)
	}
	if access.UID != "subject-1" {
		t.Fatalf("access token subject mismatch: %s", access.UID)
	}

	refresh, err := codec.Verify(result.RefreshToken, token.TypeRefresh)
	if err != nil {
		t.Fatalf("refresh token did not verify: %v", err)
	}
	if refresh.UID != "subject-1" {
		t.Fatalf("refresh token subject mismatch: %s", refresh.UID)
	}
}

func TestLoginFailureIsUniform(t *testing.T) {
	provider := newMockProvider()
	provider.seed("subject-1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, engineTestConfig(), provider)
	ctx := context.Background()

	_, unknownErr := engine.Login(ctx, "bad@example.com", "wrong")
	_, wrongSecretErr := engine.Login(ctx, "alice@example.com", "wrong")

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("unknown identifier: expected ErrInvalidCredentials, got %v", unknownErr)
	}
	if !errors.Is(wrongSecretErr, ErrInvalidCredentials) {
		t.Fatalf("wrong secret: expected ErrInvalidCredentials, got %v", wrongSecretErr)
	}
	// Identical error shape in both cases: nothing to enumerate accounts by.
	if unknownErr.Error() != wrongSecretErr.Error() {
		t.Fatalf("error shapes differ: %q vs %q", unknownErr, wrongSecretErr)
	}
}

func TestRefreshRotatesAndInvalidatesOldToken(t *testing.T) {
	provider := newMockProvider()
	provider.seed("subject-1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, engineTestConfig(), provider)
	ctx := context.Background()

	result, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	pair, err := engine.Refresh(ctx, result.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if pair.RefreshToken == result.RefreshToken {
		t.Fatal("rotation returned the same refresh token")
	}

	// Replaying the rotated token must fail like any other invalid token.
	if _, err := engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid on replay, got %v", err)
	}

	// The successor stays valid.
	if _, err := engine.Refresh(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("successor refresh failed: %v", err)
	}
}

func TestRefreshRejectsForgedAndMalformedTokens(t *testing.T) {
	cfg := engineTestConfig()
	provider := newMockProvider()
	provider.seed("subject-1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, cfg, provider)
	ctx := context.Background()

	result, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not.a.jwt",
		"access token": result.AccessToken,
	}
	for name, presented := range cases {
		if _, err := engine.Refresh(ctx, presented); !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("%s: expected ErrRefreshInvalid, got %v", name, err)
		}
	}

	// Properly signed but never persisted: same uniform failure.
	codec := testCodec(t, cfg)
	orphan, _, err := codec.IssueRefresh("subject-1", "alice@example.com")
	if err != nil {
		t.Fatalf("IssueRefresh failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, orphan); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("orphan token: expected ErrRefreshInvalid, got %v", err)
	}
}

func TestRefreshExpiredToken(t *testing.T) {
	cfg := engineTestConfig()
	cfg.Tokens.AccessTTL = time.Second
	cfg.Tokens.RefreshTTL = time.Minute
	provider := newMockProvider()
	provider.seed("subject-1", "alice@example.com", "correct-password-123")
	engine, mr := newTestEngine(t, cfg, provider)
	ctx := context.Background()

	result, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// The store record is swept at its TTL. The signature may still be
	// within its window, but a token without a live record is invalid.
	mr.FastForward(2 * time.Minute)

	if _, err := engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid, got %v", err)
	}
}

func TestLogoutIsIdempotent(t *testing.T) {
	provider := newMockProvider()
	provider.seed("subject-1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, engineTestConfig(), provider)
	ctx := context.Background()

	result, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := engine.Logout(ctx, result.RefreshToken); err != nil {
		t.Fatalf("first Logout failed: %v", err)
	}
	if err := engine.Logout(ctx, result.RefreshToken); err != nil {
		t.Fatalf("second Logout failed: %v", err)
	}
	if err := engine.Logout(ctx, "never-issued-token"); err != nil {
		t.Fatalf("Logout of unknown token failed: %v", err)
	}

	if _, err := engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid after logout, got %v", err)
	}
}

func TestLogoutRequiresToken(t *testing.T) {
	provider := newMockProvider()
	engine, _ := newTestEngine(t, engineTestConfig(), provider)

	if err := engine.Logout(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestLogoutAllRevokesEveryLineage(t *testing.T) {
	provider := newMockProvider()
	provider.seed("subject-1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, engineTestConfig(), provider)
	ctx := context.Background()

	// Two independent logins, two independent lineages.
	first, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("first Login failed: %v", err)
	}
	second, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("second Login failed: %v", err)
	}
	if first.RefreshToken == second.RefreshToken {
		t.Fatal("two logins produced the same refresh token")
	}

	revoked, err := engine.LogoutAll(ctx, "subject-1")
	if err != nil {
		t.Fatalf("LogoutAll failed: %v", err)
	}
	if revoked != 2 {
		t.Fatalf("expected 2 revocations, got %d", revoked)
	}

	for name, tok := range map[string]string{"first": first.RefreshToken, "second": second.RefreshToken} {
		if _, err := engine.Refresh(ctx, tok); !errors.Is(err, ErrRefreshInvalid) {
			t.Fatalf("%s lineage: expected ErrRefreshInvalid, got %v", name, err)
		}
	}

	// Nothing left to revoke: still a success.
	revoked, err = engine.LogoutAll(ctx, "subject-1")
	if err != nil {
		t.Fatalf("repeat LogoutAll failed: %v", err)
	}
	if revoked != 0 {
		t.Fatalf("expected 0 revocations on repeat, got %d", revoked)
	}
}

func TestProfile(t *testing.T) {
	provider := newMockProvider()
	provider.seed("subject-1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, engineTestConfig(), provider)
	ctx := context.Background()

	summary, err := engine.Profile(ctx, "subject-1")
	if err != nil {
		t.Fatalf("Profile failed: %v", err)
	}
	if summary.Email != "alice@example.com" {
		t.Fatalf("unexpected summary %+v", summary)
	}

	if _, err := engine.Profile(ctx, "no-such-subject"); !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("expected ErrSubjectNotFound, got %v", err)
	}
	if _, err := engine.Profile(ctx, ""); !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("expected ErrSubjectNotFound for empty id, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	provider := newMockProvider()
	engine, _ := newTestEngine(t, engineTestConfig(), provider)
	ctx := context.Background()

	created, err := engine.Register(ctx, "bob@example.com", "new-password-123")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected created subject id")
	}

	if _, err := engine.Register(ctx, "bob@example.com", "other-password"); !errors.Is(err, ErrDuplicateIdentifier) {
		t.Fatalf("expected ErrDuplicateIdentifier, got %v", err)
	}
}

func TestStoreOutageSurfacesAsUnavailable(t *testing.T) {
	provider := newMockProvider()
	provider.seed("subject-1", "alice@example.com", "correct-password-123")
	engine, mr := newTestEngine(t, engineTestConfig(), provider)
	ctx := context.Background()

	result, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	mr.Close()

	if _, err := engine.Login(ctx, "alice@example.com", "correct-password-123"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Login: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Refresh: expected ErrStoreUnavailable, got %v", err)
	}
	if err := engine.Logout(ctx, result.RefreshToken); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("Logout: expected ErrStoreUnavailable, got %v", err)
	}
	if _, err := engine.LogoutAll(ctx, "subject-1"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("LogoutAll: expected ErrStoreUnavailable, got %v", err)
	}
}

func TestProviderOutageSurfacesAsUnavailable(t *testing.T) {
	provider := newMockProvider()
	provider.seed("subject-1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, engineTestConfig(), provider)
	ctx := context.Background()

	provider.mu.Lock()
	provider.failing = true
	provider.mu.Unlock()

	if _, err := engine.Login(ctx, "alice@example.com", "correct-password-123"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("Login: expected ErrProviderUnavailable, got %v", err)
	}
	if _, err := engine.Profile(ctx, "subject-1"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("Profile: expected ErrProviderUnavailable, got %v", err)
	}
	if _, err := engine.Register(ctx, "new@example.com", "password"); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("Register: expected ErrProviderUnavailable, got %v", err)
	}
}

func TestEngineCountsLifecycleMetrics(t *testing.T) {
	provider := newMockProvider()
	provider.seed("subject-1", "alice@example.com", "correct-password-123")
	engine, _ := newTestEngine(t, engineTestConfig(), provider)
	ctx := context.Background()

	result, err := engine.Login(ctx, "alice@example.com", "correct-password-123")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if _, err := engine.Login(ctx, "alice@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := engine.Refresh(ctx, result.RefreshToken); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if _, err := engine.Refresh(ctx, result.RefreshToken); !errors.Is(err, ErrRefreshInvalid) {
		t.Fatalf("expected ErrRefreshInvalid on replay, got %v", err)
	}

	snapshot := engine.MetricsSnapshot()
	expect := map[MetricID]uint64{
		MetricLoginSuccess:         1,
		MetricLoginFailure:         1,
		MetricRefreshSuccess:       1,
		MetricRefreshReuseDetected: 1,
	}
	for id, want := range expect {
		if got := snapshot.Counters[id]; got != want {
			t.Fatalf("metric %d: expected %d, got %d", id, want, got)
		}
	}
}
