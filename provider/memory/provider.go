package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/credauth/credauth"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type subjectEntry struct {
	summary credauth.SubjectSummary
	hash    []byte
}

// Provider is a map-backed subject store. Safe for concurrent use.
type Provider struct {
	mu           sync.RWMutex
	byID         map[string]*subjectEntry
	byIdentifier map[string]string
	cost         int
}

// Option configures a [Provider].
type Option func(*Provider)

// WithBcryptCost overrides the hashing cost. Tests and load harnesses use
// [bcrypt.MinCost]; the default matches production-grade hashing.
func WithBcryptCost(cost int) Option {
	return func(p *Provider) {
		p.cost = cost
	}
}

// New creates an empty Provider.
func New(options ...Option) *Provider {
	p := &Provider{
		byID:         make(map[string]*subjectEntry),
		byIdentifier: make(map[string]string),
		cost:         bcrypt.DefaultCost,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

var _ credauth.SubjectProvider = (*Provider)(nil)

// Create registers a new subject. Identifiers are case-insensitive; a taken
// identifier fails with [credauth.ErrDuplicateIdentifier].
func (p *Provider) Create(_ context.Context, identifier, secret string) (*credauth.SubjectSummary, error) {
	identifier = normalizeIdentifier(identifier)
	if identifier == "" {
		return nil, errors.New("identifier is required")
	}
	if secret == "" {
		return nil, errors.New("secret is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(secret), p.cost)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, taken := p.byIdentifier[identifier]; taken {
		return nil, credauth.ErrDuplicateIdentifier
	}

	entry := &subjectEntry{
		summary: credauth.SubjectSummary{
			ID:        uuid.NewString(),
			Email:     identifier,
			CreatedAt: time.Now(),
		},
		hash: hash,
	}
	p.byID[entry.summary.ID] = entry
	p.byIdentifier[identifier] = entry.summary.ID

	summary := entry.summary
	return &summary, nil
}

// VerifyCredentials returns the subject summary when identifier/secret
// match, (nil, nil) otherwise.
func (p *Provider) VerifyCredentials(_ context.Context, identifier, secret string) (*credauth.SubjectSummary, error) {
	p.mu.RLock()
	id, ok := p.byIdentifier[normalizeIdentifier(identifier)]
	var entry *subjectEntry
	if ok {
		entry = p.byID[id]
	}
	p.mu.RUnlock()

	if entry == nil {
		// Burn a comparison anyway so unknown identifiers cost the same as
		// wrong secrets.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		return nil, nil
	}
	if bcrypt.CompareHashAndPassword(entry.hash, []byte(secret)) != nil {
		return nil, nil
	}

	summary := entry.summary
	return &summary, nil
}

// FindByID returns the subject summary, or (nil, nil) when absent.
func (p *Provider) FindByID(_ context.Context, id string) (*credauth.SubjectSummary, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.byID[id]
	if !ok {
		return nil, nil
	}

	summary := entry.summary
	return &summary, nil
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

// dummyHash is a valid bcrypt hash of an unguessable value, used to equalize
// verification cost for unknown identifiers.
var dummyHash = func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return hash
}()
