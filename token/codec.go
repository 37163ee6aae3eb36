package token

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Type discriminates the two token classes. The value is embedded in the
// "typ" claim and checked during verification.
type Type string

const (
	// TypeAccess marks short-lived tokens presented on API calls.
	TypeAccess Type = "access"
	// TypeRefresh marks long-lived tokens presented only to rotate a pair.
	TypeRefresh Type = "refresh"
)

// ErrInvalidToken is returned by [Codec.Verify] for every verification
// failure: bad signature, expired token, malformed value, or a token of the
// wrong class. Callers cannot tell these apart.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload carried by both token classes.
type Claims struct {
	UID       string `json:"uid"`
	Email     string `json:"email,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Config holds the signing material and lifetimes for both token classes.
//
// Config instances are intended to be configured during initialization and
// then treated as immutable.
type Config struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	Leeway        time.Duration
}

// Codec creates and verifies signed tokens. Safe for concurrent use.
type Codec struct {
	config Config
}

// NewCodec validates cfg and returns a ready Codec. Both secrets are
// required and must differ; there are no insecure fallbacks.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return nil, errors.New("refresh TTL must exceed access TTL")
	}
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("both token secrets are required")
	}
	if len(cfg.AccessSecret) == len(cfg.RefreshSecret) &&
		subtle.ConstantTimeCompare(cfg.AccessSecret, cfg.RefreshSecret) == 1 {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Codec{config: cfg}, nil
}

// IssueAccess signs a new access token for the subject.
func (c *Codec) IssueAccess(subjectID, email string) (string, *Claims, error) {
	return c.issue(TypeAccess, subjectID, email)
}

// IssueRefresh signs a new refresh token for the subject. The returned
// claims carry the issuance and expiry timestamps the caller persists
// alongside the token.
func (c *Codec) IssueRefresh(subjectID, email string) (string, *Claims, error) {
	return c.issue(TypeRefresh, subjectID, email)
}

func (c *Codec) issue(typ Type, subjectID, email string) (string, *Claims, error) {
	if subjectID == "" {
		return "", nil, errors.New("subject id is required")
	}

	ttl := c.config.AccessTTL
	secret := c.config.AccessSecret
	if typ == TypeRefresh {
		ttl = c.config.RefreshTTL
		secret = c.config.RefreshSecret
	}

	now := time.Now()
	claims := &Claims{
		UID:       subjectID,
		Email:     email,
		TokenType: string(typ),
		RegisteredClaims: jwt.RegisteredClaims{
			// jti makes every issued token globally unique, even for the
			// same subject within the same second.
			ID:        uuid.NewString(),
			Subject:   subjectID,
			Issuer:    c.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", nil, err
	}

	return signed, claims, nil
}

// Verify checks the signature, expiry, and class of tokenStr against the
// expected type and returns its claims. Every failure mode collapses to
// [ErrInvalidToken].
func (c *Codec) Verify(tokenStr string, expected Type) (*Claims, error) {
	secret := c.config.AccessSecret
	if expected == TypeRefresh {
		secret = c.config.RefreshSecret
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}
	if c.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(c.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.TokenType != string(expected) {
		return nil, ErrInvalidToken
	}
	if claims.UID == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
