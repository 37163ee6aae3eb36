package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrConflict is returned by [Store.Insert] when a record for the same token
// value already exists. Given the signing entropy behind token values this
// indicates an invariant violation, not a user-facing condition.
var ErrConflict = errors.New("refresh token already exists")

// ErrUnavailable wraps every Redis transport failure so callers can tell
// infrastructure trouble apart from validation outcomes.
var ErrUnavailable = errors.New("redis unavailable")

// RevokeOutcome reports what [Store.RevokeActive] observed at its
// linearization point.
type RevokeOutcome uint8

const (
	// OutcomeRevoked means the caller won: the record transitioned from
	// active to revoked in this call.
	OutcomeRevoked RevokeOutcome = iota
	// OutcomeNotFound means no record exists for the token value.
	OutcomeNotFound
	// OutcomeExpired means the record's validity window has passed; the
	// record was deleted as a side effect.
	OutcomeExpired
	// OutcomeAlreadyRevoked means another caller revoked the record first.
	OutcomeAlreadyRevoked
	// OutcomeSubjectMismatch means the record belongs to a different subject
	// than the one claimed by the presented token.
	OutcomeSubjectMismatch
	// OutcomeCorrupt means the stored blob could not be parsed.
	OutcomeCorrupt
)

const (
	revokeStatusNotFound        int64 = 0
	revokeStatusExpired         int64 = 1
	revokeStatusAlreadyRevoked  int64 = 2
	revokeStatusSubjectMismatch int64 = 3
	revokeStatusRevoked         int64 = 4
	revokeStatusCorrupt         int64 = 5
)

const insertScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[2])
redis.call("SADD", KEYS[2], ARGV[3])
local ttl = redis.call("PTTL", KEYS[2])
if ttl < tonumber(ARGV[2]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[2])
end
return 1
`

var insertLua = redis.NewScript(insertScript)

const revokeActiveScript = `
local function read_be64(s, i)
  local v = 0
  for o = 0, 7 do
    local b = string.byte(s, i + o)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local data = redis.call("GET", KEYS[1])
if not data then
  return 0
end
if #data < 19 or string.byte(data, 1) ~= 1 then
  return 5
end
local sub_len = string.byte(data, 19)
if not sub_len or sub_len == 0 or #data ~= 19 + sub_len then
  return 5
end
if string.sub(data, 20, 19 + sub_len) ~= ARGV[1] then
  return 3
end
local expires_at = read_be64(data, 11)
if not expires_at then
  return 5
end
if expires_at <= tonumber(ARGV[2]) then
  redis.call("DEL", KEYS[1])
  redis.call("SREM", KEYS[2], ARGV[3])
  return 1
end
if string.byte(data, 2) ~= 0 then
  return 2
end
redis.call("SETRANGE", KEYS[1], 1, string.char(1))
return 4
`

var revokeActiveLua = redis.NewScript(revokeActiveScript)

const revokeScript = `
local data = redis.call("GET", KEYS[1])
if not data or #data < 2 then
  return 0
end
if string.byte(data, 2) ~= 0 then
  return 0
end
redis.call("SETRANGE", KEYS[1], 1, string.char(1))
return 1
`

var revokeLua = redis.NewScript(revokeScript)

const revokeAllScript = `
local function read_be64(s, i)
  local v = 0
  for o = 0, 7 do
    local b = string.byte(s, i + o)
    if not b then
      return nil
    end
    v = v * 256 + b
  end
  return v
end

local revoked = 0
local members = redis.call("SMEMBERS", KEYS[1])
for _, hash in ipairs(members) do
  local key = ARGV[2] .. hash
  local data = redis.call("GET", key)
  if not data then
    redis.call("SREM", KEYS[1], hash)
  elseif #data < 19 or string.byte(data, 1) ~= 1 then
    redis.call("DEL", key)
    redis.call("SREM", KEYS[1], hash)
  else
    local expires_at = read_be64(data, 11)
    if not expires_at or expires_at <= tonumber(ARGV[1]) then
      redis.call("DEL", key)
      redis.call("SREM", KEYS[1], hash)
    elseif string.byte(data, 2) == 0 then
      redis.call("SETRANGE", key, 1, string.char(1))
      revoked = revoked + 1
    end
  end
end
return revoked
`

var revokeAllLua = redis.NewScript(revokeAllScript)

// Store is a Redis-backed refresh-token record store. All mutating
// operations are single Lua scripts, so every state transition is atomic
// with respect to concurrent callers.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// New creates a [Store] backed by the given Redis client. prefix sets the
// key namespace.
func New(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "ca"
	}
	return &Store{
		redis:  client,
		prefix: prefix,
	}
}

func (s *Store) recordKey(tokenHash string) string {
	return s.recordKeyPrefix() + tokenHash
}

func (s *Store) recordKeyPrefix() string {
	return s.prefix + ":rt:"
}

func (s *Store) subjectKey(subjectID string) string {
	return s.prefix + ":sub:" + subjectID
}

// Insert persists a new active record for token. The record key carries a
// TTL equal to the remaining validity window, which is the physical expiry
// sweep. Fails with [ErrConflict] when the token value already exists.
func (s *Store) Insert(ctx context.Context, token, subjectID string, issuedAt, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return errors.New("record already expired at insert")
	}

	data, err := encodeRecord(&Record{
		SubjectID: subjectID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	})
	if err != nil {
		return err
	}

	tokenHash := hashToken(token)
	keys := []string{s.recordKey(tokenHash), s.subjectKey(subjectID)}
	status, err := insertLua.Run(ctx, s.redis, keys, data, ttl.Milliseconds(), tokenHash).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if status == 0 {
		return ErrConflict
	}

	return nil
}

// FindActive returns the record for token only when it exists, is not
// revoked, has not expired, and belongs to subjectID. Every other case
// yields (nil, nil); infrastructure failures yield an [ErrUnavailable] error.
func (s *Store) FindActive(ctx context.Context, token, subjectID string, now time.Time) (*Record, error) {
	data, err := s.redis.Get(ctx, s.recordKey(hashToken(token))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	record, err := decodeRecord(data)
	if err != nil {
		return nil, nil
	}
	if record.Revoked || record.SubjectID != subjectID || !record.ExpiresAt.After(now) {
		return nil, nil
	}

	return record, nil
}

// RevokeActive atomically transitions the record for token from active to
// revoked, provided it belongs to subjectID and is still inside its validity
// window. Exactly one of any set of concurrent callers observes
// [OutcomeRevoked]; the rest observe the state the winner left behind.
func (s *Store) RevokeActive(ctx context.Context, token, subjectID string, now time.Time) (RevokeOutcome, error) {
	tokenHash := hashToken(token)
	keys := []string{s.recordKey(tokenHash), s.subjectKey(subjectID)}
	status, err := revokeActiveLua.Run(ctx, s.redis, keys, subjectID, now.Unix(), tokenHash).Int64()
	if err != nil {
		return OutcomeNotFound, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch status {
	case revokeStatusRevoked:
		return OutcomeRevoked, nil
	case revokeStatusExpired:
		return OutcomeExpired, nil
	case revokeStatusAlreadyRevoked:
		return OutcomeAlreadyRevoked, nil
	case revokeStatusSubjectMismatch:
		return OutcomeSubjectMismatch, nil
	case revokeStatusCorrupt:
		return OutcomeCorrupt, nil
	default:
		return OutcomeNotFound, nil
	}
}

// Revoke unconditionally marks the record for token revoked. Idempotent:
// a missing or already-revoked record is a no-op, not an error. Reports
// whether this call performed the transition.
func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	status, err := revokeLua.Run(ctx, s.redis, []string{s.recordKey(hashToken(token))}).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return status == 1, nil
}

// RevokeAllForSubject marks every active record owned by subjectID revoked
// and scrubs stale index entries along the way. Returns the number of
// records transitioned; zero active records is a success, not an error.
func (s *Store) RevokeAllForSubject(ctx context.Context, subjectID string, now time.Time) (int64, error) {
	keys := []string{s.subjectKey(subjectID)}
	revoked, err := revokeAllLua.Run(ctx, s.redis, keys, now.Unix(), s.recordKeyPrefix()).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return revoked, nil
}
