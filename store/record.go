package store

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"time"
)

// Record is the durable state of one issued refresh token. The stored key is
// derived from the token value; the plaintext token never reaches Redis.
type Record struct {
	SubjectID string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Revoked   bool
}

// Binary layout (fixed offsets shared with the Lua scripts in store.go):
//
//	[0]      format version
//	[1]      revoked flag (0 or 1)
//	[2..9]   issuedAt, unix seconds, big-endian
//	[10..17] expiresAt, unix seconds, big-endian
//	[18]     subject id length
//	[19..]   subject id bytes
//
// The revoked flag sits at a fixed offset so a script can flip it with
// SETRANGE without re-encoding the record.
const (
	recordFormatVersion = 1

	recordRevokedOffset = 1
	recordMinSize       = 19
)

var errRecordCorrupt = errors.New("refresh record corrupt")

func encodeRecord(r *Record) ([]byte, error) {
	if r.SubjectID == "" {
		return nil, errors.New("subject id is required")
	}
	if len(r.SubjectID) > 255 {
		return nil, errors.New("subject id too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(recordFormatVersion)
	if r.Revoked {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(r.IssuedAt.Unix()))
	buf.Write(ts[:])
	binary.BigEndian.PutUint64(ts[:], uint64(r.ExpiresAt.Unix()))
	buf.Write(ts[:])

	buf.WriteByte(byte(len(r.SubjectID)))
	buf.WriteString(r.SubjectID)

	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	if len(data) < recordMinSize {
		return nil, errRecordCorrupt
	}
	if data[0] != recordFormatVersion {
		return nil, errRecordCorrupt
	}
	if data[1] > 1 {
		return nil, errRecordCorrupt
	}

	subjectLen := int(data[18])
	if subjectLen == 0 || len(data) != recordMinSize+subjectLen {
		return nil, errRecordCorrupt
	}

	return &Record{
		SubjectID: string(data[19 : 19+subjectLen]),
		IssuedAt:  time.Unix(int64(binary.BigEndian.Uint64(data[2:10])), 0),
		ExpiresAt: time.Unix(int64(binary.BigEndian.Uint64(data[10:18])), 0),
		Revoked:   data[1] == 1,
	}, nil
}

// hashToken derives the Redis key component for a token value. base64url of
// the SHA-256 digest: compact, constant length, and never the plaintext.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
