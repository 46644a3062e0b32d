package ops

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrBadCursor is wrapped by every DecodeCursor failure.
var ErrBadCursor = errors.New("invalid cursor")

// CursorPayload is the position a list page ended at, bound to the filter
// that produced it.
type CursorPayload struct {
	Seq  int64  `json:"seq"`
	Hash string `json:"hash"`
}

// FilterHash identifies a list filter so a cursor cannot be replayed
// against a different one.
func FilterHash(name string) string {
	sum := sha256.Sum256([]byte("name\n" + name))
	return hex.EncodeToString(sum[:8])
}

// EncodeCursor returns a self-contained base64url token.
func EncodeCursor(p CursorPayload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeCursor parses a token from EncodeCursor and checks it was issued for
// the filter identified by hash.
func DecodeCursor(token, hash string) (CursorPayload, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return CursorPayload{}, fmt.Errorf("%w: base64 decode error", ErrBadCursor)
	}
	var p CursorPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return CursorPayload{}, fmt.Errorf("%w: cursor json parse error", ErrBadCursor)
	}
	if p.Seq <= 0 {
		return CursorPayload{}, fmt.Errorf("%w: bad position", ErrBadCursor)
	}
	if p.Hash != hash {
		return CursorPayload{}, fmt.Errorf("%w: issued for a different filter", ErrBadCursor)
	}
	return p, nil
}
