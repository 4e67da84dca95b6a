package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signed token failures.
var (
	ErrTokenMalformed = errors.New("invalid token format")
	ErrTokenSignature = errors.New("invalid token signature")
	ErrTokenExpired   = errors.New("token expired")
)

// SignedRef is the payload carried by a signed download token.
type SignedRef struct {
	Ref       string
	Path      string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates signed download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and default TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a token for ref/relPath that expires after the default TTL.
func (s *SignedURLSigner) Generate(ref, relPath string) (string, time.Time, error) {
	expiresAt := s.now().Add(s.ttl)
	token, err := s.GenerateUntil(ref, relPath, expiresAt)
	return token, expiresAt, err
}

// GenerateUntil returns a token for ref/relPath valid until expiresAt.
func (s *SignedURLSigner) GenerateUntil(ref, relPath string, expiresAt time.Time) (string, error) {
	if ref == "" || relPath == "" {
		return "", fmt.Errorf("ref and relPath required")
	}
	if strings.Contains(ref, ".") {
		return "", fmt.Errorf("ref must not contain '.'")
	}
	if len(s.secret) == 0 {
		return "", fmt.Errorf("signing secret missing")
	}
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedPath := base64.RawURLEncoding.EncodeToString([]byte(relPath))
	return strings.Join([]string{ref, ts, encodedPath, s.sign(ref, ts, encodedPath)}, "."), nil
}

// Parse validates a token and returns the embedded reference.
// When allowExpired is true, the timestamp check is skipped.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (*SignedRef, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return nil, ErrTokenMalformed
	}
	ref, ts, encodedPath, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.sign(ref, ts, encodedPath)), []byte(signature)) {
		return nil, ErrTokenSignature
	}
	rawPath, err := base64.RawURLEncoding.DecodeString(encodedPath)
	if err != nil {
		return nil, ErrTokenMalformed
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, ErrTokenMalformed
	}
	expiresAt := time.Unix(expUnix, 0)
	if !allowExpired && s.now().After(expiresAt) {
		return nil, ErrTokenExpired
	}
	return &SignedRef{Ref: ref, Path: string(rawPath), ExpiresAt: expiresAt}, nil
}

func (s *SignedURLSigner) sign(ref, ts, encodedPath string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(ref + "|" + ts + "|" + encodedPath))
	return hex.EncodeToString(mac.Sum(nil))
}
