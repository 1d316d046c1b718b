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

var (
	// ErrTokenMalformed is returned for tokens that cannot be decoded.
	ErrTokenMalformed = errors.New("malformed token")
	// ErrTokenSignature is returned when the HMAC does not match.
	ErrTokenSignature = errors.New("invalid token signature")
	// ErrTokenExpired is returned once the embedded expiry has passed.
	ErrTokenExpired = errors.New("token expired")
)

// TokenSigner issues opaque, URL safe tokens binding a subject to an expiry.
// Acknowledgement slips embed these tokens in their QR code.
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenSigner constructs a signer with the provided secret and TTL.
func NewTokenSigner(secret string, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Sign returns a token for subject together with its expiry.
func (s *TokenSigner) Sign(subject string) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, fmt.Errorf("subject required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl).UTC()
	encoded := base64.RawURLEncoding.EncodeToString([]byte(subject))
	exp := strconv.FormatInt(expiresAt.Unix(), 36)
	return strings.Join([]string{encoded, exp, s.mac(encoded, exp)}, "."), expiresAt, nil
}

// Verify checks the signature and expiry and returns the subject.
func (s *TokenSigner) Verify(token string) (string, time.Time, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", time.Time{}, ErrTokenMalformed
	}
	encoded, exp, signature := parts[0], parts[1], parts[2]
	if !hmac.Equal([]byte(s.mac(encoded, exp)), []byte(signature)) {
		return "", time.Time{}, ErrTokenSignature
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", time.Time{}, ErrTokenMalformed
	}
	unix, err := strconv.ParseInt(exp, 36, 64)
	if err != nil {
		return "", time.Time{}, ErrTokenMalformed
	}
	expiresAt := time.Unix(unix, 0).UTC()
	if s.now().After(expiresAt) {
		return "", expiresAt, ErrTokenExpired
	}
	return string(raw), expiresAt, nil
}

func (s *TokenSigner) mac(encoded, exp string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(encoded + "|" + exp))
	return hex.EncodeToString(mac.Sum(nil))
}
