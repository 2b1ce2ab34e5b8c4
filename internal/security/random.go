package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"strings"
)

// NewRandomString returns a URL-safe random string carrying n bytes of
// entropy.
func NewRandomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func NewCSRFToken() (string, error) {
	return NewRandomString(24)
}

// HashRefreshToken derives the storage key for a refresh token. The
// pepper keeps raw database dumps from being replayable as sessions.
func HashRefreshToken(token, pepper string) string {
	sum := sha256.Sum256([]byte(token + pepper))
	return hex.EncodeToString(sum[:])
}

// HashVerificationToken is used for single-use reset tokens; only the
// digest is ever stored.
func HashVerificationToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// SignState binds an OAuth state value to this deployment with an HMAC
// so the callback can reject states it did not issue.
func SignState(state, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(state))
	return state + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func VerifySignedState(signed, key string) (string, bool) {
	idx := strings.LastIndex(signed, ".")
	if idx <= 0 {
		return "", false
	}
	state, sig := signed[:idx], signed[idx+1:]
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(state))
	want := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if subtle.ConstantTimeCompare([]byte(sig), []byte(want)) != 1 {
		return "", false
	}
	return state, true
}
