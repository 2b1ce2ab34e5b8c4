package security

import "testing"

func TestNewRandomString(t *testing.T) {
	a, err := NewRandomString(32)
	if err != nil {
		t.Fatalf("random string: %v", err)
	}
	b, err := NewRandomString(32)
	if err != nil {
		t.Fatalf("random string: %v", err)
	}
	if a == b {
		t.Fatal("expected distinct random values")
	}
	if len(a) == 0 {
		t.Fatal("expected non-empty value")
	}
}

func TestHashRefreshTokenDeterministic(t *testing.T) {
	h1 := HashRefreshToken("tok", "pepper")
	h2 := HashRefreshToken("tok", "pepper")
	if h1 != h2 {
		t.Fatal("same token and pepper must hash identically")
	}
	if h1 == HashRefreshToken("tok", "other-pepper") {
		t.Fatal("pepper must change the digest")
	}
	if h1 == HashRefreshToken("other", "pepper") {
		t.Fatal("token must change the digest")
	}
}

func TestSignedStateRoundTrip(t *testing.T) {
	secret := "state-signing-secret"
	signed := SignState("nonce-value", secret)
	nonce, ok := VerifySignedState(signed, secret)
	if !ok {
		t.Fatal("expected signed state to verify")
	}
	if nonce != "nonce-value" {
		t.Fatalf("nonce = %q, want nonce-value", nonce)
	}
	if _, ok := VerifySignedState(signed, "wrong-secret"); ok {
		t.Fatal("state signed with another secret must not verify")
	}
	if _, ok := VerifySignedState("garbage", secret); ok {
		t.Fatal("malformed state must not verify")
	}
}
