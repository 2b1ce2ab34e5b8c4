package security

import "testing"

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Stronger#Pass123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	ok, err := VerifyPassword(hash, "Stronger#Pass123")
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !ok {
		t.Fatal("expected password verification success")
	}
	ok, err = VerifyPassword(hash, "wrong-pass")
	if err != nil {
		t.Fatalf("verify wrong password errored: %v", err)
	}
	if ok {
		t.Fatal("expected password verification failure")
	}
}

func TestHashPasswordSaltedPerCall(t *testing.T) {
	first, err := HashPassword("Stronger#Pass123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	second, err := HashPassword("Stronger#Pass123")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	if first == second {
		t.Fatal("expected distinct encodings for the same plaintext")
	}
}

func TestVerifyAgainstAny(t *testing.T) {
	h1, _ := HashPassword("First#Pass123")
	h2, _ := HashPassword("Second#Pass123")
	h3, _ := HashPassword("Third#Pass123")
	hashes := []string{h1, h2, h3, "not-a-valid-hash"}

	ok, err := VerifyAgainstAny(hashes, "Second#Pass123")
	if err != nil {
		t.Fatalf("verify against any: %v", err)
	}
	if !ok {
		t.Fatal("expected match against stored hash")
	}

	ok, err = VerifyAgainstAny(hashes, "Fresh#Pass123")
	if err != nil {
		t.Fatalf("verify against any: %v", err)
	}
	if ok {
		t.Fatal("expected no match for unseen password")
	}

	ok, err = VerifyAgainstAny(nil, "Fresh#Pass123")
	if err != nil {
		t.Fatalf("verify against empty history: %v", err)
	}
	if ok {
		t.Fatal("empty history must never match")
	}
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	if _, err := VerifyPassword("$bogus$", "x"); err == nil {
		t.Fatal("expected error for malformed hash")
	}
}
