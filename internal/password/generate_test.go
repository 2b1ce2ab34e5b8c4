package password

import "testing"

func TestGenerateInitial(t *testing.T) {
	p := DefaultPolicy()

	for i := 0; i < 32; i++ {
		candidate, err := p.GenerateInitial()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(candidate) < 12 || len(candidate) > 16 {
			t.Fatalf("generated password has unexpected length %d: %q", len(candidate), candidate)
		}
		if res := p.Evaluate(candidate); !res.Valid {
			t.Fatalf("generated password fails policy: %q -> %v", candidate, res.Feedback)
		}
	}
}
