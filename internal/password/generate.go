package password

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Character sets for generated passwords exclude visually ambiguous
// characters (I/l, O/0, 1).
const (
	generateUppercase = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	generateLowercase = "abcdefghijkmnpqrstuvwxyz"
	generateDigits    = "23456789"
	generateSpecial   = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// GenerateInitial produces a random 12-16 character password that
// satisfies the policy, for operator-seeded accounts. One character of
// each required class is placed first, the remainder is sampled from
// the union, and the result is shuffled. The candidate is re-validated
// and regenerated in the unlikely event random sampling produced a
// banned substring or a sequential run.
func (p Policy) GenerateInitial() (string, error) {
	all := generateUppercase + generateLowercase + generateDigits + generateSpecial

	for attempt := 0; attempt < 16; attempt++ {
		chars := make([]byte, 0, 16)
		for _, set := range []string{generateUppercase, generateLowercase, generateDigits, generateSpecial} {
			c, err := randomByte(set)
			if err != nil {
				return "", err
			}
			chars = append(chars, c)
		}

		extra, err := randomInt(5)
		if err != nil {
			return "", err
		}
		target := 12 + extra
		for len(chars) < target {
			c, err := randomByte(all)
			if err != nil {
				return "", err
			}
			chars = append(chars, c)
		}

		if err := shuffle(chars); err != nil {
			return "", err
		}

		candidate := string(chars)
		if p.Evaluate(candidate).Valid {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("generate initial password: exhausted attempts")
}

func randomByte(set string) (byte, error) {
	i, err := randomInt(len(set))
	if err != nil {
		return 0, err
	}
	return set[i], nil
}

func randomInt(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, fmt.Errorf("read random: %w", err)
	}
	return int(v.Int64()), nil
}

func shuffle(b []byte) error {
	for i := len(b) - 1; i > 0; i-- {
		j, err := randomInt(i + 1)
		if err != nil {
			return err
		}
		b[i], b[j] = b[j], b[i]
	}
	return nil
}
