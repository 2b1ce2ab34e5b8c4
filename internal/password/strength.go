package password

// Strength is a coarse score for client-side meters. It is advisory
// only; acceptance is decided by Evaluate.
type Strength string

const (
	StrengthWeak   Strength = "weak"
	StrengthFair   Strength = "fair"
	StrengthGood   Strength = "good"
	StrengthStrong Strength = "strong"
)

// Score rates a candidate by length and character variety. A banned
// password always scores weak regardless of composition.
func (p Policy) Score(candidate string) Strength {
	score := 0

	switch {
	case len(candidate) >= 16:
		score += 3
	case len(candidate) >= 12:
		score += 2
	case len(candidate) >= 8:
		score++
	}

	if uppercaseRe.MatchString(candidate) {
		score++
	}
	if lowercaseRe.MatchString(candidate) {
		score++
	}
	if digitRe.MatchString(candidate) {
		score++
	}
	if specialRe.MatchString(candidate) {
		score++
	}
	if len(candidate) >= 20 {
		score++
	}
	if p.containsBanned(candidate) {
		score = 0
	}

	switch {
	case score <= 2:
		return StrengthWeak
	case score <= 4:
		return StrengthFair
	case score <= 6:
		return StrengthGood
	default:
		return StrengthStrong
	}
}
