// Package password implements the password policy: composition rules,
// reuse-against-history checks, and credential expiration arithmetic.
// All knobs are carried in an explicit Policy value injected at
// construction time so evaluation stays deterministic under test.
package password

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

var (
	uppercaseRe = regexp.MustCompile(`[A-Z]`)
	lowercaseRe = regexp.MustCompile(`[a-z]`)
	digitRe     = regexp.MustCompile(`[0-9]`)
	specialRe   = regexp.MustCompile(`[^A-Za-z0-9]`)
)

// defaultBanned holds well-known passwords rejected as substrings,
// case-insensitively.
var defaultBanned = []string{
	"password",
	"passw0rd",
	"123456",
	"qwerty",
	"admin123",
	"welcome123",
	"letmein",
	"monkey",
	"dragon",
	"master",
}

type Policy struct {
	MinLength        int
	MaxLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireDigit     bool
	RequireSpecial   bool
	// MaxSequentialRun is the longest allowed run of characters whose
	// code points ascend by exactly one. A run of MaxSequentialRun is
	// allowed; one character more fails.
	MaxSequentialRun int
	Banned           []string
	HistoryLimit     int
	ExpirationDays   int
}

func DefaultPolicy() Policy {
	return Policy{
		MinLength:        8,
		MaxLength:        128,
		RequireUppercase: true,
		RequireLowercase: true,
		RequireDigit:     true,
		RequireSpecial:   true,
		MaxSequentialRun: 3,
		Banned:           defaultBanned,
		HistoryLimit:     5,
		ExpirationDays:   90,
	}
}

// Result is the transient outcome of evaluating a candidate password.
// Valid is true iff Feedback is empty. Rules holds one stable slug per
// feedback entry, in the same order, for metrics and log labels.
type Result struct {
	Valid    bool     `json:"is_valid"`
	Feedback []string `json:"feedback"`
	Rules    []string `json:"-"`
}

func (r *Result) addViolation(rule, message string) {
	r.Valid = false
	r.Rules = append(r.Rules, rule)
	r.Feedback = append(r.Feedback, message)
}

// HistoryChecker reports whether a candidate plaintext matches one of a
// user's recent password hashes. Implementations must verify the
// candidate against each stored salted hash rather than comparing hash
// strings, and must treat an absent history as "not reused".
type HistoryChecker interface {
	WasPreviouslyUsed(ctx context.Context, userID uint, candidate string) (bool, error)
}

// Evaluate applies every composition rule to candidate and collects all
// violations so callers can present a complete checklist. Only the
// sequential-run rule short-circuits internally: at most one sequential
// message is emitted, for the first offending run.
func (p Policy) Evaluate(candidate string) Result {
	result := Result{Valid: true}

	if len(candidate) < p.MinLength {
		result.addViolation("min_length", fmt.Sprintf("Password must be at least %d characters", p.MinLength))
	}
	if len(candidate) > p.MaxLength {
		result.addViolation("max_length", fmt.Sprintf("Password must be no more than %d characters", p.MaxLength))
	}
	if p.RequireUppercase && !uppercaseRe.MatchString(candidate) {
		result.addViolation("uppercase", "Password must contain at least one uppercase letter")
	}
	if p.RequireLowercase && !lowercaseRe.MatchString(candidate) {
		result.addViolation("lowercase", "Password must contain at least one lowercase letter")
	}
	if p.RequireDigit && !digitRe.MatchString(candidate) {
		result.addViolation("digit", "Password must contain at least one digit")
	}
	if p.RequireSpecial && !specialRe.MatchString(candidate) {
		result.addViolation("special", "Password must contain at least one special character")
	}
	if p.containsBanned(candidate) {
		result.addViolation("banned", "Password is too common")
	}
	if p.hasSequentialRun(candidate) {
		result.addViolation("sequential", fmt.Sprintf("Password contains more than %d sequential characters", p.MaxSequentialRun))
	}

	return result
}

// EvaluateForUser runs Evaluate and additionally checks the candidate
// against the user's recent password history. History lookup errors are
// returned as-is; they are persistence failures, not policy violations.
func (p Policy) EvaluateForUser(ctx context.Context, candidate string, userID uint, history HistoryChecker) (Result, error) {
	result := p.Evaluate(candidate)
	if history == nil {
		return result, nil
	}
	reused, err := history.WasPreviouslyUsed(ctx, userID, candidate)
	if err != nil {
		return Result{}, err
	}
	if reused {
		result.addViolation("reuse", fmt.Sprintf(
			"Password was previously used. Please choose a different password (last %d passwords are tracked)", p.HistoryLimit))
	}
	return result, nil
}

func (p Policy) containsBanned(candidate string) bool {
	lower := strings.ToLower(candidate)
	for _, banned := range p.Banned {
		if banned == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(banned)) {
			return true
		}
	}
	return false
}

// hasSequentialRun reports whether candidate contains a run longer than
// MaxSequentialRun of characters whose code points each ascend by
// exactly one ("abcd", "1234"). Scanning stops at the first violation.
func (p Policy) hasSequentialRun(candidate string) bool {
	maxRun := p.MaxSequentialRun
	if maxRun <= 0 {
		maxRun = 3
	}
	runes := []rune(candidate)
	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1]+1 {
			run++
			if run > maxRun {
				return true
			}
			continue
		}
		run = 1
	}
	return false
}
