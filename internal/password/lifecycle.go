package password

import "time"

// ComputeExpiry derives the expiration instant for a credential whose
// password changed at lastChangedAt. A non-positive expirationDays
// disables expiry and yields the zero time.
func ComputeExpiry(lastChangedAt time.Time, expirationDays int) time.Time {
	if expirationDays <= 0 {
		return time.Time{}
	}
	return lastChangedAt.Add(time.Duration(expirationDays) * 24 * time.Hour)
}

// IsExpired reports whether a credential with the given expiry is
// expired at now. The comparison is strict: a credential is still valid
// at the exact expiry instant, and a zero expiresAt never expires.
func IsExpired(expiresAt, now time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return now.After(expiresAt)
}
