// Package identity classifies and normalizes the identifiers used throughout
// the migration flow: legacy Bitmask usernames, npub public keys, and
// Telegram contact handles.
package identity

import (
	"fmt"
	"strings"
)

// IdentifierType describes the shape of a legacy identifier.
type IdentifierType string

const (
	// TypeUsername is a legacy Bitmask username (1-50 characters).
	TypeUsername IdentifierType = "username"
	// TypePublicKey is an npub-style bech32 public key token.
	TypePublicKey IdentifierType = "npubKey"
	// TypeUnknown is returned for empty or unclassifiable input.
	TypeUnknown IdentifierType = "unknown"
)

const (
	// usernameSuffix is the cosmetic domain suffix stripped during
	// normalization, so "Alice@bitmask.app" and "alice" compare equal.
	usernameSuffix = "@bitmask.app"

	// npubPrefix and npubLength define the fixed shape of a public key
	// token: the prefix plus 58 bech32 data characters.
	npubPrefix = "npub1"
	npubLength = 63

	maxUsernameLength = 50

	minHandleLength = 5
	maxHandleLength = 32
)

// bech32Alphabet is the restricted character set allowed after the npub
// prefix: digits 0 and 2-9 plus lowercase letters excluding 1, b, i, o.
const bech32Alphabet = "023456789acdefghjklmnpqrstuvwxyz"

// NormalizeUsername lower-cases a legacy username and strips the well-known
// domain suffix, if present. The result is the canonical allowlist key for
// username matching.
func NormalizeUsername(username string) string {
	trimmed := strings.ToLower(strings.TrimSpace(username))
	return strings.TrimSuffix(trimmed, usernameSuffix)
}

// UsernamesMatch reports whether two usernames refer to the same account,
// ignoring case and the domain suffix.
func UsernamesMatch(a, b string) bool {
	return NormalizeUsername(a) == NormalizeUsername(b)
}

// ValidateUsername checks a legacy username against the length rule.
// Validation runs on the normalized form so "alice@bitmask.app" passes even
// though the raw string is longer than the bare username.
func ValidateUsername(username string) error {
	normalized := NormalizeUsername(username)
	if normalized == "" {
		return &ValidationError{Field: "username", Message: "Username is required"}
	}
	if len(normalized) > maxUsernameLength {
		return &ValidationError{Field: "username", Message: "Username must be 50 characters or less"}
	}
	return nil
}

// ValidatePublicKey checks an npub token for the fixed prefix, the exact
// 63-character length, and the restricted bech32 alphabet. Each defect gets
// its own user-facing message.
func ValidatePublicKey(key string) error {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return &ValidationError{Field: "npubKey", Message: "nPUB key is required"}
	}
	if !strings.HasPrefix(trimmed, npubPrefix) {
		return &ValidationError{Field: "npubKey", Message: `nPUB key must start with "npub1"`}
	}
	if len(trimmed) != npubLength {
		diff := npubLength - len(trimmed)
		direction := "short"
		if diff < 0 {
			diff = -diff
			direction = "long"
		}
		plural := "s"
		if diff == 1 {
			plural = ""
		}
		return &ValidationError{
			Field: "npubKey",
			Message: fmt.Sprintf("nPUB key must be exactly 63 characters; yours is %d character%s too %s",
				diff, plural, direction),
		}
	}
	for _, c := range trimmed[len(npubPrefix):] {
		if !strings.ContainsRune(bech32Alphabet, c) {
			return &ValidationError{
				Field:   "npubKey",
				Message: "nPUB key contains invalid characters (only lowercase letters and numbers, excluding 1, b, i, o)",
			}
		}
	}
	return nil
}

// ClassifyIdentifier detects whether an input is a username or a public key
// and validates it against the matching rule. Anything starting with the
// npub prefix is treated as a public key; everything else is a username.
func ClassifyIdentifier(identifier string) (IdentifierType, error) {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return TypeUnknown, &ValidationError{Field: "identifier", Message: "Please enter your old username or nPUB key"}
	}
	if strings.HasPrefix(trimmed, npubPrefix) {
		if err := ValidatePublicKey(trimmed); err != nil {
			return TypePublicKey, err
		}
		return TypePublicKey, nil
	}
	if err := ValidateUsername(trimmed); err != nil {
		return TypeUsername, err
	}
	return TypeUsername, nil
}

// NormalizeContactHandle strips one leading "@" from a Telegram handle and
// lower-cases it. The result is the canonical allowlist key.
func NormalizeContactHandle(handle string) string {
	trimmed := strings.ToLower(strings.TrimSpace(handle))
	return strings.TrimPrefix(trimmed, "@")
}

// ValidateContactHandle checks a Telegram handle: 5-32 characters of
// letters, digits, or underscore after stripping one leading "@".
func ValidateContactHandle(handle string) error {
	normalized := NormalizeContactHandle(handle)
	if normalized == "" {
		return &ValidationError{Field: "telegramAccount", Message: "Telegram account is required"}
	}
	if len(normalized) < minHandleLength || len(normalized) > maxHandleLength {
		return &ValidationError{Field: "telegramAccount", Message: "Telegram account must be 5-32 characters"}
	}
	for _, c := range normalized {
		isLower := c >= 'a' && c <= 'z'
		isDigit := c >= '0' && c <= '9'
		if !isLower && !isDigit && c != '_' {
			return &ValidationError{Field: "telegramAccount", Message: "Telegram account may only contain letters, numbers, and underscores"}
		}
	}
	return nil
}
