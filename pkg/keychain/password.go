package keychain

import (
	"fmt"
	"regexp"
	"unicode/utf8"
)

// Password length limits. The minimum is kept low because the key is
// stretched with Argon2id; strength beyond it is advisory.
const (
	MinPasswordLength = 5
	MaxPasswordLength = 128
)

// PasswordStrength represents the strength level of a password
type PasswordStrength int

const (
	PasswordWeak PasswordStrength = iota
	PasswordFair
	PasswordGood
	PasswordStrong
)

// String returns a human-readable representation of password strength
func (s PasswordStrength) String() string {
	switch s {
	case PasswordWeak:
		return "weak"
	case PasswordFair:
		return "fair"
	case PasswordGood:
		return "good"
	case PasswordStrong:
		return "strong"
	default:
		return "unknown"
	}
}

// PasswordValidationResult contains the result of password validation
type PasswordValidationResult struct {
	Valid    bool             // Whether password meets minimum requirements
	Strength PasswordStrength // Estimated strength
	Warnings []string         // Suggestions for improvement (not errors)
}

var (
	upperRe   = regexp.MustCompile(`[A-Z]`)
	lowerRe   = regexp.MustCompile(`[a-z]`)
	digitRe   = regexp.MustCompile(`\d`)
	specialRe = regexp.MustCompile(`[^A-Za-z0-9\s]`)
)

// ValidatePasswordLength enforces the hard length limits, counted in characters.
func ValidatePasswordLength(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength {
		return fmt.Errorf("%w: must be at least %d characters", ErrPasswordTooShort, MinPasswordLength)
	}
	if n > MaxPasswordLength {
		return fmt.Errorf("%w: must be at most %d characters", ErrPasswordTooLong, MaxPasswordLength)
	}
	return nil
}

// ValidatePassword checks the hard limits and estimates strength.
// Complexity findings are warnings, never errors.
func ValidatePassword(password string) *PasswordValidationResult {
	result := &PasswordValidationResult{
		Valid:    true,
		Strength: PasswordFair,
	}

	if err := ValidatePasswordLength(password); err != nil {
		result.Valid = false
		result.Strength = PasswordWeak
		result.Warnings = append(result.Warnings, err.Error())
		return result
	}

	complexity := 0
	for _, re := range []*regexp.Regexp{upperRe, lowerRe, digitRe, specialRe} {
		if re.MatchString(password) {
			complexity++
		}
	}

	n := utf8.RuneCountInString(password)
	if complexity < 2 {
		result.Warnings = append(result.Warnings,
			"Consider using a mix of uppercase, lowercase, numbers, and symbols")
	}
	if n < 12 {
		result.Warnings = append(result.Warnings,
			"Longer passwords (12+ characters) are more secure")
	}

	switch {
	case complexity >= 3 && n >= 16:
		result.Strength = PasswordStrong
	case complexity >= 2 && n >= 12:
		result.Strength = PasswordGood
	case complexity >= 2 || n >= 12:
		result.Strength = PasswordFair
	default:
		result.Strength = PasswordWeak
	}

	return result
}
