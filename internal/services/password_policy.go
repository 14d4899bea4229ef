package services

import (
	"strings"
	"unicode"
)

const (
	minPasswordLength = 8
	passwordSpecials  = `!@#$%^&*(),.?":{}|<>`
)

const (
	PasswordRuleMinLength = "password.min_length"
	PasswordRuleUpper     = "password.upper"
	PasswordRuleLower     = "password.lower"
	PasswordRuleDigit     = "password.digit"
	PasswordRuleSpecial   = "password.special"
)

// PasswordViolations lists every rule the password breaks, in display order.
func PasswordViolations(password string) []string {
	violations := make([]string, 0, 5)
	if len([]rune(password)) < minPasswordLength {
		violations = append(violations, PasswordRuleMinLength)
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		case strings.ContainsRune(passwordSpecials, char):
			hasSpecial = true
		}
	}

	if !hasUpper {
		violations = append(violations, PasswordRuleUpper)
	}
	if !hasLower {
		violations = append(violations, PasswordRuleLower)
	}
	if !hasDigit {
		violations = append(violations, PasswordRuleDigit)
	}
	if !hasSpecial {
		violations = append(violations, PasswordRuleSpecial)
	}
	return violations
}

func ValidatePasswordStrength(password string) error {
	violations := PasswordViolations(password)
	if len(violations) == 0 {
		return nil
	}
	return &Error{Kind: ErrWeakPassword.Kind, Key: ErrWeakPassword.Key, Details: violations}
}
