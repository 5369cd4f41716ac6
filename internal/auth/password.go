package auth

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinBcryptCost is the floor for the configurable cost factor.
const MinBcryptCost = 10

// HashPassword applies a salted bcrypt transform. cost below MinBcryptCost
// (including zero) is raised to MinBcryptCost.
func HashPassword(password string, cost int) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: password is empty", ErrInvalidInput)
	}
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrHashing, err)
	}
	return string(hash), nil
}

// VerifyPassword compares plaintext against a stored digest. Returns false on
// mismatch and on malformed digest input; it never distinguishes the two.
func VerifyPassword(plaintext, digest string) bool {
	if digest == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// Password strength violation reasons.
const (
	ReasonTooShort      = "too_short"
	ReasonMissingLower  = "missing_lower"
	ReasonMissingUpper  = "missing_upper"
	ReasonMissingDigit  = "missing_digit"
	ReasonMissingSymbol = "missing_symbol"
	ReasonTooCommon     = "too_common"
)

const minPasswordLength = 8

// StrengthReport is the advisory result of ScorePassword. Valid is true iff
// there are no violations; Score is 0..4.
type StrengthReport struct {
	Valid      bool     `json:"valid"`
	Score      int      `json:"score"`
	Violations []string `json:"violations,omitempty"`
}

// ScorePassword evaluates length, the four character classes and the
// common-password deny list. Each satisfied check adds a point (capped at 4);
// deny-list membership subtracts two (floored at 0) and always adds a
// violation. Signup and change-password flows must call this before hashing;
// the hasher itself does not enforce it.
func ScorePassword(password string) StrengthReport {
	var report StrengthReport
	score := 0

	if len([]rune(password)) >= minPasswordLength {
		score++
	} else {
		report.Violations = append(report.Violations, ReasonTooShort)
	}

	var hasLower, hasUpper, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	for _, class := range []struct {
		ok     bool
		reason string
	}{
		{hasLower, ReasonMissingLower},
		{hasUpper, ReasonMissingUpper},
		{hasDigit, ReasonMissingDigit},
		{hasSymbol, ReasonMissingSymbol},
	} {
		if class.ok {
			score++
		} else {
			report.Violations = append(report.Violations, class.reason)
		}
	}

	if score > 4 {
		score = 4
	}
	if isCommonPassword(password) {
		score -= 2
		if score < 0 {
			score = 0
		}
		report.Violations = append(report.Violations, ReasonTooCommon)
	}

	report.Score = score
	report.Valid = len(report.Violations) == 0
	return report
}

// commonPasswords is a deny list of frequently breached passwords, matched
// case-insensitively.
var commonPasswords = map[string]struct{}{}

func init() {
	for _, p := range []string{
		"password", "password1", "password123", "passw0rd", "123456",
		"1234567", "12345678", "123456789", "1234567890", "qwerty",
		"qwerty123", "qwertyuiop", "abc123", "111111", "123123",
		"letmein", "welcome", "welcome1", "monkey", "dragon",
		"iloveyou", "sunshine", "princess", "admin", "admin123",
		"football", "baseball", "master", "shadow", "superman",
		"batman", "trustno1", "hunter2", "secret", "freedom",
		"whatever", "starwars", "hello123", "charlie", "donald",
		"login", "access", "mustang", "michael", "jordan",
		"bitcoin", "mining123", "crypto123", "hashvest", "changeme",
	} {
		commonPasswords[p] = struct{}{}
	}
}

func isCommonPassword(password string) bool {
	_, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]
	return ok
}
