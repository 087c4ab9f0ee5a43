package accounts

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode"
)

const (
	minUsernameLen    = 3
	maxUsernameLen    = 32
	minPasswordLen    = 8
	maxPasswordBytes  = 72 // bcrypt ignores anything beyond this
	maxDisplayNameLen = 128
)

func NormaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func NormaliseUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// ValidateEmail accepts a bare address only, no display name part
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return fmt.Errorf("email address is not valid")
	}
	at := strings.LastIndex(email, "@")
	if at <= 0 || !strings.Contains(email[at+1:], ".") {
		return fmt.Errorf("email address is not valid")
	}
	return nil
}

// ValidateUsername checks the username is 3-32 characters of a-z, 0-9, '.', '_' or '-'
func ValidateUsername(username string) error {
	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return fmt.Errorf("username must be between %d and %d characters", minUsernameLen, maxUsernameLen)
	}
	for _, c := range username {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '.', c == '_', c == '-':
		default:
			return fmt.Errorf("username may only contain lowercase letters, digits, '.', '_' and '-'")
		}
	}
	return nil
}

func ValidateDisplayName(name string) error {
	if len(name) > maxDisplayNameLen {
		return fmt.Errorf("display name must be at most %d characters", maxDisplayNameLen)
	}
	return nil
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < minPasswordLen {
		return fmt.Errorf("password must be at least %d characters long", minPasswordLen)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes long", maxPasswordBytes)
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}
