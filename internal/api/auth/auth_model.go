package auth

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const tokenBytes = 20 // 40 hex chars on the wire

// generateToken creates an opaque bearer token.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// NormalizeEmail lowercases the domain portion of an email address. The
// local part is case-sensitive per RFC 5321, so its case is preserved:
// "Mohammed@GMAIL.com" normalizes to "Mohammed@gmail.com".
func NormalizeEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}
