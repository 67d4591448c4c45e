package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

// CSRF cookie and form field names understood by the admin.
const (
	CSRFCookieName = "csrftoken"
	CSRFFieldName  = "csrfmiddlewaretoken"
	CSRFHeaderName = "X-CSRFToken"
)

const csrfTokenBytes = 32

// NewCSRFToken returns a random hex token for the double-submit cookie.
func NewCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate CSRF token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CheckCSRF compares the cookie token with the submitted one in constant time.
func CheckCSRF(cookieToken, submitted string) error {
	if len(cookieToken) != csrfTokenBytes*2 || submitted == "" {
		return ErrCSRFMismatch
	}
	if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(submitted)) != 1 {
		return ErrCSRFMismatch
	}
	return nil
}
