package security

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/subhamasthu/sankalp-bot/internal/pkg/env"
)

// HashAdminToken produces the bcrypt hash stored in ADMIN_API_TOKEN_HASH.
// Used by operators when rotating the token, never at request time.
func HashAdminToken(token string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)

	return string(bytes), err
}

// VerifyAdminToken checks a presented bearer token against the configured
// hash. An empty configuration always fails closed.
func VerifyAdminToken(token string) error {
	hash := strings.TrimSpace(env.GetEnv("ADMIN_API_TOKEN_HASH", ""))
	if hash == "" {
		return errors.New("admin API token not configured")
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("missing admin token")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(token))
}
