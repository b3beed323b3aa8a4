// Package jwttest mints HS256 access tokens shaped like the ones the account
// service issues, for tests of code that only verifies them.
package jwttest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTTL matches the account service's access token lifetime.
const AccessTTL = 15 * time.Minute

// Sign returns a token for userID signed with secret that expires after ttl.
// A negative ttl yields an already expired token.
func Sign(t testing.TB, secret []byte, userID uuid.UUID, ttl time.Duration) string {
	t.Helper()
	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"email":   userID.String() + "@example.com",
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}
