/*
Package authx derives the in-memory user identity from a bearer token's claims.

The token is decoded without signature verification: the backend validated it
when it was issued, and this client only needs the claims. Changing this into a
verifying decoder would be a behavior change, not a fix.
*/
package authx

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt"
)

const (
	// RoleUser is the role claim value for a regular member.
	RoleUser = "USER"

	// RoleAdmin is the role claim value for an administrator.
	RoleAdmin = "ADMIN"
)

// Identity holds the fields derived from a decoded access token.
type Identity struct {
	// Email is the subject claim. It is the primary user key and is never empty
	// for a successfully decoded identity.
	Email string

	// Nickname is the display name claim. May be empty.
	Nickname string

	// Role is the single resolved role. Empty when the token carries none.
	Role string
}

// DecodeIdentity decodes the claims of a bearer token without verifying its
// signature and maps them onto an Identity. A token that cannot be parsed, or
// whose subject claim is missing or blank, yields an error.
func DecodeIdentity(tokenString string) (Identity, error) {
	claims := jwt.MapClaims{}

	parser := &jwt.Parser{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return Identity{}, fmt.Errorf("failed to decode token claims: %w", err)
	}

	email, _ := claims["sub"].(string)
	if strings.TrimSpace(email) == "" {
		return Identity{}, fmt.Errorf("token is missing the subject claim")
	}

	nickname, _ := claims["nickname"].(string)

	return Identity{
		Email:    email,
		Nickname: nickname,
		Role:     NormalizeRole(claims),
	}, nil
}

// NormalizeRole resolves the single role value from a claim set.
// The plural "roles" claim takes precedence over the singular "role" claim,
// and a list value collapses to its first element. A "roles" claim carrying
// a null or otherwise unusable value counts as absent, so the singular claim
// still applies. An absent or empty claim resolves to the empty string.
func NormalizeRole(claims map[string]any) string {
	raw := claims["roles"]

	switch raw.(type) {
	case string, []any, []string:
	default:
		raw = claims["role"]
	}

	switch v := raw.(type) {
	case string:
		return v
	case []any:
		if len(v) == 0 {
			return ""
		}
		first, _ := v[0].(string)
		return first
	case []string:
		if len(v) == 0 {
			return ""
		}
		return v[0]
	default:
		return ""
	}
}
