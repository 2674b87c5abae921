package auth

import (
	"time"

	"github.com/bookhaven/bookhaven-server/internal/domain"
)

// AccessClaims represents the claims stored in a PASETO access token.
// These are encrypted in v4.local tokens, so they're not readable without the key.
// Role is the custom claim the access-control layer keys on ("author" | "reader").
type AccessClaims struct {
	UserID string      `json:"user_id"`
	Email  string      `json:"email"`
	Role   domain.Role `json:"role"`

	// Standard PASETO claims
	Issuer     string    `json:"iss"`
	Subject    string    `json:"sub"`
	Audience   string    `json:"aud"`
	Expiration time.Time `json:"exp"`
	NotBefore  time.Time `json:"nbf"`
	IssuedAt   time.Time `json:"iat"`
	TokenID    string    `json:"jti"`
}

// IsAuthor returns true if the token carries the author role claim.
func (c *AccessClaims) IsAuthor() bool {
	return c.Role == domain.RoleAuthor
}
