package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// CredentialClaims is the claim set carried by a signed session credential.
// BrandID is nil for a tenant-unscoped credential (post-login, pre-switch).
// Role is a snapshot taken when the credential was issued; role changes
// require a new switch or re-login.
type CredentialClaims struct {
	UserID      uuid.UUID  `json:"uid"`
	Email       string     `json:"email"`
	BrandID     *uuid.UUID `json:"brand_id,omitempty"`
	Role        Role       `json:"role,omitempty"`
	GlobalAdmin bool       `json:"global_admin,omitempty"`
	jwt.RegisteredClaims
}

// IsScoped reports whether the credential is bound to a brand
func (c *CredentialClaims) IsScoped() bool {
	return c.BrandID != nil && *c.BrandID != uuid.Nil
}

// UserProfile is the credential view cached in Redis alongside the token hash
type UserProfile struct {
	UserID      uuid.UUID  `json:"user_id"`
	Email       string     `json:"email"`
	BrandID     *uuid.UUID `json:"brand_id,omitempty"`
	Role        string     `json:"role"`
	GlobalAdmin bool       `json:"global_admin"`
}

// TokenSession represents a credential session stored in Redis
type TokenSession struct {
	UserProfile UserProfile `json:"user_profile"`
	CreatedAt   time.Time   `json:"created_at"`
	LastUsedAt  time.Time   `json:"last_used_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
	SessionID   string      `json:"session_id"`
}

func (ts *TokenSession) IsExpired() bool {
	return time.Now().After(ts.ExpiresAt)
}

func (ts *TokenSession) UpdateLastUsed() {
	ts.LastUsedAt = time.Now()
}
