package tenantctx

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/taskplane/taskplane/shared/models"
)

// Issuer signs and verifies session credentials. A credential issued without
// a brand is tenant-unscoped; switching brands issues a fresh scoped
// credential rather than mutating the old one.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	name   string
}

// NewIssuer creates an issuer with an explicit secret and TTL
func NewIssuer(secret []byte, ttl time.Duration) *Issuer {
	return &Issuer{secret: secret, ttl: ttl, name: "taskplane"}
}

// NewIssuerFromEnv creates an issuer from JWT_SECRET and JWT_TTL_MINUTES
func NewIssuerFromEnv() (*Issuer, error) {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	ttlMinutes := 60
	if v := os.Getenv("JWT_TTL_MINUTES"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid JWT_TTL_MINUTES: %w", err)
		}
		ttlMinutes = parsed
	}

	return NewIssuer([]byte(secret), time.Duration(ttlMinutes)*time.Minute), nil
}

// Issue signs a credential for the user. brandID nil produces an unscoped
// credential; otherwise role is the membership role snapshotted at issue
// time.
func (i *Issuer) Issue(user *models.User, brandID *uuid.UUID, role models.Role) (string, *models.CredentialClaims, error) {
	now := time.Now()
	claims := &models.CredentialClaims{
		UserID:      user.ID,
		Email:       user.Email,
		BrandID:     brandID,
		Role:        role,
		GlobalAdmin: user.GlobalAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.name,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			ID:        uuid.New().String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign credential: %w", err)
	}

	return signed, claims, nil
}

// Verify parses a signed credential and returns its claims
func (i *Issuer) Verify(tokenString string) (*models.CredentialClaims, error) {
	claims := &models.CredentialClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse credential: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid credential")
	}
	return claims, nil
}
