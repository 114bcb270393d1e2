package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrSecretNotSet = errors.New("JWT secret not set")
	ErrInvalidToken = errors.New("invalid or expired token")
)

const DefaultTokenTTL = 24 * time.Hour

// Principal is an authenticated admin caller.
type Principal struct {
	ID       string
	Email    string
	Metadata map[string]any
}

// Claims represents the JWT payload. The subject carries the principal id.
type Claims struct {
	Email    string         `json:"email,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	jwt.RegisteredClaims
}

// Validator signs and verifies HMAC admin tokens.
type Validator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewValidator(secret string, ttl time.Duration) *Validator {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Validator{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken creates a signed JWT for the given principal
func (v *Validator) GenerateToken(p Principal) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrSecretNotSet
	}

	now := v.now()
	claims := Claims{
		Email:    p.Email,
		Metadata: p.Metadata,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a JWT string
func (v *Validator) ValidateToken(tokenStr string) (*Principal, error) {
	if len(v.secret) == 0 {
		return nil, ErrSecretNotSet
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	md := claims.Metadata
	if md == nil {
		md = map[string]any{}
	}
	return &Principal{ID: claims.Subject, Email: claims.Email, Metadata: md}, nil
}

// RegionID returns the region the principal is scoped to, read from the
// regionId or region_id metadata claim. present reports whether either claim
// is set at all; a present claim that is not a non-empty string yields
// ("", true) and must not be treated as unscoped.
func (p *Principal) RegionID() (region string, present bool) {
	if p == nil {
		return "", false
	}
	for _, k := range []string{"regionId", "region_id"} {
		v, ok := p.Metadata[k]
		if !ok || v == nil {
			continue
		}
		present = true
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", present
}
