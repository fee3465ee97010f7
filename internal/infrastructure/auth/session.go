package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/saasforge/backend/internal/domain/identity"
	"github.com/saasforge/backend/internal/domain/shared"
)

// JWTSessionVerifier validates session tokens issued by the web frontend's
// identity provider. Tokens are HS256 with the subscriber id in the subject
// claim.
type JWTSessionVerifier struct {
	secret []byte
	issuer string
}

// NewJWTSessionVerifier creates a verifier for the shared session secret
func NewJWTSessionVerifier(secret, issuer string) *JWTSessionVerifier {
	return &JWTSessionVerifier{secret: []byte(secret), issuer: issuer}
}

// Verify parses and validates the token and returns the subscriber id
func (v *JWTSessionVerifier) Verify(_ context.Context, token string) (uuid.UUID, error) {
	if len(v.secret) == 0 {
		return uuid.Nil, shared.ErrUnauthorized
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return uuid.Nil, shared.ErrUnauthorized
	}

	subscriberID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject claim: %w", shared.ErrUnauthorized)
	}
	return subscriberID, nil
}

var _ identity.SessionVerifier = (*JWTSessionVerifier)(nil)
