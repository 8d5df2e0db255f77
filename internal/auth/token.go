// ABOUTME: Session token verification for BASE-authenticated end users
// ABOUTME: Uses HS256 signing with configurable secret

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// SessionClaims are the claims carried by an end-user session token.
type SessionClaims struct {
	UserID   string
	TenantID string
	Email    string
	TokenID  string // jti
}

// SessionTokenVerifier decodes and verifies end-user session tokens issued
// by the session service. Returns an error for invalid or expired tokens.
type SessionTokenVerifier interface {
	Verify(tokenString string) (*SessionClaims, error)
}

// HS256Verifier implements SessionTokenVerifier using HS256 signed JWTs
type HS256Verifier struct {
	secret []byte
}

// NewHS256Verifier creates a new session token verifier with the given secret
func NewHS256Verifier(secret []byte) *HS256Verifier {
	return &HS256Verifier{secret: secret}
}

// Verify validates the token and extracts the session claims
func (v *HS256Verifier) Verify(tokenString string) (*SessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// Validate the signing method is HS256
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return nil, fmt.Errorf("%w: email", ErrMissingClaim)
	}

	sc := &SessionClaims{Email: email}
	if sub, ok := claims["sub"].(string); ok {
		sc.UserID = sub
	}
	if tenant, ok := claims["tenantId"].(string); ok {
		sc.TenantID = tenant
	}
	if jti, ok := claims["jti"].(string); ok {
		sc.TokenID = jti
	}

	return sc, nil
}

// Generate creates a new session token for the given user with expiration.
// Used by the bootstrap command to mint tokens for newly created end users.
func (v *HS256Verifier) Generate(userID, tenantID, email, tokenID string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      userID,
		"tenantId": tenantID,
		"email":    email,
		"jti":      tokenID,
		"iat":      now.Unix(),
		"exp":      now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
