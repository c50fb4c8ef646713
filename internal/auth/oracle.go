package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"staybook/internal/shared/config"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrMissingToken    = fmt.Errorf("%w: authorization header is required", ErrUnauthenticated)
	ErrMalformedHeader = fmt.Errorf("%w: authorization header format must be Bearer {token}", ErrUnauthenticated)
	ErrInvalidToken    = fmt.Errorf("%w: invalid or expired token", ErrUnauthenticated)
)

// Oracle turns a bearer credential into a verified identity
type Oracle interface {
	Authenticate(ctx context.Context, bearer string) (Identity, error)
}

// JWTOracle verifies HS256 access tokens issued by the identity provider bridge
type JWTOracle struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewJWTOracle(cfg config.JWTConfig) *JWTOracle {
	return &JWTOracle{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		now:    time.Now,
	}
}

// Authenticate accepts either a raw token or a full "Bearer <token>" header value
func (o *JWTOracle) Authenticate(ctx context.Context, bearer string) (Identity, error) {
	tokenString, err := extractToken(bearer)
	if err != nil {
		return Identity{}, err
	}

	claims := &JWTClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return o.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, ErrInvalidToken
	}

	if claims.Type != "access" {
		return Identity{}, fmt.Errorf("%w: invalid token type", ErrUnauthenticated)
	}
	if o.issuer != "" && !claims.VerifyIssuer(o.issuer, true) {
		return Identity{}, fmt.Errorf("%w: unexpected issuer", ErrUnauthenticated)
	}
	if claims.UserID == "" {
		return Identity{}, fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
	}

	role := Role(strings.ToUpper(claims.Role))
	if !IsValidRole(string(role)) {
		role = RoleGuest
	}

	return Identity{GuestID: claims.UserID, Email: claims.Email, Role: role}, nil
}

// IssueAccessToken signs an access token for identity. The production bridge
// mints its own; this serves the seed command and tests.
func (o *JWTOracle) IssueAccessToken(identity Identity, ttl time.Duration) (string, error) {
	now := o.now()
	claims := JWTClaims{
		UserID: identity.GuestID,
		Email:  identity.Email,
		Role:   string(identity.Role),
		Type:   "access",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    o.issuer,
			Subject:   identity.GuestID,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(o.secret)
}

func extractToken(bearer string) (string, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == "" {
		return "", ErrMissingToken
	}
	parts := strings.SplitN(bearer, " ", 2)
	if len(parts) == 1 {
		return parts[0], nil
	}
	if parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return "", ErrMalformedHeader
	}
	return strings.TrimSpace(parts[1]), nil
}
