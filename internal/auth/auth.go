package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/RenerPires/cfp-energy-technical-test-backend/internal/authz"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

const TokenTypeBearer = "bearer"

// Claims is the authorization snapshot taken when the token is minted.
type Claims struct {
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// Principal rebuilds the caller from the snapshot; unknown permission names are dropped.
func (c *Claims) Principal() *authz.Principal {
	return authz.NewPrincipal(c.Subject, c.Roles, authz.FromNames(c.Permissions))
}

type AccessToken struct {
	Value     string
	TokenType string
	ID        string
	ExpiresAt time.Time
	ExpiresIn int64
}

// TokenGenerator creates and parses access tokens.
type TokenGenerator interface {
	Mint(subject string, roles, permissions []string) (AccessToken, error)
	Parse(token string) (*Claims, error)
	// ParseForRefresh accepts expired tokens as long as they were issued within the refresh window.
	ParseForRefresh(token string) (*Claims, error)
	RefreshWindow() time.Duration
}

var (
	errTokenExpired   = errors.New("token expired")
	errRefreshExpired = errors.New("refresh window elapsed")
	errWrongIssuer    = errors.New("unexpected issuer")
)

type JWTTokenGenerator struct {
	secret        []byte
	issuer        string
	accessTTL     time.Duration
	refreshWindow time.Duration
	now           func() time.Time
}

type TokenOption func(*JWTTokenGenerator)

func WithTokenClock(now func() time.Time) TokenOption {
	return func(g *JWTTokenGenerator) { g.now = now }
}

func NewJWTTokenGenerator(secret, issuer string, accessTTL, refreshWindow time.Duration, opts ...TokenOption) *JWTTokenGenerator {
	g := &JWTTokenGenerator{
		secret:        []byte(secret),
		issuer:        issuer,
		accessTTL:     accessTTL,
		refreshWindow: refreshWindow,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *JWTTokenGenerator) RefreshWindow() time.Duration {
	return g.refreshWindow
}

func (g *JWTTokenGenerator) Mint(subject string, roles, permissions []string) (AccessToken, error) {
	now := g.now().Truncate(time.Second)
	expiresAt := now.Add(g.accessTTL)
	id := ulid.Make().String()

	claims := &Claims{
		Roles:       roles,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Issuer:    g.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return AccessToken{}, fmt.Errorf("sign token: %w", err)
	}

	return AccessToken{
		Value:     signed,
		TokenType: TokenTypeBearer,
		ID:        id,
		ExpiresAt: expiresAt,
		ExpiresIn: int64(g.accessTTL / time.Second),
	}, nil
}

func (g *JWTTokenGenerator) keyFunc(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return g.secret, nil
}

func (g *JWTTokenGenerator) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, g.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, errTokenExpired
		}
		return nil, err
	}
	return claims, nil
}

func (g *JWTTokenGenerator) ParseForRefresh(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, g.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, err
	}
	if claims.Issuer != g.issuer {
		return nil, errWrongIssuer
	}
	if claims.IssuedAt == nil || !g.now().Before(claims.IssuedAt.Add(g.refreshWindow)) {
		return nil, errRefreshExpired
	}
	return claims, nil
}
