package auth

import (
	"time"

	"github.com/Abraxas-365/visionocr/errx"
	"github.com/golang-jwt/jwt/v5"
)

// Error registry for auth
var (
	ErrRegistry = errx.NewRegistry("AUTH")

	ErrMissingToken = ErrRegistry.Register("MISSING_TOKEN", errx.TypeUnauthorized, 401, "Missing bearer token")
	ErrInvalidToken = ErrRegistry.Register("INVALID_TOKEN", errx.TypeUnauthorized, 401, "Invalid or expired token")
	ErrNoSecret     = ErrRegistry.Register("NO_SECRET", errx.TypeValidation, 400, "JWT secret is not configured")
)

// Issuer is the iss claim of issued tokens
const Issuer = "visionocr"

// JWTClaims for token generation
type JWTClaims struct {
	Subject   string    `json:"sub"`
	Scopes    []string  `json:"scopes,omitempty"`
	ExpiresAt time.Time `json:"exp"`
	IssuedAt  time.Time `json:"iat"`
}

// Implement jwt.Claims interface methods
func (c *JWTClaims) GetExpirationTime() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(c.ExpiresAt), nil
}

func (c *JWTClaims) GetIssuedAt() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(c.IssuedAt), nil
}

func (c *JWTClaims) GetNotBefore() (*jwt.NumericDate, error) {
	return jwt.NewNumericDate(c.IssuedAt), nil
}

func (c *JWTClaims) GetIssuer() (string, error) {
	return Issuer, nil
}

func (c *JWTClaims) GetSubject() (string, error) {
	return c.Subject, nil
}

func (c *JWTClaims) GetAudience() (jwt.ClaimStrings, error) {
	return nil, nil
}

// HasScope reports whether the token grants scope
func (c *JWTClaims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope || s == "*" {
			return true
		}
	}
	return false
}

// TokenService issues and validates HS256 API tokens
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenService creates a token service. ttl defaults to 24h.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, ErrRegistry.New(ErrNoSecret)
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenService{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// GenerateToken signs a token for subject
func (s *TokenService) GenerateToken(subject string, scopes ...string) (string, error) {
	now := s.now().UTC().Truncate(time.Second)
	claims := &JWTClaims{
		Subject:   subject,
		Scopes:    scopes,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken parses and verifies a token
func (s *TokenService) ValidateToken(token string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrRegistry.NewWithCause(ErrInvalidToken, err)
	}
	return claims, nil
}
