package auth

import (
	"strings"

	"github.com/Abraxas-365/visionocr/errx"
	"github.com/gofiber/fiber/v2"
)

// ClaimsKey is the fiber Locals key holding the validated claims
const ClaimsKey = "auth.claims"

// Middleware rejects requests without a valid bearer token. When scope is
// set the token must grant it.
func (s *TokenService) Middleware(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			return ErrRegistry.New(ErrMissingToken).ToFiber(c)
		}
		claims, err := s.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			if e, ok := errx.As(err); ok {
				return e.ToFiber(c)
			}
			return err
		}
		if scope != "" && !claims.HasScope(scope) {
			return ErrRegistry.NewWithMessage(ErrInvalidToken, "token lacks scope").
				WithDetail("scope", scope).
				ToFiber(c)
		}
		c.Locals(ClaimsKey, claims)
		return c.Next()
	}
}

// Claims returns the claims stored by Middleware
func Claims(c *fiber.Ctx) (*JWTClaims, bool) {
	claims, ok := c.Locals(ClaimsKey).(*JWTClaims)
	return claims, ok
}
