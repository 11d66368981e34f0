package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Abraxas-365/visionocr/errx"
	"github.com/gofiber/fiber/v2"
)

func TestTokenRoundTrip(t *testing.T) {
	svc, err := NewTokenService("s3cret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	token, err := svc.GenerateToken("worker-1", "extract")
	if err != nil {
		t.Fatal(err)
	}
	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Subject != "worker-1" || !claims.HasScope("extract") || claims.HasScope("admin") {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestTokenRejections(t *testing.T) {
	svc, _ := NewTokenService("s3cret", time.Hour)
	other, _ := NewTokenService("different", time.Hour)
	forged, _ := other.GenerateToken("x")

	expired, _ := NewTokenService("s3cret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.GenerateToken("x")

	for name, token := range map[string]string{"forged": forged, "expired": old, "garbage": "not.a.jwt"} {
		if _, err := svc.ValidateToken(token); !errx.IsCode(err, ErrInvalidToken) {
			t.Fatalf("%s: expected invalid token, got %v", name, err)
		}
	}

	if _, err := NewTokenService("", 0); !errx.IsCode(err, ErrNoSecret) {
		t.Fatalf("expected missing secret error, got %v", err)
	}
}

func TestMiddleware(t *testing.T) {
	svc, _ := NewTokenService("s3cret", time.Hour)
	app := fiber.New()
	app.Get("/x", svc.Middleware("extract"), func(c *fiber.Ctx) error {
		claims, _ := Claims(c)
		return c.SendString(claims.Subject)
	})

	good, _ := svc.GenerateToken("alice", "extract")
	noScope, _ := svc.GenerateToken("bob")

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", 401},
		{"wrong scheme", "Basic abc", 401},
		{"no scope", "Bearer " + noScope, 401},
		{"ok", "Bearer " + good, 200},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/x", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}
