/*
Package auth issues and validates the bearer tokens that protect the HTTP API.

Tokens are HS256 JWTs carrying a subject and a list of scopes:

	svc, err := auth.NewTokenService(secret, 24*time.Hour)
	token, err := svc.GenerateToken("ci-pipeline", "extract")

Protect fiber routes with the middleware:

	app.Use("/v1", svc.Middleware("extract"))

Handlers read the claims back with auth.Claims(c). Failures are errx errors
of type TypeUnauthorized and render as 401 responses.
*/
package auth
