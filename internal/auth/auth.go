// Package auth issues and verifies the JWTs that protect the API. Tokens
// travel as a Bearer header, an auth cookie, or a ?token= query parameter for
// browser-initiated downloads.
package auth

import (
	"context"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

const TokenTTL = 24 * time.Hour

// SignJWT issues a signed token with the provided subject and TTL.
func SignJWT(subject string, secret []byte, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub": subject,
		"exp": time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// VerifyToken validates tok and returns its subject.
func VerifyToken(tok string, secret []byte) (string, error) {
	parsed, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", jwt.ErrTokenInvalidClaims
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", jwt.ErrTokenInvalidClaims
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", jwt.ErrTokenInvalidSubject
	}
	return sub, nil
}

// Middleware validates the request token and stores its subject under
// "user_id" on the echo context and subjectKey on the request context.
func Middleware(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tok := extractToken(c)
			if tok == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			sub, err := VerifyToken(tok, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			c.Set("user_id", sub)
			c.SetRequest(c.Request().WithContext(ContextWithSubject(c.Request().Context(), sub)))
			return next(c)
		}
	}
}

func extractToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	if ck, err := c.Cookie("auth"); err == nil {
		return ck.Value
	}
	// downloads open in a new tab where headers cannot be set
	return c.QueryParam("token")
}

type subjectKey struct{}

// ContextWithSubject stores the authenticated subject on ctx.
func ContextWithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey{}, subject)
}

// SubjectFromContext returns the subject stored by Middleware.
func SubjectFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if s, ok := ctx.Value(subjectKey{}).(string); ok {
		return s, true
	}
	return "", false
}
