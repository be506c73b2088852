package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

var secret = []byte("test-secret")

func TestSignAndVerify(t *testing.T) {
	tok, err := SignJWT("user-42", secret, time.Hour)
	if err != nil {
		t.Fatalf("SignJWT: %v", err)
	}
	sub, err := VerifyToken(tok, secret)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if sub != "user-42" {
		t.Fatalf("subject = %q", sub)
	}
}

func TestVerifyWrongSecret(t *testing.T) {
	tok, _ := SignJWT("user-42", secret, time.Hour)
	if _, err := VerifyToken(tok, []byte("other")); err == nil {
		t.Fatalf("expected verification failure with wrong secret")
	}
}

func TestVerifyExpired(t *testing.T) {
	tok, _ := SignJWT("user-42", secret, -time.Minute)
	if _, err := VerifyToken(tok, secret); err == nil {
		t.Fatalf("expected verification failure for expired token")
	}
}

func handlerEcho(c echo.Context) error {
	return c.String(http.StatusOK, c.Get("user_id").(string))
}

func TestMiddlewareBearer(t *testing.T) {
	e := echo.New()
	tok, _ := SignJWT("user-42", secret, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := Middleware(secret)(handlerEcho)(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
	if rec.Body.String() != "user-42" {
		t.Fatalf("user_id = %q", rec.Body.String())
	}
}

func TestMiddlewareCookie(t *testing.T) {
	e := echo.New()
	tok, _ := SignJWT("user-42", secret, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "auth", Value: tok})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := Middleware(secret)(handlerEcho)(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
}

func TestMiddlewareQueryToken(t *testing.T) {
	e := echo.New()
	tok, _ := SignJWT("user-42", secret, time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/?token="+tok, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := Middleware(secret)(handlerEcho)(c); err != nil {
		t.Fatalf("middleware: %v", err)
	}
}

func TestMiddlewareMissingToken(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := Middleware(secret)(handlerEcho)(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestSubjectFromContext(t *testing.T) {
	ctx := ContextWithSubject(context.Background(), "user-42")
	sub, ok := SubjectFromContext(ctx)
	if !ok || sub != "user-42" {
		t.Fatalf("subject = %q ok=%v", sub, ok)
	}
	if _, ok := SubjectFromContext(nil); ok {
		t.Fatalf("nil context should have no subject")
	}
}
