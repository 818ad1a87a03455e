package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func testConfig() TokenConfig {
	return TokenConfig{Secret: []byte("test-secret"), Issuer: "contentbridge"}
}

func doRequest(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, c
}

func TestMiddleware_ValidToken(t *testing.T) {
	cfg := testConfig()
	token, err := IssueToken(cfg, "user-1", []string{"editor"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	rec, c := doRequest(t, Middleware(cfg), "Bearer "+token)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got, _ := c.Get(SubjectKey).(string); got != "user-1" {
		t.Errorf("subject = %q, want user-1", got)
	}
	roles, _ := c.Get(RolesKey).([]string)
	if len(roles) != 1 || roles[0] != "editor" {
		t.Errorf("roles = %v", roles)
	}
}

func TestMiddleware_RejectsMissingHeader(t *testing.T) {
	rec, _ := doRequest(t, Middleware(testConfig()), "")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMiddleware_RejectsNonBearer(t *testing.T) {
	rec, _ := doRequest(t, Middleware(testConfig()), "Basic dXNlcjpwYXNz")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMiddleware_RejectsWrongSecret(t *testing.T) {
	other := TokenConfig{Secret: []byte("other-secret"), Issuer: "contentbridge"}
	token, err := IssueToken(other, "user-1", nil, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	rec, _ := doRequest(t, Middleware(testConfig()), "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMiddleware_RejectsExpiredToken(t *testing.T) {
	cfg := testConfig()
	token, err := IssueToken(cfg, "user-1", nil, -time.Minute)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	rec, _ := doRequest(t, Middleware(cfg), "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMiddleware_RejectsWrongIssuer(t *testing.T) {
	cfg := testConfig()
	minted := TokenConfig{Secret: cfg.Secret, Issuer: "someone-else"}
	token, err := IssueToken(minted, "user-1", nil, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	rec, _ := doRequest(t, Middleware(cfg), "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestMiddleware_RejectsUnsignedToken(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rec, _ := doRequest(t, Middleware(testConfig()), "Bearer "+token)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestDevMiddleware(t *testing.T) {
	rec, c := doRequest(t, DevMiddleware(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got, _ := c.Get(SubjectKey).(string); got != "dev-user" {
		t.Errorf("subject = %q", got)
	}
}
