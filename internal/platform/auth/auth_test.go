package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medconnect/medconnect/internal/platform/phi"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pa55word")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if hash == "s3cret-pa55word" {
		t.Fatal("hash equals the password")
	}
	if !CheckPassword(hash, "s3cret-pa55word") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrong") {
		t.Error("wrong password accepted")
	}
}

func TestIssueAndParse(t *testing.T) {
	issuer := NewIssuer([]byte("test-signing-secret"), time.Minute)

	token, err := issuer.Issue("user-1", "doc@example.com", phi.RoleDoctor)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	claims, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Subject != "doc@example.com" || claims.UserID != "user-1" || claims.Role != phi.RoleDoctor {
		t.Errorf("claims = %+v", claims)
	}
}

func TestParseRejectsForeignSecret(t *testing.T) {
	a := NewIssuer([]byte("secret-a"), time.Minute)
	b := NewIssuer([]byte("secret-b"), time.Minute)

	token, err := a.Issue("user-1", "p@example.com", phi.RolePatient)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := b.Parse(token); err == nil {
		t.Fatal("token signed with a foreign secret parsed")
	}
}

func TestParseRejectsExpired(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), -time.Minute)
	token, err := issuer.Issue("user-1", "p@example.com", phi.RolePatient)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := issuer.Parse(token); err == nil {
		t.Fatal("expired token parsed")
	}
}

func TestNewIssuerTTL(t *testing.T) {
	if got := NewIssuer([]byte("secret"), 0).ttl; got != DefaultTokenTTL {
		t.Errorf("zero ttl = %v, want default %v", got, DefaultTokenTTL)
	}
	if got := NewIssuer([]byte("secret"), -time.Minute).ttl; got != -time.Minute {
		t.Errorf("negative ttl = %v, want -1m preserved", got)
	}
}

func TestMiddleware(t *testing.T) {
	issuer := NewIssuer([]byte("secret"), time.Minute)
	e := echo.New()

	handler := func(c echo.Context) error {
		p := PrincipalFromContext(c.Request().Context())
		if p == nil {
			t.Error("principal missing from context")
			return c.NoContent(http.StatusInternalServerError)
		}
		return c.String(http.StatusOK, string(p.Role))
	}
	mw := Middleware(issuer)

	t.Run("valid token", func(t *testing.T) {
		token, _ := issuer.Issue("user-1", "doc@example.com", phi.RoleDoctor)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		if err := mw(handler)(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if rec.Body.String() != "doctor" {
			t.Errorf("body = %q", rec.Body.String())
		}
	})

	t.Run("missing header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		c := e.NewContext(req, httptest.NewRecorder())
		err := mw(handler)(c)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusUnauthorized {
			t.Fatalf("got %v, want 401", err)
		}
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not.a.jwt")
		c := e.NewContext(req, httptest.NewRecorder())
		err := mw(handler)(c)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusUnauthorized {
			t.Fatalf("got %v, want 401", err)
		}
	})
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	handler := func(c echo.Context) error { return c.NoContent(http.StatusOK) }

	newCtx := func(p *Principal) echo.Context {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if p != nil {
			req = req.WithContext(WithPrincipal(req.Context(), p))
		}
		return e.NewContext(req, httptest.NewRecorder())
	}

	t.Run("allowed role", func(t *testing.T) {
		c := newCtx(&Principal{ID: "u", Role: phi.RoleDoctor})
		if err := RequireRole(phi.RoleDoctor, phi.RoleAdmin)(handler)(c); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("no admin bypass", func(t *testing.T) {
		c := newCtx(&Principal{ID: "u", Role: phi.RoleAdmin})
		err := RequireRole(phi.RolePatient)(handler)(c)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusForbidden {
			t.Fatalf("got %v, want 403: admin must not bypass role checks", err)
		}
	})

	t.Run("unauthenticated", func(t *testing.T) {
		c := newCtx(nil)
		err := RequireRole(phi.RolePatient)(handler)(c)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusUnauthorized {
			t.Fatalf("got %v, want 401", err)
		}
	})
}
