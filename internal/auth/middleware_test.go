package auth

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestStaticAPIKeyValidatorParsing(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:alice:writer|analyst")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	identity, ok := validator.Validate(context.Background(), "k1")
	if !ok {
		t.Fatal("expected key to be valid")
	}
	if identity.Subject != "alice" {
		t.Fatalf("Subject = %q", identity.Subject)
	}
	if !identity.HasRole("writer") {
		t.Fatal("expected writer role")
	}
	if len(identity.Roles) != 2 || identity.Roles[0] != "analyst" || identity.Roles[1] != "writer" {
		t.Fatalf("Roles = %v", identity.Roles)
	}
}

func TestStaticAPIKeyValidatorRejectsBadSpec(t *testing.T) {
	for _, spec := range []string{"invalid", "k1::admin", "k1:alice:|"} {
		if _, err := NewStaticAPIKeyValidator(spec); err == nil {
			t.Fatalf("expected parse error for %q", spec)
		}
	}
}

func TestJWTValidatorAcceptsSignedToken(t *testing.T) {
	validator, err := NewJWTValidator("top-secret")
	if err != nil {
		t.Fatalf("NewJWTValidator() error = %v", err)
	}
	token := signToken(t, "top-secret", jwt.MapClaims{
		"sub":  "bob",
		"role": "admin",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	identity, ok := validator.Validate(context.Background(), token)
	if !ok {
		t.Fatal("expected token to be valid")
	}
	if identity.Subject != "bob" || !identity.HasRole("admin") {
		t.Fatalf("identity = %+v", identity)
	}
}

func TestJWTValidatorRejectsWrongSecretAndExpiredToken(t *testing.T) {
	validator, err := NewJWTValidator("top-secret")
	if err != nil {
		t.Fatalf("NewJWTValidator() error = %v", err)
	}
	wrong := signToken(t, "other", jwt.MapClaims{"sub": "bob", "exp": time.Now().Add(time.Hour).Unix()})
	if _, ok := validator.Validate(context.Background(), wrong); ok {
		t.Fatal("expected token signed with another secret to be rejected")
	}
	expired := signToken(t, "top-secret", jwt.MapClaims{"sub": "bob", "exp": time.Now().Add(-time.Hour).Unix()})
	if _, ok := validator.Validate(context.Background(), expired); ok {
		t.Fatal("expected expired token to be rejected")
	}
	noSubject := signToken(t, "top-secret", jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})
	if _, ok := validator.Validate(context.Background(), noSubject); ok {
		t.Fatal("expected token without subject to be rejected")
	}
}

func TestMiddlewareRequiresCredentials(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:alice:analyst")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), validator, "access_token_cookie")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/schema", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	req.Header.Set("X-API-Key", "nope")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestMiddlewareInjectsIdentity(t *testing.T) {
	validator, err := NewStaticAPIKeyValidator("k1:alice:analyst")
	if err != nil {
		t.Fatalf("validator setup: %v", err)
	}

	mw := Middleware(nil, validator, "")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatal("expected identity in context")
		}
		if identity.Subject != "alice" {
			t.Fatalf("Subject = %q", identity.Subject)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/schema", nil)
	req.Header.Set("X-API-Key", "k1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestMiddlewareReadsJWTCookie(t *testing.T) {
	jwtValidator, err := NewJWTValidator("top-secret")
	if err != nil {
		t.Fatalf("NewJWTValidator() error = %v", err)
	}
	staticValidator, err := NewStaticAPIKeyValidator("")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}

	var got Identity
	mw := Middleware(nil, Validators{staticValidator, jwtValidator}, "access_token_cookie")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", nil)
	req.AddCookie(&http.Cookie{
		Name:  "access_token_cookie",
		Value: signToken(t, "top-secret", jwt.MapClaims{"sub": "carol", "roles": []string{"viewer"}}),
	})
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d", rr.Code)
	}
	if got.Subject != "carol" || !got.HasRole("viewer") {
		t.Fatalf("identity = %+v", got)
	}
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return token
}
