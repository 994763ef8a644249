package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/naeri-labs/filmgraph/internal/query"
)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestJWTValidatorRejectsMissingToken(t *testing.T) {
	v := NewJWTValidator("secret", "")
	if _, err := v.ValidateToken(""); err != ErrMissingToken {
		t.Fatalf("got %v, want ErrMissingToken", err)
	}
}

func TestJWTValidatorAcceptsValidToken(t *testing.T) {
	v := NewJWTValidator("secret", "filmgraph")
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "filmgraph",
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := signToken(t, "secret", claims)

	got, err := v.ValidateToken("Bearer " + token)
	if err != nil {
		t.Fatal(err)
	}
	if got.Subject != "user-1" {
		t.Fatalf("got subject %q, want user-1", got.Subject)
	}
}

func TestJWTValidatorRejectsWrongIssuer(t *testing.T) {
	v := NewJWTValidator("secret", "filmgraph")
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "someone-else"}}
	token := signToken(t, "secret", claims)

	if _, err := v.ValidateToken("Bearer " + token); err == nil {
		t.Fatal("expected an error for mismatched issuer")
	}
}

type fakeEngine struct {
	result *query.Result
	err    error
}

func (e *fakeEngine) Run(ctx context.Context, question string) (*query.Result, error) {
	return e.result, e.err
}

func TestQueryHandlerReturnsAnswer(t *testing.T) {
	h := &QueryHandler{
		Engine: &fakeEngine{result: &query.Result{Answer: "Tom Hardy played Eames."}},
		Logger: zap.NewNop(),
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"question":"who played Eames?"}`))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Tom Hardy played Eames.") {
		t.Fatalf("got body %s", rec.Body.String())
	}
}

func TestQueryHandlerRejectsEmptyQuestion(t *testing.T) {
	h := &QueryHandler{Engine: &fakeEngine{}, Logger: zap.NewNop()}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(`{"question":""}`))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("got status %d, want 400", rec.Code)
	}
}
