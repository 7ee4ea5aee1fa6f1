package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/capitalize-ai/chatrelay/internal/model"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret, subject, tier string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Tier: tier,
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func authProbe(identities *[]model.Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*identities = append(*identities, GetIdentity(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthAcceptsValidToken(t *testing.T) {
	var identities []model.Identity
	handler := Auth(testSecret)(authProbe(&identities))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-1", "premium"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(identities) != 1 {
		t.Fatal("handler not reached")
	}
	if identities[0].UserID != "user-1" || identities[0].Tier != model.TierPremium {
		t.Fatalf("identity = %+v", identities[0])
	}
}

func TestAuthUnknownTierFallsBackToFree(t *testing.T) {
	var identities []model.Identity
	handler := Auth(testSecret)(authProbe(&identities))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "user-1", "enterprise"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if identities[0].Tier != model.TierFree {
		t.Fatalf("tier = %s, want free", identities[0].Tier)
	}
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	var identities []model.Identity
	handler := Auth(testSecret)(authProbe(&identities))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(identities) != 0 {
		t.Fatal("handler reached without credentials")
	}
}

func TestAuthRejectsWrongSecret(t *testing.T) {
	var identities []model.Identity
	handler := Auth(testSecret)(authProbe(&identities))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "other-secret", "user-1", "free"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthRejectsEmptySubject(t *testing.T) {
	var identities []model.Identity
	handler := Auth(testSecret)(authProbe(&identities))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, "", "free"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthRejectsMalformedHeader(t *testing.T) {
	var identities []model.Identity
	handler := Auth(testSecret)(authProbe(&identities))

	for _, header := range []string{"Basic abc", "Bearer", "not-a-token"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: status = %d, want 401", header, rec.Code)
		}
	}
}
