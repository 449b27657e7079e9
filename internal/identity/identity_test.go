package identity

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifyRoundTrip(t *testing.T) {
	v := NewVerifier("secret", "authenticated")
	token, err := v.Issue("user-1", "a@example.com", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	u, err := v.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if u.ID != "user-1" || u.Email != "a@example.com" {
		t.Fatalf("unexpected user %+v", u)
	}
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("secret", "authenticated")
	expired, _ := v.Issue("user-1", "", -time.Minute)
	otherKey, _ := NewVerifier("other", "authenticated").Issue("user-1", "", time.Hour)
	wrongAud, _ := NewVerifier("secret", "service").Issue("user-1", "", time.Hour)
	noSubject, _ := v.Issue("", "", time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, token := range map[string]string{
		"expired":    expired,
		"other key":  otherKey,
		"audience":   wrongAud,
		"no subject": noSubject,
		"alg none":   none,
		"garbage":    "not.a.token",
	} {
		if _, err := v.Verify(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier("secret", "")
	token, _ := v.Issue("user-42", "", time.Hour)

	var seen string
	h := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := FromContext(r.Context())
		if !ok {
			t.Fatalf("user missing from context")
		}
		seen = u.ID
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
	}{
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusNoContent},
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: CookieName, Value: token}) }, http.StatusNoContent},
		{"missing", func(r *http.Request) {}, http.StatusUnauthorized},
		{"empty bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer ") }, http.StatusUnauthorized},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		seen = ""
		req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
		tc.setup(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.status, rec.Code)
		}
		if tc.status == http.StatusNoContent && seen != "user-42" {
			t.Fatalf("%s: expected user-42, got %q", tc.name, seen)
		}
	}
}
