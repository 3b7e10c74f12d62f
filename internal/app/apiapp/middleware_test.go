package apiapp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	authsvc "github.com/ivankudzin/brokerreviews/internal/services/auth"
)

func TestRequireRoleAllowsCaseInsensitiveMatch(t *testing.T) {
	mw := RequireRole("CONTENT_SYSTEM")

	req := httptest.NewRequest(http.MethodGet, "/internal/reviews/1", nil)
	req = req.WithContext(authsvc.WithIdentity(context.Background(), authsvc.Identity{
		Subject: "wordpress",
		Role:    "content_system",
	}))
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusNoContent)
	}
}

func TestRequireRoleRejectsForbiddenRole(t *testing.T) {
	mw := RequireRole("content_system")

	req := httptest.NewRequest(http.MethodGet, "/internal/reviews/1", nil)
	req = req.WithContext(authsvc.WithIdentity(context.Background(), authsvc.Identity{
		Subject: "crm",
		Role:    "reader",
	}))
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatalf("handler must not be called for forbidden role")
	})).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("unexpected status: got %d want %d", rr.Code, http.StatusForbidden)
	}
}

func TestServiceAuthMiddleware(t *testing.T) {
	manager := authsvc.NewJWTManager("test-secret", time.Hour)
	token, _, err := manager.GenerateServiceToken("wordpress", "content_system")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	var seen authsvc.Identity
	handler := ServiceAuthMiddleware(manager, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = authsvc.IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		header string
		status int
	}{
		{header: "", status: http.StatusUnauthorized},
		{header: "Basic abc", status: http.StatusUnauthorized},
		{header: "Bearer not-a-token", status: http.StatusUnauthorized},
		{header: "Bearer " + token, status: http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/internal/reviews", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != tc.status {
			t.Fatalf("header %q: unexpected status %d want %d", tc.header, rr.Code, tc.status)
		}
	}

	if seen.Subject != "wordpress" || seen.Role != "content_system" {
		t.Fatalf("identity not propagated: %+v", seen)
	}
}

func TestServiceAuthMiddlewareWithoutParser(t *testing.T) {
	rr := httptest.NewRecorder()
	ServiceAuthMiddleware(nil, nil)(http.NotFoundHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("unexpected status: %d", rr.Code)
	}
}

func TestRoutePathMasksWebhookSecret(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram/s3cret", nil)
	if got := routePath(req); got != "/webhooks/telegram/{secret}" {
		t.Fatalf("secret leaked into log path: %s", got)
	}
}
