package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func tenantEcho() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(TenantFromContext(r.Context())))
	})
}

var testKeys = map[string]string{"key-acme": "acme", "key-globex": "globex"}

func TestAuthMiddleware_EmptyKeys_UsesDefaultTenant(t *testing.T) {
	mw := BearerAuthMiddleware(nil, "acme")
	handler := mw(tenantEcho())

	req := httptest.NewRequest("GET", "/v1/proposals/p1", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("empty keys: got %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Body.String() != "acme" {
		t.Errorf("tenant: got %q, want acme", rr.Body.String())
	}
}

func TestAuthMiddleware_EmptyStringKeys_PassThrough(t *testing.T) {
	mw := BearerAuthMiddleware(map[string]string{"": "acme", "k": ""}, "")
	handler := mw(tenantEcho())

	req := httptest.NewRequest("GET", "/v1/proposals/p1", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("empty string keys: got %d, want %d", rr.Code, http.StatusOK)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("expected no tenant, got %q", rr.Body.String())
	}
}

func TestAuthMiddleware_MissingHeader_401(t *testing.T) {
	mw := BearerAuthMiddleware(testKeys, "")
	handler := mw(tenantEcho())

	req := httptest.NewRequest("GET", "/v1/proposals/p1", http.NoBody)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("missing header: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	var errResp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.Code != ErrorResponseCodeUnauthorized {
		t.Errorf("error code: got %s, want %s", errResp.Code, ErrorResponseCodeUnauthorized)
	}
}

func TestAuthMiddleware_BasicScheme_401(t *testing.T) {
	mw := BearerAuthMiddleware(testKeys, "")
	handler := mw(tenantEcho())

	req := httptest.NewRequest("GET", "/v1/proposals/p1", http.NoBody)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("basic scheme: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_InvalidToken_401(t *testing.T) {
	mw := BearerAuthMiddleware(testKeys, "acme")
	handler := mw(tenantEcho())

	req := httptest.NewRequest("GET", "/v1/proposals/p1", http.NoBody)
	req.Header.Set("Authorization", "Bearer wrong-key")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}
}

func TestAuthMiddleware_KeyResolvesTenant(t *testing.T) {
	mw := BearerAuthMiddleware(testKeys, "")
	handler := mw(tenantEcho())

	for key, want := range testKeys {
		req := httptest.NewRequest("GET", "/v1/proposals/p1", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+key)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("key %s: got %d, want %d", key, rr.Code, http.StatusOK)
		}
		if rr.Body.String() != want {
			t.Errorf("key %s: tenant %q, want %q", key, rr.Body.String(), want)
		}
	}
}

func TestAuthMiddleware_ExemptPaths(t *testing.T) {
	mw := BearerAuthMiddleware(testKeys, "")
	handler := mw(tenantEcho())

	for _, path := range []string{"/health", "/metrics"} {
		req := httptest.NewRequest("GET", path, http.NoBody)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("exempt path %s: got %d, want %d", path, rr.Code, http.StatusOK)
		}
	}
}
