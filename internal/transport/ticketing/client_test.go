package ticketing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kailas-cloud/ticketlens/internal/domain"
	"github.com/kailas-cloud/ticketlens/internal/domain/tenant"
	"github.com/kailas-cloud/ticketlens/internal/resilience"
)

var acme = tenant.Config{TenantID: "acme", Platform: "zendesk"}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tickets/T-42" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("X-Tenant-ID") != "acme" || r.Header.Get("X-Platform") != "zendesk" {
			t.Errorf("missing tenant headers: %v", r.Header)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{
			"id":"T-42","subject":"VPN drops","body":"Every hour the VPN disconnects.",
			"priority":"high","turns":[{"author":"agent","body":"Which client version?"}]
		}`))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL + "/", Token: "tok", Retry: fastRetry()})
	tk, err := c.Fetch(context.Background(), acme, "T-42")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if tk.ID != "T-42" || tk.Subject != "VPN drops" || tk.Priority != "high" {
		t.Errorf("unexpected ticket: %+v", tk)
	}
	if len(tk.Turns) != 1 || tk.Turns[0].Author != "agent" {
		t.Errorf("unexpected turns: %+v", tk.Turns)
	}
}

func TestFetch_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, domain.ErrTicketNotFound},
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrUnauthorized},
	}
	for _, tc := range tests {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			_, err := New(Config{BaseURL: server.URL, Retry: fastRetry()}).Fetch(context.Background(), acme, "T-1")
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if calls.Load() != 1 {
				t.Errorf("permanent errors must not be retried, got %d calls", calls.Load())
			}
		})
	}
}

func TestFetch_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"subject":"ok"}`))
	}))
	defer server.Close()

	tk, err := New(Config{BaseURL: server.URL, Retry: fastRetry()}).Fetch(context.Background(), acme, "T-7")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
	if tk.ID != "T-7" {
		t.Errorf("ID should default to the requested one, got %q", tk.ID)
	}
}

func TestFetch_EmptyID(t *testing.T) {
	_, err := New(Config{BaseURL: "http://unused"}).Fetch(context.Background(), acme, " ")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}
