package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/authcore/internal/core/domain"
	"github.com/custodia-labs/authcore/internal/observability"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{name: "valid bearer token", header: "Bearer abc123", expected: "abc123"},
		{name: "bearer with extra spaces", header: "Bearer   token-with-spaces   ", expected: "token-with-spaces"},
		{name: "lowercase bearer", header: "bearer token123", expected: "token123"},
		{name: "empty header", header: "", expected: ""},
		{name: "no bearer prefix", header: "token123", expected: ""},
		{name: "basic auth", header: "Basic dXNlcjpwYXNz", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.expected, extractBearerToken(req))
		})
	}
}

func TestGetPrincipal(t *testing.T) {
	_, ok := GetPrincipal(context.Background())
	assert.False(t, ok)

	ctx := WithPrincipal(context.Background(), domain.Principal{ID: "p-1", Role: domain.RoleAdmin})
	p, ok := GetPrincipal(ctx)
	require.True(t, ok)
	assert.Equal(t, "p-1", p.ID)
}

func TestAuthenticate(t *testing.T) {
	resolver := &mockResolver{
		resolveFn: func(ctx context.Context, token string) (domain.Principal, error) {
			switch token {
			case "good":
				return domain.Principal{ID: "p-1", Active: true}, nil
			case "inactive":
				return domain.Principal{}, domain.ErrAccountInactive
			case "down":
				return domain.Principal{}, domain.ErrUnavailable
			}
			return domain.Principal{}, domain.ErrUnauthorized
		},
	}

	var seen string
	handler := NewAuthMiddleware(resolver).Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := GetPrincipal(r.Context())
		seen = p.ID
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing token", "", http.StatusUnauthorized},
		{"valid token", "Bearer good", http.StatusNoContent},
		{"invalid token", "Bearer bad", http.StatusUnauthorized},
		{"inactive principal", "Bearer inactive", http.StatusForbidden},
		{"directory down", "Bearer down", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			assert.Equal(t, tt.status, rr.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, "p-1", seen)
			} else {
				assert.Empty(t, seen, "handler must not run")
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := NewAuthMiddleware(nil).RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("no principal", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("regular user", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), domain.Principal{Role: domain.RoleUser}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("admin", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/", nil)
		req = req.WithContext(WithPrincipal(req.Context(), domain.Principal{Role: domain.RoleAdmin}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}

func TestRecoveryMiddleware(t *testing.T) {
	handler := NewRecoveryMiddleware(nil).Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "internal server error")
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allowed origin", func(t *testing.T) {
		handler := NewCORSMiddleware([]string{"https://app.example.com"}).Handler(next)
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://app.example.com")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("disallowed origin", func(t *testing.T) {
		handler := NewCORSMiddleware([]string{"https://app.example.com"}).Handler(next)
		req := httptest.NewRequest("GET", "/", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("preflight", func(t *testing.T) {
		handler := NewCORSMiddleware([]string{"*"}).Handler(next)
		req := httptest.NewRequest("OPTIONS", "/api/v1/auth/login", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestLoggingMiddleware_RecordsRouteLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := NewLoggingMiddleware(nil, metrics).Handler(mux)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/items/42", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)

	count, err := testutil.GatherAndCount(reg, "authcore_http_request_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	families, err := reg.Gather()
	require.NoError(t, err)
	var labels []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
		}
	}
	joined := strings.Join(labels, ",")
	assert.Contains(t, joined, "route=GET /items/{id}")
	assert.Contains(t, joined, "code=418")
}
