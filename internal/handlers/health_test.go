package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func healthy(context.Context) error { return nil }

func TestHealthChecker_HealthCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		mode       string
		database   CheckFunc
		redis      CheckFunc
		wantStatus int
		wantBody   string
		wantChecks map[string]string
	}{
		{
			name:       "basic mode skips checks",
			database:   func(context.Context) error { return errors.New("down") },
			wantStatus: http.StatusOK,
			wantBody:   "healthy",
		},
		{
			name:       "extended all healthy",
			mode:       "extended",
			database:   healthy,
			redis:      healthy,
			wantStatus: http.StatusOK,
			wantBody:   "healthy",
			wantChecks: map[string]string{"database": "healthy", "redis": "healthy", "rabbitmq": "not configured"},
		},
		{
			name:       "extended database down",
			mode:       "extended",
			database:   func(context.Context) error { return errors.New("connection refused") },
			redis:      healthy,
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   "unhealthy",
			wantChecks: map[string]string{"database": "unhealthy: connection refused", "redis": "healthy", "rabbitmq": "not configured"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthChecker(tt.database).
				WithCheck("redis", tt.redis).
				WithCheck("rabbitmq", nil)

			r := httptest.NewRequest(http.MethodGet, "/healthz?mode="+tt.mode, nil)
			w := httptest.NewRecorder()
			h.HealthCheck(w, r)

			if w.Code != tt.wantStatus {
				t.Fatalf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var resp HealthResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("Failed to unmarshal response: %v", err)
			}
			if resp.Status != tt.wantBody {
				t.Errorf("Expected status %s, got %s", tt.wantBody, resp.Status)
			}
			if len(resp.Checks) != len(tt.wantChecks) {
				t.Fatalf("Expected %d checks, got %v", len(tt.wantChecks), resp.Checks)
			}
			for k, v := range tt.wantChecks {
				if resp.Checks[k] != v {
					t.Errorf("Expected check[%s] = %q, got %q", k, v, resp.Checks[k])
				}
			}
		})
	}
}

func TestHealthChecker_CheckHasDeadline(t *testing.T) {
	t.Parallel()

	var hasDeadline bool
	h := NewHealthChecker(func(ctx context.Context) error {
		_, hasDeadline = ctx.Deadline()
		return nil
	})

	w := httptest.NewRecorder()
	h.HealthCheck(w, httptest.NewRequest(http.MethodGet, "/healthz?mode=extended", nil))
	if !hasDeadline {
		t.Error("Expected checks to run with a timeout")
	}
}
