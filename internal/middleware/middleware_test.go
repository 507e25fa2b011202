package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/benvon/comment-pulse/internal/models"
	"github.com/benvon/comment-pulse/internal/request"
	"github.com/benvon/comment-pulse/internal/services/oidc"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type mockVerifier struct {
	verifyFunc func(ctx context.Context, token string) (*models.JWTClaims, error)
}

var _ oidc.TokenVerifier = (*mockVerifier)(nil)

func (m *mockVerifier) Verify(ctx context.Context, token string) (*models.JWTClaims, error) {
	return m.verifyFunc(ctx, token)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth(t *testing.T) {
	t.Parallel()

	verifier := &mockVerifier{verifyFunc: func(_ context.Context, token string) (*models.JWTClaims, error) {
		if token != "good" {
			return nil, errors.New("bad signature")
		}
		return &models.JWTClaims{Sub: "user-1", Email: "a@example.com", Name: "Ana"}, nil
	}}

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", wantStatus: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer good", wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer good", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var seen *models.User
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = request.UserFromContext(r)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			Auth(verifier, nil)(next).ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if seen == nil || seen.ID != "user-1" || seen.Email != "a@example.com" {
					t.Errorf("user in context = %+v", seen)
				}
				return
			}
			var body ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if body.Success || body.Error != "Unauthorized" {
				t.Errorf("unexpected error body: %+v", body)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
	}{
		{name: "get ignored", method: http.MethodGet, wantStatus: http.StatusOK},
		{name: "json", method: http.MethodPost, contentType: "application/json; charset=utf-8", body: "{}", wantStatus: http.StatusOK},
		{name: "multipart", method: http.MethodPost, contentType: "multipart/form-data; boundary=x", body: "--x--", wantStatus: http.StatusOK},
		{name: "empty post trigger", method: http.MethodPost, wantStatus: http.StatusOK},
		{name: "missing type", method: http.MethodPost, body: "{}", wantStatus: http.StatusBadRequest},
		{name: "text", method: http.MethodPost, contentType: "text/plain", body: "hi", wantStatus: http.StatusUnsupportedMediaType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(tt.method, "/", strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			ContentType(okHandler()).ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	t.Parallel()

	got := AllowedOrigins(" https://app.example.com/, http://localhost:3000 ,,https://b.example.com")
	want := []string{"http://localhost:3000", "https://app.example.com", "https://b.example.com"}
	if !slices.Equal(got, want) {
		t.Errorf("AllowedOrigins() = %v, want %v", got, want)
	}
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()

	handler := CORS("https://app.example.com")(okHandler())

	tests := []struct {
		name      string
		origin    string
		wantAllow string
	}{
		{name: "allowed origin", origin: "https://app.example.com", wantAllow: "https://app.example.com"},
		{name: "foreign origin", origin: "https://evil.example.com", wantAllow: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := httptest.NewRequest(http.MethodOptions, "/api/v1/campaigns", nil)
			req.Header.Set("Origin", tt.origin)
			req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}

func TestErrorHandler_PanicRecovery(t *testing.T) {
	t.Parallel()

	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})
	core, logs := observer.New(zap.ErrorLevel)
	handler := RequestID(ErrorHandler(zap.New(core))(panicking))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body.Success || body.Path != "/test" || body.RequestID != "req-42" || body.Timestamp == "" {
		t.Errorf("unexpected body: %+v", body)
	}
	if logs.FilterMessage("panic_recovered").Len() != 1 {
		t.Error("Expected panic to be logged")
	}
}

func TestErrorHandler_AbortHandlerPropagates(t *testing.T) {
	t.Parallel()

	aborting := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic(http.ErrAbortHandler)
	})
	handler := ErrorHandler(nil)(aborting)

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("Expected http.ErrAbortHandler to propagate, got %v", rec)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/test", nil))
	t.Error("Expected ServeHTTP to panic")
}

func TestLogging_RecordsStatus(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	created := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	handler := RequestID(Logging(zap.New(core))(created))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/campaigns", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	entries := logs.FilterMessage("http_request").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one log entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["status_code"] != int64(http.StatusCreated) {
		t.Errorf("status_code = %v, want 201", fields["status_code"])
	}
	if fields["request_id"] == "" || fields["request_id"] == nil {
		t.Error("Expected request_id to be logged")
	}
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = request.RequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if seen == "" || w.Header().Get("X-Request-ID") != seen {
		t.Errorf("generated id %q not echoed (header %q)", seen, w.Header().Get("X-Request-ID"))
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-id")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if seen != "client-id" {
		t.Errorf("request id = %q, want client-id", seen)
	}
}

func TestSecurityHeaders(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	SecurityHeaders(true)(okHandler()).ServeHTTP(w, req)

	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("Expected nosniff header")
	}
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}
}

func TestMaxRequestSize(t *testing.T) {
	t.Parallel()

	handler := MaxRequestSize(8)(okHandler())
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("this body is too long"))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", w.Code)
	}
}

func TestRateLimitKey(t *testing.T) {
	t.Parallel()

	anon := httptest.NewRequest(http.MethodGet, "/api/v1/campaigns", nil)
	anon.RemoteAddr = "192.0.2.10:52114"
	if got := RateLimitKey(anon); got != "ip:192.0.2.10" {
		t.Errorf("RateLimitKey(anonymous) = %q, want ip:192.0.2.10", got)
	}

	authed := anon.WithContext(request.WithUser(anon.Context(), &models.User{ID: "user-1"}))
	if got := RateLimitKey(authed); got != "user:user-1" {
		t.Errorf("RateLimitKey(authenticated) = %q, want user:user-1", got)
	}
}

func TestRateLimit_InvalidRate(t *testing.T) {
	t.Parallel()

	if _, err := RateLimit(nil, "lots-per-second"); err == nil {
		t.Error("Expected an error for a malformed rate")
	}
}

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		wantLevel zapcore.Level
	}{
		{name: "success", status: http.StatusOK, wantLevel: zapcore.InfoLevel},
		{name: "client error", status: http.StatusNotFound, wantLevel: zapcore.InfoLevel},
		{name: "server error", status: http.StatusServiceUnavailable, wantLevel: zapcore.WarnLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			core, logs := observer.New(zap.DebugLevel)
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("hello"))
			})
			req := httptest.NewRequest(http.MethodGet, "/api/v1/posts", nil)
			RequestID(Logging(zap.New(core))(next)).ServeHTTP(httptest.NewRecorder(), req)

			entries := logs.FilterMessage("http_request").All()
			if len(entries) != 1 {
				t.Fatalf("Expected 1 http_request entry, got %d", len(entries))
			}
			entry := entries[0]
			if entry.Level != tt.wantLevel {
				t.Errorf("level = %v, want %v", entry.Level, tt.wantLevel)
			}
			fields := entry.ContextMap()
			if fields["status_code"] != int64(tt.status) {
				t.Errorf("status_code = %v, want %d", fields["status_code"], tt.status)
			}
			if fields["response_bytes"] != int64(5) {
				t.Errorf("response_bytes = %v, want 5", fields["response_bytes"])
			}
			if fields["path"] != "/api/v1/posts" {
				t.Errorf("path = %v", fields["path"])
			}
			if id, _ := fields["request_id"].(string); id == "" {
				t.Error("Expected request_id field")
			}
		})
	}
}
