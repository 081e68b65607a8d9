package middleware

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JonMunkholm/catalog-etl/internal/config"
)

func echoRemote() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.RemoteAddr))
	})
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		remote  string
		headers map[string]string
		want    string
	}{
		{
			name:    "no trusted proxies ignores headers",
			trusted: nil,
			remote:  "10.0.0.5:4000",
			headers: map[string]string{"X-Real-IP": "203.0.113.9"},
			want:    "10.0.0.5:4000",
		},
		{
			name:    "trusted proxy X-Real-IP",
			trusted: []string{"10.0.0.0/8"},
			remote:  "10.0.0.5:4000",
			headers: map[string]string{"X-Real-IP": "203.0.113.9"},
			want:    "203.0.113.9",
		},
		{
			name:    "trusted proxy first forwarded hop",
			trusted: []string{"127.0.0.1"},
			remote:  "127.0.0.1:4000",
			headers: map[string]string{"X-Forwarded-For": "198.51.100.7, 10.0.0.1"},
			want:    "198.51.100.7",
		},
		{
			name:    "untrusted source keeps remote",
			trusted: []string{"10.0.0.0/8"},
			remote:  "192.0.2.1:4000",
			headers: map[string]string{"X-Real-IP": "203.0.113.9"},
			want:    "192.0.2.1:4000",
		},
		{
			name:    "invalid header keeps remote",
			trusted: []string{"10.0.0.0/8", "not-a-cidr"},
			remote:  "10.1.2.3:4000",
			headers: map[string]string{"X-Real-IP": "spoofed"},
			want:    "10.1.2.3:4000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()

			TrustedRealIP(tt.trusted)(echoRemote()).ServeHTTP(rec, req)

			if got := rec.Body.String(); got != tt.want {
				t.Errorf("RemoteAddr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAPIKeyAuth(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		cfg      config.SecurityConfig
		key      string
		want     int
		wantCode string
	}{
		{name: "disabled", cfg: config.SecurityConfig{}, want: http.StatusNoContent},
		{name: "missing key", cfg: config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, want: http.StatusUnauthorized, wantCode: "AUTH_MISSING_KEY"},
		{name: "wrong key", cfg: config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}, key: "k2", want: http.StatusForbidden, wantCode: "AUTH_INVALID_KEY"},
		{name: "second key", cfg: config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1", "k2"}}, key: "k2", want: http.StatusNoContent},
		{name: "no keys configured", cfg: config.SecurityConfig{RequireAPIKey: true}, key: "k1", want: http.StatusForbidden, wantCode: "AUTH_INVALID_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/runs", nil)
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()

			APIKeyAuth(tt.cfg)(ok).ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.wantCode != "" && !strings.Contains(rec.Body.String(), tt.wantCode) {
				t.Errorf("body = %q, want code %s", rec.Body.String(), tt.wantCode)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	defer slog.SetDefault(prev)

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/runs", nil))
	out := buf.String()
	for _, want := range []string{"status=418", "bytes=15", "path=/api/runs"} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %q: %s", want, out)
		}
	}

	// Probes are debug level and filtered at the default info level.
	buf.Reset()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if buf.Len() != 0 {
		t.Errorf("healthz should not log at info: %s", buf.String())
	}
}
