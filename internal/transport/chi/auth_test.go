package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		keys   []string
		path   string
		header string
		want   int
	}{
		{name: "no keys passes through", path: "/v1/search", want: http.StatusOK},
		{name: "empty keys pass through", keys: []string{"", ""}, path: "/v1/search", want: http.StatusOK},
		{name: "missing header", keys: []string{"secret"}, path: "/v1/search", want: http.StatusUnauthorized},
		{
			name: "basic scheme", keys: []string{"secret"}, path: "/v1/search",
			header: "Basic dXNlcjpwYXNz", want: http.StatusUnauthorized,
		},
		{
			name: "wrong key", keys: []string{"secret"}, path: "/v1/stats/router",
			header: "Bearer wrong-key", want: http.StatusUnauthorized,
		},
		{name: "valid key", keys: []string{"secret"}, path: "/v1/search", header: "Bearer secret", want: http.StatusOK},
		{name: "second key", keys: []string{"k1", "k2"}, path: "/v1/search", header: "Bearer k2", want: http.StatusOK},
		{name: "health exempt", keys: []string{"secret"}, path: "/health", want: http.StatusOK},
		{name: "metrics exempt", keys: []string{"secret"}, path: "/metrics", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := BearerAuthMiddleware(tt.keys)(okHandler())

			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("got %d, want %d", rr.Code, tt.want)
			}
			if tt.want != http.StatusUnauthorized {
				return
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if resp.Code != CodeUnauthorized {
				t.Errorf("code = %s, want %s", resp.Code, CodeUnauthorized)
			}
		})
	}
}
