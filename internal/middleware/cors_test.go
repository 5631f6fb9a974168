package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type corsResult struct {
	resp   *http.Response
	called bool
}

func serveCORS(allowed, method, origin string, preflight bool) corsResult {
	var res corsResult
	h := NewCORSMiddleware(allowed)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res.called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/api/feedback", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	res.resp = w.Result()
	return res
}

func TestCORSMiddleware_AllowedOrigin(t *testing.T) {
	res := serveCORS("https://app.ouioui.example", http.MethodGet, "https://app.ouioui.example", false)

	if !res.called {
		t.Fatal("next handler should be called")
	}
	h := res.resp.Header
	if got := h.Get("Access-Control-Allow-Origin"); got != "https://app.ouioui.example" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := h.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want true", got)
	}
	if got := h.Get("Vary"); got != "Origin" {
		t.Errorf("Vary = %q, want Origin", got)
	}
	// プリフライト専用ヘッダーは通常リクエストには付けない
	if got := h.Get("Access-Control-Allow-Methods"); got != "" {
		t.Errorf("Allow-Methods = %q, want empty on simple request", got)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	res := serveCORS("http://localhost:3000", http.MethodOptions, "http://localhost:3000", true)

	if res.called {
		t.Error("preflight should not reach the handler")
	}
	if res.resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", res.resp.StatusCode)
	}
	want := map[string]string{
		"Access-Control-Allow-Methods": "GET, POST, OPTIONS",
		"Access-Control-Allow-Headers": "Content-Type, X-CSRF-Token",
		"Access-Control-Max-Age":       "86400",
	}
	for k, v := range want {
		if got := res.resp.Header.Get(k); got != v {
			t.Errorf("%s = %q, want %q", k, got, v)
		}
	}
}

func TestCORSMiddleware_MultipleOrigins(t *testing.T) {
	allowed := " http://localhost:3000 , https://app.ouioui.example/ "

	for _, origin := range []string{"http://localhost:3000", "https://app.ouioui.example"} {
		res := serveCORS(allowed, http.MethodGet, origin, false)
		if got := res.resp.Header.Get("Access-Control-Allow-Origin"); got != origin {
			t.Errorf("origin %s: Allow-Origin = %q", origin, got)
		}
	}
}

func TestCORSMiddleware_Rejected(t *testing.T) {
	tests := []struct {
		name    string
		allowed string
		origin  string
	}{
		{"other origin", "http://localhost:3000", "https://evil.example"},
		{"no origin header", "http://localhost:3000", ""},
		{"wildcard is ignored", "*", "https://evil.example"},
		{"cors disabled", "", "http://localhost:3000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := serveCORS(tt.allowed, http.MethodOptions, tt.origin, true)
			if !res.called {
				t.Error("request should fall through to the handler")
			}
			if got := res.resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
				t.Errorf("Allow-Origin = %q, want empty", got)
			}
		})
	}
}
