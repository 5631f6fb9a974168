package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func testRateLimiterConfig(generalBurst, articlesBurst int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     1,
		GeneralBurst:    generalBurst,
		ArticlesRate:    1,
		ArticlesBurst:   articlesBurst,
		CleanupInterval: 1 * time.Minute,
	}
}

func requestForSession(sessionID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	return req.WithContext(ContextWithSessionID(req.Context(), sessionID))
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// --- GeneralMiddleware のテスト ---

func TestRateLimitMiddleware_AllowsRequestsWithinLimit(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(5, 10))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, requestForSession("session-1"))
		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("request %d: status = %d, want %d", i, w.Result().StatusCode, http.StatusOK)
		}
	}
}

func TestRateLimitMiddleware_Returns429WithRetryAfter(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(2, 10))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), requestForSession("session-1"))
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestForSession("session-1"))

	resp := w.Result()
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTooManyRequests)
	}
	retryAfter, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Errorf("Retry-After = %q, want positive integer", resp.Header.Get("Retry-After"))
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if body["code"] != "RATE_LIMIT_EXCEEDED" {
		t.Errorf("code = %q, want %q", body["code"], "RATE_LIMIT_EXCEEDED")
	}
	if body["category"] != "system" {
		t.Errorf("category = %q, want %q", body["category"], "system")
	}
}

func TestRateLimitMiddleware_IsolatesSessions(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 10))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), requestForSession("session-a"))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, requestForSession("session-b"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("session-b: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, requestForSession("session-a"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("session-a: status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}
}

func TestRateLimitMiddleware_NoSession_Returns500(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(5, 10))
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called without session")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	if w.Result().StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusInternalServerError)
	}
}

// --- ArticlesMiddleware のテスト ---

func TestArticlesRateLimit_IndependentFromGeneralLimit(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(100, 1))
	defer rl.Stop()

	articles := rl.ArticlesMiddleware()(okHandler())
	general := rl.GeneralMiddleware()(okHandler())

	articles.ServeHTTP(httptest.NewRecorder(), requestForSession("session-1"))

	w := httptest.NewRecorder()
	articles.ServeHTTP(w, requestForSession("session-1"))
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("articles: status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}

	// 記事取得の上限に達しても他のリクエストは通る
	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestForSession("session-1"))
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("general: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	if rl.ArticlesLimiterCount() != 1 || rl.GeneralLimiterCount() != 1 {
		t.Errorf("limiter counts = (%d, %d), want (1, 1)", rl.GeneralLimiterCount(), rl.ArticlesLimiterCount())
	}
}

// --- クリーンアップのテスト ---

func TestRateLimiter_CleanupRemovesExpiredEntries(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(5, 5))
	defer rl.Stop()

	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestForSession("old"))
	rl.ArticlesMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestForSession("old"))

	// TTLはCleanupIntervalの2倍
	rl.cleanup(time.Now().Add(1 * time.Minute))
	if rl.GeneralLimiterCount() != 1 {
		t.Errorf("entry within TTL should be kept, got %d", rl.GeneralLimiterCount())
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 || rl.ArticlesLimiterCount() != 0 {
		t.Errorf("expected 0 limiter entries after cleanup, got (%d, %d)", rl.GeneralLimiterCount(), rl.ArticlesLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(1, 1))
	rl.Stop()
	rl.Stop()
}

// --- ミドルウェアチェーンとの統合テスト ---

func TestRateLimitMiddleware_InChainWithSession(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig(2, 10))
	defer rl.Stop()

	sessionMW := NewSessionMiddleware(SessionConfig{MaxAge: 3600})
	handler := sessionMW(rl.GeneralMiddleware()(okHandler()))

	// 最初のレスポンスで発行されたCookieを使い回す
	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	var cookie *http.Cookie
	for _, c := range first.Result().Cookies() {
		if c.Name == SessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected session cookie")
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	handler.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("request 2: status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookie)
	handler.ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusTooManyRequests {
		t.Errorf("request 3: status = %d, want %d", w.Result().StatusCode, http.StatusTooManyRequests)
	}
}

// --- 設定値のテスト ---

func TestDefaultRateLimiterConfig(t *testing.T) {
	cfg := DefaultRateLimiterConfig()

	if cfg.GeneralRate != 2.0 { // 120/60 = 2
		t.Errorf("GeneralRate = %f, want 2.0", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 {
		t.Errorf("GeneralBurst = %d, want 120", cfg.GeneralBurst)
	}
	if cfg.ArticlesBurst != 20 {
		t.Errorf("ArticlesBurst = %d, want 20", cfg.ArticlesBurst)
	}
	if cfg.ArticlesRate <= 0 || cfg.ArticlesRate >= cfg.GeneralRate {
		t.Errorf("ArticlesRate = %f, want between 0 and GeneralRate", cfg.ArticlesRate)
	}
}
