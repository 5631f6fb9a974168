package news

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/ouioui/internal/model"
	"github.com/hitoshi/ouioui/internal/security"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func newTestClient(t *testing.T, server *httptest.Server, buf *bytes.Buffer) *MediastackClient {
	t.Helper()
	c := NewMediastackClient(MediastackConfig{APIKey: "test-key", Limit: 3}, server.Client(), security.NewTextSanitizer(), nil, newTestLogger(buf))
	c.endpoint = server.URL + "/v1/news"
	return c
}

func TestMediastackClient_Fetch_SendsQueryParameters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("HTTPメソッド = %s, want GET", r.Method)
		}
		q := r.URL.Query()
		want := map[string]string{
			"access_key": "test-key",
			"languages":  "fr",
			"categories": "sports",
			"limit":      "3",
		}
		for k, v := range want {
			if got := q.Get(k); got != v {
				t.Errorf("query %s = %q, want %q", k, got, v)
			}
		}
		fmt.Fprint(w, `{"data": []}`)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(t, server, &buf)

	articles, err := c.Fetch(context.Background(), "sports")
	if err != nil {
		t.Fatalf("Fetch がエラーを返した: %v", err)
	}
	if len(articles) != 0 {
		t.Errorf("記事数 = %d, want 0", len(articles))
	}
}

func TestMediastackClient_Fetch_DecodesAndNormalizes(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"pagination": {"limit": 3, "offset": 0, "count": 4, "total": 4},
			"data": [
				{"title": "<b>Le marché</b> recule", "description": "Les &amp; valeurs", "image": "https://img.example/1.jpg", "url": "https://news.example/1", "source": "lemonde"},
				{"title": "Sans lien", "description": "x", "image": null, "url": null},
				{"title": null, "description": "Sans titre", "url": "https://news.example/3"},
				{"title": "Sans image", "description": null, "image": null, "url": "https://news.example/4"}
			]
		}`)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(t, server, &buf)

	articles, err := c.Fetch(context.Background(), "")
	if err != nil {
		t.Fatalf("Fetch がエラーを返した: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("記事数 = %d, want 2 (タイトルまたはURLのない記事は除外)", len(articles))
	}

	first := articles[0]
	if first.Title != "Le marché recule" {
		t.Errorf("Title = %q, want %q", first.Title, "Le marché recule")
	}
	if first.Description != "Les & valeurs" {
		t.Errorf("Description = %q, want %q", first.Description, "Les & valeurs")
	}
	if first.Category != DefaultCategory {
		t.Errorf("Category = %q, want %q", first.Category, DefaultCategory)
	}
	if first.Level != "" || first.ImageValid {
		t.Error("取得直後の記事にレベルや画像判定が付いていてはならない")
	}

	second := articles[1]
	if second.Image != "" || second.Description != "" {
		t.Errorf("欠けた項目は空文字列になるべき: %+v", second)
	}
}

func TestMediastackClient_Fetch_StatusErrors(t *testing.T) {
	cases := []struct {
		status   int
		wantCode string
	}{
		{http.StatusUnauthorized, model.ErrCodeNewsUnauthorized},
		{http.StatusForbidden, model.ErrCodeNewsUnauthorized},
		{http.StatusTooManyRequests, model.ErrCodeNewsQuotaExceeded},
		{http.StatusInternalServerError, model.ErrCodeNewsFetchFailed},
		{http.StatusNotFound, model.ErrCodeNewsFetchFailed},
	}

	for _, tc := range cases {
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			}))
			defer server.Close()

			var buf bytes.Buffer
			c := newTestClient(t, server, &buf)

			articles, err := c.Fetch(context.Background(), "business")
			if articles != nil {
				t.Errorf("エラー時の記事一覧はnilであるべき: %v", articles)
			}
			var apiErr *model.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("err = %v, want *model.APIError", err)
			}
			if apiErr.Code != tc.wantCode {
				t.Errorf("Code = %s, want %s", apiErr.Code, tc.wantCode)
			}
		})
	}
}

func TestMediastackClient_Fetch_ErrorObjectInBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error": {"code": "usage_limit_reached", "message": "Monthly limit reached"}}`)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(t, server, &buf)

	_, err := c.Fetch(context.Background(), "business")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNewsQuotaExceeded {
		t.Fatalf("err = %v, want NEWS_QUOTA_EXCEEDED", err)
	}
}

func TestMediastackClient_Fetch_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `not json`)
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(t, server, &buf)

	if _, err := c.Fetch(context.Background(), "business"); err == nil {
		t.Fatal("不正なJSONでエラーが返されるべき")
	}
	if !bytes.Contains(buf.Bytes(), []byte("ニュースAPIのレスポンスのパースに失敗しました")) {
		t.Error("パース失敗がログに記録されるべき")
	}
}

func TestMediastackClient_Fetch_UnknownCategory(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	var buf bytes.Buffer
	c := newTestClient(t, server, &buf)

	_, err := c.Fetch(context.Background(), "politics")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeInvalidCategory {
		t.Fatalf("err = %v, want INVALID_CATEGORY", err)
	}
	if called {
		t.Error("未知のカテゴリでAPIを呼び出してはならない")
	}
}

func TestMediastackClient_Fetch_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	var buf bytes.Buffer
	c := newTestClient(t, server, &buf)
	server.Close()

	_, err := c.Fetch(context.Background(), "business")
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeNewsFetchFailed {
		t.Fatalf("err = %v, want NEWS_FETCH_FAILED", err)
	}
}

func TestParseCategory(t *testing.T) {
	for _, c := range Categories() {
		got, err := ParseCategory(c)
		if err != nil || got != c {
			t.Errorf("ParseCategory(%q) = %q, %v", c, got, err)
		}
	}
	if got, _ := ParseCategory("  Health "); got != "health" {
		t.Errorf("ParseCategory should trim and lower-case, got %q", got)
	}
	if got, _ := ParseCategory(""); got != "business" {
		t.Errorf("ParseCategory(\"\") = %q, want business", got)
	}
	if _, err := ParseCategory("weather"); err == nil {
		t.Error("ParseCategory(\"weather\") should fail")
	}
	if len(Categories()) != 7 {
		t.Errorf("len(Categories()) = %d, want 7", len(Categories()))
	}
}

func TestClassifyStatus(t *testing.T) {
	cases := map[int]statusClass{
		200: statusOK,
		401: statusUnauthorized,
		403: statusUnauthorized,
		429: statusQuota,
		500: statusUpstream,
		503: statusUpstream,
		404: statusUnknown,
		302: statusUnknown,
	}
	for code, want := range cases {
		if got := classifyStatus(code); got != want {
			t.Errorf("classifyStatus(%d) = %v, want %v", code, got, want)
		}
	}
}
