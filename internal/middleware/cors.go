package middleware

import (
	"net/http"
	"strings"
)

const (
	corsAllowMethods = "GET, POST, OPTIONS"
	corsMaxAge       = "86400"
)

// parseOrigins はカンマ区切りのオリジン一覧を集合にする。末尾のスラッシュは無視する。
func parseOrigins(list string) map[string]bool {
	origins := make(map[string]bool)
	for _, o := range strings.Split(list, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" && o != "*" {
			origins[o] = true
		}
	}
	return origins
}

// NewCORSMiddleware はallowedOrigins（カンマ区切り）に含まれるOriginにだけ
// 資格情報付きのCORSを許可するミドルウェアを返す。
// Cookieを送るためワイルドカードは受け付けず、一致したOriginをそのまま返す。
// 一覧が空なら同一オリジン専用として素通しする。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	origins := parseOrigins(allowedOrigins)
	allowHeaders := "Content-Type, " + csrfHeaderName

	return func(next http.Handler) http.Handler {
		if len(origins) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			if !origins[origin] {
				next.ServeHTTP(w, r)
				return
			}

			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")

			// プリフライト
			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", corsAllowMethods)
				h.Set("Access-Control-Allow-Headers", allowHeaders)
				h.Set("Access-Control-Max-Age", corsMaxAge)
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
