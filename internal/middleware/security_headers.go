package middleware

import "net/http"

// contentSecurityPolicy は記事画像（外部URL）と記事本文のiframe表示を許可し、
// スクリプトは自オリジンのみに制限する。
const contentSecurityPolicy = "default-src 'self'; " +
	"img-src 'self' https: http: data:; " +
	"frame-src https: http:; " +
	"style-src 'self' 'unsafe-inline'; " +
	"form-action 'self'; " +
	"frame-ancestors 'none'"

// NewSecurityHeadersMiddleware はセキュリティ関連のHTTPレスポンスヘッダーを付与するミドルウェアを返す。
func NewSecurityHeadersMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
			w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
			next.ServeHTTP(w, r)
		})
	}
}
