// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

// SessionCookieName は匿名学習者セッションIDを保持するCookieの名前。
const SessionCookieName = "ouioui_session"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// sessionIDContextKey はリクエストコンテキストにセッションIDを格納するためのキー。
	sessionIDContextKey = contextKey("session_id")
	// csrfTokenContextKey はテンプレート描画用のCSRFトークンを格納するためのキー。
	csrfTokenContextKey = contextKey("csrf_token")
)

// SessionConfig はセッションミドルウェアの設定。
type SessionConfig struct {
	MaxAge       int // 秒
	CookieSecure bool
	CookieDomain string
}

// NewSessionMiddleware は匿名セッションCookieを読み取り、セッションIDを
// リクエストコンテキストに注入するミドルウェアを返す。
// Cookieがない、またはUUIDとして不正な場合は新しいIDを発行してCookieを設定する。
// ログインは存在せず、Cookieが失われると学習者の状態も失われる。
func NewSessionMiddleware(config SessionConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := ""
			if cookie, err := r.Cookie(SessionCookieName); err == nil {
				if id, err := uuid.Parse(cookie.Value); err == nil {
					sessionID = id.String()
				}
			}

			if sessionID == "" {
				sessionID = uuid.New().String()
				slog.Debug("issued new learner session", slog.String("session_id", sessionID))
			}

			// 有効期限をスライドさせるため毎回設定し直す
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    sessionID,
				Path:     "/",
				Domain:   config.CookieDomain,
				MaxAge:   config.MaxAge,
				HttpOnly: true,
				Secure:   config.CookieSecure,
				SameSite: http.SameSiteLaxMode,
			})

			ctx := ContextWithSessionID(r.Context(), sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionIDFromContext はリクエストコンテキストからセッションIDを取得する。
// セッションミドルウェアを通過したリクエストでのみ有効。
func SessionIDFromContext(ctx context.Context) (string, error) {
	sessionID, ok := ctx.Value(sessionIDContextKey).(string)
	if !ok || sessionID == "" {
		return "", fmt.Errorf("session ID not found in context")
	}
	return sessionID, nil
}

// ContextWithSessionID はコンテキストにセッションIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}
