package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ouioui/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Session           middleware.SessionConfig
	CSRF              middleware.CSRFConfig
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// 学習者
	LearnerService LearnerServiceInterface

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Session → Logging → CSRF → RateLimit(General)
//
// /health と /metrics はミドルウェアチェーンの外に配置する。
// 記事取得（GET / と GET /api/articles）には記事取得専用のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware(logger))

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	learnerHandler := NewLearnerHandler(deps.LearnerService)
	pageHandler := NewPageHandler(deps.LearnerService, logger).
		WithReadingLimiter(deps.RateLimiter.ArticlesMiddleware())

	// --- 学習者向けルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewSessionMiddleware(deps.Session))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// HTML画面
		r.Get("/", pageHandler.Index)
		r.Post("/start", pageHandler.Start)
		r.Post("/assessment", pageHandler.SubmitAssessment)
		r.Post("/feedback", pageHandler.Feedback)

		// JSON API
		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

			r.Get("/csrf-token", middleware.NewCSRFTokenHandler().ServeHTTP)
			r.Get("/me", learnerHandler.Me)
			r.Get("/options", learnerHandler.Options)
			r.Post("/start", learnerHandler.Start)
			r.Get("/assessment", learnerHandler.Questions)
			r.Post("/assessment", learnerHandler.SubmitAssessment)
			r.With(deps.RateLimiter.ArticlesMiddleware()).Get("/articles", learnerHandler.Articles)
			r.Post("/feedback", learnerHandler.Feedback)
		})
	})

	return r
}
