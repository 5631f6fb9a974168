package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/ouioui/internal/article"
	"github.com/hitoshi/ouioui/internal/assessment"
	"github.com/hitoshi/ouioui/internal/classifier"
	"github.com/hitoshi/ouioui/internal/config"
	"github.com/hitoshi/ouioui/internal/database"
	"github.com/hitoshi/ouioui/internal/handler"
	"github.com/hitoshi/ouioui/internal/learner"
	"github.com/hitoshi/ouioui/internal/logger"
	"github.com/hitoshi/ouioui/internal/metrics"
	"github.com/hitoshi/ouioui/internal/middleware"
	"github.com/hitoshi/ouioui/internal/news"
	"github.com/hitoshi/ouioui/internal/repository"
	"github.com/hitoshi/ouioui/internal/security"
	"github.com/hitoshi/ouioui/internal/store"
	"github.com/hitoshi/ouioui/internal/worker/cleanup"
)

// databaseConnectTimeout は起動時のDB接続確認のタイムアウト。
const databaseConnectTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// .envを読み込み、JSON構造化ログをセットアップしてから環境変数のConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（既存の環境変数は上書きしない）
	if err := config.LoadDotEnv(); err != nil {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("news_source", cfg.NewsSource),
		slog.String("classifier_mode", cfg.ClassifierMode),
		slog.Bool("database", cfg.UsesDatabase()),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandProvision:
		return runProvision(cfg)
	default:
		return fmt.Errorf("unsupported command %q", cmd)
	}
}

// levelStore は学習者レコードの保存先。サービス層とクリーンアップジョブの両方から使う。
type levelStore interface {
	repository.LearnerSessionRepository
	cleanup.Purger
}

// openLevelStore はDATABASE_URLの有無に応じてLevel Storeを選ぶ。
// PostgreSQLを使う場合は*sql.DBも返す（ヘルスチェックと終了処理用）。
func openLevelStore(ctx context.Context, cfg *config.Config) (levelStore, *sql.DB, error) {
	if !cfg.UsesDatabase() {
		slog.Info("using in-memory level store")
		return store.NewMemoryStore(cfg.SessionMaxAgeDuration()), nil, nil
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL, databaseConnectTimeout)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("database connection established")
	return repository.NewPostgresLearnerSessionRepo(db, cfg.SessionMaxAgeDuration()), db, nil
}

// newNewsSource はNEWS_SOURCEに応じたニュース取得元を生成する。
func newNewsSource(cfg *config.Config, ssrfGuard security.SSRFGuardService, mc metrics.MetricsCollector) news.Source {
	sanitizer := security.NewTextSanitizer()

	switch cfg.NewsSource {
	case config.NewsSourceRSS:
		return news.NewRSSSource(nil, ssrfGuard, cfg.NewsTimeout, cfg.NewsLimit, sanitizer, mc, slog.Default())
	default:
		return news.NewMediastackClient(news.MediastackConfig{
			APIKey:  cfg.MediastackAPIKey,
			BaseURL: cfg.NewsBaseURL,
			Limit:   cfg.NewsLimit,
		}, &http.Client{Timeout: cfg.NewsTimeout}, sanitizer, mc, slog.Default())
	}
}

// newClassifier はCLASSIFIER_MODEに応じた難易度判定器を生成する。
// httpモードでは推論サイドカーが読み込むモデルファイルを先に用意する。
func newClassifier(ctx context.Context, cfg *config.Config) (classifier.Classifier, error) {
	switch cfg.ClassifierMode {
	case config.ClassifierModeLLM:
		return classifier.NewLLMClassifier(classifier.LLMConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIModel,
		})
	case config.ClassifierModeRoundRobin:
		slog.Warn("using round-robin classifier; levels are not based on article text")
		return classifier.NewRoundRobin(), nil
	default:
		if err := newProvisioner(cfg).Ensure(ctx); err != nil {
			return nil, fmt.Errorf("classifier setup failed: %w", err)
		}
		return classifier.NewHTTPClassifier(cfg.ClassifierURL, cfg.ClassifierTimeout, slog.Default()), nil
	}
}

func newProvisioner(cfg *config.Config) *classifier.Provisioner {
	return classifier.NewProvisioner(
		cfg.ModelDir,
		classifier.DefaultModelAssets(),
		&http.Client{Timeout: 10 * time.Minute},
		slog.Default(),
	)
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. Level Store
	levels, db, err := openLevelStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open level store: %w", err)
	}
	if db != nil {
		defer db.Close()
	}

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// 3. ニュース取得・画像チェック・難易度判定
	ssrfGuard := security.NewSSRFGuard()
	source := newNewsSource(cfg, ssrfGuard, collector)

	clf, err := newClassifier(ctx, cfg)
	if err != nil {
		return err
	}
	labeler := article.Labeler{
		Validator:  article.NewHTTPImageValidator(ssrfGuard, cfg.ImageCheckTimeout, slog.Default()),
		Classifier: clf,
		MaxTokens:  cfg.ClassifierMaxTokens,
	}

	// 4. 学習者サービス
	bank, err := assessment.DefaultBank()
	if err != nil {
		return fmt.Errorf("failed to load assessment questions: %w", err)
	}
	learnerService := learner.NewService(levels, bank, source, labeler, collector, slog.Default())

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitArticles))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger: slog.Default(),
		Session: middleware.SessionConfig{
			MaxAge:       cfg.SessionMaxAge,
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
			MaxAge:       cfg.SessionMaxAge,
		},
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		LearnerService:    learnerService,
		MetricsHandler:    metrics.Handler(reg),
	}
	if db != nil {
		deps.HealthChecker = db
	}

	router := handler.NewRouter(deps)

	// 6. メモリストアの期限切れレコードはサーバー内で削除する
	// （PostgreSQLの場合はworkerコマンドが担当する）
	if db == nil {
		job := cleanup.NewCleanupJob(levels, slog.Default())
		job.Interval = cfg.CleanupInterval
		go job.Start(ctx)
	}

	// 7. HTTPサーバーの起動
	// 記事取得はニュースAPI・画像チェック・難易度判定を直列に呼ぶため書き込みタイムアウトを長めに取る
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down HTTP server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("HTTP server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// PostgreSQLのLevel Storeから期限切れの学習者レコードを定期的に削除する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if !cfg.UsesDatabase() {
		return fmt.Errorf("worker requires DATABASE_URL; the in-memory store is cleaned by the serve command")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Connect(ctx, cfg.DatabaseURL, databaseConnectTimeout)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	repo := repository.NewPostgresLearnerSessionRepo(db, cfg.SessionMaxAgeDuration())
	job := cleanup.NewCleanupJob(repo, slog.Default())
	job.Interval = cfg.CleanupInterval

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	job.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if !cfg.UsesDatabase() {
		return fmt.Errorf("migrate requires DATABASE_URL")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runProvision は難易度判定モデルのファイルをMODEL_DIRにダウンロードする。
// 取得済みのファイルはスキップする。
func runProvision(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	if err := newProvisioner(cfg).Ensure(ctx); err != nil {
		return fmt.Errorf("model provisioning failed: %w", err)
	}

	slog.Info("model assets are ready", slog.String("dir", cfg.ModelDir))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	healthURL := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(healthURL)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はログ用に、ユーザー名・パスワードとクエリ（password=を含みうる）を
// 伏せたデータベースURLを返す。URLとして解釈できない場合は全体を伏せる。
func maskDatabaseURL(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("xxxxx")
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}
