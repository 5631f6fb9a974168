package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hitoshi/ouioui/internal/metrics"
	"github.com/hitoshi/ouioui/internal/model"
)

const (
	// defaultMediastackEndpoint はmediastackのニュース取得エンドポイント。
	defaultMediastackEndpoint = "http://api.mediastack.com/v1/news"
	// DefaultLimit は1回の取得で要求する記事数。
	DefaultLimit = 25
	// maxResponseSize はレスポンスボディの最大サイズ（5MB）。
	maxResponseSize = 5 * 1024 * 1024
)

// MediastackConfig はmediastackクライアントの設定。
type MediastackConfig struct {
	APIKey  string
	BaseURL string // 空の場合は既定のエンドポイント
	Limit   int
}

// MediastackClient はmediastack APIからフランス語記事を取得する。
type MediastackClient struct {
	httpClient *http.Client
	sanitizer  TextSanitizer
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	apiKey     string
	limit      int
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewMediastackClient はMediastackClientの新しいインスタンスを生成する。
func NewMediastackClient(cfg MediastackConfig, httpClient *http.Client, sanitizer TextSanitizer, mc metrics.MetricsCollector, logger *slog.Logger) *MediastackClient {
	endpoint := cfg.BaseURL
	if endpoint == "" {
		endpoint = defaultMediastackEndpoint
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	return &MediastackClient{
		httpClient: httpClient,
		sanitizer:  sanitizer,
		metrics:    mc,
		logger:     logger,
		apiKey:     cfg.APIKey,
		limit:      limit,
		endpoint:   endpoint,
	}
}

// mediastackResponse はmediastack APIのレスポンス。
type mediastackResponse struct {
	Data  []mediastackArticle `json:"data"`
	Error *mediastackError    `json:"error"`
}

type mediastackArticle struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Image       *string `json:"image"`
	URL         *string `json:"url"`
	Source      *string `json:"source"`
	Category    *string `json:"category"`
}

type mediastackError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Fetch はSourceインターフェースを実装する。
func (c *MediastackClient) Fetch(ctx context.Context, category string) ([]model.Article, error) {
	category, err := ParseCategory(category)
	if err != nil {
		return nil, err
	}

	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}
	q := reqURL.Query()
	q.Set("access_key", c.apiKey)
	q.Set("languages", "fr")
	q.Set("categories", category)
	q.Set("limit", strconv.Itoa(c.limit))
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordNewsFetchLatency(time.Since(start))
	if err != nil {
		c.logger.Error("ニュースAPIの呼び出しに失敗しました",
			slog.String("category", category),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordNewsFetchFailure(category, "network")
		return nil, model.NewNewsFetchFailedError("the news provider could not be reached")
	}
	defer resp.Body.Close()

	c.metrics.RecordNewsHTTPStatus(resp.StatusCode)

	if class := classifyStatus(resp.StatusCode); class != statusOK {
		c.logger.Error("ニュースAPIがエラーステータスを返しました",
			slog.String("category", category),
			slog.Int("http_status", resp.StatusCode),
		)
		c.metrics.RecordNewsFetchFailure(category, class.reason())
		return nil, statusError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("category", category),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordNewsFetchFailure(category, "read")
		return nil, model.NewNewsFetchFailedError("the response could not be read")
	}

	var result mediastackResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("ニュースAPIのレスポンスのパースに失敗しました",
			slog.String("category", category),
			slog.String("error", err.Error()),
		)
		c.metrics.RecordNewsFetchFailure(category, "decode")
		return nil, model.NewNewsFetchFailedError("the response was not valid JSON")
	}

	if result.Error != nil {
		c.logger.Error("ニュースAPIがエラーを返しました",
			slog.String("category", category),
			slog.String("code", result.Error.Code),
			slog.String("message", result.Error.Message),
		)
		c.metrics.RecordNewsFetchFailure(category, result.Error.Code)
		return nil, bodyError(result.Error)
	}

	articles := make([]model.Article, 0, len(result.Data))
	for _, d := range result.Data {
		articles = append(articles, model.Article{
			Title:       deref(d.Title),
			Description: deref(d.Description),
			Image:       deref(d.Image),
			URL:         deref(d.URL),
			Source:      deref(d.Source),
			Category:    category,
		})
	}
	articles = normalize(articles, c.sanitizer)

	c.metrics.RecordNewsFetchSuccess(category)
	c.logger.Info("ニュース記事を取得しました",
		slog.String("category", category),
		slog.Int("received", len(result.Data)),
		slog.Int("kept", len(articles)),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return articles, nil
}

// bodyError はレスポンスボディ内のエラーオブジェクトをユーザー向けエラーに変換する。
func bodyError(e *mediastackError) *model.APIError {
	switch e.Code {
	case "invalid_access_key", "missing_access_key", "inactive_user":
		return model.NewNewsUnauthorizedError()
	case "usage_limit_reached", "rate_limit_reached":
		return model.NewNewsQuotaExceededError()
	default:
		return model.NewNewsFetchFailedError(e.Code)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// compile-time interface check
var _ Source = (*MediastackClient)(nil)
