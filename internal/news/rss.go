package news

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/ouioui/internal/metrics"
	"github.com/hitoshi/ouioui/internal/model"
)

// DefaultRSSFeeds はカテゴリ別の既定のフランス語RSSフィード。
func DefaultRSSFeeds() map[string]string {
	return map[string]string{
		"general":       "https://www.lemonde.fr/rss/une.xml",
		"business":      "https://www.lemonde.fr/economie/rss_full.xml",
		"technology":    "https://www.lemonde.fr/pixels/rss_full.xml",
		"entertainment": "https://www.lemonde.fr/culture/rss_full.xml",
		"sports":        "https://www.lemonde.fr/sport/rss_full.xml",
		"science":       "https://www.lemonde.fr/sciences/rss_full.xml",
		"health":        "https://www.lemonde.fr/sante/rss_full.xml",
	}
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// RSSSource はカテゴリ別のRSSフィードから記事を取得する。
// APIキーを用意できない環境でmediastackの代わりに使う。
type RSSSource struct {
	feeds      map[string]string
	ssrfGuard  SSRFValidator
	httpClient *http.Client
	sanitizer  TextSanitizer
	metrics    metrics.MetricsCollector
	logger     *slog.Logger
	limit      int
}

// NewRSSSource はRSSSourceの新しいインスタンスを生成する。
// ssrfGuardがnilの場合は検証なしの通常クライアントを使う（テスト用）。
func NewRSSSource(feeds map[string]string, ssrfGuard SSRFValidator, timeout time.Duration, limit int, sanitizer TextSanitizer, mc metrics.MetricsCollector, logger *slog.Logger) *RSSSource {
	if feeds == nil {
		feeds = DefaultRSSFeeds()
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	if mc == nil {
		mc = metrics.Nop{}
	}
	client := &http.Client{Timeout: timeout}
	if ssrfGuard != nil {
		client = ssrfGuard.NewSafeClient(timeout)
	}
	return &RSSSource{
		feeds:      feeds,
		ssrfGuard:  ssrfGuard,
		httpClient: client,
		sanitizer:  sanitizer,
		metrics:    mc,
		logger:     logger,
		limit:      limit,
	}
}

// Fetch はSourceインターフェースを実装する。
func (s *RSSSource) Fetch(ctx context.Context, category string) ([]model.Article, error) {
	category, err := ParseCategory(category)
	if err != nil {
		return nil, err
	}

	feedURL, ok := s.feeds[category]
	if !ok {
		return nil, model.NewNewsFetchFailedError(fmt.Sprintf("no feed configured for %s", category))
	}

	if s.ssrfGuard != nil {
		if err := s.ssrfGuard.ValidateURL(feedURL); err != nil {
			s.logger.Error("SSRF検証に失敗しました",
				slog.String("feed_url", feedURL),
				slog.String("error", err.Error()),
			)
			s.metrics.RecordNewsFetchFailure(category, "blocked")
			return nil, model.NewNewsFetchFailedError("the feed URL is not allowed")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "OuiOui/1.0 RSS Reader")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	s.metrics.RecordNewsFetchLatency(time.Since(start))
	if err != nil {
		s.logger.Error("HTTPリクエストに失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordNewsFetchFailure(category, "network")
		return nil, model.NewNewsFetchFailedError("the feed could not be reached")
	}
	defer resp.Body.Close()

	s.metrics.RecordNewsHTTPStatus(resp.StatusCode)

	if class := classifyStatus(resp.StatusCode); class != statusOK {
		s.logger.Warn("予期しないHTTPステータスコード",
			slog.String("feed_url", feedURL),
			slog.Int("http_status", resp.StatusCode),
		)
		s.metrics.RecordNewsFetchFailure(category, class.reason())
		return nil, statusError(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		s.metrics.RecordNewsFetchFailure(category, "read")
		return nil, model.NewNewsFetchFailedError("the feed could not be read")
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		s.logger.Error("フィードのパースに失敗しました",
			slog.String("feed_url", feedURL),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordNewsFetchFailure(category, "decode")
		return nil, model.NewNewsFetchFailedError("the feed could not be parsed")
	}

	source := parsed.Title
	articles := make([]model.Article, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item == nil {
			continue
		}
		articles = append(articles, model.Article{
			Title:       item.Title,
			Description: item.Description,
			Image:       itemImage(item),
			URL:         item.Link,
			Source:      source,
			Category:    category,
		})
	}
	articles = normalize(articles, s.sanitizer)
	if len(articles) > s.limit {
		articles = articles[:s.limit]
	}

	s.metrics.RecordNewsFetchSuccess(category)
	s.logger.Info("フィードから記事を取得しました",
		slog.String("category", category),
		slog.String("feed_url", feedURL),
		slog.Int("kept", len(articles)),
	)

	return articles, nil
}

// itemImage は記事の画像URLを返す。
// item.Image、画像のenclosure、media:contentの順に探す。
func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(strings.ToLower(enc.Type), "image") {
			return enc.URL
		}
	}
	// <media:content url="..."/>
	for _, ext := range item.Extensions["media"]["content"] {
		if u := ext.Attrs["url"]; u != "" {
			return u
		}
	}
	return ""
}

// compile-time interface check
var _ Source = (*RSSSource)(nil)
