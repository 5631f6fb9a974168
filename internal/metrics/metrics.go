// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ニュース取得、記事のレベル付与、学習者サービスから利用する。
type MetricsCollector interface {
	RecordNewsFetchSuccess(category string)
	RecordNewsFetchFailure(category string, reason string)
	RecordNewsHTTPStatus(statusCode int)
	RecordNewsFetchLatency(duration time.Duration)
	RecordImageCheck(valid bool)
	RecordArticleLabeled(level string)
	RecordFeedback(label string)
	RecordLevelChange(direction string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	newsFetchSuccess *prometheus.CounterVec
	newsFetchFail    *prometheus.CounterVec
	newsHTTPStatus   *prometheus.CounterVec
	newsFetchLatency prometheus.Histogram
	imageChecks      *prometheus.CounterVec
	articlesLabeled  *prometheus.CounterVec
	feedback         *prometheus.CounterVec
	levelChanges     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		newsFetchSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ouioui_news_fetch_success_total",
			Help: "ニュース取得成功の合計数",
		}, []string{"category"}),
		newsFetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ouioui_news_fetch_fail_total",
			Help: "ニュース取得失敗の合計数",
		}, []string{"category", "reason"}),
		newsHTTPStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ouioui_news_http_status_total",
			Help: "ニュースAPIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		newsFetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ouioui_news_fetch_latency_seconds",
			Help:    "ニュース取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		imageChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ouioui_image_checks_total",
			Help: "記事画像チェックの結果別の合計数",
		}, []string{"result"}),
		articlesLabeled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ouioui_articles_labeled_total",
			Help: "レベル別の難易度判定済み記事数",
		}, []string{"level"}),
		feedback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ouioui_feedback_total",
			Help: "ラベル別のフィードバック数",
		}, []string{"label"}),
		levelChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ouioui_level_changes_total",
			Help: "方向別のレベル変更数",
		}, []string{"direction"}),
	}

	reg.MustRegister(
		c.newsFetchSuccess,
		c.newsFetchFail,
		c.newsHTTPStatus,
		c.newsFetchLatency,
		c.imageChecks,
		c.articlesLabeled,
		c.feedback,
		c.levelChanges,
	)

	return c
}

// RecordNewsFetchSuccess はニュース取得成功を記録する。
func (c *Collector) RecordNewsFetchSuccess(category string) {
	c.newsFetchSuccess.WithLabelValues(category).Inc()
}

// RecordNewsFetchFailure はニュース取得失敗を記録する。
func (c *Collector) RecordNewsFetchFailure(category string, reason string) {
	c.newsFetchFail.WithLabelValues(category, reason).Inc()
}

// RecordNewsHTTPStatus はニュースAPIのHTTPステータスコードを記録する。
func (c *Collector) RecordNewsHTTPStatus(statusCode int) {
	c.newsHTTPStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordNewsFetchLatency はニュース取得のレイテンシを記録する。
func (c *Collector) RecordNewsFetchLatency(duration time.Duration) {
	c.newsFetchLatency.Observe(duration.Seconds())
}

// RecordImageCheck は画像チェックの結果を記録する。
func (c *Collector) RecordImageCheck(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	c.imageChecks.WithLabelValues(result).Inc()
}

// RecordArticleLabeled はレベルが付与された記事を記録する。
func (c *Collector) RecordArticleLabeled(level string) {
	c.articlesLabeled.WithLabelValues(level).Inc()
}

// RecordFeedback はフィードバックを記録する。
func (c *Collector) RecordFeedback(label string) {
	c.feedback.WithLabelValues(label).Inc()
}

// RecordLevelChange はレベル変更を記録する。directionは"up"または"down"。
func (c *Collector) RecordLevelChange(direction string) {
	c.levelChanges.WithLabelValues(direction).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordNewsFetchSuccess(string)         {}
func (Nop) RecordNewsFetchFailure(string, string) {}
func (Nop) RecordNewsHTTPStatus(int)              {}
func (Nop) RecordNewsFetchLatency(time.Duration)  {}
func (Nop) RecordImageCheck(bool)                 {}
func (Nop) RecordArticleLabeled(string)           {}
func (Nop) RecordFeedback(string)                 {}
func (Nop) RecordLevelChange(string)              {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
