package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// gatherFamily は指定名のメトリクスファミリーを取得する。見つからない場合はテストを失敗させる。
func gatherFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

// counterByLabel はラベル値ごとのカウンタ値を返す（先頭ラベルのみ参照）。
func counterByLabel(mf *dto.MetricFamily) map[string]float64 {
	out := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		out[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
	}
	return out
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordNewsFetchSuccess_IncrementsCounterPerCategory はカテゴリ別に成功数が増えることを検証する。
func TestRecordNewsFetchSuccess_IncrementsCounterPerCategory(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNewsFetchSuccess("business")
	c.RecordNewsFetchSuccess("business")
	c.RecordNewsFetchSuccess("sports")

	got := counterByLabel(gatherFamily(t, reg, "ouioui_news_fetch_success_total"))
	if got["business"] != 2 {
		t.Errorf("news_fetch_success_total{category=business} = %v, want 2", got["business"])
	}
	if got["sports"] != 1 {
		t.Errorf("news_fetch_success_total{category=sports} = %v, want 1", got["sports"])
	}
}

// TestRecordNewsFetchFailure_IncrementsCounter は取得失敗カウンタが増加することを検証する。
func TestRecordNewsFetchFailure_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNewsFetchFailure("health", "quota")

	mf := gatherFamily(t, reg, "ouioui_news_fetch_fail_total")
	if len(mf.GetMetric()) != 1 {
		t.Fatalf("expected 1 metric, got %d", len(mf.GetMetric()))
	}
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 1 {
		t.Errorf("news_fetch_fail_total = %v, want 1", val)
	}
}

// TestRecordNewsHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordNewsHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNewsHTTPStatus(200)
	c.RecordNewsHTTPStatus(200)
	c.RecordNewsHTTPStatus(429)

	got := counterByLabel(gatherFamily(t, reg, "ouioui_news_http_status_total"))
	if len(got) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(got))
	}
	if got["200"] != 2 {
		t.Errorf("news_http_status_total{status_code=200} = %v, want 2", got["200"])
	}
	if got["429"] != 1 {
		t.Errorf("news_http_status_total{status_code=429} = %v, want 1", got["429"])
	}
}

// TestRecordNewsFetchLatency_ObservesHistogram はレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordNewsFetchLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNewsFetchLatency(100 * time.Millisecond)
	c.RecordNewsFetchLatency(2 * time.Second)

	h := gatherFamily(t, reg, "ouioui_news_fetch_latency_seconds").GetMetric()[0].GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 = 2.1秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestRecordImageCheck_SplitsValidAndInvalid は画像チェック結果が有効・無効に分かれて記録されることを検証する。
func TestRecordImageCheck_SplitsValidAndInvalid(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordImageCheck(true)
	c.RecordImageCheck(false)
	c.RecordImageCheck(false)

	got := counterByLabel(gatherFamily(t, reg, "ouioui_image_checks_total"))
	if got["valid"] != 1 || got["invalid"] != 2 {
		t.Errorf("image_checks_total = %v, want valid=1 invalid=2", got)
	}
}

// TestRecordFeedbackAndLevelChange はフィードバックとレベル変更が記録されることを検証する。
func TestRecordFeedbackAndLevelChange(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordArticleLabeled("B1")
	c.RecordFeedback("Too Easy")
	c.RecordFeedback("Too Easy")
	c.RecordLevelChange("up")

	if got := counterByLabel(gatherFamily(t, reg, "ouioui_articles_labeled_total")); got["B1"] != 1 {
		t.Errorf("articles_labeled_total{level=B1} = %v, want 1", got["B1"])
	}
	if got := counterByLabel(gatherFamily(t, reg, "ouioui_feedback_total")); got["Too Easy"] != 2 {
		t.Errorf("feedback_total{label=Too Easy} = %v, want 2", got["Too Easy"])
	}
	if got := counterByLabel(gatherFamily(t, reg, "ouioui_level_changes_total")); got["up"] != 1 {
		t.Errorf("level_changes_total{direction=up} = %v, want 1", got["up"])
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNewsFetchSuccess("business")
	c.RecordNewsFetchFailure("business", "upstream")
	c.RecordNewsHTTPStatus(200)
	c.RecordNewsFetchLatency(500 * time.Millisecond)
	c.RecordImageCheck(true)
	c.RecordArticleLabeled("A2")
	c.RecordFeedback("Just Right")
	c.RecordLevelChange("down")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"ouioui_news_fetch_success_total",
		"ouioui_news_fetch_fail_total",
		"ouioui_news_http_status_total",
		"ouioui_news_fetch_latency_seconds",
		"ouioui_image_checks_total",
		"ouioui_articles_labeled_total",
		"ouioui_feedback_total",
		"ouioui_level_changes_total",
	}
	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordFeedback("Too Difficult")
	c2.RecordFeedback("Too Difficult")
	c2.RecordFeedback("Too Difficult")

	val1 := counterByLabel(gatherFamily(t, reg1, "ouioui_feedback_total"))["Too Difficult"]
	val2 := counterByLabel(gatherFamily(t, reg2, "ouioui_feedback_total"))["Too Difficult"]
	if val1 != 1 {
		t.Errorf("reg1 feedback = %v, want 1", val1)
	}
	if val2 != 2 {
		t.Errorf("reg2 feedback = %v, want 2", val2)
	}
}

// TestNop_DoesNotPanic はNopがすべての記録呼び出しを無視することを検証する。
func TestNop_DoesNotPanic(t *testing.T) {
	var c MetricsCollector = Nop{}
	c.RecordNewsFetchSuccess("x")
	c.RecordNewsFetchFailure("x", "y")
	c.RecordNewsHTTPStatus(500)
	c.RecordNewsFetchLatency(time.Second)
	c.RecordImageCheck(false)
	c.RecordArticleLabeled("C1")
	c.RecordFeedback("Challenging")
	c.RecordLevelChange("up")
}
