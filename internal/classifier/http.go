package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// HTTPClassifier は推論サイドカー（学習済みシーケンス分類モデルを提供するサービス）に
// テキストを送り、クラスインデックスを受け取る。
//
// リクエスト:  POST {endpoint} {"text": "...", "max_length": 512}
// レスポンス: {"label": 3}
type HTTPClassifier struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClassifier はHTTPClassifierを生成する。
func NewHTTPClassifier(endpoint string, timeout time.Duration, logger *slog.Logger) *HTTPClassifier {
	return &HTTPClassifier{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type inferenceRequest struct {
	Text      string `json:"text"`
	MaxLength int    `json:"max_length"`
}

type inferenceResponse struct {
	Label *int `json:"label"`
}

// Classify はClassifierインターフェースを実装する。
func (c *HTTPClassifier) Classify(ctx context.Context, text string, maxTokens int) (int, error) {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	body, err := json.Marshal(inferenceRequest{Text: text, MaxLength: maxTokens})
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("classifier request failed",
			slog.String("endpoint", c.endpoint),
			slog.String("error", err.Error()),
		)
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("classifier returned error status",
			slog.String("endpoint", c.endpoint),
			slog.Int("http_status", resp.StatusCode),
		)
		return 0, fmt.Errorf("%w: unexpected status %s", ErrUnavailable, resp.Status)
	}

	var out inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if out.Label == nil {
		return 0, fmt.Errorf("decode response: missing label")
	}

	return *out.Label, nil
}

// compile-time interface check
var _ Classifier = (*HTTPClassifier)(nil)
