package article

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// DefaultImageCheckTimeout は画像チェック1件あたりのタイムアウト。
const DefaultImageCheckTimeout = 5 * time.Second

// ImageValidator は記事画像URLが表示可能かどうかを判定する。
// 判定できない場合（ネットワークエラー等）は無効として扱い、エラーは返さない。
type ImageValidator interface {
	IsValid(ctx context.Context, imageURL string) bool
}

// SSRFValidator は画像URLへのアクセス前に使うSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration) *http.Client
}

// HTTPImageValidator はHEADリクエストで画像の到達性とContent-Typeを確認する。
// ステータス200かつContent-Typeに"image"を含む場合のみ有効とする。
type HTTPImageValidator struct {
	ssrfGuard SSRFValidator
	client    *http.Client
	logger    *slog.Logger
}

// NewHTTPImageValidator はHTTPImageValidatorを生成する。
// ssrfGuardがnilの場合は検証なしの通常クライアントを使う（テスト用）。
func NewHTTPImageValidator(ssrfGuard SSRFValidator, timeout time.Duration, logger *slog.Logger) *HTTPImageValidator {
	if timeout <= 0 {
		timeout = DefaultImageCheckTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := &http.Client{Timeout: timeout}
	if ssrfGuard != nil {
		client = ssrfGuard.NewSafeClient(timeout)
	}

	return &HTTPImageValidator{
		ssrfGuard: ssrfGuard,
		client:    client,
		logger:    logger,
	}
}

// IsValid はImageValidatorインターフェースを実装する。
func (v *HTTPImageValidator) IsValid(ctx context.Context, imageURL string) bool {
	if imageURL == "" {
		return false
	}

	if v.ssrfGuard != nil {
		if err := v.ssrfGuard.ValidateURL(imageURL); err != nil {
			v.logger.Warn("image check blocked", slog.String("url", imageURL), slog.String("error", err.Error()))
			return false
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, imageURL, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", "OuiOui/1.0 (+image check)")

	resp, err := v.client.Do(req)
	if err != nil {
		v.logger.Debug("image check failed", slog.String("url", imageURL), slog.String("error", err.Error()))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	return strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "image")
}

// ImageValidatorFunc は関数をImageValidatorとして扱うためのアダプタ。
type ImageValidatorFunc func(ctx context.Context, imageURL string) bool

// IsValid はImageValidatorインターフェースを実装する。
func (f ImageValidatorFunc) IsValid(ctx context.Context, imageURL string) bool {
	return f(ctx, imageURL)
}

// compile-time interface check
var (
	_ ImageValidator = (*HTTPImageValidator)(nil)
	_ ImageValidator = ImageValidatorFunc(nil)
)
