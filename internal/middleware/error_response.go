package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/ouioui/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// StatusCodeFor はAPIErrorのコードに対応するHTTPステータスコードを返す。
// 上流（ニュースAPI、難易度判定）の失敗は502/503として扱う。
func StatusCodeFor(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidCategory, model.ErrCodeInvalidFeedback,
		model.ErrCodeInvalidAnswers, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case model.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case model.ErrCodeStageMismatch:
		return http.StatusConflict
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case model.ErrCodeNewsFetchFailed, model.ErrCodeNewsUnauthorized, model.ErrCodeClassifierFailed:
		return http.StatusBadGateway
	case model.ErrCodeNewsQuotaExceeded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteErrorResponse はAPIErrorをJSONで書き込む。
// エラー応答はセッション固有の内容を含むためキャッシュさせない。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	h := w.Header()
	h.Set("Content-Type", "application/json")
	h.Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponseBody(*apiErr))
}

// WriteAPIError はコードから決まるステータスでAPIErrorを書き込む。
func WriteAPIError(w http.ResponseWriter, apiErr *model.APIError) {
	WriteErrorResponse(w, StatusCodeFor(apiErr), apiErr)
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
